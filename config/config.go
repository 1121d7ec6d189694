package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

var configNames = []string{
	"storybook.yml",
	"storybook.yaml",
	".storybook.yml",
	".storybook.yaml",
	"storybook.toml",
}

var overrideNames = []string{
	"storybook.override.yml",
	"storybook.override.yaml",
	".storybook.override.yml",
	".storybook.override.yaml",
}

// Load reads, validates and defaults a single storybook configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := loadBytes(path, data)
	if err != nil {
		return nil, err
	}
	cfg.RootDir = filepath.Dir(path)
	return cfg, nil
}

// LoadDefault finds and loads the configuration with hierarchical merging:
// 1. Global config (~/.config/storybook/storybook.yml) - base layer
// 2. Project config (storybook.yml) - overrides global
// 3. Local override (storybook.override.yml) - overrides all
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory
func LoadFrom(startDir string) (*Config, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return LoadFromWithLogger(startDir, logger)
}

// LoadFromWithLogger loads configuration with hierarchical merging and logging
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	layered, err := loadLayers(startDir, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Configuration loaded and validated successfully")

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		configData, err := yaml.Marshal(layered.Final)
		if err == nil {
			logger.Debugf("Merged configuration:\n%s", string(configData))
		}
	}

	return layered.Final, nil
}

// LoadLayered finds and loads all configuration layers (global, project,
// overrides) without merging them, for analysis purposes. It also computes
// the final merged config.
func LoadLayered(startDir string) (*LayeredConfig, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return loadLayers(startDir, logger)
}

func loadLayers(startDir string, logger *logrus.Logger) (*LayeredConfig, error) {
	projectPath, err := FindConfigFile(startDir)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", projectPath).Debug("Loading project configuration")

	layered := &LayeredConfig{
		FilePaths: make(map[ConfigSource]string),
	}
	defaultCfg := &Config{}
	defaultCfg.SetDefaults()
	layered.Default = defaultCfg

	// 1. Global config (optional)
	if globalPath := paths.GlobalConfigFile(); globalPath != "" && globalPath != projectPath {
		if _, err := os.Stat(globalPath); err == nil {
			logger.WithField("path", globalPath).Debug("Loading global configuration")
			globalCfg, _, err := decodeFile(globalPath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse global configuration, continuing without it")
			} else {
				layered.Global = globalCfg
				layered.FilePaths[SourceGlobal] = globalPath
			}
		}
	}

	// 2. Project config (required)
	projectCfg, raw, err := decodeFile(projectPath)
	if err != nil {
		return nil, err
	}
	if err := validateRaw(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed").
			WithDetail("path", projectPath)
	}
	layered.Project = projectCfg
	layered.FilePaths[SourceProject] = projectPath

	// 3. Override files (optional)
	projectDir := filepath.Dir(projectPath)
	for _, name := range overrideNames {
		overridePath := filepath.Join(projectDir, name)
		if _, err := os.Stat(overridePath); err != nil {
			continue
		}
		logger.WithField("path", overridePath).Debug("Loading local override configuration")
		overrideCfg, _, err := decodeFile(overridePath)
		if err != nil {
			logger.WithError(err).Warn("Failed to parse override file, skipping")
			continue
		}
		layered.Overrides = append(layered.Overrides, OverrideSource{Path: overridePath, Config: overrideCfg})
	}

	finalConfig := &Config{}
	if layered.Global != nil {
		finalConfig = mergeConfigs(finalConfig, layered.Global)
	}
	finalConfig = mergeConfigs(finalConfig, layered.Project)
	for _, override := range layered.Overrides {
		logger.WithField("path", override.Path).Debug("Merging override configuration")
		finalConfig = mergeConfigs(finalConfig, override.Config)
	}

	finalConfig.SetDefaults()
	finalConfig.RootDir = projectDir
	if err := finalConfig.Validate(); err != nil {
		return nil, err
	}

	layered.Final = finalConfig
	return layered, nil
}

// LoadFromBytes parses a YAML configuration from a byte array, validates it
// and applies defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	return loadBytes("storybook.yml", data)
}

func loadBytes(name string, data []byte) (*Config, error) {
	cfg, raw, err := decode(name, data)
	if err != nil {
		return nil, err
	}

	if err := validateRaw(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string) (*Config, map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	cfg, raw, err := decode(path, data)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}
	return cfg, raw, nil
}

// decode parses YAML or TOML (chosen by file extension) after env expansion.
// TOML documents are re-encoded as YAML so both formats share one decoder.
func decode(name string, data []byte) (*Config, map[string]interface{}, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var raw map[string]interface{}
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
		reencoded, err := yaml.Marshal(raw)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to convert TOML configuration")
		}
		expanded = reencoded
	} else if err := yaml.Unmarshal(expanded, &raw); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return &cfg, raw, nil
}

func validateRaw(raw map[string]interface{}) error {
	validator, err := NewSchemaValidator()
	if err != nil {
		return err
	}
	return validator.Validate(raw)
}

// FindConfigFile searches from startDir up to the filesystem root for a
// storybook configuration file, falling back to the global config.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if globalPath := paths.GlobalConfigFile(); globalPath != "" {
		if info, err := os.Stat(globalPath); err == nil && !info.IsDir() {
			return globalPath, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// Default returns a defaulted configuration rooted at dir, used when no
// storybook.yml exists. Stories are discovered anywhere below dir.
func Default(dir string) *Config {
	cfg := &Config{
		Stories: []StoriesEntry{{Directory: ".", Files: "**/*.stories.*"}},
		RootDir: dir,
	}
	cfg.SetDefaults()
	return cfg
}

// Resolve returns p relative to the config root unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) || c.RootDir == "" {
		return p
	}
	return filepath.Join(c.RootDir, filepath.FromSlash(p))
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
