package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

//go:generate sh -c "cd .. && go run ./tools/schema-generator"

const (
	DefaultConfigDir  = ".storybook"
	DefaultAddr       = "127.0.0.1:6006"
	DefaultDebounceMs = 100
)

// StoriesEntry is one entry of the `stories` list. It is written either as a
// single glob string ("src/**/*.stories.tsx") or as an object.
type StoriesEntry struct {
	Directory   string `yaml:"directory" toml:"directory" json:"directory"`
	Files       string `yaml:"files" toml:"files" json:"files"`
	TitlePrefix string `yaml:"titlePrefix,omitempty" toml:"titlePrefix,omitempty" json:"titlePrefix,omitempty"`
}

// UnmarshalYAML accepts both the string and the object form.
func (s *StoriesEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var glob string
		if err := node.Decode(&glob); err != nil {
			return err
		}
		*s = SplitGlob(glob)
		return nil
	}

	type rawEntry StoriesEntry
	var raw rawEntry
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = StoriesEntry(raw)
	if s.Files == "" {
		s.Files = "**/*.stories.*"
	}
	return nil
}

// JSONSchema describes the string-or-object shape of a stories entry.
func (StoriesEntry) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("directory", &jsonschema.Schema{Type: "string", Description: "Directory scanned for story files, relative to the config file"})
	props.Set("files", &jsonschema.Schema{Type: "string", Description: "Glob matched against paths relative to directory"})
	props.Set("titlePrefix", &jsonschema.Schema{Type: "string", Description: "Prefix prepended to every title found under directory"})
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Description: "Glob such as src/**/*.stories.tsx"},
			{
				Type:                 "object",
				Properties:           props,
				Required:             []string{"directory"},
				AdditionalProperties: jsonschema.FalseSchema,
			},
		},
	}
}

// SplitGlob splits a glob into the static directory prefix and the pattern
// matched below it. "./src/**/*.stories.tsx" becomes {src, **/*.stories.tsx}.
func SplitGlob(glob string) StoriesEntry {
	glob = strings.TrimPrefix(path.Clean(strings.ReplaceAll(glob, "\\", "/")), "./")
	segments := strings.Split(glob, "/")
	for i, seg := range segments {
		if strings.ContainsAny(seg, "*?[{(!") {
			dir := strings.Join(segments[:i], "/")
			if dir == "" {
				dir = "."
			}
			return StoriesEntry{Directory: dir, Files: strings.Join(segments[i:], "/")}
		}
	}
	return StoriesEntry{Directory: path.Dir(glob), Files: path.Base(glob)}
}

// FeaturesConfig toggles optional behaviour.
type FeaturesConfig struct {
	V2Compatibility bool  `yaml:"v2Compatibility,omitempty" toml:"v2Compatibility,omitempty" json:"v2Compatibility,omitempty" jsonschema:"description=Add kind/story/parameters fields to every index entry"`
	PlayFunctions   *bool `yaml:"playFunctions,omitempty" toml:"playFunctions,omitempty" json:"playFunctions,omitempty" jsonschema:"description=Run play functions after a remounting render (default: true)"`
}

// ServerConfig configures the dev server.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty" toml:"addr,omitempty" json:"addr,omitempty" jsonschema:"description=Listen address of the dev server (default: 127.0.0.1:6006)"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Enabled    *bool `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"description=Watch story files and invalidate the index (default: true)"`
	DebounceMs int   `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" jsonschema:"description=Window for coalescing index invalidation broadcasts in milliseconds (default: 100)"`
}

// Config represents the storybook.yml configuration
type Config struct {
	Stories            []StoriesEntry `yaml:"stories" toml:"stories" json:"stories" jsonschema:"description=Where to look for story files"`
	ConfigDir          string         `yaml:"configDir,omitempty" toml:"configDir,omitempty" json:"configDir,omitempty" jsonschema:"description=Directory holding preview annotations (default: .storybook)"`
	PreviewAnnotations string         `yaml:"previewAnnotations,omitempty" toml:"previewAnnotations,omitempty" json:"previewAnnotations,omitempty" jsonschema:"description=JSON file with project annotations (default: <configDir>/preview.json)"`
	Features           FeaturesConfig `yaml:"features,omitempty" toml:"features,omitempty" json:"features,omitempty"`
	Server             ServerConfig   `yaml:"server,omitempty" toml:"server,omitempty" json:"server,omitempty"`
	Watch              WatchConfig    `yaml:"watch,omitempty" toml:"watch,omitempty" json:"watch,omitempty"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`

	// RootDir is the directory holding the project config file. Relative
	// paths in the config resolve against it.
	RootDir string `yaml:"-" toml:"-" json:"-" jsonschema:"-"`
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir
	}
	if c.PreviewAnnotations == "" {
		c.PreviewAnnotations = path.Join(c.ConfigDir, "preview.json")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = DefaultDebounceMs
	}
	if c.Features.PlayFunctions == nil {
		trueVal := true
		c.Features.PlayFunctions = &trueVal
	}
	if c.Watch.Enabled == nil {
		trueVal := true
		c.Watch.Enabled = &trueVal
	}
	for i := range c.Stories {
		if c.Stories[i].Files == "" {
			c.Stories[i].Files = "**/*.stories.*"
		}
	}
}

// PlayEnabled reports whether play functions run after a remounting render.
func (c *Config) PlayEnabled() bool {
	return c.Features.PlayFunctions == nil || *c.Features.PlayFunctions
}

// WatchEnabled reports whether the dev server watches story files.
func (c *Config) WatchEnabled() bool {
	return c.Watch.Enabled == nil || *c.Watch.Enabled
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded storybook.yml into the provided target struct. The target must be a
// pointer. It is not an error for the key to be missing.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

// ConfigSource identifies the origin of a configuration value.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceGlobal   ConfigSource = "global"
	SourceProject  ConfigSource = "project"
	SourceOverride ConfigSource = "override"
)

// OverrideSource holds a raw configuration from an override file and its path.
type OverrideSource struct {
	Path   string
	Config *Config
}

// LayeredConfig holds the raw configuration from each source file,
// as well as the final merged configuration, for analysis purposes.
type LayeredConfig struct {
	Default   *Config                 // Config with only default values applied.
	Global    *Config                 // Raw config from the global file.
	Project   *Config                 // Raw config from the project file.
	Overrides []OverrideSource        // Raw configs from override files, in order of application.
	Final     *Config                 // The fully merged and validated config.
	FilePaths map[ConfigSource]string // Maps sources to their file paths.
}
