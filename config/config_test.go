package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/storybook/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
stories:
  - ./src/**/*.stories.tsx
  - directory: lib
    titlePrefix: Library
`))
	require.NoError(t, err)

	require.Len(t, cfg.Stories, 2)
	assert.Equal(t, StoriesEntry{Directory: "src", Files: "**/*.stories.tsx"}, cfg.Stories[0])
	assert.Equal(t, StoriesEntry{Directory: "lib", Files: "**/*.stories.*", TitlePrefix: "Library"}, cfg.Stories[1])

	assert.Equal(t, ".storybook", cfg.ConfigDir)
	assert.Equal(t, ".storybook/preview.json", cfg.PreviewAnnotations)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultDebounceMs, cfg.Watch.DebounceMs)
	assert.True(t, cfg.PlayEnabled())
	assert.True(t, cfg.WatchEnabled())
	assert.False(t, cfg.Features.V2Compatibility)
}

func TestSplitGlob(t *testing.T) {
	tests := []struct {
		glob string
		want StoriesEntry
	}{
		{"src/**/*.stories.tsx", StoriesEntry{Directory: "src", Files: "**/*.stories.tsx"}},
		{"./a/b/*.stories.@(js|ts)", StoriesEntry{Directory: "a/b", Files: "*.stories.@(js|ts)"}},
		{"*.stories.js", StoriesEntry{Directory: ".", Files: "*.stories.js"}},
		{"src/Button.stories.js", StoriesEntry{Directory: "src", Files: "Button.stories.js"}},
	}
	for _, tt := range tests {
		t.Run(tt.glob, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitGlob(tt.glob))
		})
	}
}

func TestExtensions(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
stories: ["src/**/*.stories.js"]
logging:
  level: debug
  report_caller: true
addons:
  enabled: true
  interval: 30
`))
	require.NoError(t, err)

	type loggingConfig struct {
		Level        string `yaml:"level"`
		ReportCaller bool   `yaml:"report_caller"`
	}
	var logCfg loggingConfig
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
	assert.True(t, logCfg.ReportCaller)

	_, ok := cfg.Extensions["addons"]
	assert.True(t, ok)
	_, ok = cfg.Extensions["stories"]
	assert.False(t, ok, "core keys must not leak into extensions")

	var missing loggingConfig
	require.NoError(t, cfg.UnmarshalExtension("nope", &missing))
	assert.Empty(t, missing.Level)
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("SB_PORT_ADDR", "0.0.0.0:7007")
	cfg, err := LoadFromBytes([]byte(`
stories: ["src/*.stories.js"]
server:
  addr: ${SB_PORT_ADDR}
configDir: ${SB_UNSET_DIR:-.sb}
`))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7007", cfg.Server.Addr)
	assert.Equal(t, ".sb", cfg.ConfigDir)
	assert.Equal(t, ".sb/preview.json", cfg.PreviewAnnotations)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code errors.ErrorCode
	}{
		{"bad addr", "stories: []\nserver:\n  addr: nope\n", errors.ErrCodeConfigValidation},
		{"negative debounce", "stories: []\nwatch:\n  debounce_ms: -5\n", errors.ErrCodeConfigValidation},
		{"annotations not json", "stories: []\npreviewAnnotations: preview.js\n", errors.ErrCodeConfigValidation},
		{"schema violation", "stories: []\nfeatures:\n  unknown: true\n", errors.ErrCodeConfigInvalid},
		{"broken yaml", "stories: [\n", errors.ErrCodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestHierarchicalMerging(t *testing.T) {
	home := t.TempDir()
	t.Setenv("STORYBOOK_HOME", home)
	writeFile(t, filepath.Join(home, "config", "storybook.yml"), `
server:
  addr: 127.0.0.1:9000
logging:
  level: warn
  report_caller: true
`)

	project := t.TempDir()
	writeFile(t, filepath.Join(project, "storybook.yml"), `
stories: ["src/**/*.stories.js"]
features:
  v2Compatibility: true
logging:
  level: info
`)
	writeFile(t, filepath.Join(project, "storybook.override.yml"), `
watch:
  debounce_ms: 250
  enabled: false
`)
	nested := filepath.Join(project, "src", "components")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, err := LoadFrom(nested)
	require.NoError(t, err)

	assert.Equal(t, project, cfg.RootDir)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Features.V2Compatibility)
	assert.Equal(t, 250, cfg.Watch.DebounceMs)
	assert.False(t, cfg.WatchEnabled())
	require.Len(t, cfg.Stories, 1)
	assert.Equal(t, "src", cfg.Stories[0].Directory)

	logging, ok := cfg.Extensions["logging"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "info", logging["level"])
	assert.Equal(t, true, logging["report_caller"])

	layered, err := LoadLayered(nested)
	require.NoError(t, err)
	assert.NotNil(t, layered.Global)
	assert.Len(t, layered.Overrides, 1)
	assert.Equal(t, filepath.Join(project, "storybook.yml"), layered.FilePaths[SourceProject])
	assert.Equal(t, 250, layered.Final.Watch.DebounceMs)
}

func TestTOMLConfig(t *testing.T) {
	t.Setenv("STORYBOOK_HOME", t.TempDir())
	project := t.TempDir()
	writeFile(t, filepath.Join(project, "storybook.toml"), `
stories = ["src/**/*.stories.ts", { directory = "docs", files = "*.stories.md" }]

[features]
v2Compatibility = true
`)

	cfg, err := LoadFrom(project)
	require.NoError(t, err)
	require.Len(t, cfg.Stories, 2)
	assert.Equal(t, "docs", cfg.Stories[1].Directory)
	assert.Equal(t, "*.stories.md", cfg.Stories[1].Files)
	assert.True(t, cfg.Features.V2Compatibility)
}

func TestConfigNotFound(t *testing.T) {
	t.Setenv("STORYBOOK_HOME", t.TempDir())
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.GetCode(err))
}

func TestDefaultAndResolve(t *testing.T) {
	cfg := Default("/work")
	require.Len(t, cfg.Stories, 1)
	assert.Equal(t, filepath.Join("/work", ".storybook", "preview.json"), cfg.Resolve(cfg.PreviewAnnotations))
	assert.Equal(t, "/abs/file.json", cfg.Resolve("/abs/file.json"))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"stories"`)
	assert.Contains(t, s, `"v2Compatibility"`)
	assert.Contains(t, s, `"debounce_ms"`)
	assert.Contains(t, s, `"oneOf"`)
	assert.NotContains(t, s, `"Extensions"`)
}
