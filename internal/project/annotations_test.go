package project

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/storybook/errors"
)

func TestLoadAnnotations(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, ".storybook/preview.json", `{
  "globals": {"locale": "en"},
  "globalTypes": {"theme": {"name": "Theme", "defaultValue": "light"}},
  "args": {"size": "medium"},
  "parameters": {"layout": "centered", "options": {"storySort": {"order": ["Intro", "*"]}}}
}`)

	pa, err := LoadAnnotations(path)
	require.NoError(t, err)
	assert.Equal(t, "en", pa.Globals["locale"])
	assert.Equal(t, "light", pa.GlobalTypes["theme"].DefaultValue)
	assert.Equal(t, "medium", pa.Args["size"])
	assert.Equal(t, "centered", pa.Parameters["layout"])
	assert.Nil(t, pa.ArgTypes)
}

func TestLoadAnnotationsMissingFile(t *testing.T) {
	pa, err := LoadAnnotations(filepath.Join(t.TempDir(), "preview.json"))
	require.NoError(t, err)
	assert.NotNil(t, pa)
	assert.Empty(t, pa.Globals)
}

func TestParseAnnotationsErrors(t *testing.T) {
	_, err := ParseAnnotations([]byte(`{"globals": `))
	assert.True(t, errors.Is(err, errors.ErrCodeStartupFailed))

	_, err = ParseAnnotations([]byte(`{"globals": [1, 2]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeStartupFailed))
}
