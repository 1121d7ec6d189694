package csf

import (
	"context"
	"testing"

	"github.com/grovetools/storybook/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buttonFile(title string) *ModuleExports {
	return &ModuleExports{
		Default: ComponentAnnotations{Title: title},
		Stories: []NamedStory{
			{ExportName: "Primary", Kind: ObjectForm},
			{ExportName: "Secondary", Kind: BoundTemplate},
		},
	}
}

func TestRegistryImport(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("./src/Button.stories.js", buttonFile("Button")))

	m, err := r.Import(context.Background(), "./src/Button.stories.js")
	require.NoError(t, err)
	assert.Equal(t, "Button", m.Default.Title)

	s, ok := m.Story("Secondary")
	require.True(t, ok)
	assert.Equal(t, BoundTemplate, s.Kind)
	_, ok = m.Story("Missing")
	assert.False(t, ok)

	_, err = r.Import(context.Background(), "./src/Missing.stories.js")
	assert.True(t, errors.Is(err, errors.ErrCodeImportFailed))

	err = r.Register("./src/Button.stories.js", buttonFile("Again"))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestRegistryReplaceNotifies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("./a.stories.js", buttonFile("A")))

	var changed []string
	r.OnChange(func(p string) { changed = append(changed, p) })

	r.Replace("./a.stories.js", buttonFile("A2"))
	r.Remove("./a.stories.js")
	r.Remove("./never.stories.js")

	assert.Equal(t, []string{"./a.stories.js", "./a.stories.js"}, changed)
	assert.Empty(t, r.ImportPaths())
}

func TestRegistryImportHonoursContext(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Import(ctx, "./a.stories.js")
	assert.ErrorIs(t, err, context.Canceled)
}
