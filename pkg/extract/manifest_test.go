package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestExtractor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Card.stories.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
title: Components/Card
excludeStories: ["/^internal/"]
template: <div class="card">{{.title}}</div>
stories:
  - export: Basic
  - name: With Image
    parameters:
      layout: fullscreen
  - export: Custom
    id: card-custom-id
  - export: internalFixture
`), 0644))

	r, err := (&ManifestExtractor{}).Extract(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, r.Stories, 3)

	assert.Equal(t, "components-card--basic", r.Stories[0].ID)
	assert.Equal(t, "Basic", r.Stories[0].Name)

	assert.Equal(t, "WithImage", r.Stories[1].ExportName)
	assert.Equal(t, "With Image", r.Stories[1].Name)
	assert.Equal(t, "components-card--with-image", r.Stories[1].ID)
	assert.Equal(t, "fullscreen", r.Stories[1].Parameters["layout"])

	assert.Equal(t, "card-custom-id", r.Stories[2].ID)
}

func TestManifestJSONAndEmpty(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "J.stories.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"stories":[{"export":"Only"}]}`), 0644))

	r, err := (&ManifestExtractor{}).Extract(context.Background(), jsonPath, Options{
		MakeTitle: MakeTitle(jsonPath, dir, "Json"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Json/J", r.Meta.Title)
	assert.Equal(t, "json-j--only", r.Stories[0].ID)

	emptyPath := filepath.Join(dir, "E.stories.yaml")
	require.NoError(t, os.WriteFile(emptyPath, []byte("\n\n"), 0644))
	_, err = (&ManifestExtractor{}).Extract(context.Background(), emptyPath, Options{})
	assert.True(t, IsNoMetadata(err))

	brokenPath := filepath.Join(dir, "B.stories.yaml")
	require.NoError(t, os.WriteFile(brokenPath, []byte("title: [unclosed\n"), 0644))
	_, err = (&ManifestExtractor{}).Extract(context.Background(), brokenPath, Options{})
	require.Error(t, err)
	assert.False(t, IsNoMetadata(err))
}
