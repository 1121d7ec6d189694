package htmlview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/storybook/internal/preview"
	"github.com/grovetools/storybook/internal/store"
	"github.com/grovetools/storybook/pkg/csf"
)

func TestDocsContainerRender(t *testing.T) {
	page := &store.Story{
		ID:    "button--primary",
		Title: "Button",
		Name:  "Primary",
		Parameters: csf.Parameters{"docs": map[string]any{
			"description": "## Usage\n\nUse **buttons** for actions.\n\n```go\nfunc main() {}\n```\n",
		}},
	}
	stories := []*store.Story{
		page,
		{ID: "button--secondary", Title: "Button", Name: "Secondary", Parameters: csf.Parameters{
			"docs": map[string]any{"description": map[string]any{"story": "The *quiet* one."}},
		}},
	}
	docs := &preview.DocsContext{
		ID:    page.ID,
		Title: page.Title,
		Name:  page.Name,
		Story: page,
		ComponentStories: func(context.Context) ([]*store.Story, error) {
			return stories, nil
		},
		RenderStory: func(ctx context.Context, story *store.Story, el csf.Element) error {
			el.SetContent("<button>" + story.Name + "</button>")
			return nil
		},
		NewElement: func() csf.Element { return &preview.MemoryElement{} },
	}

	c := NewDocsContainer()
	el := &preview.MemoryElement{}
	require.NoError(t, c.Render(context.Background(), docs, el))

	html := el.Content()
	assert.Contains(t, html, "<h1>Button</h1>")
	assert.Contains(t, html, `<h2 id="usage">Usage</h2>`)
	assert.Contains(t, html, "<strong>buttons</strong>")
	assert.Contains(t, html, `class="chroma"`)
	assert.Contains(t, html, `<section class="sb-docs-story" id="button--primary">`)
	assert.Contains(t, html, "<button>Primary</button>")
	assert.Contains(t, html, "<button>Secondary</button>")
	assert.Contains(t, html, "<em>quiet</em>")

	c.Unmount(el)
	assert.Empty(t, el.Content())
}

func TestDocsContainerPropagatesStoryErrors(t *testing.T) {
	page := &store.Story{ID: "intro--page", Title: "Intro"}
	docs := &preview.DocsContext{
		Title: "Intro",
		Story: page,
		ComponentStories: func(context.Context) ([]*store.Story, error) {
			return []*store.Story{page}, nil
		},
		RenderStory: func(context.Context, *store.Story, csf.Element) error {
			return assert.AnError
		},
		NewElement: func() csf.Element { return &preview.MemoryElement{} },
	}
	err := NewDocsContainer().Render(context.Background(), docs, &preview.MemoryElement{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMarkdownCallouts(t *testing.T) {
	out, err := NewDocsContainer().Markdown("> [!NOTE]\n> Read this first.\n")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Read this first.")
	assert.NotContains(t, string(out), "[!NOTE]")
}
