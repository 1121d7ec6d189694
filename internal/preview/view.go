package preview

import (
	"context"

	"github.com/grovetools/storybook/internal/store"
	"github.com/grovetools/storybook/pkg/csf"
)

// ErrorDisplay is what the view shows for a failed render.
type ErrorDisplay struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// RenderView owns the mount points the preview renders into.
type RenderView interface {
	PrepareForStory(story *store.Story) csf.Element
	PrepareForDocs() csf.Element
	ShowMain()
	ShowNoPreview()
	ShowPreparingStory()
	ShowPreparingDocs()
	ShowErrorDisplay(ErrorDisplay)
	ShowStoryDuringRender()
	ShowMode(viewMode string)
}

// DocsContext is handed to a DocsRenderer for one docs page.
type DocsContext struct {
	ID    string
	Title string
	Name  string
	Story *store.Story

	// ComponentStories loads every story sharing the page's title.
	ComponentStories func(ctx context.Context) ([]*store.Story, error)
	// RenderStory renders one story into el, without lifecycle events.
	RenderStory func(ctx context.Context, story *store.Story, el csf.Element) error
	// NewElement returns a detached element for an inline story.
	NewElement func() csf.Element
}

// DocsRenderer renders docs pages.
type DocsRenderer interface {
	Render(ctx context.Context, docs *DocsContext, el csf.Element) error
	Unmount(el csf.Element)
}

// MemoryElement is an Element kept in memory.
type MemoryElement struct {
	content string
}

// SetContent implements csf.Element.
func (e *MemoryElement) SetContent(html string) { e.content = html }

// Content implements csf.Element.
func (e *MemoryElement) Content() string { return e.content }
