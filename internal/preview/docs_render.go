package preview

import (
	"context"
	"html/template"
	"strings"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/internal/channel"
	"github.com/grovetools/storybook/internal/store"
	"github.com/grovetools/storybook/pkg/csf"
)

// DocsRender is one docs page mounted in docs view mode. Its fields are
// guarded by the preview's mu.
type DocsRender struct {
	p       *WebPreview
	story   *store.Story
	docs    DocsRenderer
	element csf.Element
	aborted bool
	running bool
	queued  bool
}

func newDocsRender(p *WebPreview, story *store.Story) *DocsRender {
	docs := p.docs
	if docs == nil {
		docs = plainDocs{}
	}
	return &DocsRender{p: p, story: story, docs: docs}
}

func (r *DocsRender) storyID() string  { return r.story.ID }
func (r *DocsRender) viewMode() string { return ViewModeDocs }

// rerender renders the page again; mu must be held.
func (r *DocsRender) rerender() {
	if r.aborted {
		return
	}
	if r.running {
		r.queued = true
		return
	}
	r.running = true
	r.p.spawn(r.render)
}

func (r *DocsRender) remount() {
	if r.aborted {
		return
	}
	if r.element != nil {
		r.docs.Unmount(r.element)
	}
	r.rerender()
}

// teardown unmounts the page; mu must be held.
func (r *DocsRender) teardown() {
	r.aborted = true
	if r.element != nil {
		r.docs.Unmount(r.element)
	}
}

// render runs the docs renderer. mu must not be held.
func (r *DocsRender) render() {
	p := r.p

	p.lock()
	if r.aborted {
		p.unlock()
		return
	}
	r.running = true
	if r.element == nil && p.view != nil {
		r.element = p.view.PrepareForDocs()
	}
	if r.element == nil {
		r.element = &MemoryElement{}
	}
	el := r.element
	dc := r.docsContext()
	p.unlock()

	err := r.docs.Render(p.ctx, dc, el)

	p.lock()
	defer p.unlock()
	if r.aborted {
		return
	}
	r.running = false
	if err != nil {
		r.queued = false
		err = errors.RenderFailed(r.story.ID, err)
		p.logger.WithError(err).WithField("story", r.story.ID).Error("Docs page failed to render")
		p.emit(channel.StoryThrewException, channel.ExceptionPayload{Message: err.Error()})
		if p.view != nil {
			p.view.ShowErrorDisplay(ErrorDisplay{Message: err.Error()})
		}
		return
	}
	if p.view != nil {
		p.view.ShowMain()
	}
	p.emit(channel.DocsRendered, r.story.Title)
	if r.queued {
		r.queued = false
		r.running = true
		p.spawn(r.render)
	}
}

func (r *DocsRender) docsContext() *DocsContext {
	p := r.p
	return &DocsContext{
		ID:    r.story.ID,
		Title: r.story.Title,
		Name:  r.story.Name,
		Story: r.story,
		ComponentStories: func(ctx context.Context) ([]*store.Story, error) {
			return p.store.StoriesForComponent(ctx, r.story.Title)
		},
		RenderStory: func(ctx context.Context, story *store.Story, el csf.Element) error {
			return p.renderStoryToElement(ctx, story, el)
		},
		NewElement: func() csf.Element { return &MemoryElement{} },
	}
}

// renderStoryToElement renders a story inline for a docs page. Loaders and
// the render contract run but play does not, and no lifecycle events are
// emitted.
func (p *WebPreview) renderStoryToElement(ctx context.Context, story *store.Story, el csf.Element) error {
	sc, err := p.store.GetStoryContext(story)
	if err != nil {
		return err
	}
	sc.ViewMode = ViewModeDocs
	loaded, err := runLoaders(ctx, story.Loaders, sc)
	if err != nil {
		return err
	}
	sc.Loaded = loaded

	renderFn := RenderToElement
	if project := p.store.Project(); project != nil && project.RenderToDOM != nil {
		renderFn = project.RenderToDOM
	}
	storyFn := store.Decorate(story)
	var failed error
	rc := &csf.RenderContext{
		ID:           story.ID,
		Title:        story.Title,
		Name:         story.Name,
		StoryContext: sc,
		ForceRemount: true,
		ShowMain:     func() {},
		ShowError: func(info csf.ErrorInfo) {
			failed = errors.New(errors.ErrCodeRenderFailed, info.Title).WithDetail("description", info.Description)
		},
		ShowException: func(err error) { failed = err },
		StoryFn:       func() (any, error) { return storyFn(sc) },
	}
	if err := renderFn(ctx, rc, el); err != nil {
		return err
	}
	return failed
}

// plainDocs lists the component's stories when no docs renderer is
// configured.
type plainDocs struct{}

func (plainDocs) Render(ctx context.Context, docs *DocsContext, el csf.Element) error {
	stories, err := docs.ComponentStories(ctx)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("<h1>" + template.HTMLEscapeString(docs.Title) + "</h1>\n")
	for _, story := range stories {
		inner := docs.NewElement()
		if err := docs.RenderStory(ctx, story, inner); err != nil {
			return err
		}
		b.WriteString(`<section id="` + template.HTMLEscapeString(story.ID) + `">`)
		b.WriteString("<h2>" + template.HTMLEscapeString(story.Name) + "</h2>")
		b.WriteString(inner.Content())
		b.WriteString("</section>\n")
	}
	el.SetContent(b.String())
	return nil
}

func (plainDocs) Unmount(el csf.Element) { el.SetContent("") }
