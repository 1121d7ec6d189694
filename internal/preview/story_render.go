package preview

import (
	"context"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/internal/channel"
	"github.com/grovetools/storybook/internal/store"
	"github.com/grovetools/storybook/pkg/csf"
)

// Phase is where a story render is in its lifecycle.
type Phase string

const (
	PhasePreparing  Phase = "preparing"
	PhaseLoading    Phase = "loading"
	PhaseRendering  Phase = "rendering"
	PhasePlaying    Phase = "playing"
	PhasePlayed     Phase = "played"
	PhaseCompleting Phase = "completing"
	PhaseCompleted  Phase = "completed"
	PhaseErrored    Phase = "errored"
	PhaseAborted    Phase = "aborted"
)

// StoryRender is one story mounted in story view mode. Its fields are
// guarded by the preview's mu.
type StoryRender struct {
	p       *WebPreview
	story   *store.Story
	mode    string
	element csf.Element
	phase   Phase
	aborted bool
	running bool
	queued  bool
	// remountQueued makes the queued render mount from scratch.
	remountQueued bool
	logger        *logrus.Entry
	renderFn      csf.RenderToDOMFunc
}

func newStoryRender(p *WebPreview, story *store.Story, mode string) *StoryRender {
	renderFn := RenderToElement
	if project := p.store.Project(); project != nil && project.RenderToDOM != nil {
		renderFn = project.RenderToDOM
	}
	return &StoryRender{
		p:        p,
		story:    story,
		mode:     mode,
		phase:    PhasePreparing,
		logger:   p.logger.WithField("story", story.ID),
		renderFn: renderFn,
	}
}

func (r *StoryRender) storyID() string  { return r.story.ID }
func (r *StoryRender) viewMode() string { return r.mode }

// rerender applies an args or globals change. mu must be held. While
// loaders run the change is picked up when they finish; while rendering it
// only warns; while playing it queues one more render after play resolves.
func (r *StoryRender) rerender() {
	if r.aborted {
		return
	}
	switch r.phase {
	case PhasePreparing, PhaseLoading:
		return
	case PhaseRendering, PhaseCompleting:
		r.logger.Warn("Received args update while still rendering")
		return
	case PhasePlaying:
		r.logger.Warn("Received args update while the play function is running, rendering again once it finishes")
		r.queued = true
		return
	}
	if r.running {
		return
	}
	r.running = true
	r.p.spawn(func() { r.render(false) })
}

// remount tears the story down and mounts it again. mu must be held.
func (r *StoryRender) remount() {
	r.p.store.CleanupStory(r.story)
	if r.running {
		r.queued = true
		r.remountQueued = true
		return
	}
	r.running = true
	r.p.spawn(func() { r.render(true) })
}

// teardown stops listening to the render's outcome. mu must be held.
func (r *StoryRender) teardown() {
	r.aborted = true
	r.phase = PhaseAborted
	r.p.store.CleanupStory(r.story)
}

// render runs loaders, the render function and, when mounting, the play
// function. mu must not be held.
func (r *StoryRender) render(forceRemount bool) {
	p := r.p
	ctx := p.ctx

	p.lock()
	if r.aborted {
		p.unlock()
		return
	}
	r.running = true
	if r.element == nil && p.view != nil {
		r.element = p.view.PrepareForStory(r.story)
	}
	if r.element == nil {
		r.element = &MemoryElement{}
	}
	sc, err := p.store.GetStoryContext(r.story)
	if err != nil {
		r.fail(err)
		p.unlock()
		return
	}
	sc.ViewMode = r.mode
	r.phase = PhaseLoading
	p.unlock()

	loaded, err := runLoaders(ctx, r.story.Loaders, sc)

	p.lock()
	if r.aborted {
		p.unlock()
		return
	}
	if err != nil {
		r.fail(err)
		p.unlock()
		return
	}
	// Args may have changed while loaders ran; render with the latest.
	if sc, err = p.store.GetStoryContext(r.story); err != nil {
		r.fail(err)
		p.unlock()
		return
	}
	sc.ViewMode = r.mode
	sc.Loaded = loaded
	r.phase = PhaseRendering
	rc := r.renderContext(sc, forceRemount)
	if p.view != nil {
		p.view.ShowStoryDuringRender()
	}
	el := r.element
	p.unlock()

	err = r.renderFn(ctx, rc, el)

	p.lock()
	if r.aborted {
		p.unlock()
		return
	}
	if err != nil {
		r.fail(err)
		p.unlock()
		return
	}
	if r.phase == PhaseErrored {
		r.running = false
		p.unlock()
		return
	}

	if forceRemount && p.playEnabled && r.story.Play != nil {
		r.phase = PhasePlaying
		p.unlock()

		err = r.story.Play(ctx, sc)

		p.lock()
		if r.aborted {
			p.unlock()
			return
		}
		if err != nil {
			r.fail(err)
			p.unlock()
			return
		}
		r.phase = PhasePlayed
	}

	r.phase = PhaseCompleting
	p.emit(channel.StoryRendered, r.story.ID)
	r.phase = PhaseCompleted
	again, remount := r.queued, r.remountQueued
	r.queued, r.remountQueued = false, false
	r.running = again
	p.unlock()

	if again {
		r.render(remount)
	}
}

// renderContext builds the callbacks the render function reports through.
func (r *StoryRender) renderContext(sc *csf.StoryContext, forceRemount bool) *csf.RenderContext {
	p := r.p
	storyFn := store.Decorate(r.story)
	return &csf.RenderContext{
		ID:           r.story.ID,
		Title:        r.story.Title,
		Name:         r.story.Name,
		StoryContext: sc,
		ForceRemount: forceRemount,
		ShowMain: func() {
			p.lock()
			defer p.unlock()
			if !r.aborted && p.view != nil {
				p.view.ShowMain()
			}
		},
		ShowError: func(info csf.ErrorInfo) {
			p.lock()
			defer p.unlock()
			if r.aborted {
				return
			}
			r.phase = PhaseErrored
			p.emit(channel.StoryErrored, channel.ErrorPayload{Title: info.Title, Description: info.Description})
			if p.view != nil {
				p.view.ShowErrorDisplay(ErrorDisplay{Message: info.Title, Stack: info.Description})
			}
		},
		ShowException: func(err error) {
			p.lock()
			defer p.unlock()
			if !r.aborted {
				r.fail(err)
			}
		},
		StoryFn: func() (any, error) {
			return storyFn(sc)
		},
	}
}

// fail reports an exception. mu must be held.
func (r *StoryRender) fail(err error) {
	r.phase = PhaseErrored
	r.running = false
	r.queued, r.remountQueued = false, false
	r.logger.WithError(err).Error("Story threw an exception")
	r.p.emit(channel.StoryThrewException, channel.ExceptionPayload{Message: err.Error(), Stack: fmt.Sprintf("%+v", err)})
	if r.p.view != nil {
		r.p.view.ShowErrorDisplay(ErrorDisplay{Message: err.Error(), Stack: fmt.Sprintf("%+v", err)})
	}
}

// runLoaders runs loaders in order and merges their results; later keys
// win.
func runLoaders(ctx context.Context, loaders []csf.LoaderFunc, sc *csf.StoryContext) (map[string]any, error) {
	loaded := map[string]any{}
	for _, loader := range loaders {
		out, err := loader(ctx, sc)
		if err != nil {
			return nil, err
		}
		for k, v := range out {
			loaded[k] = v
		}
		sc.Loaded = loaded
	}
	return loaded, nil
}

// RenderToElement is the default render function: it writes the story's
// output into the element. Strings are escaped unless they are
// template.HTML.
func RenderToElement(ctx context.Context, rc *csf.RenderContext, el csf.Element) error {
	out, err := rc.StoryFn()
	if err != nil {
		return err
	}
	switch v := out.(type) {
	case nil:
		el.SetContent("")
	case template.HTML:
		el.SetContent(string(v))
	case string:
		el.SetContent(template.HTMLEscapeString(v))
	case fmt.Stringer:
		el.SetContent(template.HTMLEscapeString(v.String()))
	default:
		el.SetContent(template.HTMLEscapeString(fmt.Sprint(v)))
	}
	rc.ShowMain()
	return nil
}
