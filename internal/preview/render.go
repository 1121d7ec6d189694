package preview

import (
	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/internal/channel"
)

type renderOptions struct {
	persistedArgs map[string]any
	forceRemount  bool
}

// goRenderSelection starts rendering the current selection. mu must be
// held; the work happens on a new goroutine.
func (p *WebPreview) goRenderSelection(opts renderOptions) {
	p.selectionGen++
	gen := p.selectionGen
	sel := p.url.Selection()
	p.spawn(func() { p.renderSelection(gen, sel, opts) })
}

// renderSelection loads the selected story and, unless nothing changed
// since the last settled selection, tears down the previous render and
// starts a new one.
func (p *WebPreview) renderSelection(gen uint64, sel *Selection, opts renderOptions) {
	if sel == nil {
		p.logger.Error("Cannot render story as no selection was made")
		return
	}
	logger := p.logger.WithFields(logrus.Fields{"story": sel.StoryID, "viewMode": sel.ViewMode})

	story, loadErr := p.store.LoadStory(p.ctx, sel.StoryID)

	p.lock()
	defer p.unlock()
	if gen != p.selectionGen {
		logger.Debug("Selection changed while loading story")
		return
	}

	if loadErr != nil {
		if p.current != nil {
			p.current.teardown()
			p.current = nil
		}
		p.previousSelection = nil
		p.previousStory = nil
		if errors.Is(loadErr, errors.ErrCodeStoryNotFound) {
			p.renderMissingStory(sel.StoryID)
			return
		}
		logger.WithError(loadErr).Error("Unable to load story")
		if p.view != nil {
			p.view.ShowErrorDisplay(ErrorDisplay{Message: loadErr.Error()})
		}
		p.emit(channel.StoryMissing, sel.StoryID)
		return
	}

	if opts.persistedArgs != nil {
		if err := p.store.Args.UpdateFromPersisted(story, opts.persistedArgs); err != nil {
			logger.WithError(err).Warn("Failed to apply args from the URL")
		}
	}

	prev := p.previousSelection
	storyChanged := prev == nil || prev.StoryID != sel.StoryID
	viewModeChanged := prev == nil || prev.ViewMode != sel.ViewMode
	implementationChanged := story != p.previousStory

	if prev != nil && !storyChanged && !viewModeChanged && !implementationChanged && !opts.forceRemount {
		p.emit(channel.StoryUnchanged, sel.StoryID)
		return
	}

	if p.current != nil {
		p.current.teardown()
		p.current = nil
	}
	if prev != nil && (storyChanged || viewModeChanged) {
		p.emit(channel.StoryChanged, sel.StoryID)
	}

	args, _ := p.store.Args.Get(story.ID)
	p.emit(channel.StoryPrepared, channel.PreparedPayload{
		ID:          story.ID,
		Parameters:  story.Parameters,
		InitialArgs: story.InitialArgs,
		ArgTypes:    story.ArgTypes,
		Args:        args,
	})

	selection := *sel
	p.previousSelection = &selection
	p.previousStory = story

	if sel.ViewMode == ViewModeDocs || story.DocsOnly() {
		r := newDocsRender(p, story)
		p.current = r
		if p.view != nil {
			p.view.ShowMode(ViewModeDocs)
			p.view.ShowPreparingDocs()
		}
		r.running = true
		p.spawn(r.render)
		return
	}

	r := newStoryRender(p, story, ViewModeStory)
	p.current = r
	if p.view != nil {
		p.view.ShowMode(ViewModeStory)
		p.view.ShowPreparingStory()
	}
	// Claim the render before mu is released so a remount arriving in
	// between queues behind it.
	r.running = true
	p.spawn(func() { r.render(true) })
}

// CurrentPhase returns the phase of the current story render, or "" when
// no story render is active.
func (p *WebPreview) CurrentPhase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.current.(*StoryRender); ok {
		return r.phase
	}
	return ""
}

var _ renderer = (*StoryRender)(nil)
var _ renderer = (*DocsRender)(nil)
