// Package preview is the runtime that renders the selected story: it
// resolves the selection, loads and prepares the story, runs loaders,
// render and play, and reacts to events from the manager while a render is
// in flight.
package preview

import (
	"context"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/storybook/errors"
	"github.com/grovetools/storybook/internal/channel"
	"github.com/grovetools/storybook/internal/index"
	"github.com/grovetools/storybook/internal/store"
	"github.com/grovetools/storybook/logging"
	"github.com/grovetools/storybook/pkg/csf"
)

// ProjectAnnotationsFunc returns the project-wide annotations.
type ProjectAnnotationsFunc func(ctx context.Context) (*csf.ProjectAnnotations, error)

// IndexFunc fetches the story index.
type IndexFunc func(ctx context.Context) (*index.StoryIndex, error)

// Options configures a WebPreview.
type Options struct {
	Channel channel.Channel
	View    RenderView
	Docs    DocsRenderer
	// Query is the navigation context, e.g. ?id=button--primary&args=label:Hi
	Query url.Values
	// PlayEnabled runs play functions after a story mounts.
	PlayEnabled bool
	Logger      *logrus.Entry
}

type outgoing struct {
	event string
	args  []any
}

type renderer interface {
	storyID() string
	viewMode() string
	rerender()
	remount()
	teardown()
}

// WebPreview drives rendering in response to the selection and channel
// events. All state is guarded by mu, which is released around every call
// that may block: imports, loaders, render and play functions and docs
// rendering. Each render runs on its own goroutine.
type WebPreview struct {
	channel     channel.Channel
	view        RenderView
	docs        DocsRenderer
	url         *UrlStore
	store       *store.StoryStore
	logger      *logrus.Entry
	playEnabled bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu                    sync.Mutex
	getProjectAnnotations ProjectAnnotationsFunc
	getIndex              IndexFunc
	importFn              csf.ImportFunc
	current               renderer
	previousSelection     *Selection
	previousStory         *store.Story
	selectionGen          uint64
	offs                  []func()

	// Events are queued under mu and emitted in order after it is released,
	// so channel handlers may call back into the preview.
	outbox  []outgoing
	flushMu sync.Mutex
}

// NewWebPreview creates a preview. Call Initialize to start rendering.
func NewWebPreview(opts Options) *WebPreview {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("preview")
	}
	ch := opts.Channel
	if ch == nil {
		ch = channel.NewBus()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebPreview{
		channel:     ch,
		view:        opts.View,
		docs:        opts.Docs,
		url:         NewUrlStore(opts.Query, logger),
		store:       store.NewStoryStore(),
		logger:      logger,
		playEnabled: opts.PlayEnabled,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Store exposes the story store.
func (p *WebPreview) Store() *store.StoryStore { return p.store }

// URL exposes the selection URL store.
func (p *WebPreview) URL() *UrlStore { return p.url }

// Initialize loads the project annotations and the index, subscribes to
// the channel and renders the initial selection. A failure to get the
// project annotations is shown and returned; nothing renders afterwards.
func (p *WebPreview) Initialize(ctx context.Context, getProjectAnnotations ProjectAnnotationsFunc, importFn csf.ImportFunc, getIndex IndexFunc) error {
	project, err := getProjectAnnotations(ctx)
	if err != nil {
		p.renderPreviewEntryError(err)
		return errors.StartupFailed(err)
	}
	idx, err := getIndex(ctx)
	if err != nil {
		p.renderPreviewEntryError(err)
		return errors.StartupFailed(err)
	}

	p.mu.Lock()
	p.getProjectAnnotations = getProjectAnnotations
	p.getIndex = getIndex
	p.importFn = importFn
	p.mu.Unlock()

	p.store.Initialize(idx, importFn, project)
	p.setupListeners()

	p.lock()
	defer p.unlock()

	spec := p.url.SelectionSpecifier()
	if spec.Globals != nil {
		p.store.Globals.UpdateFromPersisted(spec.Globals)
	}
	p.emitGlobals()

	storyID := spec.StoryID
	if storyID == AnyStory {
		first, ok := idx.First()
		if !ok {
			p.renderMissingStory(storyID)
			return nil
		}
		storyID = first.ID
	}
	if _, ok := idx.Entry(storyID); !ok {
		p.renderMissingStory(storyID)
		return nil
	}

	sel := Selection{StoryID: storyID, ViewMode: spec.ViewMode}
	p.url.SetSelection(sel)
	p.emit(channel.StorySpecified, channel.SelectionPayload{StoryID: sel.StoryID, ViewMode: sel.ViewMode})
	p.goRenderSelection(renderOptions{persistedArgs: spec.Args})
	return nil
}

func (p *WebPreview) setupListeners() {
	on := func(event string, h channel.Handler) {
		p.offs = append(p.offs, p.channel.On(event, h))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	on(channel.SetCurrentStory, p.handle(p.onSetCurrentStory))
	on(channel.UpdateGlobals, p.handle(p.onUpdateGlobals))
	on(channel.UpdateStoryArgs, p.handle(p.onUpdateArgs))
	on(channel.ResetStoryArgs, p.handle(p.onResetArgs))
	on(channel.ForceReRender, p.handle(p.onForceReRender))
	on(channel.ForceRemount, p.handle(p.onForceRemount))
	on(channel.PreviewKeydown, p.handle(p.onKeydown))
	on(channel.StoryIndexInvalidated, p.handle(func(any) { p.onStoryIndexChanged() }))
}

// handle adapts a single-argument handler to the channel.
func (p *WebPreview) handle(fn func(arg any)) channel.Handler {
	return func(args ...any) {
		var arg any
		if len(args) > 0 {
			arg = args[0]
		}
		fn(arg)
	}
}

// Close stops listening to the channel and waits for in-flight renders.
func (p *WebPreview) Close() {
	p.mu.Lock()
	offs := p.offs
	p.offs = nil
	p.mu.Unlock()
	for _, off := range offs {
		off()
	}
	p.cancel()
	p.Wait()
}

// Wait blocks until every in-flight render has settled and all queued
// events were emitted.
func (p *WebPreview) Wait() {
	p.wg.Wait()
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	p.drain()
}

func (p *WebPreview) lock() { p.mu.Lock() }

func (p *WebPreview) unlock() {
	p.mu.Unlock()
	p.flush()
}

// emit queues an event. mu must be held.
func (p *WebPreview) emit(event string, args ...any) {
	p.outbox = append(p.outbox, outgoing{event: event, args: args})
}

// flush emits queued events. A goroutine that finds another flushing
// leaves its events to it.
func (p *WebPreview) flush() {
	for {
		if !p.flushMu.TryLock() {
			return
		}
		p.drain()
		p.flushMu.Unlock()

		p.mu.Lock()
		empty := len(p.outbox) == 0
		p.mu.Unlock()
		if empty {
			return
		}
	}
}

func (p *WebPreview) drain() {
	for {
		p.mu.Lock()
		if len(p.outbox) == 0 {
			p.mu.Unlock()
			return
		}
		ev := p.outbox[0]
		p.outbox = p.outbox[1:]
		p.mu.Unlock()
		p.channel.Emit(ev.event, ev.args...)
	}
}

// spawn runs fn on its own goroutine, tracked by Wait.
func (p *WebPreview) spawn(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
}

func (p *WebPreview) emitGlobals() {
	var globalTypes csf.GlobalTypes
	if project := p.store.Project(); project != nil {
		globalTypes = project.GlobalTypes
	}
	p.emit(channel.SetGlobals, channel.GlobalsPayload{
		Globals:     p.store.Globals.Get(),
		GlobalTypes: globalTypes,
	})
}

func (p *WebPreview) onSetCurrentStory(arg any) {
	var payload channel.SelectionPayload
	if err := channel.Decode(arg, &payload); err != nil || payload.StoryID == "" {
		p.logger.WithError(err).Warn("Ignoring malformed setCurrentStory event")
		return
	}
	if payload.ViewMode == "" {
		payload.ViewMode = ViewModeStory
	}

	p.lock()
	defer p.unlock()
	sel := Selection{StoryID: payload.StoryID, ViewMode: payload.ViewMode}
	p.url.SetSelection(sel)
	p.emit(channel.CurrentStoryWasSet, channel.SelectionPayload{StoryID: sel.StoryID, ViewMode: sel.ViewMode})
	p.goRenderSelection(renderOptions{})
}

func (p *WebPreview) onUpdateGlobals(arg any) {
	var payload channel.GlobalsPayload
	if err := channel.Decode(arg, &payload); err != nil {
		p.logger.WithError(err).Warn("Ignoring malformed updateGlobals event")
		return
	}

	p.lock()
	defer p.unlock()
	p.store.Globals.Update(payload.Globals)
	p.emit(channel.GlobalsUpdated, channel.GlobalsPayload{
		Globals:        p.store.Globals.Get(),
		InitialGlobals: p.store.Globals.Initial(),
	})
	if p.current != nil {
		p.current.rerender()
	}
}

func (p *WebPreview) onUpdateArgs(arg any) {
	var payload channel.ArgsPayload
	if err := channel.Decode(arg, &payload); err != nil || payload.StoryID == "" {
		p.logger.WithError(err).Warn("Ignoring malformed updateStoryArgs event")
		return
	}

	p.lock()
	defer p.unlock()
	p.updateArgs(payload.StoryID, payload.UpdatedArgs)
}

// updateArgs merges updated into the story's args and re-renders it in
// place. mu must be held.
func (p *WebPreview) updateArgs(storyID string, updated map[string]any) {
	if err := p.store.Args.Update(storyID, csf.Args(updated)); err != nil {
		p.logger.WithError(err).Warn("Failed to update args")
		return
	}
	args, _ := p.store.Args.Get(storyID)
	p.emit(channel.StoryArgsUpdated, channel.ArgsPayload{StoryID: storyID, Args: args})
	if p.showsStory(storyID) {
		p.current.rerender()
	}
}

// showsStory reports whether the current render displays storyID, either
// as the selected story or inline on the docs page of its component. mu
// must be held.
func (p *WebPreview) showsStory(storyID string) bool {
	if p.current == nil {
		return false
	}
	if p.current.storyID() == storyID {
		return true
	}
	docs, ok := p.current.(*DocsRender)
	if !ok {
		return false
	}
	entry, ok := p.store.Entry(storyID)
	return ok && entry.Title == docs.story.Title
}

func (p *WebPreview) onResetArgs(arg any) {
	var payload channel.ResetArgsPayload
	if err := channel.Decode(arg, &payload); err != nil || payload.StoryID == "" {
		p.logger.WithError(err).Warn("Ignoring malformed resetStoryArgs event")
		return
	}

	p.lock()
	defer p.unlock()
	initial, err := p.store.Args.Initial(payload.StoryID)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to reset args")
		return
	}
	names := payload.ArgNames
	if len(names) == 0 {
		// Initial args the user removed must come back too.
		current, _ := p.store.Args.Get(payload.StoryID)
		for name := range initial {
			names = append(names, name)
		}
		for name := range current {
			if _, ok := initial[name]; !ok {
				names = append(names, name)
			}
		}
	}
	updated := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := initial[name]; ok {
			updated[name] = v
		} else {
			updated[name] = csf.Undefined
		}
	}
	p.updateArgs(payload.StoryID, updated)
}

func (p *WebPreview) onForceReRender(any) {
	p.lock()
	defer p.unlock()
	if p.current != nil {
		p.current.rerender()
	}
}

func (p *WebPreview) onForceRemount(arg any) {
	var payload channel.StoryIDPayload
	_ = channel.Decode(arg, &payload)

	p.lock()
	defer p.unlock()
	if p.current != nil && (payload.StoryID == "" || p.current.storyID() == payload.StoryID) {
		p.current.remount()
	}
}

// textInputs are targets whose keystrokes belong to the focused field.
var textInputs = map[string]bool{"INPUT": true, "TEXTAREA": true, "SELECT": true}

// KeydownForward is the payload the preview re-emits for keystrokes the
// manager should handle.
type KeydownForward struct {
	Event channel.KeydownPayload `json:"event"`
}

func (p *WebPreview) onKeydown(arg any) {
	if _, forwarded := arg.(KeydownForward); forwarded {
		return
	}
	if m, ok := arg.(map[string]any); ok {
		if _, forwarded := m["event"]; forwarded {
			return
		}
	}
	var payload channel.KeydownPayload
	if err := channel.Decode(arg, &payload); err != nil {
		return
	}
	if textInputs[payload.Target] || payload.Target == "contenteditable" {
		return
	}
	p.lock()
	defer p.unlock()
	p.emit(channel.PreviewKeydown, KeydownForward{Event: payload})
}

// OnStoriesChanged handles a hot reload of story files: the current story
// is re-resolved through importFn and re-rendered if it changed. A nil
// importFn keeps the current one.
func (p *WebPreview) OnStoriesChanged(importFn csf.ImportFunc, idx *index.StoryIndex) {
	p.lock()
	defer p.unlock()
	if importFn != nil {
		p.importFn = importFn
	} else {
		importFn = p.importFn
	}
	p.store.OnStoriesChanged(importFn, idx)
	if p.url.Selection() != nil {
		p.goRenderSelection(renderOptions{})
	}
}

// OnGetProjectAnnotationsChanged handles a hot reload of the project
// annotations. Globals and args the user changed are kept.
func (p *WebPreview) OnGetProjectAnnotationsChanged(ctx context.Context, getProjectAnnotations ProjectAnnotationsFunc) error {
	project, err := getProjectAnnotations(ctx)
	if err != nil {
		p.renderPreviewEntryError(err)
		return errors.StartupFailed(err)
	}

	p.lock()
	defer p.unlock()
	p.getProjectAnnotations = getProjectAnnotations
	p.store.OnGetProjectAnnotationsChanged(project)
	p.emitGlobals()
	if p.url.Selection() != nil {
		p.goRenderSelection(renderOptions{})
	}
	return nil
}

// onStoryIndexChanged refetches the index after the server invalidated it
// and re-renders the selection if its story changed.
func (p *WebPreview) onStoryIndexChanged() {
	p.mu.Lock()
	getIndex := p.getIndex
	p.mu.Unlock()
	if getIndex == nil {
		return
	}
	p.spawn(func() {
		idx, err := getIndex(p.ctx)
		if err != nil {
			p.logger.WithError(err).Error("Failed to fetch the story index")
			return
		}
		p.OnStoriesChanged(nil, idx)
	})
}

// renderPreviewEntryError shows an error that prevents the preview from
// starting at all.
func (p *WebPreview) renderPreviewEntryError(err error) {
	p.logger.WithError(err).Error("Error loading preview entry")
	if p.view != nil {
		p.view.ShowErrorDisplay(ErrorDisplay{Message: err.Error()})
	}
}

// renderMissingStory shows the no-preview state. mu must be held.
func (p *WebPreview) renderMissingStory(storyID string) {
	if p.view != nil {
		p.view.ShowNoPreview()
	}
	p.emit(channel.StoryMissing, storyID)
}
