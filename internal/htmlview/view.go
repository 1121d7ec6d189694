// Package htmlview is a headless preview.RenderView. Mount points are HTML
// buffers; every visible change is published as a frame that transports
// forward to connected browsers.
package htmlview

import (
	"bytes"
	"html/template"
	"sync"

	"github.com/grovetools/storybook/internal/channel"
	"github.com/grovetools/storybook/internal/preview"
	"github.com/grovetools/storybook/internal/store"
	"github.com/grovetools/storybook/pkg/csf"
)

// State is what the view currently shows.
type State string

const (
	StatePreparingStory State = "preparing-story"
	StatePreparingDocs  State = "preparing-docs"
	StateMain           State = "main"
	StateNoPreview      State = "no-preview"
	StateError          State = "error"
)

// Frame is one published snapshot of the view.
type Frame struct {
	Type  string                `json:"type"`
	Mode  string                `json:"mode"`
	State State                 `json:"state"`
	Story string                `json:"storyId,omitempty"`
	HTML  string                `json:"html"`
	Error *preview.ErrorDisplay `json:"error,omitempty"`
	Rev   uint64                `json:"rev"`
}

// Publisher receives frames. channel.Channel satisfies it. It is called
// while the preview holds its lock and must not call back into it.
type Publisher interface {
	Emit(event string, args ...any)
}

var (
	errorTemplate = template.Must(template.New("error").Parse(
		`<div class="sb-errordisplay"><h1>{{.Message}}</h1>{{if .Stack}}<pre><code>{{.Stack}}</code></pre>{{end}}</div>`))
	noPreviewHTML = `<div class="sb-nopreview"><h1>No Preview</h1><p>Sorry, but you either have no stories or none are selected somehow.</p></div>`
)

// View implements preview.RenderView.
type View struct {
	mu      sync.Mutex
	pub     Publisher
	mode    string
	state   State
	storyID string
	story   *Element
	docs    *Element
	err     *preview.ErrorDisplay
	rev     uint64
}

var _ preview.RenderView = (*View)(nil)

// New creates a view publishing to pub, which may be nil.
func New(pub Publisher) *View {
	return &View{pub: pub, mode: preview.ViewModeStory, state: StatePreparingStory}
}

// PrepareForStory returns a fresh story root. Elements handed out earlier
// are detached, so late writes from an aborted render are never shown.
func (v *View) PrepareForStory(story *store.Story) csf.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.storyID = story.ID
	v.story = &Element{view: v}
	return v.story
}

// PrepareForDocs returns a fresh docs root.
func (v *View) PrepareForDocs() csf.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.docs = &Element{view: v}
	return v.docs
}

func (v *View) ShowMain()              { v.show(StateMain) }
func (v *View) ShowNoPreview()         { v.show(StateNoPreview) }
func (v *View) ShowPreparingStory()    { v.show(StatePreparingStory) }
func (v *View) ShowPreparingDocs()     { v.show(StatePreparingDocs) }
func (v *View) ShowStoryDuringRender() { v.show(StateMain) }

// ShowErrorDisplay shows err in place of the story.
func (v *View) ShowErrorDisplay(err preview.ErrorDisplay) {
	v.mu.Lock()
	v.err = &err
	v.mu.Unlock()
	v.show(StateError)
}

// ShowMode switches between the story and docs roots.
func (v *View) ShowMode(viewMode string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mode = viewMode
}

func (v *View) show(state State) {
	v.mu.Lock()
	if state != StateError {
		v.err = nil
	}
	v.state = state
	frame := v.frameLocked(true)
	v.mu.Unlock()
	v.publish(frame)
}

// changed publishes el's new content if it is visible.
func (v *View) changed(el *Element) {
	v.mu.Lock()
	if v.state != StateMain || el != v.current() {
		v.mu.Unlock()
		return
	}
	frame := v.frameLocked(true)
	v.mu.Unlock()
	v.publish(frame)
}

func (v *View) current() *Element {
	if v.mode == preview.ViewModeDocs {
		return v.docs
	}
	return v.story
}

// Snapshot returns the frame a newly connected client should show.
func (v *View) Snapshot() Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frameLocked(false)
}

func (v *View) frameLocked(bump bool) Frame {
	if bump {
		v.rev++
	}
	frame := Frame{Type: "frame", Mode: v.mode, State: v.state, Story: v.storyID, Rev: v.rev}
	switch v.state {
	case StateMain:
		if el := v.current(); el != nil {
			frame.HTML = el.Content()
		}
	case StateNoPreview:
		frame.HTML = noPreviewHTML
	case StateError:
		if v.err != nil {
			e := *v.err
			frame.Error = &e
			var buf bytes.Buffer
			if err := errorTemplate.Execute(&buf, e); err == nil {
				frame.HTML = buf.String()
			}
		}
	}
	return frame
}

func (v *View) publish(frame Frame) {
	if v.pub != nil {
		v.pub.Emit(channel.PreviewFrame, frame)
	}
}

// Element is a mount point owned by a View.
type Element struct {
	mu   sync.Mutex
	html string
	view *View
}

// SetContent implements csf.Element.
func (e *Element) SetContent(html string) {
	e.mu.Lock()
	e.html = html
	e.mu.Unlock()
	if e.view != nil {
		e.view.changed(e)
	}
}

// Content implements csf.Element.
func (e *Element) Content() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.html
}
