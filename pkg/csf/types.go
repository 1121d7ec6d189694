package csf

import "context"

// Args are the inputs a story renders with.
type Args map[string]any

// Globals are values shared by every story (theme, locale, ...).
type Globals map[string]any

// Parameters are static story metadata consumed by the preview and addons.
type Parameters map[string]any

// Type names an arg's value type.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeObject   = "object"
	TypeArray    = "array"
	TypeEnum     = "enum"
	TypeFunction = "function"
	TypeOther    = "other"
)

// SBType describes an arg's type. Value holds the element type for arrays,
// the property types for objects, and the allowed values for enums.
type SBType struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// ArgType declares one arg.
type ArgType struct {
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Type         *SBType `json:"type,omitempty"`
	DefaultValue any     `json:"defaultValue,omitempty"`
	Control      any     `json:"control,omitempty"`
	Options      []any   `json:"options,omitempty"`
}

// ArgTypes maps arg names to their declarations.
type ArgTypes map[string]ArgType

// GlobalType declares one global.
type GlobalType struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
	Toolbar      any    `json:"toolbar,omitempty"`
}

// GlobalTypes maps global names to their declarations.
type GlobalTypes map[string]GlobalType

// StoryContext is everything a loader, decorator, render or play function
// sees about the story being rendered.
type StoryContext struct {
	ID          string
	Title       string
	Name        string
	Parameters  Parameters
	InitialArgs Args
	ArgTypes    ArgTypes
	Args        Args
	Globals     Globals
	ViewMode    string
	// Loaded is the merged output of every loader; later loaders win.
	Loaded map[string]any
}

// LoaderFunc produces data the story needs before it renders.
type LoaderFunc func(ctx context.Context, sc *StoryContext) (map[string]any, error)

// StoryFn renders the story (with all inner decorators applied).
type StoryFn func(sc *StoryContext) (any, error)

// RenderFunc renders a story from its args.
type RenderFunc func(args Args, sc *StoryContext) (any, error)

// DecoratorFunc wraps the inner story function.
type DecoratorFunc func(story StoryFn, sc *StoryContext) (any, error)

// PlayFunc drives a rendered story, e.g. to simulate interactions.
type PlayFunc func(ctx context.Context, sc *StoryContext) error

// ErrorInfo is what a render contract passes to ShowError.
type ErrorInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Element is a mount point rendered output is written into.
type Element interface {
	SetContent(html string)
	Content() string
}

// RenderContext is handed to the render contract for each render.
type RenderContext struct {
	ID           string
	Title        string
	Name         string
	StoryContext *StoryContext
	ForceRemount bool
	ShowMain     func()
	ShowError    func(ErrorInfo)
	// ShowException reports a failure that escaped the story function.
	ShowException func(error)
	StoryFn       func() (any, error)
}

// RenderToDOMFunc is the framework render contract. It should call one of
// ShowMain, ShowError or ShowException before returning.
type RenderToDOMFunc func(ctx context.Context, rc *RenderContext, el Element) error

// BaseAnnotations are the fields shared by every annotation level.
type BaseAnnotations struct {
	Args       Args
	ArgTypes   ArgTypes
	Parameters Parameters
	Decorators []DecoratorFunc
	Loaders    []LoaderFunc
	Render     RenderFunc
}

// ProjectAnnotations apply to every story.
type ProjectAnnotations struct {
	BaseAnnotations
	Globals     Globals
	GlobalTypes GlobalTypes
	RenderToDOM RenderToDOMFunc
}

// ComponentAnnotations are a story file's default export.
type ComponentAnnotations struct {
	BaseAnnotations
	Title          string
	ID             string
	Component      any
	IncludeStories []string
	ExcludeStories []string
	Play           PlayFunc
}

// StoryAnnotations describe a single named story.
type StoryAnnotations struct {
	BaseAnnotations
	// Name overrides the display name derived from the export name.
	Name string
	Play PlayFunc
}

// NamedStory is one named export of a story file.
type NamedStory struct {
	ExportName string
	Kind       ExportKind
	Story      StoryAnnotations
}

// ModuleExports is an imported story file.
type ModuleExports struct {
	Default ComponentAnnotations
	Stories []NamedStory
}

// Story returns the export with the given name.
func (m *ModuleExports) Story(exportName string) (*NamedStory, bool) {
	for i := range m.Stories {
		if m.Stories[i].ExportName == exportName {
			return &m.Stories[i], true
		}
	}
	return nil, false
}

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined marks an absent value: a hole in a sparse array or an arg the
// user explicitly unset. Merges skip holes and drop undefined keys.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined marker.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}
