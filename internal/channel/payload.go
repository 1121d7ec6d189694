package channel

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Event is the wire envelope used by transports.
type Event struct {
	Type string `json:"type"`
	Args []any  `json:"args"`
}

// SelectionPayload is the argument of setCurrentStory, forceRemount and
// the selection echoes.
type SelectionPayload struct {
	StoryID  string `json:"storyId" mapstructure:"storyId"`
	ViewMode string `json:"viewMode,omitempty" mapstructure:"viewMode"`
}

// GlobalsPayload is the argument of updateGlobals, setGlobals and
// globalsUpdated.
type GlobalsPayload struct {
	Globals        map[string]any `json:"globals" mapstructure:"globals"`
	InitialGlobals map[string]any `json:"initialGlobals,omitempty" mapstructure:"initialGlobals"`
	GlobalTypes    any            `json:"globalTypes,omitempty" mapstructure:"globalTypes"`
}

// ArgsPayload is the argument of updateStoryArgs and storyArgsUpdated.
type ArgsPayload struct {
	StoryID     string         `json:"storyId" mapstructure:"storyId"`
	UpdatedArgs map[string]any `json:"updatedArgs,omitempty" mapstructure:"updatedArgs"`
	Args        map[string]any `json:"args,omitempty" mapstructure:"args"`
}

// ResetArgsPayload is the argument of resetStoryArgs. No ArgNames resets
// every arg.
type ResetArgsPayload struct {
	StoryID  string   `json:"storyId" mapstructure:"storyId"`
	ArgNames []string `json:"argNames,omitempty" mapstructure:"argNames"`
}

// StoryIDPayload is the argument of forceReRender.
type StoryIDPayload struct {
	StoryID string `json:"storyId,omitempty" mapstructure:"storyId"`
}

// PreparedPayload is the argument of storyPrepared.
type PreparedPayload struct {
	ID          string         `json:"id"`
	Parameters  map[string]any `json:"parameters"`
	InitialArgs map[string]any `json:"initialArgs"`
	ArgTypes    any            `json:"argTypes"`
	Args        map[string]any `json:"args"`
}

// ErrorPayload is the argument of storyErrored.
type ErrorPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ExceptionPayload is the argument of storyThrewException.
type ExceptionPayload struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// KeydownPayload is the argument of previewKeydown.
type KeydownPayload struct {
	Key    string `json:"key" mapstructure:"key"`
	Target string `json:"target,omitempty" mapstructure:"target"`
	Ctrl   bool   `json:"ctrlKey,omitempty" mapstructure:"ctrlKey"`
	Shift  bool   `json:"shiftKey,omitempty" mapstructure:"shiftKey"`
	Alt    bool   `json:"altKey,omitempty" mapstructure:"altKey"`
	Meta   bool   `json:"metaKey,omitempty" mapstructure:"metaKey"`
}

// Decode fills out from an event argument. In-process emitters pass typed
// payloads which are assigned directly; arguments decoded from JSON arrive
// as maps and are converted.
func Decode(arg any, out any) error {
	target := reflect.ValueOf(out).Elem()
	if v := reflect.ValueOf(arg); v.IsValid() {
		if v.Type().AssignableTo(target.Type()) {
			target.Set(v)
			return nil
		}
		if v.Kind() == reflect.Ptr && !v.IsNil() && v.Elem().Type().AssignableTo(target.Type()) {
			target.Set(v.Elem())
			return nil
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(arg)
}
