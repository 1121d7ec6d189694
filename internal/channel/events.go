// Package channel is the event bus between the preview runtime and the
// browser (or any other manager) connected to it.
package channel

// Events received by the preview.
const (
	SetCurrentStory = "setCurrentStory"
	UpdateGlobals   = "updateGlobals"
	UpdateStoryArgs = "updateStoryArgs"
	ResetStoryArgs  = "resetStoryArgs"
	ForceReRender   = "forceReRender"
	ForceRemount    = "forceRemount"
	PreviewKeydown  = "previewKeydown"
)

// Events emitted by the preview and the server.
const (
	StoryIndexInvalidated = "storyIndexInvalidated"
	SetGlobals            = "setGlobals"
	StorySpecified        = "storySpecified"
	CurrentStoryWasSet    = "currentStoryWasSet"
	StoryPrepared         = "storyPrepared"
	StoryUnchanged        = "storyUnchanged"
	StoryChanged          = "storyChanged"
	StoryMissing          = "storyMissing"
	StoryRendered         = "storyRendered"
	DocsRendered          = "docsRendered"
	StoryErrored          = "storyErrored"
	StoryThrewException   = "storyThrewException"
	StoryArgsUpdated      = "storyArgsUpdated"
	GlobalsUpdated        = "globalsUpdated"

	// PreviewFrame carries the headless view's rendered HTML to browsers.
	PreviewFrame = "previewFrame"
)

// Inbound lists the events a transport may forward to the preview.
var Inbound = []string{
	SetCurrentStory,
	UpdateGlobals,
	UpdateStoryArgs,
	ResetStoryArgs,
	ForceReRender,
	ForceRemount,
	PreviewKeydown,
}

// IsInbound reports whether a transport may dispatch event.
func IsInbound(event string) bool {
	for _, e := range Inbound {
		if e == event {
			return true
		}
	}
	return false
}
