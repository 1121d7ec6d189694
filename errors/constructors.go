package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *StorybookError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *StorybookError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// NoMetadata marks a file that declares no stories. Callers treat it as a skip.
func NoMetadata(path string, reason string) *StorybookError {
	return New(ErrCodeNoMetadata, fmt.Sprintf("no story metadata in %s: %s", path, reason)).
		WithDetail("path", path)
}

// ExtractionFailed wraps a parse failure for a single story file.
func ExtractionFailed(path string, err error) *StorybookError {
	return Wrap(err, ErrCodeExtractionFailed, fmt.Sprintf("failed to extract stories from %s", path)).
		WithDetail("path", path)
}

// StoryNotFound creates an error for an id that is absent from the index.
func StoryNotFound(storyID string) *StorybookError {
	return New(ErrCodeStoryNotFound, fmt.Sprintf("no story with id '%s' in the index", storyID)).
		WithDetail("storyId", storyID)
}

// ArgsNotInitialized is returned when args are read before SetInitial.
func ArgsNotInitialized(storyID string) *StorybookError {
	return New(ErrCodeArgsNotInitialized,
		fmt.Sprintf("cannot use args for '%s' before they are initialized", storyID)).
		WithDetail("storyId", storyID)
}

// StartupFailed wraps an error raised while retrieving project annotations.
func StartupFailed(err error) *StorybookError {
	return Wrap(err, ErrCodeStartupFailed, "failed to retrieve project annotations")
}

// RenderFailed wraps a failure raised while rendering a story or docs page.
func RenderFailed(storyID string, err error) *StorybookError {
	return Wrap(err, ErrCodeRenderFailed, "failed to render "+storyID).
		WithDetail("story", storyID)
}
