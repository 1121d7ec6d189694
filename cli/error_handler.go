package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/storybook/errors"
)

// ErrorHandler turns structured errors into user-facing messages.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out.
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Handle prints a message for err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	sbErr, _ := errors.As(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "Configuration not found. Create a storybook.yml with a 'stories' list.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "Invalid configuration: %v\n", err)
		fmt.Fprintf(h.Out, "Run 'storybook schema' to see the accepted fields.\n")

	case errors.ErrCodeNoMetadata:
		fmt.Fprintf(h.Out, "Story file %v has no default export metadata.\n", sbErr.Details["path"])

	case errors.ErrCodeExtractionFailed:
		fmt.Fprintf(h.Out, "Failed to extract stories from %v: %v\n", sbErr.Details["path"], sbErr.Cause)

	case errors.ErrCodeInvalidSort:
		fmt.Fprintf(h.Out, "Invalid storySort parameter: %v\n", err)

	case errors.ErrCodeStartupFailed:
		fmt.Fprintf(h.Out, "The preview failed to start: %v\n", err)

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	if h.Verbose && sbErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", sbErr.ToJSON())
	}
	return err
}
