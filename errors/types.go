package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Index errors
	ErrCodeNoMetadata       ErrorCode = "NO_METADATA"
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	ErrCodeIndexScanFailed  ErrorCode = "INDEX_SCAN_FAILED"
	ErrCodeInvalidSort      ErrorCode = "INVALID_STORY_SORT"

	// Preview errors
	ErrCodeStoryNotFound         ErrorCode = "STORY_NOT_FOUND"
	ErrCodeArgsNotInitialized    ErrorCode = "ARGS_NOT_INITIALIZED"
	ErrCodeGlobalsNotInitialized ErrorCode = "GLOBALS_NOT_INITIALIZED"
	ErrCodeStartupFailed         ErrorCode = "STARTUP_FAILED"
	ErrCodeRenderFailed          ErrorCode = "RENDER_FAILED"
	ErrCodeImportFailed          ErrorCode = "IMPORT_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// StorybookError represents a structured error with context
type StorybookError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *StorybookError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *StorybookError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *StorybookError) WithDetail(key string, value interface{}) *StorybookError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *StorybookError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new StorybookError
func New(code ErrorCode, message string) *StorybookError {
	return &StorybookError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a StorybookError
func Wrap(err error, code ErrorCode, message string) *StorybookError {
	return &StorybookError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error, or any error it wraps, carries the given code.
// The outermost StorybookError in the chain decides.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	sbErr, ok := err.(*StorybookError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if sbErr.Code == code {
		return true
	}
	return Is(sbErr.Cause, code)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	sbErr, ok := err.(*StorybookError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return sbErr.Code
}

// As returns the first StorybookError in the chain, if any.
func As(err error) (*StorybookError, bool) {
	for err != nil {
		if sbErr, ok := err.(*StorybookError); ok {
			return sbErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
