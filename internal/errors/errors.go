package errors

import (
	stderrors "errors"
	"fmt"
)

// HookError is the structured error type used across meilihook.
// Connector failures, configuration problems and protocol errors all carry a
// code so that logs and CLI output can be grouped without string matching.
type HookError struct {
	// Code is the unique error code (e.g., "ERR_302_INDEX_UNREACHABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is derived from the code's hundreds digit.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Suggestion is an actionable hint for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *HookError) Unwrap() error {
	return e.Cause
}

// Is matches another HookError by code so errors.Is works with sentinel values.
func (e *HookError) Is(target error) bool {
	if t, ok := target.(*HookError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *HookError) WithDetail(key, value string) *HookError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets an actionable suggestion for the operator.
func (e *HookError) WithSuggestion(suggestion string) *HookError {
	e.Suggestion = suggestion
	return e
}

// New creates a HookError. Category and severity are derived from the code.
func New(code string, message string, cause error) *HookError {
	return &HookError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a HookError from an existing error, reusing its message.
func Wrap(code string, err error) *HookError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *HookError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *HookError {
	return New(ErrCodeFileRead, message, cause)
}

// NetworkError creates an error for a search index that could not be reached.
func NetworkError(message string, cause error) *HookError {
	return New(ErrCodeIndexUnreachable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *HookError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *HookError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var he *HookError
	if stderrors.As(err, &he) {
		return he.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the code from the first HookError in err's chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var he *HookError
	if stderrors.As(err, &he) {
		return he.Code
	}
	return ""
}

// GetCategory extracts the category from the first HookError in err's chain.
func GetCategory(err error) Category {
	var he *HookError
	if stderrors.As(err, &he) {
		return he.Category
	}
	return ""
}
