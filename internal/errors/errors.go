// Package errors provides structured error types for the Loadstone pipeline.
// All errors carry a category, code, message, and retryable flag so that the
// message boundary can turn any failure into a consistent ack/nack decision.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	// Startup-only categories. These are the only errors allowed to
	// terminate the process.
	ErrCategoryConfig ErrorCategory = "CONFIG"
	ErrCategorySchema ErrorCategory = "SCHEMA"

	// Per-message categories. All of these are caught at the message
	// boundary and converted into ack/nack.
	ErrCategoryDecode  ErrorCategory = "DECODE"
	ErrCategoryFetch   ErrorCategory = "FETCH"
	ErrCategoryParse   ErrorCategory = "PARSE"
	ErrCategoryWrite   ErrorCategory = "WRITE"
	ErrCategoryPublish ErrorCategory = "PUBLISH"
)

// Error codes for each category.
const (
	// Config codes
	CodeMissingSetting = "MISSING_SETTING"
	CodeInvalidSetting = "INVALID_SETTING"

	// Schema codes
	CodeSchemaSource  = "SCHEMA_SOURCE"
	CodeSchemaInvalid = "SCHEMA_INVALID"

	// Decode codes
	CodeBadUTF8 = "BAD_UTF8"

	// Fetch codes
	CodeNotFound  = "NOT_FOUND"
	CodeTooLarge  = "TOO_LARGE"
	CodeTransport = "TRANSPORT"

	// Parse codes
	CodeBadJSON  = "BAD_JSON"
	CodeBadShape = "BAD_SHAPE"

	// Write codes
	CodeSinkRejected = "SINK_REJECTED"

	// Publish codes
	CodePublishFailed = "PUBLISH_FAILED"
)

// PipelineError is the structured error type used throughout the pipeline.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Retryable failures are worth a broker redelivery; non-retryable ones
// (missing object, oversized object, malformed content) will fail the
// same way on every redelivery.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryFetch && code == CodeTransport:
		return true
	case category == ErrCategoryWrite && code == CodeSinkRejected:
		return true
	case category == ErrCategoryPublish && code == CodePublishFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *PipelineError {
	return New(ErrCategoryConfig, code, message)
}

func NewSchemaError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategorySchema, code, message, cause)
}

func NewDecodeError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryDecode, CodeBadUTF8, message, cause)
}

func NewFetchError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryFetch, code, message, cause)
}

func NewParseError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryParse, code, message, cause)
}

func NewWriteError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryWrite, CodeSinkRejected, message, cause)
}

func NewPublishError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryPublish, CodePublishFailed, message, cause)
}
