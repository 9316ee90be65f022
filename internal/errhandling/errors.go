// Package errhandling provides error types and classification for dashboard runs.
// Categories decide how a failure is reported: load failures (not_found, io,
// parse) halt the run before any evaluation, the others surface as
// configuration, filter or output errors. No category is retried.
package errhandling

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorCategory represents the type/category of an error.
type ErrorCategory string

// Error categories for classification.
const (
	// CategoryNotFound represents a missing input file.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryIO represents an input that exists but cannot be read.
	CategoryIO ErrorCategory = "io"

	// CategoryParse represents an input whose content cannot be decoded.
	CategoryParse ErrorCategory = "parse"

	// CategoryValidation represents an invalid dashboard configuration.
	CategoryValidation ErrorCategory = "validation"

	// CategoryExpression represents a predicate or script that fails to compile or run.
	CategoryExpression ErrorCategory = "expression"

	// CategoryRender represents an output that cannot be written.
	CategoryRender ErrorCategory = "render"

	// CategoryCanceled represents a run stopped by its context.
	CategoryCanceled ErrorCategory = "canceled"

	// CategoryUnknown represents unclassified errors.
	CategoryUnknown ErrorCategory = "unknown"
)

// ClassifiedError wraps an error with classification metadata.
type ClassifiedError struct {
	// Category is the error classification category.
	Category ErrorCategory

	// Message is a human-readable error message.
	Message string

	// Path is the file involved, if any.
	Path string

	// OriginalErr is the underlying error that was classified.
	OriginalErr error
}

// Error implements the error interface. The original error is appended
// unless the message already carries it.
func (e *ClassifiedError) Error() string {
	msg := e.Message
	if e.OriginalErr != nil {
		if cause := e.OriginalErr.Error(); !strings.Contains(msg, cause) {
			msg += ": " + cause
		}
	}
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s: %s", e.Category, e.Path, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Category, msg)
}

// Unwrap returns the original error for use with errors.Is and errors.As.
func (e *ClassifiedError) Unwrap() error {
	return e.OriginalErr
}

// ClassifyError classifies any error into a ClassifiedError.
// Already classified errors are returned as-is.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return &ClassifiedError{Category: CategoryUnknown, Message: "nil error"}
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Category: CategoryCanceled, Message: err.Error(), OriginalErr: err}
	}

	if errors.Is(err, fs.ErrNotExist) {
		return &ClassifiedError{Category: CategoryNotFound, Message: err.Error(), Path: pathOf(err), OriginalErr: err}
	}

	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ClassifiedError{Category: CategoryParse, Message: err.Error(), OriginalErr: err}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &ClassifiedError{Category: CategoryIO, Message: err.Error(), Path: pathErr.Path, OriginalErr: err}
	}

	return &ClassifiedError{Category: CategoryUnknown, Message: err.Error(), OriginalErr: err}
}

func pathOf(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path
	}
	return ""
}

// GetErrorCategory returns the error category for a given error.
// Returns CategoryUnknown for nil or unclassified errors.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	return CategoryUnknown
}

// IsLoadFailure reports whether err means the dataset could not be loaded.
func IsLoadFailure(err error) bool {
	if err == nil {
		return false
	}
	switch ClassifyError(err).Category {
	case CategoryNotFound, CategoryIO, CategoryParse:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err belongs to a category that is reported to the
// user as a definite failure. Canceled and unknown errors return false.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch GetErrorCategory(err) {
	case CategoryNotFound, CategoryIO, CategoryParse, CategoryValidation, CategoryExpression, CategoryRender:
		return true
	default:
		return false
	}
}

// NewNotFoundError creates a ClassifiedError for a missing file.
func NewNotFoundError(path, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{Category: CategoryNotFound, Path: path, Message: message, OriginalErr: originalErr}
}

// NewIOError creates a ClassifiedError for an unreadable input.
func NewIOError(path, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{Category: CategoryIO, Path: path, Message: message, OriginalErr: originalErr}
}

// NewParseError creates a ClassifiedError for undecodable content.
func NewParseError(path, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{Category: CategoryParse, Path: path, Message: message, OriginalErr: originalErr}
}

// NewValidationError creates a ClassifiedError for invalid configuration.
func NewValidationError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{Category: CategoryValidation, Message: message, OriginalErr: originalErr}
}

// NewExpressionError creates a ClassifiedError for predicate failures.
func NewExpressionError(message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{Category: CategoryExpression, Message: message, OriginalErr: originalErr}
}

// NewRenderError creates a ClassifiedError for output failures.
func NewRenderError(path, message string, originalErr error) *ClassifiedError {
	return &ClassifiedError{Category: CategoryRender, Path: path, Message: message, OriginalErr: originalErr}
}
