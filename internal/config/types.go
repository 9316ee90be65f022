// Package config parses, validates and converts dashboard definitions
// written in YAML or JSON.
package config

import (
	"fmt"
	"strings"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

// Error types for ParseError.
const (
	ErrorTypeIO     = "io"
	ErrorTypeSyntax = "syntax"
	ErrorTypeFormat = "format"
)

// Formats understood by the parser.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ParseResult is the outcome of decoding a document into a generic map.
type ParseResult struct {
	Data     map[string]interface{}
	Errors   []ParseError
	FilePath string
	Format   string
}

// IsValid reports whether decoding succeeded.
func (r *ParseResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ParseError is a decoding error with its location when known.
type ParseError struct {
	Path string
	// Line and Column are 1-based, 0 when unknown
	Line   int
	Column int
	Offset int64
	// Type is one of the ErrorType constants
	Type    string
	Message string
}

// Error implements the error interface.
func (e ParseError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, "line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&sb, ", column %d", e.Column)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// ValidationResult is the outcome of schema validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError locates a schema or conversion failure by JSON pointer,
// e.g. "/controls/x".
type ValidationError struct {
	Path    string
	Type    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Result is the combined outcome of loading a dashboard file.
type Result struct {
	Data      map[string]interface{}
	Dashboard *dashboard.Dashboard

	ParseErrors      []ParseError
	ValidationErrors []ValidationError

	FilePath string
	Format   string
}

// IsValid reports whether the dashboard was parsed, validated and converted.
func (r *Result) IsValid() bool {
	return len(r.ParseErrors) == 0 && len(r.ValidationErrors) == 0 && r.Dashboard != nil
}

// AllErrors returns parse errors followed by validation errors.
func (r *Result) AllErrors() []error {
	errs := make([]error, 0, len(r.ParseErrors)+len(r.ValidationErrors))
	for _, e := range r.ParseErrors {
		errs = append(errs, e)
	}
	for _, e := range r.ValidationErrors {
		errs = append(errs, e)
	}
	return errs
}

// Err summarises the result as a classified error: parse for decoding
// failures (io when the file could not be read), validation otherwise.
// It returns nil for a valid result.
func (r *Result) Err() error {
	if len(r.ParseErrors) > 0 {
		first := r.ParseErrors[0]
		if first.Type == ErrorTypeIO {
			return errhandling.NewIOError(r.FilePath, "cannot read dashboard", first)
		}
		return errhandling.NewParseError(r.FilePath, fmt.Sprintf("%d parse error(s)", len(r.ParseErrors)), first)
	}
	if len(r.ValidationErrors) > 0 {
		return errhandling.NewValidationError(fmt.Sprintf("%d validation error(s)", len(r.ValidationErrors)), r.ValidationErrors[0])
	}
	if r.Dashboard == nil {
		return errhandling.NewValidationError("configuration is empty", nil)
	}
	return nil
}
