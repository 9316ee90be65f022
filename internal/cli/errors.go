// Package cli provides CLI output formatting and display functions.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/canectors/carexplorer/internal/config"
)

// Writers used by the print functions. Diagnostics and run summaries go to
// stderr so that stdout carries only dashboard output.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// PrintParseErrors prints parse errors to stderr.
func PrintParseErrors(errors []config.ParseError, verbose bool) {
	fmt.Fprintln(stderr, "✗ Parse errors:")
	for _, err := range errors {
		printSingleParseError(err, verbose)
	}
}

// printSingleParseError prints a single parse error with location information.
func printSingleParseError(err config.ParseError, verbose bool) {
	location := formatErrorLocation(err.Path, err.Line, err.Column)

	if location != "" {
		fmt.Fprintf(stderr, "  %s: %s\n", location, err.Message)
	} else {
		fmt.Fprintf(stderr, "  %s\n", err.Message)
	}

	if verbose && err.Type != "" {
		fmt.Fprintf(stderr, "    Type: %s\n", err.Type)
	}
}

// formatErrorLocation formats the error location string (path:line:column).
func formatErrorLocation(path string, line, column int) string {
	if path == "" {
		return ""
	}

	location := path
	if line > 0 {
		location += fmt.Sprintf(":%d", line)
		if column > 0 {
			location += fmt.Sprintf(":%d", column)
		}
	}
	return location
}

// PrintValidationErrors prints validation errors to stderr.
func PrintValidationErrors(errors []config.ValidationError, verbose, quiet bool) {
	fmt.Fprintln(stderr, "✗ Validation errors:")
	for _, err := range errors {
		path := err.Path
		if path == "" {
			path = "/"
		}
		if verbose {
			fmt.Fprintf(stderr, "  %s:\n", path)
			fmt.Fprintf(stderr, "    Message: %s\n", err.Message)
			if err.Type != "" {
				fmt.Fprintf(stderr, "    Type: %s\n", err.Type)
			}
			continue
		}
		fmt.Fprintf(stderr, "  %s: %s\n", path, truncate(err.Message, 80))
	}
	if !quiet && !verbose {
		fmt.Fprintln(stderr, "")
		fmt.Fprintln(stderr, "Hint: Use --verbose for detailed error information")
	}
}

// PrintConfigErrors prints whichever errors a failed load produced.
func PrintConfigErrors(result *config.Result, verbose, quiet bool) {
	if len(result.ParseErrors) > 0 {
		PrintParseErrors(result.ParseErrors, verbose)
		return
	}
	if len(result.ValidationErrors) > 0 {
		PrintValidationErrors(result.ValidationErrors, verbose, quiet)
		return
	}
	if result.Dashboard == nil {
		fmt.Fprintln(stderr, "✗ Configuration is empty")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
