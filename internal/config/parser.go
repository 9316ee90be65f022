package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile decodes a dashboard file. The format is taken from the
// extension and sniffed from the content otherwise.
func ParseFile(path string) *ParseResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return &ParseResult{
			FilePath: path,
			Format:   DetectFormat(path),
			Errors: []ParseError{{
				Path:    path,
				Type:    ErrorTypeIO,
				Message: fmt.Sprintf("failed to read file: %v", err),
			}},
		}
	}

	format := DetectFormat(path)
	if format == "" {
		format = sniffFormat(string(content))
	}
	result := ParseString(string(content), format)
	result.FilePath = path
	for i := range result.Errors {
		if result.Errors[i].Path == "" {
			result.Errors[i].Path = path
		}
	}
	return result
}

// ParseString decodes content in the given format. An empty format is
// sniffed from the content.
func ParseString(content, format string) *ParseResult {
	if format == "" {
		format = sniffFormat(content)
	}
	result := &ParseResult{Format: format}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, ParseError{
			Type:    ErrorTypeSyntax,
			Message: "empty content: expected a dashboard document",
		})
		return result
	}

	var data interface{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal([]byte(content), &data); err != nil {
			result.Errors = append(result.Errors, jsonParseError(err, content))
			return result
		}
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(content), &data); err != nil {
			result.Errors = append(result.Errors, yamlParseError(err))
			return result
		}
	default:
		result.Errors = append(result.Errors, ParseError{
			Type:    ErrorTypeFormat,
			Message: fmt.Sprintf("unsupported format %q", format),
		})
		return result
	}

	switch m := data.(type) {
	case nil:
		// comments only; validation reports the empty document
	case map[string]interface{}:
		result.Data = m
	default:
		result.Errors = append(result.Errors, ParseError{
			Type:    ErrorTypeFormat,
			Message: fmt.Sprintf("expected a mapping at the top level, got %T", data),
		})
	}
	return result
}

// DetectFormat returns the format implied by the file extension, or "".
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return ""
	}
}

// sniffFormat treats content starting with '{' as JSON and anything else as YAML.
func sniffFormat(content string) string {
	if strings.HasPrefix(strings.TrimSpace(content), "{") {
		return FormatJSON
	}
	return FormatYAML
}

func jsonParseError(err error, content string) ParseError {
	pe := ParseError{Type: ErrorTypeSyntax, Message: err.Error()}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		pe.Offset = syntaxErr.Offset
		pe.Line, pe.Column = offsetToLineColumn(content, syntaxErr.Offset)
	case errors.As(err, &typeErr):
		pe.Offset = typeErr.Offset
		pe.Line, pe.Column = offsetToLineColumn(content, typeErr.Offset)
		pe.Message = fmt.Sprintf("type error at field %q: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)
	}
	return pe
}

// offsetToLineColumn converts a byte offset to a 1-based line and column.
func offsetToLineColumn(content string, offset int64) (line, column int) {
	line, column = 1, 1
	for i := int64(0); i < offset && i < int64(len(content)); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

func yamlParseError(err error) ParseError {
	pe := ParseError{Type: ErrorTypeSyntax, Message: err.Error()}

	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		pe.Message = "YAML type error: " + strings.Join(typeErr.Errors, "; ")
	}
	if m := yamlLineRegex.FindStringSubmatch(err.Error()); m != nil {
		pe.Line, _ = strconv.Atoi(m[1])
	}
	return pe
}
