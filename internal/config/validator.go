package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/dashboard-schema.json
var embeddedSchema []byte

const schemaURL = "https://canectors.io/schemas/carexplorer/v1/dashboard-schema.json"

var messages = message.NewPrinter(language.English)

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaInitErr  error
)

// GetEmbeddedSchema returns the embedded dashboard schema.
func GetEmbeddedSchema() []byte {
	return embeddedSchema
}

// getCompiledSchema compiles the embedded schema once.
func getCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(embeddedSchema))
		if err != nil {
			schemaInitErr = fmt.Errorf("failed to parse embedded schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			schemaInitErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiledSchema, schemaInitErr = compiler.Compile(schemaURL)
		if schemaInitErr != nil {
			schemaInitErr = fmt.Errorf("failed to compile schema: %w", schemaInitErr)
		}
	})
	return compiledSchema, schemaInitErr
}

// ValidateConfig validates parsed configuration data against the dashboard schema.
func ValidateConfig(data map[string]interface{}) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(data) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Path:    "/",
			Type:    "required",
			Message: "configuration is empty",
		})
		return result
	}

	schema, err := getCompiledSchema()
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Path:    "/",
			Type:    "schema",
			Message: fmt.Sprintf("failed to load schema: %v", err),
		})
		return result
	}

	if err := schema.Validate(data); err != nil {
		result.Valid = false
		var detailed *jsonschema.ValidationError
		if errors.As(err, &detailed) {
			result.Errors = convertValidationErrors(detailed)
		}
		if len(result.Errors) == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Path:    "/",
				Type:    "validation",
				Message: err.Error(),
			})
		}
	}
	return result
}

// convertValidationErrors flattens the leaf causes of a schema error.
func convertValidationErrors(err *jsonschema.ValidationError) []ValidationError {
	if len(err.Causes) == 0 {
		return []ValidationError{{
			Path:    formatInstanceLocation(err.InstanceLocation),
			Type:    extractErrorType(err),
			Message: describeKind(err),
		}}
	}
	var out []ValidationError
	for _, cause := range err.Causes {
		out = append(out, convertValidationErrors(cause)...)
	}
	return out
}

func formatInstanceLocation(loc []string) string {
	if len(loc) == 0 {
		return "/"
	}
	return "/" + strings.Join(loc, "/")
}

// describeKind renders the failed keyword without the error tree header.
func describeKind(err *jsonschema.ValidationError) string {
	if err.ErrorKind == nil {
		return err.Error()
	}
	return err.ErrorKind.LocalizedString(messages)
}

// extractErrorType returns the schema keyword that failed, e.g. "required" or "type".
func extractErrorType(err *jsonschema.ValidationError) string {
	if err.ErrorKind == nil {
		return "validation"
	}
	path := err.ErrorKind.KeywordPath()
	if len(path) == 0 {
		return "validation"
	}
	switch kw := path[len(path)-1]; kw {
	case "minimum", "maximum", "minItems", "maxItems", "minLength":
		return "range"
	default:
		return kw
	}
}
