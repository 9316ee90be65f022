// Package template expands {{variable}} placeholders in output file names,
// e.g. "out/{{dashboard}}-{{x}}-vs-{{y}}.png", with optional defaults:
// {{color | default: "none"}}.
package template

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/canectors/carexplorer/internal/logger"
)

// Template syntax constants
const (
	TemplatePrefix = "{{"
	TemplateSuffix = "}}"
)

// Error messages for template validation
const (
	ErrMsgInvalidTemplateSyntax = "invalid template syntax"
	ErrMsgEmptyVariablePath     = "empty variable name"
)

// Group 1: variable name, group 2: optional default clause, group 3: default value
var templateVarRegex = regexp.MustCompile(`\{\{\s*([^|}]+?)(\s*\|\s*default:\s*"([^"]*)")?\s*\}\}`)

var emptyBracesRegex = regexp.MustCompile(`\{\{\s*\}\}`)

// unsafePathChars are replaced in values substituted into a path.
var unsafePathChars = strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_", "\x00", "")

// Variable represents a parsed template variable
type Variable struct {
	FullMatch    string
	Name         string
	DefaultValue string
	HasDefault   bool
}

// Evaluator expands templates and caches parsed variables per template
// string. It is safe for concurrent use.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string][]Variable
}

// NewEvaluator creates a new template evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string][]Variable)}
}

// HasVariables checks if a string contains template variables.
func HasVariables(s string) bool {
	return strings.Contains(s, TemplatePrefix) && strings.Contains(s, TemplateSuffix)
}

// ParseVariables extracts all template variables from a template string.
func (e *Evaluator) ParseVariables(template string) []Variable {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.cache[template]; ok {
		return cached
	}

	matches := templateVarRegex.FindAllStringSubmatch(template, -1)
	variables := make([]Variable, 0, len(matches))
	for _, match := range matches {
		v := Variable{FullMatch: match[0], Name: strings.TrimSpace(match[1])}
		if match[2] != "" {
			v.DefaultValue = match[3]
			v.HasDefault = true
		}
		variables = append(variables, v)
	}
	e.cache[template] = variables
	return variables
}

// Evaluate replaces every variable with its value from vars. Missing or
// nil values use the default, or the empty string when there is none.
func (e *Evaluator) Evaluate(template string, vars map[string]interface{}) string {
	return e.expand(template, vars, func(s string) string { return s })
}

// EvaluatePath is Evaluate for file paths: substituted values cannot
// introduce directory separators, spaces or colons.
func (e *Evaluator) EvaluatePath(template string, vars map[string]interface{}) string {
	return e.expand(template, vars, unsafePathChars.Replace)
}

func (e *Evaluator) expand(template string, vars map[string]interface{}, escape func(string) string) string {
	if !HasVariables(template) {
		return template
	}
	result := template
	for _, v := range e.ParseVariables(template) {
		result = strings.Replace(result, v.FullMatch, escape(resolve(v, vars)), 1)
	}
	return result
}

func resolve(v Variable, vars map[string]interface{}) string {
	value, found := vars[v.Name]
	if !found || value == nil {
		if v.HasDefault {
			return v.DefaultValue
		}
		logger.Warn("template variable missing, using empty string", slog.String("variable", v.Name))
		return ""
	}
	return ValueToString(value)
}

// ValueToString converts any value to its string representation.
// Whole floats are printed without a decimal point.
func ValueToString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ValidateSyntax reports unmatched delimiters, empty variables and stray braces.
func ValidateSyntax(template string) error {
	openCount := strings.Count(template, TemplatePrefix)
	closeCount := strings.Count(template, TemplateSuffix)
	if openCount != closeCount {
		return fmt.Errorf("%s: unmatched template delimiters (found %d '{{' and %d '}}')",
			ErrMsgInvalidTemplateSyntax, openCount, closeCount)
	}
	if openCount == 0 {
		return nil
	}
	if emptyBracesRegex.MatchString(template) {
		return fmt.Errorf("%s: %s", ErrMsgInvalidTemplateSyntax, ErrMsgEmptyVariablePath)
	}
	remainder := templateVarRegex.ReplaceAllString(template, "")
	if strings.Contains(remainder, TemplatePrefix) || strings.Contains(remainder, TemplateSuffix) {
		return fmt.Errorf("%s: stray '{{' or '}}' found", ErrMsgInvalidTemplateSyntax)
	}
	return nil
}
