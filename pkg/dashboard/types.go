// Package dashboard provides the public types describing a dashboard run.
// External projects can use them to read run results or to build module
// configurations programmatically.
package dashboard

import (
	"fmt"
	"math"
	"time"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusError   = "error"
)

// ModuleConfig represents the configuration of a source, filter or output module.
type ModuleConfig struct {
	// Type identifies the module type (e.g., "csv", "condition", "chart")
	Type string `json:"type" yaml:"type"`

	// Config contains the module-specific configuration
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// String returns the module type, used in logs and error reports.
func (m *ModuleConfig) String() string {
	if m == nil {
		return "<nil>"
	}
	return m.Type
}

// StringOption returns the string option key, or def when the key is absent.
func (m *ModuleConfig) StringOption(key, def string) (string, error) {
	v, ok := m.lookup(key)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q must be a string, got %T", key, v)
	}
	return s, nil
}

// IntOption returns the integer option key, or def when the key is absent.
// Whole floats are accepted since JSON decodes every number as float64.
func (m *ModuleConfig) IntOption(key string, def int) (int, error) {
	v, ok := m.lookup(key)
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("option %q must be an integer, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("option %q must be an integer, got %T", key, v)
	}
}

// BoolOption returns the boolean option key, or def when the key is absent.
func (m *ModuleConfig) BoolOption(key string, def bool) (bool, error) {
	v, ok := m.lookup(key)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %q must be a boolean, got %T", key, v)
	}
	return b, nil
}

func (m *ModuleConfig) lookup(key string) (interface{}, bool) {
	if m == nil || m.Config == nil {
		return nil, false
	}
	v, ok := m.Config[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// RunResult summarises one evaluation of a dashboard.
type RunResult struct {
	// RunID uniquely identifies the run
	RunID string `json:"runId"`

	// Dashboard is the name of the evaluated dashboard
	Dashboard string `json:"dashboard"`

	// Status is "success", "empty" or "error"
	Status string `json:"status"`

	// DryRun is true when outputs were skipped
	DryRun bool `json:"dryRun,omitempty"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	// RecordsLoaded is the size of the loaded dataset
	RecordsLoaded int `json:"recordsLoaded"`

	// RecordsMatched is the size of the filtered subset
	RecordsMatched int `json:"recordsMatched"`

	// OutputsRendered counts outputs that completed
	OutputsRendered int `json:"outputsRendered"`

	// Notice explains an empty result
	Notice string `json:"notice,omitempty"`

	// Error contains error details if the run failed
	Error *RunError `json:"error,omitempty"`
}

// Duration returns the wall-clock time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunError contains details about a run failure.
type RunError struct {
	// Code is the error code (LOAD_FAILED, FILTER_FAILED, OUTPUT_FAILED, INVALID_INPUT)
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Module is the module type where the error occurred
	Module string `json:"module,omitempty"`

	// Category is the error classification (not_found, io, parse, ...)
	Category string `json:"category,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`
}
