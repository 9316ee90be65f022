// Package filter provides the extra record predicates a dashboard can add
// to the year and origin filter. They run before the horsepower bounds are
// derived, so they narrow the horsepower slider as well.
package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// OnError behavior constants
const (
	OnErrorFail = "fail"
	OnErrorSkip = "skip"
	OnErrorLog  = "log"
)

// Error codes carried by PredicateError
const (
	ErrCodeInvalidExpression = "INVALID_EXPRESSION"
	ErrCodeEvaluationFailed  = "EVALUATION_FAILED"
	ErrCodeScriptInvalid     = "SCRIPT_INVALID"
	ErrCodeExecutionFailed   = "EXECUTION_FAILED"
)

// ErrNilConfig is returned when a constructor receives no configuration.
var ErrNilConfig = errors.New("filter configuration is nil")

// Module represents a filter module. Process must return a subset of
// records in input order.
type Module interface {
	Process(ctx context.Context, records []dataset.Record) ([]dataset.Record, error)
}

// PredicateError carries context for a predicate that could not be evaluated.
type PredicateError struct {
	Code        string
	Module      string
	Message     string
	RecordIndex int
	RecordName  string
	Err         error
}

func (e *PredicateError) Error() string {
	return e.Message
}

func (e *PredicateError) Unwrap() error {
	return e.Err
}

// normalizeOnError maps an unknown or empty mode to fail.
func normalizeOnError(moduleType, onError string) string {
	switch onError {
	case "":
		return OnErrorFail
	case OnErrorFail, OnErrorSkip, OnErrorLog:
		return onError
	default:
		logger.Warn("invalid onError value; defaulting to fail",
			slog.String("module_type", moduleType),
			slog.String("on_error", onError),
		)
		return OnErrorFail
	}
}

// handlePredicateError applies the onError mode to a failed record.
// It returns the error to abort with, or nil to drop the record and go on.
func handlePredicateError(onError string, err *PredicateError) error {
	switch onError {
	case OnErrorSkip:
		logger.Warn("skipping record due to predicate error",
			slog.String("module_type", err.Module),
			slog.Int("record_index", err.RecordIndex),
			slog.String("record", err.RecordName),
			slog.String("error", err.Message),
		)
		return nil
	case OnErrorLog:
		logger.Error("predicate error (continuing)",
			slog.String("module_type", err.Module),
			slog.Int("record_index", err.RecordIndex),
			slog.String("record", err.RecordName),
			slog.String("error", err.Message),
		)
		return nil
	default:
		return err
	}
}

// recordEnv exposes a record to predicates keyed by column name.
// Missing numbers are nil.
func recordEnv(r dataset.Record) map[string]interface{} {
	env := make(map[string]interface{}, len(dataset.Columns))
	for _, c := range dataset.Columns {
		v := r.Value(c)
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			v = nil
		}
		env[string(c)] = v
	}
	return env
}

// toBool converts a predicate result to boolean.
func toBool(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	case string:
		return v != ""
	default:
		return true
	}
}

func describe(moduleType string, idx int, r dataset.Record, cause error) *PredicateError {
	return &PredicateError{
		Code:        ErrCodeEvaluationFailed,
		Module:      moduleType,
		Message:     fmt.Sprintf("%s evaluation failed at record %d (%s): %v", moduleType, idx, r.Name, cause),
		RecordIndex: idx,
		RecordName:  r.Name,
		Err:         cause,
	}
}
