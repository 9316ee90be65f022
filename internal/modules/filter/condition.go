package filter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// ConditionConfig represents the configuration for a condition filter module.
type ConditionConfig struct {
	// Expression is evaluated against each record, e.g. `Cylinders >= 6 && Origin != "Japan"`
	Expression string `json:"expression"`
	// OnError specifies error handling mode: "fail" (default), "skip", "log"
	OnError string `json:"onError,omitempty"`
}

// ConditionModule keeps the records for which an expression is true.
// Columns are available by name; missing numbers are nil.
type ConditionModule struct {
	expression string
	onError    string
	program    *vm.Program
}

// NewConditionFromConfig compiles the expression.
func NewConditionFromConfig(config ConditionConfig) (*ConditionModule, error) {
	expression := strings.TrimSpace(config.Expression)
	if expression == "" {
		return nil, &PredicateError{Code: ErrCodeInvalidExpression, Module: "condition", Message: "expression cannot be empty", RecordIndex: -1}
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &PredicateError{
			Code:        ErrCodeInvalidExpression,
			Module:      "condition",
			Message:     fmt.Sprintf("invalid expression %q: %v", expression, err),
			RecordIndex: -1,
			Err:         err,
		}
	}

	onError := normalizeOnError("condition", config.OnError)
	logger.Debug("condition module initialized",
		slog.String("expression", expression),
		slog.String("on_error", onError),
	)
	return &ConditionModule{expression: expression, onError: onError, program: program}, nil
}

// ParseConditionConfig reads a condition configuration from module configuration.
func ParseConditionConfig(cfg *dashboard.ModuleConfig) (ConditionConfig, error) {
	if cfg == nil {
		return ConditionConfig{}, ErrNilConfig
	}
	expression, err := cfg.StringOption("expression", "")
	if err != nil {
		return ConditionConfig{}, err
	}
	if expression == "" {
		return ConditionConfig{}, fmt.Errorf("required field 'expression' is missing or empty in condition config")
	}
	onError, err := cfg.StringOption("onError", "")
	if err != nil {
		return ConditionConfig{}, err
	}
	return ConditionConfig{Expression: expression, OnError: onError}, nil
}

// Expression returns the compiled expression source.
func (c *ConditionModule) Expression() string {
	return c.expression
}

// Process keeps the records for which the expression is truthy.
func (c *ConditionModule) Process(ctx context.Context, records []dataset.Record) ([]dataset.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	result := make([]dataset.Record, 0, len(records))
	errorCount := 0

	for idx, r := range records {
		output, err := expr.Run(c.program, recordEnv(r))
		if err != nil {
			errorCount++
			if abort := handlePredicateError(c.onError, describe("condition", idx, r, err)); abort != nil {
				return nil, abort
			}
			continue
		}
		if toBool(output) {
			result = append(result, r)
		}
	}

	logger.Debug("filter processing completed",
		slog.String("module_type", "condition"),
		slog.Int("input_records", len(records)),
		slog.Int("output_records", len(result)),
		slog.Int("error_count", errorCount),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

var _ Module = (*ConditionModule)(nil)
