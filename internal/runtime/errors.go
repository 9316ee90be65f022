package runtime

import (
	"errors"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/explore"
	"github.com/canectors/carexplorer/internal/modules/filter"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

// Error codes for run failures
const (
	ErrCodeLoadFailed   = "LOAD_FAILED"
	ErrCodeFilterFailed = "FILTER_FAILED"
	ErrCodeOutputFailed = "OUTPUT_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
)

// Common errors
var (
	// ErrNilDashboard is returned when the dashboard definition is nil
	ErrNilDashboard = errors.New("dashboard definition is nil")

	// ErrNilSourceModule is returned when no source module is set
	ErrNilSourceModule = errors.New("source module is nil")

	// ErrNoOutputModules is returned when a non dry-run has nothing to render
	ErrNoOutputModules = errors.New("no output modules configured")

	// ErrDatasetNotLoaded is returned after a failed load until a new
	// source is set
	ErrDatasetNotLoaded = errors.New("dataset not loaded; change the source to load it again")
)

// buildRunError creates a RunError carrying the error's category.
func buildRunError(code, module string, err error) *dashboard.RunError {
	re := &dashboard.RunError{
		Code:     code,
		Message:  err.Error(),
		Module:   module,
		Category: string(errhandling.ClassifyError(err).Category),
	}

	details := map[string]interface{}{}
	if cl := errhandling.ClassifyError(err); cl.Path != "" {
		details["path"] = cl.Path
	}
	var fe *explore.FilterError
	if errors.As(err, &fe) {
		details["filterIndex"] = fe.Index
	}
	var pe *filter.PredicateError
	if errors.As(err, &pe) {
		details["predicateCode"] = pe.Code
		if pe.RecordName != "" {
			details["record"] = pe.RecordName
		}
	}
	if len(details) > 0 {
		re.Details = details
	}
	return re
}

// classifyEvaluateError gives evaluation failures a category: extra filter
// failures are expression errors, cancellation keeps its own category.
func classifyEvaluateError(err error) error {
	var fe *explore.FilterError
	if errors.As(err, &fe) && errhandling.GetErrorCategory(err) == errhandling.CategoryUnknown {
		return errhandling.NewExpressionError(fe.Error(), err)
	}
	return err
}
