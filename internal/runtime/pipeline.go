// Package runtime provides the dashboard execution engine.
// It loads the source, evaluates the filter-and-aggregate pipeline through
// a session and hands the resulting view to the output modules.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/explore"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/internal/modules/filter"
	"github.com/canectors/carexplorer/internal/modules/output"
	"github.com/canectors/carexplorer/internal/modules/source"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

// Stage names used in logs.
const (
	StageLoad     = "load"
	StageEvaluate = "evaluate"
	StageOutput   = "output"
)

// stageTimings holds timing measurements for each execution stage
type stageTimings struct {
	load     time.Duration
	evaluate time.Duration
	output   time.Duration
}

// Executor runs dashboards: Source → Session (filters, bounds, aggregates) → Outputs.
//
// The dataset is loaded once, on the first run, and kept in a session
// together with the horsepower selection. Later runs re-evaluate the same
// dataset, which is what the watch command relies on when only controls
// change. Runs are serialised.
type Executor struct {
	mu sync.Mutex

	sourceModule  source.Module
	filterModules []filter.Module
	outputModules []output.Module
	dryRun        bool

	session *explore.Session
	// loadErr is the failure of the last load; the source is dropped with it
	loadErr error
}

// NewExecutor creates an executor with only the dry-run flag set.
// Modules must be provided with SetModules before running.
func NewExecutor(dryRun bool) *Executor {
	return &Executor{dryRun: dryRun}
}

// NewExecutorWithModules creates an executor with all modules configured.
//
// Parameters:
//   - src: the module that loads the dataset
//   - filters: optional extra stage-one predicates (can be nil)
//   - outputs: the renderers, skipped in dry-run mode
//   - dryRun: if true, outputs are not rendered
func NewExecutorWithModules(src source.Module, filters []filter.Module, outputs []output.Module, dryRun bool) *Executor {
	return &Executor{
		sourceModule:  src,
		filterModules: filters,
		outputModules: outputs,
		dryRun:        dryRun,
	}
}

// SetModules replaces the modules. A new source drops the loaded dataset
// and any earlier load failure; passing a nil source keeps the current one.
func (e *Executor) SetModules(src source.Module, filters []filter.Module, outputs []output.Module) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if src != nil {
		if e.sourceModule != nil && e.session == nil {
			e.closeModule("", "source", e.sourceModule)
		}
		e.sourceModule = src
		e.session = nil
		e.loadErr = nil
	}
	e.filterModules = filters
	if e.session != nil {
		e.session.SetFilters(recordFilters(filters)...)
	}
	for _, m := range e.outputModules {
		e.closeModule("", "output", m)
	}
	e.outputModules = outputs
}

// ResetSelection forgets the horsepower selection carried by the loaded
// dataset, if any.
func (e *Executor) ResetSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Reset()
	}
}

// Close releases the output modules, and the source when it was never loaded.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, m := range e.outputModules {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.outputModules = nil
	if e.sourceModule != nil && e.session == nil {
		if err := e.sourceModule.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Execute runs a dashboard with a background context.
func (e *Executor) Execute(d *dashboard.Dashboard) (*dashboard.RunResult, error) {
	return e.ExecuteWithContext(context.Background(), d)
}

// ExecuteWithContext runs a dashboard with the given context.
//
// Execution flow:
//  1. Validate the dashboard and modules
//  2. Load the dataset through the source module (first run only)
//  3. Evaluate the controls in the session
//  4. Render every output module in order (unless dry-run mode)
//  5. Return a RunResult with status and counts
//
// An empty result is not an error: the run ends with status "empty" and the
// outputs still receive the view so they can report the notice.
func (e *Executor) ExecuteWithContext(ctx context.Context, d *dashboard.Dashboard) (*dashboard.RunResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	startedAt := time.Now()
	result := &dashboard.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: startedAt,
		Status:    dashboard.StatusError,
		DryRun:    e.dryRun,
	}
	var timings stageTimings

	if err := e.validateExecution(d, result); err != nil {
		return result, err
	}
	result.Dashboard = d.Name

	runCtx := logger.RunContext{
		RunID:       result.RunID,
		Dashboard:   d.Name,
		DryRun:      e.dryRun,
		ModuleIndex: -1,
	}
	logger.LogRunStart(runCtx)

	controls, err := BuildControls(d.Controls, d.Aggregates)
	if err != nil {
		result.CompletedAt = time.Now()
		result.Error = buildRunError(ErrCodeInvalidInput, "", err)
		logger.LogRunEnd(runCtx, dashboard.StatusError, 0, time.Since(startedAt))
		return result, err
	}

	session, loadDuration, err := e.executeLoad(ctx, runCtx, result)
	timings.load = loadDuration
	if err != nil {
		logger.LogRunEnd(runCtx, dashboard.StatusError, 0, time.Since(startedAt))
		return result, err
	}
	result.RecordsLoaded = session.Dataset().Len()

	view, evalDuration, err := e.executeEvaluate(ctx, runCtx, session, controls, result)
	timings.evaluate = evalDuration
	if err != nil {
		logger.LogRunEnd(runCtx, dashboard.StatusError, 0, time.Since(startedAt))
		return result, err
	}
	result.RecordsMatched = len(view.Records)

	outputDuration, err := e.executeOutputs(ctx, runCtx, output.Run{ID: result.RunID, Dashboard: d.Name, View: view}, result)
	timings.output = outputDuration
	if err != nil {
		logger.LogRunEnd(runCtx, dashboard.StatusError, result.RecordsMatched, time.Since(startedAt))
		return result, err
	}

	e.finalize(runCtx, result, view, timings)
	return result, nil
}

// validateExecution checks the dashboard and modules before running.
func (e *Executor) validateExecution(d *dashboard.Dashboard, result *dashboard.RunResult) error {
	var err error
	module := ""
	code := ErrCodeInvalidInput
	switch {
	case d == nil:
		err = ErrNilDashboard
	case e.loadErr != nil && e.session == nil:
		err, module, code = fmt.Errorf("%w: %w", ErrDatasetNotLoaded, e.loadErr), "source", ErrCodeLoadFailed
	case e.sourceModule == nil && e.session == nil:
		err, module = ErrNilSourceModule, "source"
	case len(e.outputModules) == 0 && !e.dryRun:
		err, module = ErrNoOutputModules, "output"
	default:
		return nil
	}
	logger.Error("run rejected", slog.String("code", code), slog.String("error", err.Error()))
	result.CompletedAt = time.Now()
	result.Error = buildRunError(code, module, err)
	return err
}

// executeLoad returns the session, loading the dataset when needed. The
// source module is closed as soon as the load completes, and dropped when
// the load fails so that it is never loaded twice.
func (e *Executor) executeLoad(ctx context.Context, runCtx logger.RunContext, result *dashboard.RunResult) (*explore.Session, time.Duration, error) {
	if e.session != nil {
		logger.Debug("reusing loaded dataset",
			slog.String("run_id", runCtx.RunID),
			slog.Int("records", e.session.Dataset().Len()),
		)
		return e.session, 0, nil
	}

	stageCtx := runCtx
	stageCtx.Stage = StageLoad
	stageCtx.ModuleType = fmt.Sprintf("%T", e.sourceModule)
	logger.LogStageStart(stageCtx)

	start := time.Now()
	var (
		session *explore.Session
		err     error
	)
	if err = ctx.Err(); err == nil {
		ds, loadErr := e.sourceModule.Load(ctx)
		if loadErr != nil {
			err = loadErr
		} else {
			session = explore.NewSession(ds, recordFilters(e.filterModules)...)
		}
	}
	duration := time.Since(start)
	e.closeModule(runCtx.RunID, "source", e.sourceModule)

	if err != nil {
		e.sourceModule = nil
		e.loadErr = err
		result.CompletedAt = time.Now()
		result.Error = buildRunError(ErrCodeLoadFailed, "source", err)
		logger.LogStageEnd(stageCtx, 0, duration, &logger.StageError{Code: ErrCodeLoadFailed, Message: err.Error()})
		logger.LogError("dataset load failed", logger.ErrorContext{
			RunID:     runCtx.RunID,
			Dashboard: runCtx.Dashboard,
			Stage:     StageLoad,
			ErrorCode: ErrCodeLoadFailed,
			Err:       err,
			Path:      errhandling.ClassifyError(err).Path,
			Duration:  duration,
		})
		return nil, duration, fmt.Errorf("loading dataset: %w", err)
	}

	e.session = session
	logger.LogStageEnd(stageCtx, session.Dataset().Len(), duration, nil)
	return session, duration, nil
}

// executeEvaluate applies the controls to the session.
func (e *Executor) executeEvaluate(ctx context.Context, runCtx logger.RunContext, session *explore.Session, controls explore.Controls, result *dashboard.RunResult) (*explore.View, time.Duration, error) {
	stageCtx := runCtx
	stageCtx.Stage = StageEvaluate
	logger.LogStageStart(stageCtx)

	if sel, ok := session.Selection(); ok && controls.Horsepower == nil {
		logger.WithRun(stageCtx).Debug("applying carried horsepower selection",
			slog.String("selection", sel.String()),
		)
	}

	start := time.Now()
	view, err := session.Apply(ctx, controls)
	duration := time.Since(start)

	if err != nil {
		err = classifyEvaluateError(err)
		result.CompletedAt = time.Now()
		result.Error = buildRunError(ErrCodeFilterFailed, "filter", err)
		logger.LogStageEnd(stageCtx, 0, duration, &logger.StageError{Code: ErrCodeFilterFailed, Message: err.Error()})
		return nil, duration, fmt.Errorf("evaluating dashboard: %w", err)
	}

	if view.Empty {
		logger.Info("no data matches the current selection",
			slog.String("run_id", runCtx.RunID),
			slog.String("notice", view.Notice),
			slog.Int("stage_one_count", view.StageOneCount),
		)
	}
	logger.LogStageEnd(stageCtx, len(view.Records), duration, nil)
	return view, duration, nil
}

// executeOutputs renders every output in order and stops at the first
// failure. In dry-run mode nothing is rendered.
func (e *Executor) executeOutputs(ctx context.Context, runCtx logger.RunContext, run output.Run, result *dashboard.RunResult) (time.Duration, error) {
	if e.dryRun {
		logger.Debug("dry-run mode: skipping output modules",
			slog.String("run_id", runCtx.RunID),
			slog.Int("outputs", len(e.outputModules)),
			slog.Int("records_matched", len(run.View.Records)),
		)
		return 0, nil
	}

	stageCtx := runCtx
	stageCtx.Stage = StageOutput
	logger.LogStageStart(stageCtx)

	log := logger.WithRun(stageCtx)
	start := time.Now()
	for i, m := range e.outputModules {
		if m == nil {
			log.Warn("nil output module encountered; skipping", slog.Int("output_index", i))
			continue
		}
		moduleStart := time.Now()
		if err := m.Render(ctx, run); err != nil {
			duration := time.Since(start)
			result.CompletedAt = time.Now()
			result.Error = buildRunError(ErrCodeOutputFailed, fmt.Sprintf("%T", m), err)
			result.Error.Details = mergeDetails(result.Error.Details, "outputIndex", i)
			logger.LogStageEnd(stageCtx, result.OutputsRendered, duration, &logger.StageError{Code: ErrCodeOutputFailed, Message: err.Error()})
			return duration, fmt.Errorf("output %d failed: %w", i, err)
		}
		result.OutputsRendered++
		log.Debug("output module completed",
			slog.Int("output_index", i),
			slog.Duration("duration", time.Since(moduleStart)),
		)
	}
	duration := time.Since(start)
	logger.LogStageEnd(stageCtx, result.OutputsRendered, duration, nil)
	return duration, nil
}

// finalize sets the final status and logs the metrics.
func (e *Executor) finalize(runCtx logger.RunContext, result *dashboard.RunResult, view *explore.View, timings stageTimings) {
	result.CompletedAt = time.Now()
	result.Status = dashboard.StatusSuccess
	if view.Empty {
		result.Status = dashboard.StatusEmpty
		result.Notice = view.Notice
	}
	total := result.CompletedAt.Sub(result.StartedAt)

	logger.LogMetrics(runCtx, logger.RunMetrics{
		TotalDuration:    total,
		LoadDuration:     timings.load,
		EvaluateDuration: timings.evaluate,
		OutputDuration:   timings.output,
		RecordsLoaded:    result.RecordsLoaded,
		RecordsMatched:   result.RecordsMatched,
		OutputsRendered:  result.OutputsRendered,
	})
	logger.LogRunEnd(runCtx, result.Status, result.RecordsMatched, total)
}

// moduleCloser interface for modules that can be closed.
type moduleCloser interface {
	Close() error
}

// closeModule closes a module and logs any error.
func (e *Executor) closeModule(runID, moduleName string, m moduleCloser) {
	if m == nil {
		return
	}
	if err := m.Close(); err != nil {
		logger.Warn("failed to close module",
			slog.String("run_id", runID),
			slog.String("module", moduleName),
			slog.String("error", err.Error()),
		)
	}
}

// recordFilters adapts filter modules to the session's filter interface.
// Nil entries stay in place so that failure indexes match the config.
func recordFilters(filters []filter.Module) []explore.RecordFilter {
	out := make([]explore.RecordFilter, len(filters))
	for i, f := range filters {
		if f != nil {
			out[i] = f
		}
	}
	return out
}

func mergeDetails(details map[string]interface{}, key string, value interface{}) map[string]interface{} {
	if details == nil {
		details = make(map[string]interface{}, 1)
	}
	details[key] = value
	return details
}
