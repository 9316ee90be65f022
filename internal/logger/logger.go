// Package logger provides structured logging functionality.
// It wraps the standard log/slog package for consistent logging across the explorer.
//
// Run helpers (run start/end, stage start/end, metrics, errors) attach the
// same snake_case fields everywhere so that a run can be followed from the
// dataset load to the last rendered output.
//
// The package supports two output formats:
//   - JSON (default): Machine-readable structured logging
//   - Human: Human-readable console output with colors and prefixes
//
// Logs go to stderr; stdout is reserved for the console output module.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger is the default logger instance.
var Logger *slog.Logger

// logWriter is the console destination of the logger.
var logWriter io.Writer = os.Stderr

func init() {
	Logger = slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// WithModule returns a logger with module context.
func WithModule(moduleKind string, moduleType string) *slog.Logger {
	return Logger.With("module_kind", moduleKind, "module_type", moduleType)
}

// =============================================================================
// Run Context Types
// =============================================================================

// RunContext contains context information for run logging.
type RunContext struct {
	// RunID identifies one evaluation of the dashboard (required)
	RunID string
	// Dashboard is the human-readable dashboard name
	Dashboard string
	// Stage is the current stage (load, filter, aggregate, output)
	Stage string
	// ModuleType is the type of module being executed (csv, chart, ...)
	ModuleType string
	// DryRun indicates that outputs are not rendered
	DryRun bool
	// ModuleIndex is the position of the module in its stage (-1 when unset)
	ModuleIndex int
}

// StageError contains structured error information for stage logging.
type StageError struct {
	// Code is the error code (e.g. LOAD_FAILED)
	Code string
	// Message is the human-readable error message
	Message string
}

// ErrorContext contains structured context for error logging.
type ErrorContext struct {
	RunID      string
	Dashboard  string
	Stage      string
	ModuleType string

	ErrorCode    string
	ErrorMessage string
	Err          error

	// Path is the file involved in the failure, if any
	Path     string
	Duration time.Duration

	Extra map[string]any
}

// RunMetrics contains performance metrics for a run.
type RunMetrics struct {
	TotalDuration    time.Duration
	LoadDuration     time.Duration
	EvaluateDuration time.Duration
	OutputDuration   time.Duration
	RecordsLoaded    int
	RecordsMatched   int
	OutputsRendered  int
}

// =============================================================================
// Run Context Helpers
// =============================================================================

// WithRun returns a logger with run context attached.
// Only non-empty fields are included.
func WithRun(ctx RunContext) *slog.Logger {
	return Logger.With(buildContextAttrs(ctx)...)
}

// LogRunStart logs the start of a dashboard run.
func LogRunStart(ctx RunContext) {
	Logger.Info("run started", buildContextAttrs(ctx)...)
}

// LogRunEnd logs the completion of a dashboard run.
func LogRunEnd(ctx RunContext, status string, recordsMatched int, duration time.Duration) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.String("status", status),
		slog.Int("records_matched", recordsMatched),
		slog.Duration("duration", duration),
	)
	Logger.Info("run completed", attrs...)
}

// LogStageStart logs the start of a stage.
func LogStageStart(ctx RunContext) {
	Logger.Info("stage started", buildContextAttrs(ctx)...)
}

// LogStageEnd logs the completion of a stage.
// If err is non-nil, logs as an error with error details.
func LogStageEnd(ctx RunContext, recordCount int, duration time.Duration, err *StageError) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.Int("record_count", recordCount),
		slog.Duration("duration", duration),
	)

	if err != nil {
		attrs = append(attrs,
			slog.String("error_code", err.Code),
			slog.String("error", err.Message),
		)
		Logger.Error("stage failed", attrs...)
		return
	}
	Logger.Info("stage completed", attrs...)
}

// LogMetrics logs run metrics.
func LogMetrics(ctx RunContext, metrics RunMetrics) {
	attrs := buildContextAttrs(ctx)
	attrs = append(attrs,
		slog.Duration("total_duration", metrics.TotalDuration),
		slog.Duration("load_duration", metrics.LoadDuration),
		slog.Duration("evaluate_duration", metrics.EvaluateDuration),
		slog.Duration("output_duration", metrics.OutputDuration),
		slog.Int("records_loaded", metrics.RecordsLoaded),
		slog.Int("records_matched", metrics.RecordsMatched),
		slog.Int("outputs_rendered", metrics.OutputsRendered),
	)
	Logger.Info("run metrics", attrs...)
}

// LogError logs an error with full run context.
func LogError(message string, errCtx ErrorContext) {
	attrs := make([]any, 0, 16)

	if errCtx.RunID != "" {
		attrs = append(attrs, slog.String("run_id", errCtx.RunID))
	}
	if errCtx.Dashboard != "" {
		attrs = append(attrs, slog.String("dashboard", errCtx.Dashboard))
	}
	if errCtx.Stage != "" {
		attrs = append(attrs, slog.String("stage", errCtx.Stage))
	}
	if errCtx.ModuleType != "" {
		attrs = append(attrs, slog.String("module_type", errCtx.ModuleType))
	}
	if errCtx.ErrorCode != "" {
		attrs = append(attrs, slog.String("error_code", errCtx.ErrorCode))
	}
	if errCtx.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", errCtx.ErrorMessage))
	}
	if errCtx.Err != nil {
		attrs = append(attrs, slog.String("error_type", fmt.Sprintf("%T", errCtx.Err)))

		chain := []string{errCtx.Err.Error()}
		for current := errors.Unwrap(errCtx.Err); current != nil; current = errors.Unwrap(current) {
			chain = append(chain, current.Error())
		}
		if len(chain) > 1 {
			attrs = append(attrs, slog.String("error_chain", strings.Join(chain, " -> ")))
		}
	}
	if errCtx.Path != "" {
		attrs = append(attrs, slog.String("path", errCtx.Path))
	}
	if errCtx.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", errCtx.Duration))
	}
	for k, v := range errCtx.Extra {
		attrs = append(attrs, slog.Any(k, v))
	}

	Logger.Error(message, attrs...)
}

// buildContextAttrs builds slog attributes from a RunContext.
func buildContextAttrs(ctx RunContext) []any {
	attrs := make([]any, 0, 6)
	attrs = append(attrs, slog.String("run_id", ctx.RunID))

	if ctx.Dashboard != "" {
		attrs = append(attrs, slog.String("dashboard", ctx.Dashboard))
	}
	if ctx.Stage != "" {
		attrs = append(attrs, slog.String("stage", ctx.Stage))
	}
	if ctx.ModuleType != "" {
		attrs = append(attrs, slog.String("module_type", ctx.ModuleType))
	}
	if ctx.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	if ctx.ModuleIndex >= 0 {
		attrs = append(attrs, slog.Int("module_index", ctx.ModuleIndex))
	}
	return attrs
}

// =============================================================================
// Human-Readable Log Format Support
// =============================================================================

// OutputFormat represents the log output format
type OutputFormat int

const (
	// FormatJSON is the default machine-readable JSON format
	FormatJSON OutputFormat = iota
	// FormatHuman is a human-readable console format with colors and prefixes
	FormatHuman
)

// ParseFormat maps a flag value ("json", "human") to an OutputFormat.
func ParseFormat(name string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "human", "text":
		return FormatHuman, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format %q (expected json or human)", name)
	}
}

// SetLevelAndFormat sets both the log level and format.
func SetLevelAndFormat(level slog.Level, format OutputFormat) {
	Logger = slog.New(newConsoleHandler(logWriter, level, format))
}

func newConsoleHandler(w io.Writer, level slog.Level, format OutputFormat) slog.Handler {
	if format == FormatHuman {
		return NewHumanHandler(w, &HumanHandlerOptions{
			Level:     level,
			UseColors: isTerminal(w),
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// isTerminal returns true if the writer is a terminal (supports colors)
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil {
			return false
		}
		return (fi.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// HumanHandlerOptions configures the human-readable log handler.
type HumanHandlerOptions struct {
	// Level is the minimum log level to output
	Level slog.Level
	// UseColors enables ANSI color codes
	UseColors bool
}

// HumanHandler is a slog handler that outputs human-readable log messages.
type HumanHandler struct {
	opts   HumanHandlerOptions
	writer io.Writer
	attrs  []slog.Attr
	groups []string
}

// NewHumanHandler creates a new human-readable log handler.
func NewHumanHandler(w io.Writer, opts *HumanHandlerOptions) *HumanHandler {
	if opts == nil {
		opts = &HumanHandlerOptions{Level: slog.LevelInfo}
	}
	return &HumanHandler{
		opts:   *opts,
		writer: w,
	}
}

// Enabled returns true if the handler is enabled for the given level.
func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// maxInlineAttrs caps the attributes printed on one line.
const maxInlineAttrs = 5

// Handle outputs a log record in human-readable format.
func (h *HumanHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	sb.WriteString(r.Time.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(h.levelPrefix(r.Level, r.Message))
	sb.WriteString(" ")
	sb.WriteString(r.Message)

	var keyAttrs []string
	r.Attrs(func(a slog.Attr) bool {
		keyAttrs = append(keyAttrs, h.formatAttr(a))
		return true
	})
	for _, a := range h.attrs {
		keyAttrs = append(keyAttrs, h.formatAttr(a))
	}

	if len(keyAttrs) > 0 {
		sb.WriteString(" ")
		n := min(len(keyAttrs), maxInlineAttrs)
		sb.WriteString(strings.Join(keyAttrs[:n], " "))
		if len(keyAttrs) > maxInlineAttrs {
			sb.WriteString(fmt.Sprintf(" (+%d more)", len(keyAttrs)-maxInlineAttrs))
		}
	}

	sb.WriteString("\n")
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

// WithAttrs returns a new handler with the given attributes added.
func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &HumanHandler{opts: h.opts, writer: h.writer, attrs: merged, groups: h.groups}
}

// WithGroup returns a new handler with the given group name.
func (h *HumanHandler) WithGroup(name string) slog.Handler {
	groups := append(append([]string{}, h.groups...), name)
	return &HumanHandler{opts: h.opts, writer: h.writer, attrs: h.attrs, groups: groups}
}

// levelPrefix returns the level marker; info messages that report a
// completion get a check mark.
func (h *HumanHandler) levelPrefix(level slog.Level, message string) string {
	lower := strings.ToLower(message)
	isSuccess := strings.Contains(lower, "completed") ||
		strings.Contains(lower, "rendered") ||
		strings.Contains(lower, "loaded")

	const (
		colorReset  = "\033[0m"
		colorRed    = "\033[31m"
		colorYellow = "\033[33m"
		colorGreen  = "\033[32m"
		colorCyan   = "\033[36m"
	)

	var prefix, color string
	switch {
	case level >= slog.LevelError:
		prefix, color = "✗", colorRed
	case level >= slog.LevelWarn:
		prefix, color = "⚠", colorYellow
	case level >= slog.LevelInfo && isSuccess:
		prefix, color = "✓", colorGreen
	case level >= slog.LevelInfo:
		prefix, color = "ℹ", colorCyan
	default:
		prefix, color = "·", colorReset
	}

	if h.opts.UseColors {
		return color + prefix + colorReset
	}
	return prefix
}

// formatAttr formats a single attribute for display.
func (h *HumanHandler) formatAttr(a slog.Attr) string {
	switch v := a.Value.Any().(type) {
	case time.Duration:
		return fmt.Sprintf("%s=%s", a.Key, formatDuration(v))
	case float64:
		return fmt.Sprintf("%s=%.2f", a.Key, v)
	default:
		return fmt.Sprintf("%s=%v", a.Key, v)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

// FormatMetricsHuman formats run metrics in a human-readable way.
func FormatMetricsHuman(metrics RunMetrics) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Matched %d of %d records in %s",
		metrics.RecordsMatched,
		metrics.RecordsLoaded,
		formatDuration(metrics.TotalDuration)))
	if metrics.OutputsRendered > 0 {
		sb.WriteString(fmt.Sprintf(", %d outputs rendered", metrics.OutputsRendered))
	}
	return sb.String()
}

// =============================================================================
// Log File Output Support
// =============================================================================

// logFile holds the currently open log file (if any)
var logFile *os.File

// maxLogFileSize is the size at which the log file is rotated (10MB).
const maxLogFileSize = 10 * 1024 * 1024

// rotateLogFile renames the log file with a timestamp suffix once it
// exceeds maxLogFileSize.
func rotateLogFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking log file size: %w", err)
	}

	if info.Size() >= maxLogFileSize {
		rotated := fmt.Sprintf("%s.%s", path, time.Now().Format("20060102-150405"))
		if err := os.Rename(path, rotated); err != nil {
			return fmt.Errorf("rotating log file: %w", err)
		}
	}
	return nil
}

// SetLogFile configures logging to write to both the console and the file.
// File logs are always JSON.
func SetLogFile(path string, level slog.Level, consoleFormat OutputFormat) error {
	CloseLogFile()

	if err := rotateLogFile(path); err != nil {
		Warn("log rotation failed", slog.String("error", err.Error()))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	logFile = f

	Logger = slog.New(&dualHandler{
		console: newConsoleHandler(logWriter, level, consoleFormat),
		file:    slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}),
	})

	Info("log file opened",
		slog.String("path", path),
		slog.String("console_format", formatName(consoleFormat)),
	)
	return nil
}

// CloseLogFile closes the current log file if one is open.
func CloseLogFile() {
	if logFile == nil {
		return
	}
	if err := logFile.Sync(); err != nil {
		Warn("failed to sync log file", slog.String("error", err.Error()))
	}
	if err := logFile.Close(); err != nil {
		Warn("failed to close log file", slog.String("error", err.Error()))
	}
	logFile = nil
}

func formatName(f OutputFormat) string {
	if f == FormatHuman {
		return "human"
	}
	return "json"
}

// dualHandler writes to both console and file handlers.
type dualHandler struct {
	console slog.Handler
	file    slog.Handler
}

func (d *dualHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return d.console.Enabled(ctx, level) || d.file.Enabled(ctx, level)
}

func (d *dualHandler) Handle(ctx context.Context, r slog.Record) error {
	if d.console.Enabled(ctx, r.Level) {
		if err := d.console.Handle(ctx, r); err != nil {
			return err
		}
	}
	if d.file.Enabled(ctx, r.Level) {
		if err := d.file.Handle(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (d *dualHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &dualHandler{console: d.console.WithAttrs(attrs), file: d.file.WithAttrs(attrs)}
}

func (d *dualHandler) WithGroup(name string) slog.Handler {
	return &dualHandler{console: d.console.WithGroup(name), file: d.file.WithGroup(name)}
}
