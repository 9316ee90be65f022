package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/internal/pathutil"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// MaxScriptLength is the maximum allowed script length in bytes (100KB)
const MaxScriptLength = 100 * 1024

// keepFunctionName is the predicate every script must define.
const keepFunctionName = "keep"

var (
	// ErrScriptEmpty is returned when the script is empty or whitespace-only
	ErrScriptEmpty = errors.New("script cannot be empty")
	// ErrScriptTooLong is returned when the script exceeds MaxScriptLength
	ErrScriptTooLong = errors.New("script exceeds maximum length")
	// ErrMissingKeepFunc is returned when the script does not define keep
	ErrMissingKeepFunc = errors.New("keep function not found in script")
)

// ScriptConfig represents the configuration for a script filter module.
// Exactly one of Script or ScriptFile must be set.
type ScriptConfig struct {
	// Script is inline JavaScript defining keep(record)
	Script string `json:"script,omitempty"`
	// ScriptFile is the path to a JavaScript file defining keep(record)
	ScriptFile string `json:"scriptFile,omitempty"`
	// OnError specifies error handling mode: "fail" (default), "skip", "log"
	OnError string `json:"onError,omitempty"`
}

// ScriptModule keeps the records for which a JavaScript keep(record)
// function returns a truthy value. The script runs in a goja sandbox with
// console.* routed to the logger.
//
// A goja runtime is not goroutine-safe; Process calls on one module are
// serialised.
type ScriptModule struct {
	mu      sync.Mutex
	onError string
	runtime *goja.Runtime
	keepFn  goja.Callable
	console *jsConsole
}

// NewScriptFromConfig loads and compiles the script and checks that keep is a function.
func NewScriptFromConfig(config ScriptConfig) (*ScriptModule, error) {
	source, err := resolveScriptSource(config)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(source) == "" {
		return nil, scriptSetupError("script cannot be empty", ErrScriptEmpty)
	}
	if len(source) > MaxScriptLength {
		return nil, scriptSetupError(
			fmt.Sprintf("script is %d bytes, maximum is %d", len(source), MaxScriptLength), ErrScriptTooLong)
	}

	vm := goja.New()
	console, err := newJSConsole(vm, config.ScriptFile)
	if err != nil {
		return nil, scriptSetupError(err.Error(), err)
	}
	if _, err := vm.RunString(source); err != nil {
		return nil, scriptSetupError(fmt.Sprintf("script compilation failed: %v", err), err)
	}

	keepVal := vm.Get(keepFunctionName)
	if keepVal == nil || goja.IsUndefined(keepVal) {
		return nil, scriptSetupError("script must define a keep(record) function", ErrMissingKeepFunc)
	}
	keepFn, ok := goja.AssertFunction(keepVal)
	if !ok {
		return nil, scriptSetupError("keep is not a function", ErrMissingKeepFunc)
	}

	onError := normalizeOnError("script", config.OnError)
	logger.Debug("script module initialized",
		slog.Int("script_length", len(source)),
		slog.String("on_error", onError),
		slog.Bool("from_file", config.ScriptFile != ""),
	)
	return &ScriptModule{onError: onError, runtime: vm, keepFn: keepFn, console: console}, nil
}

func scriptSetupError(message string, err error) *PredicateError {
	return &PredicateError{Code: ErrCodeScriptInvalid, Module: "script", Message: message, RecordIndex: -1, Err: err}
}

// resolveScriptSource returns the inline script or reads the script file,
// capping the read at MaxScriptLength+1 bytes.
func resolveScriptSource(config ScriptConfig) (string, error) {
	switch {
	case config.Script != "" && config.ScriptFile != "":
		return "", scriptSetupError("cannot specify both 'script' and 'scriptFile'", nil)
	case config.Script != "":
		return config.Script, nil
	case config.ScriptFile == "":
		return "", scriptSetupError("either 'script' or 'scriptFile' must be provided", ErrScriptEmpty)
	}

	if err := pathutil.CheckReadableFile(config.ScriptFile); err != nil {
		return "", err
	}
	file, err := os.Open(config.ScriptFile)
	if err != nil {
		return "", scriptSetupError(fmt.Sprintf("failed to open script file %q: %v", config.ScriptFile, err), err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("failed to close script file",
				slog.String("file", config.ScriptFile),
				slog.String("error", closeErr.Error()),
			)
		}
	}()

	content, err := io.ReadAll(io.LimitReader(file, MaxScriptLength+1))
	if err != nil {
		return "", scriptSetupError(fmt.Sprintf("failed to read script file %q: %v", config.ScriptFile, err), err)
	}
	return string(content), nil
}

// ParseScriptConfig reads a script configuration from module configuration.
func ParseScriptConfig(cfg *dashboard.ModuleConfig) (ScriptConfig, error) {
	if cfg == nil {
		return ScriptConfig{}, ErrNilConfig
	}
	script, err := cfg.StringOption("script", "")
	if err != nil {
		return ScriptConfig{}, err
	}
	scriptFile, err := cfg.StringOption("scriptFile", "")
	if err != nil {
		return ScriptConfig{}, err
	}
	if script != "" && scriptFile != "" {
		return ScriptConfig{}, fmt.Errorf("cannot specify both 'script' and 'scriptFile' - use only one")
	}
	if script == "" && scriptFile == "" {
		return ScriptConfig{}, fmt.Errorf("either 'script' or 'scriptFile' is required in script config")
	}
	onError, err := cfg.StringOption("onError", "")
	if err != nil {
		return ScriptConfig{}, err
	}
	return ScriptConfig{Script: script, ScriptFile: scriptFile, OnError: onError}, nil
}

// Process calls keep(record) for every record. Cancelling ctx interrupts
// a running script.
func (m *ScriptModule) Process(ctx context.Context, records []dataset.Record) ([]dataset.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		m.runtime.Interrupt(ctx.Err().Error())
	})
	defer func() {
		stop()
		m.runtime.ClearInterrupt()
	}()

	start := time.Now()
	result := make([]dataset.Record, 0, len(records))
	errorCount := 0

	for idx, r := range records {
		m.console.SetRecordIndex(idx)
		keep, err := m.call(r)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			errorCount++
			if abort := handlePredicateError(m.onError, m.jsError(idx, r, err)); abort != nil {
				m.console.ClearRecordIndex()
				return nil, abort
			}
			continue
		}
		if keep {
			result = append(result, r)
		}
	}
	m.console.ClearRecordIndex()

	logger.Debug("filter processing completed",
		slog.String("module_type", "script"),
		slog.Int("input_records", len(records)),
		slog.Int("output_records", len(result)),
		slog.Int("error_count", errorCount),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (m *ScriptModule) call(r dataset.Record) (bool, error) {
	out, err := m.keepFn(goja.Undefined(), m.runtime.ToValue(recordEnv(r)))
	if err != nil {
		return false, err
	}
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return false, nil
	}
	return out.ToBoolean(), nil
}

// jsError attaches the JavaScript stack, when there is one, to the error.
func (m *ScriptModule) jsError(idx int, r dataset.Record, err error) *PredicateError {
	pe := describe("script", idx, r, err)
	pe.Code = ErrCodeExecutionFailed
	var exc *goja.Exception
	if errors.As(err, &exc) {
		pe.Message = fmt.Sprintf("script execution failed at record %d (%s): %v", idx, r.Name, exc.Value())
		if stack := exc.String(); stack != "" {
			logger.Debug("script stack trace", slog.Int("record_index", idx), slog.String("stack", stack))
		}
	}
	return pe
}

var _ Module = (*ScriptModule)(nil)
