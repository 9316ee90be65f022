package filter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"

	"github.com/canectors/carexplorer/internal/logger"
)

// MaxLogMessageLength is the maximum length of a single console message (8KB)
const MaxLogMessageLength = 8 * 1024

// jsConsole routes console.log/info/warn/error/debug from a script to the logger.
type jsConsole struct {
	moduleID  string
	recordIdx int
}

func newJSConsole(runtime *goja.Runtime, moduleID string) (*jsConsole, error) {
	c := &jsConsole{moduleID: moduleID, recordIdx: -1}

	console := runtime.NewObject()
	levels := map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"debug": slog.LevelDebug,
	}
	for name, level := range levels {
		fn := func(call goja.FunctionCall) goja.Value {
			c.emit(level, call.Arguments)
			return goja.Undefined()
		}
		if err := console.Set(name, fn); err != nil {
			return nil, fmt.Errorf("console.Set(%q): %w", name, err)
		}
	}
	if err := runtime.Set("console", console); err != nil {
		return nil, fmt.Errorf("runtime.Set(console): %w", err)
	}
	return c, nil
}

// SetRecordIndex tags subsequent messages with the record being evaluated.
func (c *jsConsole) SetRecordIndex(idx int) {
	c.recordIdx = idx
}

// ClearRecordIndex removes the record tag.
func (c *jsConsole) ClearRecordIndex() {
	c.recordIdx = -1
}

func (c *jsConsole) emit(level slog.Level, args []goja.Value) {
	message := formatArgs(args)
	if len(message) > MaxLogMessageLength {
		message = message[:MaxLogMessageLength-3] + "..."
	}

	attrs := []any{
		slog.String("source", "javascript"),
		slog.String("module_type", "script"),
	}
	if c.moduleID != "" {
		attrs = append(attrs, slog.String("module_id", c.moduleID))
	}
	if c.recordIdx >= 0 {
		attrs = append(attrs, slog.Int("record_index", c.recordIdx))
	}

	switch level {
	case slog.LevelDebug:
		logger.Debug(message, attrs...)
	case slog.LevelWarn:
		logger.Warn(message, attrs...)
	case slog.LevelError:
		logger.Error(message, attrs...)
	default:
		logger.Info(message, attrs...)
	}
}

// formatArgs joins the arguments like console.log does: strings as-is,
// everything else as JSON where possible.
func formatArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, formatValue(arg))
	}
	return strings.Join(parts, " ")
}

func formatValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) {
		return "undefined"
	}
	if goja.IsNull(val) {
		return "null"
	}
	switch v := val.Export().(type) {
	case string:
		return v
	case bool, int64, float64:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return val.String()
		}
		return string(data)
	}
}
