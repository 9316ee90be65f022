package filter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/canectors/carexplorer/pkg/dashboard"
)

func TestScriptKeep(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "by origin",
			script: `function keep(r) { return r.Origin === "USA"; }`,
			want:   []string{"chevrolet chevelle malibu", "ford pinto"},
		},
		{
			name:   "missing value is null",
			script: `function keep(r) { return r.Horsepower !== null && r.Horsepower < 120; }`,
			want:   []string{"toyota corona", "audi 5000"},
		},
		{
			name:   "truthy result",
			script: `function keep(r) { return r.Name.indexOf("o"); }`,
			want:   []string{"chevrolet chevelle malibu", "toyota corona", "ford pinto", "audi 5000"},
		},
		{
			name:   "undefined drops",
			script: `function keep(r) { if (r.Year > 1975) return true; }`,
			want:   []string{"audi 5000"},
		},
		{
			name:   "console available",
			script: `function keep(r) { console.log("checking", r.Name, {year: r.Year}); return r.Cylinders == 4; }`,
			want:   []string{"toyota corona", "ford pinto"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewScriptFromConfig(ScriptConfig{Script: tt.script})
			if err != nil {
				t.Fatalf("NewScriptFromConfig() error = %v", err)
			}
			got, err := m.Process(context.Background(), testRecords())
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if strings.Join(names(got), ",") != strings.Join(tt.want, ",") {
				t.Errorf("Process() = %v, want %v", names(got), tt.want)
			}
		})
	}
}

func TestScriptSetupErrors(t *testing.T) {
	long := "function keep(r) { return true; }\n//" + strings.Repeat("x", MaxScriptLength)
	tests := []struct {
		name    string
		config  ScriptConfig
		wantErr error
	}{
		{"empty", ScriptConfig{Script: "  \n"}, ErrScriptEmpty},
		{"neither", ScriptConfig{}, ErrScriptEmpty},
		{"too long", ScriptConfig{Script: long}, ErrScriptTooLong},
		{"no keep", ScriptConfig{Script: "var x = 1;"}, ErrMissingKeepFunc},
		{"keep not a function", ScriptConfig{Script: "var keep = 3;"}, ErrMissingKeepFunc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScriptFromConfig(tt.config)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewScriptFromConfig(ScriptConfig{Script: "function keep( {"}); err == nil {
		t.Error("syntax error should fail")
	}
	if _, err := NewScriptFromConfig(ScriptConfig{Script: "x", ScriptFile: "y.js"}); err == nil {
		t.Error("script and scriptFile together should fail")
	}
}

func TestScriptFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.js")
	if err := os.WriteFile(path, []byte(`function keep(r) { return r.Year >= 1971; }`), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := NewScriptFromConfig(ScriptConfig{ScriptFile: path})
	if err != nil {
		t.Fatalf("NewScriptFromConfig() error = %v", err)
	}
	got, err := m.Process(context.Background(), testRecords())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}

	if _, err := NewScriptFromConfig(ScriptConfig{ScriptFile: filepath.Join(t.TempDir(), "missing.js")}); err == nil {
		t.Error("missing script file should fail")
	}
}

func TestScriptOnError(t *testing.T) {
	const script = `function keep(r) { if (r.Origin === "Japan") { throw new Error("no imports"); } return true; }`
	tests := []struct {
		onError string
		wantErr bool
		want    int
	}{
		{OnErrorFail, true, 0},
		{OnErrorSkip, false, 3},
		{OnErrorLog, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.onError, func(t *testing.T) {
			m, err := NewScriptFromConfig(ScriptConfig{Script: script, OnError: tt.onError})
			if err != nil {
				t.Fatalf("NewScriptFromConfig() error = %v", err)
			}
			got, err := m.Process(context.Background(), testRecords())
			if tt.wantErr {
				var pe *PredicateError
				if !errors.As(err, &pe) || pe.Code != ErrCodeExecutionFailed || pe.RecordIndex != 1 {
					t.Fatalf("error = %v, want EXECUTION_FAILED at record 1", err)
				}
				if !strings.Contains(pe.Message, "no imports") {
					t.Errorf("message %q should carry the JavaScript error", pe.Message)
				}
				return
			}
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestScriptInterruptedByContext(t *testing.T) {
	m, err := NewScriptFromConfig(ScriptConfig{Script: `function keep(r) { while (true) {} }`})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = m.Process(ctx, testRecords())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}

	// the runtime is usable again after an interrupt
	m2, err := NewScriptFromConfig(ScriptConfig{Script: `function keep(r) { return true; }`})
	if err != nil {
		t.Fatal(err)
	}
	if got, err := m2.Process(context.Background(), testRecords()); err != nil || len(got) != 4 {
		t.Errorf("Process() = %d records, %v", len(got), err)
	}
}

func TestParseScriptConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr bool
	}{
		{"inline", map[string]interface{}{"script": "function keep(){return true}"}, false},
		{"file", map[string]interface{}{"scriptFile": "scripts/keep.js", "onError": "log"}, false},
		{"both", map[string]interface{}{"script": "a", "scriptFile": "b"}, true},
		{"neither", map[string]interface{}{}, true},
		{"wrong type", map[string]interface{}{"script": 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScriptConfig(&dashboard.ModuleConfig{Type: "script", Config: tt.config})
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseScriptConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
