package factory

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/internal/modules/filter"
	"github.com/canectors/carexplorer/internal/modules/source"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

func TestCreateSourceModule(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *dashboard.ModuleConfig
		wantErr bool
	}{
		{"nil selects bundled", nil, false},
		{"csv", &dashboard.ModuleConfig{Type: "csv", Config: map[string]interface{}{"path": "data/cars.csv"}}, false},
		{"synthetic", &dashboard.ModuleConfig{Type: "synthetic", Config: map[string]interface{}{"seed": 7}}, false},
		{"bad option", &dashboard.ModuleConfig{Type: "synthetic", Config: map[string]interface{}{"rows": "many"}}, true},
		{"unknown", &dashboard.ModuleConfig{Type: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateSourceModule(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateSourceModule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if errhandling.GetErrorCategory(err) != errhandling.CategoryValidation {
					t.Errorf("category = %s", errhandling.GetErrorCategory(err))
				}
				return
			}
			if got == nil {
				t.Fatal("module is nil")
			}
		})
	}

	got, _ := CreateSourceModule(nil)
	if _, ok := got.(*source.Bundled); !ok {
		t.Errorf("nil config created %T, want *source.Bundled", got)
	}
}

func TestCreateSourceModuleUnknownType(t *testing.T) {
	_, err := CreateSourceModule(&dashboard.ModuleConfig{Type: "sqlite"})
	if !errors.Is(err, ErrUnknownModuleType) {
		t.Errorf("error = %v, want ErrUnknownModuleType", err)
	}
}

func TestCreateFilterModules(t *testing.T) {
	got, err := CreateFilterModules(nil)
	if err != nil || got != nil {
		t.Errorf("CreateFilterModules(nil) = %v, %v", got, err)
	}

	got, err = CreateFilterModules([]dashboard.ModuleConfig{
		{Type: "condition", Config: map[string]interface{}{"expression": `Origin != "USA"`}},
		{Type: "script", Config: map[string]interface{}{"script": "function keep(r) { return r.Cylinders >= 4 }"}},
	})
	if err != nil {
		t.Fatalf("CreateFilterModules() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if _, ok := got[0].(*filter.ConditionModule); !ok {
		t.Errorf("got[0] = %T", got[0])
	}

	_, err = CreateFilterModules([]dashboard.ModuleConfig{
		{Type: "condition", Config: map[string]interface{}{"expression": "true"}},
		{Type: "mapping"},
	})
	if !errors.Is(err, ErrUnknownModuleType) {
		t.Errorf("error = %v, want ErrUnknownModuleType", err)
	}
}

func TestCreateOutputModules(t *testing.T) {
	got, err := CreateOutputModules([]dashboard.ModuleConfig{
		{Type: "console"},
		{Type: "export", Config: map[string]interface{}{"path": "out/cars.csv"}},
		{Type: "chart", Config: map[string]interface{}{"path": "out/cars.svg", "kind": "histogram"}},
	})
	if err != nil {
		t.Fatalf("CreateOutputModules() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
	CloseOutputs(got)

	tests := []struct {
		name string
		cfgs []dashboard.ModuleConfig
	}{
		{"unknown type", []dashboard.ModuleConfig{{Type: "console"}, {Type: "httpRequest"}}},
		{"invalid config", []dashboard.ModuleConfig{{Type: "chart", Config: map[string]interface{}{"path": "x.gif"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CreateOutputModules(tt.cfgs); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCreateModulesLogsModuleContext(t *testing.T) {
	var buf bytes.Buffer
	original := logger.Logger
	t.Cleanup(func() { logger.Logger = original })
	logger.Logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	outputs, err := CreateOutputModules([]dashboard.ModuleConfig{{Type: "console"}})
	if err != nil {
		t.Fatalf("CreateOutputModules() error = %v", err)
	}
	CloseOutputs(outputs)

	out := buf.String()
	for _, want := range []string{`"msg":"module created"`, `"module_kind":"output"`, `"module_type":"console"`, `"index":0`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}
