package dashboard_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/canectors/carexplorer/pkg/dashboard"
)

func TestRunResultJSON(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	result := dashboard.RunResult{
		RunID:          "run-1",
		Dashboard:      "cars",
		Status:         dashboard.StatusError,
		StartedAt:      started,
		CompletedAt:    started.Add(1500 * time.Millisecond),
		RecordsLoaded:  0,
		RecordsMatched: 0,
		Error: &dashboard.RunError{
			Code:     "LOAD_FAILED",
			Message:  "dataset file not found",
			Module:   "csv",
			Category: "not_found",
			Details:  map[string]interface{}{"path": "data/cars.csv"},
		},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Failed to marshal run result: %v", err)
	}

	var decoded dashboard.RunResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal run result: %v", err)
	}
	if decoded.Error == nil {
		t.Fatal("Expected error to be present")
	}
	if decoded.Error.Code != "LOAD_FAILED" || decoded.Error.Category != "not_found" {
		t.Errorf("unexpected error %+v", decoded.Error)
	}
	if decoded.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v", decoded.Duration())
	}
}

func TestRunResultOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(dashboard.RunResult{RunID: "r", Status: dashboard.StatusSuccess})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"error", "notice", "dryRun"} {
		if _, ok := raw[key]; ok {
			t.Errorf("expected %q to be omitted", key)
		}
	}
}

func TestModuleConfigString(t *testing.T) {
	var nilCfg *dashboard.ModuleConfig
	if nilCfg.String() != "<nil>" {
		t.Errorf("nil String() = %q", nilCfg.String())
	}
	cfg := &dashboard.ModuleConfig{Type: "csv"}
	if cfg.String() != "csv" {
		t.Errorf("String() = %q", cfg.String())
	}
}

func TestModuleConfigOptions(t *testing.T) {
	cfg := &dashboard.ModuleConfig{Type: "synthetic", Config: map[string]interface{}{
		"rows":    400,
		"seed":    float64(7),
		"ratio":   1.5,
		"path":    "data/cars.csv",
		"enabled": true,
		"nothing": nil,
	}}

	if v, err := cfg.IntOption("rows", 0); err != nil || v != 400 {
		t.Errorf("IntOption(rows) = %d, %v", v, err)
	}
	if v, err := cfg.IntOption("seed", 0); err != nil || v != 7 {
		t.Errorf("IntOption(seed) = %d, %v", v, err)
	}
	if _, err := cfg.IntOption("ratio", 0); err == nil {
		t.Error("IntOption(ratio) should reject a fractional number")
	}
	if v, err := cfg.IntOption("nothing", 3); err != nil || v != 3 {
		t.Errorf("IntOption(nothing) = %d, %v", v, err)
	}
	if v, err := cfg.StringOption("path", ""); err != nil || v != "data/cars.csv" {
		t.Errorf("StringOption(path) = %q, %v", v, err)
	}
	if _, err := cfg.StringOption("rows", ""); err == nil {
		t.Error("StringOption(rows) should reject a number")
	}
	if v, err := cfg.BoolOption("enabled", false); err != nil || !v {
		t.Errorf("BoolOption(enabled) = %v, %v", v, err)
	}
	if v, err := (*dashboard.ModuleConfig)(nil).BoolOption("x", true); err != nil || !v {
		t.Errorf("nil BoolOption() = %v, %v", v, err)
	}
}
