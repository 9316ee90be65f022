package config

import (
	"testing"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantValid bool
		wantPath  string
		wantType  string
	}{
		{name: "full dashboard", path: "testdata/valid-dashboard.yaml", wantValid: true},
		{name: "minimal json", path: "testdata/valid-dashboard.json", wantValid: true},
		{name: "missing dashboard", path: "testdata/invalid-schema-missing-dashboard.yaml", wantPath: "/", wantType: "required"},
		{name: "unknown control", path: "testdata/invalid-schema-unknown-control.yaml", wantPath: "/controls", wantType: "additionalProperties"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseFile(tt.path)
			if !parsed.IsValid() {
				t.Fatalf("parse errors: %v", parsed.Errors)
			}
			result := ValidateConfig(parsed.Data)
			if result.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, errors: %v", result.Valid, result.Errors)
			}
			if tt.wantValid {
				return
			}
			found := false
			for _, e := range result.Errors {
				if e.Path == tt.wantPath && e.Type == tt.wantType {
					found = true
				}
			}
			if !found {
				t.Errorf("no %s error at %s in %v", tt.wantType, tt.wantPath, result.Errors)
			}
		})
	}
}

func TestValidateConfigReportsEveryLeaf(t *testing.T) {
	parsed := ParseFile("testdata/invalid-schema-unknown-control.yaml")
	result := ValidateConfig(parsed.Data)
	paths := map[string]bool{}
	for _, e := range result.Errors {
		paths[e.Path] = true
	}
	if !paths["/controls"] || !paths["/controls/histogram/bins"] {
		t.Errorf("errors = %v, want both the unknown key and the bin count", result.Errors)
	}
}

func TestValidateConfigEmpty(t *testing.T) {
	for _, data := range []map[string]interface{}{nil, {}} {
		if result := ValidateConfig(data); result.Valid {
			t.Errorf("ValidateConfig(%v) should fail", data)
		}
	}
}

func TestEmbeddedSchemaCompiles(t *testing.T) {
	if len(GetEmbeddedSchema()) == 0 {
		t.Fatal("embedded schema is empty")
	}
	if _, err := getCompiledSchema(); err != nil {
		t.Fatalf("schema does not compile: %v", err)
	}
}
