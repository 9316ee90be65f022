package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

func TestBundledLoad(t *testing.T) {
	ds, err := NewBundled().Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Len() < 50 {
		t.Errorf("Len() = %d, want at least 50", ds.Len())
	}
	if got := ds.Origins(); !slices.Equal(got, []string{"Europe", "Japan", "USA"}) {
		t.Errorf("Origins() = %v", got)
	}
	minYear, maxYear, ok := ds.YearRange()
	if !ok || minYear != 1970 || maxYear != 1982 {
		t.Errorf("YearRange() = %d, %d, %v", minYear, maxYear, ok)
	}
}

func TestCSVFileLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cars.csv")
	if err := os.WriteFile(path, []byte(validCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := NewCSVFileFromConfig(&dashboard.ModuleConfig{Type: "csv", Config: map[string]interface{}{"path": path}})
	if err != nil {
		t.Fatalf("NewCSVFileFromConfig() error = %v", err)
	}
	ds, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Len() != 3 || ds.Source() != path {
		t.Errorf("dataset = %d records from %q", ds.Len(), ds.Source())
	}
}

func TestCSVFileDefaultPath(t *testing.T) {
	src, err := NewCSVFileFromConfig(&dashboard.ModuleConfig{Type: "csv"})
	if err != nil {
		t.Fatalf("NewCSVFileFromConfig() error = %v", err)
	}
	if src.Path() != DefaultCSVPath {
		t.Errorf("Path() = %q, want %q", src.Path(), DefaultCSVPath)
	}
}

func TestCSVFileLoadFailures(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.csv")
	if err := os.WriteFile(garbage, []byte("just,a,header\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		path         string
		wantCategory errhandling.ErrorCategory
	}{
		{"missing file", filepath.Join(dir, "nope.csv"), errhandling.CategoryNotFound},
		{"directory", dir, errhandling.CategoryIO},
		{"unparsable content", garbage, errhandling.CategoryParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVFile(tt.path).Load(context.Background())
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if got := errhandling.GetErrorCategory(err); got != tt.wantCategory {
				t.Errorf("category = %q, want %q (%v)", got, tt.wantCategory, err)
			}
			if !errhandling.IsLoadFailure(err) {
				t.Errorf("IsLoadFailure(%v) = false", err)
			}
		})
	}
}

func TestCSVFileFromConfigErrors(t *testing.T) {
	if _, err := NewCSVFileFromConfig(nil); !errors.Is(err, ErrNilConfig) {
		t.Errorf("nil config error = %v", err)
	}
	if _, err := NewCSVFileFromConfig(&dashboard.ModuleConfig{Config: map[string]interface{}{"path": "../cars.csv"}}); err == nil {
		t.Error("path traversal should be rejected")
	}
	if _, err := NewCSVFileFromConfig(&dashboard.ModuleConfig{Config: map[string]interface{}{"path": 12}}); err == nil {
		t.Error("non-string path should be rejected")
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	ctx := context.Background()
	a, err := NewSynthetic(7, 120).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	b, err := NewSynthetic(7, 120).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if a.Len() != 120 {
		t.Fatalf("Len() = %d, want 120", a.Len())
	}
	for i := 0; i < a.Len(); i++ {
		ra, rb := a.At(i), b.At(i)
		if ra.Name != rb.Name || ra.Year != rb.Year || ra.Origin != rb.Origin || ra.Weight != rb.Weight {
			t.Fatalf("record %d differs: %+v vs %+v", i, ra, rb)
		}
	}

	c, _ := NewSynthetic(8, 120).Load(ctx)
	same := true
	for i := 0; i < c.Len(); i++ {
		if c.At(i).Weight != a.At(i).Weight {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds should produce different tables")
	}
}

func TestSyntheticValues(t *testing.T) {
	ds, err := NewSynthetic(DefaultSyntheticSeed, DefaultSyntheticRows).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for i := 0; i < ds.Len(); i++ {
		r := ds.At(i)
		if r.Year < syntheticFirstYear || r.Year > syntheticLastYear {
			t.Fatalf("record %d year %d out of range", i, r.Year)
		}
		switch r.Origin {
		case dataset.OriginUSA, dataset.OriginJapan, dataset.OriginEurope:
		default:
			t.Fatalf("record %d has origin %q", i, r.Origin)
		}
		if r.MilesPerGallon <= 0 || r.Weight <= 0 {
			t.Fatalf("record %d has non-positive values: %+v", i, r)
		}
	}
}

func TestSyntheticFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr bool
	}{
		{"defaults", nil, false},
		{"explicit", map[string]interface{}{"seed": 3, "rows": 10}, false},
		{"negative rows", map[string]interface{}{"rows": -1}, true},
		{"negative seed", map[string]interface{}{"seed": -5}, true},
		{"string rows", map[string]interface{}{"rows": "many"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSyntheticFromConfig(&dashboard.ModuleConfig{Type: "synthetic", Config: tt.config})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSyntheticFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, m := range map[string]Module{
		"bundled":   NewBundled(),
		"synthetic": NewSynthetic(1, 10),
		"csv":       NewCSVFile("whatever.csv"),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Load(ctx); !errors.Is(err, context.Canceled) {
				t.Errorf("Load() error = %v, want context.Canceled", err)
			}
		})
	}
}
