package source

import (
	"math"
	"strings"
	"testing"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/pkg/dataset"
)

const validCSV = `Name,Miles_per_Gallon,Cylinders,Displacement,Horsepower,Weight_in_lbs,Acceleration,Year,Origin
chevrolet chevelle malibu,18,8,307,130,3504,12,1970-01-01,USA
ford pinto,25,4,98,,2046,19,1971-01-01,USA
datsun pl510,27,4,97,88,2130,14.5,1970,Japan
`

func TestParseCSV(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader(validCSV), "test.csv")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ds.Len())
	}
	if ds.Source() != "test.csv" {
		t.Errorf("Source() = %q", ds.Source())
	}

	first := ds.At(0)
	if first.Name != "chevrolet chevelle malibu" || first.Weight != 3504 || first.Year != 1970 || first.Origin != "USA" {
		t.Errorf("first record = %+v", first)
	}
	if !math.IsNaN(ds.At(1).Horsepower) {
		t.Errorf("missing horsepower should be NaN, got %v", ds.At(1).Horsepower)
	}
	if ds.At(2).Year != 1970 {
		t.Errorf("integer year = %d, want 1970", ds.At(2).Year)
	}
}

func TestParseCSVMinimalColumns(t *testing.T) {
	input := "horsepower,mpg,weight,acceleration,year,origin,color\n95,24,2372,15,1970,Japan,red\n"
	ds, err := ParseCSV(strings.NewReader(input), "minimal")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	rec := ds.At(0)
	if rec.Name != "car-1" {
		t.Errorf("Name = %q, want synthesised car-1", rec.Name)
	}
	if !math.IsNaN(rec.Cylinders) || !math.IsNaN(rec.Displacement) {
		t.Error("absent optional columns should be NaN")
	}
	if rec.MilesPerGallon != 24 {
		t.Errorf("MilesPerGallon = %v, want 24", rec.MilesPerGallon)
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "missing required column",
			input:   "Name,Horsepower,Weight,Acceleration,Year,Origin\nx,1,2,3,1970,USA\n",
			wantMsg: "Miles_per_Gallon",
		},
		{
			name:    "bad number",
			input:   "Horsepower,Miles_per_Gallon,Weight,Acceleration,Year,Origin\nfast,1,2,3,1970,USA\n",
			wantMsg: "line 2",
		},
		{
			name:    "bad year",
			input:   "Horsepower,Miles_per_Gallon,Weight,Acceleration,Year,Origin\n1,1,2,3,seventies,USA\n",
			wantMsg: "invalid year",
		},
		{
			name:    "missing origin",
			input:   "Horsepower,Miles_per_Gallon,Weight,Acceleration,Year,Origin\n1,1,2,3,1970,\n",
			wantMsg: "Origin",
		},
		{
			name:    "ragged rows",
			input:   "Horsepower,Miles_per_Gallon,Weight,Acceleration,Year,Origin\n1,1,2\n",
			wantMsg: "cannot read CSV",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input), "bad.csv")
			if err == nil {
				t.Fatal("ParseCSV() expected error")
			}
			if errhandling.GetErrorCategory(err) != errhandling.CategoryParse {
				t.Errorf("category = %q, want parse", errhandling.GetErrorCategory(err))
			}
			if !errhandling.IsLoadFailure(err) {
				t.Error("parse errors must be load failures")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"1970", 1970, false},
		{"1982-01-01", 1982, false},
		{"1975-01-01T00:00:00Z", 1975, false},
		{"", 0, true},
		{"NaN", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseYear(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseYear(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseYear(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRequiredColumnsAreNumericOrOrigin(t *testing.T) {
	for _, c := range requiredColumns {
		if !c.Numeric() && c != dataset.ColumnOrigin {
			t.Errorf("required column %s is neither numeric nor Origin", c)
		}
	}
}
