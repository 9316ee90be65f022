package explore

import (
	"math"
	"slices"
	"testing"

	"github.com/canectors/carexplorer/pkg/dataset"
)

func car(name string, year int, origin string, hp, weight, mpg float64) dataset.Record {
	return dataset.Record{
		Name:           name,
		Year:           year,
		Origin:         origin,
		Horsepower:     hp,
		Weight:         weight,
		MilesPerGallon: mpg,
		Cylinders:      math.NaN(),
		Displacement:   math.NaN(),
		Acceleration:   math.NaN(),
	}
}

func sampleRecords() []dataset.Record {
	return []dataset.Record{
		car("chevrolet chevelle", 1970, "USA", 130, 3504, 18),
		car("toyota corona", 1970, "Japan", 95, 2372, 24),
		car("vw 1131", 1971, "Europe", 46, 1835, 26),
		car("ford pinto", 1971, "USA", math.NaN(), 2046, 25),
		car("datsun 710", 1973, "Japan", 88, 2279, 24),
		car("plymouth fury", 1975, "USA", 200, 4380, 13),
		car("audi 100ls", 1976, "Europe", 95, 2930, 24),
		car("honda accord", 1980, "Japan", 68, 2135, 37),
	}
}

func names(records []dataset.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func satisfies(r dataset.Record, s dataset.FilterSpec) bool {
	return r.Year >= s.YearMin && r.Year <= s.YearMax &&
		s.AllowsOrigin(r.Origin) &&
		r.Horsepower >= s.HorsepowerMin && r.Horsepower <= s.HorsepowerMax
}

func TestFilterSubsetAndSound(t *testing.T) {
	specs := []struct {
		name string
		spec dataset.FilterSpec
	}{
		{"everything", dataset.FilterSpec{YearMin: 1900, YearMax: 2100, AllowedOrigins: []string{"USA", "Japan", "Europe"}, HorsepowerMin: 0, HorsepowerMax: 1000}},
		{"usa seventies", dataset.FilterSpec{YearMin: 1970, YearMax: 1975, AllowedOrigins: []string{"USA"}, HorsepowerMin: 0, HorsepowerMax: 1000}},
		{"narrow horsepower", dataset.FilterSpec{YearMin: 1970, YearMax: 1980, AllowedOrigins: []string{"USA", "Japan", "Europe"}, HorsepowerMin: 80, HorsepowerMax: 100}},
		{"no origins", dataset.FilterSpec{YearMin: 1970, YearMax: 1980, AllowedOrigins: []string{}, HorsepowerMin: 0, HorsepowerMax: 1000}},
		{"inverted horsepower", dataset.FilterSpec{YearMin: 1970, YearMax: 1980, AllowedOrigins: []string{"USA"}, HorsepowerMin: 150, HorsepowerMax: 100}},
		{"inverted years", dataset.FilterSpec{YearMin: 1980, YearMax: 1970, AllowedOrigins: []string{"USA"}, HorsepowerMin: 0, HorsepowerMax: 1000}},
	}

	records := sampleRecords()
	for _, tt := range specs {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(records, tt.spec)
			if got == nil {
				t.Fatal("Filter() returned nil slice")
			}

			var want []string
			for _, r := range records {
				if satisfies(r, tt.spec) {
					want = append(want, r.Name)
				}
			}
			for _, r := range got {
				if !satisfies(r, tt.spec) {
					t.Errorf("record %q does not satisfy the filter", r.Name)
				}
			}
			if !slices.Equal(names(got), want) {
				t.Errorf("Filter() = %v, want %v", names(got), want)
			}
		})
	}
}

func TestFilterIdempotent(t *testing.T) {
	spec := dataset.FilterSpec{
		YearMin:        1970,
		YearMax:        1976,
		AllowedOrigins: []string{"USA", "Japan"},
		HorsepowerMin:  60,
		HorsepowerMax:  150,
	}
	once := Filter(sampleRecords(), spec)
	twice := Filter(once, spec)
	if !slices.Equal(names(once), names(twice)) {
		t.Errorf("Filter not idempotent: %v then %v", names(once), names(twice))
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	records := sampleRecords()
	before := names(records)
	_ = Filter(records, dataset.FilterSpec{YearMin: 1975, YearMax: 1980, AllowedOrigins: []string{"Japan"}, HorsepowerMax: 1000})
	if !slices.Equal(before, names(records)) {
		t.Errorf("input modified: %v", names(records))
	}
}

func TestFilterYearRange(t *testing.T) {
	records := []dataset.Record{
		car("a", 1970, "USA", 100, 3000, 20),
		car("b", 1975, "USA", 100, 3000, 20),
		car("c", 1980, "USA", 100, 3000, 20),
	}
	got := FilterYearOrigin(records, 1972, 1980, []string{"USA"})
	if want := []string{"b", "c"}; !slices.Equal(names(got), want) {
		t.Errorf("FilterYearOrigin() = %v, want %v", names(got), want)
	}
}

func TestFilterHorsepowerMissing(t *testing.T) {
	records := sampleRecords()
	got := FilterHorsepower(records, dataset.Range{Min: math.Inf(-1), Max: math.Inf(1)})
	for _, r := range got {
		if math.IsNaN(r.Horsepower) {
			t.Errorf("record %q with missing horsepower was kept", r.Name)
		}
	}
	if len(got) != len(records)-1 {
		t.Errorf("len = %d, want %d", len(got), len(records)-1)
	}
}

func TestHorsepowerBounds(t *testing.T) {
	tests := []struct {
		name    string
		records []dataset.Record
		want    dataset.Range
		wantOK  bool
	}{
		{"empty", nil, dataset.Range{}, false},
		{"all missing", []dataset.Record{car("x", 1970, "USA", math.NaN(), 1, 1)}, dataset.Range{}, false},
		{"sample", sampleRecords(), dataset.Range{Min: 46, Max: 200}, true},
		{"single", []dataset.Record{car("x", 1970, "USA", 90, 1, 1)}, dataset.Range{Min: 90, Max: 90}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HorsepowerBounds(tt.records)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("bounds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCascade(t *testing.T) {
	bounds := dataset.Range{Min: 80, Max: 200}
	tests := []struct {
		name          string
		selection     *dataset.Range
		want          dataset.Range
		wantRederived bool
	}{
		{"no selection", nil, bounds, true},
		{"previous wider bounds", &dataset.Range{Min: 50, Max: 300}, bounds, true},
		{"one endpoint outside", &dataset.Range{Min: 100, Max: 250}, bounds, true},
		{"inside bounds", &dataset.Range{Min: 100, Max: 150}, dataset.Range{Min: 100, Max: 150}, false},
		{"equal to bounds", &dataset.Range{Min: 80, Max: 200}, bounds, false},
		{"inverted inside bounds", &dataset.Range{Min: 150, Max: 100}, dataset.Range{Min: 150, Max: 100}, false},
		{"nan endpoint", &dataset.Range{Min: math.NaN(), Max: 150}, bounds, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rederived := Cascade(bounds, tt.selection)
			if got != tt.want {
				t.Errorf("Cascade() = %v, want %v", got, tt.want)
			}
			if rederived != tt.wantRederived {
				t.Errorf("rederived = %v, want %v", rederived, tt.wantRederived)
			}
		})
	}
}
