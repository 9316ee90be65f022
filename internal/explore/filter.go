// Package explore implements the filter-and-aggregate pipeline behind the
// dashboard: a two-stage filter whose second-stage horsepower bounds are
// derived from the first-stage subset, group-by aggregates for trend
// charts, and histogram and box-plot summaries.
//
// Every function here is pure: inputs are never modified and each call
// returns freshly allocated results.
package explore

import (
	"math"

	"github.com/canectors/carexplorer/pkg/dataset"
)

// Filter keeps the records that satisfy every predicate of spec, in input
// order. It is the composition of FilterYearOrigin and FilterHorsepower.
func Filter(records []dataset.Record, spec dataset.FilterSpec) []dataset.Record {
	stageOne := FilterYearOrigin(records, spec.YearMin, spec.YearMax, spec.AllowedOrigins)
	return FilterHorsepower(stageOne, spec.Horsepower())
}

// FilterYearOrigin keeps records with yearMin <= Year <= yearMax whose
// origin is in origins. An empty origins set keeps nothing.
func FilterYearOrigin(records []dataset.Record, yearMin, yearMax int, origins []string) []dataset.Record {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	out := make([]dataset.Record, 0, len(records))
	for _, r := range records {
		if r.Year < yearMin || r.Year > yearMax {
			continue
		}
		if _, ok := allowed[r.Origin]; !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterHorsepower keeps records whose horsepower lies inside rng.
// Missing horsepower never matches, and an inverted range matches nothing.
func FilterHorsepower(records []dataset.Record, rng dataset.Range) []dataset.Record {
	out := make([]dataset.Record, 0, len(records))
	for _, r := range records {
		if rng.Contains(r.Horsepower) {
			out = append(out, r)
		}
	}
	return out
}

// HorsepowerBounds returns the smallest and largest known horsepower.
// ok is false when no record has a horsepower value.
func HorsepowerBounds(records []dataset.Record) (bounds dataset.Range, ok bool) {
	for _, r := range records {
		hp := r.Horsepower
		if math.IsNaN(hp) || math.IsInf(hp, 0) {
			continue
		}
		if !ok {
			bounds = dataset.Range{Min: hp, Max: hp}
			ok = true
			continue
		}
		bounds.Min = math.Min(bounds.Min, hp)
		bounds.Max = math.Max(bounds.Max, hp)
	}
	return bounds, ok
}

// Cascade picks the horsepower selection to apply against freshly derived
// bounds. A nil selection, or one with an endpoint outside bounds, is reset
// to bounds and rederived is true. A selection inside bounds is returned
// unchanged, even when inverted; applying it then yields no records.
func Cascade(bounds dataset.Range, selection *dataset.Range) (applied dataset.Range, rederived bool) {
	if selection == nil {
		return bounds, true
	}
	sel := *selection
	if math.IsNaN(sel.Min) || math.IsNaN(sel.Max) {
		return bounds, true
	}
	if !bounds.Contains(sel.Min) || !bounds.Contains(sel.Max) {
		return bounds, true
	}
	return sel, false
}
