// Package dataset provides the public data model of the car explorer:
// records, the immutable dataset handle, filter specifications and
// aggregate rows. It is importable by external projects that feed their
// own rendering layer from the explorer's output.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Known origin values of the reference table.
const (
	OriginUSA    = "USA"
	OriginEurope = "Europe"
	OriginJapan  = "Japan"
)

// Record is one car. Numeric fields hold NaN when the value is missing.
type Record struct {
	// Name identifies the car model
	Name string `json:"Name" msgpack:"Name"`

	// MilesPerGallon is the fuel economy
	MilesPerGallon float64 `json:"Miles_per_Gallon" msgpack:"Miles_per_Gallon"`

	// Cylinders is the engine cylinder count
	Cylinders float64 `json:"Cylinders" msgpack:"Cylinders"`

	// Displacement is the engine displacement in cubic inches
	Displacement float64 `json:"Displacement" msgpack:"Displacement"`

	// Horsepower is the engine power
	Horsepower float64 `json:"Horsepower" msgpack:"Horsepower"`

	// Weight is the vehicle weight in pounds
	Weight float64 `json:"Weight" msgpack:"Weight"`

	// Acceleration is the 0-60 mph time in seconds
	Acceleration float64 `json:"Acceleration" msgpack:"Acceleration"`

	// Year is the model year
	Year int `json:"Year" msgpack:"Year"`

	// Origin is the region of manufacture (USA, Europe, Japan)
	Origin string `json:"Origin" msgpack:"Origin"`
}

// Number returns the numeric value of a column.
// The boolean is false for text columns and for missing values.
func (r Record) Number(c Column) (float64, bool) {
	var v float64
	switch c {
	case ColumnMilesPerGallon:
		v = r.MilesPerGallon
	case ColumnCylinders:
		v = r.Cylinders
	case ColumnDisplacement:
		v = r.Displacement
	case ColumnHorsepower:
		v = r.Horsepower
	case ColumnWeight:
		v = r.Weight
	case ColumnAcceleration:
		v = r.Acceleration
	case ColumnYear:
		return float64(r.Year), true
	default:
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Value returns the column value as string, int or float64.
// Missing numeric values are returned as nil.
func (r Record) Value(c Column) any {
	switch c {
	case ColumnName:
		return r.Name
	case ColumnOrigin:
		return r.Origin
	case ColumnYear:
		return r.Year
	}
	if v, ok := r.Number(c); ok {
		return v
	}
	return nil
}

// Text formats the column value for display. Missing values render as "".
func (r Record) Text(c Column) string {
	switch v := r.Value(c).(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// MarshalJSON encodes missing numeric values as null.
func (r Record) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(Columns))
	for _, c := range Columns {
		fields[string(c)] = r.Value(c)
	}
	return json.Marshal(fields)
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min" msgpack:"min"`
	Max float64 `json:"max" msgpack:"max"`
}

// Contains reports whether v lies inside the range. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

// Inverted reports whether Min is greater than Max.
func (r Range) Inverted() bool {
	return r.Min > r.Max
}

// String implements fmt.Stringer.
func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]",
		strconv.FormatFloat(r.Min, 'f', -1, 64),
		strconv.FormatFloat(r.Max, 'f', -1, 64))
}

// FilterSpec is the full set of predicates applied to a dataset.
// All bounds are inclusive.
type FilterSpec struct {
	// YearMin is the first model year kept
	YearMin int `json:"yearMin" msgpack:"yearMin"`

	// YearMax is the last model year kept
	YearMax int `json:"yearMax" msgpack:"yearMax"`

	// AllowedOrigins lists the origins kept. An empty set keeps nothing.
	AllowedOrigins []string `json:"allowedOrigins" msgpack:"allowedOrigins"`

	// HorsepowerMin is the lowest horsepower kept
	HorsepowerMin float64 `json:"horsepowerMin" msgpack:"horsepowerMin"`

	// HorsepowerMax is the highest horsepower kept
	HorsepowerMax float64 `json:"horsepowerMax" msgpack:"horsepowerMax"`
}

// AllowsOrigin reports whether origin is in AllowedOrigins.
func (s FilterSpec) AllowsOrigin(origin string) bool {
	for _, o := range s.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Horsepower returns the horsepower bounds as a Range.
func (s FilterSpec) Horsepower() Range {
	return Range{Min: s.HorsepowerMin, Max: s.HorsepowerMax}
}

// AggregateRow is one group of a derived aggregate.
type AggregateRow struct {
	// Key holds one value per group column (string, int or float64)
	Key []any `json:"key" msgpack:"key"`

	// Value is the aggregate of the value column; NaN when no value was present
	Value float64 `json:"value" msgpack:"value"`

	// Count is the number of non-missing values aggregated
	Count int `json:"count" msgpack:"count"`
}

// KeyString joins the key parts for display, e.g. "1970 / USA".
func (a AggregateRow) KeyString() string {
	parts := make([]string, len(a.Key))
	for i, k := range a.Key {
		switch v := k.(type) {
		case float64:
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, " / ")
}

// MarshalJSON encodes a NaN value as null.
func (a AggregateRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key   []any    `json:"key"`
		Value *float64 `json:"value"`
		Count int      `json:"count"`
	}{Key: a.Key, Value: Nullable(a.Value), Count: a.Count})
}

// Nullable returns nil for NaN and a pointer to v otherwise.
func Nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
