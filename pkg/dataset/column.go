package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Column names a field of a Record. The string value is the column header
// used in CSV input and in every export format.
type Column string

// Dataset columns, in the order of the reference table.
const (
	ColumnName           Column = "Name"
	ColumnMilesPerGallon Column = "Miles_per_Gallon"
	ColumnCylinders      Column = "Cylinders"
	ColumnDisplacement   Column = "Displacement"
	ColumnHorsepower     Column = "Horsepower"
	ColumnWeight         Column = "Weight"
	ColumnAcceleration   Column = "Acceleration"
	ColumnYear           Column = "Year"
	ColumnOrigin         Column = "Origin"
)

// Encoding types understood by the rendering collaborators.
const (
	EncodingQuantitative = "quantitative"
	EncodingOrdinal      = "ordinal"
	EncodingNominal      = "nominal"
)

// ErrUnknownColumn is returned when a column name does not match any dataset column.
var ErrUnknownColumn = errors.New("unknown column")

// Columns lists every dataset column in reference-table order.
var Columns = []Column{
	ColumnName,
	ColumnMilesPerGallon,
	ColumnCylinders,
	ColumnDisplacement,
	ColumnHorsepower,
	ColumnWeight,
	ColumnAcceleration,
	ColumnYear,
	ColumnOrigin,
}

// columnAliases maps alternative header spellings to their column.
var columnAliases = map[string]Column{
	"weight_in_lbs": ColumnWeight,
	"mpg":           ColumnMilesPerGallon,
}

// ParseColumn resolves a column name case-insensitively.
// Known header aliases (e.g. "Weight_in_lbs") resolve to their column.
func ParseColumn(name string) (Column, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, c := range Columns {
		if strings.ToLower(string(c)) == key {
			return c, nil
		}
	}
	if c, ok := columnAliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}

// Numeric reports whether the column holds numbers.
func (c Column) Numeric() bool {
	switch c {
	case ColumnName, ColumnOrigin:
		return false
	default:
		return c != ""
	}
}

// EncodingType returns the chart-grammar type of the column.
func (c Column) EncodingType() string {
	switch c {
	case ColumnName, ColumnOrigin:
		return EncodingNominal
	case ColumnYear, ColumnCylinders:
		return EncodingOrdinal
	default:
		return EncodingQuantitative
	}
}

// String implements fmt.Stringer.
func (c Column) String() string {
	return string(c)
}
