package source

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// requiredColumns must be present in every CSV input.
var requiredColumns = []dataset.Column{
	dataset.ColumnHorsepower,
	dataset.ColumnMilesPerGallon,
	dataset.ColumnWeight,
	dataset.ColumnAcceleration,
	dataset.ColumnYear,
	dataset.ColumnOrigin,
}

// missingMarkers are cell values read as a missing number.
var missingMarkers = map[string]struct{}{
	"":      {},
	"NaN":   {},
	"NA":    {},
	"null":  {},
	"<nil>": {},
}

// ParseCSV decodes a car table with a header row. Headers are matched to
// columns case-insensitively; unknown headers are ignored. source labels
// the resulting dataset and every error.
func ParseCSV(r io.Reader, source string) (*dataset.Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, errhandling.NewParseError(source, "cannot read CSV", df.Err)
	}

	cols := make(map[dataset.Column][]string, len(dataset.Columns))
	for _, name := range df.Names() {
		c, err := dataset.ParseColumn(name)
		if err != nil {
			logger.Debug("ignoring unknown CSV column", slog.String("column", name), slog.String("source", source))
			continue
		}
		if _, dup := cols[c]; dup {
			return nil, errhandling.NewParseError(source, fmt.Sprintf("column %s appears twice", c), nil)
		}
		cols[c] = df.Col(name).Records()
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, string(c))
		}
	}
	if len(missing) > 0 {
		return nil, errhandling.NewParseError(source,
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil)
	}

	records := make([]dataset.Record, df.Nrow())
	for i := range records {
		rec, err := buildRecord(cols, i)
		if err != nil {
			// header is line 1
			return nil, errhandling.NewParseError(source, fmt.Sprintf("line %d: %v", i+2, err), err)
		}
		records[i] = rec
	}
	return dataset.New(source, records), nil
}

func buildRecord(cols map[dataset.Column][]string, row int) (dataset.Record, error) {
	cell := func(c dataset.Column) (string, bool) {
		values, ok := cols[c]
		if !ok {
			return "", false
		}
		return strings.TrimSpace(values[row]), true
	}

	rec := dataset.Record{Name: fmt.Sprintf("car-%d", row+1)}
	if name, ok := cell(dataset.ColumnName); ok && name != "" {
		rec.Name = name
	}

	numbers := []struct {
		col  dataset.Column
		dest *float64
	}{
		{dataset.ColumnMilesPerGallon, &rec.MilesPerGallon},
		{dataset.ColumnCylinders, &rec.Cylinders},
		{dataset.ColumnDisplacement, &rec.Displacement},
		{dataset.ColumnHorsepower, &rec.Horsepower},
		{dataset.ColumnWeight, &rec.Weight},
		{dataset.ColumnAcceleration, &rec.Acceleration},
	}
	for _, n := range numbers {
		raw, _ := cell(n.col)
		v, err := parseNumber(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", n.col, err)
		}
		*n.dest = v
	}

	rawYear, _ := cell(dataset.ColumnYear)
	year, err := parseYear(rawYear)
	if err != nil {
		return rec, fmt.Errorf("%s: %w", dataset.ColumnYear, err)
	}
	rec.Year = year

	rec.Origin, _ = cell(dataset.ColumnOrigin)
	if rec.Origin == "" {
		return rec, fmt.Errorf("%s: value is required", dataset.ColumnOrigin)
	}
	return rec, nil
}

// parseNumber returns NaN for a missing marker.
func parseNumber(raw string) (float64, error) {
	if _, missing := missingMarkers[raw]; missing {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return v, nil
}

// parseYear accepts a plain year or an ISO date, whose year is taken.
func parseYear(raw string) (int, error) {
	if _, missing := missingMarkers[raw]; missing {
		return 0, fmt.Errorf("value is required")
	}
	if y, err := strconv.Atoi(raw); err == nil {
		return y, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Year(), nil
		}
	}
	return 0, fmt.Errorf("invalid year %q", raw)
}
