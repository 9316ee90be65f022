package explore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// DefaultColor is the mark color when no color-by column is chosen.
const DefaultColor = "steelblue"

// Notices attached to an empty view.
const (
	NoticeNoData            = "no data matches the current filters"
	NoticeNoHorsepower      = "no horsepower values in the year and origin selection"
	NoticeInvertedSelection = "horsepower selection is inverted; no record can match"
)

// RecordFilter is an extra stage-one predicate contributed by a filter
// module. It must return a subset of its input in input order.
type RecordFilter interface {
	Process(ctx context.Context, records []dataset.Record) ([]dataset.Record, error)
}

// FilterError reports a failing extra filter.
type FilterError struct {
	Index int
	Err   error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %d: %v", e.Index, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// TrendSpec describes one derived aggregate series.
type TrendSpec struct {
	GroupBy []dataset.Column `json:"groupBy" msgpack:"groupBy"`
	Value   dataset.Column   `json:"value" msgpack:"value"`
	Op      Op               `json:"op" msgpack:"op"`
}

// Trend is a computed aggregate series.
type Trend struct {
	TrendSpec
	Rows []dataset.AggregateRow `json:"rows" msgpack:"rows"`
}

// Controls are the dashboard widget values for one run.
// Nil pointers mean "use the full extent of the data".
type Controls struct {
	// X and Y are the scatter axes
	X dataset.Column
	Y dataset.Column
	// Color is the color-by column; empty means a single default color
	Color dataset.Column

	YearMin *int
	YearMax *int

	// Origins restricts the origin multi-select. Nil selects every origin,
	// an empty non-nil slice selects none.
	Origins []string

	// Horsepower is the requested stage-two selection
	Horsepower *dataset.Range

	// ShowData asks outputs to include the filtered table
	ShowData bool

	Trends []TrendSpec

	HistogramColumn dataset.Column
	HistogramBins   int

	BoxColumn dataset.Column
}

// DefaultControls returns the controls of a freshly opened dashboard.
func DefaultControls() Controls {
	return Controls{
		X:               dataset.ColumnWeight,
		Y:               dataset.ColumnMilesPerGallon,
		Color:           dataset.ColumnOrigin,
		HistogramColumn: dataset.ColumnMilesPerGallon,
		HistogramBins:   DefaultHistogramBins,
		BoxColumn:       dataset.ColumnMilesPerGallon,
		Trends: []TrendSpec{{
			GroupBy: []dataset.Column{dataset.ColumnYear},
			Value:   dataset.ColumnMilesPerGallon,
			Op:      OpMean,
		}},
	}
}

// Encoding annotates the output with the columns used for each channel.
type Encoding struct {
	X            dataset.Column   `json:"x" msgpack:"x"`
	XType        string           `json:"xType" msgpack:"xType"`
	Y            dataset.Column   `json:"y" msgpack:"y"`
	YType        string           `json:"yType" msgpack:"yType"`
	Color        dataset.Column   `json:"color,omitempty" msgpack:"color,omitempty"`
	ColorType    string           `json:"colorType,omitempty" msgpack:"colorType,omitempty"`
	DefaultColor string           `json:"defaultColor,omitempty" msgpack:"defaultColor,omitempty"`
	Tooltip      []dataset.Column `json:"tooltip" msgpack:"tooltip"`
}

// NewEncoding derives the channel annotation from the controls.
func NewEncoding(c Controls) Encoding {
	enc := Encoding{
		X:       c.X,
		XType:   c.X.EncodingType(),
		Y:       c.Y,
		YType:   c.Y.EncodingType(),
		Tooltip: []dataset.Column{dataset.ColumnName, c.X, c.Y},
	}
	if c.Color == "" {
		enc.DefaultColor = DefaultColor
	} else {
		enc.Color = c.Color
		enc.ColorType = c.Color.EncodingType()
	}
	return enc
}

// View is the result of one evaluation, ready for rendering.
type View struct {
	Source string

	// Spec is the filter that produced Records, with the applied
	// horsepower selection
	Spec dataset.FilterSpec

	TotalRecords  int
	StageOneCount int

	// HorsepowerBounds are the slider bounds derived from stage one
	HorsepowerBounds dataset.Range
	HasBounds        bool
	// HorsepowerRederived is true when the selection was reset to the bounds
	HorsepowerRederived bool

	Records  []dataset.Record
	Encoding Encoding

	Trends          []Trend
	Histogram       []Bin
	HistogramColumn dataset.Column
	Box             *BoxStats

	ShowData bool

	// Empty signals that no record matched; Notice says why
	Empty  bool
	Notice string
}

// Evaluate runs the full pipeline against ds: stage one (year, origin and
// extra filters), horsepower bounds from the stage-one subset, cascading
// of the selection, stage two, then aggregates. previous is the selection
// kept from the last run and is used when controls carry none. Aggregates
// are skipped when the result is empty.
func Evaluate(ctx context.Context, ds *dataset.Dataset, controls Controls, previous *dataset.Range, extra ...RecordFilter) (*View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec := resolveStageOne(ds, controls)
	view := &View{
		Source:       ds.Source(),
		TotalRecords: ds.Len(),
		Encoding:     NewEncoding(controls),
		ShowData:     controls.ShowData,
		Records:      []dataset.Record{},
	}

	stageOne := FilterYearOrigin(ds.Records(), spec.YearMin, spec.YearMax, spec.AllowedOrigins)
	for i, f := range extra {
		if f == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := f.Process(ctx, stageOne)
		if err != nil {
			return nil, &FilterError{Index: i, Err: err}
		}
		stageOne = next
	}
	view.StageOneCount = len(stageOne)

	bounds, ok := HorsepowerBounds(stageOne)
	if !ok {
		if controls.Horsepower != nil {
			spec.HorsepowerMin, spec.HorsepowerMax = controls.Horsepower.Min, controls.Horsepower.Max
		}
		view.Spec = spec
		view.Empty = true
		view.Notice = NoticeNoData
		if len(stageOne) > 0 {
			view.Notice = NoticeNoHorsepower
		}
		return view, nil
	}
	view.HorsepowerBounds = bounds
	view.HasBounds = true

	requested := controls.Horsepower
	if requested == nil {
		requested = previous
	}
	selection, rederived := Cascade(bounds, requested)
	if rederived && requested != nil {
		logger.Debug("horsepower selection reset to derived bounds",
			slog.String("requested", requested.String()),
			slog.String("bounds", bounds.String()),
		)
	}
	spec.HorsepowerMin, spec.HorsepowerMax = selection.Min, selection.Max
	view.Spec = spec
	view.HorsepowerRederived = rederived

	view.Records = FilterHorsepower(stageOne, selection)
	if len(view.Records) == 0 {
		view.Empty = true
		view.Notice = NoticeNoData
		if selection.Inverted() {
			view.Notice = NoticeInvertedSelection
		}
		return view, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return view, computeAggregates(view, controls)
}

// resolveStageOne fills the year and origin predicates from the controls,
// falling back to the dataset extent.
func resolveStageOne(ds *dataset.Dataset, c Controls) dataset.FilterSpec {
	minYear, maxYear, _ := ds.YearRange()
	spec := dataset.FilterSpec{YearMin: minYear, YearMax: maxYear}
	if c.YearMin != nil {
		spec.YearMin = *c.YearMin
	}
	if c.YearMax != nil {
		spec.YearMax = *c.YearMax
	}
	if c.Origins == nil {
		spec.AllowedOrigins = ds.Origins()
	} else {
		spec.AllowedOrigins = slices.Clone(c.Origins)
	}
	return spec
}

func computeAggregates(view *View, c Controls) error {
	view.Trends = make([]Trend, 0, len(c.Trends))
	for i, ts := range c.Trends {
		rows, err := Aggregate(view.Records, ts.GroupBy, ts.Value, ts.Op)
		if err != nil {
			return fmt.Errorf("computing trend %d: %w", i, err)
		}
		if ts.Op == "" {
			ts.Op = OpMean
		}
		view.Trends = append(view.Trends, Trend{TrendSpec: ts, Rows: rows})
	}

	if c.HistogramColumn != "" {
		view.Histogram = Histogram(view.Records, c.HistogramColumn, c.HistogramBins)
		view.HistogramColumn = c.HistogramColumn
	}
	if c.BoxColumn != "" {
		if stats, ok := Summarize(view.Records, c.BoxColumn); ok {
			view.Box = &stats
		}
	}
	return nil
}
