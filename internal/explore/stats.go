package explore

import (
	"math"

	"github.com/canectors/carexplorer/pkg/dataset"
)

// DefaultHistogramBins is used when no bin count is configured.
const DefaultHistogramBins = 10

// Bin is one histogram bucket. Lower is inclusive; Upper is exclusive
// except for the last bin.
type Bin struct {
	Lower float64 `json:"lower" msgpack:"lower"`
	Upper float64 `json:"upper" msgpack:"upper"`
	Count int     `json:"count" msgpack:"count"`
}

// BoxStats is the five-number summary of a column, plus mean and count.
type BoxStats struct {
	Column dataset.Column `json:"column" msgpack:"column"`
	Min    float64        `json:"min" msgpack:"min"`
	Q1     float64        `json:"q1" msgpack:"q1"`
	Median float64        `json:"median" msgpack:"median"`
	Q3     float64        `json:"q3" msgpack:"q3"`
	Max    float64        `json:"max" msgpack:"max"`
	Mean   float64        `json:"mean" msgpack:"mean"`
	Count  int            `json:"count" msgpack:"count"`
}

// columnValues returns the known values of a numeric column.
func columnValues(records []dataset.Record, col dataset.Column) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := r.Number(col); ok && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// Histogram buckets the known values of col into equal-width bins spanning
// their range. It returns nil when col has no values. A column whose
// values are all equal yields a single bin.
func Histogram(records []dataset.Record, col dataset.Column, bins int) []Bin {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	values := columnValues(records, col)
	if len(values) == 0 {
		return nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

// Summarize computes the box-plot statistics of col.
// ok is false when col has no values.
func Summarize(records []dataset.Record, col dataset.Column) (BoxStats, bool) {
	values := columnValues(records, col)
	if len(values) == 0 {
		return BoxStats{Column: col}, false
	}
	sorted := sortedCopy(values)
	return BoxStats{
		Column: col,
		Min:    sorted[0],
		Q1:     quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q3:     quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
		Mean:   mean(sorted),
		Count:  len(sorted),
	}, true
}
