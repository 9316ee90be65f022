package runtime

import (
	"fmt"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/explore"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// BuildControls overlays dashboard controls on the defaults of a freshly
// opened dashboard. Aggregates, when present, replace the default trend.
func BuildControls(c dashboard.Controls, aggregates []dashboard.Aggregate) (explore.Controls, error) {
	controls := explore.DefaultControls()

	if c.X != "" {
		controls.X = c.X
	}
	if c.Y != "" {
		controls.Y = c.Y
	}
	if c.Color != nil {
		controls.Color = *c.Color
	}
	if !controls.X.Numeric() || !controls.Y.Numeric() {
		return explore.Controls{}, errhandling.NewValidationError(
			fmt.Sprintf("scatter axes must be numeric, got x=%s y=%s", controls.X, controls.Y), nil)
	}

	if c.YearMin != nil {
		v := *c.YearMin
		controls.YearMin = &v
	}
	if c.YearMax != nil {
		v := *c.YearMax
		controls.YearMax = &v
	}
	if c.Origins != nil {
		controls.Origins = append([]string{}, c.Origins...)
	}
	if c.Horsepower != nil {
		hp := *c.Horsepower
		controls.Horsepower = &hp
	}
	controls.ShowData = c.ShowData

	if c.HistogramColumn != "" {
		controls.HistogramColumn = c.HistogramColumn
	}
	if c.HistogramBins > 0 {
		controls.HistogramBins = c.HistogramBins
	}
	if c.BoxColumn != "" {
		controls.BoxColumn = c.BoxColumn
	}

	if len(aggregates) > 0 {
		controls.Trends = make([]explore.TrendSpec, 0, len(aggregates))
		for i, agg := range aggregates {
			op, err := explore.ParseOp(agg.Op)
			if err != nil {
				return explore.Controls{}, errhandling.NewValidationError(fmt.Sprintf("aggregate %d", i), err)
			}
			if len(agg.GroupBy) == 0 || !agg.Value.Numeric() {
				return explore.Controls{}, errhandling.NewValidationError(
					fmt.Sprintf("aggregate %d needs group keys and a numeric value", i), nil)
			}
			controls.Trends = append(controls.Trends, explore.TrendSpec{
				GroupBy: append([]dataset.Column{}, agg.GroupBy...),
				Value:   agg.Value,
				Op:      op,
			})
		}
	}
	return controls, nil
}
