package dashboard

import "github.com/canectors/carexplorer/pkg/dataset"

// Dashboard is a validated dashboard definition.
type Dashboard struct {
	// Name identifies the dashboard in logs, run results and output paths
	Name string `json:"name" yaml:"name"`

	// Version is the dashboard definition version
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Description is free text
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Source loads the dataset; nil means the bundled table
	Source *ModuleConfig `json:"source,omitempty" yaml:"source,omitempty"`

	// Controls are the widget values applied on every run
	Controls Controls `json:"controls" yaml:"controls"`

	// Filters are extra stage-one predicates, applied in order
	Filters []ModuleConfig `json:"filters,omitempty" yaml:"filters,omitempty"`

	// Aggregates replace the default trend when set
	Aggregates []Aggregate `json:"aggregates,omitempty" yaml:"aggregates,omitempty"`

	// Outputs render each run
	Outputs []ModuleConfig `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// Controls holds the configured widget values. Unset fields keep the
// dashboard defaults.
type Controls struct {
	X dataset.Column `json:"x,omitempty" yaml:"x,omitempty"`
	Y dataset.Column `json:"y,omitempty" yaml:"y,omitempty"`

	// Color is nil for the default color-by column and points to ""
	// when coloring is disabled
	Color *dataset.Column `json:"color,omitempty" yaml:"color,omitempty"`

	YearMin *int `json:"yearMin,omitempty" yaml:"yearMin,omitempty"`
	YearMax *int `json:"yearMax,omitempty" yaml:"yearMax,omitempty"`

	// Origins is nil to select every origin
	Origins []string `json:"origins,omitempty" yaml:"origins,omitempty"`

	Horsepower *dataset.Range `json:"horsepower,omitempty" yaml:"horsepower,omitempty"`

	ShowData bool `json:"showData,omitempty" yaml:"showData,omitempty"`

	HistogramColumn dataset.Column `json:"histogramColumn,omitempty" yaml:"histogramColumn,omitempty"`
	HistogramBins   int            `json:"histogramBins,omitempty" yaml:"histogramBins,omitempty"`

	BoxColumn dataset.Column `json:"box,omitempty" yaml:"box,omitempty"`
}

// Aggregate configures one derived series.
type Aggregate struct {
	GroupBy []dataset.Column `json:"groupBy" yaml:"groupBy"`
	Value   dataset.Column   `json:"value" yaml:"value"`
	// Op is the operation name; empty means mean
	Op string `json:"op,omitempty" yaml:"op,omitempty"`
}
