package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/canectors/carexplorer/internal/explore"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// Chart kinds.
const (
	ChartScatter   = "scatter"
	ChartLine      = "line"
	ChartHistogram = "histogram"
)

// Image formats.
const (
	ImagePNG = "png"
	ImageSVG = "svg"
)

const (
	defaultChartWidth  = 900
	defaultChartHeight = 540
	pointSize          = 4
)

// steelblue
var defaultMarkColor = drawing.ColorFromHex("4682b4")

// ChartConfig configures the chart output module.
type ChartConfig struct {
	Path   string
	Kind   string
	Format string
	Width  int
	Height int
}

// ChartModule renders the view as an image.
type ChartModule struct {
	cfg ChartConfig
}

// NewChart validates cfg and creates the module.
func NewChart(cfg ChartConfig) (*ChartModule, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, ErrMissingPath
	}
	cfg.Kind = strings.ToLower(strings.TrimSpace(cfg.Kind))
	switch cfg.Kind {
	case "":
		cfg.Kind = ChartScatter
	case ChartScatter, ChartLine, ChartHistogram:
	default:
		return nil, fmt.Errorf("unsupported chart kind %q: must be scatter, line or histogram", cfg.Kind)
	}

	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.Format == "" {
		cfg.Format = strings.TrimPrefix(strings.ToLower(filepath.Ext(cfg.Path)), ".")
	}
	if cfg.Format != ImagePNG && cfg.Format != ImageSVG {
		return nil, fmt.Errorf("unsupported image format %q: must be png or svg", cfg.Format)
	}

	if cfg.Width <= 0 {
		cfg.Width = defaultChartWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultChartHeight
	}
	return &ChartModule{cfg: cfg}, nil
}

// NewChartFromConfig reads the path, kind, format, width and height options.
func NewChartFromConfig(mc *dashboard.ModuleConfig) (*ChartModule, error) {
	if mc == nil {
		return nil, ErrNilConfig
	}
	var cfg ChartConfig
	var err error
	if cfg.Path, err = mc.StringOption("path", ""); err != nil {
		return nil, err
	}
	if cfg.Kind, err = mc.StringOption("kind", ChartScatter); err != nil {
		return nil, err
	}
	if cfg.Format, err = mc.StringOption("format", ""); err != nil {
		return nil, err
	}
	if cfg.Width, err = mc.IntOption("width", defaultChartWidth); err != nil {
		return nil, err
	}
	if cfg.Height, err = mc.IntOption("height", defaultChartHeight); err != nil {
		return nil, err
	}
	return NewChart(cfg)
}

// Kind returns the chart kind.
func (c *ChartModule) Kind() string {
	return c.cfg.Kind
}

// Render draws the chart. Nothing is written for an empty view or when
// the view lacks the data the chart kind needs.
func (c *ChartModule) Render(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := requireView(run)
	if err != nil {
		return err
	}
	if v.Empty {
		logger.Info("chart skipped", slog.String("kind", c.cfg.Kind), slog.String("reason", v.Notice))
		return nil
	}

	var draw func(w io.Writer) error
	switch c.cfg.Kind {
	case ChartScatter:
		draw, err = c.scatter(v)
	case ChartLine:
		draw, err = c.trend(v)
	case ChartHistogram:
		draw, err = c.histogram(v)
	}
	if err != nil {
		return err
	}
	if draw == nil {
		logger.Info("chart skipped", slog.String("kind", c.cfg.Kind), slog.String("reason", "nothing to plot"))
		return nil
	}

	path, err := resolvePath(c.cfg.Path, run)
	if err != nil {
		return err
	}
	if err := writeFile(path, CompressionNone, draw); err != nil {
		return err
	}
	logger.Info("chart written", slog.String("path", path), slog.String("kind", c.cfg.Kind))
	return nil
}

// Close is a no-op.
func (c *ChartModule) Close() error {
	return nil
}

func (c *ChartModule) renderer() chart.RendererProvider {
	if c.cfg.Format == ImageSVG {
		return chart.SVG
	}
	return chart.PNG
}

func (c *ChartModule) scatter(v *explore.View) (func(io.Writer) error, error) {
	enc := v.Encoding
	if !enc.X.Numeric() || !enc.Y.Numeric() {
		return nil, fmt.Errorf("scatter chart needs numeric axes, got %s and %s", enc.X, enc.Y)
	}

	var series []chart.Series
	switch {
	case enc.Color == "":
		s := scatterSeries(string(enc.Y), v.Records, enc, nil)
		s.Style.DotColor = defaultMarkColor
		series = append(series, s)
	case enc.ColorType == dataset.EncodingQuantitative:
		series = append(series, gradientSeries(v.Records, enc))
	default:
		for i, group := range groupByColor(v.Records, enc.Color) {
			s := scatterSeries(group.label, v.Records, enc, group.keep)
			s.Style.DotColor = chart.GetDefaultColor(i)
			series = append(series, s)
		}
	}
	series = slices.DeleteFunc(series, func(s chart.Series) bool {
		return len(s.(chart.ContinuousSeries).XValues) == 0
	})
	if len(series) == 0 {
		return nil, nil
	}

	ch := c.baseChart(fmt.Sprintf("%s vs %s", enc.Y, enc.X))
	ch.XAxis = chart.XAxis{Name: string(enc.X)}
	ch.YAxis = chart.YAxis{Name: string(enc.Y)}
	ch.Series = series
	fitAxes(&ch)
	if len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return func(w io.Writer) error { return ch.Render(c.renderer(), w) }, nil
}

type colorGroup struct {
	label string
	keep  func(dataset.Record) bool
}

// groupByColor splits records by the distinct values of a nominal or
// ordinal column, in sorted order.
func groupByColor(records []dataset.Record, col dataset.Column) []colorGroup {
	seen := map[string]bool{}
	var labels []string
	for _, r := range records {
		label := r.Text(col)
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	slices.Sort(labels)
	groups := make([]colorGroup, len(labels))
	for i, label := range labels {
		groups[i] = colorGroup{label: label, keep: func(r dataset.Record) bool { return r.Text(col) == label }}
	}
	return groups
}

func scatterSeries(name string, records []dataset.Record, enc explore.Encoding, keep func(dataset.Record) bool) chart.ContinuousSeries {
	s := chart.ContinuousSeries{
		Name:  name,
		Style: chart.Style{StrokeWidth: chart.Disabled, DotWidth: pointSize},
	}
	for _, r := range records {
		if keep != nil && !keep(r) {
			continue
		}
		x, okX := r.Number(enc.X)
		y, okY := r.Number(enc.Y)
		if okX && okY {
			s.XValues = append(s.XValues, x)
			s.YValues = append(s.YValues, y)
		}
	}
	return s
}

// gradientSeries colors each point along the viridis scale of a
// quantitative color column. Points missing the color value use the
// default mark color.
func gradientSeries(records []dataset.Record, enc explore.Encoding) chart.ContinuousSeries {
	s := scatterSeries(string(enc.Color), records, enc, nil)
	colors := make([]float64, 0, len(s.XValues))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range records {
		if _, ok := r.Number(enc.X); !ok {
			continue
		}
		if _, ok := r.Number(enc.Y); !ok {
			continue
		}
		cv, ok := r.Number(enc.Color)
		if !ok {
			cv = math.NaN()
		} else {
			lo, hi = math.Min(lo, cv), math.Max(hi, cv)
		}
		colors = append(colors, cv)
	}
	s.Style.DotColorProvider = func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
		if index >= len(colors) || math.IsNaN(colors[index]) || lo >= hi {
			return defaultMarkColor
		}
		return chart.Viridis(colors[index], lo, hi)
	}
	return s
}

// trend plots the first trend. A numeric first key gives one line per
// value of the second key; anything else is drawn as bars.
func (c *ChartModule) trend(v *explore.View) (func(io.Writer) error, error) {
	if len(v.Trends) == 0 || len(v.Trends[0].Rows) == 0 {
		return nil, nil
	}
	tr := v.Trends[0]
	title := fmt.Sprintf("%s(%s) by %s", tr.Op, tr.Value, joinColumns(tr.GroupBy))
	if !tr.GroupBy[0].Numeric() {
		bars := make([]chart.Value, 0, len(tr.Rows))
		for _, row := range tr.Rows {
			if !math.IsNaN(row.Value) {
				bars = append(bars, chart.Value{Label: row.KeyString(), Value: row.Value})
			}
		}
		return c.bars(title, bars), nil
	}

	lines := map[string]*chart.ContinuousSeries{}
	var order []string
	for _, row := range tr.Rows {
		x, ok := keyNumber(row.Key[0])
		if !ok || math.IsNaN(row.Value) {
			continue
		}
		name := string(tr.Value)
		if len(row.Key) > 1 {
			name = fmt.Sprint(row.Key[1])
		}
		s, ok := lines[name]
		if !ok {
			s = &chart.ContinuousSeries{Name: name}
			lines[name] = s
			order = append(order, name)
		}
		s.XValues = append(s.XValues, x)
		s.YValues = append(s.YValues, row.Value)
	}
	if len(order) == 0 {
		return nil, nil
	}
	slices.Sort(order)

	ch := c.baseChart(title)
	ch.XAxis = chart.XAxis{Name: string(tr.GroupBy[0])}
	ch.YAxis = chart.YAxis{Name: string(tr.Value)}
	for i, name := range order {
		s := lines[name]
		s.Style = chart.Style{StrokeWidth: 2, StrokeColor: chart.GetDefaultColor(i), DotWidth: 3, DotColor: chart.GetDefaultColor(i)}
		ch.Series = append(ch.Series, *s)
	}
	fitAxes(&ch)
	if len(order) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return func(w io.Writer) error { return ch.Render(c.renderer(), w) }, nil
}

func (c *ChartModule) histogram(v *explore.View) (func(io.Writer) error, error) {
	if len(v.Histogram) == 0 {
		return nil, nil
	}
	bars := make([]chart.Value, len(v.Histogram))
	for i, bin := range v.Histogram {
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%s-%s", formatFloat(bin.Lower), formatFloat(bin.Upper)),
			Value: float64(bin.Count),
		}
	}
	return c.bars(fmt.Sprintf("Histogram of %s", v.HistogramColumn), bars), nil
}

func (c *ChartModule) bars(title string, bars []chart.Value) func(io.Writer) error {
	if len(bars) == 0 {
		return nil
	}
	bc := chart.BarChart{
		Title:    title,
		Width:    c.cfg.Width,
		Height:   c.cfg.Height,
		BarWidth: max(8, c.cfg.Width/(2*len(bars)+2)),
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{Range: barRange(bars)},
		Bars:  bars,
	}
	return func(w io.Writer) error { return bc.Render(c.renderer(), w) }
}

func (c *ChartModule) baseChart(title string) chart.Chart {
	return chart.Chart{
		Title:  title,
		Width:  c.cfg.Width,
		Height: c.cfg.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
	}
}

// fitAxes pins an axis whose values collapse to a single point to a padded
// range. go-chart refuses to draw a zero-width range.
func fitAxes(ch *chart.Chart) {
	var xs, ys []float64
	for _, s := range ch.Series {
		if cs, ok := s.(chart.ContinuousSeries); ok {
			xs = append(xs, cs.XValues...)
			ys = append(ys, cs.YValues...)
		}
	}
	if r := pointRange(xs); r != nil {
		ch.XAxis.Range = r
	}
	if r := pointRange(ys); r != nil {
		ch.YAxis.Range = r
	}
}

// pointRange returns a range padded around values when they all share one
// value, and nil otherwise.
func pointRange(values []float64) chart.Range {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo != hi {
		return nil
	}
	pad := math.Abs(lo) * 0.05
	if pad < 1 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// barRange spans the bar values and zero.
func barRange(bars []chart.Value) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo, hi = math.Min(lo, b.Value), math.Max(hi, b.Value)
	}
	if lo == hi {
		hi = 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func keyNumber(k any) (float64, bool) {
	switch v := k.(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

var _ Module = (*ChartModule)(nil)
