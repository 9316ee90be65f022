package output

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/canectors/carexplorer/internal/explore"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// DefaultConsoleMaxRows caps the data table printed by the console output.
const DefaultConsoleMaxRows = 20

// ConsoleModule prints a text summary of the view.
type ConsoleModule struct {
	w         io.Writer
	maxRows   int
	showStats bool
}

// NewConsole creates a console output writing to w (stdout when nil).
func NewConsole(w io.Writer, maxRows int, showStats bool) *ConsoleModule {
	if w == nil {
		w = os.Stdout
	}
	if maxRows <= 0 {
		maxRows = DefaultConsoleMaxRows
	}
	return &ConsoleModule{w: w, maxRows: maxRows, showStats: showStats}
}

// NewConsoleFromConfig reads the maxRows and stats options.
func NewConsoleFromConfig(cfg *dashboard.ModuleConfig) (*ConsoleModule, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	maxRows, err := cfg.IntOption("maxRows", DefaultConsoleMaxRows)
	if err != nil {
		return nil, err
	}
	stats, err := cfg.BoolOption("stats", true)
	if err != nil {
		return nil, err
	}
	return NewConsole(nil, maxRows, stats), nil
}

// Render prints the summary. An empty view prints its notice instead of
// aggregates and table.
func (c *ConsoleModule) Render(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := requireView(run)
	if err != nil {
		return err
	}

	var b strings.Builder
	if run.Dashboard != "" {
		fmt.Fprintf(&b, "Dashboard: %s\n", run.Dashboard)
	}
	fmt.Fprintf(&b, "Source: %s (%d records, %d after year/origin, %d matched)\n",
		v.Source, v.TotalRecords, v.StageOneCount, len(v.Records))
	fmt.Fprintf(&b, "Filters: years %d-%d, origins %s, horsepower %s",
		v.Spec.YearMin, v.Spec.YearMax, originList(v.Spec.AllowedOrigins), v.Spec.Horsepower())
	if v.HasBounds {
		fmt.Fprintf(&b, " (bounds %s)", v.HorsepowerBounds)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Encoding: %s\n", describeEncoding(v.Encoding))

	if v.Empty {
		fmt.Fprintf(&b, "\n%s\n", v.Notice)
		_, err := io.WriteString(c.w, b.String())
		return err
	}
	if v.HorsepowerRederived {
		b.WriteString("Horsepower selection reset to the data bounds\n")
	}

	if c.showStats {
		writeTrends(&b, v.Trends)
		writeBox(&b, v.Box)
		writeHistogram(&b, v.Histogram)
	}
	if v.ShowData {
		writeTable(&b, v.Records, c.maxRows)
	}
	_, err = io.WriteString(c.w, b.String())
	return err
}

// Close is a no-op.
func (c *ConsoleModule) Close() error {
	return nil
}

func originList(origins []string) string {
	if len(origins) == 0 {
		return "(none)"
	}
	return strings.Join(origins, ", ")
}

func describeEncoding(e explore.Encoding) string {
	s := fmt.Sprintf("x=%s (%s), y=%s (%s)", e.X, e.XType, e.Y, e.YType)
	if e.Color != "" {
		return s + fmt.Sprintf(", color=%s (%s)", e.Color, e.ColorType)
	}
	return s + ", color=" + e.DefaultColor
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeTrends(b *strings.Builder, trends []explore.Trend) {
	for _, tr := range trends {
		fmt.Fprintf(b, "\n%s(%s) by %s\n", tr.Op, tr.Value, joinColumns(tr.GroupBy))
		tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  KEY\tVALUE\tCOUNT")
		for _, row := range tr.Rows {
			fmt.Fprintf(tw, "  %s\t%s\t%d\n", row.KeyString(), formatFloat(row.Value), row.Count)
		}
		_ = tw.Flush()
	}
}

func writeBox(b *strings.Builder, box *explore.BoxStats) {
	if box == nil {
		return
	}
	fmt.Fprintf(b, "\n%s: min %s, q1 %s, median %s, q3 %s, max %s, mean %s (n=%d)\n",
		box.Column, formatFloat(box.Min), formatFloat(box.Q1), formatFloat(box.Median),
		formatFloat(box.Q3), formatFloat(box.Max), formatFloat(box.Mean), box.Count)
}

func writeHistogram(b *strings.Builder, bins []explore.Bin) {
	if len(bins) == 0 {
		return
	}
	peak := 0
	for _, bin := range bins {
		peak = max(peak, bin.Count)
	}
	b.WriteString("\nHistogram\n")
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for _, bin := range bins {
		bar := 0
		if peak > 0 {
			bar = bin.Count * 30 / peak
		}
		fmt.Fprintf(tw, "  %s-%s\t%d\t%s\n", formatFloat(bin.Lower), formatFloat(bin.Upper), bin.Count, strings.Repeat("#", bar))
	}
	_ = tw.Flush()
}

func writeTable(b *strings.Builder, records []dataset.Record, maxRows int) {
	b.WriteString("\n")
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	header := make([]string, len(dataset.Columns))
	for i, col := range dataset.Columns {
		header[i] = string(col)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, r := range records {
		if i == maxRows {
			break
		}
		cells := make([]string, len(dataset.Columns))
		for j, col := range dataset.Columns {
			cells[j] = r.Text(col)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	if len(records) > maxRows {
		fmt.Fprintf(b, "... (%d more rows)\n", len(records)-maxRows)
	}
}

func joinColumns(cols []dataset.Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

var _ Module = (*ConsoleModule)(nil)
