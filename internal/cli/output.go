package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/canectors/carexplorer/internal/config"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
	DryRun  bool
}

// PrintRunResult displays the outcome of a dashboard run.
func PrintRunResult(result *dashboard.RunResult, err error, opts OutputOptions) {
	if result == nil {
		fmt.Fprintln(stderr, "✗ No run result available")
		return
	}

	if err != nil {
		fmt.Fprintln(stderr, "✗ Dashboard run failed")
		if result.Error != nil {
			if result.Error.Module != "" {
				fmt.Fprintf(stderr, "  Module: %s\n", result.Error.Module)
			}
			fmt.Fprintf(stderr, "  Code: %s\n", result.Error.Code)
			fmt.Fprintf(stderr, "  Error: %s\n", result.Error.Message)
			if opts.Verbose {
				printDetails(result.Error.Details)
			}
		} else {
			fmt.Fprintf(stderr, "  Error: %v\n", err)
		}
		return
	}

	if opts.Quiet {
		return
	}
	switch result.Status {
	case dashboard.StatusEmpty:
		fmt.Fprintln(stderr, "✓ Dashboard evaluated: no data")
		fmt.Fprintf(stderr, "  Notice: %s\n", result.Notice)
	default:
		fmt.Fprintln(stderr, "✓ Dashboard evaluated successfully")
	}
	fmt.Fprintf(stderr, "  Records: %d of %d\n", result.RecordsMatched, result.RecordsLoaded)
	if opts.DryRun {
		fmt.Fprintln(stderr, "  Outputs: skipped (dry-run mode)")
	} else {
		fmt.Fprintf(stderr, "  Outputs rendered: %d\n", result.OutputsRendered)
	}
	if opts.Verbose {
		fmt.Fprintf(stderr, "  Run ID: %s\n", result.RunID)
		fmt.Fprintf(stderr, "  Duration: %v\n", result.Duration())
		fmt.Fprintf(stderr, "  Summary: %s\n", logger.FormatMetricsHuman(logger.RunMetrics{
			TotalDuration:   result.Duration(),
			RecordsLoaded:   result.RecordsLoaded,
			RecordsMatched:  result.RecordsMatched,
			OutputsRendered: result.OutputsRendered,
		}))
	}
}

func printDetails(details map[string]interface{}) {
	if len(details) == 0 {
		return
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(stderr, "  %s: %v\n", k, details[k])
	}
}

// PrintConfigSummary prints the dashboard name and version of a valid file.
func PrintConfigSummary(result *config.Result) {
	if result == nil || result.Dashboard == nil {
		return
	}
	d := result.Dashboard
	fmt.Fprintf(stdout, "  Dashboard: %s\n", d.Name)
	if d.Version != "" {
		fmt.Fprintf(stdout, "  Version: %s\n", d.Version)
	}
	source := "bundled"
	if d.Source != nil {
		source = d.Source.Type
	}
	fmt.Fprintf(stdout, "  Source: %s\n", source)
	fmt.Fprintf(stdout, "  Filters: %d, aggregates: %d, outputs: %d\n", len(d.Filters), len(d.Aggregates), len(d.Outputs))
}

// PrintColumns lists the dataset columns with the encoding type the
// renderer uses for each.
func PrintColumns() {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tAXIS")
	for _, c := range dataset.Columns {
		axis := "no"
		if c.Numeric() {
			axis = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c, c.EncodingType(), axis)
	}
	_ = tw.Flush()
}
