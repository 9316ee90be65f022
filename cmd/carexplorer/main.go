// Package main provides the CLI entry point for carexplorer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canectors/carexplorer/internal/cli"
	"github.com/canectors/carexplorer/internal/config"
	"github.com/canectors/carexplorer/internal/factory"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/internal/modules/filter"
	"github.com/canectors/carexplorer/internal/modules/output"
	"github.com/canectors/carexplorer/internal/registry"
	"github.com/canectors/carexplorer/internal/runtime"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitRuntimeError    = 1
	ExitValidationError = 2
	ExitParseError      = 3
	ExitLoadFailure     = 4
)

// Settings keys, bound to flags and to CAREXPLORER_* environment variables.
const (
	keyVerbose   = "verbose"
	keyQuiet     = "quiet"
	keyLogFormat = "log-format"
	keyLogFile   = "log-file"
	keyDryRun    = "dry-run"
)

const envPrefix = "CAREXPLORER"

var (
	settings = newSettings()

	// Build information (set via ldflags during build)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func main() {
	err := rootCmd.Execute()
	logger.CloseLogFile()
	if err != nil {
		os.Exit(ExitRuntimeError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "carexplorer",
	Short: "carexplorer - Filter and aggregate the classic cars dataset",
	Long: `carexplorer evaluates dashboards over the classic automobile dataset.

A dashboard (JSON/YAML) selects a source, the widget controls (axes, color,
year range, origins, horsepower range), optional extra filters, aggregates
and outputs. Each run filters the dataset by year and origin, derives the
horsepower slider bounds from that subset, applies the horsepower range and
renders the result.

Settings can also be given as environment variables, e.g.
CAREXPLORER_LOG_FORMAT=human or CAREXPLORER_VERBOSE=true.

Examples:
  # Validate a dashboard
  carexplorer validate dashboard.yaml

  # Run it once
  carexplorer run dashboard.yaml

  # Re-run on every save
  carexplorer watch dashboard.yaml`,
	SilenceUsage:      true,
	PersistentPreRunE: configureLogging,
}

var validateCmd = &cobra.Command{
	Use:   "validate <dashboard-file>",
	Short: "Validate a dashboard file",
	Long: `Validate a dashboard file against the schema and resolve its columns.

Supports both JSON and YAML formats. The format is auto-detected
based on file extension (.json, .yaml, .yml) or content.

Exit codes:
  0 - Dashboard is valid
  2 - Validation errors (schema violations, unknown columns or modules)
  3 - Parse errors (invalid JSON/YAML syntax, unreadable file)`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

var runCmd = &cobra.Command{
	Use:   "run <dashboard-file>",
	Short: "Evaluate a dashboard once",
	Long: `Evaluate a dashboard and render its outputs.

The dashboard is validated first; nothing runs when validation fails.
A dashboard without outputs prints to the console.

Flags:
  --dry-run   Evaluate the dashboard without rendering outputs

Exit codes:
  0 - Dashboard evaluated (including an empty result)
  1 - Runtime errors (filter or output failure)
  2 - Validation errors
  3 - Parse errors
  4 - The dataset could not be loaded`,
	Args: cobra.ExactArgs(1),
	Run:  runDashboard,
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List the dataset columns",
	Long:  "List the dataset columns with their encoding type and whether they can be used as an axis.",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		cli.PrintColumns()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version, commit hash, and build date information.",
	Run:   runVersion,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolP(keyVerbose, "v", false, "Enable verbose output")
	flags.BoolP(keyQuiet, "q", false, "Suppress non-error output")
	flags.String(keyLogFormat, "json", "Log format: json or human")
	flags.String(keyLogFile, "", "Also write JSON logs to this file")
	for _, key := range []string{keyVerbose, keyQuiet, keyLogFormat, keyLogFile} {
		_ = settings.BindPFlag(key, flags.Lookup(key))
	}

	runCmd.Flags().Bool(keyDryRun, false, "Evaluate without rendering outputs")
	_ = settings.BindPFlag(keyDryRun, runCmd.Flags().Lookup(keyDryRun))

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(versionCmd)
}

func verbose() bool { return settings.GetBool(keyVerbose) }
func quiet() bool   { return settings.GetBool(keyQuiet) }

// configureLogging applies the log level, format and file settings.
func configureLogging(_ *cobra.Command, _ []string) error {
	format, err := logger.ParseFormat(settings.GetString(keyLogFormat))
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if verbose() {
		level = slog.LevelDebug
	} else if quiet() {
		level = slog.LevelError
	}

	if path := settings.GetString(keyLogFile); path != "" {
		if err := logger.SetLogFile(path, level, format); err != nil {
			return err
		}
		return nil
	}
	logger.SetLevelAndFormat(level, format)
	return nil
}

// loadDashboard loads a dashboard file and exits with the matching code
// when it is not valid.
func loadDashboard(path string) *config.Result {
	result := config.Load(path)
	if result.IsValid() {
		return result
	}
	cli.PrintConfigErrors(result, verbose(), quiet())
	if len(result.ParseErrors) > 0 {
		os.Exit(ExitParseError)
	}
	os.Exit(ExitValidationError)
	return nil
}

func runValidate(_ *cobra.Command, args []string) {
	path := args[0]
	if !quiet() {
		fmt.Printf("Validating dashboard: %s\n", path)
	}

	result := loadDashboard(path)
	if err := checkModuleTypes(result.Dashboard); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(ExitValidationError)
	}

	if !quiet() {
		fmt.Printf("✓ Dashboard is valid (format: %s)\n", result.Format)
		if verbose() {
			cli.PrintConfigSummary(result)
		}
	}
	os.Exit(ExitSuccess)
}

// checkModuleTypes reports module types that no constructor is registered for.
func checkModuleTypes(d *dashboard.Dashboard) error {
	if d.Source != nil && registry.GetSourceConstructor(d.Source.Type) == nil {
		return fmt.Errorf("unknown source type %q (known: %s)", d.Source.Type, strings.Join(registry.ListSourceTypes(), ", "))
	}
	for i, f := range d.Filters {
		if registry.GetFilterConstructor(f.Type) == nil {
			return fmt.Errorf("unknown filter type %q at index %d (known: %s)", f.Type, i, strings.Join(registry.ListFilterTypes(), ", "))
		}
	}
	for i, o := range d.Outputs {
		if registry.GetOutputConstructor(o.Type) == nil {
			return fmt.Errorf("unknown output type %q at index %d (known: %s)", o.Type, i, strings.Join(registry.ListOutputTypes(), ", "))
		}
	}
	return nil
}

func runDashboard(_ *cobra.Command, args []string) {
	dryRun := settings.GetBool(keyDryRun)
	result := loadDashboard(args[0])
	d := result.Dashboard

	if verbose() {
		fmt.Fprintf(os.Stderr, "Dashboard: %s", d.Name)
		if d.Version != "" {
			fmt.Fprintf(os.Stderr, " (v%s)", d.Version)
		}
		fmt.Fprintln(os.Stderr)
	}

	executor, err := newExecutor(d, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to create modules: %v\n", err)
		os.Exit(ExitValidationError)
	}

	runResult, err := executor.ExecuteWithContext(context.Background(), d)
	cli.PrintRunResult(runResult, err, cli.OutputOptions{Verbose: verbose(), Quiet: quiet(), DryRun: dryRun})
	code := exitCodeFor(runResult, err)
	_ = executor.Close()
	os.Exit(code)
}

// newExecutor builds the modules of d and an executor over them.
func newExecutor(d *dashboard.Dashboard, dryRun bool) (*runtime.Executor, error) {
	src, err := factory.CreateSourceModule(d.Source)
	if err != nil {
		return nil, err
	}
	filters, outputs, err := createStageModules(d)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return runtime.NewExecutorWithModules(src, filters, outputs, dryRun), nil
}

// createStageModules creates the filters and outputs of d. A dashboard
// without outputs gets a console output.
func createStageModules(d *dashboard.Dashboard) ([]filter.Module, []output.Module, error) {
	filters, err := factory.CreateFilterModules(d.Filters)
	if err != nil {
		return nil, nil, err
	}
	cfgs := d.Outputs
	if len(cfgs) == 0 {
		cfgs = []dashboard.ModuleConfig{{Type: registry.OutputConsole}}
	}
	outputs, err := factory.CreateOutputModules(cfgs)
	if err != nil {
		return nil, nil, err
	}
	return filters, outputs, nil
}

// exitCodeFor maps a run outcome to an exit code.
func exitCodeFor(result *dashboard.RunResult, err error) int {
	if err == nil {
		return ExitSuccess
	}
	if result != nil && result.Error != nil {
		switch result.Error.Code {
		case runtime.ErrCodeLoadFailed:
			return ExitLoadFailure
		case runtime.ErrCodeInvalidInput:
			return ExitValidationError
		}
	}
	return ExitRuntimeError
}

func runVersion(_ *cobra.Command, _ []string) {
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Build Date: %s\n", buildDate)
}
