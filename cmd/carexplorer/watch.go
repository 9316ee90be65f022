package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canectors/carexplorer/internal/cli"
	"github.com/canectors/carexplorer/internal/config"
	"github.com/canectors/carexplorer/internal/factory"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/internal/runtime"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dashboard-file>",
	Short: "Re-evaluate a dashboard whenever the file changes",
	Long: `Evaluate a dashboard, then watch the file and re-evaluate it on every save.

The dataset is loaded once and kept between runs together with the
horsepower selection, so changing a control re-runs the filters against the
same data. Removing the horsepower control forgets the selection. Changing
the source reloads the dataset; after a failed load nothing is reloaded
until the source changes. A save that does not parse or validate is
reported and the previous dashboard stays active.

Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	Run:  runWatch,
}

// watcher re-evaluates a dashboard file on change.
type watcher struct {
	path     string
	executor *runtime.Executor
	current  *dashboard.Dashboard
}

func runWatch(_ *cobra.Command, args []string) {
	path := args[0]
	d := loadDashboard(path).Dashboard

	executor, err := newExecutor(d, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to create modules: %v\n", err)
		os.Exit(ExitValidationError)
	}
	w := &watcher{path: path, executor: executor, current: d}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := executor.ExecuteWithContext(ctx, d)
	w.report(result, err)
	if code := exitCodeFor(result, err); code == ExitLoadFailure {
		_ = executor.Close()
		os.Exit(code)
	}

	changes := make(chan struct{}, 1)
	fileWatch := viper.New()
	fileWatch.SetConfigFile(path)
	if err := fileWatch.ReadInConfig(); err != nil {
		logger.Warn("initial read by file watcher failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	fileWatch.OnConfigChange(func(e fsnotify.Event) {
		logger.Debug("dashboard file changed",
			slog.String("path", e.Name),
			slog.String("op", e.Op.String()),
		)
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	fileWatch.WatchConfig()

	if !quiet() {
		fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", path)
	}
	for {
		select {
		case <-ctx.Done():
			_ = executor.Close()
			if !quiet() {
				fmt.Fprintln(os.Stderr, "Stopped watching")
			}
			os.Exit(ExitSuccess)
		case <-changes:
			w.reload(ctx)
		}
	}
}

// reload re-reads the dashboard file and re-runs it. Invalid files keep
// the previous dashboard.
func (w *watcher) reload(ctx context.Context) {
	result := config.Load(w.path)
	if !result.IsValid() {
		cli.PrintConfigErrors(result, verbose(), quiet())
		logger.Warn("dashboard change rejected; keeping previous version",
			slog.String("path", w.path),
			slog.String("error", errorString(result.Err())),
		)
		return
	}
	d := result.Dashboard

	filters, outputs, err := createStageModules(d)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Failed to create modules: %v\n", err)
		return
	}
	if reflect.DeepEqual(d.Source, w.current.Source) {
		w.executor.SetModules(nil, filters, outputs)
		if w.current.Controls.Horsepower != nil && d.Controls.Horsepower == nil {
			logger.Debug("horsepower control removed; selection reset", slog.String("path", w.path))
			w.executor.ResetSelection()
		}
	} else {
		src, err := factory.CreateSourceModule(d.Source)
		if err != nil {
			factory.CloseOutputs(outputs)
			fmt.Fprintf(os.Stderr, "✗ Failed to create source: %v\n", err)
			return
		}
		logger.Info("source changed; dataset will be reloaded", slog.String("source", d.Source.String()))
		w.executor.SetModules(src, filters, outputs)
	}
	w.current = d

	runResult, err := w.executor.ExecuteWithContext(ctx, d)
	w.report(runResult, err)
}

func (w *watcher) report(result *dashboard.RunResult, err error) {
	cli.PrintRunResult(result, err, cli.OutputOptions{Verbose: verbose(), Quiet: quiet()})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
