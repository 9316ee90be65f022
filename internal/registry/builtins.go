package registry

import (
	"fmt"

	"github.com/canectors/carexplorer/internal/modules/filter"
	"github.com/canectors/carexplorer/internal/modules/output"
	"github.com/canectors/carexplorer/internal/modules/source"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

// Built-in module types.
const (
	SourceBundled   = "bundled"
	SourceCSV       = "csv"
	SourceSynthetic = "synthetic"

	FilterCondition = "condition"
	FilterScript    = "script"

	OutputConsole = "console"
	OutputExport  = "export"
	OutputChart   = "chart"
)

func init() {
	RegisterBuiltins()
}

func registerBuiltinSourceModules() {
	RegisterSource(SourceBundled, func(_ *dashboard.ModuleConfig) (source.Module, error) {
		return source.NewBundled(), nil
	})
	RegisterSource(SourceCSV, func(cfg *dashboard.ModuleConfig) (source.Module, error) {
		return source.NewCSVFileFromConfig(cfg)
	})
	RegisterSource(SourceSynthetic, func(cfg *dashboard.ModuleConfig) (source.Module, error) {
		return source.NewSyntheticFromConfig(cfg)
	})
}

func registerBuiltinFilterModules() {
	RegisterFilter(FilterCondition, func(cfg dashboard.ModuleConfig, index int) (filter.Module, error) {
		condConfig, err := filter.ParseConditionConfig(&cfg)
		if err != nil {
			return nil, fmt.Errorf("invalid condition config at index %d: %w", index, err)
		}
		module, err := filter.NewConditionFromConfig(condConfig)
		if err != nil {
			return nil, fmt.Errorf("invalid condition config at index %d: %w", index, err)
		}
		return module, nil
	})
	RegisterFilter(FilterScript, func(cfg dashboard.ModuleConfig, index int) (filter.Module, error) {
		scriptConfig, err := filter.ParseScriptConfig(&cfg)
		if err != nil {
			return nil, fmt.Errorf("invalid script config at index %d: %w", index, err)
		}
		module, err := filter.NewScriptFromConfig(scriptConfig)
		if err != nil {
			return nil, fmt.Errorf("invalid script config at index %d: %w", index, err)
		}
		return module, nil
	})
}

func registerBuiltinOutputModules() {
	RegisterOutput(OutputConsole, func(cfg *dashboard.ModuleConfig) (output.Module, error) {
		return output.NewConsoleFromConfig(cfg)
	})
	RegisterOutput(OutputExport, func(cfg *dashboard.ModuleConfig) (output.Module, error) {
		return output.NewExportFromConfig(cfg)
	})
	RegisterOutput(OutputChart, func(cfg *dashboard.ModuleConfig) (output.Module, error) {
		return output.NewChartFromConfig(cfg)
	})
}
