// Package factory instantiates the modules of a dashboard from their
// configuration, looking constructors up in the registry. New module types
// only need to be registered; see internal/registry.
package factory

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/internal/modules/filter"
	"github.com/canectors/carexplorer/internal/modules/output"
	"github.com/canectors/carexplorer/internal/modules/source"
	"github.com/canectors/carexplorer/internal/registry"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

// ErrUnknownModuleType is returned for a type with no registered constructor.
var ErrUnknownModuleType = errors.New("unknown module type")

// CreateSourceModule creates the dataset source. A nil configuration
// selects the bundled table.
func CreateSourceModule(cfg *dashboard.ModuleConfig) (source.Module, error) {
	if cfg == nil {
		cfg = &dashboard.ModuleConfig{Type: registry.SourceBundled}
	}
	constructor := registry.GetSourceConstructor(cfg.Type)
	if constructor == nil {
		return nil, unknownType("source", cfg.Type, registry.ListSourceTypes())
	}
	module, err := constructor(cfg)
	if err != nil {
		return nil, errhandling.NewValidationError(fmt.Sprintf("invalid %s source config", cfg.Type), err)
	}
	logger.WithModule("source", cfg.Type).Debug("module created")
	return module, nil
}

// CreateFilterModules creates the extra filters in order.
func CreateFilterModules(cfgs []dashboard.ModuleConfig) ([]filter.Module, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	modules := make([]filter.Module, 0, len(cfgs))
	for i, cfg := range cfgs {
		constructor := registry.GetFilterConstructor(cfg.Type)
		if constructor == nil {
			return nil, unknownType(fmt.Sprintf("filter at index %d", i), cfg.Type, registry.ListFilterTypes())
		}
		module, err := constructor(cfg, i)
		if err != nil {
			return nil, errhandling.NewValidationError(err.Error(), err)
		}
		logger.WithModule("filter", cfg.Type).Debug("module created", slog.Int("index", i))
		modules = append(modules, module)
	}
	return modules, nil
}

// CreateOutputModules creates the outputs in order. Modules already
// created are closed when a later one fails.
func CreateOutputModules(cfgs []dashboard.ModuleConfig) ([]output.Module, error) {
	modules := make([]output.Module, 0, len(cfgs))
	for i := range cfgs {
		cfg := &cfgs[i]
		constructor := registry.GetOutputConstructor(cfg.Type)
		var module output.Module
		var err error
		if constructor == nil {
			err = unknownType(fmt.Sprintf("output at index %d", i), cfg.Type, registry.ListOutputTypes())
		} else if module, err = constructor(cfg); err != nil {
			err = errhandling.NewValidationError(fmt.Sprintf("invalid %s output config at index %d", cfg.Type, i), err)
		}
		if err != nil {
			CloseOutputs(modules)
			return nil, err
		}
		logger.WithModule("output", cfg.Type).Debug("module created", slog.Int("index", i))
		modules = append(modules, module)
	}
	return modules, nil
}

// CloseOutputs closes every module, logging failures.
func CloseOutputs(modules []output.Module) {
	for i, m := range modules {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil {
			logger.Warn("failed to close output module", slog.Int("index", i), slog.String("error", err.Error()))
		}
	}
}

func unknownType(kind, moduleType string, known []string) error {
	return errhandling.NewValidationError(
		fmt.Sprintf("%s: %q is not one of %v", kind, moduleType, known),
		fmt.Errorf("%w: %q", ErrUnknownModuleType, moduleType),
	)
}
