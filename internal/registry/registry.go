// Package registry maps module type strings to constructors for sources,
// filters and outputs.
//
// Built-in modules register themselves in init(). Adding a module type is a
// matter of implementing the module interface and registering it:
//
//	func init() {
//	    registry.RegisterSource("parquet", func(cfg *dashboard.ModuleConfig) (source.Module, error) {
//	        return NewParquetSource(cfg)
//	    })
//	}
//
// Unknown types have no constructor; the factory reports them as
// configuration errors.
package registry

import (
	"slices"
	"sync"

	"github.com/canectors/carexplorer/internal/modules/filter"
	"github.com/canectors/carexplorer/internal/modules/output"
	"github.com/canectors/carexplorer/internal/modules/source"
	"github.com/canectors/carexplorer/pkg/dashboard"
)

// SourceConstructor creates a source module from configuration.
type SourceConstructor func(cfg *dashboard.ModuleConfig) (source.Module, error)

// FilterConstructor creates a filter module from configuration. index is
// the filter's position in the dashboard.
type FilterConstructor func(cfg dashboard.ModuleConfig, index int) (filter.Module, error)

// OutputConstructor creates an output module from configuration.
type OutputConstructor func(cfg *dashboard.ModuleConfig) (output.Module, error)

var (
	sourceMu       sync.RWMutex
	sourceRegistry = make(map[string]SourceConstructor)

	filterMu       sync.RWMutex
	filterRegistry = make(map[string]FilterConstructor)

	outputMu       sync.RWMutex
	outputRegistry = make(map[string]OutputConstructor)
)

// RegisterSource registers a source constructor, replacing any previous
// constructor for the same type.
func RegisterSource(moduleType string, constructor SourceConstructor) {
	sourceMu.Lock()
	defer sourceMu.Unlock()
	sourceRegistry[moduleType] = constructor
}

// RegisterFilter registers a filter constructor, replacing any previous
// constructor for the same type.
func RegisterFilter(moduleType string, constructor FilterConstructor) {
	filterMu.Lock()
	defer filterMu.Unlock()
	filterRegistry[moduleType] = constructor
}

// RegisterOutput registers an output constructor, replacing any previous
// constructor for the same type.
func RegisterOutput(moduleType string, constructor OutputConstructor) {
	outputMu.Lock()
	defer outputMu.Unlock()
	outputRegistry[moduleType] = constructor
}

// GetSourceConstructor returns the constructor for moduleType, or nil.
func GetSourceConstructor(moduleType string) SourceConstructor {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	return sourceRegistry[moduleType]
}

// GetFilterConstructor returns the constructor for moduleType, or nil.
func GetFilterConstructor(moduleType string) FilterConstructor {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return filterRegistry[moduleType]
}

// GetOutputConstructor returns the constructor for moduleType, or nil.
func GetOutputConstructor(moduleType string) OutputConstructor {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return outputRegistry[moduleType]
}

// ListSourceTypes returns the registered source types, sorted.
func ListSourceTypes() []string {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	return sortedKeys(sourceRegistry)
}

// ListFilterTypes returns the registered filter types, sorted.
func ListFilterTypes() []string {
	filterMu.RLock()
	defer filterMu.RUnlock()
	return sortedKeys(filterRegistry)
}

// ListOutputTypes returns the registered output types, sorted.
func ListOutputTypes() []string {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return sortedKeys(outputRegistry)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ClearRegistries removes all registered constructors. For tests only.
func ClearRegistries() {
	sourceMu.Lock()
	sourceRegistry = make(map[string]SourceConstructor)
	sourceMu.Unlock()

	filterMu.Lock()
	filterRegistry = make(map[string]FilterConstructor)
	filterMu.Unlock()

	outputMu.Lock()
	outputRegistry = make(map[string]OutputConstructor)
	outputMu.Unlock()
}

// RegisterBuiltins registers the built-in modules again, e.g. after
// ClearRegistries in tests.
func RegisterBuiltins() {
	registerBuiltinSourceModules()
	registerBuiltinFilterModules()
	registerBuiltinOutputModules()
}
