// Package source provides the dataset source modules. A source loads the
// car table once per session; every failure it reports is a load failure
// that halts the run.
package source

import (
	"context"
	"errors"

	"github.com/canectors/carexplorer/pkg/dataset"
)

// ErrNilConfig is returned when a constructor receives no configuration.
var ErrNilConfig = errors.New("source configuration is nil")

// Module represents a source module that loads the dataset.
type Module interface {
	// Load reads the whole dataset. The context can be used to cancel it.
	Load(ctx context.Context) (*dataset.Dataset, error)
	// Close releases any resources held by the module.
	Close() error
}
