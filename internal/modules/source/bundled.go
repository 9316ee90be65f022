package source

import (
	"bytes"
	"context"
	_ "embed"
	"log/slog"

	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// BundledSourceName labels datasets loaded from the embedded sample.
const BundledSourceName = "bundled:cars"

//go:embed data/cars.csv
var bundledCSV []byte

// Bundled serves the embedded reference sample of the cars table.
type Bundled struct{}

// NewBundled creates a bundled source module.
func NewBundled() *Bundled {
	return &Bundled{}
}

// Load parses the embedded sample.
func (b *Bundled) Load(ctx context.Context) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := ParseCSV(bytes.NewReader(bundledCSV), BundledSourceName)
	if err != nil {
		return nil, err
	}
	logger.Debug("bundled dataset loaded", slog.Int("records", ds.Len()))
	return ds, nil
}

// Close is a no-op.
func (b *Bundled) Close() error {
	return nil
}

var _ Module = (*Bundled)(nil)
