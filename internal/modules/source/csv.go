package source

import (
	"context"
	"log/slog"
	"os"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/internal/pathutil"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// DefaultCSVPath is the dataset location relative to the working directory.
const DefaultCSVPath = "data/cars.csv"

// CSVFile loads the dataset from a CSV file.
type CSVFile struct {
	path string
}

// NewCSVFile creates a CSV source reading path. An empty path means DefaultCSVPath.
func NewCSVFile(path string) *CSVFile {
	if path == "" {
		path = DefaultCSVPath
	}
	return &CSVFile{path: path}
}

// NewCSVFileFromConfig creates a CSV source from module configuration.
func NewCSVFileFromConfig(cfg *dashboard.ModuleConfig) (*CSVFile, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	path, err := cfg.StringOption("path", DefaultCSVPath)
	if err != nil {
		return nil, err
	}
	if err := pathutil.ValidateFilePath(path); err != nil {
		return nil, err
	}
	return NewCSVFile(path), nil
}

// Path returns the file the module reads.
func (c *CSVFile) Path() string {
	return c.path
}

// Load checks the file is present and readable, then parses it.
func (c *CSVFile) Load(ctx context.Context) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := pathutil.CheckReadableFile(c.path); err != nil {
		return nil, err
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, errhandling.ClassifyError(err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close dataset file", slog.String("path", c.path), slog.String("error", closeErr.Error()))
		}
	}()

	ds, err := ParseCSV(f, c.path)
	if err != nil {
		return nil, err
	}
	logger.Debug("csv dataset loaded", slog.String("path", c.path), slog.Int("records", ds.Len()))
	return ds, nil
}

// Close is a no-op; the file is closed by Load.
func (c *CSVFile) Close() error {
	return nil
}

var _ Module = (*CSVFile)(nil)
