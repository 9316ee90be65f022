// Package output provides implementations for output modules.
// Output modules render an evaluated view: a console summary, data exports
// and chart images.
package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/canectors/carexplorer/internal/errhandling"
	"github.com/canectors/carexplorer/internal/explore"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/internal/pathutil"
	"github.com/canectors/carexplorer/internal/template"
)

// Compression modes for file outputs.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

var (
	ErrNilConfig          = errors.New("module configuration is nil")
	ErrNilView            = errors.New("run has no view to render")
	ErrMissingPath        = errors.New("path is required in module configuration")
	ErrUnknownCompression = errors.New("unknown compression: must be none or zstd")
)

// Run is what an output module receives: the evaluated view plus the
// identity of the run that produced it.
type Run struct {
	ID        string
	Dashboard string
	View      *explore.View
}

// Module represents an output module that renders a view.
type Module interface {
	// Render writes the view to the module's destination.
	Render(ctx context.Context, run Run) error

	// Close releases any resources held by the module.
	Close() error
}

// PathVars returns the variables available to output path templates.
func PathVars(run Run) map[string]interface{} {
	vars := map[string]interface{}{
		"runId":     run.ID,
		"dashboard": run.Dashboard,
	}
	v := run.View
	if v == nil {
		return vars
	}
	vars["source"] = v.Source
	vars["x"] = string(v.Encoding.X)
	vars["y"] = string(v.Encoding.Y)
	if v.Encoding.Color != "" {
		vars["color"] = string(v.Encoding.Color)
	}
	vars["yearMin"] = v.Spec.YearMin
	vars["yearMax"] = v.Spec.YearMax
	if v.HasBounds {
		vars["hpMin"] = v.Spec.HorsepowerMin
		vars["hpMax"] = v.Spec.HorsepowerMax
	}
	vars["records"] = len(v.Records)
	return vars
}

var paths = template.NewEvaluator()

// resolvePath expands the path template for run and prepares its directory.
func resolvePath(pathTemplate string, run Run) (string, error) {
	path := pathTemplate
	if template.HasVariables(path) {
		path = paths.EvaluatePath(path, PathVars(run))
	}
	if err := pathutil.PrepareOutputFile(path); err != nil {
		return "", err
	}
	return path, nil
}

func normalizeCompression(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

// writeFile creates path and streams write into it, through a zstd encoder
// when compression is CompressionZstd. The file is removed if write fails.
func writeFile(path, compression string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errhandling.NewIOError(path, "cannot create output file", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errhandling.NewIOError(path, "cannot close output file", closeErr)
		}
		if err != nil {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn("failed to remove partial output", slog.String("path", path), slog.String("error", rmErr.Error()))
			}
		}
	}()

	if compression != CompressionZstd {
		if err := write(f); err != nil {
			return errhandling.NewRenderError(path, "cannot write output", err)
		}
		return nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return errhandling.NewRenderError(path, "cannot create zstd encoder", err)
	}
	if err := write(enc); err != nil {
		_ = enc.Close()
		return errhandling.NewRenderError(path, "cannot write output", err)
	}
	if err := enc.Close(); err != nil {
		return errhandling.NewRenderError(path, "cannot flush zstd stream", err)
	}
	return nil
}

func requireView(run Run) (*explore.View, error) {
	if run.View == nil {
		return nil, ErrNilView
	}
	return run.View, nil
}
