package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/canectors/carexplorer/internal/explore"
	"github.com/canectors/carexplorer/internal/logger"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// Export formats.
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatMsgpack = "msgpack"
	FormatArrow   = "arrow"
)

// ExportConfig configures the export output module.
type ExportConfig struct {
	// Path is the destination file; it may contain {{variables}}
	Path string
	// Format is json, csv, msgpack or arrow. Empty infers it from the path extension.
	Format string
	// Compression is none or zstd. Arrow files compress their buffers instead of the stream.
	Compression string
	// Pretty indents JSON output
	Pretty bool
}

// ExportModule writes the view to a file.
type ExportModule struct {
	cfg ExportConfig
}

// Document is the json and msgpack export payload.
type Document struct {
	RunID            string             `json:"runId" msgpack:"runId"`
	Dashboard        string             `json:"dashboard,omitempty" msgpack:"dashboard,omitempty"`
	Source           string             `json:"source" msgpack:"source"`
	Spec             dataset.FilterSpec `json:"filter" msgpack:"filter"`
	HorsepowerBounds *dataset.Range     `json:"horsepowerBounds,omitempty" msgpack:"horsepowerBounds,omitempty"`
	TotalRecords     int                `json:"totalRecords" msgpack:"totalRecords"`
	Matched          int                `json:"matched" msgpack:"matched"`
	Empty            bool               `json:"empty" msgpack:"empty"`
	Notice           string             `json:"notice,omitempty" msgpack:"notice,omitempty"`
	Encoding         explore.Encoding   `json:"encoding" msgpack:"encoding"`
	Records          []dataset.Record   `json:"records" msgpack:"records"`
	Trends           []explore.Trend    `json:"trends,omitempty" msgpack:"trends,omitempty"`
	Histogram        []explore.Bin      `json:"histogram,omitempty" msgpack:"histogram,omitempty"`
	Box              *explore.BoxStats  `json:"box,omitempty" msgpack:"box,omitempty"`
}

// NewDocument builds the export payload of a run.
func NewDocument(run Run) Document {
	v := run.View
	doc := Document{
		RunID:        run.ID,
		Dashboard:    run.Dashboard,
		Source:       v.Source,
		Spec:         v.Spec,
		TotalRecords: v.TotalRecords,
		Matched:      len(v.Records),
		Empty:        v.Empty,
		Notice:       v.Notice,
		Encoding:     v.Encoding,
		Records:      v.Records,
		Trends:       v.Trends,
		Histogram:    v.Histogram,
		Box:          v.Box,
	}
	if doc.Records == nil {
		doc.Records = []dataset.Record{}
	}
	if v.HasBounds {
		bounds := v.HorsepowerBounds
		doc.HorsepowerBounds = &bounds
	}
	return doc
}

// NewExport validates cfg and creates the module.
func NewExport(cfg ExportConfig) (*ExportModule, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, ErrMissingPath
	}
	format, err := resolveFormat(cfg.Format, cfg.Path)
	if err != nil {
		return nil, err
	}
	cfg.Format = format
	compression, err := normalizeCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	cfg.Compression = compression
	return &ExportModule{cfg: cfg}, nil
}

// NewExportFromConfig reads the path, format, compress and pretty options.
func NewExportFromConfig(mc *dashboard.ModuleConfig) (*ExportModule, error) {
	if mc == nil {
		return nil, ErrNilConfig
	}
	var cfg ExportConfig
	var err error
	if cfg.Path, err = mc.StringOption("path", ""); err != nil {
		return nil, err
	}
	if cfg.Format, err = mc.StringOption("format", ""); err != nil {
		return nil, err
	}
	if cfg.Compression, err = mc.StringOption("compress", CompressionNone); err != nil {
		return nil, err
	}
	if cfg.Pretty, err = mc.BoolOption("pretty", false); err != nil {
		return nil, err
	}
	return NewExport(cfg)
}

func resolveFormat(format, path string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(path, ".zst")))
		format = strings.TrimPrefix(ext, ".")
		switch format {
		case "mpk", "msgpack":
			format = FormatMsgpack
		case "arrow", "ipc", "feather":
			format = FormatArrow
		}
	}
	switch format {
	case FormatJSON, FormatCSV, FormatMsgpack, FormatArrow:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported export format %q: must be json, csv, msgpack or arrow", format)
	}
}

// Format returns the resolved export format.
func (e *ExportModule) Format() string {
	return e.cfg.Format
}

// Render writes the view. An empty view still produces a file so that
// downstream consumers see the notice.
func (e *ExportModule) Render(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := requireView(run)
	if err != nil {
		return err
	}
	path, err := resolvePath(e.cfg.Path, run)
	if err != nil {
		return err
	}

	if e.cfg.Format == FormatArrow {
		err = writeFile(path, CompressionNone, func(w io.Writer) error {
			return writeArrow(w, v, e.cfg.Compression == CompressionZstd)
		})
	} else {
		err = writeFile(path, e.cfg.Compression, func(w io.Writer) error {
			return e.encode(w, run)
		})
	}
	if err != nil {
		return err
	}
	logger.Info("export written",
		slog.String("path", path),
		slog.String("format", e.cfg.Format),
		slog.Int("records", len(v.Records)),
	)
	return nil
}

func (e *ExportModule) encode(w io.Writer, run Run) error {
	switch e.cfg.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		if e.cfg.Pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(NewDocument(run))
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(NewDocument(run))
	case FormatCSV:
		return writeCSV(w, run.View.Records)
	default:
		return fmt.Errorf("unsupported export format %q", e.cfg.Format)
	}
}

// Close is a no-op; every Render opens and closes its own file.
func (e *ExportModule) Close() error {
	return nil
}

func writeCSV(w io.Writer, records []dataset.Record) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(dataset.Columns))
	for i, col := range dataset.Columns {
		header[i] = string(col)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(dataset.Columns))
	for _, r := range records {
		for i, col := range dataset.Columns {
			row[i] = r.Text(col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RecordSchema is the Arrow schema of exported records. The encoding is
// attached as schema metadata.
func RecordSchema(enc explore.Encoding) *arrow.Schema {
	fields := make([]arrow.Field, len(dataset.Columns))
	for i, col := range dataset.Columns {
		switch {
		case col == dataset.ColumnYear:
			fields[i] = arrow.Field{Name: string(col), Type: arrow.PrimitiveTypes.Int32}
		case col.Numeric():
			fields[i] = arrow.Field{Name: string(col), Type: arrow.PrimitiveTypes.Float64, Nullable: true}
		default:
			fields[i] = arrow.Field{Name: string(col), Type: arrow.BinaryTypes.String}
		}
	}
	keys := []string{"x", "y"}
	values := []string{string(enc.X), string(enc.Y)}
	if enc.Color != "" {
		keys = append(keys, "color")
		values = append(values, string(enc.Color))
	}
	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(fields, &md)
}

func writeArrow(w io.Writer, v *explore.View, compress bool) error {
	schema := RecordSchema(v.Encoding)
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for _, r := range v.Records {
		for i, col := range dataset.Columns {
			switch fb := builder.Field(i).(type) {
			case *array.Int32Builder:
				fb.Append(int32(r.Year))
			case *array.StringBuilder:
				fb.Append(r.Text(col))
			case *array.Float64Builder:
				if n, ok := r.Number(col); ok && !math.IsInf(n, 0) {
					fb.Append(n)
				} else {
					fb.AppendNull()
				}
			}
		}
	}
	rec := builder.NewRecord()
	defer rec.Release()

	opts := []ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator)}
	if compress {
		opts = append(opts, ipc.WithZstd())
	}
	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}
	return fw.Close()
}

var _ Module = (*ExportModule)(nil)
