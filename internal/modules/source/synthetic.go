package source

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// Synthetic generator defaults.
const (
	DefaultSyntheticSeed = 42
	DefaultSyntheticRows = 400
	syntheticFirstYear   = 1970
	syntheticLastYear    = 1982
	// share of rows with a missing horsepower value
	syntheticMissingRate = 0.02
)

// Synthetic generates a reproducible pseudo-random car table.
// The same seed and row count always yield identical records.
type Synthetic struct {
	seed uint64
	rows int
}

// NewSynthetic creates a generator for rows records.
func NewSynthetic(seed uint64, rows int) *Synthetic {
	return &Synthetic{seed: seed, rows: rows}
}

// NewSyntheticFromConfig reads the optional seed and rows options.
func NewSyntheticFromConfig(cfg *dashboard.ModuleConfig) (*Synthetic, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	seed, err := cfg.IntOption("seed", DefaultSyntheticSeed)
	if err != nil {
		return nil, err
	}
	rows, err := cfg.IntOption("rows", DefaultSyntheticRows)
	if err != nil {
		return nil, err
	}
	if seed < 0 {
		return nil, fmt.Errorf("seed must not be negative, got %d", seed)
	}
	if rows < 0 {
		return nil, fmt.Errorf("rows must not be negative, got %d", rows)
	}
	return NewSynthetic(uint64(seed), rows), nil
}

// origin profiles: share of rows and typical cylinder counts
var syntheticOrigins = []struct {
	name      string
	share     float64
	cylinders []float64
}{
	{dataset.OriginUSA, 0.62, []float64{4, 6, 8, 8}},
	{dataset.OriginJapan, 0.20, []float64{4, 4, 4, 6}},
	{dataset.OriginEurope, 0.18, []float64{4, 4, 5, 6}},
}

// Load generates the table.
func (s *Synthetic) Load(ctx context.Context) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	records := make([]dataset.Record, s.rows)
	for i := range records {
		records[i] = syntheticRecord(rng, i)
	}
	return dataset.New(fmt.Sprintf("synthetic:seed=%d", s.seed), records), nil
}

func syntheticRecord(rng *rand.Rand, i int) dataset.Record {
	pick := rng.Float64()
	profile := syntheticOrigins[len(syntheticOrigins)-1]
	for _, o := range syntheticOrigins {
		if pick < o.share {
			profile = o
			break
		}
		pick -= o.share
	}

	year := syntheticFirstYear + rng.IntN(syntheticLastYear-syntheticFirstYear+1)
	cylinders := profile.cylinders[rng.IntN(len(profile.cylinders))]
	displacement := round(cylinders*(38+rng.Float64()*14), 0)
	horsepower := round(20+displacement*0.45+rng.NormFloat64()*12, 0)
	weight := round(1300+displacement*7.5+rng.NormFloat64()*180, 0)
	// economy improves by model year and drops with weight
	mpg := round(math.Max(9, 52-weight/140+float64(year-syntheticFirstYear)*0.8+rng.NormFloat64()*2.5), 1)
	acceleration := round(math.Max(8, 24-horsepower/18+rng.NormFloat64()*1.2), 1)

	if rng.Float64() < syntheticMissingRate {
		horsepower = math.NaN()
	}

	return dataset.Record{
		Name:           fmt.Sprintf("synthetic-%03d", i+1),
		MilesPerGallon: mpg,
		Cylinders:      cylinders,
		Displacement:   displacement,
		Horsepower:     horsepower,
		Weight:         weight,
		Acceleration:   acceleration,
		Year:           year,
		Origin:         profile.name,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Close is a no-op.
func (s *Synthetic) Close() error {
	return nil
}

var _ Module = (*Synthetic)(nil)
