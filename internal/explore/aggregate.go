package explore

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/canectors/carexplorer/pkg/dataset"
)

// Op is an aggregate operation applied to each group.
type Op string

// Supported aggregate operations.
const (
	OpMean   Op = "mean"
	OpSum    Op = "sum"
	OpCount  Op = "count"
	OpMin    Op = "min"
	OpMax    Op = "max"
	OpMedian Op = "median"
)

// maxGroupKeys is the largest number of group-by columns.
const maxGroupKeys = 2

var (
	// ErrInvalidGroupKeys is returned when the group-by column count is not 1 or 2.
	ErrInvalidGroupKeys = errors.New("aggregate needs one or two group-by columns")
	// ErrNonNumericValue is returned when the value column is not numeric.
	ErrNonNumericValue = errors.New("aggregate value column must be numeric")
	// ErrUnknownOp is returned for an unsupported operation name.
	ErrUnknownOp = errors.New("unknown aggregate operation")
)

// ParseOp resolves an operation name. The empty string means mean.
func ParseOp(name string) (Op, error) {
	switch op := Op(strings.ToLower(strings.TrimSpace(name))); op {
	case "", "avg", "average":
		return OpMean, nil
	case OpMean, OpSum, OpCount, OpMin, OpMax, OpMedian:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOp, name)
	}
}

// groupKey holds up to two key parts; unused parts are nil.
type groupKey [maxGroupKeys]any

type group struct {
	key    []any
	values []float64
}

// Aggregate groups records by the distinct combination of groupKeys and
// applies op to value within each group. Rows are ordered ascending by key,
// numerically for numbers and lexically for text, left to right.
//
// Records with a missing key are dropped. Missing values are skipped; a
// group without any value reports NaN (0 for count). An empty input yields
// an empty, non-nil slice.
func Aggregate(records []dataset.Record, groupKeys []dataset.Column, value dataset.Column, op Op) ([]dataset.AggregateRow, error) {
	if len(groupKeys) == 0 || len(groupKeys) > maxGroupKeys {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidGroupKeys, len(groupKeys))
	}
	if !value.Numeric() {
		return nil, fmt.Errorf("%w: %q", ErrNonNumericValue, value)
	}
	if op == "" {
		op = OpMean
	}
	reduce, err := reducerFor(op)
	if err != nil {
		return nil, err
	}

	groups := make(map[groupKey]*group)
	order := make([]*group, 0)

	for _, r := range records {
		key, ok := recordKey(r, groupKeys)
		if !ok {
			continue
		}
		g, found := groups[key]
		if !found {
			g = &group{key: slices.Clone(key[:len(groupKeys)])}
			groups[key] = g
			order = append(order, g)
		}
		if v, ok := r.Number(value); ok {
			g.values = append(g.values, v)
		}
	}

	slices.SortStableFunc(order, func(a, b *group) int {
		return compareKeys(a.key, b.key)
	})

	rows := make([]dataset.AggregateRow, 0, len(order))
	for _, g := range order {
		rows = append(rows, dataset.AggregateRow{
			Key:   g.key,
			Value: reduce(g.values),
			Count: len(g.values),
		})
	}
	return rows, nil
}

// recordKey extracts the group key of r. ok is false if any part is missing.
func recordKey(r dataset.Record, cols []dataset.Column) (groupKey, bool) {
	var key groupKey
	for i, c := range cols {
		v := r.Value(c)
		switch tv := v.(type) {
		case nil:
			return key, false
		case string:
			if tv == "" {
				return key, false
			}
		}
		key[i] = v
	}
	return key, true
}

// compareKeys orders key tuples part by part.
func compareKeys(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareKeyPart(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// compareKeyPart orders numbers before text.
func compareKeyPart(a, b any) int {
	an, aNum := asNumber(a)
	bn, bNum := asNumber(b)
	switch {
	case aNum && bNum:
		return cmp.Compare(an, bn)
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

type reducer func(values []float64) float64

func reducerFor(op Op) (reducer, error) {
	switch op {
	case OpMean:
		return mean, nil
	case OpSum:
		return func(vs []float64) float64 {
			if len(vs) == 0 {
				return math.NaN()
			}
			return sum(vs)
		}, nil
	case OpCount:
		return func(vs []float64) float64 { return float64(len(vs)) }, nil
	case OpMin:
		return func(vs []float64) float64 {
			if len(vs) == 0 {
				return math.NaN()
			}
			return slices.Min(vs)
		}, nil
	case OpMax:
		return func(vs []float64) float64 {
			if len(vs) == 0 {
				return math.NaN()
			}
			return slices.Max(vs)
		}, nil
	case OpMedian:
		return func(vs []float64) float64 { return quantile(sortedCopy(vs), 0.5) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

func sum(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return math.NaN()
	}
	return sum(vs) / float64(len(vs))
}

func sortedCopy(vs []float64) []float64 {
	out := slices.Clone(vs)
	slices.Sort(out)
	return out
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
