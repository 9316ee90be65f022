package dataset

import "sort"

// Dataset is an immutable, ordered collection of records loaded once per
// session. Accessors never expose the backing slice.
type Dataset struct {
	source  string
	records []Record
}

// New creates a dataset from records. The slice is copied.
func New(source string, records []Record) *Dataset {
	owned := make([]Record, len(records))
	copy(owned, records)
	return &Dataset{source: source, records: owned}
}

// Source describes where the records were loaded from.
func (d *Dataset) Source() string {
	return d.source
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// At returns the record at index i.
func (d *Dataset) At(i int) Record {
	return d.records[i]
}

// Records returns a copy of all records in load order.
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// YearRange returns the smallest and largest model year.
// ok is false for an empty dataset.
func (d *Dataset) YearRange() (minYear, maxYear int, ok bool) {
	if len(d.records) == 0 {
		return 0, 0, false
	}
	minYear, maxYear = d.records[0].Year, d.records[0].Year
	for _, r := range d.records[1:] {
		if r.Year < minYear {
			minYear = r.Year
		}
		if r.Year > maxYear {
			maxYear = r.Year
		}
	}
	return minYear, maxYear, true
}

// Origins returns the distinct origins, sorted.
func (d *Dataset) Origins() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, 3)
	for _, r := range d.records {
		if _, ok := seen[r.Origin]; ok {
			continue
		}
		seen[r.Origin] = struct{}{}
		out = append(out, r.Origin)
	}
	sort.Strings(out)
	return out
}
