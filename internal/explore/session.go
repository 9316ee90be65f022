package explore

import (
	"context"
	"sync"

	"github.com/canectors/carexplorer/pkg/dataset"
)

// Session holds the loaded dataset and the horsepower selection carried
// between runs. Apply calls are serialised.
type Session struct {
	mu        sync.Mutex
	ds        *dataset.Dataset
	selection *dataset.Range
	filters   []RecordFilter
}

// NewSession creates a session over ds with optional extra stage-one filters.
func NewSession(ds *dataset.Dataset, filters ...RecordFilter) *Session {
	return &Session{ds: ds, filters: filters}
}

// Dataset returns the session's dataset.
func (s *Session) Dataset() *dataset.Dataset {
	return s.ds
}

// Selection returns the horsepower selection carried from the last run.
func (s *Session) Selection() (dataset.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return dataset.Range{}, false
	}
	return *s.selection, true
}

// SetFilters replaces the extra stage-one filters.
func (s *Session) SetFilters(filters ...RecordFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = filters
}

// Reset forgets the carried selection.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = nil
}

// Apply evaluates controls against the dataset. A horsepower selection
// that was requested and applied as is is carried to the next run; one that
// had to be rederived from the bounds is dropped, so later runs follow the
// bounds of their own subset. When no bounds could be derived the previous
// selection is kept.
func (s *Session) Apply(ctx context.Context, controls Controls) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := Evaluate(ctx, s.ds, controls, s.selection, s.filters...)
	if err != nil {
		return nil, err
	}
	if !view.HasBounds {
		return view, nil
	}
	if view.HorsepowerRederived {
		s.selection = nil
		return view, nil
	}
	applied := view.Spec.Horsepower()
	s.selection = &applied
	return view, nil
}
