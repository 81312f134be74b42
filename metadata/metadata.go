// Package metadata answers field questions the planner asks while visiting a
// predicate tree: is a field indexed, is it index-only, and which fields have
// ever been observed.
package metadata

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
)

// ErrTableNotFound is returned while the metadata table does not exist.
// Callers treat it as "no such field known".
var ErrTableNotFound = errors.New("metadata table not found")

// Helper is the metadata lookup contract. A nil or empty datatype filter
// means every datatype.
type Helper interface {
	IsIndexed(ctx context.Context, field string, datatypes []string) (bool, error)
	IsIndexOnly(ctx context.Context, field string, datatypes []string) (bool, error)
	AllFields(ctx context.Context, datatypes []string) ([]string, error)
}

// Field describes one observed field.
type Field struct {
	Name string `yaml:"name" json:"name"`
	// Datatypes the field was observed in. Empty means every datatype.
	Datatypes []string `yaml:"datatypes,omitempty" json:"datatypes,omitempty"`
	Indexed   bool     `yaml:"indexed" json:"indexed"`
	IndexOnly bool     `yaml:"index_only" json:"index_only"`
}

func (f Field) observedIn(datatypes []string) bool {
	if len(datatypes) == 0 || len(f.Datatypes) == 0 {
		return true
	}
	for _, dt := range datatypes {
		if slices.Contains(f.Datatypes, dt) {
			return true
		}
	}
	return false
}

// Store is an in-memory Helper.
type Store struct {
	mu      sync.RWMutex
	fields  map[string]Field
	dropped bool
}

var _ Helper = (*Store)(nil)

// NewStore returns a Store holding fields.
func NewStore(fields ...Field) *Store {
	s := &Store{fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		s.fields[f.Name] = f
	}
	return s
}

// Put adds or replaces a field.
func (s *Store) Put(f Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[f.Name] = f
	s.dropped = false
}

// Drop removes the backing table. Lookups fail with ErrTableNotFound until
// the next Put.
func (s *Store) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = map[string]Field{}
	s.dropped = true
}

func (s *Store) lookup(ctx context.Context, field string, datatypes []string) (Field, bool, error) {
	if err := ctx.Err(); err != nil {
		return Field{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dropped {
		return Field{}, false, ErrTableNotFound
	}
	f, ok := s.fields[field]
	if !ok || !f.observedIn(datatypes) {
		return Field{}, false, nil
	}
	return f, true, nil
}

// IsIndexed implements Helper.
func (s *Store) IsIndexed(ctx context.Context, field string, datatypes []string) (bool, error) {
	f, ok, err := s.lookup(ctx, field, datatypes)
	return ok && f.Indexed, err
}

// IsIndexOnly implements Helper.
func (s *Store) IsIndexOnly(ctx context.Context, field string, datatypes []string) (bool, error) {
	f, ok, err := s.lookup(ctx, field, datatypes)
	return ok && f.IndexOnly, err
}

// AllFields implements Helper.
func (s *Store) AllFields(ctx context.Context, datatypes []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dropped {
		return nil, ErrTableNotFound
	}
	var out []string
	for name, f := range s.fields {
		if f.observedIn(datatypes) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}
