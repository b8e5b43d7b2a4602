package scraper

import (
	"context"
	"fmt"

	"cvewatch/internal/domain"
)

// Source captures a single adapter for one external feed. Adapters produce
// zero or more candidate records and have no side effects beyond the
// returned sequence.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.VulnerabilityRecord, error)
}

// FetchResult is one adapter's outcome inside a batch. A failed adapter
// contributes zero records plus an error message; it never aborts siblings.
type FetchResult struct {
	Source  string
	Records []domain.VulnerabilityRecord
	Err     error
}

// Registry keeps adapters in registration order; the merged batch is a
// stable concatenation in this order.
type Registry struct {
	order   []string
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds an adapter. Re-registering a name replaces the adapter but
// keeps its original position.
func (r *Registry) Register(source Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	name := source.Name()
	if _, exists := r.sources[name]; !exists {
		r.order = append(r.order, name)
	}
	r.sources[name] = source
}

// Resolve returns an adapter by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// Sources returns all adapters in registration order.
func (r *Registry) Sources() []Source {
	result := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.sources[name])
	}
	return result
}
