// Package provider implements variant-specific source access behind one
// interface. Dispatch is by declared variant through the Registry; an
// operation a variant does not support fails with
// data.ErrUnsupportedOperation before any network traffic happens.
package provider

import (
	"context"
	"fmt"

	"github.com/seriarr/seriarr/internal/data"
)

// Provider is the per-variant source driver. Every method checks the
// source's capability set first.
type Provider interface {
	Variant() data.Variant
	Search(ctx context.Context, src *data.Source, query string) ([]data.ContentItem, error)
	Browse(ctx context.Context, src *data.Source, page int) ([]data.ContentItem, error)
	Detail(ctx context.Context, src *data.Source, ref string) (*data.ContentItem, error)
	UnitContent(ctx context.Context, src *data.Source, unit data.Unit) (*data.UnitContent, error)
}

// CandidateSearcher is the swarm-side search surface: raw results annotated
// with episode metadata, ready for scoring.
type CandidateSearcher interface {
	SearchCandidates(ctx context.Context, src *data.Source, query string) ([]data.CandidateMatch, error)
}

// Registry maps variants to providers.
type Registry struct {
	providers map[data.Variant]Provider
}

// NewRegistry builds a registry from the given providers. Later providers
// for the same variant win.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[data.Variant]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Variant()] = p
	}
	return r
}

// For resolves the provider for a source's variant.
func (r *Registry) For(src *data.Source) (Provider, error) {
	if src == nil || !src.Variant.Valid() {
		return nil, fmt.Errorf("resolve provider: %w", data.ErrInvalidSource)
	}
	p, ok := r.providers[src.Variant]
	if !ok {
		return nil, fmt.Errorf("variant %q: %w", src.Variant, data.ErrUnsupportedOperation)
	}
	return p, nil
}

// Candidates resolves the swarm-side candidate search for a source, when its
// provider offers one.
func (r *Registry) Candidates(src *data.Source) (CandidateSearcher, error) {
	p, err := r.For(src)
	if err != nil {
		return nil, err
	}
	cs, ok := p.(CandidateSearcher)
	if !ok {
		return nil, fmt.Errorf("variant %q candidates: %w", src.Variant, data.ErrUnsupportedOperation)
	}
	return cs, nil
}
