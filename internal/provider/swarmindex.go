package provider

import (
	"context"
	"fmt"

	"github.com/seriarr/seriarr/internal/capability"
	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/episode"
	"github.com/seriarr/seriarr/internal/extract"
	"github.com/seriarr/seriarr/internal/fetch"
)

// swarmIndex serves swarm sources: a search index of peer-distributed
// releases. It only searches; the actual transfer goes through the swarm
// pipeline, not through this provider.
type swarmIndex struct {
	fetcher   fetch.Fetcher
	extractor extract.Extractor
}

// NewSwarmIndex builds the provider for swarm sources.
func NewSwarmIndex(f fetch.Fetcher, x extract.Extractor) Provider {
	return &swarmIndex{fetcher: f, extractor: x}
}

var (
	_ Provider          = (*swarmIndex)(nil)
	_ CandidateSearcher = (*swarmIndex)(nil)
)

func (p *swarmIndex) Variant() data.Variant { return data.VariantSwarm }

func (p *swarmIndex) check(src *data.Source, c capability.Capability) error {
	if src.Variant != data.VariantSwarm {
		return fmt.Errorf("source %s is %q: %w", src.ID, src.Variant, data.ErrUnsupportedOperation)
	}
	if !capability.Has(src, c) {
		return fmt.Errorf("source %s lacks %s: %w", src.ID, c, data.ErrUnsupportedOperation)
	}
	return nil
}

// SearchCandidates queries the index and annotates every hit with the
// episode metadata parsed from its title.
func (p *swarmIndex) SearchCandidates(ctx context.Context, src *data.Source, query string) ([]data.CandidateMatch, error) {
	if err := p.check(src, capability.Search); err != nil {
		return nil, err
	}
	doc, err := p.fetcher.Fetch(ctx, pageURL(src, "search", "q", query))
	if err != nil {
		return nil, err
	}
	fields, err := p.extractor.Extract(doc, src.Selectors["search"])
	if err != nil {
		return nil, fmt.Errorf("search page: %w", err)
	}
	out := make([]data.CandidateMatch, len(fields.Candidates))
	copy(out, fields.Candidates)
	for i := range out {
		episode.Annotate(&out[i])
	}
	return out, nil
}

// Search satisfies the generic Provider surface by projecting candidates to
// content items: one item per release, the transfer ref as its identity.
func (p *swarmIndex) Search(ctx context.Context, src *data.Source, query string) ([]data.ContentItem, error) {
	candidates, err := p.SearchCandidates(ctx, src, query)
	if err != nil {
		return nil, err
	}
	items := make([]data.ContentItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, data.ContentItem{
			ID:       c.Ref,
			SourceID: src.ID,
			Title:    c.Title,
		})
	}
	return items, nil
}

func (p *swarmIndex) Browse(ctx context.Context, src *data.Source, page int) ([]data.ContentItem, error) {
	return nil, fmt.Errorf("swarm browse: %w", data.ErrUnsupportedOperation)
}

func (p *swarmIndex) Detail(ctx context.Context, src *data.Source, ref string) (*data.ContentItem, error) {
	return nil, fmt.Errorf("swarm detail: %w", data.ErrUnsupportedOperation)
}

func (p *swarmIndex) UnitContent(ctx context.Context, src *data.Source, unit data.Unit) (*data.UnitContent, error) {
	return nil, fmt.Errorf("swarm unit content: %w", data.ErrUnsupportedOperation)
}
