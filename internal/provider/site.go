package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/seriarr/seriarr/internal/capability"
	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/extract"
	"github.com/seriarr/seriarr/internal/fetch"
)

// siteProvider serves text and image sources: fetch a document, run the
// source's selector set through the extractor, map the fields. The two
// variants differ only in which payload field a unit must carry.
type siteProvider struct {
	variant   data.Variant
	fetcher   fetch.Fetcher
	extractor extract.Extractor
}

// NewText builds the provider for text sources.
func NewText(f fetch.Fetcher, x extract.Extractor) Provider {
	return &siteProvider{variant: data.VariantText, fetcher: f, extractor: x}
}

// NewImage builds the provider for image sources.
func NewImage(f fetch.Fetcher, x extract.Extractor) Provider {
	return &siteProvider{variant: data.VariantImage, fetcher: f, extractor: x}
}

var _ Provider = (*siteProvider)(nil)

func (p *siteProvider) Variant() data.Variant { return p.variant }

func (p *siteProvider) check(src *data.Source, c capability.Capability) error {
	if src.Variant != p.variant {
		return fmt.Errorf("source %s is %q: %w", src.ID, src.Variant, data.ErrUnsupportedOperation)
	}
	if !capability.Has(src, c) {
		return fmt.Errorf("source %s lacks %s: %w", src.ID, c, data.ErrUnsupportedOperation)
	}
	return nil
}

func (p *siteProvider) Search(ctx context.Context, src *data.Source, query string) ([]data.ContentItem, error) {
	if err := p.check(src, capability.Search); err != nil {
		return nil, err
	}
	u := pageURL(src, "search", "q", query)
	fields, err := p.extractPage(ctx, src, "search", u)
	if err != nil {
		return nil, err
	}
	return p.stamp(src, fields.Items), nil
}

func (p *siteProvider) Browse(ctx context.Context, src *data.Source, page int) ([]data.ContentItem, error) {
	if err := p.check(src, capability.Browse); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	u := pageURL(src, "browse", "page", strconv.Itoa(page))
	fields, err := p.extractPage(ctx, src, "browse", u)
	if err != nil {
		return nil, err
	}
	return p.stamp(src, fields.Items), nil
}

func (p *siteProvider) Detail(ctx context.Context, src *data.Source, ref string) (*data.ContentItem, error) {
	if err := p.check(src, capability.Detail); err != nil {
		return nil, err
	}
	fields, err := p.extractPage(ctx, src, "detail", resolveRef(src.BaseURL, ref))
	if err != nil {
		return nil, err
	}
	item := &data.ContentItem{
		ID:       ref,
		SourceID: src.ID,
		Title:    fields.Title,
		Author:   fields.Author,
		Status:   fields.Status,
		Tags:     fields.Tags,
		Units:    data.NormalizeUnits(fields.Units),
	}
	return item, nil
}

func (p *siteProvider) UnitContent(ctx context.Context, src *data.Source, unit data.Unit) (*data.UnitContent, error) {
	if err := p.check(src, capability.UnitContent); err != nil {
		return nil, err
	}
	fields, err := p.extractPage(ctx, src, "unit", resolveRef(src.BaseURL, unit.Ref))
	if err != nil {
		return nil, err
	}
	content := &data.UnitContent{Text: fields.Text, Images: fields.Images, NextRef: fields.NextRef}
	switch p.variant {
	case data.VariantText:
		if content.Text == "" {
			return nil, fmt.Errorf("unit %d (%s): empty text", unit.Number, unit.Ref)
		}
	case data.VariantImage:
		if len(content.Images) == 0 {
			return nil, fmt.Errorf("unit %d (%s): no images", unit.Number, unit.Ref)
		}
	}
	return content, nil
}

func (p *siteProvider) extractPage(ctx context.Context, src *data.Source, kind, url string) (extract.Fields, error) {
	doc, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return extract.Fields{}, err
	}
	fields, err := p.extractor.Extract(doc, src.Selectors[kind])
	if err != nil {
		return extract.Fields{}, fmt.Errorf("%s page: %w", kind, err)
	}
	return fields, nil
}

// stamp fills source-scoped identity onto extracted items.
func (p *siteProvider) stamp(src *data.Source, items []data.ContentItem) []data.ContentItem {
	out := make([]data.ContentItem, 0, len(items))
	for _, it := range items {
		it.SourceID = src.ID
		out = append(out, it)
	}
	return out
}

// pageURL builds a list-page URL. A "_url" selector on the page kind is a
// printf template receiving the escaped parameter; otherwise the path falls
// back to <base>/<kind>?<param>=<value>.
func pageURL(src *data.Source, kind, param, value string) string {
	if tpl, ok := src.Selectors[kind]["_url"]; ok && tpl != "" {
		return fmt.Sprintf(tpl, url.QueryEscape(value))
	}
	return fmt.Sprintf("%s/%s?%s=%s", src.BaseURL, kind, param, url.QueryEscape(value))
}

// resolveRef makes a unit or detail ref absolute against the source base.
func resolveRef(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
