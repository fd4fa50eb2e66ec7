package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/extract"
	"github.com/seriarr/seriarr/internal/fetch"
)

func textSource() *data.Source {
	return &data.Source{
		ID:      "lib",
		Variant: data.VariantText,
		BaseURL: "https://lib.example",
		Enabled: true,
	}
}

func docFetcher(t *testing.T, docs map[string]string) fetch.Fetcher {
	t.Helper()
	return fetch.Func(func(ctx context.Context, url string) ([]byte, error) {
		doc, ok := docs[url]
		if !ok {
			t.Fatalf("unexpected fetch %q", url)
		}
		return []byte(doc), nil
	})
}

func TestSiteSearch(t *testing.T) {
	f := docFetcher(t, map[string]string{
		"https://lib.example/search?q=hello+world": `{"items":[{"id":"w1","title":"Hello World"}]}`,
	})
	p := NewText(f, extract.JSONExtractor{})

	items, err := p.Search(context.Background(), textSource(), "hello world")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 || items[0].ID != "w1" || items[0].SourceID != "lib" {
		t.Fatalf("items = %+v", items)
	}
}

func TestSiteSearchURLTemplate(t *testing.T) {
	src := textSource()
	src.Selectors = map[string]map[string]string{
		"search": {"_url": "https://lib.example/api?query=%s"},
	}
	f := docFetcher(t, map[string]string{
		"https://lib.example/api?query=abc": `{"items":[]}`,
	})
	p := NewText(f, extract.JSONExtractor{})
	if _, err := p.Search(context.Background(), src, "abc"); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestSiteDetailNormalizesUnits(t *testing.T) {
	f := docFetcher(t, map[string]string{
		"https://lib.example/works/w1": `{
			"title": "Hello World",
			"author": "Anon",
			"units": [
				{"number": 2, "title": "B", "ref": "/works/w1/2"},
				{"number": 1, "title": "A", "ref": "/works/w1/1"},
				{"number": 1, "title": "A again", "ref": "/works/w1/1"}
			]
		}`,
	})
	p := NewText(f, extract.JSONExtractor{})

	item, err := p.Detail(context.Background(), textSource(), "/works/w1")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if item.ID != "/works/w1" || item.Title != "Hello World" {
		t.Fatalf("item = %+v", item)
	}
	if len(item.Units) != 2 || item.Units[0].Number != 1 || item.Units[1].Number != 2 {
		t.Fatalf("units = %+v", item.Units)
	}
}

func TestSiteUnitContent(t *testing.T) {
	f := docFetcher(t, map[string]string{
		"https://lib.example/works/w1/1": `{"text": "once upon a time", "next": "/works/w1/2"}`,
	})
	p := NewText(f, extract.JSONExtractor{})

	content, err := p.UnitContent(context.Background(), textSource(), data.Unit{Number: 1, Ref: "/works/w1/1"})
	if err != nil {
		t.Fatalf("UnitContent: %v", err)
	}
	if content.Text != "once upon a time" || content.NextRef != "/works/w1/2" {
		t.Fatalf("content = %+v", content)
	}
}

func TestSiteUnitContentEmptyText(t *testing.T) {
	f := docFetcher(t, map[string]string{
		"https://lib.example/works/w1/1": `{}`,
	})
	p := NewText(f, extract.JSONExtractor{})
	if _, err := p.UnitContent(context.Background(), textSource(), data.Unit{Number: 1, Ref: "/works/w1/1"}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestImageProviderRejectsBrowse(t *testing.T) {
	p := NewImage(fetch.Func(nil), extract.JSONExtractor{})
	src := &data.Source{ID: "img", Variant: data.VariantImage, BaseURL: "https://img.example", Enabled: true}
	_, err := p.Browse(context.Background(), src, 1)
	if !errors.Is(err, data.ErrUnsupportedOperation) {
		t.Fatalf("err = %v, want ErrUnsupportedOperation", err)
	}
}

func TestSiteRejectsVariantMismatch(t *testing.T) {
	p := NewText(fetch.Func(nil), extract.JSONExtractor{})
	src := &data.Source{ID: "img", Variant: data.VariantImage, BaseURL: "https://img.example", Enabled: true}
	_, err := p.Search(context.Background(), src, "q")
	if !errors.Is(err, data.ErrUnsupportedOperation) {
		t.Fatalf("err = %v, want ErrUnsupportedOperation", err)
	}
}

func TestRegistryDispatch(t *testing.T) {
	text := NewText(fetch.Func(nil), extract.JSONExtractor{})
	r := NewRegistry(text)

	got, err := r.For(&data.Source{ID: "a", Variant: data.VariantText})
	if err != nil || got != text {
		t.Fatalf("For = %v, %v", got, err)
	}
	if _, err := r.For(&data.Source{ID: "b", Variant: data.VariantSwarm}); !errors.Is(err, data.ErrUnsupportedOperation) {
		t.Fatalf("unregistered variant err = %v", err)
	}
	if _, err := r.For(&data.Source{ID: "c", Variant: "bogus"}); !errors.Is(err, data.ErrInvalidSource) {
		t.Fatalf("invalid variant err = %v", err)
	}
	if _, err := r.Candidates(&data.Source{ID: "a", Variant: data.VariantText}); !errors.Is(err, data.ErrUnsupportedOperation) {
		t.Fatalf("text candidates err = %v", err)
	}
}

func TestSwarmIndexSearchAnnotates(t *testing.T) {
	f := docFetcher(t, map[string]string{
		"https://idx.example/search?q=show": `{"candidates":[
			{"title": "[Grp] Show S02E05-12 Batch", "ref": "magnet:?xt=1", "seeders": 40, "trusted": true},
			{"title": "Show - 03", "ref": "magnet:?xt=2", "seeders": 5}
		]}`,
	})
	p := NewSwarmIndex(f, extract.JSONExtractor{})
	src := &data.Source{ID: "idx", Variant: data.VariantSwarm, BaseURL: "https://idx.example", Enabled: true}

	cands, err := p.(CandidateSearcher).SearchCandidates(context.Background(), src, "show")
	if err != nil {
		t.Fatalf("SearchCandidates: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("candidates = %+v", cands)
	}
	first := cands[0]
	if first.Season == nil || *first.Season != 2 || len(first.Episodes) != 8 || !first.IsBatch {
		t.Fatalf("annotation missing: %+v", first)
	}
}

func TestSwarmIndexRejectsUnitContent(t *testing.T) {
	p := NewSwarmIndex(fetch.Func(nil), extract.JSONExtractor{})
	src := &data.Source{ID: "idx", Variant: data.VariantSwarm, Enabled: true}
	if _, err := p.UnitContent(context.Background(), src, data.Unit{}); !errors.Is(err, data.ErrUnsupportedOperation) {
		t.Fatalf("err = %v", err)
	}
}
