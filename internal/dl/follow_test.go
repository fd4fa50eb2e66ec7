package dl

import (
	"context"
	"errors"
	"testing"

	"github.com/seriarr/seriarr/internal/data"
)

// chainFetcher serves a linked chain of refs: r1 -> r2 -> ... -> rN -> "".
type chainFetcher struct {
	next map[string]string
	fail map[string]bool
}

func (c *chainFetcher) UnitContent(ctx context.Context, src *data.Source, unit data.Unit) (*data.UnitContent, error) {
	if c.fail[unit.Ref] {
		return nil, errors.New("synthetic fetch failure")
	}
	return &data.UnitContent{Text: "text for " + unit.Ref, NextRef: c.next[unit.Ref]}, nil
}

func TestFollowWalksChain(t *testing.T) {
	st := newMemStore()
	r := testRunner(st)
	fetcher := &chainFetcher{next: map[string]string{"r1": "r2", "r2": "r3", "r3": ""}}
	item := &data.ContentItem{ID: "item-1", SourceID: "src"}

	res, err := r.Follow(context.Background(), fetcher, &data.Source{ID: "src"}, item, FollowOptions{StartRef: "r1"})
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if res.Downloaded != 3 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if !res.State.Completed || res.State.LastUnit != 3 {
		t.Fatalf("state = %+v", res.State)
	}
	if res.State.NextRef != "" {
		t.Fatalf("next ref not cleared at chain end: %q", res.State.NextRef)
	}
}

func TestFollowStopsAfterConsecutiveFailures(t *testing.T) {
	st := newMemStore()
	r := testRunner(st)
	fetcher := &chainFetcher{
		next: map[string]string{"r1": "r2"},
		fail: map[string]bool{"r2": true},
	}
	item := &data.ContentItem{ID: "item-1", SourceID: "src"}

	res, err := r.Follow(context.Background(), fetcher, &data.Source{ID: "src"}, item, FollowOptions{
		StartRef:               "r1",
		MaxConsecutiveFailures: 2,
	})
	if !errors.Is(err, data.ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	// The stuck unit was attempted twice but counts once.
	if res.Downloaded != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.State.Failed) != 1 {
		t.Fatalf("failed entries = %v, want one", res.State.Failed)
	}
	// The stuck reference stays persisted so the next run resumes there.
	if res.State.NextRef != "r2" {
		t.Fatalf("next ref = %q, want r2", res.State.NextRef)
	}
}

func TestFollowResumesFromPersistedRef(t *testing.T) {
	st := newMemStore()
	seed := data.NewDownloadState("item-1")
	seed.MarkDownloaded(1)
	seed.NextRef = "r2"
	if err := st.SaveState(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := testRunner(st)
	fetcher := &chainFetcher{next: map[string]string{"r2": ""}}
	item := &data.ContentItem{ID: "item-1", SourceID: "src"}

	res, err := r.Follow(context.Background(), fetcher, &data.Source{ID: "src"}, item, FollowOptions{StartRef: "r1"})
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if res.Downloaded != 1 {
		t.Fatalf("result = %+v", res)
	}
	// Numbering continues after the last persisted unit.
	if !res.State.IsDownloaded(2) {
		t.Fatalf("resumed unit not numbered 2: %+v", res.State)
	}
}

func TestFollowNoRefIsNoop(t *testing.T) {
	st := newMemStore()
	r := testRunner(st)
	item := &data.ContentItem{ID: "item-1", SourceID: "src"}
	res, err := r.Follow(context.Background(), &chainFetcher{}, &data.Source{ID: "src"}, item, FollowOptions{})
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if res.Downloaded != 0 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
}
