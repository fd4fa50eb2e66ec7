package service

import (
	"context"
	"testing"
	"time"

	"github.com/seriarr/seriarr/internal/dl"
)

func testRegistry() *Registry {
	g := NewRegistry(8, nil)
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return g
}

func TestRegistryApplyCreatesAndUpdates(t *testing.T) {
	g := testRegistry()

	g.apply(dl.Event{RunID: "r1", ItemID: "item", Status: dl.StatusDownloading, Unit: 1, Current: 1, Total: 5})
	g.apply(dl.Event{RunID: "r1", ItemID: "item", Status: dl.StatusDownloading, Unit: 2, Current: 2, Total: 5})

	info, ok := g.Get("r1")
	if !ok {
		t.Fatalf("run missing")
	}
	if info.Status != dl.StatusDownloading || info.Unit != 2 || info.Current != 2 || info.Total != 5 {
		t.Fatalf("info = %+v", info)
	}
}

func TestRegistryKeepsTotalAcrossTerminalEvent(t *testing.T) {
	g := testRegistry()

	g.apply(dl.Event{RunID: "r1", ItemID: "item", Status: dl.StatusDownloading, Unit: 1, Current: 1, Total: 5})
	// Terminal events carry no total; the known one must survive.
	g.apply(dl.Event{RunID: "r1", ItemID: "item", Status: dl.StatusSuccess, Current: 5})

	info, _ := g.Get("r1")
	if info.Status != dl.StatusSuccess || info.Total != 5 {
		t.Fatalf("info = %+v", info)
	}
}

func TestRegistryErrorEvent(t *testing.T) {
	g := testRegistry()
	g.apply(dl.Event{RunID: "r1", ItemID: "item", Status: dl.StatusError, Unit: 3, Err: "unit 3 failed"})

	info, _ := g.Get("r1")
	if info.Status != dl.StatusError || info.Err != "unit 3 failed" {
		t.Fatalf("info = %+v", info)
	}
}

func TestRegistryGetMisses(t *testing.T) {
	g := testRegistry()
	if _, ok := g.Get("unknown"); ok {
		t.Fatalf("unexpected hit")
	}
}

func TestRegistrySnapshotNewestFirst(t *testing.T) {
	g := testRegistry()
	g.apply(dl.Event{RunID: "r1", ItemID: "a", Status: dl.StatusDownloading})
	g.apply(dl.Event{RunID: "r2", ItemID: "b", Status: dl.StatusDownloading})

	snap := g.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap[0].RunID != "r2" || snap[1].RunID != "r1" {
		t.Fatalf("order = %s, %s", snap[0].RunID, snap[1].RunID)
	}
}

func TestRegistryConsumesReporterEvents(t *testing.T) {
	g := testRegistry()
	g.Run(context.Background())
	defer g.Stop()

	rep := g.Reporter()
	rep.Report(dl.Event{RunID: "r1", ItemID: "item", Status: dl.StatusDownloading, Unit: 1, Current: 1, Total: 3})

	deadline := time.After(2 * time.Second)
	for {
		if info, ok := g.Get("r1"); ok && info.Current == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("event never applied")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
