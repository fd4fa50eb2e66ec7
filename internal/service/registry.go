package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/seriarr/seriarr/internal/dl"
	"github.com/seriarr/seriarr/internal/metrics"
)

// RunInfo is the registry's view of one acquisition run, updated from
// downloader events.
type RunInfo struct {
	RunID     string    `json:"runId"`
	ItemID    string    `json:"itemId"`
	Status    dl.Status `json:"status"`
	Unit      int       `json:"unit"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Registry consumes downloader events on a buffered channel and keeps the
// latest state per run for the API to read. It never blocks the downloader:
// the reporter side drops events when the buffer is full.
type Registry struct {
	log *slog.Logger
	ch  chan dl.Event

	mu   sync.RWMutex
	runs map[string]*RunInfo

	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// NewRegistry builds a registry with the given event buffer size.
func NewRegistry(buffer int, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if buffer <= 0 {
		buffer = 128
	}
	return &Registry{
		log:  log,
		ch:   make(chan dl.Event, buffer),
		runs: make(map[string]*RunInfo),
		now:  time.Now,
	}
}

// Reporter returns the downloader-facing event sink.
func (g *Registry) Reporter() dl.Reporter { return dl.NewChanReporter(g.ch) }

// Run starts the consumer goroutine. Stop shuts it down and waits.
func (g *Registry) Run(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-g.ch:
				g.apply(ev)
			}
		}
	}()
}

// Stop terminates the consumer and waits for it to drain.
func (g *Registry) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}

func (g *Registry) apply(ev dl.Event) {
	metrics.AcquisitionEvents.WithLabelValues(string(ev.Status)).Inc()
	g.mu.Lock()
	defer g.mu.Unlock()
	info, ok := g.runs[ev.RunID]
	if !ok {
		info = &RunInfo{RunID: ev.RunID, ItemID: ev.ItemID}
		g.runs[ev.RunID] = info
	}
	info.Status = ev.Status
	info.Unit = ev.Unit
	info.Current = ev.Current
	if ev.Total > 0 {
		info.Total = ev.Total
	}
	info.Err = ev.Err
	info.UpdatedAt = g.now()
}

// Get returns the latest info for one run.
func (g *Registry) Get(runID string) (*RunInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	info, ok := g.runs[runID]
	if !ok {
		return nil, false
	}
	cp := *info
	return &cp, true
}

// Snapshot lists all known runs, most recently updated first.
func (g *Registry) Snapshot() []RunInfo {
	g.mu.RLock()
	out := make([]RunInfo, 0, len(g.runs))
	for _, info := range g.runs {
		out = append(out, *info)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}
