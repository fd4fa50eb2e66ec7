// Package service is the orchestration layer: it resolves sources, gates
// operations on capabilities, dedupes acquisition requests by fingerprint and
// drives the downloader, swarm pipeline and exporters.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seriarr/seriarr/internal/capability"
	"github.com/seriarr/seriarr/internal/clip"
	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/dl"
	"github.com/seriarr/seriarr/internal/export"
	"github.com/seriarr/seriarr/internal/fp"
	"github.com/seriarr/seriarr/internal/provider"
	"github.com/seriarr/seriarr/internal/store"
	"github.com/seriarr/seriarr/internal/swarm"
)

// Engine wires every collaborator together. It owns no goroutines itself;
// acquisition runs on the caller-provided context.
type Engine struct {
	log       *slog.Logger
	sources   map[string]*data.Source
	order     []string
	providers *provider.Registry
	runner    *dl.Runner
	store     store.Store
	pipeline  *swarm.Pipeline
	clipper   Clipper
	document  export.DocumentConverter
	archive   *export.ArchiveBuilder
	dlCfg     config.DownloadConfig
	swarmCfg  config.SwarmConfig

	mu       sync.Mutex
	inflight map[string]string // fingerprint -> run ID
}

// Clipper cuts preview segments from transferred media. clip.Extractor is
// the production implementation.
type Clipper interface {
	Extract(ctx context.Context, path string, opts clip.Options) (string, error)
}

// Deps carries the engine's collaborators.
type Deps struct {
	Log       *slog.Logger
	Sources   []*data.Source
	Providers *provider.Registry
	Runner    *dl.Runner
	Store     store.Store
	Pipeline  *swarm.Pipeline
	Clipper   Clipper
	Document  export.DocumentConverter
	Archive   *export.ArchiveBuilder
	Download  config.DownloadConfig
	Swarm     config.SwarmConfig
}

// New builds the engine.
func New(d Deps) *Engine {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	e := &Engine{
		log:       d.Log,
		sources:   make(map[string]*data.Source, len(d.Sources)),
		providers: d.Providers,
		runner:    d.Runner,
		store:     d.Store,
		pipeline:  d.Pipeline,
		clipper:   d.Clipper,
		document:  d.Document,
		archive:   d.Archive,
		dlCfg:     d.Download,
		swarmCfg:  d.Swarm,
		inflight:  make(map[string]string),
	}
	for _, s := range d.Sources {
		e.sources[s.ID] = s
		e.order = append(e.order, s.ID)
	}
	return e
}

// Sources lists the configured catalog with capabilities resolved, in config
// order. Entries are clones; callers cannot mutate the catalog.
func (e *Engine) Sources() []*data.Source {
	out := make([]*data.Source, 0, len(e.order))
	for _, id := range e.order {
		cp := e.sources[id].Clone()
		cp.Capabilities = capability.Infer(cp)
		out = append(out, cp)
	}
	return out
}

// Source resolves one enabled source by ID.
func (e *Engine) Source(id string) (*data.Source, error) {
	src, ok := e.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", id, data.ErrNotFound)
	}
	if !src.Enabled {
		return nil, fmt.Errorf("source %q disabled: %w", id, data.ErrUnsupportedOperation)
	}
	return src, nil
}

// Search dispatches a search to the source's provider.
func (e *Engine) Search(ctx context.Context, sourceID, query string) ([]data.ContentItem, error) {
	src, err := e.Source(sourceID)
	if err != nil {
		return nil, err
	}
	p, err := e.providers.For(src)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, src, query)
}

// Browse dispatches a catalog page fetch to the source's provider.
func (e *Engine) Browse(ctx context.Context, sourceID string, page int) ([]data.ContentItem, error) {
	src, err := e.Source(sourceID)
	if err != nil {
		return nil, err
	}
	p, err := e.providers.For(src)
	if err != nil {
		return nil, err
	}
	return p.Browse(ctx, src, page)
}

// Detail fetches one item's full record including its unit list.
func (e *Engine) Detail(ctx context.Context, sourceID, ref string) (*data.ContentItem, error) {
	src, err := e.Source(sourceID)
	if err != nil {
		return nil, err
	}
	p, err := e.providers.For(src)
	if err != nil {
		return nil, err
	}
	return p.Detail(ctx, src, ref)
}

// AcquireRequest starts or resumes acquisition of one item.
type AcquireRequest struct {
	SourceID string `json:"sourceId"`
	ItemRef  string `json:"itemRef"`
	// Floor skips units numbered below it.
	Floor int `json:"floor,omitempty"`
	// Follow walks next-unit references instead of a unit list. StartRef
	// seeds the walk on the first run.
	Follow   bool   `json:"follow,omitempty"`
	StartRef string `json:"startRef,omitempty"`
	// Retry re-runs only the persisted failed units.
	Retry bool `json:"retry,omitempty"`
}

// AcquireStatus is the synchronous answer to an acquisition request; progress
// flows through the run registry afterwards.
type AcquireStatus struct {
	RunID   string `json:"runId"`
	ItemID  string `json:"itemId"`
	Started bool   `json:"started"`
}

// Acquire runs an acquisition to completion. Identical concurrent requests
// collapse by fingerprint: the second caller gets the in-flight run's ID with
// Started=false.
func (e *Engine) Acquire(ctx context.Context, req AcquireRequest) (*AcquireStatus, *dl.Result, error) {
	status, err := e.reserve(req)
	if err != nil || !status.Started {
		return status, nil, err
	}
	res, err := e.acquire(ctx, req, status.RunID)
	return status, res, err
}

// AcquireAsync reserves a run and performs the acquisition in the background.
// The returned status carries the run ID to poll through the run registry.
func (e *Engine) AcquireAsync(req AcquireRequest) (*AcquireStatus, error) {
	status, err := e.reserve(req)
	if err != nil || !status.Started {
		return status, err
	}
	go func() {
		// Detached from the request context: an HTTP disconnect must not
		// abort a running acquisition.
		if _, err := e.acquire(context.Background(), req, status.RunID); err != nil {
			e.log.Error("acquisition", "run", status.RunID, "item", req.ItemRef, "err", err)
		}
	}()
	return status, nil
}

// reserve validates the request and claims its fingerprint. Started=false
// means an identical request is already running.
func (e *Engine) reserve(req AcquireRequest) (*AcquireStatus, error) {
	src, err := e.Source(req.SourceID)
	if err != nil {
		return nil, err
	}
	if !capability.Has(src, capability.Download) {
		return nil, fmt.Errorf("source %q lacks download: %w", src.ID, data.ErrUnsupportedOperation)
	}
	if _, err := e.providers.For(src); err != nil {
		return nil, err
	}
	print := fp.Fingerprint(src.ID, req.ItemRef)
	e.mu.Lock()
	defer e.mu.Unlock()
	if runID, busy := e.inflight[print]; busy {
		return &AcquireStatus{RunID: runID, ItemID: req.ItemRef, Started: false}, nil
	}
	runID := uuid.NewString()
	e.inflight[print] = runID
	return &AcquireStatus{RunID: runID, ItemID: req.ItemRef, Started: true}, nil
}

func (e *Engine) acquire(ctx context.Context, req AcquireRequest, runID string) (*dl.Result, error) {
	defer func() {
		print := fp.Fingerprint(req.SourceID, req.ItemRef)
		e.mu.Lock()
		delete(e.inflight, print)
		e.mu.Unlock()
	}()

	src, err := e.Source(req.SourceID)
	if err != nil {
		return nil, err
	}
	p, err := e.providers.For(src)
	if err != nil {
		return nil, err
	}

	item := &data.ContentItem{ID: req.ItemRef, SourceID: src.ID}
	if !req.Follow {
		detailed, derr := p.Detail(ctx, src, req.ItemRef)
		if derr != nil {
			return nil, derr
		}
		item.Merge(detailed)
		item.ID = req.ItemRef
	}

	opts := dl.Options{
		RunID:      runID,
		Floor:      req.Floor,
		Retries:    pick(src.HTTP.Retries, e.dlCfg.Retries),
		BaseDelay:  pickDur(src.HTTP.BaseDelay, time.Duration(e.dlCfg.BaseDelayMS)*time.Millisecond),
		Delay:      pickDur(src.HTTP.Delay, time.Duration(e.dlCfg.DelayMS)*time.Millisecond),
		Checkpoint: e.dlCfg.CheckpointN,
	}

	switch {
	case req.Retry:
		return e.runner.RetryFailed(ctx, p, src, item, opts)
	case req.Follow:
		return e.runner.Follow(ctx, p, src, item, dl.FollowOptions{
			Options:                opts,
			StartRef:               req.StartRef,
			MaxConsecutiveFailures: e.dlCfg.FollowBound,
		})
	default:
		return e.runner.Run(ctx, p, src, item, opts)
	}
}

// State returns the persisted download state for an item.
func (e *Engine) State(ctx context.Context, itemID string) (*data.DownloadState, error) {
	return e.store.LoadState(ctx, itemID)
}

// Export builds a distributable artifact for a fully or partially downloaded
// item: a document for text sources, an archive for image sources.
func (e *Engine) Export(ctx context.Context, sourceID, itemID, outDir string) (string, error) {
	src, err := e.Source(sourceID)
	if err != nil {
		return "", err
	}
	lister, ok := e.store.(store.UnitLister)
	if !ok {
		return "", fmt.Errorf("store has no file layout: %w", data.ErrUnsupportedOperation)
	}
	files, err := lister.UnitFiles(ctx, itemID)
	if err != nil {
		return "", err
	}
	// Title defaults to the item ID; state has no richer name to offer.
	manifest := export.Manifest{ItemID: itemID, Title: itemID}
	for _, f := range files {
		manifest.Units = append(manifest.Units, export.UnitFile{Number: f.Number, Title: f.Title, Path: f.Path})
	}

	switch {
	case capability.Has(src, capability.ExportDocument):
		if e.document == nil {
			return "", data.ErrConverterUnavailable
		}
		return e.document.Convert(ctx, manifest, outDir)
	case capability.Has(src, capability.ExportArchive):
		if e.archive == nil {
			return "", data.ErrConverterUnavailable
		}
		return e.archive.Build(ctx, manifest, outDir)
	default:
		return "", fmt.Errorf("source %q exports nothing: %w", src.ID, data.ErrUnsupportedOperation)
	}
}

// Ready reports whether downstream dependencies answer. Only sources that
// need the swarm daemon make readiness depend on it.
func (e *Engine) Ready(ctx context.Context) error {
	for _, src := range e.sources {
		if src.Variant == data.VariantSwarm && src.Enabled {
			return e.pipeline.Ping(ctx)
		}
	}
	return nil
}

// Shutdown releases engine-held resources.
func (e *Engine) Shutdown(ctx context.Context) {
	if e.pipeline != nil {
		e.pipeline.DestroyClient(ctx)
	}
}

func pick(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func pickDur(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
