// Package dl is the sequential downloader: a single logical worker that
// drives unit-by-unit acquisition with bounded retries, periodic
// checkpointing and crash-resumable state. Strictly one unit is in flight at
// a time; concurrency would break source rate limits and the resume
// bookkeeping.
package dl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/metrics"
	"github.com/seriarr/seriarr/internal/store"
)

// ContentFetcher yields one unit's content. Providers satisfy this.
type ContentFetcher interface {
	UnitContent(ctx context.Context, src *data.Source, unit data.Unit) (*data.UnitContent, error)
}

// Options tunes one run. Zero values fall back to the documented defaults.
type Options struct {
	// RunID names the run for event correlation; generated when empty.
	RunID string
	// Floor skips units numbered below it.
	Floor int
	// Retries bounds attempts per unit (default 3).
	Retries int
	// BaseDelay is the linear backoff unit between attempts (default 1s).
	BaseDelay time.Duration
	// Delay is slept between units, skipped after the last one.
	Delay time.Duration
	// Checkpoint persists state every N processed units (default 20).
	Checkpoint int
}

func (o Options) withDefaults() Options {
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.Checkpoint <= 0 {
		o.Checkpoint = 20
	}
	return o
}

// Result summarizes one run. Counts are run-scoped and count units, not
// attempts; State carries the persisted cumulative record.
type Result struct {
	RunID      string
	Downloaded int
	Skipped    int
	Failed     int
	State      *data.DownloadState
}

// PartiallyFailed reports whether the run left failed units behind.
func (r *Result) PartiallyFailed() bool { return r != nil && r.Failed > 0 }

// Runner drives sequential acquisition against a store.
type Runner struct {
	store store.Store
	rep   Reporter
	log   *slog.Logger

	// sleep is injected so tests never wait on real backoff.
	sleep func(ctx context.Context, d time.Duration)
}

// NewRunner builds a Runner. rep may be nil when no sink is interested.
func NewRunner(st store.Store, rep Reporter, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{store: st, rep: rep, log: log, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run acquires every pending unit of the item. Units already downloaded and
// not recorded as failed are skipped, which makes repeated invocations
// idempotent. One unit's exhausted retries never abort the run.
func (r *Runner) Run(ctx context.Context, fetcher ContentFetcher, src *data.Source, item *data.ContentItem, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	runID := opts.RunID
	log := r.log.With("operation_id", runID, "item", item.ID)

	state, err := r.loadState(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	var work []data.Unit
	skipped := 0
	for _, u := range item.Units {
		if u.Number < opts.Floor {
			continue
		}
		if state.IsDownloaded(u.Number) && !state.IsFailed(u.Number) {
			skipped++
			continue
		}
		work = append(work, u)
	}
	log.Info("run start", "units", len(work), "skipped", skipped, "floor", opts.Floor)

	res := &Result{RunID: runID, Skipped: skipped}
	err = r.process(ctx, log, fetcher, src, item, state, work, opts, res)
	res.State = state
	return res, err
}

// RetryFailed re-runs exactly the units on the persisted failed list through
// the same per-unit retry logic, updating (not replacing) the recorded
// failures.
func (r *Runner) RetryFailed(ctx context.Context, fetcher ContentFetcher, src *data.Source, item *data.ContentItem, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	runID := opts.RunID
	log := r.log.With("operation_id", runID, "item", item.ID)

	state, err := r.loadState(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: runID, State: state}
	if len(state.Failed) == 0 {
		return res, nil
	}

	byNumber := make(map[int]data.Unit, len(item.Units))
	for _, u := range item.Units {
		byNumber[u.Number] = u
	}
	work := make([]data.Unit, 0, len(state.Failed))
	for _, f := range state.Failed {
		if u, ok := byNumber[f.Number]; ok {
			work = append(work, u)
			continue
		}
		// Failed-unit identity round-trips through state, so a retry pass
		// works even when the unit list is no longer available.
		work = append(work, data.Unit{Number: f.Number, Ref: f.Ref})
	}
	log.Info("retry pass start", "units", len(work))

	err = r.process(ctx, log, fetcher, src, item, state, work, opts, res)
	res.State = state
	return res, err
}

// process is the shared per-unit loop for Run and RetryFailed.
func (r *Runner) process(ctx context.Context, log *slog.Logger, fetcher ContentFetcher, src *data.Source, item *data.ContentItem, state *data.DownloadState, work []data.Unit, opts Options, res *Result) error {
	total := len(work)
	for i, unit := range work {
		if ctx.Err() != nil {
			// Treated like process termination: persist and stop. The
			// checkpointed state makes the next run resume from here.
			_ = r.saveState(ctx, state)
			return ctx.Err()
		}

		r.report(Event{RunID: res.RunID, ItemID: item.ID, Status: StatusDownloading,
			Unit: unit.Number, UnitLabel: unit.Title, Current: i + 1, Total: total})

		content, err := r.fetchWithRetry(ctx, fetcher, src, unit, opts)
		if err != nil {
			res.Failed++
			state.MarkFailed(unit.Number, unit.Ref, err.Error())
			metrics.UnitsFailed.Inc()
			log.Warn("unit failed", "unit", unit.Number, "err", err)
			r.report(Event{RunID: res.RunID, ItemID: item.ID, Status: StatusError,
				Unit: unit.Number, UnitLabel: unit.Title, Current: i + 1, Total: total, Err: err.Error()})
		} else {
			payload, perr := encodePayload(content)
			if perr == nil {
				perr = r.store.SaveUnit(ctx, item.ID, unit.Number, unit.Title, payload)
			}
			if perr != nil {
				res.Failed++
				state.MarkFailed(unit.Number, unit.Ref, perr.Error())
				metrics.UnitsFailed.Inc()
				log.Error("save unit", "unit", unit.Number, "err", perr)
				r.report(Event{RunID: res.RunID, ItemID: item.ID, Status: StatusError,
					Unit: unit.Number, UnitLabel: unit.Title, Current: i + 1, Total: total, Err: perr.Error()})
			} else {
				res.Downloaded++
				state.MarkDownloaded(unit.Number)
				state.TotalBytes += int64(len(payload))
				state.TotalWords += content.Words()
				metrics.UnitsDownloaded.Inc()
				r.report(Event{RunID: res.RunID, ItemID: item.ID, Status: StatusSuccess,
					Unit: unit.Number, UnitLabel: unit.Title, Current: i + 1, Total: total})
			}
		}

		if (i+1)%opts.Checkpoint == 0 {
			if err := r.saveState(ctx, state); err != nil {
				log.Error("checkpoint", "err", err)
			}
		}
		if i < total-1 && opts.Delay > 0 {
			r.sleep(ctx, opts.Delay)
		}
	}

	state.Completed = len(state.Failed) == 0
	if err := r.saveState(ctx, state); err != nil {
		return err
	}
	log.Info("run done", "downloaded", res.Downloaded, "failed", res.Failed, "skipped", res.Skipped, "completed", state.Completed)
	return nil
}

// fetchWithRetry is an explicit bounded loop with linearly widening backoff
// (baseDelay * attempt). No sleep after the last attempt.
func (r *Runner) fetchWithRetry(ctx context.Context, fetcher ContentFetcher, src *data.Source, unit data.Unit, opts Options) (*data.UnitContent, error) {
	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		content, err := fetcher.UnitContent(ctx, src, unit)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if attempt < opts.Retries {
			metrics.UnitRetries.Inc()
			r.sleep(ctx, opts.BaseDelay*time.Duration(attempt))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("unit %d after %d attempts: %w", unit.Number, opts.Retries, lastErr)
}

func (r *Runner) loadState(ctx context.Context, itemID string) (*data.DownloadState, error) {
	state, err := r.store.LoadState(ctx, itemID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return data.NewDownloadState(itemID), nil
		}
		return nil, err
	}
	return state, nil
}

func (r *Runner) saveState(ctx context.Context, state *data.DownloadState) error {
	if err := r.store.SaveState(ctx, state); err != nil {
		return err
	}
	metrics.CheckpointWrites.Inc()
	return nil
}

func (r *Runner) report(e Event) {
	if r.rep != nil {
		r.rep.Report(e)
	}
}

// encodePayload serializes unit content for storage: raw text for textual
// units, a JSON list of references for image units.
func encodePayload(c *data.UnitContent) ([]byte, error) {
	if len(c.Images) > 0 {
		return json.Marshal(c.Images)
	}
	return []byte(c.Text), nil
}
