package dl

import (
	"context"
	"fmt"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/metrics"
)

// FollowOptions tunes a next-link run.
type FollowOptions struct {
	Options
	// StartRef seeds the walk when no NextRef was persisted yet.
	StartRef string
	// MaxConsecutiveFailures stops the run early (default 5). The state
	// gathered so far is preserved and the current reference stays persisted,
	// so a later run resumes at the same unit.
	MaxConsecutiveFailures int
}

// Follow acquires units from a source with no enumerable unit list by
// chasing each unit's next-unit reference. The walk ends cleanly when a
// fetch yields no reference, or early with data.ErrExhausted when
// consecutive failures reach the bound.
func (r *Runner) Follow(ctx context.Context, fetcher ContentFetcher, src *data.Source, item *data.ContentItem, opts FollowOptions) (*Result, error) {
	opts.Options = opts.Options.withDefaults()
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 5
	}
	runID := opts.RunID
	log := r.log.With("operation_id", runID, "item", item.ID, "mode", "follow")

	state, err := r.loadState(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	ref := state.NextRef
	if ref == "" {
		ref = opts.StartRef
	}
	res := &Result{RunID: runID, State: state}
	if ref == "" {
		return res, nil
	}
	log.Info("follow start", "ref", ref, "last_unit", state.LastUnit)

	number := state.LastUnit + 1
	consecutive := 0
	processed := 0
	for ref != "" {
		if ctx.Err() != nil {
			_ = r.saveState(ctx, state)
			return res, ctx.Err()
		}

		unit := data.Unit{Number: number, Ref: ref, Title: fmt.Sprintf("Unit %d", number)}
		r.report(Event{RunID: runID, ItemID: item.ID, Status: StatusDownloading,
			Unit: number, UnitLabel: unit.Title, Current: processed + 1})

		content, err := r.fetchWithRetry(ctx, fetcher, src, unit, opts.Options)
		if err != nil {
			consecutive++
			// Count the unit once, not every pass over the same stuck ref.
			if consecutive == 1 {
				res.Failed++
			}
			state.MarkFailed(number, ref, err.Error())
			state.NextRef = ref
			metrics.UnitsFailed.Inc()
			log.Warn("follow unit failed", "unit", number, "consecutive", consecutive, "err", err)
			r.report(Event{RunID: runID, ItemID: item.ID, Status: StatusError,
				Unit: number, UnitLabel: unit.Title, Current: processed + 1, Err: err.Error()})
			if consecutive >= opts.MaxConsecutiveFailures {
				if serr := r.saveState(ctx, state); serr != nil {
					log.Error("save state", "err", serr)
				}
				return res, fmt.Errorf("follow stopped at unit %d: %w", number, data.ErrExhausted)
			}
		} else {
			payload, perr := encodePayload(content)
			if perr == nil {
				perr = r.store.SaveUnit(ctx, item.ID, number, unit.Title, payload)
			}
			if perr != nil {
				consecutive++
				if consecutive == 1 {
					res.Failed++
				}
				state.MarkFailed(number, ref, perr.Error())
				if consecutive >= opts.MaxConsecutiveFailures {
					if serr := r.saveState(ctx, state); serr != nil {
						log.Error("save state", "err", serr)
					}
					return res, fmt.Errorf("follow stopped at unit %d: %w", number, data.ErrExhausted)
				}
			} else {
				consecutive = 0
				res.Downloaded++
				state.MarkDownloaded(number)
				state.TotalBytes += int64(len(payload))
				state.TotalWords += content.Words()
				// Persisting the next reference lets a restart resume without
				// re-deriving position from counts alone.
				state.NextRef = content.NextRef
				metrics.UnitsDownloaded.Inc()
				r.report(Event{RunID: runID, ItemID: item.ID, Status: StatusSuccess,
					Unit: number, UnitLabel: unit.Title, Current: processed + 1})
				ref = content.NextRef
				number++
			}
		}

		processed++
		if processed%opts.Checkpoint == 0 {
			if err := r.saveState(ctx, state); err != nil {
				log.Error("checkpoint", "err", err)
			}
		}
		if ref != "" && opts.Delay > 0 {
			r.sleep(ctx, opts.Delay)
		}
	}

	state.Completed = len(state.Failed) == 0
	if err := r.saveState(ctx, state); err != nil {
		return res, err
	}
	log.Info("follow done", "downloaded", res.Downloaded, "failed", res.Failed, "completed", state.Completed)
	return res, nil
}
