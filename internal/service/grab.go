package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/seriarr/seriarr/internal/clip"
	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/episode"
	"github.com/seriarr/seriarr/internal/score"
	"github.com/seriarr/seriarr/internal/swarm"
)

// GrabRequest drives the swarm flow: search, rank, pick a release, transfer
// only the matching files, optionally cut a preview clip.
type GrabRequest struct {
	SourceID string `json:"sourceId"`
	Query    string `json:"query"`
	// Spec is the free-text episode constraint, e.g. "S2E5-12".
	Spec string `json:"spec,omitempty"`
	// Force transfers the top candidate even without an auto-select margin.
	Force bool `json:"force,omitempty"`
	// ClipSeconds cuts a preview segment of that length from each file.
	ClipSeconds int `json:"clipSeconds,omitempty"`
	// ClipOffset is the segment start, a duration string like "90s" or
	// "2m30s". Empty or "random" samples a start instead.
	ClipOffset   string `json:"clipOffset,omitempty"`
	KeepOriginal bool   `json:"keepOriginal,omitempty"`
}

// GrabResult reports the ranked candidates and, when a transfer ran, its
// output.
type GrabResult struct {
	Candidates   []data.CandidateMatch `json:"candidates"`
	Selected     *data.CandidateMatch  `json:"selected,omitempty"`
	AutoSelected bool                  `json:"autoSelected"`
	Transferred  bool                  `json:"transferred"`
	Paths        []string              `json:"paths,omitempty"`
	Bytes        int64                 `json:"bytes,omitempty"`
	ClipPaths    []string              `json:"clipPaths,omitempty"`
}

var mediaExts = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".webm": true, ".ts": true,
}

// Grab runs the full swarm flow. Without a confident auto-selection (and
// without Force) it stops after ranking and returns the candidates for the
// caller to choose from.
func (e *Engine) Grab(ctx context.Context, req GrabRequest) (*GrabResult, error) {
	clipStart, err := parseClipOffset(req.ClipOffset)
	if err != nil {
		return nil, err
	}
	src, err := e.Source(req.SourceID)
	if err != nil {
		return nil, err
	}
	searcher, err := e.providers.Candidates(src)
	if err != nil {
		return nil, err
	}

	candidates, err := searcher.SearchCandidates(ctx, src, req.Query)
	if err != nil {
		return nil, err
	}
	if e.dlCfg.MinSeeders > 0 {
		kept := candidates[:0]
		for _, c := range candidates {
			if c.Seeders >= e.dlCfg.MinSeeders {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	spec := episode.ParseSpec(req.Spec)
	ranked := score.Rank(candidates, spec, score.RankOptions{
		MinScore:      e.dlCfg.RankMinScore,
		Limit:         e.dlCfg.RankLimit,
		PreferTrusted: true,
	})
	res := &GrabResult{Candidates: ranked}
	if len(ranked) == 0 {
		return res, fmt.Errorf("no candidate for %q: %w", req.Query, data.ErrNotFound)
	}

	res.AutoSelected = score.AutoSelect(ranked)
	if !res.AutoSelected && !req.Force {
		return res, nil
	}
	chosen := ranked[0]
	res.Selected = &chosen
	log := e.log.With("source", src.ID, "ref", chosen.Ref)
	log.Info("grab selected", "title", chosen.Title, "score", chosen.Score, "seeders", chosen.Seeders)

	handle, err := e.pipeline.Open(ctx, chosen.Ref, time.Duration(e.swarmCfg.MetadataTimeoutS)*time.Second)
	if err != nil {
		return res, err
	}
	keepPayload := false
	defer func() {
		if rerr := e.pipeline.Release(ctx, handle, keepPayload); rerr != nil {
			log.Warn("grab release", "err", rerr)
		}
	}()

	indices, err := selectFiles(handle.Files, spec)
	if err != nil {
		return res, err
	}

	transfer, err := e.pipeline.SelectAndTransfer(ctx, handle, indices, swarm.TransferOptions{
		Interval: time.Duration(e.swarmCfg.PollMS) * time.Millisecond,
		OnProgress: func(p swarm.Progress) {
			log.Debug("grab progress", "percent", fmt.Sprintf("%.1f", p.Percent),
				"bytes", p.Completed, "total", p.Total, "rate", p.Rate, "peers", p.Peers, "eta", p.ETA)
		},
	})
	if err != nil {
		return res, err
	}
	keepPayload = true
	res.Transferred = true
	res.Paths = transfer.Paths
	res.Bytes = transfer.Bytes
	log.Info("grab transferred", "files", len(transfer.Paths), "bytes", transfer.Bytes, "elapsed", transfer.Elapsed)

	if req.ClipSeconds > 0 && e.clipper != nil {
		for _, path := range transfer.Paths {
			clipPath, cerr := e.clipper.Extract(ctx, path, clip.Options{
				SegmentLength: time.Duration(req.ClipSeconds) * time.Second,
				Start:         clipStart,
				KeepOriginal:  req.KeepOriginal,
			})
			if cerr != nil {
				// The original stays in place; the grab itself succeeded.
				log.Warn("grab clip", "path", path, "err", cerr)
				continue
			}
			res.ClipPaths = append(res.ClipPaths, clipPath)
		}
	}
	return res, nil
}

// parseClipOffset resolves the request offset into an explicit segment start.
// Empty and "random" mean a sampled start; anything else must parse as a
// non-negative duration.
func parseClipOffset(raw string) (*time.Duration, error) {
	switch raw {
	case "", "random":
		return nil, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return nil, fmt.Errorf("%w: clip offset %q is not a duration", data.ErrInvalidSource, raw)
	}
	return &d, nil
}

// selectFiles picks the 1-based indices of media files matching the episode
// constraint. An empty constraint takes every media file; a constrained grab
// with no matching file is an error, never a silent full transfer.
func selectFiles(files []swarm.File, spec data.EpisodeSpec) ([]int, error) {
	var media []swarm.File
	for _, f := range files {
		if mediaExts[strings.ToLower(filepath.Ext(f.Path))] {
			media = append(media, f)
		}
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("no media files in transfer: %w", data.ErrNotFound)
	}
	if spec.Empty() {
		out := make([]int, 0, len(media))
		for _, f := range media {
			out = append(out, f.Index)
		}
		return out, nil
	}

	wanted := make(map[int]bool, len(spec.Episodes))
	for _, ep := range spec.Episodes {
		wanted[ep] = true
	}
	var out []int
	for _, f := range media {
		fileSpec := episode.ExtractSpec(filepath.Base(f.Path))
		if spec.Season != nil && fileSpec.Season != nil && *fileSpec.Season != *spec.Season {
			continue
		}
		if len(wanted) == 0 {
			// Season-only constraint: any file of the season qualifies.
			out = append(out, f.Index)
			continue
		}
		for _, ep := range fileSpec.Episodes {
			if wanted[ep] {
				out = append(out, f.Index)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no file matches the requested episodes: %w", data.ErrNotFound)
	}
	return out, nil
}
