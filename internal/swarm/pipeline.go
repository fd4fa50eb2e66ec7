package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/metrics"
)

type fsOps interface {
	Remove(string) error
	RemoveAll(string) error
}

type osFS struct{}

func (osFS) Remove(p string) error    { return os.Remove(p) }
func (osFS) RemoveAll(p string) error { return os.RemoveAll(p) }

// File is one entry in a transfer's manifest. Index is the daemon's 1-based
// file index; Selected mirrors what the pipeline asked for, every file starts
// deselected.
type File struct {
	Index     int
	Path      string
	Length    int64
	Completed int64
	Selected  bool
}

// Handle is an opened reference to a peer transfer. It owns network
// resources and on-disk partial allocations, so the caller must Release it
// when done, success or failure.
type Handle struct {
	GID       string
	Ref       string
	Name      string
	TotalSize int64
	Files     []File
}

// Progress is one periodic snapshot of a running transfer, scoped to the
// selected files.
type Progress struct {
	Percent   float64
	Completed int64
	Total     int64
	Rate      int64
	Peers     int
	ETA       time.Duration
}

// TransferOptions tunes SelectAndTransfer. Interval defaults to one second.
type TransferOptions struct {
	OnProgress func(Progress)
	Interval   time.Duration
}

// TransferResult reports a finished transfer.
type TransferResult struct {
	Paths   []string
	Bytes   int64
	Elapsed time.Duration
}

// Pipeline owns the process-wide swarm client and all open handles. The
// client is created lazily through EnsureClient and torn down through
// DestroyClient, the only two mutation points; it is re-creatable after
// destruction.
type Pipeline struct {
	mu        sync.Mutex
	cl        *Client
	newClient func() (*Client, error)

	log         *slog.Logger
	fs          fsOps
	downloadDir string
	poll        time.Duration

	open map[string]*Handle
}

// NewPipeline builds a pipeline. newClient is invoked lazily on first use.
func NewPipeline(newClient func() (*Client, error), downloadDir string, poll time.Duration, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Pipeline{
		newClient:   newClient,
		log:         log,
		fs:          osFS{},
		downloadDir: downloadDir,
		poll:        poll,
		open:        make(map[string]*Handle),
	}
}

// EnsureClient returns the shared client, creating it on first use.
func (p *Pipeline) EnsureClient(ctx context.Context) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cl != nil {
		return p.cl, nil
	}
	cl, err := p.newClient()
	if err != nil {
		return nil, err
	}
	p.cl = cl
	return cl, nil
}

// DestroyClient drops the shared client. Open handles are released
// best-effort first. A later EnsureClient recreates the client.
func (p *Pipeline) DestroyClient(ctx context.Context) {
	p.mu.Lock()
	handles := make([]*Handle, 0, len(p.open))
	for _, h := range p.open {
		handles = append(handles, h)
	}
	p.mu.Unlock()
	for _, h := range handles {
		if err := p.Release(ctx, h, false); err != nil {
			p.log.Warn("release on destroy", "gid", h.GID, "err", err)
		}
	}
	p.mu.Lock()
	p.cl = nil
	p.mu.Unlock()
}

// Ping performs a lightweight RPC to check daemon liveness.
func (p *Pipeline) Ping(ctx context.Context) error {
	cl, err := p.EnsureClient(ctx)
	if err != nil {
		return err
	}
	params := []interface{}{}
	if tok := cl.tokenParam(); tok != nil {
		params = append(params, tok...)
	}
	_, err = cl.Call(ctx, "aria2.getVersion", params)
	return err
}

// Open resolves the transfer's file manifest without transferring payload
// data: the transfer is added paused and polled until metadata arrives. All
// files start deselected. Fails with data.ErrMetadataTimeout when the
// manifest is not resolved within the timeout.
func (p *Pipeline) Open(ctx context.Context, ref string, timeout time.Duration) (*Handle, error) {
	cl, err := p.EnsureClient(ctx)
	if err != nil {
		return nil, err
	}

	params := make([]interface{}, 0, 3)
	if tok := cl.tokenParam(); tok != nil {
		params = append(params, tok...)
	}
	params = append(params, []string{ref})
	opts := map[string]string{"pause": "true"}
	if p.downloadDir != "" {
		opts["dir"] = p.downloadDir
	}
	params = append(params, opts)

	res, err := cl.Call(ctx, "aria2.addUri", params)
	if err != nil {
		return nil, err
	}
	var gid string
	if err := json.Unmarshal(res, &gid); err != nil {
		return nil, fmt.Errorf("parse addUri result: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		st, err := p.tellStatus(ctx, cl, gid)
		if err == nil {
			// A metadata task spawns the real transfer via followedBy.
			if len(st.FollowedBy) > 0 && st.FollowedBy[0] != "" {
				gid = st.FollowedBy[0]
				// Hold the spawned transfer until files are selected.
				_, _ = cl.Call(ctx, "aria2.pause", append(cl.tokenParam(), gid))
				continue
			}
			if st.resolved() {
				h := st.handle(gid, ref)
				p.track(h)
				p.log.Info("swarm opened", "gid", gid, "name", h.Name, "files", len(h.Files))
				return h, nil
			}
		}
		if time.Now().After(deadline) {
			// Best-effort cleanup of the dangling metadata task.
			_, _ = cl.Call(ctx, "aria2.remove", append(cl.tokenParam(), gid))
			_, _ = cl.Call(ctx, "aria2.removeDownloadResult", append(cl.tokenParam(), gid))
			return nil, fmt.Errorf("open %s: %w", ref, data.ErrMetadataTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// SelectAndTransfer deselects everything, selects exactly the requested file
// indices and streams progress at a fixed interval until the selected files
// finish. It resolves with the final file paths.
func (p *Pipeline) SelectAndTransfer(ctx context.Context, h *Handle, indices []int, opts TransferOptions) (*TransferResult, error) {
	cl, err := p.EnsureClient(ctx)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, errors.New("no files selected")
	}
	valid := make(map[int]bool, len(h.Files))
	for _, f := range h.Files {
		valid[f.Index] = true
	}
	sel := append([]int(nil), indices...)
	sort.Ints(sel)
	parts := make([]string, 0, len(sel))
	for _, idx := range sel {
		if !valid[idx] {
			return nil, fmt.Errorf("file index %d out of range", idx)
		}
		parts = append(parts, strconv.Itoa(idx))
	}

	// Deselect-all then select: the option value is the complete selection.
	changeParams := append(cl.tokenParam(), h.GID, map[string]string{"select-file": strings.Join(parts, ",")})
	if _, err := cl.Call(ctx, "aria2.changeOption", changeParams); err != nil {
		return nil, err
	}
	selSet := make(map[int]bool, len(sel))
	for _, idx := range sel {
		selSet[idx] = true
	}
	for i := range h.Files {
		h.Files[i].Selected = selSet[h.Files[i].Index]
	}

	if _, err := cl.Call(ctx, "aria2.unpause", append(cl.tokenParam(), h.GID)); err != nil {
		return nil, err
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = p.poll
	}

	// Async notifications short-circuit completion detection; polling alone
	// still finishes the transfer when the socket is unavailable.
	notifyCtx, cancelNotify := context.WithCancel(ctx)
	defer cancelNotify()
	notifications, nerr := cl.Notifications(notifyCtx)
	if nerr != nil {
		p.log.Warn("swarm notifications unavailable, polling only", "err", nerr)
	}

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			for _, ev := range n.Params {
				if ev.GID != h.GID {
					continue
				}
				switch n.Method {
				case notifyComplete:
					return p.finish(ctx, cl, h, selSet, start, opts.OnProgress)
				case notifyError, notifyStop:
					st, _ := p.tellStatus(ctx, cl, h.GID)
					msg := "transfer stopped"
					if st != nil && st.ErrorMessage != "" {
						msg = st.ErrorMessage
					}
					return nil, fmt.Errorf("swarm transfer %s: %s", h.GID, msg)
				}
			}
		case <-ticker.C:
			st, err := p.tellStatus(ctx, cl, h.GID)
			if err != nil {
				p.log.Warn("swarm status", "gid", h.GID, "err", err)
				continue
			}
			switch st.Status {
			case "error":
				return nil, fmt.Errorf("swarm transfer %s: %s", h.GID, st.ErrorMessage)
			case "removed":
				return nil, fmt.Errorf("swarm transfer %s: removed", h.GID)
			}
			prog, done := st.progress(selSet)
			if opts.OnProgress != nil {
				opts.OnProgress(prog)
			}
			if done || st.Status == "complete" {
				return p.finish(ctx, cl, h, selSet, start, opts.OnProgress)
			}
		}
	}
}

// finish gathers the selected file paths after completion.
func (p *Pipeline) finish(ctx context.Context, cl *Client, h *Handle, selSet map[int]bool, start time.Time, onProgress func(Progress)) (*TransferResult, error) {
	st, err := p.tellStatus(ctx, cl, h.GID)
	if err != nil {
		return nil, err
	}
	res := &TransferResult{Elapsed: time.Since(start)}
	for _, f := range st.files() {
		if !selSet[f.Index] {
			continue
		}
		res.Paths = append(res.Paths, f.Path)
		res.Bytes += f.Length
	}
	if onProgress != nil {
		prog, _ := st.progress(selSet)
		prog.Percent = 100
		onProgress(prog)
	}
	return res, nil
}

// Release tears the transfer down: cancels it, clears daemon result state
// and removes on-disk partials with their control-file sidecars. With
// keepPayload the selected files survive and only unselected partials and
// sidecars are swept. Idempotent; callers run it unconditionally after use.
func (p *Pipeline) Release(ctx context.Context, h *Handle, keepPayload bool) error {
	if h == nil {
		return nil
	}
	cl, err := p.EnsureClient(ctx)
	if err != nil {
		return err
	}
	if _, err := cl.Call(ctx, "aria2.remove", append(cl.tokenParam(), h.GID)); err != nil && !isGIDNotFoundError(err) {
		p.log.Warn("swarm remove", "gid", h.GID, "err", err)
	}
	_, _ = cl.Call(ctx, "aria2.removeDownloadResult", append(cl.tokenParam(), h.GID))

	// Unselected siblings may have partial allocations too; sweep everything
	// the manifest names plus control sidecars.
	var firstErr error
	for _, f := range h.Files {
		if f.Path == "" {
			continue
		}
		if !(keepPayload && f.Selected) {
			if err := p.fs.RemoveAll(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
				firstErr = fmt.Errorf("release %s: %w", f.Path, err)
			}
		}
		if err := p.fs.Remove(f.Path + ".aria2"); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = fmt.Errorf("release %s: %w", f.Path, err)
		}
	}

	p.untrack(h.GID)
	p.log.Info("swarm released", "gid", h.GID)
	return firstErr
}

func (p *Pipeline) track(h *Handle) {
	p.mu.Lock()
	p.open[h.GID] = h
	metrics.ActiveTransfers.Set(float64(len(p.open)))
	p.mu.Unlock()
}

func (p *Pipeline) untrack(gid string) {
	p.mu.Lock()
	delete(p.open, gid)
	metrics.ActiveTransfers.Set(float64(len(p.open)))
	p.mu.Unlock()
}
