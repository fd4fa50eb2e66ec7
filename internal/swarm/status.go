package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// transferStatus mirrors the daemon's tellStatus response. Numeric fields
// arrive as decimal strings on the wire.
type transferStatus struct {
	GID             string       `json:"gid"`
	Status          string       `json:"status"`
	TotalLength     string       `json:"totalLength"`
	CompletedLength string       `json:"completedLength"`
	DownloadSpeed   string       `json:"downloadSpeed"`
	Connections     string       `json:"connections"`
	NumSeeders      string       `json:"numSeeders"`
	ErrorMessage    string       `json:"errorMessage"`
	FollowedBy      []string     `json:"followedBy"`
	Files           []fileStatus `json:"files"`
	Bittorrent      struct {
		Info struct {
			Name string `json:"name"`
		} `json:"info"`
	} `json:"bittorrent"`
}

type fileStatus struct {
	Index           string `json:"index"`
	Path            string `json:"path"`
	Length          string `json:"length"`
	CompletedLength string `json:"completedLength"`
	Selected        string `json:"selected"`
}

func (p *Pipeline) tellStatus(ctx context.Context, cl *Client, gid string) (*transferStatus, error) {
	res, err := cl.Call(ctx, "aria2.tellStatus", append(cl.tokenParam(), gid))
	if err != nil {
		return nil, err
	}
	var st transferStatus
	if err := json.Unmarshal(res, &st); err != nil {
		return nil, fmt.Errorf("parse tellStatus result: %w", err)
	}
	return &st, nil
}

// resolved reports whether the transfer's file manifest is available. Before
// metadata arrives the daemon lists a placeholder [METADATA] entry.
func (st *transferStatus) resolved() bool {
	if len(st.Files) == 0 {
		return false
	}
	if st.Bittorrent.Info.Name != "" {
		return true
	}
	for _, f := range st.Files {
		if strings.HasPrefix(f.Path, "[METADATA]") {
			return false
		}
	}
	return atoi64(st.TotalLength) > 0
}

func (st *transferStatus) handle(gid, ref string) *Handle {
	h := &Handle{
		GID:       gid,
		Ref:       ref,
		Name:      st.Bittorrent.Info.Name,
		TotalSize: atoi64(st.TotalLength),
		Files:     st.files(),
	}
	// The daemon defaults everything to selected; selection is ours to make.
	for i := range h.Files {
		h.Files[i].Selected = false
	}
	if h.Name == "" && len(h.Files) > 0 {
		h.Name = h.Files[0].Path
	}
	return h
}

func (st *transferStatus) files() []File {
	out := make([]File, 0, len(st.Files))
	for _, f := range st.Files {
		out = append(out, File{
			Index:     int(atoi64(f.Index)),
			Path:      f.Path,
			Length:    atoi64(f.Length),
			Completed: atoi64(f.CompletedLength),
			Selected:  f.Selected == "true",
		})
	}
	return out
}

// progress aggregates completion over the selected files only; done is true
// when every selected byte has arrived.
func (st *transferStatus) progress(selSet map[int]bool) (Progress, bool) {
	var completed, total int64
	for _, f := range st.files() {
		if !selSet[f.Index] {
			continue
		}
		completed += f.Completed
		total += f.Length
	}
	prog := Progress{
		Completed: completed,
		Total:     total,
		Rate:      atoi64(st.DownloadSpeed),
		Peers:     int(atoi64(st.Connections)),
	}
	if total > 0 {
		prog.Percent = 100 * float64(completed) / float64(total)
	}
	if prog.Rate > 0 && total > completed {
		prog.ETA = time.Duration((total-completed)/prog.Rate) * time.Second
	}
	return prog, total > 0 && completed >= total
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
