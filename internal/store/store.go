// Package store is the durable storage collaborator: unit payloads and the
// per-item DownloadState. The state format must round-trip exactly; failed
// unit identity is never re-derived.
package store

import (
	"context"

	"github.com/seriarr/seriarr/internal/data"
)

// Store combines unit persistence and state persistence.
type Store interface {
	UnitWriter
	StateStore
}

// UnitWriter persists fetched unit payloads.
type UnitWriter interface {
	SaveUnit(ctx context.Context, itemID string, number int, title string, content []byte) error
	ListDownloadedNumbers(ctx context.Context, itemID string) ([]int, error)
}

// StateStore persists DownloadState keyed per item. LoadState returns
// data.ErrNotFound when no state exists yet.
type StateStore interface {
	LoadState(ctx context.Context, itemID string) (*data.DownloadState, error)
	SaveState(ctx context.Context, state *data.DownloadState) error
}

// UnitFile locates one persisted unit payload on disk.
type UnitFile struct {
	Number int
	Title  string
	Path   string
}

// UnitLister is implemented by stores whose unit payloads live as plain
// files. Exports that hand files to external tools require it.
type UnitLister interface {
	UnitFiles(ctx context.Context, itemID string) ([]UnitFile, error)
}
