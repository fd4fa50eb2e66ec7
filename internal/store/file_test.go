package store

import (
	"context"
	"testing"
	"time"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *FileStore {
	s := NewFileStoreFS(afero.NewMemMapFs(), "base")
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestFileStoreSaveUnit(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.SaveUnit(ctx, "item", 1, "First", []byte("hello")))
	require.NoError(t, s.SaveUnit(ctx, "item", 12, "Later: Part 2", []byte("world")))

	got, err := afero.ReadFile(s.fs, "base/item/0001 - First.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// Unsafe characters in the title are replaced, the number prefix stays.
	exists, err := afero.Exists(s.fs, "base/item/0012 - Later_ Part 2.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileStoreListDownloadedNumbers(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	nums, err := s.ListDownloadedNumbers(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, nums)

	require.NoError(t, s.SaveUnit(ctx, "item", 3, "C", []byte("c")))
	require.NoError(t, s.SaveUnit(ctx, "item", 1, "A", []byte("a")))
	nums, err = s.ListDownloadedNumbers(ctx, "item")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, nums)
}

func TestFileStoreStateRoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.LoadState(ctx, "item")
	assert.ErrorIs(t, err, data.ErrNotFound)

	state := data.NewDownloadState("item")
	state.MarkDownloaded(1)
	state.MarkFailed(2, "ref-2", "boom")
	state.NextRef = "ref-3"
	state.TotalBytes = 42
	require.NoError(t, s.SaveState(ctx, state))

	got, err := s.LoadState(ctx, "item")
	require.NoError(t, err)
	assert.Equal(t, state.Downloaded, got.Downloaded)
	assert.Equal(t, state.Failed, got.Failed)
	assert.Equal(t, "ref-3", got.NextRef)
	assert.Equal(t, int64(42), got.TotalBytes)
	assert.False(t, got.UpdatedAt.IsZero())

	// No leftover temp file after the rename.
	exists, err := afero.Exists(s.fs, "base/item/state.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileStoreSaveStateRejectsMissingID(t *testing.T) {
	s := newTestStore()
	assert.Error(t, s.SaveState(context.Background(), &data.DownloadState{}))
}

func TestFileStoreUnitFiles(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	_, err := s.UnitFiles(ctx, "missing")
	assert.ErrorIs(t, err, data.ErrNotFound)

	require.NoError(t, s.SaveUnit(ctx, "item", 2, "Two", []byte("b")))
	require.NoError(t, s.SaveUnit(ctx, "item", 1, "One", []byte("a")))
	require.NoError(t, s.SaveState(ctx, data.NewDownloadState("item")))

	files, err := s.UnitFiles(ctx, "item")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 1, files[0].Number)
	assert.Equal(t, "One", files[0].Title)
	assert.Equal(t, "base/item/0001 - One.txt", files[0].Path)
	assert.Equal(t, 2, files[1].Number)
}
