package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/spf13/afero"
)

// FileStore keeps unit payloads and state files under a base directory:
//
//	<base>/<itemID>/0001 - Title.txt
//	<base>/<itemID>/state.json
//
// State writes go through a temp file and rename so a crash mid-write never
// leaves a truncated state behind.
type FileStore struct {
	fs   afero.Fs
	base string
	now  func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore builds a store over the OS filesystem.
func NewFileStore(base string) *FileStore {
	return NewFileStoreFS(afero.NewOsFs(), base)
}

// NewFileStoreFS builds a store over an arbitrary filesystem, used by tests
// with an in-memory fs.
func NewFileStoreFS(fs afero.Fs, base string) *FileStore {
	return &FileStore{fs: fs, base: base, now: time.Now}
}

const stateFileName = "state.json"

var reUnitFile = regexp.MustCompile(`^(\d+) - `)

func (s *FileStore) itemDir(itemID string) string {
	return filepath.Join(s.base, sanitize(itemID))
}

func (s *FileStore) SaveUnit(ctx context.Context, itemID string, number int, title string, content []byte) error {
	dir := s.itemDir(itemID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save unit: %w", err)
	}
	name := fmt.Sprintf("%04d - %s.txt", number, sanitize(title))
	if err := afero.WriteFile(s.fs, filepath.Join(dir, name), content, 0o644); err != nil {
		return fmt.Errorf("save unit: %w", err)
	}
	return nil
}

func (s *FileStore) ListDownloadedNumbers(ctx context.Context, itemID string) ([]int, error) {
	entries, err := afero.ReadDir(s.fs, s.itemDir(itemID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := reUnitFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out, nil
}

// UnitFiles lists persisted unit payloads in unit order with their absolute
// locations under the store base.
func (s *FileStore) UnitFiles(ctx context.Context, itemID string) ([]UnitFile, error) {
	dir := s.itemDir(itemID)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, data.ErrNotFound
		}
		return nil, err
	}
	var out []UnitFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := reUnitFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		title := strings.TrimSuffix(e.Name()[len(m[0]):], filepath.Ext(e.Name()))
		out = append(out, UnitFile{Number: n, Title: title, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

var _ UnitLister = (*FileStore)(nil)

func (s *FileStore) LoadState(ctx context.Context, itemID string) (*data.DownloadState, error) {
	raw, err := afero.ReadFile(s.fs, filepath.Join(s.itemDir(itemID), stateFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, data.ErrNotFound
		}
		return nil, err
	}
	state := &data.DownloadState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("load state %s: %w", itemID, err)
	}
	return state, nil
}

func (s *FileStore) SaveState(ctx context.Context, state *data.DownloadState) error {
	if state == nil || state.ItemID == "" {
		return errors.New("save state: missing item id")
	}
	dir := s.itemDir(state.ItemID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	cp := state.Clone()
	cp.UpdatedAt = s.now().UTC()
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	tmp := filepath.Join(dir, stateFileName+".tmp")
	if err := afero.WriteFile(s.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if err := s.fs.Rename(tmp, filepath.Join(dir, stateFileName)); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// sanitize keeps names filesystem-safe without losing identity for typical
// titles.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
