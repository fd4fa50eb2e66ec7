package service

import (
	"errors"
	"testing"
	"time"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/seriarr/seriarr/internal/episode"
	"github.com/seriarr/seriarr/internal/swarm"
)

func TestParseClipOffset(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		random  bool
		wantErr bool
	}{
		{in: "", random: true},
		{in: "random", random: true},
		{in: "90s", want: 90 * time.Second},
		{in: "2m30s", want: 150 * time.Second},
		{in: "bogus", wantErr: true},
		{in: "-5s", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseClipOffset(tc.in)
		if tc.wantErr {
			if !errors.Is(err, data.ErrInvalidSource) {
				t.Fatalf("parseClipOffset(%q) err = %v, want ErrInvalidSource", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseClipOffset(%q): %v", tc.in, err)
		}
		if tc.random {
			if got != nil {
				t.Fatalf("parseClipOffset(%q) = %v, want nil for a random start", tc.in, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Fatalf("parseClipOffset(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func seasonFiles() []swarm.File {
	return []swarm.File{
		{Index: 1, Path: "Show/Show S02E05 [1080p].mkv"},
		{Index: 2, Path: "Show/Show S02E06 [1080p].mkv"},
		{Index: 3, Path: "Show/Show S01E05 [1080p].mkv"},
		{Index: 4, Path: "Show/NCOP.mkv"},
		{Index: 5, Path: "Show/readme.txt"},
	}
}

func TestSelectFilesEmptySpecTakesAllMedia(t *testing.T) {
	got, err := selectFiles(seasonFiles(), data.EpisodeSpec{})
	if err != nil {
		t.Fatalf("selectFiles: %v", err)
	}
	want := []int{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("indices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indices = %v, want %v", got, want)
		}
	}
}

func TestSelectFilesEpisodeMatch(t *testing.T) {
	spec := episode.ParseSpec("S2E5")
	got, err := selectFiles(seasonFiles(), spec)
	if err != nil {
		t.Fatalf("selectFiles: %v", err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("indices = %v, want [1]", got)
	}
}

func TestSelectFilesSeasonOnly(t *testing.T) {
	spec := episode.ParseSpec("season 2")
	got, err := selectFiles(seasonFiles(), spec)
	if err != nil {
		t.Fatalf("selectFiles: %v", err)
	}
	// Season 2 files plus the season-unmarked extra; only S01 is excluded.
	for _, idx := range got {
		if idx == 3 {
			t.Fatalf("season 1 file selected: %v", got)
		}
	}
	if len(got) != 3 {
		t.Fatalf("indices = %v, want 3 entries", got)
	}
}

func TestSelectFilesNoMatchErrors(t *testing.T) {
	spec := episode.ParseSpec("S2E99")
	_, err := selectFiles(seasonFiles(), spec)
	if !errors.Is(err, data.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSelectFilesNoMediaErrors(t *testing.T) {
	files := []swarm.File{{Index: 1, Path: "notes.txt"}}
	_, err := selectFiles(files, data.EpisodeSpec{})
	if !errors.Is(err, data.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
