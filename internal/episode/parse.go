// Package episode parses free-text season/episode requests and extracts the
// same structure from swarm result titles. User input and source titles use
// different conventions, so the two directions keep separate pattern sets.
package episode

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/seriarr/seriarr/internal/data"
)

// numberCeiling bounds parsed endpoints. Anything above it is a false
// positive (resolutions, years, hash fragments) and the pattern is skipped.
const numberCeiling = 2000

var (
	reSxxEyy      = regexp.MustCompile(`(?i)\bs(\d{1,4})\s*e(\d{1,4})(?:\s*-\s*e?(\d{1,4}))?\b`)
	reSeasonEp    = regexp.MustCompile(`(?i)\bseason\s+(\d{1,4})\s+episodes?\s+(\d{1,4})(?:\s*-\s*(\d{1,4}))?\b`)
	reCross       = regexp.MustCompile(`\b(\d{1,4})x(\d{1,4})(?:\s*-\s*(\d{1,4}))?\b`)
	reEpisodeOnly = regexp.MustCompile(`(?i)\bepisodes?\s+(\d{1,4})(?:\s*-\s*(\d{1,4}))?\b`)
	reSeasonOnly  = regexp.MustCompile(`(?i)\bseason\s+(\d{1,4})\b`)
	reBareList    = regexp.MustCompile(`^[\d\s,\-]+$`)
)

// ParseSpec turns free-text user input into an EpisodeSpec. Patterns are
// tried in priority order and the first one that yields sane numbers wins.
// Unparseable or empty input is "no constraint", never an error.
func ParseSpec(text string) data.EpisodeSpec {
	text = strings.TrimSpace(text)
	if text == "" {
		return data.EpisodeSpec{}
	}

	if m := reSxxEyy.FindStringSubmatch(text); m != nil {
		if spec, ok := seasonRangeSpec(m[1], m[2], m[3]); ok {
			return spec
		}
	}
	if m := reSeasonEp.FindStringSubmatch(text); m != nil {
		if spec, ok := seasonRangeSpec(m[1], m[2], m[3]); ok {
			return spec
		}
	}
	if m := reCross.FindStringSubmatch(text); m != nil {
		if spec, ok := seasonRangeSpec(m[1], m[2], m[3]); ok {
			return spec
		}
	}
	if m := reEpisodeOnly.FindStringSubmatch(text); m != nil {
		if spec, ok := seasonRangeSpec("", m[1], m[2]); ok {
			return spec
		}
	}
	if m := reSeasonOnly.FindStringSubmatch(text); m != nil {
		if n, ok := atoiBounded(m[1]); ok {
			return data.EpisodeSpec{Season: &n}
		}
	}
	if reBareList.MatchString(text) {
		if eps, hasRange, ok := parseNumberList(text); ok && len(eps) > 0 {
			return data.EpisodeSpec{Episodes: eps, IsRange: hasRange}
		}
	}
	return data.EpisodeSpec{}
}

// seasonRangeSpec builds a spec from optional season, first episode and
// optional range end. Reports false when any endpoint fails the sanity bound.
func seasonRangeSpec(season, from, to string) (data.EpisodeSpec, bool) {
	spec := data.EpisodeSpec{}
	if season != "" {
		n, ok := atoiBounded(season)
		if !ok {
			return spec, false
		}
		spec.Season = &n
	}
	lo, ok := atoiBounded(from)
	if !ok {
		return data.EpisodeSpec{}, false
	}
	hi := lo
	if to != "" {
		hi, ok = atoiBounded(to)
		if !ok {
			return data.EpisodeSpec{}, false
		}
		spec.IsRange = true
	}
	spec.Episodes = expandRange(lo, hi)
	return spec, true
}

// parseNumberList parses "1-5,10,15-20" into a sorted, deduplicated episode
// list. The second result reports whether any segment was a range.
func parseNumberList(text string) ([]int, bool, bool) {
	seen := make(map[int]struct{})
	hasRange := false
	for _, seg := range strings.Split(text, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if lo, hi, found := strings.Cut(seg, "-"); found {
			a, okA := atoiBounded(strings.TrimSpace(lo))
			b, okB := atoiBounded(strings.TrimSpace(hi))
			if !okA || !okB {
				return nil, false, false
			}
			hasRange = true
			for _, n := range expandRange(a, b) {
				seen[n] = struct{}{}
			}
			continue
		}
		n, ok := atoiBounded(seg)
		if !ok {
			return nil, false, false
		}
		seen[n] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, hasRange, true
}

func expandRange(lo, hi int) []int {
	if hi < lo {
		lo, hi = hi, lo
	}
	out := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, n)
	}
	return out
}

func atoiBounded(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > numberCeiling {
		return 0, false
	}
	return n, true
}
