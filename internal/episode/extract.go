package episode

import (
	"regexp"
	"strings"

	"github.com/seriarr/seriarr/internal/data"
)

// Title patterns differ from user-input patterns: release titles delimit
// ranges with brackets or tildes and tag completeness with trailing markers.
var (
	reTitleSxxEyy   = regexp.MustCompile(`(?i)\bs(\d{1,2})\s*-?\s*e(\d{1,4})(?:\s*[-~]\s*e?(\d{1,4}))?\b`)
	reTitleOrdinal  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\s+season\b`)
	reTitleSeason   = regexp.MustCompile(`(?i)\bseason\s+(\d{1,2})\b|\bs(\d{1,2})\b`)
	reTitleBracket  = regexp.MustCompile(`[\[(](\d{1,4})\s*[-~]\s*(\d{1,4})[\])]`)
	reTitleEpisode  = regexp.MustCompile(`(?i)\b(?:ep?|episode)\s*\.?\s*(\d{1,4})(?:\s*[-~]\s*(\d{1,4}))?\b`)
	reTitleBareSpan = regexp.MustCompile(`\b(\d{1,4})\s*[-~]\s*(\d{1,4})\b`)
	reTitleEnd      = regexp.MustCompile(`(?i)\b(?:end|final|fin)\b\s*[\])]?\s*$`)
)

// batchMarkers flag a release as a full-series container even when no
// episode range is present. The non-ASCII entries are the common "all
// episodes" markers on Japanese trackers.
var batchMarkers = []string{
	"batch",
	"complete",
	"full series",
	"全話",
	"一挙",
}

// wideRangeMin is the narrowest episode span that counts as a batch on its
// own.
const wideRangeMin = 6

// ExtractSpec pulls season/episode structure out of a candidate title and
// flags plausible batch containers.
func ExtractSpec(title string) data.EpisodeSpec {
	spec := data.EpisodeSpec{}

	if m := reTitleSxxEyy.FindStringSubmatch(title); m != nil {
		if s, ok := seasonRangeSpec(m[1], m[2], m[3]); ok {
			spec = s
		}
	}
	if spec.Season == nil {
		if m := reTitleOrdinal.FindStringSubmatch(title); m != nil {
			if n, ok := atoiBounded(m[1]); ok {
				spec.Season = &n
			}
		}
	}
	if spec.Season == nil {
		if m := reTitleSeason.FindStringSubmatch(title); m != nil {
			raw := m[1]
			if raw == "" {
				raw = m[2]
			}
			if n, ok := atoiBounded(raw); ok {
				spec.Season = &n
			}
		}
	}

	if len(spec.Episodes) == 0 {
		if m := reTitleBracket.FindStringSubmatch(title); m != nil {
			if lo, okA := atoiBounded(m[1]); okA {
				if hi, okB := atoiBounded(m[2]); okB {
					spec.Episodes = expandRange(lo, hi)
					spec.IsRange = true
				}
			}
		}
	}
	if len(spec.Episodes) == 0 {
		if m := reTitleEpisode.FindStringSubmatch(title); m != nil {
			if s, ok := seasonRangeSpec("", m[1], m[2]); ok {
				spec.Episodes = s.Episodes
				spec.IsRange = s.IsRange
			}
		}
	}

	return spec
}

// IsBatch reports whether the title looks like a full-series container:
// keyword markers, a trailing completeness marker, or a wide numeric range.
func IsBatch(title string, spec data.EpisodeSpec) bool {
	lower := strings.ToLower(title)
	for _, marker := range batchMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// Trailing "END"/"Final" after the last episode marker.
	if reTitleEnd.MatchString(title) {
		return true
	}
	if spec.IsRange && len(spec.Episodes) >= wideRangeMin {
		return true
	}
	// A wide bare span anywhere in the title counts even when the episode
	// extraction above found nothing.
	if m := reTitleBareSpan.FindStringSubmatch(title); m != nil {
		if lo, okA := atoiBounded(m[1]); okA {
			if hi, okB := atoiBounded(m[2]); okB && hi-lo+1 >= wideRangeMin {
				return true
			}
		}
	}
	return false
}

// Annotate fills a candidate's extracted season/episode fields in place.
func Annotate(c *data.CandidateMatch) {
	spec := ExtractSpec(c.Title)
	c.Season = spec.Season
	c.Episodes = spec.Episodes
	c.IsBatch = IsBatch(c.Title, spec)
}
