// Package score ranks swarm search results against a parsed episode request.
// Scores order candidates; the only pass/fail gate is a zero score, which
// marks a hard season/episode reject and never ranks.
package score

import (
	"math"
	"sort"

	"github.com/seriarr/seriarr/internal/data"
)

const (
	unconstrainedScore = 100
	seasonBonus        = 50
	exactSetBonus      = 30
	trustBonus         = 25
	remakePenalty      = 20
	oversizePenalty    = 10
	batchBonus         = 20
	seederBonusCap     = 20
)

// Score computes the integer match score of a candidate against a spec.
// Hard mismatches short-circuit to 0; the result is floored at 0.
func Score(c data.CandidateMatch, spec data.EpisodeSpec) int {
	if spec.Empty() {
		return unconstrainedScore
	}

	score := 0

	if spec.Season != nil {
		switch {
		case c.Season != nil && *c.Season != *spec.Season:
			return 0
		case c.Season != nil:
			score += seasonBonus
		}
		// Unknown candidate season: absence of metadata is not evidence of a
		// mismatch, so neither bonus nor rejection.
	}

	if len(spec.Episodes) > 0 {
		switch {
		case len(c.Episodes) > 0:
			matched := intersect(spec.Episodes, c.Episodes)
			if len(matched) == 0 {
				return 0
			}
			score += int(math.Round(100 * float64(len(matched)) / float64(len(spec.Episodes))))
			if len(matched) == len(spec.Episodes) && len(c.Episodes) == len(spec.Episodes) {
				score += exactSetBonus
			}
			if len(c.Episodes) > 2*len(spec.Episodes) {
				score -= oversizePenalty
			}
		case c.IsBatch:
			// No declared episodes but flagged batch: plausible container.
			score += batchBonus
		}
	}

	if c.Trusted {
		score += trustBonus
	}
	if c.Remake {
		score -= remakePenalty
	}

	if c.Seeders > 0 {
		bonus := 10 * math.Log10(float64(c.Seeders))
		if bonus > seederBonusCap {
			bonus = seederBonusCap
		}
		score += int(bonus)
	}

	if score < 0 {
		return 0
	}
	return score
}

// RankOptions tunes Rank. MinScore filters, Limit truncates (0 = no limit),
// PreferTrusted sorts trusted candidates ahead of everything else.
type RankOptions struct {
	MinScore      int
	Limit         int
	PreferTrusted bool
}

// Rank scores, filters and orders candidates: trusted-first when requested,
// then score descending, then seeders descending as a stable tie-break.
// Zero-score candidates are dropped regardless of MinScore so a hard reject
// can never be selected, not even by a forced grab.
func Rank(candidates []data.CandidateMatch, spec data.EpisodeSpec, opts RankOptions) []data.CandidateMatch {
	out := make([]data.CandidateMatch, 0, len(candidates))
	for _, c := range candidates {
		c.Score = Score(c, spec)
		if c.Score == 0 || c.Score < opts.MinScore {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if opts.PreferTrusted && a.Trusted != b.Trusted {
			return a.Trusted
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Seeders > b.Seeders
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// AutoSelect reports whether the top ranked candidate is a confident default:
// score at least 150 and leading second place by at least 30. This is a UX
// hint for callers, not part of the scoring contract.
func AutoSelect(ranked []data.CandidateMatch) bool {
	if len(ranked) == 0 {
		return false
	}
	if ranked[0].Score < 150 {
		return false
	}
	if len(ranked) == 1 {
		return true
	}
	return ranked[0].Score-ranked[1].Score >= 30
}

func intersect(a, b []int) []int {
	set := make(map[int]struct{}, len(b))
	for _, n := range b {
		set[n] = struct{}{}
	}
	var out []int
	for _, n := range a {
		if _, ok := set[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
