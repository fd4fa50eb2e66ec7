package score

import (
	"testing"

	"github.com/seriarr/seriarr/internal/data"
)

func intp(n int) *int { return &n }

func seq(lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, n)
	}
	return out
}

func TestScore(t *testing.T) {
	cases := []struct {
		name string
		c    data.CandidateMatch
		spec data.EpisodeSpec
		want int
	}{
		{
			name: "unconstrained",
			c:    data.CandidateMatch{Title: "anything", Trusted: true, Seeders: 500},
			spec: data.EpisodeSpec{},
			want: 100,
		},
		{
			name: "season mismatch rejects",
			c:    data.CandidateMatch{Season: intp(3), Episodes: []int{5}},
			spec: data.EpisodeSpec{Season: intp(2), Episodes: []int{5}},
			want: 0,
		},
		{
			name: "no episode overlap rejects",
			c:    data.CandidateMatch{Episodes: []int{1, 2}},
			spec: data.EpisodeSpec{Episodes: []int{5}},
			want: 0,
		},
		{
			name: "exact single episode with season",
			c:    data.CandidateMatch{Season: intp(2), Episodes: []int{5}},
			spec: data.EpisodeSpec{Season: intp(2), Episodes: []int{5}},
			// 50 season + 100 coverage + 30 exact
			want: 180,
		},
		{
			name: "unknown season neither rejects nor scores",
			c:    data.CandidateMatch{Episodes: []int{5}},
			spec: data.EpisodeSpec{Season: intp(2), Episodes: []int{5}},
			// 100 coverage + 30 exact
			want: 130,
		},
		{
			name: "oversized container penalized",
			c:    data.CandidateMatch{Episodes: seq(1, 12)},
			spec: data.EpisodeSpec{Episodes: []int{5}},
			// 100 coverage - 10 oversize
			want: 90,
		},
		{
			name: "partial coverage rounds",
			c:    data.CandidateMatch{Episodes: []int{5, 6}},
			spec: data.EpisodeSpec{Episodes: []int{5, 6, 7}},
			// round(100*2/3) = 67
			want: 67,
		},
		{
			name: "batch without declared episodes",
			c:    data.CandidateMatch{IsBatch: true},
			spec: data.EpisodeSpec{Episodes: []int{5}},
			want: 20,
		},
		{
			name: "remake floors at zero",
			c:    data.CandidateMatch{Remake: true},
			spec: data.EpisodeSpec{Episodes: []int{5}},
			want: 0,
		},
		{
			name: "trusted and seeders",
			c:    data.CandidateMatch{Episodes: []int{5}, Trusted: true, Seeders: 10},
			spec: data.EpisodeSpec{Episodes: []int{5}},
			// 100 + 30 exact + 25 trusted + 10 seeders
			want: 165,
		},
		{
			name: "seeder bonus capped",
			c:    data.CandidateMatch{Episodes: []int{5}, Seeders: 100000},
			spec: data.EpisodeSpec{Episodes: []int{5}},
			// 100 + 30 exact + 20 cap
			want: 150,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.c, tc.spec); got != tc.want {
				t.Fatalf("Score = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRank(t *testing.T) {
	spec := data.EpisodeSpec{Episodes: []int{5}}
	candidates := []data.CandidateMatch{
		{Title: "miss", Episodes: []int{1}},
		{Title: "low seeders", Episodes: []int{5}, Seeders: 2},
		{Title: "high seeders", Episodes: []int{5}, Seeders: 50},
		{Title: "trusted", Episodes: []int{5}, Trusted: true},
	}

	ranked := Rank(candidates, spec, RankOptions{MinScore: 1, PreferTrusted: true})
	if len(ranked) != 3 {
		t.Fatalf("ranked %d candidates, want 3", len(ranked))
	}
	if ranked[0].Title != "trusted" {
		t.Fatalf("first = %q, want trusted ahead of higher scores", ranked[0].Title)
	}
	if ranked[1].Title != "high seeders" || ranked[2].Title != "low seeders" {
		t.Fatalf("order = %q, %q; want seeder-descending", ranked[1].Title, ranked[2].Title)
	}

	limited := Rank(candidates, spec, RankOptions{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("limit ignored: got %d", len(limited))
	}

	// Ranking the ranked output again must not change the order.
	again := Rank(ranked, spec, RankOptions{MinScore: 1, PreferTrusted: true})
	for i := range ranked {
		if again[i].Title != ranked[i].Title {
			t.Fatalf("rank not idempotent at %d: %q vs %q", i, again[i].Title, ranked[i].Title)
		}
	}
}

func TestRankDropsHardRejects(t *testing.T) {
	spec := data.EpisodeSpec{Season: intp(2), Episodes: []int{5}}
	candidates := []data.CandidateMatch{
		{Title: "wrong season", Season: intp(3), Episodes: []int{5}, Seeders: 900, Trusted: true},
		{Title: "no overlap", Episodes: []int{1, 2}},
	}
	// Zero-score candidates never rank, even with no minimum configured.
	if ranked := Rank(candidates, spec, RankOptions{}); len(ranked) != 0 {
		t.Fatalf("zero-score candidates survived rank: %v", ranked)
	}
}

func TestRankTieBreakStable(t *testing.T) {
	spec := data.EpisodeSpec{}
	candidates := []data.CandidateMatch{
		{Title: "a", Seeders: 5},
		{Title: "b", Seeders: 5},
	}
	ranked := Rank(candidates, spec, RankOptions{})
	if ranked[0].Title != "a" || ranked[1].Title != "b" {
		t.Fatalf("equal candidates reordered: %q, %q", ranked[0].Title, ranked[1].Title)
	}
}

func TestAutoSelect(t *testing.T) {
	cases := []struct {
		name   string
		scores []int
		want   bool
	}{
		{"empty", nil, false},
		{"single confident", []int{160}, true},
		{"single weak", []int{140}, false},
		{"clear lead", []int{180, 140}, true},
		{"narrow lead", []int{180, 160}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ranked := make([]data.CandidateMatch, len(tc.scores))
			for i, s := range tc.scores {
				ranked[i].Score = s
			}
			if got := AutoSelect(ranked); got != tc.want {
				t.Fatalf("AutoSelect(%v) = %v, want %v", tc.scores, got, tc.want)
			}
		})
	}
}
