package data

// EpisodeSpec is the parsed user intent describing which season/episode(s)
// are wanted. Derived once from free text; immutable afterwards. A zero spec
// (no season, no episodes) matches everything.
type EpisodeSpec struct {
	Season   *int  `json:"season"`
	Episodes []int `json:"episodes"`
	IsRange  bool  `json:"isRange"`
}

// Empty reports whether the spec carries no constraint at all.
func (s EpisodeSpec) Empty() bool {
	return s.Season == nil && len(s.Episodes) == 0
}

// CandidateMatch is a swarm search result annotated with extracted episode
// metadata and a computed match score. Recomputed per search; never persisted.
type CandidateMatch struct {
	Title    string `json:"title"`
	Ref      string `json:"ref"`
	Seeders  int    `json:"seeders"`
	Leechers int    `json:"leechers"`
	Size     int64  `json:"size"`
	Trusted  bool   `json:"trusted"`
	Remake   bool   `json:"remake"`

	Season   *int  `json:"season"`
	Episodes []int `json:"episodes"`
	IsBatch  bool  `json:"isBatch"`

	Score int `json:"score"`
}
