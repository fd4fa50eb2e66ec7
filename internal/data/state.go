package data

import "time"

// FailedUnit records one unit whose retries were exhausted during a run.
// Identity round-trips exactly (number and ref) so a retry pass can re-run
// precisely these units.
type FailedUnit struct {
	Number int    `json:"number"`
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// DownloadState is the persisted per-item acquisition record and the single
// source of truth for resume decisions. It is written at checkpoint intervals
// and once at the end of a run.
//
// Invariant: downloaded ∪ failed ∪ pending covers all units of the item.
type DownloadState struct {
	ItemID     string       `json:"itemId"`
	Downloaded []int        `json:"downloaded"`
	LastUnit   int          `json:"lastUnit"`
	NextRef    string       `json:"nextRef,omitempty"`
	Failed     []FailedUnit `json:"failed"`
	TotalBytes int64        `json:"totalBytes"`
	TotalWords int          `json:"totalWords"`
	Completed  bool         `json:"completed"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// NewDownloadState returns an empty state for the item.
func NewDownloadState(itemID string) *DownloadState {
	return &DownloadState{ItemID: itemID}
}

// Clone returns a deep copy of the state.
func (s *DownloadState) Clone() *DownloadState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Downloaded = append([]int(nil), s.Downloaded...)
	cp.Failed = append([]FailedUnit(nil), s.Failed...)
	return &cp
}

// IsDownloaded reports whether the unit number is recorded as downloaded.
func (s *DownloadState) IsDownloaded(number int) bool {
	for _, n := range s.Downloaded {
		if n == number {
			return true
		}
	}
	return false
}

// IsFailed reports whether the unit number is on the failed list.
func (s *DownloadState) IsFailed(number int) bool {
	for _, f := range s.Failed {
		if f.Number == number {
			return true
		}
	}
	return false
}

// MarkDownloaded records a successful unit and clears any earlier failure for
// the same number.
func (s *DownloadState) MarkDownloaded(number int) {
	if !s.IsDownloaded(number) {
		s.Downloaded = append(s.Downloaded, number)
	}
	s.ClearFailed(number)
	if number > s.LastUnit {
		s.LastUnit = number
	}
}

// MarkFailed records an exhausted unit. An existing entry for the same number
// is updated in place rather than duplicated, so a retry pass updates the
// recorded reason instead of appending.
func (s *DownloadState) MarkFailed(number int, ref, reason string) {
	for i := range s.Failed {
		if s.Failed[i].Number == number {
			s.Failed[i].Ref = ref
			s.Failed[i].Reason = reason
			return
		}
	}
	s.Failed = append(s.Failed, FailedUnit{Number: number, Ref: ref, Reason: reason})
}

// ClearFailed drops the failed entry for the unit number, if any.
func (s *DownloadState) ClearFailed(number int) {
	for i := range s.Failed {
		if s.Failed[i].Number == number {
			s.Failed = append(s.Failed[:i], s.Failed[i+1:]...)
			return
		}
	}
}
