package data

import "sort"

// Unit is one chapter or episode, the atomic acquisition item. Identity is
// the Ref (URL or provider reference), never the position in the list.
type Unit struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Ref    string `json:"ref"`
}

// UnitContent is the fetched payload of a single unit. Text and Images are
// mutually exclusive in practice; NextRef links to the following unit for
// sources without an enumerable unit list.
type UnitContent struct {
	Text    string
	Images  []string
	NextRef string
}

// Words returns a rough word count for textual content.
func (c *UnitContent) Words() int {
	n := 0
	inWord := false
	for _, r := range c.Text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				n++
			}
			inWord = true
		}
	}
	return n
}

// ContentItem is a discovered work with its ordered unit list. Immutable once
// fetched except for Merge with later detail fetches.
type ContentItem struct {
	ID       string   `json:"id"`
	SourceID string   `json:"sourceId"`
	Title    string   `json:"title"`
	Author   string   `json:"author,omitempty"`
	Status   string   `json:"status,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Units    []Unit   `json:"units,omitempty"`
}

// Clone returns a deep copy of the item.
func (ci *ContentItem) Clone() *ContentItem {
	if ci == nil {
		return nil
	}
	cp := *ci
	cp.Tags = append([]string(nil), ci.Tags...)
	cp.Units = append([]Unit(nil), ci.Units...)
	return &cp
}

// Merge unions a later detail fetch into the item. Fields already set win;
// units are deduplicated by Ref and renumbered.
func (ci *ContentItem) Merge(other *ContentItem) {
	if other == nil {
		return
	}
	if ci.Title == "" {
		ci.Title = other.Title
	}
	if ci.Author == "" {
		ci.Author = other.Author
	}
	if ci.Status == "" {
		ci.Status = other.Status
	}
	if len(ci.Tags) == 0 {
		ci.Tags = append([]string(nil), other.Tags...)
	}
	ci.Units = NormalizeUnits(append(ci.Units, other.Units...))
}

// NormalizeUnits deduplicates units by Ref, assigns a positional number to
// units that lack one and sorts ascending by number. Units sharing a number
// keep their relative source order (stable sort).
func NormalizeUnits(units []Unit) []Unit {
	seen := make(map[string]struct{}, len(units))
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		if u.Ref != "" {
			if _, ok := seen[u.Ref]; ok {
				continue
			}
			seen[u.Ref] = struct{}{}
		}
		out = append(out, u)
	}
	// Numbering unknowns by source position first keeps the sorted list
	// ascending even when known and unknown numbers mix.
	for i := range out {
		if out[i].Number <= 0 {
			out[i].Number = i + 1
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Number < out[j].Number
	})
	return out
}
