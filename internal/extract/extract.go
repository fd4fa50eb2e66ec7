// Package extract is the field-extraction collaborator: a pure, synchronous
// mapping from a fetched document and a selector set to named fields. The
// engine never parses markup itself; sources that need DOM scraping plug in
// their own Extractor.
package extract

import (
	"encoding/json"
	"fmt"

	"github.com/seriarr/seriarr/internal/data"
)

// Fields is everything an extractor can pull from one document. Absent
// fields stay zero.
type Fields struct {
	Title   string
	Author  string
	Status  string
	Tags    []string
	Units   []data.Unit
	Text    string
	Images  []string
	NextRef string

	// List pages (search, browse) fill exactly one of these.
	Items      []data.ContentItem
	Candidates []data.CandidateMatch
}

// Extractor maps a raw document plus a selector set to Fields. No network,
// no side effects.
type Extractor interface {
	Extract(doc []byte, selectors map[string]string) (Fields, error)
}

// JSONExtractor serves sources that expose JSON documents. A selector is the
// top-level JSON key holding the logical field.
type JSONExtractor struct{}

var _ Extractor = JSONExtractor{}

func (JSONExtractor) Extract(doc []byte, selectors map[string]string) (Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return Fields{}, fmt.Errorf("extract: %w", err)
	}
	pick := func(field string) json.RawMessage {
		key, ok := selectors[field]
		if !ok {
			key = field
		}
		return raw[key]
	}

	var out Fields
	decode := func(field string, dst any) error {
		msg := pick(field)
		if msg == nil {
			return nil
		}
		if err := json.Unmarshal(msg, dst); err != nil {
			return fmt.Errorf("extract %s: %w", field, err)
		}
		return nil
	}

	if err := decode("title", &out.Title); err != nil {
		return Fields{}, err
	}
	if err := decode("author", &out.Author); err != nil {
		return Fields{}, err
	}
	if err := decode("status", &out.Status); err != nil {
		return Fields{}, err
	}
	if err := decode("tags", &out.Tags); err != nil {
		return Fields{}, err
	}
	if err := decode("units", &out.Units); err != nil {
		return Fields{}, err
	}
	if err := decode("text", &out.Text); err != nil {
		return Fields{}, err
	}
	if err := decode("images", &out.Images); err != nil {
		return Fields{}, err
	}
	if err := decode("next", &out.NextRef); err != nil {
		return Fields{}, err
	}
	if err := decode("items", &out.Items); err != nil {
		return Fields{}, err
	}
	if err := decode("candidates", &out.Candidates); err != nil {
		return Fields{}, err
	}
	return out, nil
}

// Func adapts a function to the Extractor interface.
type Func func(doc []byte, selectors map[string]string) (Fields, error)

func (f Func) Extract(doc []byte, selectors map[string]string) (Fields, error) {
	return f(doc, selectors)
}
