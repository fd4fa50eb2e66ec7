package data

import "time"

// Variant identifies the content modality a source serves. Dispatch is keyed
// by this field alone, never by sniffing response content.
type Variant string

const (
	VariantText  Variant = "text"
	VariantImage Variant = "image"
	VariantSwarm Variant = "swarm"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantText, VariantImage, VariantSwarm:
		return true
	}
	return false
}

// HTTPPolicy carries the per-source transport knobs. Retries here are the
// downloader's per-unit retries, not transport retries.
type HTTPPolicy struct {
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration
	// Delay is slept between consecutive unit fetches to respect source rate
	// limits. Skipped after the last unit of a run.
	Delay time.Duration
}

// Source is a named remote endpoint descriptor. Exactly one variant per
// source; the capability set is either explicit or inferred from the variant.
type Source struct {
	ID           string
	Name         string
	Variant      Variant
	BaseURL      string
	Enabled      bool
	HTTP         HTTPPolicy
	Capabilities []string
	// Selectors maps logical field names to extraction rules, one set per
	// page kind ("search", "detail", "unit").
	Selectors map[string]map[string]string
}

// Clone returns a deep copy so callers cannot mutate cached sources.
func (s *Source) Clone() *Source {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Capabilities = append([]string(nil), s.Capabilities...)
	if s.Selectors != nil {
		cp.Selectors = make(map[string]map[string]string, len(s.Selectors))
		for k, set := range s.Selectors {
			inner := make(map[string]string, len(set))
			for f, sel := range set {
				inner[f] = sel
			}
			cp.Selectors[k] = inner
		}
	}
	return &cp
}
