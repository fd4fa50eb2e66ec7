// Package capability holds the static vocabulary of content variants and the
// operations/export targets each supports. Capabilities are pure data; they
// are never computed from network state.
package capability

import "github.com/seriarr/seriarr/internal/data"

// Capability names one operation or export target a source may support.
type Capability string

const (
	Search      Capability = "search"
	Browse      Capability = "browse"
	Detail      Capability = "detail"
	UnitContent Capability = "unitContent"
	Download    Capability = "download"

	ExportDocument Capability = "export.document"
	ExportArchive  Capability = "export.archive"
)

var variantCaps = map[data.Variant][]Capability{
	data.VariantText:  {Search, Browse, Detail, UnitContent, Download, ExportDocument},
	data.VariantImage: {Search, Detail, UnitContent, Download, ExportArchive},
	data.VariantSwarm: {Search, Download},
}

// ForVariant returns the fixed capability set of a variant. The returned
// slice is a copy.
func ForVariant(v data.Variant) []Capability {
	caps := variantCaps[v]
	return append([]Capability(nil), caps...)
}

// Has answers whether the source supports the capability. An explicit
// capability list on the source wins; otherwise the set is inferred from the
// variant. Absence is a normal "not supported" answer, not an error.
func Has(src *data.Source, c Capability) bool {
	if src == nil {
		return false
	}
	if len(src.Capabilities) > 0 {
		for _, got := range src.Capabilities {
			if Capability(got) == c {
				return true
			}
		}
		return false
	}
	for _, got := range variantCaps[src.Variant] {
		if got == c {
			return true
		}
	}
	return false
}

// Infer returns the capability set for a source as plain strings, for
// serialization in API responses and config defaulting.
func Infer(src *data.Source) []string {
	if src == nil {
		return nil
	}
	if len(src.Capabilities) > 0 {
		return append([]string(nil), src.Capabilities...)
	}
	caps := variantCaps[src.Variant]
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c))
	}
	return out
}
