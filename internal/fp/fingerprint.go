// Package fp computes stable fingerprints for acquisition requests so that
// identical requests deduplicate to one run.
package fp

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeRef trims surrounding whitespace. Refs are otherwise opaque;
// URL-level rewriting could change source-visible identity.
func NormalizeRef(s string) string {
	return strings.TrimSpace(s)
}

// Fingerprint computes a hex-encoded SHA-256 over the normalized source ID
// and item ref. Two acquisition requests with the same fingerprint address
// the same work and collapse to one run.
func Fingerprint(sourceID, itemRef string) string {
	h := sha256.New()
	// NUL separates the parts; neither input can contain it.
	h.Write([]byte(NormalizeRef(sourceID)))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeRef(itemRef)))
	return hex.EncodeToString(h.Sum(nil))
}
