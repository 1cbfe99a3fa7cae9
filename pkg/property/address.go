// Package property defines the property data model: normalized identity,
// the enrichment record, field provenance, and precedence-based merging.
package property

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// addressHashBytes is the number of sha256 bytes used for the short
// address digest (16 hex chars).
const addressHashBytes = 8

// trailingPunctuation holds characters stripped from the end of a
// normalized address.
const trailingPunctuation = ".,;: "

// NormalizeAddress canonicalizes a street address for use as the primary
// key: uppercased, whitespace collapsed to single spaces, trailing
// punctuation removed.
func NormalizeAddress(raw string) string {
	fields := strings.Fields(strings.ToUpper(raw))
	joined := strings.Join(fields, " ")

	return strings.TrimRight(joined, trailingPunctuation)
}

// AddressHash computes the short stable digest of a normalized address,
// used to name per-property artifact folders.
func AddressHash(normalized string) string {
	h := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(h[:addressHashBytes])
}
