package property

import (
	"math"
	"time"
)

// SourceKind ranks enrichment sources for merge precedence.
type SourceKind string

// Source kinds in ascending precedence.
const (
	SourceDefault SourceKind = "default"
	SourceListing SourceKind = "listing"
	SourceCounty  SourceKind = "county"
	SourceManual  SourceKind = "manual"
)

// Precedence ranks, higher wins.
const (
	rankDefault = iota
	rankListing
	rankCounty
	rankManual
)

// defaultConfidence is assigned when a source does not report one.
const defaultConfidence = 0.8

// severeConflictRatio is the relative disagreement beyond which a
// numeric conflict is flagged for reconciliation (e.g. county vs manual
// lot_sqft differing by more than 10%).
const severeConflictRatio = 0.10

// Rank returns the numeric precedence of the source kind.
func (k SourceKind) Rank() int {
	switch k {
	case SourceManual:
		return rankManual
	case SourceCounty:
		return rankCounty
	case SourceListing:
		return rankListing
	case SourceDefault:
		return rankDefault
	default:
		return rankDefault
	}
}

// FieldProvenance records where and when a field value came from.
type FieldProvenance struct {
	SourceID   string     `json:"source_id"`
	Kind       SourceKind `json:"kind"`
	FetchedAt  time.Time  `json:"fetched_at"`
	Confidence float64    `json:"confidence"`
}

// Conflict records a disagreement between a stored higher-precedence
// value and a later, lower-precedence source. The stored value is kept.
type Conflict struct {
	Field      string     `json:"field"`
	KeptValue  any        `json:"kept_value"`
	SeenValue  any        `json:"seen_value"`
	KeptSource string     `json:"kept_source"`
	SeenSource string     `json:"seen_source"`
	SeenKind   SourceKind `json:"seen_kind"`
	Severe     bool       `json:"severe"`
	At         time.Time  `json:"at"`
}

// outranks reports whether incoming provenance should replace existing.
// Higher kind rank wins; within the same rank, higher confidence wins and
// ties keep the existing value.
func outranks(incoming, existing FieldProvenance) bool {
	ir, er := incoming.Kind.Rank(), existing.Kind.Rank()
	if ir != er {
		return ir > er
	}

	return incoming.Confidence > existing.Confidence
}

// severeNumericConflict reports whether two values are both numeric and
// disagree by more than severeConflictRatio relative to the kept value.
func severeNumericConflict(kept, seen any) bool {
	k, kOK := toFloat(kept)
	s, sOK := toFloat(seen)

	if !kOK || !sOK || k == 0 {
		return false
	}

	return math.Abs(s-k)/math.Abs(k) > severeConflictRatio
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
