// Package extract defines the uniform extraction contract and the
// per-source extractors. Extraction is pure I/O: an extractor fetches,
// parses, and returns a Result; it never persists anything and never
// lets transport errors cross the boundary as Go errors. Blockers are
// data.
package extract

import (
	"bytes"
	"context"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// Status is the extraction outcome for one source.
type Status string

// Extraction statuses.
const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Blocker classifies why an extraction failed or degraded.
type Blocker string

// Blockers.
const (
	BlockerNone        Blocker = "none"
	BlockerCaptcha     Blocker = "captcha"
	BlockerRateLimited Blocker = "rate_limited"
	BlockerNotFound    Blocker = "not_found"
	BlockerNetwork     Blocker = "network"
	BlockerParse       Blocker = "parse"
)

// Tripping reports whether the blocker must force the source's circuit
// open immediately.
func (b Blocker) Tripping() bool {
	return b == BlockerCaptcha || b == BlockerRateLimited
}

// ImageAsset is one discovered listing photo. Extractors fill URL only;
// the extraction orchestrator downloads bytes separately so retries and
// dedup stay outside the extractor.
type ImageAsset struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Result is the uniform extraction record.
type Result struct {
	Source      string          `json:"source"`
	Images      []ImageAsset    `json:"images,omitempty"`
	Fields      property.Fields `json:"fields,omitempty"`
	Status      Status          `json:"status"`
	Blocker     Blocker         `json:"blocker"`
	AttemptedAt time.Time       `json:"attempted_at"`
}

// Extractor is the uniform per-source contract.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, prop property.Property) Result
}

// botChallengeMarkers identify a 403 body served by a bot-protection
// interstitial rather than a plain permission denial.
var botChallengeMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("px-captcha"),
	[]byte("challenge-platform"),
	[]byte("Pardon Our Interruption"),
}

// ClassifyHTTP maps a response status and body to a blocker.
func ClassifyHTTP(code int, body []byte) Blocker {
	switch code {
	case 200:
		return BlockerNone
	case 403:
		for _, marker := range botChallengeMarkers {
			if bytes.Contains(bytes.ToLower(body), bytes.ToLower(marker)) {
				return BlockerCaptcha
			}
		}

		return BlockerNetwork
	case 404:
		return BlockerNotFound
	case 429:
		return BlockerRateLimited
	default:
		return BlockerNetwork
	}
}

// ClassifyError maps a transport error to a blocker. Timeouts, resets,
// and DNS failures all land on network; parse problems are classified
// at the call site where the payload is known.
func ClassifyError(err error) Blocker {
	if err == nil {
		return BlockerNone
	}

	return BlockerNetwork
}

// failed builds a failed Result for a source.
func failed(source string, blocker Blocker, at time.Time) Result {
	return Result{
		Source:      source,
		Status:      StatusFailed,
		Blocker:     blocker,
		AttemptedAt: at,
	}
}

// grade decides the outcome for a parsed payload: both fields and
// images → ok, one of the two → partial, neither → failed.
func grade(fields property.Fields, images []ImageAsset) Status {
	switch {
	case len(fields) > 0 && len(images) > 0:
		return StatusOK
	case len(fields) > 0 || len(images) > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}
