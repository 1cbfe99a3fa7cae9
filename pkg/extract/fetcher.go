package extract

import (
	"context"
	"errors"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/extract/stealth"
)

// Fetcher abstracts the stealth client so extractors are testable
// against local fixtures.
type Fetcher interface {
	Get(ctx context.Context, url string) (int, []byte, error)
	GetWithHeaders(ctx context.Context, url string, headers map[string]string) (int, []byte, error)
}

// fetchFailure classifies a transport-level failure, distinguishing a
// spent daily budget (a rate_limited blocker) from plain network
// trouble.
func fetchFailure(source string, err error, at time.Time) Result {
	blocker := ClassifyError(err)
	if errors.Is(err, stealth.ErrDailyCapExceeded) {
		blocker = BlockerRateLimited
	}

	return failed(source, blocker, at)
}
