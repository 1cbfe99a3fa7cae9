package stealth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default per-source budget.
const (
	DefaultRequestsPerSecond = 0.5
	DefaultBurst             = 1
	DefaultDailyCap          = 400
)

// ErrDailyCapExceeded is returned once a source has spent its daily
// request allowance; it clears at the next UTC midnight.
var ErrDailyCapExceeded = errors.New("daily request cap exceeded")

// Budget enforces a per-source request budget: a token-bucket rate limit
// plus a hard daily cap.
type Budget struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	dailyCap int
	spent    int
	day      time.Time

	now func() time.Time
}

// NewBudget creates a budget. Non-positive arguments take the defaults.
func NewBudget(perSecond float64, burst, dailyCap int) *Budget {
	if perSecond <= 0 {
		perSecond = DefaultRequestsPerSecond
	}

	if burst <= 0 {
		burst = DefaultBurst
	}

	if dailyCap <= 0 {
		dailyCap = DefaultDailyCap
	}

	return &Budget{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		dailyCap: dailyCap,
		now:      time.Now,
	}
}

// Wait blocks until a request may proceed, or fails fast when the daily
// cap is spent or the context ends.
func (b *Budget) Wait(ctx context.Context) error {
	if err := b.spend(); err != nil {
		return err
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate wait: %w", err)
	}

	return nil
}

// spend consumes one unit of the daily allowance, rolling the counter at
// UTC midnight.
func (b *Budget) spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := b.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(b.day) {
		b.day = today
		b.spent = 0
	}

	if b.spent >= b.dailyCap {
		return fmt.Errorf("%w: %d/%d", ErrDailyCapExceeded, b.spent, b.dailyCap)
	}

	b.spent++

	return nil
}

// Remaining reports today's unspent allowance.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.now().UTC().Truncate(24 * time.Hour).Equal(b.day) {
		return b.dailyCap
	}

	return max(b.dailyCap-b.spent, 0)
}
