// Package breaker guards extraction sources with per-source circuit
// breakers. A source that keeps failing, or that serves a captcha or
// rate-limit response, is skipped for a cooldown period instead of being
// hammered.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Defaults.
const (
	// DefaultCooldown is how long an open circuit stays open before a
	// half-open probe is allowed.
	DefaultCooldown = 30 * time.Minute

	// DefaultInactivityReset discards a source's session after this much
	// idle time, returning it to a closed circuit.
	DefaultInactivityReset = 30 * time.Minute

	// consecutiveFailureLimit opens the circuit on ordinary failures.
	consecutiveFailureLimit = 3
)

// ErrBlocked is returned when the circuit refuses a request. Callers
// record the property as skipped_blocked rather than failed.
var ErrBlocked = errors.New("source blocked by circuit breaker")

// Config tunes the manager.
type Config struct {
	Cooldown        time.Duration
	InactivityReset time.Duration

	// IsBlocker classifies errors that force an immediate trip (captcha,
	// rate limiting) regardless of the consecutive-failure count.
	IsBlocker func(error) bool

	// Now supplies the clock for forced trips and inactivity expiry.
	Now func() time.Time
}

// SourceState is one source's snapshot for summary reporting.
type SourceState struct {
	State               string    `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	TotalRequests       uint32    `json:"total_requests"`
	Skipped             int       `json:"skipped"`
	ForcedOpen          bool      `json:"forced_open,omitempty"`
	ForcedUntil         time.Time `json:"forced_until,omitzero"`
}

// session holds one source's circuit and bookkeeping.
type session struct {
	cb          *gobreaker.CircuitBreaker
	forcedUntil time.Time
	lastSeen    time.Time
	skipped     int
}

// Manager owns the per-source sessions for one batch run.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	sessions map[string]*session
}

// NewManager creates a manager with zero-value config fields defaulted.
func NewManager(cfg Config) *Manager {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	if cfg.InactivityReset <= 0 {
		cfg.InactivityReset = DefaultInactivityReset
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{cfg: cfg, sessions: make(map[string]*session)}
}

// sessionFor returns the live session for a source, discarding it first
// if it has been idle past the inactivity window.
func (m *Manager) sessionFor(source string) *session {
	now := m.cfg.Now()

	s, ok := m.sessions[source]
	if ok && now.Sub(s.lastSeen) > m.cfg.InactivityReset {
		delete(m.sessions, source)

		ok = false
	}

	if !ok {
		s = &session{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        source,
			MaxRequests: 1,
			Timeout:     m.cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailureLimit
			},
		})}
		m.sessions[source] = s
	}

	s.lastSeen = now

	return s
}

// Allow reports whether a request to the source would currently be
// admitted. It does not consume the half-open probe slot.
func (m *Manager) Allow(source string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessionFor(source)

	if m.cfg.Now().Before(s.forcedUntil) {
		return false
	}

	return s.cb.State() != gobreaker.StateOpen
}

// Do runs fn under the source's circuit. Refused requests return
// ErrBlocked; blocker errors (captcha, rate limiting) trip the circuit
// immediately for the full cooldown.
func (m *Manager) Do(source string, fn func() error) error {
	m.mu.Lock()

	s := m.sessionFor(source)

	if now := m.cfg.Now(); now.Before(s.forcedUntil) {
		s.skipped++
		m.mu.Unlock()

		return fmt.Errorf("%w: %s rate-limited until %s", ErrBlocked, source, s.forcedUntil.Format(time.RFC3339))
	}

	m.mu.Unlock()

	_, err := s.cb.Execute(func() (any, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		m.mu.Lock()
		s.skipped++
		m.mu.Unlock()

		return fmt.Errorf("%w: %s circuit open", ErrBlocked, source)
	}

	if err != nil && m.cfg.IsBlocker != nil && m.cfg.IsBlocker(err) {
		m.mu.Lock()
		s.forcedUntil = m.cfg.Now().Add(m.cfg.Cooldown)
		m.mu.Unlock()
	}

	return err
}

// Snapshot reports the state of every live session for the batch
// summary.
func (m *Manager) Snapshot() map[string]SourceState {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	out := make(map[string]SourceState, len(m.sessions))

	for source, s := range m.sessions {
		counts := s.cb.Counts()

		state := s.cb.State().String()
		forced := now.Before(s.forcedUntil)

		if forced {
			state = gobreaker.StateOpen.String()
		}

		ss := SourceState{
			State:               state,
			ConsecutiveFailures: counts.ConsecutiveFailures,
			TotalRequests:       counts.Requests,
			Skipped:             s.skipped,
			ForcedOpen:          forced,
		}
		if forced {
			ss.ForcedUntil = s.forcedUntil
		}

		out[source] = ss
	}

	return out
}
