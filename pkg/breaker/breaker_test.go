package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSource = "zillow"

// testCooldown keeps circuit recovery fast enough to observe in a test.
const testCooldown = 200 * time.Millisecond

var errUpstream = errors.New("upstream failure")
var errCaptcha = errors.New("captcha challenge served")

func newTestManager() *Manager {
	return NewManager(Config{
		Cooldown: testCooldown,
		IsBlocker: func(err error) bool {
			return errors.Is(err, errCaptcha)
		},
	})
}

func TestDo_SuccessKeepsCircuitClosed(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	for range 10 {
		require.NoError(t, m.Do(testSource, func() error { return nil }))
	}

	assert.True(t, m.Allow(testSource))
}

func TestDo_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	for range consecutiveFailureLimit {
		err := m.Do(testSource, func() error { return errUpstream })
		require.ErrorIs(t, err, errUpstream)
	}

	assert.False(t, m.Allow(testSource))

	err := m.Do(testSource, func() error { return nil })
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestDo_SuccessResetsFailureStreak(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	for range consecutiveFailureLimit - 1 {
		require.ErrorIs(t, m.Do(testSource, func() error { return errUpstream }), errUpstream)
	}

	require.NoError(t, m.Do(testSource, func() error { return nil }))

	// The streak restarted, so two more failures do not open the circuit.
	for range consecutiveFailureLimit - 1 {
		require.ErrorIs(t, m.Do(testSource, func() error { return errUpstream }), errUpstream)
	}

	assert.True(t, m.Allow(testSource))
}

func TestDo_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	for range consecutiveFailureLimit {
		_ = m.Do(testSource, func() error { return errUpstream })
	}

	require.False(t, m.Allow(testSource))

	time.Sleep(2 * testCooldown)

	require.NoError(t, m.Do(testSource, func() error { return nil }))
	assert.True(t, m.Allow(testSource))
}

func TestDo_HalfOpenProbeReopensOnFailure(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	for range consecutiveFailureLimit {
		_ = m.Do(testSource, func() error { return errUpstream })
	}

	time.Sleep(2 * testCooldown)

	require.ErrorIs(t, m.Do(testSource, func() error { return errUpstream }), errUpstream)
	assert.False(t, m.Allow(testSource))
}

func TestDo_CaptchaForcesImmediateTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(Config{
		Cooldown: DefaultCooldown,
		IsBlocker: func(err error) bool {
			return errors.Is(err, errCaptcha)
		},
		Now: func() time.Time { return now },
	})

	require.ErrorIs(t, m.Do(testSource, func() error { return errCaptcha }), errCaptcha)

	assert.False(t, m.Allow(testSource), "a single captcha trips the circuit")
	assert.ErrorIs(t, m.Do(testSource, func() error { return nil }), ErrBlocked)

	// After the full cooldown the source is admitted again.
	now = now.Add(DefaultCooldown + time.Second)
	assert.True(t, m.Allow(testSource))
}

func TestDo_OrdinaryFailureDoesNotForceTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	require.ErrorIs(t, m.Do(testSource, func() error { return errUpstream }), errUpstream)
	assert.True(t, m.Allow(testSource), "one ordinary failure keeps the circuit closed")
}

func TestSessions_IndependentPerSource(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	for range consecutiveFailureLimit {
		_ = m.Do("zillow", func() error { return errUpstream })
	}

	assert.False(t, m.Allow("zillow"))
	assert.True(t, m.Allow("redfin"), "other sources are unaffected")
}

func TestSessions_InactivityReset(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(Config{
		Cooldown:        DefaultCooldown,
		InactivityReset: DefaultInactivityReset,
		Now:             func() time.Time { return now },
	})

	for range consecutiveFailureLimit {
		_ = m.Do(testSource, func() error { return errUpstream })
	}

	require.False(t, m.Allow(testSource))

	// Idle past the reset window: the session is discarded and the
	// circuit starts closed.
	now = now.Add(DefaultInactivityReset + time.Minute)
	assert.True(t, m.Allow(testSource))
}

func TestSnapshot_ReportsSkipsAndState(t *testing.T) {
	t.Parallel()

	// Long cooldown so the circuit stays open for the assertion.
	m := NewManager(Config{Cooldown: DefaultCooldown})

	for range consecutiveFailureLimit {
		_ = m.Do(testSource, func() error { return errUpstream })
	}

	_ = m.Do(testSource, func() error { return nil })
	_ = m.Do(testSource, func() error { return nil })

	snap := m.Snapshot()

	require.Contains(t, snap, testSource)
	assert.Equal(t, "open", snap[testSource].State)
	assert.Equal(t, 2, snap[testSource].Skipped)
}
