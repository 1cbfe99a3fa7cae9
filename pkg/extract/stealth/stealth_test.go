package stealth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget_DailyCap(t *testing.T) {
	t.Parallel()

	b := NewBudget(1000, 1000, 3)

	ctx := context.Background()

	for range 3 {
		require.NoError(t, b.Wait(ctx))
	}

	err := b.Wait(ctx)
	assert.ErrorIs(t, err, ErrDailyCapExceeded)
	assert.Zero(t, b.Remaining())
}

func TestBudget_CapRollsOverAtMidnightUTC(t *testing.T) {
	t.Parallel()

	b := NewBudget(1000, 1000, 2)

	now := time.Date(2026, time.March, 1, 23, 59, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	ctx := context.Background()

	require.NoError(t, b.Wait(ctx))
	require.NoError(t, b.Wait(ctx))
	require.ErrorIs(t, b.Wait(ctx), ErrDailyCapExceeded)

	now = now.Add(2 * time.Minute) // past midnight

	assert.Equal(t, 2, b.Remaining())
	assert.NoError(t, b.Wait(ctx))
}

func TestBudget_RateLimiterPacesRequests(t *testing.T) {
	t.Parallel()

	// 100 req/s, burst 1: three requests need ~20ms of pacing.
	b := NewBudget(100, 1, 100)

	start := time.Now()

	for range 3 {
		require.NoError(t, b.Wait(context.Background()))
	}

	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestBudget_WaitHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	b := NewBudget(0.001, 1, 100)

	ctx := context.Background()
	require.NoError(t, b.Wait(ctx)) // burst token

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	assert.Error(t, b.Wait(cancelled))
}

func TestProfile_ApplySetsBrowserHeaders(t *testing.T) {
	t.Parallel()

	profile := ChromeProfile()

	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	require.NoError(t, err)

	profile.Apply(req)

	assert.Contains(t, req.Header.Get("User-Agent"), "Chrome/")
	assert.Equal(t, "en-US,en;q=0.9", req.Header.Get("Accept-Language"))
	assert.Equal(t, "?0", req.Header.Get("Sec-Ch-Ua-Mobile"))
}

func TestProfile_ApplyPreservesCallerHeaders(t *testing.T) {
	t.Parallel()

	profile := FirefoxProfile()

	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom-agent")

	profile.Apply(req)

	assert.Equal(t, "custom-agent", req.Header.Get("User-Agent"))
	assert.Contains(t, req.Header.Get("User-Agent"), "custom")
}

func TestClient_GetOverPlainHTTP(t *testing.T) {
	t.Parallel()

	// Plain-HTTP fixture server: the utls path only engages on https.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Firefox")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Profile: FirefoxProfile()})

	code, body, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, code)
	assert.Equal(t, "short and stout", string(body))
}

func TestClient_BudgetRefusalShortCircuits(t *testing.T) {
	t.Parallel()

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		Profile: ChromeProfile(),
		Budget:  NewBudget(1000, 1000, 1),
	})

	ctx := context.Background()

	_, _, err := client.Get(ctx, srv.URL)
	require.NoError(t, err)

	_, _, err = client.Get(ctx, srv.URL)
	require.ErrorIs(t, err, ErrDailyCapExceeded)
	assert.Equal(t, 1, requests, "refused requests never reach the wire")
}
