package state

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

const (
	testAddress = "123 MAIN ST PHOENIX AZ 85001"
	testOwner   = "worker-1"
	otherOwner  = "worker-2"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "work_items.json"), filepath.Join(dir, "enrichment.json"), opts...)
	require.NoError(t, err)

	return s
}

func TestStore_AcquireReleaseCycle(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	assert.True(t, s.Acquire(testAddress, testOwner))
	assert.False(t, s.Acquire(testAddress, otherOwner), "live lock excludes other owners")
	assert.True(t, s.Acquire(testAddress, testOwner), "re-acquire by same owner")

	s.Release(testAddress, testOwner)
	assert.True(t, s.Acquire(testAddress, otherOwner))
}

func TestStore_ExpiredLockReclaimable(t *testing.T) {
	t.Parallel()

	current := time.Now()
	clock := func() time.Time { return current }

	s := openTestStore(t, WithLockExpiry(time.Minute), WithClock(clock))

	require.True(t, s.Acquire(testAddress, testOwner))

	current = current.Add(2 * time.Minute)

	assert.True(t, s.Acquire(testAddress, otherOwner), "expired lock may be reclaimed")
}

func TestStore_SetPhaseStatusRequiresLock(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	s.EnsureItem(testAddress)

	err := s.SetPhaseStatus(testAddress, testOwner, PhaseCounty, StatusInProgress)
	assert.ErrorIs(t, err, ErrNotOwner)

	require.True(t, s.Acquire(testAddress, testOwner))
	require.NoError(t, s.SetPhaseStatus(testAddress, testOwner, PhaseCounty, StatusInProgress))

	err = s.SetPhaseStatus(testAddress, otherOwner, PhaseCounty, StatusComplete)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestStore_CompleteNeverReverts(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	require.True(t, s.Acquire(testAddress, testOwner))
	require.NoError(t, s.SetPhaseStatus(testAddress, testOwner, PhaseCounty, StatusComplete))

	err := s.SetPhaseStatus(testAddress, testOwner, PhaseCounty, StatusPending)
	assert.ErrorIs(t, err, ErrCheckpointRegression)

	item, ok := s.Item(testAddress)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, item.Status(PhaseCounty))
}

func TestStore_PersistAndReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	workPath := filepath.Join(dir, "work_items.json")
	enrichPath := filepath.Join(dir, "enrichment.json")

	s, err := Open(workPath, enrichPath)
	require.NoError(t, err)

	require.True(t, s.Acquire(testAddress, testOwner))
	require.NoError(t, s.SetPhaseStatus(testAddress, testOwner, PhaseCounty, StatusComplete))
	s.Release(testAddress, testOwner)

	beds := 4
	s.UpdateRecord(testAddress, func(rec *property.Record) {
		rec.Beds = &beds
	})

	require.NoError(t, s.Flush())

	reloaded, err := Open(workPath, enrichPath)
	require.NoError(t, err)

	item, ok := reloaded.Item(testAddress)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, item.Status(PhaseCounty))

	rec, ok := reloaded.Record(testAddress)
	require.True(t, ok)
	require.NotNil(t, rec.Beds)
	assert.Equal(t, 4, *rec.Beds)
}

func TestStore_StaleInProgressResetOnLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	workPath := filepath.Join(dir, "work_items.json")
	enrichPath := filepath.Join(dir, "enrichment.json")

	current := time.Now()
	clock := func() time.Time { return current }

	s, err := Open(workPath, enrichPath, WithClock(clock), WithLockExpiry(time.Minute))
	require.NoError(t, err)

	require.True(t, s.Acquire(testAddress, testOwner))
	require.NoError(t, s.SetPhaseStatus(testAddress, testOwner, PhaseCounty, StatusComplete))
	require.NoError(t, s.SetPhaseStatus(testAddress, testOwner, PhaseCost, StatusInProgress))
	require.NoError(t, s.SaveWork())

	// Simulate a crashed worker: reload well past lock expiry.
	later := current.Add(time.Hour)

	reloaded, err := Open(workPath, enrichPath,
		WithClock(func() time.Time { return later }), WithLockExpiry(time.Minute))
	require.NoError(t, err)

	item, ok := reloaded.Item(testAddress)
	require.True(t, ok)
	assert.Nil(t, item.Lock)
	assert.Equal(t, StatusComplete, item.Status(PhaseCounty), "complete phases survive reset")
	assert.Equal(t, StatusPending, item.Status(PhaseCost), "orphaned in-progress resets to pending")
}

func TestStore_CorruptBothFilesIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	workPath := filepath.Join(dir, "work_items.json")

	require.NoError(t, os.WriteFile(workPath, []byte("garbage"), 0o600))
	require.NoError(t, os.WriteFile(workPath+".bak", []byte("more garbage"), 0o600))

	_, err := Open(workPath, filepath.Join(dir, "enrichment.json"))
	require.Error(t, err)

	var corrupt *CorruptStateError

	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, workPath, corrupt.Path)
}

func TestStore_LegacyEnrichmentSchemaRefused(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	enrichPath := filepath.Join(dir, "enrichment.json")

	legacy := `{"schema_version":1,"records":{"A":{"schema_version":1,"address":"A"}}}`
	require.NoError(t, os.WriteFile(enrichPath, []byte(legacy), 0o600))

	_, err := Open(filepath.Join(dir, "work_items.json"), enrichPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, property.ErrLegacySchema)
}

func TestStore_RetryExhaustion(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	item := s.EnsureItem(testAddress)

	for i := 1; i <= MaxRetries; i++ {
		assert.Equal(t, i, s.IncrementRetry(testAddress, PhaseListing))
	}

	assert.True(t, item.Exhausted(PhaseListing))
	assert.False(t, item.Exhausted(PhaseCounty))
}

func TestWorkItem_FirstIncomplete(t *testing.T) {
	t.Parallel()

	item := NewWorkItem(testAddress, time.Now())

	phase, ok := item.FirstIncomplete()
	require.True(t, ok)
	assert.Equal(t, PhaseCounty, phase)

	item.PhaseStatus[PhaseCounty] = StatusComplete
	item.PhaseStatus[PhaseCost] = StatusSkipped

	phase, ok = item.FirstIncomplete()
	require.True(t, ok)
	assert.Equal(t, PhaseListing, phase)

	for _, p := range AllPhases() {
		item.PhaseStatus[p] = StatusComplete
	}

	assert.True(t, item.Done())
}

func TestStore_GuardedPhaseAccessors(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	assert.Equal(t, StatusPending, s.PhaseStatus(testAddress, PhaseCounty), "unknown item is pending")
	assert.Zero(t, s.Retries(testAddress, PhaseCounty))
	assert.False(t, s.Exhausted(testAddress, PhaseCounty))

	require.True(t, s.Acquire(testAddress, testOwner))
	require.NoError(t, s.SetPhaseStatus(testAddress, testOwner, PhaseCounty, StatusComplete))

	assert.Equal(t, StatusComplete, s.PhaseStatus(testAddress, PhaseCounty))

	for range MaxRetries {
		s.IncrementRetry(testAddress, PhaseListing)
	}

	assert.Equal(t, MaxRetries, s.Retries(testAddress, PhaseListing))
	assert.True(t, s.Exhausted(testAddress, PhaseListing))
}

// Phase readers and writers overlap when the listing/map pair runs
// concurrently; the accessors must serialize against SetPhaseStatus and
// IncrementRetry on the same item.
func TestStore_ConcurrentStatusReadsDuringWrites(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	require.True(t, s.Acquire(testAddress, testOwner))

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		for range 200 {
			_ = s.SetPhaseStatus(testAddress, testOwner, PhaseListing, StatusInProgress)
			s.IncrementRetry(testAddress, PhaseMap)
		}
	}()

	go func() {
		defer wg.Done()

		for range 200 {
			_ = s.PhaseStatus(testAddress, PhaseMap)
			_ = s.Retries(testAddress, PhaseMap)
			_ = s.Exhausted(testAddress, PhaseListing)
		}
	}()

	wg.Wait()
}
