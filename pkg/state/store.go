package state

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/persist"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// DefaultLockExpiry is how long a lock may be held before any reader may
// reclaim it.
const DefaultLockExpiry = 30 * time.Minute

// workItemsSchemaVersion guards the shape of the work-items document.
const workItemsSchemaVersion = 1

// Sentinel errors for store operations.
var (
	// ErrNotOwner is returned when a writer without the lock attempts a
	// phase-status mutation.
	ErrNotOwner = errors.New("caller does not hold the property lock")

	// ErrCheckpointRegression is returned on an attempt to move a
	// complete phase back to an earlier status.
	ErrCheckpointRegression = errors.New("complete phase status never reverts")
)

// CorruptStateError marks unrecoverable state corruption. It is fatal
// for the whole batch: the orchestrator must refuse to proceed for any
// property.
type CorruptStateError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state at %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying persistence error.
func (e *CorruptStateError) Unwrap() error { return e.Err }

// workDocument is the on-disk shape of the work-items file.
type workDocument struct {
	SchemaVersion int                  `json:"schema_version"`
	Items         map[string]*WorkItem `json:"items"`
}

// enrichmentDocument is the on-disk shape of the enrichment file:
// address-keyed map of records. The shape is versioned; changing it
// requires a schema-version bump.
type enrichmentDocument struct {
	SchemaVersion int                         `json:"schema_version"`
	Records       map[string]*property.Record `json:"records"`
}

// Store is the durable state backing one batch: a work-items document
// and an enrichment document, both written through the atomic
// temp-then-rename path. A single in-process mutex serializes all
// read-modify-write cycles; multi-process use is supported only across
// disjoint property sets.
type Store struct {
	mu sync.Mutex

	workPath   string
	enrichPath string
	codec      persist.Codec
	lockExpiry time.Duration
	now        func() time.Time

	items   map[string]*WorkItem
	records map[string]*property.Record
}

// Option configures a Store.
type Option func(*Store)

// WithLockExpiry overrides the default lock expiry.
func WithLockExpiry(expiry time.Duration) Option {
	return func(s *Store) { s.lockExpiry = expiry }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads both state files, resetting stale in-progress items whose
// lock has expired. Missing files start empty; corruption that the .bak
// fallback cannot repair returns *CorruptStateError.
func Open(workPath, enrichPath string, opts ...Option) (*Store, error) {
	s := &Store{
		workPath:   workPath,
		enrichPath: enrichPath,
		codec:      persist.NewJSONCodec(),
		lockExpiry: DefaultLockExpiry,
		now:        time.Now,
		items:      make(map[string]*WorkItem),
		records:    make(map[string]*property.Record),
	}

	for _, opt := range opts {
		opt(s)
	}

	err := s.loadWork()
	if err != nil {
		return nil, err
	}

	err = s.loadEnrichment()
	if err != nil {
		return nil, err
	}

	s.resetStaleItems()

	return s, nil
}

func (s *Store) loadWork() error {
	var doc workDocument

	err := persist.LoadWithFallback(s.workPath, s.codec, &doc)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return &CorruptStateError{Path: s.workPath, Err: err}
	}

	if doc.Items != nil {
		s.items = doc.Items
	}

	return nil
}

func (s *Store) loadEnrichment() error {
	var doc enrichmentDocument

	err := persist.LoadWithFallback(s.enrichPath, s.codec, &doc)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return &CorruptStateError{Path: s.enrichPath, Err: err}
	}

	for addr, rec := range doc.Records {
		schemaErr := rec.CheckSchema()
		if schemaErr != nil {
			return &CorruptStateError{Path: s.enrichPath, Err: schemaErr}
		}

		s.records[addr] = rec
	}

	return nil
}

// resetStaleItems releases expired locks and moves orphaned in-progress
// phases back to pending so a crashed run can be resumed.
func (s *Store) resetStaleItems() {
	now := s.now()

	for _, item := range s.items {
		if item.Lock == nil || !item.Lock.Expired(now, s.lockExpiry) {
			continue
		}

		item.Lock = nil

		for phase, status := range item.PhaseStatus {
			if status == StatusInProgress {
				item.PhaseStatus[phase] = StatusPending
			}
		}

		item.LastUpdated = now
	}
}

// EnsureItem returns the work item for address, creating it on first
// encounter.
func (s *Store) EnsureItem(address string) *WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensureItemLocked(address)
}

func (s *Store) ensureItemLocked(address string) *WorkItem {
	item, ok := s.items[address]
	if !ok {
		item = NewWorkItem(address, s.now())
		s.items[address] = item
	}

	return item
}

// Item returns the work item for address, or false if none exists.
func (s *Store) Item(address string) (*WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[address]

	return item, ok
}

// Items returns all known addresses.
func (s *Store) Items() []*WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*WorkItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}

	return items
}

// PhaseStatus returns the recorded status for one phase under the store
// lock. Unknown items report pending. Concurrent phase runners must read
// through this accessor rather than the bare WorkItem, whose maps are
// written by SetPhaseStatus and IncrementRetry.
func (s *Store) PhaseStatus(address string, phase PhaseID) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[address]
	if !ok {
		return StatusPending
	}

	return item.Status(phase)
}

// Retries returns the failure count for one phase under the store lock.
func (s *Store) Retries(address string, phase PhaseID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[address]
	if !ok {
		return 0
	}

	return item.Retries(phase)
}

// Exhausted reports whether the phase has failed MaxRetries times,
// under the store lock.
func (s *Store) Exhausted(address string, phase PhaseID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[address]
	if !ok {
		return false
	}

	return item.Exhausted(phase)
}

// Acquire takes the property lock for owner. It succeeds when no lock
// exists, the existing lock belongs to owner, or the existing lock has
// expired.
func (s *Store) Acquire(address, owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.ensureItemLocked(address)
	now := s.now()

	if item.Lock != nil && item.Lock.Owner != owner && !item.Lock.Expired(now, s.lockExpiry) {
		return false
	}

	item.Lock = &Lock{Owner: owner, AcquiredAt: now}
	item.LastUpdated = now

	return true
}

// Release clears the lock if held by owner.
func (s *Store) Release(address, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[address]
	if !ok || item.Lock == nil || item.Lock.Owner != owner {
		return
	}

	item.Lock = nil
	item.LastUpdated = s.now()
}

// SetPhaseStatus records a phase transition. Only the lock owner may
// write, and a complete phase never reverts.
func (s *Store) SetPhaseStatus(address, owner string, phase PhaseID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[address]
	if !ok || item.Lock == nil || item.Lock.Owner != owner {
		return fmt.Errorf("%w: %s/%s", ErrNotOwner, address, phase)
	}

	if item.Status(phase) == StatusComplete && status != StatusComplete {
		return fmt.Errorf("%w: %s/%s -> %s", ErrCheckpointRegression, address, phase, status)
	}

	item.PhaseStatus[phase] = status
	item.LastCommit = string(phase)
	item.LastUpdated = s.now()

	return nil
}

// IncrementRetry bumps the failure counter for a phase and returns the
// new count.
func (s *Store) IncrementRetry(address string, phase PhaseID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.ensureItemLocked(address)
	if item.RetryCount == nil {
		item.RetryCount = make(map[PhaseID]int)
	}

	item.RetryCount[phase]++
	item.LastUpdated = s.now()

	return item.RetryCount[phase]
}

// EnsureRecord returns the enrichment record for address, creating it on
// first encounter.
func (s *Store) EnsureRecord(address string) *property.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[address]
	if !ok {
		rec = property.NewRecord(address)
		s.records[address] = rec
	}

	return rec
}

// Record returns the enrichment record for address, or false if none.
func (s *Store) Record(address string) (*property.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[address]

	return rec, ok
}

// UpdateRecord applies fn to the record for address under the store
// mutex. Enrichment mutation must go through here so concurrent workers
// never race on the document.
func (s *Store) UpdateRecord(address string, fn func(*property.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[address]
	if !ok {
		rec = property.NewRecord(address)
		s.records[address] = rec
	}

	fn(rec)
}

// SaveWork persists the work-items document atomically.
func (s *Store) SaveWork() error {
	s.mu.Lock()
	doc := workDocument{SchemaVersion: workItemsSchemaVersion, Items: s.items}
	err := persist.SaveAtomic(s.workPath, s.codec, &doc)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("save work items: %w", err)
	}

	return nil
}

// SaveEnrichment persists the enrichment document atomically.
func (s *Store) SaveEnrichment() error {
	s.mu.Lock()
	doc := enrichmentDocument{SchemaVersion: property.CurrentSchemaVersion, Records: s.records}
	err := persist.SaveAtomic(s.enrichPath, s.codec, &doc)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("save enrichment: %w", err)
	}

	return nil
}

// Flush persists both documents.
func (s *Store) Flush() error {
	err := s.SaveWork()
	if err != nil {
		return err
	}

	return s.SaveEnrichment()
}
