// Package state implements the durable work-item and enrichment stores
// backing batch execution: atomically written documents, per-property
// locks with expiry, and stale-lock recovery on load.
package state

import (
	"time"
)

// PhaseID identifies one of the seven ordered pipeline phases.
type PhaseID string

// Pipeline phases in execution order. P1_listing and P1_map run
// concurrently; all others are sequential.
const (
	PhaseCounty    PhaseID = "P0_county"
	PhaseCost      PhaseID = "P05_cost"
	PhaseListing   PhaseID = "P1_listing"
	PhaseMap       PhaseID = "P1_map"
	PhaseExterior  PhaseID = "P2A_exterior"
	PhaseInterior  PhaseID = "P2B_interior"
	PhaseSynthesis PhaseID = "P3_synthesis"
	PhaseReport    PhaseID = "P4_report"
)

// AllPhases returns the phases in declared execution order.
func AllPhases() []PhaseID {
	return []PhaseID{
		PhaseCounty, PhaseCost, PhaseListing, PhaseMap,
		PhaseExterior, PhaseInterior, PhaseSynthesis, PhaseReport,
	}
}

// Valid reports whether the phase is one of the declared constants.
func (p PhaseID) Valid() bool {
	for _, known := range AllPhases() {
		if p == known {
			return true
		}
	}

	return false
}

// Status is the lifecycle state of a phase within a work item.
type Status string

// Phase statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status never changes again.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusSkipped
}

// MaxRetries is the number of failures after which a phase is
// permanently skipped.
const MaxRetries = 3

// Lock records the current owner of a property work item.
type Lock struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Expired reports whether the lock is older than expiry at now.
func (l Lock) Expired(now time.Time, expiry time.Duration) bool {
	return now.Sub(l.AcquiredAt) > expiry
}

// WorkItem is the durable per-property record tracking phase status,
// retries, and ownership. Phase results are append-only: a complete
// phase never reverts.
type WorkItem struct {
	Address     string              `json:"address"`
	PhaseStatus map[PhaseID]Status  `json:"phase_status"`
	RetryCount  map[PhaseID]int     `json:"retry_count,omitempty"`
	Lock        *Lock               `json:"lock,omitempty"`
	LastCommit  string              `json:"last_commit,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	LastUpdated time.Time           `json:"last_updated"`
}

// NewWorkItem creates a work item with every phase pending.
func NewWorkItem(address string, now time.Time) *WorkItem {
	statuses := make(map[PhaseID]Status, len(AllPhases()))
	for _, phase := range AllPhases() {
		statuses[phase] = StatusPending
	}

	return &WorkItem{
		Address:     address,
		PhaseStatus: statuses,
		RetryCount:  make(map[PhaseID]int),
		StartedAt:   now,
		LastUpdated: now,
	}
}

// Status returns the recorded status for a phase, defaulting to pending.
func (w *WorkItem) Status(phase PhaseID) Status {
	s, ok := w.PhaseStatus[phase]
	if !ok {
		return StatusPending
	}

	return s
}

// Retries returns the failure count for a phase.
func (w *WorkItem) Retries(phase PhaseID) int {
	return w.RetryCount[phase]
}

// Exhausted reports whether the phase has failed MaxRetries times.
func (w *WorkItem) Exhausted(phase PhaseID) bool {
	return w.Retries(phase) >= MaxRetries
}

// FirstIncomplete returns the first phase in execution order whose
// status is neither complete nor skipped, or false when the item is done.
func (w *WorkItem) FirstIncomplete() (PhaseID, bool) {
	for _, phase := range AllPhases() {
		if !w.Status(phase).Terminal() {
			return phase, true
		}
	}

	return "", false
}

// Done reports whether the final report phase completed or was skipped.
func (w *WorkItem) Done() bool {
	_, pending := w.FirstIncomplete()

	return !pending
}
