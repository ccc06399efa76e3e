package tracking

import (
	"errors"
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

var (
	ErrProjectNotFound = errors.New("project not found")
)

// Tracking is the per-project workflow record. Exactly one non-completed
// row exists per active project.
// It contains no database tags or infrastructure details.
type Tracking struct {
	ID             int64
	ProjectID      int64
	CurrentPhase   phase.Key
	PhaseStartedAt time.Time
	Completed      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTracking creates a tracking record entering the workflow at entry.
func NewTracking(projectID int64, entry phase.Key) *Tracking {
	now := time.Now().UTC()
	return &Tracking{
		ProjectID:      projectID,
		CurrentPhase:   entry,
		PhaseStartedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AdvanceTo moves the record into the next phase. PhaseStartedAt is
// monotonically non-decreasing across the project's lifetime.
func (t *Tracking) AdvanceTo(next phase.Key, now time.Time) {
	t.CurrentPhase = next
	t.PhaseStartedAt = now
	t.UpdatedAt = now
}

// MarkCompleted flips the whole-project terminal flag.
func (t *Tracking) MarkCompleted(now time.Time) {
	t.Completed = true
	t.UpdatedAt = now
}

// HistoryEntry is one append-only audit record written on every transition.
type HistoryEntry struct {
	ID         int64
	ProjectID  int64
	PhaseKey   phase.Key
	Reason     string
	ActorKind  ActorKind
	ActorID    int64
	OccurredAt time.Time
}

// AdvanceResult reports the outcome of an advance call. AlreadyComplete is
// an idempotent no-op outcome, not an error.
type AdvanceResult struct {
	NewPhase        phase.Key
	Terminal        bool
	AlreadyComplete bool
}
