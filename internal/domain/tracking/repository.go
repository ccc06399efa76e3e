package tracking

import (
	"context"
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

// AdvanceParams carries everything one durable transition writes: the
// conditional phase update, its audit entry, and the advancement event.
type AdvanceParams struct {
	ProjectID int64
	From      phase.Key
	To        phase.Key
	Terminal  bool
	At        time.Time
	Reason    string
	Actor     Actor
}

// Repository defines the persistence port for Tracking records.
type Repository interface {
	// FindByProjectID retrieves the tracking row for a project, or nil when
	// the project has never entered the workflow.
	FindByProjectID(ctx context.Context, projectID int64) (*Tracking, error)

	// ListActive retrieves non-completed tracking rows, oldest phase entry
	// first, bounded by limit.
	ListActive(ctx context.Context, limit int) ([]*Tracking, error)

	// Create inserts a new tracking row.
	Create(ctx context.Context, t *Tracking) error

	// AdvanceFrom atomically moves a project out of the From phase. The
	// update is conditional on the row still being in From and not
	// completed; it returns false when a concurrent writer got there first.
	// The history entry and the outbox event for the transition are written
	// in the same transaction as the phase update.
	AdvanceFrom(ctx context.Context, params AdvanceParams) (bool, error)
}

// HistoryReader exposes the append-only audit trail.
type HistoryReader interface {
	// History returns a project's transition entries, newest first, bounded
	// by limit when positive.
	History(ctx context.Context, projectID int64, limit int) ([]HistoryEntry, error)
}
