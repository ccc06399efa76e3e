package action

import (
	"context"
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

// Status is the per-project completion record for one required action. Rows
// are created and flipped to completed by the subsystem owning the action
// (forms, payments, signatures); the workflow core only reads them.
type Status struct {
	ProjectID   int64
	ActionID    phase.ActionID
	CompletedAt *time.Time
}

func (s Status) Completed() bool {
	return s.CompletedAt != nil
}

// StatusReader is the read-only port the Requirement Gate aggregates over.
type StatusReader interface {
	// ListStatuses returns the status rows for the given actions. Actions
	// with no row yet are simply absent from the result.
	ListStatuses(ctx context.Context, projectID int64, actionIDs []phase.ActionID) ([]Status, error)
}

// StatusWriter is the port action-owning subsystems use to report
// completions through the portal API (payment webhook, form submit).
type StatusWriter interface {
	// MarkCompleted upserts a completed status row. Idempotent: reporting an
	// already-completed action keeps the earliest completion time.
	MarkCompleted(ctx context.Context, projectID int64, actionID phase.ActionID, at time.Time) error
}
