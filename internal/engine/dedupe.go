package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

// DedupeKey builds the composite key a notice is suppressed under.
func DedupeKey(kind notify.Kind, projectID int64, key phase.Key) string {
	return fmt.Sprintf("%s:%d:%s", kind, projectID, key)
}

// DedupeStore records when a keyed notice was last sent. MarkSent must be an
// idempotent upsert under concurrent writers; last-write-wins on the
// timestamp is acceptable, racing workers over-notifying within one tick is
// tolerated rather than locked out.
type DedupeStore interface {
	LastSent(ctx context.Context, key string) (*time.Time, error)
	MarkSent(ctx context.Context, key string, at time.Time) error
}
