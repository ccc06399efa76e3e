package outbox

import (
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

type EventStatus string

const (
	StatusPending    EventStatus = "pending"
	StatusProcessing EventStatus = "processing"
	StatusCompleted  EventStatus = "completed"
	StatusFailed     EventStatus = "failed"
)

// Event is a durable outbox entry for a workflow transition. It is written
// in the same transaction as the phase-tracking update, so notification
// dispatch only ever happens after the transition is durable.
type Event struct {
	ID            int64       `gorm:"primaryKey"`
	Kind          notify.Kind `gorm:"type:varchar(50);not null"`
	ProjectID     int64       `gorm:"not null;index"`
	PhaseKey      phase.Key   `gorm:"type:varchar(20);not null"`
	Terminal      bool        `gorm:"not null;default:false"`
	Reason        string      `gorm:"type:text"`
	Status        EventStatus `gorm:"type:varchar(20);not null"`
	Attempts      int         `gorm:"not null;default:0"`
	LastError     string      `gorm:"type:text"`
	LockedAt      *time.Time
	NextAttemptAt *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Event) TableName() string {
	return "outbox_events"
}
