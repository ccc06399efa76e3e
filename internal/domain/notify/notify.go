package notify

import (
	"context"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

// Kind classifies workflow events handed to the dispatcher.
type Kind string

const (
	KindAdvanced Kind = "advanced"
	KindStuck    Kind = "stuck"
	KindReminder Kind = "reminder"
)

// Event is what the workflow core emits on every transition and on
// stuck/reminder detection.
type Event struct {
	ProjectID int64          `json:"project_id,string"`
	Kind      Kind           `json:"kind"`
	PhaseKey  phase.Key      `json:"phase_key"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Dispatcher is the collaborator boundary the engine depends on. Calls are
// made after the triggering write is durable; each capability owns its own
// retry policy, the core never retries dispatch.
type Dispatcher interface {
	CreateInAppNotification(ctx context.Context, userID int64, kind Kind, event Event) error
	PushRealtimeEvent(ctx context.Context, userID int64, kind Kind, event Event) error
	QueueEmail(ctx context.Context, templateKind string, recipient string, event Event) error
}
