package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/eventbus"
	"github.com/atelierlabs/studio-portal/pkg/snowflake"
)

// Dispatcher is the composite notify.Dispatcher. In-app notifications and
// queued emails are durable rows; realtime delivery goes through the event
// bus (SSE streams) and best-effort browser push.
type Dispatcher struct {
	db     *gorm.DB
	node   *snowflake.Node
	bus    *eventbus.Bus
	push   *WebPushSender
	logger *zap.Logger
}

var _ notify.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(db *gorm.DB, node *snowflake.Node, bus *eventbus.Bus, push *WebPushSender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:     db,
		node:   node,
		bus:    bus,
		push:   push,
		logger: logger.Named("dispatcher"),
	}
}

func (d *Dispatcher) CreateInAppNotification(ctx context.Context, userID int64, kind notify.Kind, event notify.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	model := NotificationModel{
		ID:        d.node.GenerateID(),
		UserID:    userID,
		Kind:      string(kind),
		ProjectID: event.ProjectID,
		PhaseKey:  string(event.PhaseKey),
		Payload:   string(payload),
		CreatedAt: time.Now().UTC(),
	}

	if err := d.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	d.logger.Debug("in_app_notification_created",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Int64("project_id", event.ProjectID),
	)
	return nil
}

func (d *Dispatcher) PushRealtimeEvent(ctx context.Context, userID int64, kind notify.Kind, event notify.Event) error {
	d.bus.Publish(userID, event)

	if d.push != nil {
		d.push.SendToUser(ctx, userID, event)
	}

	d.logger.Debug("realtime_event_pushed",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Int64("project_id", event.ProjectID),
	)
	return nil
}

func (d *Dispatcher) QueueEmail(ctx context.Context, templateKind string, recipient string, event notify.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	model := EmailQueueModel{
		ID:           d.node.GenerateID(),
		TemplateKind: templateKind,
		Recipient:    recipient,
		Payload:      string(payload),
		Status:       EmailPending,
	}

	if err := d.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("queue email: %w", err)
	}

	d.logger.Debug("email_queued",
		zap.String("template_kind", templateKind),
		zap.Int64("project_id", event.ProjectID),
	)
	return nil
}
