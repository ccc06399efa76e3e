package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
)

// Processor polls the outbox and hands committed transition events to the
// Notification Dispatcher. A dispatch failure here never touches workflow
// state: the event row is retried with backoff and the failure is logged
// loudly, the transition itself stays committed.
type Processor struct {
	db           *gorm.DB
	projects     project.Repository
	dispatcher   notify.Dispatcher
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
}

func NewProcessor(db *gorm.DB, projects project.Repository, dispatcher notify.Dispatcher, logger *zap.Logger) *Processor {
	return &Processor{
		db:           db,
		projects:     projects,
		dispatcher:   dispatcher,
		logger:       logger.Named("outbox"),
		pollInterval: 5 * time.Second,
		batchSize:    20,
		maxAttempts:  10,
	}
}

func (p *Processor) Run(ctx context.Context) {
	if err := p.ProcessBatch(ctx); err != nil {
		p.logger.Error("outbox_initial_poll_failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("outbox_poll_failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch claims and dispatches one batch of pending events.
func (p *Processor) ProcessBatch(ctx context.Context) error {
	events, err := p.fetchAndLockPending(ctx)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := p.dispatchEvent(ctx, event); err != nil {
			p.logger.Error("outbox_event_dispatch_failed",
				zap.Error(err),
				zap.Int64("event_id", event.ID),
				zap.Int64("project_id", event.ProjectID),
				zap.String("kind", string(event.Kind)),
			)
		}
	}
	return nil
}

func (p *Processor) fetchAndLockPending(ctx context.Context) ([]Event, error) {
	var events []Event
	now := time.Now().UTC()

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(
			`SELECT * FROM outbox_events
			 WHERE status IN (?, ?)
			   AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
			   AND attempts < ?
			 ORDER BY created_at ASC
			 LIMIT ?
			 FOR UPDATE SKIP LOCKED`,
			StatusPending,
			StatusFailed,
			now,
			p.maxAttempts,
			p.batchSize,
		).Scan(&events).Error; err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(events))
		for i := range events {
			ids = append(ids, events[i].ID)
			events[i].Attempts++
		}

		return tx.Model(&Event{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     StatusProcessing,
				"attempts":   gorm.Expr("attempts + 1"),
				"locked_at":  now,
				"updated_at": now,
				"last_error": nil,
			}).Error
	})

	return events, err
}

func (p *Processor) dispatchEvent(ctx context.Context, event Event) error {
	proj, err := p.projects.FindByID(ctx, event.ProjectID)
	if err != nil {
		return p.markEventFailed(ctx, event, fmt.Errorf("load project: %w", err))
	}
	if proj == nil {
		return p.markEventFailed(ctx, event, tracking.ErrProjectNotFound)
	}

	payload := map[string]any{"reason": event.Reason}
	if event.Terminal {
		payload["terminal"] = true
	}
	notice := notify.Event{
		ProjectID: event.ProjectID,
		Kind:      event.Kind,
		PhaseKey:  event.PhaseKey,
		Payload:   payload,
	}

	if err := p.dispatcher.CreateInAppNotification(ctx, proj.ClientUserID, event.Kind, notice); err != nil {
		return p.markEventFailed(ctx, event, fmt.Errorf("in-app notification: %w", err))
	}
	if err := p.dispatcher.PushRealtimeEvent(ctx, proj.ClientUserID, event.Kind, notice); err != nil {
		return p.markEventFailed(ctx, event, fmt.Errorf("realtime push: %w", err))
	}
	if err := p.dispatcher.QueueEmail(ctx, string(event.Kind), proj.ClientEmail, notice); err != nil {
		return p.markEventFailed(ctx, event, fmt.Errorf("queue email: %w", err))
	}

	return p.markEventCompleted(ctx, event.ID)
}

func (p *Processor) markEventCompleted(ctx context.Context, eventID int64) error {
	now := time.Now().UTC()
	return p.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND status = ?", eventID, StatusProcessing).
		Updates(map[string]any{
			"status":       StatusCompleted,
			"processed_at": now,
			"updated_at":   now,
			"last_error":   nil,
		}).Error
}

func (p *Processor) markEventFailed(ctx context.Context, event Event, err error) error {
	if err == nil {
		return nil
	}

	now := time.Now().UTC()
	nextAttempt := now.Add(backoffDuration(event.Attempts))

	updateErr := p.db.WithContext(ctx).Model(&Event{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"status":          StatusFailed,
			"last_error":      err.Error(),
			"next_attempt_at": nextAttempt,
			"updated_at":      now,
		}).Error
	if updateErr != nil {
		return fmt.Errorf("mark event failed: %w (original error: %v)", updateErr, err)
	}
	return err
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return 10 * time.Second
	}

	maxBackoff := 5 * time.Minute
	base := 10 * time.Second
	shift := attempt - 1
	if shift > 6 {
		shift = 6
	}

	d := base * time.Duration(1<<shift)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
