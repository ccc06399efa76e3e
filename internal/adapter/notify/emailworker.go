package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atelierlabs/studio-portal/pkg/mailclient"
)

// EmailWorker drains the email queue into the mail relay. Queue rows are the
// durability boundary: a relay outage leaves rows pending and they are
// retried on the next poll. The queue row id doubles as the relay
// idempotency key, so re-sending after a crash is safe.
type EmailWorker struct {
	db           *gorm.DB
	mail         *mailclient.Client
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
}

func NewEmailWorker(db *gorm.DB, mail *mailclient.Client, logger *zap.Logger) *EmailWorker {
	return &EmailWorker{
		db:           db,
		mail:         mail,
		logger:       logger.Named("email_worker"),
		pollInterval: 15 * time.Second,
		batchSize:    20,
		maxAttempts:  5,
	}
}

func (w *EmailWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessBatch(ctx); err != nil {
				w.logger.Error("email_poll_failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch claims one batch of pending emails and posts them to the relay.
func (w *EmailWorker) ProcessBatch(ctx context.Context) error {
	emails, err := w.claimPending(ctx)
	if err != nil {
		return err
	}

	for _, email := range emails {
		w.send(ctx, email)
	}
	return nil
}

func (w *EmailWorker) claimPending(ctx context.Context) ([]EmailQueueModel, error) {
	var emails []EmailQueueModel

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Raw(
			`SELECT * FROM email_queue
			 WHERE status = ?
			   AND attempts < ?
			 ORDER BY created_at ASC
			 LIMIT ?
			 FOR UPDATE SKIP LOCKED`,
			EmailPending,
			w.maxAttempts,
			w.batchSize,
		).Scan(&emails).Error; err != nil {
			return err
		}

		if len(emails) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(emails))
		for i := range emails {
			ids = append(ids, emails[i].ID)
			emails[i].Attempts++
		}

		return tx.Model(&EmailQueueModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": time.Now().UTC(),
			}).Error
	})

	return emails, err
}

func (w *EmailWorker) send(ctx context.Context, email EmailQueueModel) {
	var payload map[string]any
	if email.Payload != "" {
		if err := json.Unmarshal([]byte(email.Payload), &payload); err != nil {
			w.markFailed(ctx, email, "payload decode: "+err.Error(), true)
			return
		}
	}

	msg := mailclient.Message{
		TemplateKind: email.TemplateKind,
		Recipient:    email.Recipient,
		Payload:      payload,
	}

	if err := w.mail.Send(ctx, strconv.FormatInt(email.ID, 10), msg); err != nil {
		w.logger.Warn("email_send_failed",
			zap.Error(err),
			zap.Int64("email_id", email.ID),
			zap.String("template_kind", email.TemplateKind),
		)
		w.markFailed(ctx, email, err.Error(), email.Attempts >= w.maxAttempts)
		return
	}

	now := time.Now().UTC()
	if err := w.db.WithContext(ctx).Model(&EmailQueueModel{}).
		Where("id = ?", email.ID).
		Updates(map[string]any{
			"status":     EmailSent,
			"sent_at":    now,
			"updated_at": now,
			"last_error": nil,
		}).Error; err != nil {
		w.logger.Error("email_mark_sent_failed", zap.Error(err), zap.Int64("email_id", email.ID))
		return
	}

	w.logger.Info("email_sent",
		zap.Int64("email_id", email.ID),
		zap.String("template_kind", email.TemplateKind),
	)
}

func (w *EmailWorker) markFailed(ctx context.Context, email EmailQueueModel, cause string, terminal bool) {
	status := EmailPending
	if terminal {
		status = EmailFailed
	}

	if err := w.db.WithContext(ctx).Model(&EmailQueueModel{}).
		Where("id = ?", email.ID).
		Updates(map[string]any{
			"status":     status,
			"last_error": cause,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
		w.logger.Error("email_mark_failed_failed", zap.Error(err), zap.Int64("email_id", email.ID))
	}
}
