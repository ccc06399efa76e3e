package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/internal/outbox"
	"github.com/atelierlabs/studio-portal/pkg/snowflake"
)

// TrackingRepository implements tracking.Repository on postgres.
type TrackingRepository struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewTrackingRepository(db *gorm.DB, node *snowflake.Node) *TrackingRepository {
	return &TrackingRepository{db: db, snowflake: node}
}

func (r *TrackingRepository) FindByProjectID(ctx context.Context, projectID int64) (*tracking.Tracking, error) {
	var model TrackingModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return trackingToDomain(model), nil
}

func (r *TrackingRepository) ListActive(ctx context.Context, limit int) ([]*tracking.Tracking, error) {
	query := r.db.WithContext(ctx).
		Where("is_completed = ?", false).
		Order("phase_started_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []TrackingModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]*tracking.Tracking, 0, len(models))
	for _, model := range models {
		items = append(items, trackingToDomain(model))
	}
	return items, nil
}

func (r *TrackingRepository) Create(ctx context.Context, t *tracking.Tracking) error {
	model := trackingToModel(t)
	if model.ID == 0 {
		model.ID = r.snowflake.GenerateID()
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	t.ID = model.ID
	return nil
}

// AdvanceFrom serializes concurrent advances with a conditional update on
// the source phase: only one writer can move the row out of From. The
// history entry and the advancement outbox event commit in the same
// transaction, so dispatch can never observe an uncommitted transition.
func (r *TrackingRepository) AdvanceFrom(ctx context.Context, params tracking.AdvanceParams) (bool, error) {
	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"current_phase_key": string(params.To),
			"updated_at":        params.At,
		}
		if params.Terminal {
			updates["is_completed"] = true
		} else {
			updates["phase_started_at"] = params.At
		}

		result := tx.Model(&TrackingModel{}).
			Where("project_id = ? AND current_phase_key = ? AND is_completed = ?",
				params.ProjectID, string(params.From), false).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		won = true

		entry := HistoryModel{
			ID:         r.snowflake.GenerateID(),
			ProjectID:  params.ProjectID,
			PhaseKey:   string(params.To),
			Reason:     params.Reason,
			ActorKind:  string(params.Actor.Kind),
			ActorID:    params.Actor.UserID,
			OccurredAt: params.At,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		event := outbox.Event{
			ID:        r.snowflake.GenerateID(),
			Kind:      notify.KindAdvanced,
			ProjectID: params.ProjectID,
			PhaseKey:  params.To,
			Terminal:  params.Terminal,
			Reason:    params.Reason,
			Status:    outbox.StatusPending,
			CreatedAt: params.At,
			UpdatedAt: params.At,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// History returns the audit trail for a project, newest first.
func (r *TrackingRepository) History(ctx context.Context, projectID int64, limit int) ([]tracking.HistoryEntry, error) {
	query := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("occurred_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []HistoryModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]tracking.HistoryEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, tracking.HistoryEntry{
			ID:         m.ID,
			ProjectID:  m.ProjectID,
			PhaseKey:   phase.Key(m.PhaseKey),
			Reason:     m.Reason,
			ActorKind:  tracking.ActorKind(m.ActorKind),
			ActorID:    m.ActorID,
			OccurredAt: m.OccurredAt,
		})
	}
	return entries, nil
}

var _ tracking.Repository = (*TrackingRepository)(nil)
