package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierlabs/studio-portal/internal/domain/action"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

// ActionStatusRepository implements both sides of the action status port:
// reads for the Requirement Gate, writes for the portal entry points that
// relay completions from the owning subsystems.
type ActionStatusRepository struct {
	db *gorm.DB
}

func NewActionStatusRepository(db *gorm.DB) *ActionStatusRepository {
	return &ActionStatusRepository{db: db}
}

func (r *ActionStatusRepository) ListStatuses(ctx context.Context, projectID int64, actionIDs []phase.ActionID) ([]action.Status, error) {
	if len(actionIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(actionIDs))
	for _, id := range actionIDs {
		ids = append(ids, string(id))
	}

	var models []ActionStatusModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND action_id IN ?", projectID, ids).
		Find(&models).Error; err != nil {
		return nil, err
	}

	statuses := make([]action.Status, 0, len(models))
	for _, m := range models {
		statuses = append(statuses, action.Status{
			ProjectID:   m.ProjectID,
			ActionID:    phase.ActionID(m.ActionID),
			CompletedAt: m.CompletedAt,
		})
	}
	return statuses, nil
}

// MarkCompleted upserts a completed row. A repeated report keeps the
// earliest completion time, so webhook retries stay idempotent.
func (r *ActionStatusRepository) MarkCompleted(ctx context.Context, projectID int64, actionID phase.ActionID, at time.Time) error {
	model := ActionStatusModel{
		ProjectID:   projectID,
		ActionID:    string(actionID),
		CompletedAt: &at,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "project_id"}, {Name: "action_id"}},
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: "action_statuses", Name: "completed_at"}, Value: nil},
			}},
			DoUpdates: clause.Assignments(map[string]any{
				"completed_at": at,
				"updated_at":   at,
			}),
		}).
		Create(&model).Error
}

var (
	_ action.StatusReader = (*ActionStatusRepository)(nil)
	_ action.StatusWriter = (*ActionStatusRepository)(nil)
)
