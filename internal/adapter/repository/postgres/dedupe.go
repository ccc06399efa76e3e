package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atelierlabs/studio-portal/internal/engine"
)

// DedupeRepository implements engine.DedupeStore on postgres.
type DedupeRepository struct {
	db *gorm.DB
}

func NewDedupeRepository(db *gorm.DB) *DedupeRepository {
	return &DedupeRepository{db: db}
}

func (r *DedupeRepository) LastSent(ctx context.Context, key string) (*time.Time, error) {
	var model DedupeModel
	if err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &model.LastSentAt, nil
}

// MarkSent upserts the timestamp, last-write-wins under concurrent writers.
func (r *DedupeRepository) MarkSent(ctx context.Context, key string, at time.Time) error {
	model := DedupeModel{Key: key, LastSentAt: at}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.Assignments(map[string]any{"last_sent_at": at}),
		}).
		Create(&model).Error
}

var _ engine.DedupeStore = (*DedupeRepository)(nil)
