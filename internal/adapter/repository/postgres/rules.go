package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/engine"
)

// RuleRepository implements engine.RuleRepository on postgres.
type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) ListEnabled(ctx context.Context) ([]engine.AutomationRule, error) {
	var models []AutomationRuleModel
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Find(&models).Error; err != nil {
		return nil, err
	}

	rules := make([]engine.AutomationRule, 0, len(models))
	for _, m := range models {
		rule := engine.AutomationRule{
			ID:          m.ID,
			ToPhase:     phase.Key(m.ToPhaseKey),
			AutoAdvance: m.AutoAdvance,
			StuckAfter:  time.Duration(m.StuckAfterH) * time.Hour,
			RemindAfter: time.Duration(m.RemindAfterH) * time.Hour,
			Enabled:     m.Enabled,
		}
		if m.FromPhaseKey != nil {
			from := phase.Key(*m.FromPhaseKey)
			rule.FromPhase = &from
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

var _ engine.RuleRepository = (*RuleRepository)(nil)
