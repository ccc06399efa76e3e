package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

// CatalogRepository implements phase.CatalogRepository on postgres.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListPhases(ctx context.Context) ([]phase.Definition, error) {
	var phases []PhaseDefinitionModel
	if err := r.db.WithContext(ctx).Order("sort_order asc").Find(&phases).Error; err != nil {
		return nil, err
	}

	var actions []RequiredActionModel
	if err := r.db.WithContext(ctx).Find(&actions).Error; err != nil {
		return nil, err
	}

	byPhase := make(map[string][]phase.RequiredAction, len(phases))
	for _, a := range actions {
		byPhase[a.PhaseKey] = append(byPhase[a.PhaseKey], phase.RequiredAction{
			ID:          phase.ActionID(a.ID),
			PhaseKey:    phase.Key(a.PhaseKey),
			DisplayName: a.DisplayName,
		})
	}

	defs := make([]phase.Definition, 0, len(phases))
	for _, p := range phases {
		defs = append(defs, phase.Definition{
			Key:                  phase.Key(p.Key),
			DisplayName:          p.DisplayName,
			SortOrder:            p.SortOrder,
			RequiresClientAction: p.RequiresClientAction,
			Actions:              byPhase[p.Key],
		})
	}
	return defs, nil
}

func (r *CatalogRepository) ListServices(ctx context.Context) ([]phase.ServiceDefinition, error) {
	var models []ServiceDefinitionModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}

	services := make([]phase.ServiceDefinition, 0, len(models))
	for _, m := range models {
		keys := splitCodes(m.PhaseKeys)
		phaseKeys := make([]phase.Key, 0, len(keys))
		for _, k := range keys {
			phaseKeys = append(phaseKeys, phase.Key(k))
		}
		services = append(services, phase.ServiceDefinition{
			Code:        m.Code,
			DisplayName: m.DisplayName,
			PhaseKeys:   phaseKeys,
		})
	}
	return services, nil
}

var _ phase.CatalogRepository = (*CatalogRepository)(nil)
