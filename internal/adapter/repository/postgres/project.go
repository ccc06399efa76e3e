package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/atelierlabs/studio-portal/internal/domain/project"
)

// ProjectRepository implements project.Repository on postgres.
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) FindByID(ctx context.Context, id int64) (*project.Project, error) {
	var model ProjectModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return projectToDomain(model), nil
}

var _ project.Repository = (*ProjectRepository)(nil)
