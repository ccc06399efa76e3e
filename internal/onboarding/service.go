package onboarding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atelierlabs/studio-portal/internal/adapter/repository/postgres"
	"github.com/atelierlabs/studio-portal/internal/catalog"
	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/internal/outbox"
	"github.com/atelierlabs/studio-portal/pkg/snowflake"
)

const intakeReason = "project intake"

// Service handles project intake: one transaction creates the project, its
// phase tracking at the first resolved phase, the opening history entry, and
// the outbox event that announces the workflow has started.
type Service struct {
	db        *gorm.DB
	catalog   *catalog.Service
	snowflake *snowflake.Node
	logger    *zap.Logger
}

func NewService(db *gorm.DB, cat *catalog.Service, node *snowflake.Node, logger *zap.Logger) *Service {
	return &Service{
		db:        db,
		catalog:   cat,
		snowflake: node,
		logger:    logger.Named("onboarding"),
	}
}

type IntakeRequest struct {
	ClientUserID int64
	ClientEmail  string
	Name         string
	ServiceCodes []string
}

func (r IntakeRequest) validate() error {
	if r.ClientUserID == 0 {
		return fmt.Errorf("client user id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if strings.TrimSpace(r.ClientEmail) == "" || !strings.Contains(r.ClientEmail, "@") {
		return fmt.Errorf("a valid client email is required")
	}
	if len(r.ServiceCodes) == 0 {
		return fmt.Errorf("at least one service is required")
	}
	return nil
}

// CreateProject validates the intake, resolves the phase set for the booked
// services, and writes the project, tracking row, history entry, and outbox
// event atomically. Unknown service codes surface phase.ErrInvalidService.
func (s *Service) CreateProject(ctx context.Context, req IntakeRequest) (*project.Project, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	set, err := s.catalog.ResolvePhaseSet(ctx, req.ServiceCodes)
	if err != nil {
		return nil, err
	}
	entry, ok := set.First()
	if !ok {
		return nil, fmt.Errorf("resolved phase set is empty")
	}

	now := time.Now().UTC()
	model := postgres.ProjectModel{
		ID:           s.snowflake.GenerateID(),
		ClientUserID: req.ClientUserID,
		ClientEmail:  strings.TrimSpace(req.ClientEmail),
		Name:         strings.TrimSpace(req.Name),
		ServiceCodes: strings.Join(req.ServiceCodes, ","),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		trackingRow := postgres.TrackingModel{
			ID:             s.snowflake.GenerateID(),
			ProjectID:      model.ID,
			CurrentPhase:   string(entry),
			PhaseStartedAt: now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(&trackingRow).Error; err != nil {
			return fmt.Errorf("create tracking: %w", err)
		}

		history := postgres.HistoryModel{
			ID:         s.snowflake.GenerateID(),
			ProjectID:  model.ID,
			PhaseKey:   string(entry),
			Reason:     intakeReason,
			ActorKind:  string(tracking.ActorClient),
			ActorID:    req.ClientUserID,
			OccurredAt: now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		event := outbox.Event{
			ID:        s.snowflake.GenerateID(),
			Kind:      notify.KindAdvanced,
			ProjectID: model.ID,
			PhaseKey:  entry,
			Reason:    intakeReason,
			Status:    outbox.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("create outbox event: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("project_created",
		zap.Int64("project_id", model.ID),
		zap.Int64("client_user_id", req.ClientUserID),
		zap.String("entry_phase", string(entry)),
		zap.Strings("service_codes", req.ServiceCodes),
	)

	return &project.Project{
		ID:           model.ID,
		ClientUserID: model.ClientUserID,
		ClientEmail:  model.ClientEmail,
		Name:         model.Name,
		ServiceCodes: req.ServiceCodes,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}, nil
}

// ListByClient returns a client's projects, newest first.
func (s *Service) ListByClient(ctx context.Context, clientUserID int64) ([]project.Project, error) {
	var models []postgres.ProjectModel
	if err := s.db.WithContext(ctx).
		Where("client_user_id = ?", clientUserID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list client projects: %w", err)
	}

	out := make([]project.Project, 0, len(models))
	for _, m := range models {
		var codes []string
		if strings.TrimSpace(m.ServiceCodes) != "" {
			codes = strings.Split(m.ServiceCodes, ",")
		}
		out = append(out, project.Project{
			ID:           m.ID,
			ClientUserID: m.ClientUserID,
			ClientEmail:  m.ClientEmail,
			Name:         m.Name,
			ServiceCodes: codes,
			CreatedAt:    m.CreatedAt,
			UpdatedAt:    m.UpdatedAt,
		})
	}
	return out, nil
}
