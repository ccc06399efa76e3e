package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierlabs/studio-portal/internal/catalog"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// AdvanceUseCase moves a project to the next phase of its phase set, or to
// terminal when it is already in the last phase. Advancing is unconditional
// once invoked; gating is the caller's responsibility. Concurrent advances on
// one project are serialized by a conditional update on the source phase the
// caller observed: whoever loses the race, or arrives holding a stale
// observation, reports AlreadyComplete instead of advancing a second time.
type AdvanceUseCase struct {
	trackings tracking.Repository
	projects  project.Repository
	catalog   *catalog.Service
	logger    *zap.Logger
	timeout   time.Duration
}

func NewAdvanceUseCase(
	trackings tracking.Repository,
	projects project.Repository,
	catalogSvc *catalog.Service,
	logger *zap.Logger,
) *AdvanceUseCase {
	return &AdvanceUseCase{
		trackings: trackings,
		projects:  projects,
		catalog:   catalogSvc,
		logger:    logger.Named("workflow.advance"),
		timeout:   5 * time.Second,
	}
}

// Execute advances projectID out of the phase the caller observed. The
// observed phase is the optimistic version: if the row has moved past it by
// the time the conditional update runs, or before Execute even reads it, the
// call is a no-op reported as AlreadyComplete rather than a second advance.
func (uc *AdvanceUseCase) Execute(ctx context.Context, projectID int64, from phase.Key, reason string, actor tracking.Actor) (tracking.AdvanceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	t, err := uc.trackings.FindByProjectID(ctx, projectID)
	if err != nil {
		return tracking.AdvanceResult{}, err
	}
	if t == nil {
		return tracking.AdvanceResult{}, tracking.ErrProjectNotFound
	}
	if t.Completed {
		return tracking.AdvanceResult{NewPhase: t.CurrentPhase, Terminal: true, AlreadyComplete: true}, nil
	}
	if t.CurrentPhase != from {
		// Another writer already moved the row out of the observed phase.
		return tracking.AdvanceResult{
			NewPhase:        t.CurrentPhase,
			Terminal:        t.Completed,
			AlreadyComplete: true,
		}, nil
	}

	proj, err := uc.projects.FindByID(ctx, projectID)
	if err != nil {
		return tracking.AdvanceResult{}, err
	}
	if proj == nil {
		return tracking.AdvanceResult{}, tracking.ErrProjectNotFound
	}

	set, err := uc.catalog.ResolvePhaseSet(ctx, proj.ServiceCodes)
	if err != nil {
		return tracking.AdvanceResult{}, err
	}
	if !set.Contains(from) {
		return tracking.AdvanceResult{}, fmt.Errorf("tracking phase %s is not in project %d phase set", from, projectID)
	}

	next, hasNext := set.Next(from)
	terminal := !hasNext
	to := next
	if terminal {
		to = from
	}

	now := time.Now().UTC()
	ok, err := uc.trackings.AdvanceFrom(ctx, tracking.AdvanceParams{
		ProjectID: projectID,
		From:      from,
		To:        to,
		Terminal:  terminal,
		At:        now,
		Reason:    reason,
		Actor:     actor,
	})
	if err != nil {
		return tracking.AdvanceResult{}, err
	}
	if !ok {
		// Lost the race: a concurrent advance already moved the row.
		current, err := uc.trackings.FindByProjectID(ctx, projectID)
		if err != nil {
			return tracking.AdvanceResult{}, err
		}
		if current == nil {
			return tracking.AdvanceResult{}, tracking.ErrProjectNotFound
		}
		return tracking.AdvanceResult{
			NewPhase:        current.CurrentPhase,
			Terminal:        current.Completed,
			AlreadyComplete: true,
		}, nil
	}

	uc.logger.Info("phase_advanced",
		zap.Int64("project_id", projectID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("terminal", terminal),
		zap.String("reason", reason),
		zap.String("actor", actor.String()),
		zap.String("request_id", correlation.ExtractCorrelationID(ctx)),
	)

	return tracking.AdvanceResult{NewPhase: to, Terminal: terminal}, nil
}

// Status returns the tracking row plus the resolved phase set for a project.
func (uc *AdvanceUseCase) Status(ctx context.Context, projectID int64) (*tracking.Tracking, phase.Set, error) {
	t, err := uc.trackings.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, tracking.ErrProjectNotFound
	}
	proj, err := uc.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	if proj == nil {
		return nil, nil, tracking.ErrProjectNotFound
	}
	set, err := uc.catalog.ResolvePhaseSet(ctx, proj.ServiceCodes)
	if err != nil {
		return nil, nil, err
	}
	return t, set, nil
}
