package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"go.uber.org/zap"
)

// snapshot is one immutable view of the catalog tables.
type snapshot struct {
	phases   map[phase.Key]phase.Definition
	order    map[phase.Key]int
	services map[string]phase.ServiceDefinition
}

// Service resolves which phases apply to a project and answers phase
// definition lookups. Reads go through a short-TTL cache owned by this
// instance; administrative catalog edits call Invalidate.
type Service struct {
	repo   phase.CatalogRepository
	cache  *cache
	logger *zap.Logger
}

const defaultCacheTTL = 3 * time.Minute

func NewService(repo phase.CatalogRepository, logger *zap.Logger) *Service {
	return NewServiceWithTTL(repo, defaultCacheTTL, logger)
}

// NewServiceWithTTL overrides the cache TTL; non-positive falls back to the
// default.
func NewServiceWithTTL(repo phase.CatalogRepository, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		repo:   repo,
		cache:  newCache(ttl),
		logger: logger.Named("catalog"),
	}
}

// ResolvePhaseSet derives the ordered phase set for the given service codes:
// union of each service's phases plus the always-present onboarding and
// launch phases, sorted by catalog order, deduplicated.
func (s *Service) ResolvePhaseSet(ctx context.Context, serviceCodes []string) (phase.Set, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var selected []phase.Key
	for _, code := range serviceCodes {
		svc, ok := snap.services[code]
		if !ok {
			return nil, fmt.Errorf("%w: %s", phase.ErrInvalidService, code)
		}
		selected = append(selected, svc.PhaseKeys...)
	}

	return phase.BuildSet(selected, phase.KeyOnboarding, phase.KeyLaunch, snap.order), nil
}

// Definition returns the catalog entry for one phase key.
func (s *Service) Definition(ctx context.Context, key phase.Key) (phase.Definition, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return phase.Definition{}, err
	}
	def, ok := snap.phases[key]
	if !ok {
		return phase.Definition{}, fmt.Errorf("%w: %s", phase.ErrUnknownPhase, key)
	}
	return def, nil
}

// RequiredActions returns the mandatory actions configured for a phase.
func (s *Service) RequiredActions(ctx context.Context, key phase.Key) ([]phase.RequiredAction, error) {
	def, err := s.Definition(ctx, key)
	if err != nil {
		return nil, err
	}
	return def.Actions, nil
}

// Invalidate drops the cached snapshot. Called after administrative edits.
func (s *Service) Invalidate() {
	s.cache.invalidate()
	s.logger.Info("catalog_cache_invalidated")
}

func (s *Service) load(ctx context.Context) (*snapshot, error) {
	if snap, ok := s.cache.get(); ok {
		return snap, nil
	}

	defs, err := s.repo.ListPhases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load phase catalog: %w", err)
	}
	services, err := s.repo.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("load service catalog: %w", err)
	}

	snap := &snapshot{
		phases:   make(map[phase.Key]phase.Definition, len(defs)),
		order:    make(map[phase.Key]int, len(defs)),
		services: make(map[string]phase.ServiceDefinition, len(services)),
	}
	for _, def := range defs {
		snap.phases[def.Key] = def
		snap.order[def.Key] = def.SortOrder
	}
	for _, svc := range services {
		snap.services[svc.Code] = svc
	}

	s.cache.set(snap)
	return snap, nil
}
