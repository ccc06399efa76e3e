package testhelper

import (
	"context"
	"sync"
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/action"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
)

// MemTrackingRepo is an in-memory tracking.Repository mirroring the conditional
// update semantics of the postgres implementation.
type MemTrackingRepo struct {
	mu       sync.Mutex
	rows     map[int64]*tracking.Tracking
	history  map[int64][]tracking.HistoryEntry
	nextID   int64
	FailWith error
}

func NewMemTrackingRepo() *MemTrackingRepo {
	return &MemTrackingRepo{
		rows:    make(map[int64]*tracking.Tracking),
		history: make(map[int64][]tracking.HistoryEntry),
	}
}

func (r *MemTrackingRepo) FindByProjectID(ctx context.Context, projectID int64) (*tracking.Tracking, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[projectID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *MemTrackingRepo) ListActive(ctx context.Context, limit int) ([]*tracking.Tracking, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*tracking.Tracking
	for _, t := range r.rows {
		if t.Completed {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MemTrackingRepo) Create(ctx context.Context, t *tracking.Tracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	cp := *t
	r.rows[t.ProjectID] = &cp
	return nil
}

func (r *MemTrackingRepo) AdvanceFrom(ctx context.Context, params tracking.AdvanceParams) (bool, error) {
	if r.FailWith != nil {
		return false, r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.rows[params.ProjectID]
	if !ok || t.Completed || t.CurrentPhase != params.From {
		return false, nil
	}

	t.CurrentPhase = params.To
	t.UpdatedAt = params.At
	if params.Terminal {
		t.Completed = true
	} else {
		t.PhaseStartedAt = params.At
	}

	r.nextID++
	r.history[params.ProjectID] = append(r.history[params.ProjectID], tracking.HistoryEntry{
		ID:         r.nextID,
		ProjectID:  params.ProjectID,
		PhaseKey:   params.To,
		Reason:     params.Reason,
		ActorKind:  params.Actor.Kind,
		ActorID:    params.Actor.UserID,
		OccurredAt: params.At,
	})
	return true, nil
}

func (r *MemTrackingRepo) History(ctx context.Context, projectID int64, limit int) ([]tracking.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.history[projectID]
	out := make([]tracking.HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Seed inserts a tracking row directly.
func (r *MemTrackingRepo) Seed(t tracking.Tracking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := t
	r.rows[t.ProjectID] = &cp
}

var (
	_ tracking.Repository    = (*MemTrackingRepo)(nil)
	_ tracking.HistoryReader = (*MemTrackingRepo)(nil)
)

// MemProjectRepo is an in-memory project.Repository.
type MemProjectRepo struct {
	mu       sync.Mutex
	rows     map[int64]project.Project
	FailWith error
}

func NewMemProjectRepo() *MemProjectRepo {
	return &MemProjectRepo{rows: make(map[int64]project.Project)}
}

func (r *MemProjectRepo) FindByID(ctx context.Context, id int64) (*project.Project, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemProjectRepo) Seed(p project.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.ID] = p
}

var _ project.Repository = (*MemProjectRepo)(nil)

// MemActionStatusRepo is an in-memory action status store.
type MemActionStatusRepo struct {
	mu   sync.Mutex
	rows map[int64]map[phase.ActionID]*time.Time
}

func NewMemActionStatusRepo() *MemActionStatusRepo {
	return &MemActionStatusRepo{rows: make(map[int64]map[phase.ActionID]*time.Time)}
}

func (r *MemActionStatusRepo) ListStatuses(ctx context.Context, projectID int64, actionIDs []phase.ActionID) ([]action.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byAction := r.rows[projectID]
	var out []action.Status
	for _, id := range actionIDs {
		at, ok := byAction[id]
		if !ok {
			continue
		}
		out = append(out, action.Status{ProjectID: projectID, ActionID: id, CompletedAt: at})
	}
	return out, nil
}

func (r *MemActionStatusRepo) MarkCompleted(ctx context.Context, projectID int64, actionID phase.ActionID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byAction, ok := r.rows[projectID]
	if !ok {
		byAction = make(map[phase.ActionID]*time.Time)
		r.rows[projectID] = byAction
	}
	if existing := byAction[actionID]; existing != nil {
		return nil // keep earliest completion
	}
	t := at
	byAction[actionID] = &t
	return nil
}

var (
	_ action.StatusReader = (*MemActionStatusRepo)(nil)
	_ action.StatusWriter = (*MemActionStatusRepo)(nil)
)

// MemCatalogRepo serves a fixed catalog with a load counter for cache tests.
type MemCatalogRepo struct {
	mu        sync.Mutex
	Phases    []phase.Definition
	Services  []phase.ServiceDefinition
	LoadCount int
	FailWith  error
}

func (r *MemCatalogRepo) ListPhases(ctx context.Context) ([]phase.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	r.LoadCount++
	return r.Phases, nil
}

func (r *MemCatalogRepo) ListServices(ctx context.Context) ([]phase.ServiceDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	return r.Services, nil
}

func (r *MemCatalogRepo) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.LoadCount
}

var _ phase.CatalogRepository = (*MemCatalogRepo)(nil)

// MemDedupeStore is an in-memory engine.DedupeStore.
type MemDedupeStore struct {
	mu   sync.Mutex
	sent map[string]time.Time
}

func NewMemDedupeStore() *MemDedupeStore {
	return &MemDedupeStore{sent: make(map[string]time.Time)}
}

func (s *MemDedupeStore) LastSent(ctx context.Context, key string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.sent[key]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (s *MemDedupeStore) MarkSent(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[key] = at
	return nil
}

// Backdate rewinds a dedupe entry, simulating an elapsed cool-down.
func (s *MemDedupeStore) Backdate(key string, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.sent[key]; ok {
		s.sent[key] = at.Add(-by)
	}
}
