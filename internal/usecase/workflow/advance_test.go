package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelierlabs/studio-portal/internal/catalog"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/pkg/testhelper"
)

func newFixture() (*AdvanceUseCase, *testhelper.MemTrackingRepo, *testhelper.MemProjectRepo) {
	catalogRepo := &testhelper.MemCatalogRepo{
		Phases: []phase.Definition{
			{Key: phase.KeyOnboarding, DisplayName: "Onboarding", SortOrder: 10},
			{Key: phase.KeyDesign, DisplayName: "Design", SortOrder: 30},
			{Key: phase.KeyPayment, DisplayName: "Payment", SortOrder: 60},
			{Key: phase.KeyLaunch, DisplayName: "Launch", SortOrder: 80},
		},
		Services: []phase.ServiceDefinition{
			{Code: "book_cover", DisplayName: "Book Cover Design",
				PhaseKeys: []phase.Key{phase.KeyDesign, phase.KeyPayment}},
		},
	}

	trackings := testhelper.NewMemTrackingRepo()
	projects := testhelper.NewMemProjectRepo()
	uc := NewAdvanceUseCase(trackings, projects, catalog.NewService(catalogRepo, zap.NewNop()), zap.NewNop())
	return uc, trackings, projects
}

func seedProject(trackings *testhelper.MemTrackingRepo, projects *testhelper.MemProjectRepo, current phase.Key, completed bool) {
	projects.Seed(project.Project{
		ID:           1,
		ClientUserID: 10,
		ClientEmail:  "client@example.com",
		Name:         "Cover for 'The Long Way Home'",
		ServiceCodes: []string{"book_cover"},
	})
	trackings.Seed(tracking.Tracking{
		ID:             1,
		ProjectID:      1,
		CurrentPhase:   current,
		PhaseStartedAt: time.Now().UTC().Add(-time.Hour),
		Completed:      completed,
	})
}

func TestExecute_AdvancesToNextPhase(t *testing.T) {
	uc, trackings, projects := newFixture()
	seedProject(trackings, projects, phase.KeyOnboarding, false)

	res, err := uc.Execute(context.Background(), 1, phase.KeyOnboarding, "client requested", tracking.ClientActor(10))
	require.NoError(t, err)

	assert.Equal(t, phase.KeyDesign, res.NewPhase)
	assert.False(t, res.Terminal)
	assert.False(t, res.AlreadyComplete)

	current, err := trackings.FindByProjectID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, phase.KeyDesign, current.CurrentPhase)
	assert.False(t, current.Completed)
}

func TestExecute_TerminalTransition(t *testing.T) {
	uc, trackings, projects := newFixture()
	seedProject(trackings, projects, phase.KeyLaunch, false)

	res, err := uc.Execute(context.Background(), 1, phase.KeyLaunch, "wrap up", tracking.OperatorActor(99))
	require.NoError(t, err)

	assert.True(t, res.Terminal)
	assert.Equal(t, phase.KeyLaunch, res.NewPhase)

	current, err := trackings.FindByProjectID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, current.Completed)
	assert.Equal(t, phase.KeyLaunch, current.CurrentPhase)
}

func TestExecute_AlreadyCompleteIsIdempotent(t *testing.T) {
	uc, trackings, projects := newFixture()
	seedProject(trackings, projects, phase.KeyLaunch, true)

	before, err := trackings.FindByProjectID(context.Background(), 1)
	require.NoError(t, err)

	res, err := uc.Execute(context.Background(), 1, phase.KeyLaunch, "retry", tracking.SystemActor())
	require.NoError(t, err)

	assert.True(t, res.AlreadyComplete)
	assert.True(t, res.Terminal)
	assert.Equal(t, phase.KeyLaunch, res.NewPhase)

	after, err := trackings.FindByProjectID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, before.PhaseStartedAt, after.PhaseStartedAt)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestExecute_ProjectNotFound(t *testing.T) {
	uc, _, _ := newFixture()

	_, err := uc.Execute(context.Background(), 404, phase.KeyOnboarding, "x", tracking.SystemActor())
	assert.ErrorIs(t, err, tracking.ErrProjectNotFound)
}

func TestExecute_StaleObservationIsNoOp(t *testing.T) {
	uc, trackings, projects := newFixture()
	seedProject(trackings, projects, phase.KeyDesign, false)

	// The caller observed ONB, but the row has since moved to DSGN. The
	// call must not advance the project out of a phase nobody observed.
	res, err := uc.Execute(context.Background(), 1, phase.KeyOnboarding, "late", tracking.ClientActor(10))
	require.NoError(t, err)
	assert.True(t, res.AlreadyComplete)
	assert.Equal(t, phase.KeyDesign, res.NewPhase)

	current, err := trackings.FindByProjectID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, phase.KeyDesign, current.CurrentPhase)

	entries, err := trackings.History(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Eight callers all observed ONB; exactly one transition may result no
// matter how their reads and writes interleave.
func TestExecute_ConcurrentAdvanceSingleWinner(t *testing.T) {
	uc, trackings, projects := newFixture()
	seedProject(trackings, projects, phase.KeyOnboarding, false)

	const callers = 8
	results := make([]tracking.AdvanceResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = uc.Execute(context.Background(), 1, phase.KeyOnboarding, "race", tracking.ClientActor(10))
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if !results[i].AlreadyComplete {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	// The row moved exactly one phase despite eight concurrent callers.
	current, err := trackings.FindByProjectID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, phase.KeyDesign, current.CurrentPhase)
}

func TestExecute_RecordsHistory(t *testing.T) {
	uc, trackings, projects := newFixture()
	seedProject(trackings, projects, phase.KeyOnboarding, false)

	_, err := uc.Execute(context.Background(), 1, phase.KeyOnboarding, "client requested", tracking.ClientActor(10))
	require.NoError(t, err)

	entries, err := trackings.History(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, phase.KeyDesign, entries[0].PhaseKey)
	assert.Equal(t, "client requested", entries[0].Reason)
	assert.Equal(t, tracking.ActorClient, entries[0].ActorKind)
	assert.Equal(t, int64(10), entries[0].ActorID)
}

func TestStatus_ReturnsTrackingAndSet(t *testing.T) {
	uc, trackings, projects := newFixture()
	seedProject(trackings, projects, phase.KeyDesign, false)

	tr, set, err := uc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, phase.KeyDesign, tr.CurrentPhase)
	assert.Equal(t, phase.Set{phase.KeyOnboarding, phase.KeyDesign, phase.KeyPayment, phase.KeyLaunch}, set)
}
