package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/internal/outbox"
	"github.com/atelierlabs/studio-portal/pkg/snowflake"
	"github.com/atelierlabs/studio-portal/pkg/testhelper"
	"github.com/atelierlabs/studio-portal/sql/migrations"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := testhelper.SetupPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Teardown(context.Background())
	})

	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	m, err := migrate.NewWithSourceInstance("iofs", src, container.DSN)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	db, err := gorm.Open(gormpostgres.Open(container.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode()
	require.NoError(t, err)
	return node
}

func TestTrackingRepository_AdvanceFrom(t *testing.T) {
	db := setupDB(t)
	node := newNode(t)
	repo := NewTrackingRepository(db, node)
	ctx := context.Background()

	tr := tracking.NewTracking(1001, phase.KeyOnboarding)
	require.NoError(t, repo.Create(ctx, tr))

	now := time.Now().UTC()
	ok, err := repo.AdvanceFrom(ctx, tracking.AdvanceParams{
		ProjectID: 1001,
		From:      phase.KeyOnboarding,
		To:        phase.KeyIdeation,
		At:        now,
		Reason:    "client requested",
		Actor:     tracking.ClientActor(7),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	current, err := repo.FindByProjectID(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, phase.KeyIdeation, current.CurrentPhase)
	assert.False(t, current.Completed)

	// Audit entry and advancement outbox event committed with the update.
	entries, err := repo.History(ctx, 1001, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, phase.KeyIdeation, entries[0].PhaseKey)
	assert.Equal(t, tracking.ActorClient, entries[0].ActorKind)

	var events []outbox.Event
	require.NoError(t, db.Where("project_id = ?", 1001).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, notify.KindAdvanced, events[0].Kind)
	assert.Equal(t, outbox.StatusPending, events[0].Status)
}

func TestTrackingRepository_AdvanceFrom_StaleSourceLoses(t *testing.T) {
	db := setupDB(t)
	repo := NewTrackingRepository(db, newNode(t))
	ctx := context.Background()

	tr := tracking.NewTracking(1002, phase.KeyDesign)
	require.NoError(t, repo.Create(ctx, tr))

	ok, err := repo.AdvanceFrom(ctx, tracking.AdvanceParams{
		ProjectID: 1002,
		From:      phase.KeyOnboarding, // stale source phase
		To:        phase.KeyIdeation,
		At:        time.Now().UTC(),
		Actor:     tracking.SystemActor(),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := repo.History(ctx, 1002, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrackingRepository_ConcurrentAdvanceSingleWinner(t *testing.T) {
	db := setupDB(t)
	repo := NewTrackingRepository(db, newNode(t))
	ctx := context.Background()

	tr := tracking.NewTracking(1003, phase.KeyReview)
	require.NoError(t, repo.Create(ctx, tr))

	const writers = 6
	wins := make([]bool, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wins[i], errs[i] = repo.AdvanceFrom(ctx, tracking.AdvanceParams{
				ProjectID: 1003,
				From:      phase.KeyReview,
				To:        phase.KeyProduction,
				At:        time.Now().UTC(),
				Reason:    "race",
				Actor:     tracking.SystemActor(),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		if wins[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	entries, err := repo.History(ctx, 1003, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTrackingRepository_TerminalAdvance(t *testing.T) {
	db := setupDB(t)
	repo := NewTrackingRepository(db, newNode(t))
	ctx := context.Background()

	tr := tracking.NewTracking(1004, phase.KeyLaunch)
	require.NoError(t, repo.Create(ctx, tr))
	entered := tr.PhaseStartedAt

	ok, err := repo.AdvanceFrom(ctx, tracking.AdvanceParams{
		ProjectID: 1004,
		From:      phase.KeyLaunch,
		To:        phase.KeyLaunch,
		Terminal:  true,
		At:        time.Now().UTC(),
		Reason:    "wrap up",
		Actor:     tracking.OperatorActor(3),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	current, err := repo.FindByProjectID(ctx, 1004)
	require.NoError(t, err)
	assert.True(t, current.Completed)
	// Terminal completion does not re-enter the phase.
	assert.WithinDuration(t, entered, current.PhaseStartedAt, time.Second)

	// Completed rows drop out of the active scan.
	active, err := repo.ListActive(ctx, 0)
	require.NoError(t, err)
	for _, a := range active {
		assert.NotEqual(t, int64(1004), a.ProjectID)
	}
}

func TestActionStatusRepository_UpsertKeepsEarliestCompletion(t *testing.T) {
	db := setupDB(t)
	repo := NewActionStatusRepository(db)
	ctx := context.Background()

	first := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.MarkCompleted(ctx, 2001, "final_payment", first))
	// Webhook retry an hour later must not move the timestamp.
	require.NoError(t, repo.MarkCompleted(ctx, 2001, "final_payment", first.Add(time.Hour)))

	statuses, err := repo.ListStatuses(ctx, 2001, []phase.ActionID{"final_payment"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].CompletedAt)
	assert.WithinDuration(t, first, *statuses[0].CompletedAt, time.Second)
}

func TestCatalogRepository_SeededCatalog(t *testing.T) {
	db := setupDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	defs, err := repo.ListPhases(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 8)
	assert.Equal(t, phase.KeyOnboarding, defs[0].Key)
	assert.Equal(t, phase.KeyLaunch, defs[7].Key)

	services, err := repo.ListServices(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, services)
}

func TestRuleRepository_ListEnabled(t *testing.T) {
	db := setupDB(t)
	repo := NewRuleRepository(db)

	rules, err := repo.ListEnabled(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	var sawWildcard bool
	for _, r := range rules {
		if r.FromPhase == nil {
			sawWildcard = true
			assert.Equal(t, phase.KeyLaunch, r.ToPhase)
		}
	}
	assert.True(t, sawWildcard)
}

func TestDedupeRepository_Upsert(t *testing.T) {
	db := setupDB(t)
	repo := NewDedupeRepository(db)
	ctx := context.Background()

	last, err := repo.LastSent(ctx, "stuck:1:DSGN")
	require.NoError(t, err)
	assert.Nil(t, last)

	first := time.Now().UTC()
	require.NoError(t, repo.MarkSent(ctx, "stuck:1:DSGN", first))

	second := first.Add(time.Hour)
	require.NoError(t, repo.MarkSent(ctx, "stuck:1:DSGN", second))

	last, err = repo.LastSent(ctx, "stuck:1:DSGN")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, second, *last, time.Second)
}
