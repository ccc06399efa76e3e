package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/pkg/testhelper"
)

func fullCatalog() *testhelper.MemCatalogRepo {
	return &testhelper.MemCatalogRepo{
		Phases: []phase.Definition{
			{Key: phase.KeyOnboarding, DisplayName: "Onboarding", SortOrder: 10, RequiresClientAction: true,
				Actions: []phase.RequiredAction{{ID: "intake_form", PhaseKey: phase.KeyOnboarding, DisplayName: "Complete intake form"}}},
			{Key: phase.KeyIdeation, DisplayName: "Ideation", SortOrder: 20, RequiresClientAction: true},
			{Key: phase.KeyDesign, DisplayName: "Design", SortOrder: 30},
			{Key: phase.KeyReview, DisplayName: "Review", SortOrder: 40, RequiresClientAction: true},
			{Key: phase.KeyProduction, DisplayName: "Production", SortOrder: 50},
			{Key: phase.KeyPayment, DisplayName: "Payment", SortOrder: 60, RequiresClientAction: true},
			{Key: phase.KeySignoff, DisplayName: "Sign-off", SortOrder: 70, RequiresClientAction: true},
			{Key: phase.KeyLaunch, DisplayName: "Launch", SortOrder: 80},
		},
		Services: []phase.ServiceDefinition{
			{Code: "book_cover", DisplayName: "Book Cover Design",
				PhaseKeys: []phase.Key{phase.KeyIdeation, phase.KeyDesign, phase.KeyReview, phase.KeyPayment, phase.KeySignoff}},
			{Code: "illustration", DisplayName: "Custom Illustration",
				PhaseKeys: []phase.Key{phase.KeyIdeation, phase.KeyDesign, phase.KeyReview, phase.KeyPayment}},
			{Code: "web_design", DisplayName: "Website Design",
				PhaseKeys: []phase.Key{phase.KeyIdeation, phase.KeyDesign, phase.KeyReview, phase.KeyProduction, phase.KeyPayment, phase.KeySignoff}},
		},
	}
}

func TestResolvePhaseSet_SingleService(t *testing.T) {
	svc := NewService(fullCatalog(), zap.NewNop())

	set, err := svc.ResolvePhaseSet(context.Background(), []string{"book_cover"})
	require.NoError(t, err)

	assert.Equal(t, phase.Set{
		phase.KeyOnboarding, phase.KeyIdeation, phase.KeyDesign,
		phase.KeyReview, phase.KeyPayment, phase.KeySignoff, phase.KeyLaunch,
	}, set)
}

func TestResolvePhaseSet_UnionOfServices(t *testing.T) {
	svc := NewService(fullCatalog(), zap.NewNop())

	// web_design adds PROD; the union stays ordered and deduplicated.
	set, err := svc.ResolvePhaseSet(context.Background(), []string{"book_cover", "web_design"})
	require.NoError(t, err)

	assert.Equal(t, phase.Set{
		phase.KeyOnboarding, phase.KeyIdeation, phase.KeyDesign, phase.KeyReview,
		phase.KeyProduction, phase.KeyPayment, phase.KeySignoff, phase.KeyLaunch,
	}, set)
}

func TestResolvePhaseSet_UnknownService(t *testing.T) {
	svc := NewService(fullCatalog(), zap.NewNop())

	_, err := svc.ResolvePhaseSet(context.Background(), []string{"book_cover", "skywriting"})
	assert.ErrorIs(t, err, phase.ErrInvalidService)
}

func TestDefinition_UnknownPhase(t *testing.T) {
	svc := NewService(fullCatalog(), zap.NewNop())

	_, err := svc.Definition(context.Background(), "NOPE")
	assert.ErrorIs(t, err, phase.ErrUnknownPhase)

	def, err := svc.Definition(context.Background(), phase.KeyOnboarding)
	require.NoError(t, err)
	assert.True(t, def.RequiresClientAction)
	assert.Len(t, def.Actions, 1)
}

func TestCache_ServesRepeatReadsWithoutReload(t *testing.T) {
	repo := fullCatalog()
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	_, err := svc.ResolvePhaseSet(ctx, []string{"book_cover"})
	require.NoError(t, err)
	_, err = svc.Definition(ctx, phase.KeyDesign)
	require.NoError(t, err)
	_, err = svc.RequiredActions(ctx, phase.KeyOnboarding)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.Loads())
}

func TestCache_InvalidateForcesReload(t *testing.T) {
	repo := fullCatalog()
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	_, err := svc.ResolvePhaseSet(ctx, []string{"book_cover"})
	require.NoError(t, err)

	svc.Invalidate()

	_, err = svc.ResolvePhaseSet(ctx, []string{"book_cover"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Loads())
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	repo := fullCatalog()
	svc := NewServiceWithTTL(repo, 5*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	_, err := svc.ResolvePhaseSet(ctx, []string{"book_cover"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = svc.ResolvePhaseSet(ctx, []string{"book_cover"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Loads())
}
