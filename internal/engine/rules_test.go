package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

func keyPtr(k phase.Key) *phase.Key { return &k }

func TestRuleSet_ExactMatch(t *testing.T) {
	rs := NewRuleSet([]AutomationRule{
		{ID: 1, FromPhase: keyPtr(phase.KeyOnboarding), ToPhase: phase.KeyDesign, AutoAdvance: true, Enabled: true},
	})

	r, ok := rs.Match(phase.KeyOnboarding, phase.KeyDesign)
	require.True(t, ok)
	assert.Equal(t, int64(1), r.ID)

	_, ok = rs.Match(phase.KeyDesign, phase.KeyPayment)
	assert.False(t, ok)
}

func TestRuleSet_WildcardMatch(t *testing.T) {
	rs := NewRuleSet([]AutomationRule{
		{ID: 2, FromPhase: nil, ToPhase: phase.KeyLaunch, AutoAdvance: true, Enabled: true},
	})

	r, ok := rs.Match(phase.KeyPayment, phase.KeyLaunch)
	require.True(t, ok)
	assert.Equal(t, int64(2), r.ID)

	r, ok = rs.Match(phase.KeySignoff, phase.KeyLaunch)
	require.True(t, ok)
	assert.Equal(t, int64(2), r.ID)
}

func TestRuleSet_ExactShadowsWildcard(t *testing.T) {
	rs := NewRuleSet([]AutomationRule{
		{ID: 1, FromPhase: nil, ToPhase: phase.KeyLaunch, AutoAdvance: true, Enabled: true},
		{ID: 2, FromPhase: keyPtr(phase.KeySignoff), ToPhase: phase.KeyLaunch, AutoAdvance: false, Enabled: true, StuckAfter: 24 * time.Hour},
	})

	r, ok := rs.Match(phase.KeySignoff, phase.KeyLaunch)
	require.True(t, ok)
	assert.Equal(t, int64(2), r.ID)

	r, ok = rs.Match(phase.KeyPayment, phase.KeyLaunch)
	require.True(t, ok)
	assert.Equal(t, int64(1), r.ID)
}

func TestRuleSet_SkipsDisabledRules(t *testing.T) {
	rs := NewRuleSet([]AutomationRule{
		{ID: 1, FromPhase: keyPtr(phase.KeyOnboarding), ToPhase: phase.KeyDesign, Enabled: false},
	})

	_, ok := rs.Match(phase.KeyOnboarding, phase.KeyDesign)
	assert.False(t, ok)
	assert.Equal(t, 0, rs.Len())
}

func TestRuleSet_RulesOrderedByID(t *testing.T) {
	rs := NewRuleSet([]AutomationRule{
		{ID: 3, FromPhase: nil, ToPhase: phase.KeyLaunch, Enabled: true},
		{ID: 1, FromPhase: keyPtr(phase.KeyOnboarding), ToPhase: phase.KeyDesign, Enabled: true},
		{ID: 2, FromPhase: keyPtr(phase.KeyPayment), ToPhase: phase.KeySignoff, Enabled: true},
	})

	rules := rs.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, int64(1), rules[0].ID)
	assert.Equal(t, int64(2), rules[1].ID)
	assert.Equal(t, int64(3), rules[2].ID)
}

type memRuleRepo struct {
	rules []AutomationRule
	err   error
}

func (m *memRuleRepo) ListEnabled(ctx context.Context) ([]AutomationRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rules, nil
}

func TestRuleCache_ReloadSwapsSet(t *testing.T) {
	repo := &memRuleRepo{}
	cache := NewRuleCache(repo, zap.NewNop())

	assert.Equal(t, 0, cache.Current().Len())

	repo.rules = []AutomationRule{
		{ID: 1, FromPhase: nil, ToPhase: phase.KeyLaunch, AutoAdvance: true, Enabled: true},
	}
	require.NoError(t, cache.Reload(context.Background()))
	assert.Equal(t, 1, cache.Current().Len())
}

func TestDedupeKey(t *testing.T) {
	assert.Equal(t, "stuck:42:DSGN", DedupeKey("stuck", 42, phase.KeyDesign))
}
