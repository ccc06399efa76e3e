package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

func TestNewTracking(t *testing.T) {
	tr := NewTracking(42, phase.KeyOnboarding)

	assert.Equal(t, int64(42), tr.ProjectID)
	assert.Equal(t, phase.KeyOnboarding, tr.CurrentPhase)
	assert.False(t, tr.Completed)
	assert.NotZero(t, tr.PhaseStartedAt)
	assert.Equal(t, tr.CreatedAt, tr.PhaseStartedAt)
}

func TestAdvanceTo(t *testing.T) {
	tr := NewTracking(42, phase.KeyOnboarding)
	started := tr.PhaseStartedAt

	now := started.Add(2 * time.Hour)
	tr.AdvanceTo(phase.KeyDesign, now)

	assert.Equal(t, phase.KeyDesign, tr.CurrentPhase)
	assert.Equal(t, now, tr.PhaseStartedAt)
	assert.True(t, tr.PhaseStartedAt.After(started))
	assert.False(t, tr.Completed)
}

func TestMarkCompleted(t *testing.T) {
	tr := NewTracking(42, phase.KeyLaunch)
	started := tr.PhaseStartedAt

	tr.MarkCompleted(started.Add(time.Hour))

	assert.True(t, tr.Completed)
	// Completing does not re-enter a phase.
	assert.Equal(t, started, tr.PhaseStartedAt)
}

func TestActorString(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		want  string
	}{
		{"system", SystemActor(), "system"},
		{"client", ClientActor(7), "client:7"},
		{"operator", OperatorActor(9), "operator:9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.actor.String())
		})
	}
}
