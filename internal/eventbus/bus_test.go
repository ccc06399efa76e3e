package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	bus := New()

	id1, ch1 := bus.Subscribe(4)
	id2, ch2 := bus.Subscribe(4)
	defer bus.Unsubscribe(id1)
	defer bus.Unsubscribe(id2)

	bus.Publish(10, notify.Event{ProjectID: 1, Kind: notify.KindAdvanced, PhaseKey: phase.KeyDesign})

	env1 := <-ch1
	env2 := <-ch2
	assert.Equal(t, int64(10), env1.UserID)
	assert.Equal(t, notify.KindAdvanced, env1.Event.Kind)
	assert.Equal(t, env1.Event, env2.Event)
	assert.NotEmpty(t, env1.ID)
}

func TestPublish_DropsWhenBufferFull(t *testing.T) {
	bus := New()

	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	bus.Publish(10, notify.Event{ProjectID: 1, Kind: notify.KindAdvanced})
	bus.Publish(10, notify.Event{ProjectID: 2, Kind: notify.KindAdvanced})

	env := <-ch
	assert.Equal(t, int64(1), env.Event.ProjectID)

	select {
	case extra := <-ch:
		t.Fatalf("expected second event to be dropped, got %+v", extra)
	default:
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	bus := New()

	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Publish(10, notify.Event{ProjectID: 1, Kind: notify.KindReminder})
}
