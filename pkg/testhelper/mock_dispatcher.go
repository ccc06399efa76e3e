package testhelper

import (
	"context"
	"fmt"
	"sync"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
)

// DispatchCall records one capability invocation on the mock dispatcher.
type DispatchCall struct {
	Capability   string // "in_app", "realtime", "email"
	UserID       int64
	TemplateKind string
	Recipient    string
	Kind         notify.Kind
	Event        notify.Event
}

// MockDispatcher is an in-memory notify.Dispatcher recording every call.
type MockDispatcher struct {
	mu         sync.Mutex
	Calls      []DispatchCall
	ShouldFail bool
}

func (m *MockDispatcher) CreateInAppNotification(ctx context.Context, userID int64, kind notify.Kind, event notify.Event) error {
	if m.ShouldFail {
		return fmt.Errorf("mock dispatcher: in-app failed")
	}
	m.record(DispatchCall{Capability: "in_app", UserID: userID, Kind: kind, Event: event})
	return nil
}

func (m *MockDispatcher) PushRealtimeEvent(ctx context.Context, userID int64, kind notify.Kind, event notify.Event) error {
	if m.ShouldFail {
		return fmt.Errorf("mock dispatcher: realtime failed")
	}
	m.record(DispatchCall{Capability: "realtime", UserID: userID, Kind: kind, Event: event})
	return nil
}

func (m *MockDispatcher) QueueEmail(ctx context.Context, templateKind string, recipient string, event notify.Event) error {
	if m.ShouldFail {
		return fmt.Errorf("mock dispatcher: email failed")
	}
	m.record(DispatchCall{Capability: "email", TemplateKind: templateKind, Recipient: recipient, Kind: event.Kind, Event: event})
	return nil
}

func (m *MockDispatcher) record(call DispatchCall) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()
}

// CallsFor returns the recorded calls for one capability.
func (m *MockDispatcher) CallsFor(capability string) []DispatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DispatchCall
	for _, c := range m.Calls {
		if c.Capability == capability {
			out = append(out, c)
		}
	}
	return out
}

// EventsOfKind returns every recorded event of the given kind, across
// capabilities.
func (m *MockDispatcher) EventsOfKind(kind notify.Kind) []notify.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Event
	for _, c := range m.Calls {
		if c.Event.Kind == kind {
			out = append(out, c.Event)
		}
	}
	return out
}

var _ notify.Dispatcher = (*MockDispatcher)(nil)
