package eventbus

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/atelierlabs/studio-portal/internal/domain/notify"
)

// Envelope wraps a workflow event with the user it targets, so stream
// subscribers can filter to their own projects.
type Envelope struct {
	ID     string
	UserID int64
	Event  notify.Event
}

// Bus fans workflow events out to in-process subscribers (the SSE streams).
// Slow subscribers drop events rather than block publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Envelope
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan Envelope),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan Envelope) {
	id := ulid.Make().String()
	ch := make(chan Envelope, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(userID int64, event notify.Event) {
	env := Envelope{
		ID:     ulid.Make().String(),
		UserID: userID,
		Event:  event,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- env:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}
