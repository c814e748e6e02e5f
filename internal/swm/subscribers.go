// internal/swm/subscribers.go
package swm

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber receives every message the engine publishes. It is called
// synchronously from the publishing goroutine and must not block.
type Subscriber func(e *Engine, message string)

type subscription struct {
	id uuid.UUID
	fn Subscriber
}

type subscriberList struct {
	mu   sync.RWMutex
	subs []subscription
}

func (l *subscriberList) add(fn Subscriber) uuid.UUID {
	id := uuid.New()
	l.mu.Lock()
	l.subs = append(l.subs, subscription{id: id, fn: fn})
	l.mu.Unlock()
	return id
}

func (l *subscriberList) remove(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the list so callbacks run without the lock held
func (l *subscriberList) snapshot() []subscription {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]subscription(nil), l.subs...)
}

// Subscribe registers fn for engine messages. Delivery follows
// registration order.
func (e *Engine) Subscribe(fn Subscriber) uuid.UUID {
	return e.subscribers.add(fn)
}

// Unsubscribe removes a subscriber. It reports whether id was registered.
func (e *Engine) Unsubscribe(id uuid.UUID) bool {
	return e.subscribers.remove(id)
}
