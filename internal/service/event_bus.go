// internal/service/event_bus.go
package service

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smartwheel/internal/model"
)

// EventBus decouples engine subscribers from slow consumers. Publish never
// blocks: events are dropped when the bus or a subscriber is full.
type EventBus struct {
	subscribers map[uuid.UUID]chan model.WheelEvent
	events      chan model.WheelEvent
	mutex       sync.RWMutex
	logger      *zap.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewEventBus creates a new event bus
func NewEventBus(buffer int, logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[uuid.UUID]chan model.WheelEvent),
		events:      make(chan model.WheelEvent, buffer),
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			return
		}
	}
}

// Stop ends Start and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.done)

		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		for id, ch := range eb.subscribers {
			close(ch)
			delete(eb.subscribers, id)
		}
	})
}

// Publish publishes an event
func (eb *EventBus) Publish(event model.WheelEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
		)
	}
}

// Subscribe returns a channel receiving every event published after the call
func (eb *EventBus) Subscribe(buffer int) (uuid.UUID, <-chan model.WheelEvent) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	id := uuid.New()
	ch := make(chan model.WheelEvent, buffer)
	select {
	case <-eb.done:
		close(ch)
	default:
		eb.subscribers[id] = ch
	}
	return id, ch
}

// Unsubscribe closes and removes the subscription
func (eb *EventBus) Unsubscribe(id uuid.UUID) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if ch, ok := eb.subscribers[id]; ok {
		close(ch)
		delete(eb.subscribers, id)
	}
}

// SubscriberCount returns the number of live subscriptions
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.WheelEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for id, subscriber := range eb.subscribers {
		select {
		case subscriber <- event:
		default:
			eb.logger.Debug("Subscriber slow, dropping event", zap.String("subscriber", id.String()))
		}
	}
}
