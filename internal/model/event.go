// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of a wheel event
type EventType string

const (
	EventWheelMessage      EventType = "WHEEL_MESSAGE"
	EventWheelConnected    EventType = "WHEEL_CONNECTED"
	EventWheelDisconnected EventType = "WHEEL_DISCONNECTED"
	EventConfigUpdate      EventType = "CONFIG_UPDATE"
)

// WheelEvent is a subscriber message wrapped for delivery outside the process
// (websocket clients, redis channel)
type WheelEvent struct {
	ID        uuid.UUID `json:"id"`
	EventType EventType `json:"event_type"`
	Wheel     string    `json:"wheel"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWheelEvent creates an event stamped with a fresh id and the current time
func NewWheelEvent(eventType EventType, wheel, message string) WheelEvent {
	return WheelEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Wheel:     wheel,
		Message:   message,
		Timestamp: time.Now(),
	}
}
