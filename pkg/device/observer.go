package device

import (
	"github.com/backkem/sesame/pkg/message"
	"github.com/google/uuid"
)

// StatusEvent describes one status transition.
type StatusEvent struct {
	Device uuid.UUID
	Old    Status
	New    Status

	// Mech is the mechanism record that caused the transition, if any.
	Mech *message.MechStatus
}

// Observer receives status transitions.
type Observer interface {
	OnStatusChange(event StatusEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event StatusEvent)

// OnStatusChange calls f(event).
func (f ObserverFunc) OnStatusChange(event StatusEvent) {
	f(event)
}
