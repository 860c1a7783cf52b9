package events

import "time"

// RotationEvent is emitted after each successful session rotation.
type RotationEvent struct {
	BaseEvent
	Count   int       `json:"count"`
	Index   int       `json:"index"`
	Expires time.Time `json:"expires,omitzero"`
}
