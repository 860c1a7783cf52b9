// Package events defines the event types a scan emits. Every event
// serializes to a single JSON object for the JSONL stream.
//
// The BaseEvent struct is embedded in each specific event type.
package events

import (
	"time"
)

// EventType represents the type of output event.
type EventType string

const (
	// EventTypeStart indicates a scan has started.
	EventTypeStart EventType = "start"
	// EventTypeResult indicates one target has been classified.
	EventTypeResult EventType = "result"
	// EventTypeRotation indicates the session token was replaced.
	EventTypeRotation EventType = "rotation"
	// EventTypeError indicates an error occurred.
	EventTypeError EventType = "error"
	// EventTypeComplete indicates a scan has finished or aborted.
	EventTypeComplete EventType = "complete"
)

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	ScanID() string
}

// BaseEvent contains common fields for all events.
// It is designed to be embedded in specific event types.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Scan string    `json:"scan_id"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ScanID returns the unique identifier for the scan that produced this event.
func (e BaseEvent) ScanID() string { return e.Scan }

// NewBase stamps an event of type t for scan.
func NewBase(t EventType, scan string) BaseEvent {
	return BaseEvent{Type: t, Time: time.Now().UTC(), Scan: scan}
}
