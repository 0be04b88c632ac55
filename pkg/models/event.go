package models

import "time"

// EventType classifies one lifecycle occurrence on a workflow.
type EventType string

const (
	EventCreate      EventType = "create"
	EventConvey      EventType = "convey"
	EventAccept      EventType = "accept"
	EventComplete    EventType = "complete"
	EventAbort       EventType = "abort"
	EventCancel      EventType = "cancel"
	EventAcknowledge EventType = "acknowledge"
	EventExpire      EventType = "expire"
)

// TransportMethod records how the messages attached to an event moved.
type TransportMethod string

const (
	TransportNotary    TransportMethod = "notary"
	TransportOutOfBand TransportMethod = "out_of_band"
)

// Event is an immutable record of one lifecycle occurrence. Events are only
// ever appended, never mutated or removed.
type Event struct {
	Version  uint32          `json:"version"`
	Type     EventType       `json:"type"`
	Messages [][]byte        `json:"messages,omitempty"`
	Method   TransportMethod `json:"method"`
	Endpoint string          `json:"endpoint,omitempty"`
	Time     time.Time       `json:"time"`
	Success  bool            `json:"success"`
	Nym      string          `json:"nym,omitempty"`
}
