// Package activity records payment events into per-contact activity feeds.
package activity

import (
	"context"
	"sync"
	"time"
)

// Box identifies which side of an activity thread a payment event lands in.
type Box string

const (
	BoxIncoming Box = "incoming"
	BoxOutgoing Box = "outgoing"
	BoxPending  Box = "pending"
)

// PaymentEvent is one entry in a contact's activity feed.
type PaymentEvent struct {
	Owner      string    `json:"owner"`
	ContactID  string    `json:"contact_id"`
	Box        Box       `json:"box"`
	SourceID   string    `json:"source_id"`
	WorkflowID string    `json:"workflow_id"`
	Time       time.Time `json:"time"`
}

// Recorder is the activity-feed boundary. Recording failures are surfaced to
// the caller but never roll back the workflow mutation that triggered them.
type Recorder interface {
	RecordPaymentEvent(ctx context.Context, event PaymentEvent) error
}

// MemoryRecorder collects events in memory for tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []PaymentEvent
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) RecordPaymentEvent(_ context.Context, event PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

// Events returns a copy of everything recorded so far.
func (r *MemoryRecorder) Events() []PaymentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PaymentEvent, len(r.events))
	copy(out, r.events)

	return out
}
