// Package events defines the notification event types emitted when payment
// workflows are mutated.
package events

import (
	"time"

	"github.com/paygrid/payflow/pkg/models"
)

type EventType string

// Bus topics.
const AccountTopic = "payflow.accounts"
const PushTopic = "payflow.push"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// AccountUpdatedEvent fires whenever a workflow touching an account is
	// mutated; the payload is the account ID.
	AccountUpdatedEvent EventType = "account.updated"

	// AccountPushEvent carries a structured account-event record for
	// external RPC consumers.
	AccountPushEvent EventType = "account.push"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// AccountUpdated signals downstream consumers that workflows touching the
// account must be re-read.
type AccountUpdated struct {
	BaseEvent

	AccountID string `json:"account_id"`
}

func (a AccountUpdated) GetType() EventType {
	return AccountUpdatedEvent
}

// AccountPush is the structured push-notification record for one workflow
// mutation: owner, resolved counterparty contact, signed amount and memo.
type AccountPush struct {
	BaseEvent

	Owner         string       `json:"owner"`
	ContactID     string       `json:"contact_id,omitempty"`
	WorkflowID    string       `json:"workflow_id"`
	WorkflowType  models.Kind  `json:"workflow_type"`
	WorkflowState models.State `json:"workflow_state"`
	AccountID     string       `json:"account_id,omitempty"`
	Amount        int64        `json:"amount"`
	PendingAmount int64        `json:"pending_amount"`
	Memo          string       `json:"memo,omitempty"`
	EventTime     time.Time    `json:"event_time"`
}

func (a AccountPush) GetType() EventType {
	return AccountPushEvent
}
