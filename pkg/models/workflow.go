// Package models defines the core domain models for payment workflow tracking.
package models

import (
	"encoding/json"
	"time"
)

// Kind identifies which payment state machine a workflow follows.
type Kind string

const (
	KindOutgoingCheque   Kind = "outgoing_cheque"
	KindIncomingCheque   Kind = "incoming_cheque"
	KindOutgoingInvoice  Kind = "outgoing_invoice"
	KindIncomingInvoice  Kind = "incoming_invoice"
	KindOutgoingVoucher  Kind = "outgoing_voucher"
	KindIncomingVoucher  Kind = "incoming_voucher"
	KindOutgoingTransfer Kind = "outgoing_transfer"
	KindIncomingTransfer Kind = "incoming_transfer"
	KindInternalTransfer Kind = "internal_transfer"
	KindOutgoingCash     Kind = "outgoing_cash"
	KindIncomingCash     Kind = "incoming_cash"
)

// Kinds returns every supported workflow kind.
func Kinds() []Kind {
	return []Kind{
		KindOutgoingCheque,
		KindIncomingCheque,
		KindOutgoingInvoice,
		KindIncomingInvoice,
		KindOutgoingVoucher,
		KindIncomingVoucher,
		KindOutgoingTransfer,
		KindIncomingTransfer,
		KindInternalTransfer,
		KindOutgoingCash,
		KindIncomingCash,
	}
}

// IsValid reports whether k is one of the supported workflow kinds.
func (k Kind) IsValid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}

	return false
}

// IsChequeLike reports whether k tracks a cheque, invoice or voucher.
func (k Kind) IsChequeLike() bool {
	switch k {
	case KindOutgoingCheque, KindIncomingCheque,
		KindOutgoingInvoice, KindIncomingInvoice,
		KindOutgoingVoucher, KindIncomingVoucher:
		return true
	default:
		return false
	}
}

// IsTransfer reports whether k tracks an account-to-account transfer.
func (k Kind) IsTransfer() bool {
	switch k {
	case KindOutgoingTransfer, KindIncomingTransfer, KindInternalTransfer:
		return true
	default:
		return false
	}
}

// IsCash reports whether k tracks a cash purse.
func (k Kind) IsCash() bool {
	return k == KindOutgoingCash || k == KindIncomingCash
}

// State is the lifecycle state of a workflow.
type State string

const (
	StateUnsent       State = "unsent"
	StateConveyed     State = "conveyed"
	StateInitiated    State = "initiated"
	StateAcknowledged State = "acknowledged"
	StateAccepted     State = "accepted"
	StateCompleted    State = "completed"
	StateAborted      State = "aborted"
	StateCancelled    State = "cancelled"
	StateExpired      State = "expired"
	StateRejected     State = "rejected"
	StateError        State = "error"
)

// SourceSnapshot embeds one serialized instrument in a workflow. The engine
// never interprets Raw beyond round-tripping it; only the originating
// operation knows the concrete instrument type.
type SourceSnapshot struct {
	ID       string `json:"id"`
	Revision uint32 `json:"revision"`
	Raw      []byte `json:"raw"`
}

// Workflow is the state-tracking aggregate for one financial instrument's
// journey between parties. The ID is random at creation, never derived from
// instrument content, so a legitimate re-creation of the same instrument can
// be detected through the source index instead of colliding.
type Workflow struct {
	ID      string  `json:"id"      validate:"required"`
	Owner   string  `json:"owner"   validate:"required"`
	Type    Kind    `json:"type"    validate:"required"`
	State   State   `json:"state"   validate:"required"`
	Version uint32  `json:"version"`
	Notary  string  `json:"notary,omitempty"`

	Source   []SourceSnapshot `json:"source"`
	Events   []Event          `json:"events"`
	Parties  []string         `json:"parties,omitempty"`
	Accounts []string         `json:"accounts,omitempty"`
	Units    []string         `json:"units,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceID returns the unique ID of the workflow's primary instrument
// snapshot. All currently supported kinds carry exactly one snapshot.
func (w *Workflow) SourceID() string {
	if len(w.Source) == 0 {
		return ""
	}

	return w.Source[0].ID
}

// HasParty reports whether nym is already recorded as a counterparty.
func (w *Workflow) HasParty(nym string) bool {
	for _, p := range w.Parties {
		if p == nym {
			return true
		}
	}

	return false
}

// AddParty records a counterparty nym. The first event naming a counterparty
// wins; later calls with a different nym are ignored.
func (w *Workflow) AddParty(nym string) {
	if nym == "" || len(w.Parties) > 0 {
		return
	}

	w.Parties = append(w.Parties, nym)
}

// FirstParty returns the first recorded counterparty nym, or empty.
func (w *Workflow) FirstParty() string {
	if len(w.Parties) == 0 {
		return ""
	}

	return w.Parties[0]
}

// HasAccount reports whether accountID is already attached to the workflow.
func (w *Workflow) HasAccount(accountID string) bool {
	for _, a := range w.Accounts {
		if a == accountID {
			return true
		}
	}

	return false
}

// AddAccount appends accountID if not already present. Accounts are ordered:
// source account first, destination second for transfers.
func (w *Workflow) AddAccount(accountID string) {
	if accountID == "" || w.HasAccount(accountID) {
		return
	}

	w.Accounts = append(w.Accounts, accountID)
}

// AddUnit records an instrument-definition identifier if not already present.
func (w *Workflow) AddUnit(unitID string) {
	if unitID == "" {
		return
	}

	for _, u := range w.Units {
		if u == unitID {
			return
		}
	}

	w.Units = append(w.Units, unitID)
}

// Clone returns a deep copy of the workflow. Lookups hand out owned snapshots
// so two concurrent callers never alias the same event slice.
func (w *Workflow) Clone() *Workflow {
	out := *w

	out.Source = make([]SourceSnapshot, len(w.Source))
	copy(out.Source, w.Source)

	for i := range out.Source {
		out.Source[i].Raw = append([]byte(nil), w.Source[i].Raw...)
	}

	out.Events = make([]Event, len(w.Events))
	copy(out.Events, w.Events)

	for i := range out.Events {
		out.Events[i].Messages = make([][]byte, len(w.Events[i].Messages))
		for j := range w.Events[i].Messages {
			out.Events[i].Messages[j] = append([]byte(nil), w.Events[i].Messages[j]...)
		}
	}

	out.Parties = append([]string(nil), w.Parties...)
	out.Accounts = append([]string(nil), w.Accounts...)
	out.Units = append([]string(nil), w.Units...)

	return &out
}

// Marshal serializes the workflow for storage.
func (w *Workflow) Marshal() ([]byte, error) {
	return json.Marshal(w)
}

// UnmarshalWorkflow deserializes a stored workflow record.
func UnmarshalWorkflow(data []byte) (*Workflow, error) {
	var workflow Workflow

	err := json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}
