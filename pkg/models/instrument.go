package models

import (
	"encoding/json"
	"time"
)

// InstrumentKind classifies a cheque-family instrument by inspecting the
// object itself: an invoice is a cheque with a negative amount, a voucher is
// a cheque drawn on the notary's remitter account, and a cancellation names
// the drawer as its own payee.
type InstrumentKind string

const (
	InstrumentCheque       InstrumentKind = "cheque"
	InstrumentInvoice      InstrumentKind = "invoice"
	InstrumentVoucher      InstrumentKind = "voucher"
	InstrumentCancellation InstrumentKind = "cancellation"
)

// Cheque is a pre-validated cheque-family instrument handed in at the engine
// boundary. Signature verification has already happened upstream.
type Cheque struct {
	ID               string    `json:"id"                validate:"required"`
	Amount           int64     `json:"amount"`
	Memo             string    `json:"memo,omitempty"`
	SenderNym        string    `json:"sender_nym"        validate:"required"`
	SenderAccount    string    `json:"sender_account"    validate:"required"`
	RecipientNym     string    `json:"recipient_nym,omitempty"`
	RemitterNym      string    `json:"remitter_nym,omitempty"`
	RemitterAccount  string    `json:"remitter_account,omitempty"`
	Notary           string    `json:"notary"            validate:"required"`
	Unit             string    `json:"unit"              validate:"required"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidTo          time.Time `json:"valid_to"`
}

// Kind classifies the instrument by sign and remitter-field inspection.
func (c *Cheque) Kind() InstrumentKind {
	switch {
	case c.RemitterNym != "" || c.RemitterAccount != "":
		return InstrumentVoucher
	case c.Amount < 0:
		return InstrumentInvoice
	case c.Amount == 0 || (c.RecipientNym != "" && c.RecipientNym == c.SenderNym):
		return InstrumentCancellation
	default:
		return InstrumentCheque
	}
}

// Expired reports whether the instrument's validity window has closed.
func (c *Cheque) Expired(now time.Time) bool {
	return !c.ValidTo.IsZero() && now.After(c.ValidTo)
}

// Serialize produces the opaque snapshot form stored on a workflow.
func (c *Cheque) Serialize() ([]byte, error) {
	return json.Marshal(c)
}

// DeserializeCheque restores a cheque from a source snapshot or receipt
// reference.
func DeserializeCheque(raw []byte) (*Cheque, error) {
	var cheque Cheque

	err := json.Unmarshal(raw, &cheque)
	if err != nil {
		return nil, err
	}

	return &cheque, nil
}

// Transfer is a pre-validated account-to-account transfer item.
type Transfer struct {
	ID                 string `json:"id"                  validate:"required"`
	Amount             int64  `json:"amount"              validate:"gt=0"`
	Memo               string `json:"memo,omitempty"`
	SenderNym          string `json:"sender_nym"          validate:"required"`
	RecipientNym       string `json:"recipient_nym"       validate:"required"`
	SourceAccount      string `json:"source_account"      validate:"required"`
	DestinationAccount string `json:"destination_account" validate:"required"`
	Notary             string `json:"notary"              validate:"required"`
	Unit               string `json:"unit"                validate:"required"`
}

// Internal reports whether sender and recipient resolve to the same nym,
// which makes this a transfer between two of one owner's accounts.
func (t *Transfer) Internal() bool {
	return t.SenderNym == t.RecipientNym
}

// Serialize produces the opaque snapshot form stored on a workflow.
func (t *Transfer) Serialize() ([]byte, error) {
	return json.Marshal(t)
}

// DeserializeTransfer restores a transfer item from a snapshot or receipt
// reference.
func DeserializeTransfer(raw []byte) (*Transfer, error) {
	var transfer Transfer

	err := json.Unmarshal(raw, &transfer)
	if err != nil {
		return nil, err
	}

	return &transfer, nil
}

// Purse is a pre-validated cash purse. Unlike the other instruments the
// whole serialized purse is the workflow source, not a single item.
type Purse struct {
	ID        string `json:"id"     validate:"required"`
	Value     int64  `json:"value"  validate:"gt=0"`
	Unit      string `json:"unit"   validate:"required"`
	Notary    string `json:"notary" validate:"required"`
	SenderNym string `json:"sender_nym,omitempty"`
}

// Serialize produces the opaque snapshot form stored on a workflow.
func (p *Purse) Serialize() ([]byte, error) {
	return json.Marshal(p)
}

// DeserializePurse restores a purse from a source snapshot.
func DeserializePurse(raw []byte) (*Purse, error) {
	var purse Purse

	err := json.Unmarshal(raw, &purse)
	if err != nil {
		return nil, err
	}

	return &purse, nil
}
