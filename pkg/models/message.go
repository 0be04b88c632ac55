package models

import (
	"encoding/json"
	"time"
)

// MessageType names a notary protocol message. Only a fixed allow-list of
// types carries a nested ledger/transaction payload; for those, end-to-end
// success additionally requires the transaction-level success flag.
type MessageType string

const (
	MessageNotarizeTransaction MessageType = "notarize_transaction"
	MessageProcessInbox        MessageType = "process_inbox"
	MessageProcessNymbox       MessageType = "process_nymbox"
	MessageSendInstrument      MessageType = "send_instrument"
	MessageRegisterAccount     MessageType = "register_account"
)

// IsTransaction reports whether messages of this type carry an embedded
// ledger whose transaction-level success flag must also be consulted.
func (t MessageType) IsTransaction() bool {
	switch t {
	case MessageNotarizeTransaction, MessageProcessInbox, MessageProcessNymbox:
		return true
	default:
		return false
	}
}

// Transaction is one item inside an embedded ledger payload.
type Transaction struct {
	ID       string `json:"id"`
	Success  bool   `json:"success"`
	Amount   int64  `json:"amount,omitempty"`
	Account  string `json:"account,omitempty"`
	Response bool   `json:"response"`
}

// Ledger is the transaction payload embedded in a transaction-carrying
// message.
type Ledger struct {
	Account      string         `json:"account,omitempty"`
	Transactions []*Transaction `json:"transactions"`
}

// ResponseTransaction returns the first response-side transaction item, or
// nil when the ledger carries none. A missing response item means the
// message's end-to-end outcome cannot be determined.
func (l *Ledger) ResponseTransaction() *Transaction {
	for _, tx := range l.Transactions {
		if tx != nil && tx.Response {
			return tx
		}
	}

	return nil
}

// Message is a pre-validated notary protocol message (request or reply) at
// the engine boundary. The transport layer has already verified signatures.
type Message struct {
	Type         MessageType `json:"type"`
	SenderNym    string      `json:"sender_nym,omitempty"`
	RecipientNym string      `json:"recipient_nym,omitempty"`
	Account      string      `json:"account,omitempty"`
	Notary       string      `json:"notary,omitempty"`
	Endpoint     string      `json:"endpoint,omitempty"`
	Time         time.Time   `json:"time"`
	Success      bool        `json:"success"`
	Ledger       *Ledger     `json:"ledger,omitempty"`
}

// Serialize produces the opaque blob attached to workflow events.
func (m *Message) Serialize() ([]byte, error) {
	return json.Marshal(m)
}

// ReceiptType classifies a transaction receipt observed during inbox
// processing.
type ReceiptType string

const (
	ReceiptPending       ReceiptType = "pending"
	ReceiptTransfer      ReceiptType = "transfer_receipt"
	ReceiptAcceptPending ReceiptType = "accept_pending"
	ReceiptCheque        ReceiptType = "cheque_receipt"
	ReceiptVoucher       ReceiptType = "voucher_receipt"
)

// Receipt is a pre-validated transaction receipt. Receipts drive the
// clearing events for which no direct notary reply exists: the evidence
// arrives by processing the inbox instead.
type Receipt struct {
	Type              ReceiptType `json:"type"`
	Reference         []byte      `json:"reference,omitempty"`
	Account           string      `json:"account,omitempty"`
	PurportedAccount  string      `json:"purported_account,omitempty"`
	Notary            string      `json:"notary,omitempty"`
	Time              time.Time   `json:"time"`
}

// Serialize produces the opaque blob attached to workflow events.
func (r *Receipt) Serialize() ([]byte, error) {
	return json.Marshal(r)
}
