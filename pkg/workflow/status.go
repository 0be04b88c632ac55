package workflow

import "github.com/paygrid/payflow/pkg/models"

// Status is the outcome of evaluating a notary reply end-to-end.
type Status int

const (
	// StatusIndeterminate means the reply is present but the transaction
	// outcome could not be conclusively extracted. Callers must not treat
	// this as success or failure; the expected recovery is a fresh inbox
	// re-sync before retrying.
	StatusIndeterminate Status = iota

	// StatusFailure means the operation conclusively did not take effect.
	StatusFailure

	// StatusSuccess means the reply indicates success at every applicable
	// layer.
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "indeterminate"
	}
}

// ExtractStatus evaluates whether a notary-mediated operation succeeded
// end-to-end. A non-transaction message only needs the message-level flag;
// a transaction-carrying message additionally needs the transaction-level
// success flag from its embedded ledger. Extraction failures are reported
// as indeterminate, never coerced to a definite answer.
func ExtractStatus(reply *models.Message) Status {
	if reply == nil {
		return StatusFailure
	}

	if !reply.Success {
		return StatusFailure
	}

	if !reply.Type.IsTransaction() {
		return StatusSuccess
	}

	if reply.Ledger == nil {
		return StatusIndeterminate
	}

	tx := reply.Ledger.ResponseTransaction()
	if tx == nil {
		return StatusIndeterminate
	}

	if tx.Success {
		return StatusSuccess
	}

	return StatusFailure
}
