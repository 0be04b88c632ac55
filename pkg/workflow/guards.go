package workflow

import "github.com/paygrid/payflow/pkg/models"

// operation names a transition family for guard lookup.
type operation string

const (
	opAbortTransfer       operation = "abort_transfer"
	opAcceptTransfer      operation = "accept_transfer"
	opAcknowledgeTransfer operation = "acknowledge_transfer"
	opCancelCheque        operation = "cancel_cheque"
	opClearTransfer       operation = "clear_transfer"
	opCompleteTransfer    operation = "complete_transfer"
	opConveyCheque        operation = "convey_cheque"
	opConveyTransfer      operation = "convey_transfer"
	opDepositCheque       operation = "deposit_cheque"
	opExpireCheque        operation = "expire_cheque"
	opFinishCheque        operation = "finish_cheque"
	opAcceptCheque        operation = "accept_cheque"
	opAcceptCash          operation = "accept_cash"
)

// legalStates maps each transition family to the current states it may fire
// from, per workflow kind. Convey-cash and the two race-tolerant transfer
// guards are handled separately below because they are not plain
// state-membership checks.
var legalStates = map[operation]map[models.Kind][]models.State{
	opAbortTransfer: {
		models.KindOutgoingTransfer: {models.StateInitiated},
		models.KindInternalTransfer: {models.StateInitiated},
	},
	opAcceptTransfer: {
		models.KindIncomingTransfer: {models.StateConveyed},
	},
	opCancelCheque: {
		models.KindOutgoingCheque:  {models.StateUnsent, models.StateConveyed},
		models.KindOutgoingInvoice: {models.StateUnsent, models.StateConveyed},
		models.KindOutgoingVoucher: {models.StateUnsent, models.StateConveyed},
	},
	opClearTransfer: {
		models.KindOutgoingTransfer: {models.StateAcknowledged},
		models.KindInternalTransfer: {models.StateConveyed},
	},
	opCompleteTransfer: {
		models.KindOutgoingTransfer: {models.StateAccepted},
		models.KindIncomingTransfer: {models.StateAccepted},
		models.KindInternalTransfer: {models.StateAccepted},
	},
	opConveyCheque: {
		models.KindOutgoingCheque:  {models.StateUnsent},
		models.KindOutgoingInvoice: {models.StateUnsent},
		models.KindOutgoingVoucher: {models.StateUnsent},
	},
	opDepositCheque: {
		models.KindIncomingCheque:  {models.StateConveyed},
		models.KindIncomingInvoice: {models.StateConveyed},
		models.KindIncomingVoucher: {models.StateConveyed},
	},
	opExpireCheque: {
		models.KindOutgoingCheque:  {models.StateUnsent, models.StateConveyed},
		models.KindOutgoingInvoice: {models.StateUnsent, models.StateConveyed},
		models.KindOutgoingVoucher: {models.StateUnsent, models.StateConveyed},
		models.KindIncomingCheque:  {models.StateConveyed},
		models.KindIncomingInvoice: {models.StateConveyed},
		models.KindIncomingVoucher: {models.StateConveyed},
	},
	opFinishCheque: {
		models.KindOutgoingCheque:  {models.StateAccepted},
		models.KindOutgoingInvoice: {models.StateAccepted},
		models.KindOutgoingVoucher: {models.StateAccepted},
	},
	opAcceptCheque: {
		models.KindOutgoingCheque:  {models.StateExpired, models.StateConveyed},
		models.KindOutgoingInvoice: {models.StateExpired, models.StateConveyed},
		models.KindOutgoingVoucher: {models.StateExpired, models.StateConveyed},
	},
	opAcceptCash: {
		models.KindIncomingCash: {models.StateConveyed},
	},
}

// guardAllows reports whether the transition family may fire from the
// workflow's current state.
func guardAllows(op operation, w *models.Workflow) bool {
	states, ok := legalStates[op][w.Type]
	if !ok {
		return false
	}

	for _, s := range states {
		if w.State == s {
			return true
		}
	}

	return false
}

// canConveyCash allows conveyance from any state except Expired.
func canConveyCash(w *models.Workflow) bool {
	return w.Type == models.KindOutgoingCash && w.State != models.StateExpired
}

// canAcknowledgeTransfer returns (allowed, advance). Acknowledgement and
// conveyance of an internal transfer can arrive on independent channels in
// either order, so a workflow that has already advanced to Conveyed still
// accepts the acknowledge event, recording it without regressing state.
func canAcknowledgeTransfer(w *models.Workflow) (bool, bool) {
	if w.Type != models.KindOutgoingTransfer && w.Type != models.KindInternalTransfer {
		return false, false
	}

	switch w.State {
	case models.StateInitiated:
		return true, true
	case models.StateConveyed:
		return true, false
	default:
		return false, false
	}
}

// canConveyTransfer returns (allowed, advance) for internal transfers.
// Conveyed is tolerated as a no-op success, mirroring the acknowledge
// tolerance for the opposite arrival order.
func canConveyTransfer(w *models.Workflow) (bool, bool) {
	if w.Type != models.KindInternalTransfer {
		return false, false
	}

	switch w.State {
	case models.StateInitiated, models.StateAcknowledged:
		return true, true
	case models.StateConveyed:
		return true, false
	default:
		return false, false
	}
}
