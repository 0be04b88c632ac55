package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/paygrid/payflow/pkg/activity"
	"github.com/paygrid/payflow/pkg/contacts"
	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/otelhelper"
)

var outgoingChequeKinds = []models.Kind{
	models.KindOutgoingCheque,
	models.KindOutgoingInvoice,
	models.KindOutgoingVoucher,
}

var incomingChequeKinds = []models.Kind{
	models.KindIncomingCheque,
	models.KindIncomingInvoice,
	models.KindIncomingVoucher,
}

func outgoingKindFor(kind models.InstrumentKind) (models.Kind, bool) {
	switch kind {
	case models.InstrumentCheque:
		return models.KindOutgoingCheque, true
	case models.InstrumentInvoice:
		return models.KindOutgoingInvoice, true
	case models.InstrumentVoucher:
		return models.KindOutgoingVoucher, true
	default:
		return "", false
	}
}

func incomingKindFor(kind models.InstrumentKind) (models.Kind, bool) {
	switch kind {
	case models.InstrumentCheque:
		return models.KindIncomingCheque, true
	case models.InstrumentInvoice:
		return models.KindIncomingInvoice, true
	case models.InstrumentVoucher:
		return models.KindIncomingVoucher, true
	default:
		return "", false
	}
}

// withWorkflow runs fn on a fresh snapshot of the workflow while holding
// its exclusive lock, so guard-check and event-append cannot interleave
// with a concurrent mutation of the same workflow.
func (e *Engine) withWorkflow(ctx context.Context, owner, workflowID string, kinds []models.Kind, fn func(*models.Workflow) error) error {
	release := e.locks.Acquire(workflowKey(owner, workflowID))
	defer release()

	workflow, err := e.loadTyped(ctx, owner, workflowID, kinds)
	if err != nil {
		return err
	}

	return fn(workflow)
}

// WriteCheque originates the outgoing workflow for a freshly written plain
// cheque. Vouchers, invoices and cancellations are rejected here; they have
// their own origination paths. Returns the workflow ID; calling twice for
// the same cheque returns the same ID without further mutation. Fails
// closed when a recipient nym is named but no contact is known for it.
func (e *Engine) WriteCheque(ctx context.Context, owner string, cheque *models.Cheque) (string, error) {
	ctx, span := e.startSpan(ctx, "write_cheque", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	return e.originateChequeLike(ctx, owner, cheque, models.InstrumentCheque)
}

// WriteInvoice originates the outgoing workflow for an invoice (a
// cheque-family instrument with a negative amount).
func (e *Engine) WriteInvoice(ctx context.Context, owner string, invoice *models.Cheque) (string, error) {
	ctx, span := e.startSpan(ctx, "write_invoice", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	return e.originateChequeLike(ctx, owner, invoice, models.InstrumentInvoice)
}

// CreateVoucher originates the outgoing workflow for a voucher (a cheque
// drawn on the notary's remitter account).
func (e *Engine) CreateVoucher(ctx context.Context, owner string, voucher *models.Cheque) (string, error) {
	ctx, span := e.startSpan(ctx, "create_voucher", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	return e.originateChequeLike(ctx, owner, voucher, models.InstrumentVoucher)
}

func (e *Engine) originateChequeLike(ctx context.Context, owner string, cheque *models.Cheque, want models.InstrumentKind) (string, error) {
	err := e.validate.Struct(cheque)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrongInstrument, err)
	}

	if got := cheque.Kind(); got != want {
		e.logger.DebugContext(ctx, "instrument kind mismatch on origination",
			"owner", owner, "want", want, "got", got)

		return "", fmt.Errorf("%w: expected %s, got %s", ErrWrongInstrument, want, got)
	}

	kind, ok := outgoingKindFor(want)
	if !ok {
		return "", fmt.Errorf("%w: %s has no outgoing workflow", ErrWrongInstrument, want)
	}

	contactID := ""

	if cheque.RecipientNym != "" {
		contactID = e.resolveContact(ctx, cheque.RecipientNym)
		if contactID == "" {
			return "", fmt.Errorf("%w: %s: %w", ErrMissingContact, cheque.RecipientNym, contacts.ErrUnknownNym)
		}
	}

	raw, err := cheque.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize instrument: %w", err)
	}

	now := time.Now().UTC()

	workflowID, created, err := e.originate(ctx, owner, cheque.ID, []models.Kind{kind}, func() (*models.Workflow, error) {
		workflow, err := e.newWorkflow(owner, kind, models.StateUnsent, cheque.ID, raw, cheque.Notary, now)
		if err != nil {
			return nil, err
		}

		workflow.AddParty(cheque.RecipientNym)
		workflow.AddAccount(cheque.SenderAccount)
		workflow.AddUnit(cheque.Unit)

		return workflow, nil
	})
	if err != nil || !created {
		return workflowID, err
	}

	workflow, err := e.loadTyped(ctx, owner, workflowID, []models.Kind{kind})
	if err != nil {
		return workflowID, err
	}

	if contactID != "" {
		e.recordActivity(ctx, workflow, contactID, activity.BoxOutgoing, now)
	}

	e.publishAccountUpdate(ctx, cheque.SenderAccount)
	e.publishPush(ctx, workflow, contactID, cheque.SenderAccount, cheque.Amount, 0, cheque.Memo, now)

	return workflowID, nil
}

// SendCheque records the initial conveyance of an outgoing cheque-like
// instrument to its recipient. Legal only from Unsent; the state advances
// to Conveyed when the reply proves success end-to-end.
func (e *Engine) SendCheque(ctx context.Context, owner, chequeID string, request, reply *models.Message) error {
	ctx, span := e.startSpan(ctx, "send_cheque",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, chequeID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, chequeID, outgoingChequeKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, outgoingChequeKinds, func(workflow *models.Workflow) error {
		if !guardAllows(opConveyCheque, workflow) {
			return fmt.Errorf("%w: convey %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		status := e.addMessageEvent(ctx, workflow, messageEvent{
			newState: models.StateConveyed,
			advance:  true,
			kind:     models.EventConvey,
			request:  request,
			reply:    reply,
		})
		if status != StatusSuccess {
			return fmt.Errorf("send not confirmed: status %s", status)
		}

		contactID := e.resolveContact(ctx, workflow.FirstParty())

		cheque, chequeErr := models.DeserializeCheque(workflow.Source[0].Raw)
		if chequeErr == nil {
			e.publishPush(ctx, workflow, contactID, cheque.SenderAccount, cheque.Amount, cheque.Amount, cheque.Memo, time.Now().UTC())
		}

		return nil
	})
}

// CancelCheque voids an outgoing cheque-like instrument before it is
// settled. Legal from Unsent or Conveyed.
func (e *Engine) CancelCheque(ctx context.Context, owner, chequeID string, request, reply *models.Message) error {
	ctx, span := e.startSpan(ctx, "cancel_cheque",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, chequeID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, chequeID, outgoingChequeKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, outgoingChequeKinds, func(workflow *models.Workflow) error {
		if !guardAllows(opCancelCheque, workflow) {
			return fmt.Errorf("%w: cancel %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		status := e.addMessageEvent(ctx, workflow, messageEvent{
			newState: models.StateCancelled,
			advance:  true,
			kind:     models.EventCancel,
			request:  request,
			reply:    reply,
		})
		if status != StatusSuccess {
			return fmt.Errorf("cancel not confirmed: status %s", status)
		}

		return nil
	})
}

// DepositCheque records the owner depositing a received cheque-like
// instrument into their account. Legal from Conveyed; advances to
// Completed on success.
func (e *Engine) DepositCheque(ctx context.Context, owner, accountID string, cheque *models.Cheque, request, reply *models.Message) error {
	ctx, span := e.startSpan(ctx, "deposit_cheque",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.AccountIDKey, accountID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, cheque.ID, incomingChequeKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, incomingChequeKinds, func(workflow *models.Workflow) error {
		if !guardAllows(opDepositCheque, workflow) {
			return fmt.Errorf("%w: deposit %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		status := e.addMessageEvent(ctx, workflow, messageEvent{
			newState: models.StateCompleted,
			advance:  true,
			kind:     models.EventAccept,
			request:  request,
			reply:    reply,
			account:  accountID,
		})
		if status != StatusSuccess {
			return fmt.Errorf("deposit not confirmed: status %s", status)
		}

		contactID := e.resolveContact(ctx, cheque.SenderNym)
		at := time.Now().UTC()

		e.recordActivity(ctx, workflow, contactID, activity.BoxIncoming, at)
		e.publishPush(ctx, workflow, contactID, accountID, cheque.Amount, 0, cheque.Memo, at)

		return nil
	})
}

// ClearCheque processes the cheque receipt observed in the sender's inbox
// after the recipient deposited: the sender-side workflow advances to
// Accepted. The push notification carries the sign-flipped amount, debiting
// the sender.
func (e *Engine) ClearCheque(ctx context.Context, owner, recipientNym string, receipt *models.Receipt) error {
	ctx, span := e.startSpan(ctx, "clear_cheque", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	if recipientNym == "" {
		return fmt.Errorf("%w: clearing requires the recipient nym", ErrWrongInstrument)
	}

	cheque, err := models.DeserializeCheque(receipt.Reference)
	if err != nil {
		return fmt.Errorf("%w: receipt does not reference a cheque: %w", ErrWrongInstrument, err)
	}

	located, err := e.lookupBySource(ctx, owner, cheque.ID, outgoingChequeKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, outgoingChequeKinds, func(workflow *models.Workflow) error {
		if !guardAllows(opAcceptCheque, workflow) {
			return fmt.Errorf("%w: clear %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		at := receipt.Time
		if at.IsZero() {
			at = time.Now().UTC()
		}

		e.addReceiptEvent(ctx, workflow, models.StateAccepted, true, models.EventAccept, receipt, at, recipientNym, cheque.SenderAccount)

		contactID := e.resolveContact(ctx, recipientNym)
		if contactID != "" {
			e.recordActivity(ctx, workflow, contactID, activity.BoxOutgoing, at)
		}

		e.publishPush(ctx, workflow, contactID, cheque.SenderAccount, -cheque.Amount, 0, cheque.Memo, at)

		return nil
	})
}

// FinishCheque records final settlement of an outgoing cheque-like
// instrument once the clearing receipt itself has been accepted out of the
// inbox. Legal from Accepted; advances to Completed.
func (e *Engine) FinishCheque(ctx context.Context, owner, chequeID string, receipt *models.Receipt) error {
	ctx, span := e.startSpan(ctx, "finish_cheque",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, chequeID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, chequeID, outgoingChequeKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, outgoingChequeKinds, func(workflow *models.Workflow) error {
		if !guardAllows(opFinishCheque, workflow) {
			return fmt.Errorf("%w: finish %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		at := receipt.Time
		if at.IsZero() {
			at = time.Now().UTC()
		}

		e.addReceiptEvent(ctx, workflow, models.StateCompleted, true, models.EventComplete, receipt, at, "", "")

		return nil
	})
}

// ExpireCheque marks a cheque-like workflow expired once the instrument's
// validity window has closed without settlement.
func (e *Engine) ExpireCheque(ctx context.Context, owner string, cheque *models.Cheque) error {
	ctx, span := e.startSpan(ctx, "expire_cheque",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, cheque.ID))
	defer span.End()

	if !cheque.Expired(time.Now().UTC()) {
		return fmt.Errorf("%w: instrument is still valid", ErrWrongInstrument)
	}

	kinds := append(append([]models.Kind{}, outgoingChequeKinds...), incomingChequeKinds...)

	located, err := e.lookupBySource(ctx, owner, cheque.ID, kinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, kinds, func(workflow *models.Workflow) error {
		if !guardAllows(opExpireCheque, workflow) {
			return fmt.Errorf("%w: expire %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		e.addLocalEvent(ctx, workflow, models.StateExpired, models.EventExpire, time.Now().UTC())

		return nil
	})
}

// ReceiveCheque originates the incoming workflow for a cheque-like
// instrument conveyed by the counterparty. The workflow is created directly
// in Conveyed state; repeat delivery of the same instrument is idempotent.
func (e *Engine) ReceiveCheque(ctx context.Context, owner string, cheque *models.Cheque, message *models.Message) (string, error) {
	ctx, span := e.startSpan(ctx, "receive_cheque", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	return e.receiveChequeLike(ctx, owner, cheque, message)
}

// ImportCheque originates the incoming workflow for a cheque-like
// instrument handed over out of band, with no conveying message.
func (e *Engine) ImportCheque(ctx context.Context, owner string, cheque *models.Cheque) (string, error) {
	ctx, span := e.startSpan(ctx, "import_cheque", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	return e.receiveChequeLike(ctx, owner, cheque, nil)
}

func (e *Engine) receiveChequeLike(ctx context.Context, owner string, cheque *models.Cheque, message *models.Message) (string, error) {
	err := e.validate.Struct(cheque)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrongInstrument, err)
	}

	kind, ok := incomingKindFor(cheque.Kind())
	if !ok {
		e.logger.DebugContext(ctx, "refusing to receive instrument",
			"owner", owner, "instrument_kind", cheque.Kind())

		return "", fmt.Errorf("%w: cannot receive a %s", ErrWrongInstrument, cheque.Kind())
	}

	raw, err := cheque.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize instrument: %w", err)
	}

	now := time.Now().UTC()

	workflowID, created, err := e.originate(ctx, owner, cheque.ID, []models.Kind{kind}, func() (*models.Workflow, error) {
		workflow, err := e.newWorkflow(owner, kind, models.StateConveyed, cheque.ID, raw, cheque.Notary, now)
		if err != nil {
			return nil, err
		}

		workflow.AddParty(cheque.SenderNym)
		workflow.AddUnit(cheque.Unit)

		if message != nil {
			msgRaw, msgErr := message.Serialize()
			if msgErr == nil {
				workflow.Events[0].Messages = append(workflow.Events[0].Messages, msgRaw)
			}

			workflow.Events[0].Method = models.TransportNotary
			workflow.Events[0].Nym = cheque.SenderNym
		}

		return workflow, nil
	})
	if err != nil || !created {
		return workflowID, err
	}

	workflow, err := e.loadTyped(ctx, owner, workflowID, []models.Kind{kind})
	if err != nil {
		return workflowID, err
	}

	contactID := e.resolveContact(ctx, cheque.SenderNym)
	if contactID != "" {
		e.recordActivity(ctx, workflow, contactID, activity.BoxIncoming, now)
	}

	e.publishPush(ctx, workflow, contactID, "", cheque.Amount, cheque.Amount, cheque.Memo, now)

	return workflowID, nil
}
