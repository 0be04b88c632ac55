package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/paygrid/payflow/pkg/activity"
	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/otelhelper"
)

var senderTransferKinds = []models.Kind{
	models.KindOutgoingTransfer,
	models.KindInternalTransfer,
}

var allTransferKinds = []models.Kind{
	models.KindOutgoingTransfer,
	models.KindIncomingTransfer,
	models.KindInternalTransfer,
}

// CreateTransfer originates the workflow for a transfer the owner is
// sending. A transfer whose sender and recipient resolve to the same nym is
// internal (between two of the owner's accounts) and tracks both accounts
// from the start. Returns the workflow ID; repeat calls for the same
// transfer item are idempotent.
func (e *Engine) CreateTransfer(ctx context.Context, owner string, transfer *models.Transfer, request *models.Message) (string, error) {
	ctx, span := e.startSpan(ctx, "create_transfer", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	err := e.validate.Struct(transfer)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrongInstrument, err)
	}

	kind := models.KindOutgoingTransfer
	if transfer.Internal() {
		kind = models.KindInternalTransfer
	}

	raw, err := transfer.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transfer: %w", err)
	}

	now := time.Now().UTC()

	workflowID, created, err := e.originate(ctx, owner, transfer.ID, senderTransferKinds, func() (*models.Workflow, error) {
		workflow, buildErr := e.newWorkflow(owner, kind, models.StateInitiated, transfer.ID, raw, transfer.Notary, now)
		if buildErr != nil {
			return nil, buildErr
		}

		if !transfer.Internal() {
			workflow.AddParty(transfer.RecipientNym)
		}

		// Source account first, destination second.
		workflow.AddAccount(transfer.SourceAccount)

		if transfer.Internal() {
			workflow.AddAccount(transfer.DestinationAccount)
		}

		workflow.AddUnit(transfer.Unit)

		if request != nil {
			msgRaw, msgErr := request.Serialize()
			if msgErr == nil {
				workflow.Events[0].Messages = append(workflow.Events[0].Messages, msgRaw)
			}

			workflow.Events[0].Method = models.TransportNotary
		}

		return workflow, nil
	})
	if err != nil || !created {
		return workflowID, err
	}

	e.publishAccountUpdate(ctx, transfer.SourceAccount)

	workflow, err := e.loadTyped(ctx, owner, workflowID, senderTransferKinds)
	if err != nil {
		return workflowID, err
	}

	contactID := ""
	if !transfer.Internal() {
		contactID = e.resolveContact(ctx, transfer.RecipientNym)
	}

	e.publishPush(ctx, workflow, contactID, transfer.SourceAccount, -transfer.Amount, transfer.Amount, transfer.Memo, now)

	return workflowID, nil
}

// AcknowledgeTransfer records the notary's acknowledgement of an initiated
// transfer. Acknowledgement and conveyance travel on independent channels
// and can arrive in either order, so a workflow already Conveyed still
// accepts the event without regressing state.
func (e *Engine) AcknowledgeTransfer(ctx context.Context, owner, transferID string, request, reply *models.Message) error {
	ctx, span := e.startSpan(ctx, "acknowledge_transfer",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, transferID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, transferID, senderTransferKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, senderTransferKinds, func(workflow *models.Workflow) error {
		allowed, advance := canAcknowledgeTransfer(workflow)
		if !allowed {
			return fmt.Errorf("%w: acknowledge %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		status := e.addMessageEvent(ctx, workflow, messageEvent{
			newState: models.StateAcknowledged,
			advance:  advance,
			kind:     models.EventAcknowledge,
			request:  request,
			reply:    reply,
		})
		if status != StatusSuccess {
			return fmt.Errorf("acknowledge not confirmed: status %s", status)
		}

		return nil
	})
}

// AbortTransfer voids a transfer that was initiated but never acknowledged
// by the notary.
func (e *Engine) AbortTransfer(ctx context.Context, owner, transferID string, request, reply *models.Message) error {
	ctx, span := e.startSpan(ctx, "abort_transfer",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, transferID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, transferID, senderTransferKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, senderTransferKinds, func(workflow *models.Workflow) error {
		if !guardAllows(opAbortTransfer, workflow) {
			return fmt.Errorf("%w: abort %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		status := e.addMessageEvent(ctx, workflow, messageEvent{
			newState: models.StateAborted,
			advance:  true,
			kind:     models.EventAbort,
			request:  request,
			reply:    reply,
		})
		if status != StatusSuccess {
			return fmt.Errorf("abort not confirmed: status %s", status)
		}

		return nil
	})
}

// ConveyTransfer processes a pending-transfer receipt from the owner's
// inbox. If sender and recipient are the same nym the transfer is internal
// and its workflow must already exist from CreateTransfer; a Convey event
// is appended (a workflow already Conveyed records it as a no-op success).
// Otherwise it is a genuine incoming transfer the owner never initiated,
// and a new workflow is created directly in Conveyed state, idempotently.
func (e *Engine) ConveyTransfer(ctx context.Context, owner string, receipt *models.Receipt) (string, error) {
	ctx, span := e.startSpan(ctx, "convey_transfer", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	if receipt.Type != models.ReceiptPending {
		return "", fmt.Errorf("%w: expected a pending receipt, got %s", ErrWrongInstrument, receipt.Type)
	}

	transfer, err := models.DeserializeTransfer(receipt.Reference)
	if err != nil {
		return "", fmt.Errorf("%w: receipt does not reference a transfer: %w", ErrWrongInstrument, err)
	}

	at := receipt.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if transfer.Internal() {
		located, locErr := e.lookupBySource(ctx, owner, transfer.ID, []models.Kind{models.KindInternalTransfer})
		if locErr != nil {
			return "", locErr
		}

		err = e.withWorkflow(ctx, owner, located.ID, []models.Kind{models.KindInternalTransfer}, func(workflow *models.Workflow) error {
			allowed, advance := canConveyTransfer(workflow)
			if !allowed {
				return fmt.Errorf("%w: convey %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
			}

			e.addReceiptEvent(ctx, workflow, models.StateConveyed, advance, models.EventConvey, receipt, at, "", transfer.DestinationAccount)

			return nil
		})
		if err != nil {
			return "", err
		}

		return located.ID, nil
	}

	raw, err := transfer.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transfer: %w", err)
	}

	workflowID, created, err := e.originate(ctx, owner, transfer.ID, []models.Kind{models.KindIncomingTransfer}, func() (*models.Workflow, error) {
		workflow, buildErr := e.newWorkflow(owner, models.KindIncomingTransfer, models.StateConveyed, transfer.ID, raw, transfer.Notary, at)
		if buildErr != nil {
			return nil, buildErr
		}

		workflow.AddParty(transfer.SenderNym)
		workflow.AddAccount(transfer.DestinationAccount)
		workflow.AddUnit(transfer.Unit)
		workflow.Events[0].Method = models.TransportNotary
		workflow.Events[0].Nym = transfer.SenderNym

		receiptRaw, receiptErr := receipt.Serialize()
		if receiptErr == nil {
			workflow.Events[0].Messages = append(workflow.Events[0].Messages, receiptRaw)
		}

		return workflow, nil
	})
	if err != nil || !created {
		return workflowID, err
	}

	e.publishAccountUpdate(ctx, transfer.DestinationAccount)

	workflow, err := e.loadTyped(ctx, owner, workflowID, []models.Kind{models.KindIncomingTransfer})
	if err != nil {
		return workflowID, err
	}

	contactID := e.resolveContact(ctx, transfer.SenderNym)
	if contactID != "" {
		e.recordActivity(ctx, workflow, contactID, activity.BoxIncoming, at)
	}

	e.publishPush(ctx, workflow, contactID, transfer.DestinationAccount, transfer.Amount, transfer.Amount, transfer.Memo, at)

	return workflowID, nil
}

// AcceptTransfer records the owner accepting an incoming transfer out of
// their inbox. Legal from Conveyed; advances to Accepted on success.
func (e *Engine) AcceptTransfer(ctx context.Context, owner, transferID string, request, reply *models.Message) error {
	ctx, span := e.startSpan(ctx, "accept_transfer",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, transferID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, transferID, []models.Kind{models.KindIncomingTransfer})
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, []models.Kind{models.KindIncomingTransfer}, func(workflow *models.Workflow) error {
		if !guardAllows(opAcceptTransfer, workflow) {
			return fmt.Errorf("%w: accept %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		status := e.addMessageEvent(ctx, workflow, messageEvent{
			newState: models.StateAccepted,
			advance:  true,
			kind:     models.EventAccept,
			request:  request,
			reply:    reply,
		})
		if status != StatusSuccess {
			return fmt.Errorf("accept not confirmed: status %s", status)
		}

		return nil
	})
}

// ClearTransfer processes the transfer receipt proving the counterparty
// accepted: an outgoing transfer clears from Acknowledged, an internal one
// from Conveyed. Advances to Accepted.
func (e *Engine) ClearTransfer(ctx context.Context, owner string, receipt *models.Receipt) error {
	ctx, span := e.startSpan(ctx, "clear_transfer", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	if receipt.Type != models.ReceiptTransfer {
		return fmt.Errorf("%w: expected a transfer receipt, got %s", ErrWrongInstrument, receipt.Type)
	}

	transfer, err := models.DeserializeTransfer(receipt.Reference)
	if err != nil {
		return fmt.Errorf("%w: receipt does not reference a transfer: %w", ErrWrongInstrument, err)
	}

	located, err := e.lookupBySource(ctx, owner, transfer.ID, senderTransferKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, senderTransferKinds, func(workflow *models.Workflow) error {
		if !guardAllows(opClearTransfer, workflow) {
			return fmt.Errorf("%w: clear %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		at := receipt.Time
		if at.IsZero() {
			at = time.Now().UTC()
		}

		nym := ""
		if !transfer.Internal() {
			nym = transfer.RecipientNym
		}

		e.addReceiptEvent(ctx, workflow, models.StateAccepted, true, models.EventAccept, receipt, at, nym, transfer.SourceAccount)

		contactID := e.resolveContact(ctx, nym)
		if contactID != "" {
			e.recordActivity(ctx, workflow, contactID, activity.BoxOutgoing, at)
		}

		e.publishPush(ctx, workflow, contactID, transfer.SourceAccount, -transfer.Amount, 0, transfer.Memo, at)

		return nil
	})
}

// CompleteTransfer records final settlement once the clearing receipt has
// itself been accepted out of the inbox. Legal from Accepted for every
// transfer kind; advances to Completed.
func (e *Engine) CompleteTransfer(ctx context.Context, owner, transferID string, receipt *models.Receipt) error {
	ctx, span := e.startSpan(ctx, "complete_transfer",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, transferID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, transferID, allTransferKinds)
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, allTransferKinds, func(workflow *models.Workflow) error {
		if !guardAllows(opCompleteTransfer, workflow) {
			return fmt.Errorf("%w: complete %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		at := receipt.Time
		if at.IsZero() {
			at = time.Now().UTC()
		}

		e.addReceiptEvent(ctx, workflow, models.StateCompleted, true, models.EventComplete, receipt, at, "", "")

		return nil
	})
}
