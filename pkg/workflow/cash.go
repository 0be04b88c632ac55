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

// AllocateCash originates the outgoing workflow for a cash purse withdrawn
// for sending. The whole serialized purse is the workflow source. Repeat
// calls for the same purse are idempotent.
func (e *Engine) AllocateCash(ctx context.Context, owner string, purse *models.Purse) (string, error) {
	ctx, span := e.startSpan(ctx, "allocate_cash", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	err := e.validate.Struct(purse)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrongInstrument, err)
	}

	raw, err := purse.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize purse: %w", err)
	}

	now := time.Now().UTC()

	workflowID, _, err := e.originate(ctx, owner, purse.ID, []models.Kind{models.KindOutgoingCash}, func() (*models.Workflow, error) {
		workflow, buildErr := e.newWorkflow(owner, models.KindOutgoingCash, models.StateUnsent, purse.ID, raw, purse.Notary, now)
		if buildErr != nil {
			return nil, buildErr
		}

		workflow.AddUnit(purse.Unit)

		return workflow, nil
	})

	return workflowID, err
}

// SendCash records conveyance of an allocated purse to the recipient. Cash
// has the loosest guard of all instruments: conveyance is legal from any
// state except Expired, and re-sending an already conveyed purse simply
// records another attempt.
func (e *Engine) SendCash(ctx context.Context, owner, purseID string, request, reply *models.Message) error {
	ctx, span := e.startSpan(ctx, "send_cash",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, purseID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, purseID, []models.Kind{models.KindOutgoingCash})
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, []models.Kind{models.KindOutgoingCash}, func(workflow *models.Workflow) error {
		if !canConveyCash(workflow) {
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

		return nil
	})
}

// ReceiveCash originates the incoming workflow for a purse conveyed by a
// counterparty, directly in Conveyed state. Idempotent per purse.
func (e *Engine) ReceiveCash(ctx context.Context, owner string, purse *models.Purse, message *models.Message) (string, error) {
	ctx, span := e.startSpan(ctx, "receive_cash", attribute.String(otelhelper.OwnerKey, owner))
	defer span.End()

	err := e.validate.Struct(purse)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrongInstrument, err)
	}

	raw, err := purse.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize purse: %w", err)
	}

	now := time.Now().UTC()

	workflowID, created, err := e.originate(ctx, owner, purse.ID, []models.Kind{models.KindIncomingCash}, func() (*models.Workflow, error) {
		workflow, buildErr := e.newWorkflow(owner, models.KindIncomingCash, models.StateConveyed, purse.ID, raw, purse.Notary, now)
		if buildErr != nil {
			return nil, buildErr
		}

		workflow.AddParty(purse.SenderNym)
		workflow.AddUnit(purse.Unit)

		if message != nil {
			msgRaw, msgErr := message.Serialize()
			if msgErr == nil {
				workflow.Events[0].Messages = append(workflow.Events[0].Messages, msgRaw)
			}

			workflow.Events[0].Method = models.TransportNotary
			workflow.Events[0].Nym = purse.SenderNym
		}

		return workflow, nil
	})
	if err != nil || !created {
		return workflowID, err
	}

	workflow, err := e.loadTyped(ctx, owner, workflowID, []models.Kind{models.KindIncomingCash})
	if err != nil {
		return workflowID, err
	}

	contactID := e.resolveContact(ctx, purse.SenderNym)
	if contactID != "" {
		e.recordActivity(ctx, workflow, contactID, activity.BoxIncoming, now)
	}

	e.publishPush(ctx, workflow, contactID, "", purse.Value, purse.Value, "", now)

	return workflowID, nil
}

// AcceptCash records the owner depositing a received purse into an
// account. Legal from Conveyed; advances to Accepted on success.
func (e *Engine) AcceptCash(ctx context.Context, owner, purseID, accountID string, request, reply *models.Message) error {
	ctx, span := e.startSpan(ctx, "accept_cash",
		attribute.String(otelhelper.OwnerKey, owner),
		attribute.String(otelhelper.SourceIDKey, purseID))
	defer span.End()

	located, err := e.lookupBySource(ctx, owner, purseID, []models.Kind{models.KindIncomingCash})
	if err != nil {
		return err
	}

	return e.withWorkflow(ctx, owner, located.ID, []models.Kind{models.KindIncomingCash}, func(workflow *models.Workflow) error {
		if !guardAllows(opAcceptCash, workflow) {
			return fmt.Errorf("%w: accept %s from %s", ErrTransitionRejected, workflow.Type, workflow.State)
		}

		status := e.addMessageEvent(ctx, workflow, messageEvent{
			newState: models.StateAccepted,
			advance:  true,
			kind:     models.EventAccept,
			request:  request,
			reply:    reply,
			account:  accountID,
		})
		if status != StatusSuccess {
			return fmt.Errorf("accept not confirmed: status %s", status)
		}

		return nil
	})
}
