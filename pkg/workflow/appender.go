package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/otelhelper"
)

// messageEvent carries the inputs for a request/reply-driven append: the
// state to advance to when the reply proves success, the event type, and
// the protocol messages to attach.
type messageEvent struct {
	newState models.State
	advance  bool
	kind     models.EventType
	request  *models.Message
	reply    *models.Message
	account  string
}

// addMessageEvent appends one event to the workflow and persists it. The
// caller must hold the workflow's lock for the whole guard-check + append
// sequence. State advances only when the reply indicates end-to-end
// success; failed attempts are still recorded so callers can retry the
// outer operation safely.
func (e *Engine) addMessageEvent(ctx context.Context, workflow *models.Workflow, p messageEvent) Status {
	status := ExtractStatus(p.reply)
	success := status == StatusSuccess

	if !success {
		otelhelper.MarkFailed(ctx, fmt.Errorf("%s reply did not prove success: %s", p.kind, status),
			attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
			attribute.String(otelhelper.WorkflowStateKey, string(workflow.State)))
	}

	if success {
		if p.advance {
			workflow.State = p.newState
		}

		workflow.AddAccount(p.account)
	}

	versions, _ := models.VersionsFor(workflow.Type)

	event := models.Event{
		Version: versions.Event,
		Type:    p.kind,
		Method:  models.TransportNotary,
		Success: success,
	}

	if p.request != nil {
		raw, err := p.request.Serialize()
		if err == nil {
			event.Messages = append(event.Messages, raw)
		}

		event.Endpoint = p.request.Endpoint
		event.Time = p.request.Time
	}

	if p.reply != nil {
		raw, err := p.reply.Serialize()
		if err == nil {
			event.Messages = append(event.Messages, raw)
		}

		if p.reply.Endpoint != "" {
			event.Endpoint = p.reply.Endpoint
		}

		// Reply time wins when present.
		if !p.reply.Time.IsZero() {
			event.Time = p.reply.Time
		}
	}

	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	event.Nym = counterparty(workflow.Owner, p.request, p.reply)
	workflow.AddParty(event.Nym)

	workflow.Events = append(workflow.Events, event)

	e.persist(ctx, workflow)

	if success && p.account != "" {
		e.publishAccountUpdate(ctx, p.account)
	}

	return status
}

// addReceiptEvent appends a clearing event observed from inbox processing,
// where no direct reply to the original request exists: the receipt itself
// is the evidence of success. The caller must hold the workflow's lock.
func (e *Engine) addReceiptEvent(
	ctx context.Context,
	workflow *models.Workflow,
	newState models.State,
	advance bool,
	kind models.EventType,
	receipt *models.Receipt,
	at time.Time,
	nym, account string,
) {
	if advance {
		workflow.State = newState
	}

	workflow.AddAccount(account)
	workflow.AddParty(nym)

	versions, _ := models.VersionsFor(workflow.Type)

	if at.IsZero() {
		at = time.Now().UTC()
	}

	event := models.Event{
		Version: versions.Event,
		Type:    kind,
		Method:  models.TransportNotary,
		Time:    at,
		Success: true,
		Nym:     nym,
	}

	raw, err := receipt.Serialize()
	if err == nil {
		event.Messages = append(event.Messages, raw)
	}

	workflow.Events = append(workflow.Events, event)

	e.persist(ctx, workflow)

	if account != "" {
		e.publishAccountUpdate(ctx, account)
	}
}

// addLocalEvent appends an event observed locally, with no protocol
// messages attached (e.g. expiry). The caller must hold the workflow's
// lock.
func (e *Engine) addLocalEvent(ctx context.Context, workflow *models.Workflow, newState models.State, kind models.EventType, at time.Time) {
	workflow.State = newState

	versions, _ := models.VersionsFor(workflow.Type)

	if at.IsZero() {
		at = time.Now().UTC()
	}

	workflow.Events = append(workflow.Events, models.Event{
		Version: versions.Event,
		Type:    kind,
		Method:  models.TransportOutOfBand,
		Time:    at,
		Success: true,
	})

	e.persist(ctx, workflow)
}

// counterparty picks the first nym named by the messages that is not the
// workflow owner.
func counterparty(owner string, msgs ...*models.Message) string {
	for _, msg := range msgs {
		if msg == nil {
			continue
		}

		if msg.RecipientNym != "" && msg.RecipientNym != owner {
			return msg.RecipientNym
		}

		if msg.SenderNym != "" && msg.SenderNym != owner {
			return msg.SenderNym
		}
	}

	return ""
}
