// Package workflow implements the payment workflow state-machine engine:
// per-instrument lifecycle tracking with strict transition legality,
// idempotent event logging and side-channel notification.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/paygrid/payflow/pkg/activity"
	"github.com/paygrid/payflow/pkg/contacts"
	"github.com/paygrid/payflow/pkg/eventbus"
	"github.com/paygrid/payflow/pkg/events"
	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/otelhelper"
	"github.com/paygrid/payflow/pkg/persistence"
)

// Engine-level error taxonomy. Guard and input rejections are ordinary,
// expected outcomes (double-processing a receipt rejects at the guard);
// persistence failures after validation are not.
var (
	// ErrWrongInstrument indicates a malformed or misclassified domain
	// object, e.g. a voucher passed where a plain cheque is expected.
	ErrWrongInstrument = errors.New("instrument does not match operation")

	// ErrNotFound indicates no workflow exists for a follow-up action that
	// assumes prior origination.
	ErrNotFound = errors.New("no workflow found for operation")

	// ErrTransitionRejected indicates the guard refused the transition from
	// the current state. Safe to treat as an idempotent no-op when retrying.
	ErrTransitionRejected = errors.New("transition not legal from current state")

	// ErrMissingContact indicates an origination requires a known
	// counterparty contact and none was resolved.
	ErrMissingContact = errors.New("recipient nym has no known contact")
)

// Engine orchestrates every lifecycle operation: locate or create the
// workflow record, acquire its lock, validate the transition, append the
// event and emit notifications.
type Engine struct {
	logger   *slog.Logger
	store    persistence.RecordStore
	contacts contacts.Resolver
	activity activity.Recorder
	bus      eventbus.EventBus
	locks    *lockRegistry
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewEngine wires the engine to its collaborators. A nil tracer falls back
// to the globally registered provider.
func NewEngine(
	logger *slog.Logger,
	store persistence.RecordStore,
	resolver contacts.Resolver,
	recorder activity.Recorder,
	bus eventbus.EventBus,
	tracer trace.Tracer,
) *Engine {
	if tracer == nil {
		tracer = otel.Tracer("payflow-engine")
	}

	return &Engine{
		logger:   logger,
		store:    store,
		contacts: resolver,
		activity: recorder,
		bus:      bus,
		locks:    newLockRegistry(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   tracer,
	}
}

func (e *Engine) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(otelhelper.OperationKey, op))

	return otelhelper.StartSpan(ctx, e.tracer, "workflow."+op, attrs...)
}

// newWorkflow builds a fresh aggregate around one instrument snapshot, in
// the given initial state, with its Create event already appended. The ID
// is random, never derived from instrument content.
func (e *Engine) newWorkflow(
	owner string,
	kind models.Kind,
	state models.State,
	sourceID string,
	raw []byte,
	notary string,
	at time.Time,
) (*models.Workflow, error) {
	versions, ok := models.VersionsFor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported workflow kind %q", ErrWrongInstrument, kind)
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}

	workflow := &models.Workflow{
		ID:      uuid.New().String(),
		Owner:   owner,
		Type:    kind,
		State:   state,
		Version: versions.Workflow,
		Notary:  notary,
		Source: []models.SourceSnapshot{{
			ID:       sourceID,
			Revision: versions.Source,
			Raw:      raw,
		}},
		Events: []models.Event{{
			Version: versions.Event,
			Type:    models.EventCreate,
			Method:  models.TransportOutOfBand,
			Time:    at,
			Success: true,
		}},
		CreatedAt: at,
		UpdatedAt: at,
	}

	return workflow, nil
}

// originate performs the lookup-or-create step under the origination lock
// for (owner, sourceID): at most one workflow per source instrument ever
// exists, and a repeat call returns the existing workflow's ID.
func (e *Engine) originate(
	ctx context.Context,
	owner, sourceID string,
	kinds []models.Kind,
	build func() (*models.Workflow, error),
) (string, bool, error) {
	release := e.locks.Acquire(originationKey(owner, sourceID))
	defer release()

	existingID, err := e.store.LookupBySource(ctx, owner, sourceID)
	if err == nil {
		existing, loadErr := e.loadTyped(ctx, owner, existingID, kinds)
		if loadErr != nil {
			return "", false, loadErr
		}

		e.logger.DebugContext(ctx, "origination is idempotent, returning existing workflow",
			"owner", owner, "source_id", sourceID, "workflow_id", existing.ID)

		return existing.ID, false, nil
	}

	if !persistence.IsNotFound(err) {
		return "", false, err
	}

	workflow, err := build()
	if err != nil {
		return "", false, err
	}

	e.persist(ctx, workflow)

	return workflow.ID, true, nil
}

// persist stores the workflow and treats any failure as a fatal invariant
// violation: the engine trusts its own serialization, so a rejected record
// means the persisted data model is already suspect.
func (e *Engine) persist(ctx context.Context, workflow *models.Workflow) {
	workflow.UpdatedAt = time.Now().UTC()

	err := e.store.Store(ctx, workflow)
	if err != nil {
		e.logger.ErrorContext(ctx, "workflow persistence failed, aborting",
			"workflow_id", workflow.ID, "owner", workflow.Owner, "error", err)
		panic(fmt.Sprintf("workflow %s: persistence invariant violated: %v", workflow.ID, err))
	}
}

// publishAccountUpdate emits the account ID on the account pub/sub channel.
func (e *Engine) publishAccountUpdate(ctx context.Context, accountID string) {
	if e.bus == nil || accountID == "" {
		return
	}

	event := events.AccountUpdated{
		BaseEvent: events.BaseEvent{
			ID:        e.bus.GenerateID(),
			Type:      events.AccountUpdatedEvent,
			Timestamp: time.Now().UTC(),
		},
		AccountID: accountID,
	}

	err := e.bus.Publish(ctx, events.AccountTopic, accountID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish account update",
			"account_id", accountID, "error", err)
	}
}

// publishPush emits the structured account-event record for RPC consumers.
func (e *Engine) publishPush(ctx context.Context, workflow *models.Workflow, contactID, accountID string, amount, pending int64, memo string, at time.Time) {
	if e.bus == nil {
		return
	}

	event := events.AccountPush{
		BaseEvent: events.BaseEvent{
			ID:        e.bus.GenerateID(),
			Type:      events.AccountPushEvent,
			Timestamp: time.Now().UTC(),
		},
		Owner:         workflow.Owner,
		ContactID:     contactID,
		WorkflowID:    workflow.ID,
		WorkflowType:  workflow.Type,
		WorkflowState: workflow.State,
		AccountID:     accountID,
		Amount:        amount,
		PendingAmount: pending,
		Memo:          memo,
		EventTime:     at,
	}

	err := e.bus.Publish(ctx, events.PushTopic, workflow.ID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish push notification",
			"workflow_id", workflow.ID, "error", err)
	}
}

// recordActivity writes a payment event into the contact's activity feed.
func (e *Engine) recordActivity(ctx context.Context, workflow *models.Workflow, contactID string, box activity.Box, at time.Time) {
	if e.activity == nil || contactID == "" {
		return
	}

	err := e.activity.RecordPaymentEvent(ctx, activity.PaymentEvent{
		Owner:      workflow.Owner,
		ContactID:  contactID,
		Box:        box,
		SourceID:   workflow.SourceID(),
		WorkflowID: workflow.ID,
		Time:       at,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to record activity event",
			"workflow_id", workflow.ID, "contact_id", contactID, "error", err)
	}
}

// resolveContact maps a counterparty nym to a contact ID, returning empty
// when the nym is unknown or blank.
func (e *Engine) resolveContact(ctx context.Context, nym string) string {
	if e.contacts == nil || nym == "" {
		return ""
	}

	contactID, err := e.contacts.ContactIDForNym(ctx, nym)
	if err != nil {
		return ""
	}

	return contactID
}
