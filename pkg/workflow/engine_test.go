package workflow

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid/payflow/pkg/activity"
	"github.com/paygrid/payflow/pkg/contacts"
	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/persistence/file"
)

func newTestEngine(t *testing.T) (*Engine, *activity.MemoryRecorder, *file.Store) {
	t.Helper()

	store := file.NewStore(t.TempDir())
	recorder := activity.NewMemoryRecorder()
	resolver := contacts.NewStaticResolver(map[string]string{
		"alice": "contact-alice",
		"bob":   "contact-bob",
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := NewEngine(logger, store, resolver, recorder, nil, nil)

	return engine, recorder, store
}

func testCheque() *models.Cheque {
	return &models.Cheque{
		ID:            "cheque-1",
		Amount:        2500,
		Memo:          "rent",
		SenderNym:     "alice",
		SenderAccount: "acct-alice",
		RecipientNym:  "bob",
		Notary:        "notary-1",
		Unit:          "unit-usd",
		ValidTo:       time.Now().UTC().Add(24 * time.Hour),
	}
}

func testTransfer() *models.Transfer {
	return &models.Transfer{
		ID:                 "transfer-1",
		Amount:             1000,
		SenderNym:          "alice",
		RecipientNym:       "bob",
		SourceAccount:      "acct-alice",
		DestinationAccount: "acct-bob",
		Notary:             "notary-1",
		Unit:               "unit-usd",
	}
}

func internalTransfer() *models.Transfer {
	transfer := testTransfer()
	transfer.RecipientNym = "alice"
	transfer.DestinationAccount = "acct-alice-savings"

	return transfer
}

func plainReply() *models.Message {
	return &models.Message{
		Type:    models.MessageSendInstrument,
		Success: true,
		Time:    time.Now().UTC(),
	}
}

func txReply(success bool) *models.Message {
	return &models.Message{
		Type:    models.MessageNotarizeTransaction,
		Success: true,
		Time:    time.Now().UTC(),
		Ledger: &models.Ledger{Transactions: []*models.Transaction{
			{ID: "tx-1", Response: true, Success: success},
		}},
	}
}

func eventTypes(w *models.Workflow) []models.EventType {
	types := make([]models.EventType, 0, len(w.Events))
	for _, ev := range w.Events {
		types = append(types, ev.Type)
	}

	return types
}

func TestWriteCheque_Idempotent(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	first, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", first)
	require.NoError(t, err)
	assert.Equal(t, models.KindOutgoingCheque, workflow.Type)
	assert.Equal(t, models.StateUnsent, workflow.State)
	assert.Len(t, workflow.Events, 1, "repeat origination must not append events")
	assert.Equal(t, "cheque-1", workflow.SourceID())
	assert.Equal(t, []string{"bob"}, workflow.Parties)
	assert.Equal(t, []string{"acct-alice"}, workflow.Accounts)
}

func TestWriteCheque_RejectsMisclassifiedInstrument(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	invoice := testCheque()
	invoice.Amount = -2500

	_, err := engine.WriteCheque(t.Context(), "alice", invoice)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongInstrument)

	// The same instrument is accepted by its own origination path.
	id, err := engine.WriteInvoice(t.Context(), "alice", invoice)
	require.NoError(t, err)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.KindOutgoingInvoice, workflow.Type)
}

func TestWriteCheque_UnknownRecipientFailsClosed(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	cheque := testCheque()
	cheque.ID = "cheque-stranger"
	cheque.RecipientNym = "stranger"

	_, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingContact)

	// Nothing was persisted.
	_, err = engine.GetWorkflowBySource(t.Context(), "alice", "cheque-stranger")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateVoucher(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	voucher := testCheque()
	voucher.ID = "voucher-1"
	voucher.RemitterNym = "notary-1"
	voucher.RemitterAccount = "acct-remitter"

	id, err := engine.CreateVoucher(t.Context(), "alice", voucher)
	require.NoError(t, err)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.KindOutgoingVoucher, workflow.Type)
	assert.Equal(t, models.StateUnsent, workflow.State)
}

func TestChequeLifecycle_SenderSide(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)
	cheque := testCheque()

	id, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	err = engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), plainReply())
	require.NoError(t, err)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateConveyed, workflow.State)

	raw, err := cheque.Serialize()
	require.NoError(t, err)

	err = engine.ClearCheque(t.Context(), "alice", "bob", &models.Receipt{
		Type:      models.ReceiptCheque,
		Reference: raw,
		Time:      time.Now().UTC(),
	})
	require.NoError(t, err)

	workflow, err = engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateAccepted, workflow.State)

	err = engine.FinishCheque(t.Context(), "alice", cheque.ID, &models.Receipt{
		Type: models.ReceiptAcceptPending,
		Time: time.Now().UTC(),
	})
	require.NoError(t, err)

	workflow, err = engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, workflow.State)
	assert.Equal(t, []models.EventType{
		models.EventCreate,
		models.EventConvey,
		models.EventAccept,
		models.EventComplete,
	}, eventTypes(workflow))

	events := recorder.Events()
	require.NotEmpty(t, events)

	for _, ev := range events {
		assert.Equal(t, "alice", ev.Owner)
		assert.Equal(t, "contact-bob", ev.ContactID)
		assert.Equal(t, id, ev.WorkflowID)
	}
}

func TestSendCheque_FailedReplyDoesNotAdvance(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	id, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	failed := plainReply()
	failed.Success = false

	err = engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), failed)
	require.Error(t, err)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateUnsent, workflow.State)
	require.Len(t, workflow.Events, 2, "the failed attempt is still recorded")
	assert.False(t, workflow.Events[1].Success)

	// The guard still permits a retry after the failure.
	err = engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), plainReply())
	require.NoError(t, err)

	workflow, err = engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateConveyed, workflow.State)
	assert.Len(t, workflow.Events, 3)
}

func TestSendCheque_GuardRejectsSecondConvey(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	_, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	require.NoError(t, engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), plainReply()))

	err = engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), plainReply())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransitionRejected)
}

func TestCancelCheque(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	id, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	require.NoError(t, engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), plainReply()))
	require.NoError(t, engine.CancelCheque(t.Context(), "alice", cheque.ID, plainReply(), txReply(true)))

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, workflow.State)

	// Cancelled is terminal for the convey guard.
	err = engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), plainReply())
	assert.ErrorIs(t, err, ErrTransitionRejected)
}

func TestChequeLifecycle_RecipientSide(t *testing.T) {
	engine, recorder, _ := newTestEngine(t)
	cheque := testCheque()

	id, err := engine.ReceiveCheque(t.Context(), "bob", cheque, &models.Message{
		Type:      models.MessageSendInstrument,
		SenderNym: "alice",
		Success:   true,
		Time:      time.Now().UTC(),
	})
	require.NoError(t, err)

	// Repeat delivery of the same instrument is idempotent.
	again, err := engine.ReceiveCheque(t.Context(), "bob", cheque, nil)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	workflow, err := engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.KindIncomingCheque, workflow.Type)
	assert.Equal(t, models.StateConveyed, workflow.State)
	assert.Len(t, workflow.Events, 1)

	err = engine.DepositCheque(t.Context(), "bob", "acct-bob", cheque, plainReply(), txReply(true))
	require.NoError(t, err)

	workflow, err = engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, workflow.State)
	assert.Contains(t, workflow.Accounts, "acct-bob")

	// Second deposit of the same cheque rejects at the guard.
	err = engine.DepositCheque(t.Context(), "bob", "acct-bob", cheque, plainReply(), txReply(true))
	assert.ErrorIs(t, err, ErrTransitionRejected)

	var incoming int

	for _, ev := range recorder.Events() {
		if ev.Box == activity.BoxIncoming {
			incoming++
		}
	}

	assert.Equal(t, 2, incoming, "receive and deposit each record one incoming entry")
}

func TestImportCheque_OutOfBand(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	id, err := engine.ImportCheque(t.Context(), "bob", cheque)
	require.NoError(t, err)

	workflow, err := engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateConveyed, workflow.State)
	require.Len(t, workflow.Events, 1)
	assert.Empty(t, workflow.Events[0].Messages)
	assert.Equal(t, models.TransportOutOfBand, workflow.Events[0].Method)
}

func TestDepositCheque_IndeterminateReply(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	id, err := engine.ReceiveCheque(t.Context(), "bob", cheque, nil)
	require.NoError(t, err)

	// Message-level success but no embedded ledger: the outcome cannot be
	// determined and the state must not move either way.
	noLedger := &models.Message{
		Type:    models.MessageNotarizeTransaction,
		Success: true,
		Time:    time.Now().UTC(),
	}

	err = engine.DepositCheque(t.Context(), "bob", "acct-bob", cheque, plainReply(), noLedger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indeterminate")

	workflow, err := engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateConveyed, workflow.State)
}

func TestTransferLifecycle_Outgoing(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	transfer := testTransfer()

	id, err := engine.CreateTransfer(t.Context(), "alice", transfer, plainReply())
	require.NoError(t, err)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.KindOutgoingTransfer, workflow.Type)
	assert.Equal(t, models.StateInitiated, workflow.State)
	assert.Equal(t, []string{"acct-alice"}, workflow.Accounts)

	err = engine.AcknowledgeTransfer(t.Context(), "alice", transfer.ID, plainReply(), txReply(true))
	require.NoError(t, err)

	workflow, err = engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateAcknowledged, workflow.State)

	raw, err := transfer.Serialize()
	require.NoError(t, err)

	err = engine.ClearTransfer(t.Context(), "alice", &models.Receipt{
		Type:      models.ReceiptTransfer,
		Reference: raw,
		Time:      time.Now().UTC(),
	})
	require.NoError(t, err)

	workflow, err = engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateAccepted, workflow.State)

	err = engine.CompleteTransfer(t.Context(), "alice", transfer.ID, &models.Receipt{
		Type: models.ReceiptAcceptPending,
		Time: time.Now().UTC(),
	})
	require.NoError(t, err)

	workflow, err = engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, workflow.State)
	assert.Equal(t, []models.EventType{
		models.EventCreate,
		models.EventAcknowledge,
		models.EventAccept,
		models.EventComplete,
	}, eventTypes(workflow))
}

func TestAbortTransfer(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	transfer := testTransfer()

	id, err := engine.CreateTransfer(t.Context(), "alice", transfer, nil)
	require.NoError(t, err)

	require.NoError(t, engine.AbortTransfer(t.Context(), "alice", transfer.ID, plainReply(), txReply(true)))

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateAborted, workflow.State)

	// An aborted transfer cannot be acknowledged.
	err = engine.AcknowledgeTransfer(t.Context(), "alice", transfer.ID, plainReply(), txReply(true))
	assert.ErrorIs(t, err, ErrTransitionRejected)
}

func TestClearTransfer_WrongReceiptType(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	err := engine.ClearTransfer(t.Context(), "alice", &models.Receipt{Type: models.ReceiptPending})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongInstrument)

	_, err = engine.ConveyTransfer(t.Context(), "alice", &models.Receipt{Type: models.ReceiptTransfer})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongInstrument)
}

func TestInternalTransfer_AcknowledgeConveyEitherOrder(t *testing.T) {
	run := func(t *testing.T, conveyFirst bool) {
		t.Helper()

		engine, _, _ := newTestEngine(t)
		transfer := internalTransfer()

		raw, err := transfer.Serialize()
		require.NoError(t, err)

		id, err := engine.CreateTransfer(t.Context(), "alice", transfer, plainReply())
		require.NoError(t, err)

		workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
		require.NoError(t, err)
		assert.Equal(t, models.KindInternalTransfer, workflow.Type)
		assert.Equal(t, []string{"acct-alice", "acct-alice-savings"}, workflow.Accounts,
			"source account first, destination second")

		receipt := &models.Receipt{
			Type:      models.ReceiptPending,
			Reference: raw,
			Time:      time.Now().UTC(),
		}

		if conveyFirst {
			_, err = engine.ConveyTransfer(t.Context(), "alice", receipt)
			require.NoError(t, err)
			require.NoError(t, engine.AcknowledgeTransfer(t.Context(), "alice", transfer.ID, plainReply(), txReply(true)))
		} else {
			require.NoError(t, engine.AcknowledgeTransfer(t.Context(), "alice", transfer.ID, plainReply(), txReply(true)))
			_, err = engine.ConveyTransfer(t.Context(), "alice", receipt)
			require.NoError(t, err)
		}

		workflow, err = engine.GetWorkflow(t.Context(), "alice", id)
		require.NoError(t, err)
		assert.Equal(t, models.StateConveyed, workflow.State, "either arrival order converges on Conveyed")
		assert.Len(t, workflow.Events, 3, "create, acknowledge and convey are all recorded")
	}

	t.Run("convey then acknowledge", func(t *testing.T) { run(t, true) })
	t.Run("acknowledge then convey", func(t *testing.T) { run(t, false) })
}

func TestInternalTransfer_ClearFromConveyed(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	transfer := internalTransfer()

	raw, err := transfer.Serialize()
	require.NoError(t, err)

	id, err := engine.CreateTransfer(t.Context(), "alice", transfer, nil)
	require.NoError(t, err)

	_, err = engine.ConveyTransfer(t.Context(), "alice", &models.Receipt{
		Type:      models.ReceiptPending,
		Reference: raw,
	})
	require.NoError(t, err)

	err = engine.ClearTransfer(t.Context(), "alice", &models.Receipt{
		Type:      models.ReceiptTransfer,
		Reference: raw,
	})
	require.NoError(t, err)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateAccepted, workflow.State)
}

func TestTransferLifecycle_Incoming(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	transfer := testTransfer()

	raw, err := transfer.Serialize()
	require.NoError(t, err)

	receipt := &models.Receipt{
		Type:      models.ReceiptPending,
		Reference: raw,
		Time:      time.Now().UTC(),
	}

	// Bob never initiated this transfer, so conveyance creates the workflow.
	id, err := engine.ConveyTransfer(t.Context(), "bob", receipt)
	require.NoError(t, err)

	again, err := engine.ConveyTransfer(t.Context(), "bob", receipt)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	workflow, err := engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.KindIncomingTransfer, workflow.Type)
	assert.Equal(t, models.StateConveyed, workflow.State)
	assert.Len(t, workflow.Events, 1)

	require.NoError(t, engine.AcceptTransfer(t.Context(), "bob", transfer.ID, plainReply(), txReply(true)))

	workflow, err = engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateAccepted, workflow.State)

	require.NoError(t, engine.CompleteTransfer(t.Context(), "bob", transfer.ID, &models.Receipt{
		Type: models.ReceiptAcceptPending,
	}))

	workflow, err = engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, workflow.State)
}

func TestCashLifecycle(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	purse := &models.Purse{
		ID:     "purse-1",
		Value:  500,
		Unit:   "unit-usd",
		Notary: "notary-1",
	}

	id, err := engine.AllocateCash(t.Context(), "alice", purse)
	require.NoError(t, err)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateUnsent, workflow.State)

	require.NoError(t, engine.SendCash(t.Context(), "alice", purse.ID, plainReply(), plainReply()))

	// Re-sending a conveyed purse is legal and records another attempt.
	require.NoError(t, engine.SendCash(t.Context(), "alice", purse.ID, plainReply(), plainReply()))

	workflow, err = engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateConveyed, workflow.State)
	assert.Len(t, workflow.Events, 3)
}

func TestReceiveAndAcceptCash(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	purse := &models.Purse{
		ID:        "purse-2",
		Value:     500,
		Unit:      "unit-usd",
		Notary:    "notary-1",
		SenderNym: "alice",
	}

	id, err := engine.ReceiveCash(t.Context(), "bob", purse, &models.Message{
		Type:      models.MessageSendInstrument,
		SenderNym: "alice",
		Success:   true,
		Time:      time.Now().UTC(),
	})
	require.NoError(t, err)

	again, err := engine.ReceiveCash(t.Context(), "bob", purse, nil)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, engine.AcceptCash(t.Context(), "bob", purse.ID, "acct-bob", plainReply(), txReply(true)))

	workflow, err := engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateAccepted, workflow.State)
	assert.Contains(t, workflow.Accounts, "acct-bob")

	err = engine.AcceptCash(t.Context(), "bob", purse.ID, "acct-bob", plainReply(), txReply(true))
	assert.ErrorIs(t, err, ErrTransitionRejected)
}

func TestGetWorkflow_KindRestriction(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	id, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	_, err = engine.GetWorkflow(t.Context(), "alice", id, models.KindOutgoingTransfer)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = engine.GetWorkflowBySource(t.Context(), "alice", cheque.ID, models.KindIncomingCash)
	assert.ErrorIs(t, err, ErrNotFound)

	workflow, err := engine.GetWorkflowBySource(t.Context(), "alice", cheque.ID, models.KindOutgoingCheque)
	require.NoError(t, err)
	assert.Equal(t, id, workflow.ID)
}

func TestConcurrentOrigination_SingleWorkflow(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	const callers = 8

	ids := make([]string, callers)

	var wg sync.WaitGroup

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id, err := engine.WriteCheque(t.Context(), "alice", cheque)
			require.NoError(t, err)
			ids[i] = id
		}()
	}

	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	workflow, err := engine.GetWorkflow(t.Context(), "alice", ids[0])
	require.NoError(t, err)
	assert.Len(t, workflow.Events, 1)
}

func TestConcurrentDeposit_OneWins(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	_, err := engine.ReceiveCheque(t.Context(), "bob", cheque, nil)
	require.NoError(t, err)

	errs := make([]error, 2)

	var wg sync.WaitGroup

	for i := range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs[i] = engine.DepositCheque(t.Context(), "bob", "acct-bob", cheque, plainReply(), txReply(true))
		}()
	}

	wg.Wait()

	var succeeded, rejected int

	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, ErrTransitionRejected)
			rejected++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
}

func TestConcurrentOperations_DifferentWorkflowsDoNotBlock(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	first := testCheque()
	second := testCheque()
	second.ID = "cheque-2"

	_, err := engine.WriteCheque(t.Context(), "alice", first)
	require.NoError(t, err)
	_, err = engine.WriteCheque(t.Context(), "alice", second)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for _, chequeID := range []string{first.ID, second.ID} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			require.NoError(t, engine.SendCheque(t.Context(), "alice", chequeID, plainReply(), plainReply()))
		}()
	}

	wg.Wait()

	for _, chequeID := range []string{first.ID, second.ID} {
		workflow, err := engine.GetWorkflowBySource(t.Context(), "alice", chequeID)
		require.NoError(t, err)
		assert.Equal(t, models.StateConveyed, workflow.State)
	}
}

func TestEventsAreAppendOnly(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	id, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	before, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)

	require.NoError(t, engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), plainReply()))

	after, err := engine.GetWorkflow(t.Context(), "alice", id)
	require.NoError(t, err)

	require.Greater(t, len(after.Events), len(before.Events))

	for i, ev := range before.Events {
		assert.Equal(t, ev.Type, after.Events[i].Type)
		assert.Equal(t, ev.Time.Unix(), after.Events[i].Time.Unix())
	}
}
