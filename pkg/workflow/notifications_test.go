package workflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid/payflow/pkg/activity"
	"github.com/paygrid/payflow/pkg/channels/gochannel"
	"github.com/paygrid/payflow/pkg/contacts"
	"github.com/paygrid/payflow/pkg/eventbus"
	"github.com/paygrid/payflow/pkg/events"
	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/persistence/file"
)

type pushCollector struct {
	mu     sync.Mutex
	pushes []events.AccountPush
}

func (c *pushCollector) handle(_ context.Context, event any) error {
	push, ok := event.(*events.AccountPush)
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pushes = append(c.pushes, *push)

	return nil
}

func (c *pushCollector) all() []events.AccountPush {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]events.AccountPush, len(c.pushes))
	copy(out, c.pushes)

	return out
}

func newNotifyingEngine(t *testing.T) (*Engine, *pushCollector) {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	collector := &pushCollector{}

	require.NoError(t, bus.Handle(events.AccountPushEvent, collector.handle))
	require.NoError(t, bus.Subscribe(t.Context(), events.PushTopic))

	store := file.NewStore(t.TempDir())
	resolver := contacts.NewStaticResolver(map[string]string{
		"alice": "contact-alice",
		"bob":   "contact-bob",
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := NewEngine(logger, store, resolver, activity.NewMemoryRecorder(), bus, nil)

	return engine, collector
}

func waitForPushes(t *testing.T, collector *pushCollector, want int) []events.AccountPush {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		pushes := collector.all()
		if len(pushes) >= want {
			return pushes
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %d push notifications, got %d", want, len(collector.all()))

	return nil
}

func TestChequeLifecycle_PushNotifications(t *testing.T) {
	engine, collector := newNotifyingEngine(t)
	cheque := testCheque()

	_, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	pushes := waitForPushes(t, collector, 1)
	created := pushes[0]
	assert.Equal(t, "alice", created.Owner)
	assert.Equal(t, "contact-bob", created.ContactID)
	assert.Equal(t, models.KindOutgoingCheque, created.WorkflowType)
	assert.Equal(t, cheque.Amount, created.Amount)
	assert.Zero(t, created.PendingAmount)

	require.NoError(t, engine.SendCheque(t.Context(), "alice", cheque.ID, plainReply(), plainReply()))

	pushes = waitForPushes(t, collector, 2)
	conveyed := pushes[1]
	assert.Equal(t, models.StateConveyed, conveyed.WorkflowState)
	assert.Equal(t, cheque.Amount, conveyed.Amount)
	assert.Equal(t, cheque.Amount, conveyed.PendingAmount)

	raw, err := cheque.Serialize()
	require.NoError(t, err)

	require.NoError(t, engine.ClearCheque(t.Context(), "alice", "bob", &models.Receipt{
		Type:      models.ReceiptCheque,
		Reference: raw,
		Time:      time.Now().UTC(),
	}))

	pushes = waitForPushes(t, collector, 3)
	cleared := pushes[2]
	assert.Equal(t, models.StateAccepted, cleared.WorkflowState)
	assert.Equal(t, -cheque.Amount, cleared.Amount, "clearing debits the sender")
	assert.Zero(t, cleared.PendingAmount)
	assert.Equal(t, cheque.Memo, cleared.Memo)
}

func TestCreateTransfer_PushCarriesNegativeAmount(t *testing.T) {
	engine, collector := newNotifyingEngine(t)
	transfer := testTransfer()

	_, err := engine.CreateTransfer(t.Context(), "alice", transfer, plainReply())
	require.NoError(t, err)

	pushes := waitForPushes(t, collector, 1)
	assert.Equal(t, -transfer.Amount, pushes[0].Amount)
	assert.Equal(t, transfer.Amount, pushes[0].PendingAmount)
	assert.Equal(t, "contact-bob", pushes[0].ContactID)
	assert.Equal(t, transfer.SourceAccount, pushes[0].AccountID)
}

func TestAccountUpdates_Published(t *testing.T) {
	engine, _ := newNotifyingEngine(t)

	var (
		mu       sync.Mutex
		accounts []string
	)

	require.NoError(t, engine.bus.Handle(events.AccountUpdatedEvent, func(_ context.Context, event any) error {
		updated, ok := event.(*events.AccountUpdated)
		if !ok {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()

		accounts = append(accounts, updated.AccountID)

		return nil
	}))
	require.NoError(t, engine.bus.Subscribe(t.Context(), events.AccountTopic))

	cheque := testCheque()

	_, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)

	for {
		mu.Lock()
		n := len(accounts)
		mu.Unlock()

		if n >= 1 {
			break
		}

		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for account update")
		}

		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, accounts, cheque.SenderAccount)
}
