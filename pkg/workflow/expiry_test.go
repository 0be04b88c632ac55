package workflow

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid/payflow/pkg/models"
)

func TestSweeper_ExpiresLapsedCheques(t *testing.T) {
	engine, _, store := newTestEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stale := testCheque()
	stale.ID = "cheque-stale"
	stale.ValidTo = time.Now().UTC().Add(-time.Hour)

	fresh := testCheque()
	fresh.ID = "cheque-fresh"

	staleID, err := engine.WriteCheque(t.Context(), "alice", stale)
	require.NoError(t, err)

	freshID, err := engine.WriteCheque(t.Context(), "alice", fresh)
	require.NoError(t, err)

	sweeper := NewSweeper(engine, store, logger)
	sweeper.Watch("alice")

	expired, err := sweeper.Sweep(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	workflow, err := engine.GetWorkflow(t.Context(), "alice", staleID)
	require.NoError(t, err)
	assert.Equal(t, models.StateExpired, workflow.State)
	require.Len(t, workflow.Events, 2)
	assert.Equal(t, models.EventExpire, workflow.Events[1].Type)

	workflow, err = engine.GetWorkflow(t.Context(), "alice", freshID)
	require.NoError(t, err)
	assert.Equal(t, models.StateUnsent, workflow.State)
}

func TestSweeper_SweepIsIdempotent(t *testing.T) {
	engine, _, store := newTestEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stale := testCheque()
	stale.ValidTo = time.Now().UTC().Add(-time.Hour)

	_, err := engine.WriteCheque(t.Context(), "alice", stale)
	require.NoError(t, err)

	sweeper := NewSweeper(engine, store, logger)

	expired, err := sweeper.Sweep(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	// An already expired workflow is no longer in a sweep target state.
	expired, err = sweeper.Sweep(t.Context(), "alice")
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestSweeper_ExpiresConveyedIncoming(t *testing.T) {
	engine, _, store := newTestEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stale := testCheque()
	stale.ValidTo = time.Now().UTC().Add(-time.Hour)

	id, err := engine.ReceiveCheque(t.Context(), "bob", stale, nil)
	require.NoError(t, err)

	sweeper := NewSweeper(engine, store, logger)

	expired, err := sweeper.Sweep(t.Context(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	workflow, err := engine.GetWorkflow(t.Context(), "bob", id)
	require.NoError(t, err)
	assert.Equal(t, models.StateExpired, workflow.State)
}

func TestExpireCheque_StillValidRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cheque := testCheque()

	_, err := engine.WriteCheque(t.Context(), "alice", cheque)
	require.NoError(t, err)

	err = engine.ExpireCheque(t.Context(), "alice", cheque)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrongInstrument)
}

func TestSweeper_StartAndStop(t *testing.T) {
	engine, _, store := newTestEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sweeper := NewSweeper(engine, store, logger)
	sweeper.Watch("alice")

	require.NoError(t, sweeper.Start(t.Context(), "@every 1h"))
	sweeper.Stop()
}
