package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/persistence"
)

// sweepTargets are the (kind, state) pairs a cheque-like instrument can sit
// in while its validity window runs out.
var sweepTargets = []struct {
	kind  models.Kind
	state models.State
}{
	{models.KindOutgoingCheque, models.StateUnsent},
	{models.KindOutgoingCheque, models.StateConveyed},
	{models.KindOutgoingInvoice, models.StateUnsent},
	{models.KindOutgoingInvoice, models.StateConveyed},
	{models.KindOutgoingVoucher, models.StateUnsent},
	{models.KindOutgoingVoucher, models.StateConveyed},
	{models.KindIncomingCheque, models.StateConveyed},
	{models.KindIncomingInvoice, models.StateConveyed},
	{models.KindIncomingVoucher, models.StateConveyed},
}

// Sweeper periodically expires cheque-like workflows whose instruments
// passed their valid-to time without settling. It is just another engine
// caller: every expiry goes through the same guards and locks.
type Sweeper struct {
	engine *Engine
	store  persistence.RecordStore
	logger *slog.Logger
	cron   *cron.Cron

	mu     sync.Mutex
	owners map[string]struct{}
}

// NewSweeper creates a sweeper for the given engine.
func NewSweeper(engine *Engine, store persistence.RecordStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		engine: engine,
		store:  store,
		logger: logger.With("module", "expiry_sweeper"),
		owners: make(map[string]struct{}),
	}
}

// Watch adds an owner nym to the sweep set.
func (s *Sweeper) Watch(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.owners[owner] = struct{}{}
}

// Start schedules sweeps on the given cron expression and returns once the
// scheduler is running.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(schedule, func() {
		s.SweepAll(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// SweepAll runs one sweep over every watched owner.
func (s *Sweeper) SweepAll(ctx context.Context) {
	s.mu.Lock()
	owners := make([]string, 0, len(s.owners))

	for owner := range s.owners {
		owners = append(owners, owner)
	}
	s.mu.Unlock()

	for _, owner := range owners {
		expired, err := s.Sweep(ctx, owner)
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep failed", "owner", owner, "error", err)

			continue
		}

		if expired > 0 {
			s.logger.InfoContext(ctx, "expired stale instruments", "owner", owner, "count", expired)
		}
	}
}

// Sweep expires every stale cheque-like workflow for one owner and returns
// how many transitions fired.
func (s *Sweeper) Sweep(ctx context.Context, owner string) (int, error) {
	now := time.Now().UTC()
	expired := 0

	for _, target := range sweepTargets {
		ids, err := s.store.ListByState(ctx, owner, target.kind, target.state)
		if err != nil {
			return expired, err
		}

		for _, id := range ids {
			workflow, err := s.store.Load(ctx, owner, id)
			if err != nil {
				if persistence.IsNotFound(err) {
					continue
				}

				return expired, err
			}

			cheque, err := models.DeserializeCheque(workflow.Source[0].Raw)
			if err != nil {
				s.logger.WarnContext(ctx, "unreadable instrument snapshot",
					"workflow_id", id, "error", err)

				continue
			}

			if !cheque.Expired(now) {
				continue
			}

			err = s.engine.ExpireCheque(ctx, owner, cheque)
			if err != nil {
				// A concurrent mutation may have advanced the workflow
				// between the scan and the guard; rejection is expected.
				if errors.Is(err, ErrTransitionRejected) || errors.Is(err, ErrNotFound) {
					continue
				}

				return expired, err
			}

			expired++
		}
	}

	return expired, nil
}
