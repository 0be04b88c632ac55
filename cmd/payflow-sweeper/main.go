// Package main provides the payflow expiry sweeper daemon. It periodically
// scans live workflows for instruments whose validity window has lapsed and
// records the expiry transition.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/paygrid/payflow/pkg/cmd"
	"github.com/paygrid/payflow/pkg/config"
	"github.com/paygrid/payflow/pkg/contacts"
	"github.com/paygrid/payflow/pkg/log"
	"github.com/paygrid/payflow/pkg/otelhelper"
	"github.com/paygrid/payflow/pkg/workflow"
)

func main() {
	cfg := config.FromEnv()

	log.Setup(cfg.LogLevel)
	logger := log.WithModule("sweeper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cmd.NewRecordStore(ctx, logger, cfg.DatabaseURL, cfg.StoreRoot)

	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close record store", "error", err)
		}
	}()

	bus := cmd.NewEventBus(logger, cfg.KafkaBrokers, "payflow-sweeper")
	defer func() {
		if err := bus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	tracer, err := otelhelper.NewTracer(ctx, "payflow-sweeper")
	if err != nil {
		logrus.Fatalf("Failed to initialize tracer: %v", err)
	}

	engine := workflow.NewEngine(
		logger,
		store,
		contacts.NewStaticResolver(nil),
		cmd.NewActivityRecorder(cfg.RedisURL),
		bus,
		tracer,
	)

	sweeper := workflow.NewSweeper(engine, store, logger)
	for _, owner := range cfg.Owners {
		sweeper.Watch(owner)
	}

	if err := sweeper.Start(ctx, cfg.SweepSchedule); err != nil {
		logrus.Fatalf("Failed to start expiry sweeper: %v", err)
	}

	logger.InfoContext(ctx, "Expiry sweeper running",
		"schedule", cfg.SweepSchedule,
		"owners", len(cfg.Owners))

	<-ctx.Done()

	sweeper.Stop()
}
