// Package cmd provides common initialization functions for the payflow
// command-line binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paygrid/payflow/pkg/persistence"
	"github.com/paygrid/payflow/pkg/persistence/file"
	"github.com/paygrid/payflow/pkg/persistence/postgresql"
)

// NewRecordStore selects the record store backend: PostgreSQL when a
// database URL is configured, the file store otherwise.
func NewRecordStore(ctx context.Context, logger *slog.Logger, databaseURL, storeRoot string) persistence.RecordStore {
	if databaseURL != "" {
		store, err := postgresql.NewStore(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to open postgresql record store: %w", err))
		}

		return store
	}

	return file.NewStore(storeRoot)
}
