// Package persistence provides the durable record store abstraction for
// payment workflows.
package persistence

import (
	"context"

	"github.com/paygrid/payflow/pkg/models"
)

// RecordStore is the durable persistence boundary for workflow records.
// Records are keyed by (owner, workflowID), with a secondary index by
// (owner, sourceInstrumentID). Store is an atomic upsert and must validate
// the record's schema before accepting it.
type RecordStore interface {
	Store(ctx context.Context, workflow *models.Workflow) error
	Load(ctx context.Context, owner, workflowID string) (*models.Workflow, error)
	LookupBySource(ctx context.Context, owner, sourceID string) (string, error)
	ListByState(ctx context.Context, owner string, kind models.Kind, state models.State) ([]string, error)
	ListByAccount(ctx context.Context, owner, accountID string) ([]string, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
