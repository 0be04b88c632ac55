package workflow

import (
	"context"
	"fmt"

	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/persistence"
)

// kindSet reports whether kind is in the accepted set. An empty set accepts
// every kind.
func kindSet(kinds []models.Kind, kind models.Kind) bool {
	if len(kinds) == 0 {
		return true
	}

	for _, k := range kinds {
		if k == kind {
			return true
		}
	}

	return false
}

// loadTyped loads (owner, workflowID) and validates kind membership. A kind
// mismatch is treated as not-found and logged; the caller asked for a
// different class of workflow.
func (e *Engine) loadTyped(ctx context.Context, owner, workflowID string, kinds []models.Kind) (*models.Workflow, error) {
	workflow, err := e.store.Load(ctx, owner, workflowID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, fmt.Errorf("%w: workflow %s", ErrNotFound, workflowID)
		}

		return nil, err
	}

	if !kindSet(kinds, workflow.Type) {
		e.logger.DebugContext(ctx, "workflow kind not in accepted set",
			"workflow_id", workflowID, "kind", workflow.Type)

		return nil, fmt.Errorf("%w: workflow %s has kind %s", ErrNotFound, workflowID, workflow.Type)
	}

	return workflow, nil
}

// lookupBySource resolves (owner, sourceID) through the secondary index and
// validates the loaded workflow's kind. Read-only; the per-workflow lock is
// acquired afterwards by the mutating operation.
func (e *Engine) lookupBySource(ctx context.Context, owner, sourceID string, kinds []models.Kind) (*models.Workflow, error) {
	workflowID, err := e.store.LookupBySource(ctx, owner, sourceID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, fmt.Errorf("%w: no workflow for source %s", ErrNotFound, sourceID)
		}

		return nil, err
	}

	return e.loadTyped(ctx, owner, workflowID, kinds)
}

// GetWorkflow returns an owned snapshot of (owner, workflowID), optionally
// restricted to a kind set.
func (e *Engine) GetWorkflow(ctx context.Context, owner, workflowID string, kinds ...models.Kind) (*models.Workflow, error) {
	return e.loadTyped(ctx, owner, workflowID, kinds)
}

// GetWorkflowBySource returns an owned snapshot of the workflow tracking
// the given source instrument, optionally restricted to a kind set.
func (e *Engine) GetWorkflowBySource(ctx context.Context, owner, sourceID string, kinds ...models.Kind) (*models.Workflow, error) {
	return e.lookupBySource(ctx, owner, sourceID, kinds)
}
