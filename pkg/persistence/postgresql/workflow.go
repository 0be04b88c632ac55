package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/persistence"
)

// Store atomically upserts a workflow record and refreshes its secondary
// indices inside one transaction.
func (s *Store) Store(ctx context.Context, workflow *models.Workflow) error {
	if err := persistence.ValidateRecord(workflow); err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	record, err := workflow.Marshal()
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	upsert := `
		INSERT INTO workflows (owner, id, type, state, version, notary, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner, id) DO UPDATE SET
			state      = EXCLUDED.state,
			version    = EXCLUDED.version,
			notary     = EXCLUDED.notary,
			record     = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, upsert,
		workflow.Owner,
		workflow.ID,
		string(workflow.Type),
		string(workflow.State),
		workflow.Version,
		workflow.Notary,
		record,
		workflow.CreatedAt.UTC(),
		now,
	)
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	for _, src := range workflow.Source {
		var existing string

		err = tx.QueryRowContext(ctx,
			`SELECT workflow_id FROM workflow_sources WHERE owner = $1 AND source_id = $2`,
			workflow.Owner, src.ID,
		).Scan(&existing)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO workflow_sources (owner, source_id, workflow_id) VALUES ($1, $2, $3)`,
				workflow.Owner, src.ID, workflow.ID,
			)
			if err != nil {
				return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
			}
		case err != nil:
			return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
		case existing != workflow.ID:
			return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, persistence.ErrDuplicateSource)
		}
	}

	for _, account := range workflow.Accounts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO workflow_accounts (owner, account_id, workflow_id) VALUES ($1, $2, $3)
			 ON CONFLICT (owner, account_id, workflow_id) DO NOTHING`,
			workflow.Owner, account, workflow.ID,
		)
		if err != nil {
			return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewStoreError("Store", workflow.Owner, workflow.ID, err)
	}

	return nil
}

// Load returns the workflow record for (owner, workflowID).
func (s *Store) Load(ctx context.Context, owner, workflowID string) (*models.Workflow, error) {
	var record []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM workflows WHERE owner = $1 AND id = $2`,
		owner, workflowID,
	).Scan(&record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("Load", owner, workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewStoreError("Load", owner, workflowID, err)
	}

	workflow, err := models.UnmarshalWorkflow(record)
	if err != nil {
		return nil, persistence.NewStoreError("Load", owner, workflowID, err)
	}

	return workflow, nil
}

// LookupBySource resolves (owner, sourceID) to a workflow ID via the
// secondary index.
func (s *Store) LookupBySource(ctx context.Context, owner, sourceID string) (string, error) {
	var workflowID string

	err := s.db.QueryRowContext(ctx,
		`SELECT workflow_id FROM workflow_sources WHERE owner = $1 AND source_id = $2`,
		owner, sourceID,
	).Scan(&workflowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", persistence.NewStoreError("LookupBySource", owner, "", persistence.ErrSourceNotFound)
		}

		return "", persistence.NewStoreError("LookupBySource", owner, "", err)
	}

	return workflowID, nil
}

// ListByState returns workflow IDs for one (owner, kind, state) triple.
func (s *Store) ListByState(ctx context.Context, owner string, kind models.Kind, state models.State) ([]string, error) {
	query := `
		SELECT id FROM workflows
		WHERE owner = $1 AND type = $2 AND state = $3
		ORDER BY created_at
	`

	return s.listIDs(ctx, owner, query, owner, string(kind), string(state))
}

// ListByAccount returns workflow IDs touching the given account.
func (s *Store) ListByAccount(ctx context.Context, owner, accountID string) ([]string, error) {
	query := `
		SELECT workflow_id FROM workflow_accounts
		WHERE owner = $1 AND account_id = $2
		ORDER BY workflow_id
	`

	return s.listIDs(ctx, owner, query, owner, accountID)
}

func (s *Store) listIDs(ctx context.Context, owner, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("List", owner, "", err)
	}

	defer func() {
		closeErr := rows.Close()
		if closeErr != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	ids := make([]string, 0)

	for rows.Next() {
		var id string

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow id: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow ids: %w", err)
	}

	return ids, nil
}
