package postgresql

// migrations returns the ordered schema migrations for the workflow record
// store.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				owner       TEXT NOT NULL,
				id          TEXT NOT NULL,
				type        TEXT NOT NULL,
				state       TEXT NOT NULL,
				version     INTEGER NOT NULL,
				notary      TEXT NOT NULL DEFAULT '',
				record      JSONB NOT NULL,
				created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (owner, id)
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_owner_type_state
				ON workflows (owner, type, state);

			CREATE TABLE IF NOT EXISTS workflow_sources (
				owner       TEXT NOT NULL,
				source_id   TEXT NOT NULL,
				workflow_id TEXT NOT NULL,
				PRIMARY KEY (owner, source_id)
			);

			CREATE TABLE IF NOT EXISTS workflow_accounts (
				owner       TEXT NOT NULL,
				account_id  TEXT NOT NULL,
				workflow_id TEXT NOT NULL,
				PRIMARY KEY (owner, account_id, workflow_id)
			);
		`,
	}
}
