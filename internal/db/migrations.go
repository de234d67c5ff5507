package db

import "fmt"

// migrate runs all database migrations
func (db *DB) migrate() error {
	migrations := []string{
		migrationCreateGoals,
		migrationCreatePublicGoals,
	}

	for i, m := range migrations {
		if _, err := db.Exec(db.ddl(m)); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// ddl fills the dialect-specific column types into a migration
func (db *DB) ddl(m string) string {
	boolean := "INTEGER"
	if db.dialect == Postgres {
		boolean = "BOOLEAN"
	}
	return fmt.Sprintf(m, boolean)
}

// Instants are stored as epoch milliseconds
const migrationCreateGoals = `
CREATE TABLE IF NOT EXISTS goals (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    content TEXT NOT NULL,
    deadline BIGINT,
    status TEXT NOT NULL DEFAULT 'DoingIt',
    type TEXT NOT NULL DEFAULT 'OneTime',
    deleted %[1]s NOT NULL DEFAULT FALSE,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    nick TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_goals_owner ON goals(owner_id, deleted, created_at);
`

const migrationCreatePublicGoals = `
CREATE TABLE IF NOT EXISTS public_goals (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    content TEXT NOT NULL,
    deadline BIGINT,
    status TEXT NOT NULL,
    type TEXT NOT NULL,
    deleted %[1]s NOT NULL DEFAULT FALSE,
    created_at BIGINT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    nick TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_public_goals_listing ON public_goals(deleted, created_at);
`
