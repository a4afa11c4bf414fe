package aliasdb

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// migrate runs database migrations.
func (d *DB) migrate(ctx context.Context) error {
	var version int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, CurrentSchemaVersion)
	}

	if err := d.createAliasesTable(ctx); err != nil {
		return err
	}

	if _, err := d.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

func (d *DB) createAliasesTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS aliases (
		original_name TEXT PRIMARY KEY,
		alias         TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create aliases table: %w", err)
	}
	return nil
}
