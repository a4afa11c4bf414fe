package aliasdb

import (
	"context"
	"fmt"
	"strings"
)

// Load returns every stored alias keyed by original name.
func (d *DB) Load(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT original_name, alias FROM aliases ORDER BY original_name`)
	if err != nil {
		return nil, fmt.Errorf("query aliases: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, alias string
		if err := rows.Scan(&name, &alias); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out[name] = alias
	}
	return out, rows.Err()
}

// Save stores alias for name. An empty alias deletes the entry.
func (d *DB) Save(ctx context.Context, name, alias string) error {
	if strings.TrimSpace(alias) == "" {
		if _, err := d.db.ExecContext(ctx, `DELETE FROM aliases WHERE original_name = ?`, name); err != nil {
			return fmt.Errorf("delete alias %q: %w", name, err)
		}
		return nil
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO aliases (original_name, alias, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(original_name) DO UPDATE SET alias = excluded.alias, updated_at = excluded.updated_at
	`, name, alias, d.now().UTC().Format(TimeFormat))
	if err != nil {
		return fmt.Errorf("save alias %q: %w", name, err)
	}
	return nil
}

// Count returns the number of stored aliases.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aliases`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Persister adapts a DB to alias.Persister.
type Persister struct {
	DB *DB
}

// SaveAlias implements alias.Persister.
func (p Persister) SaveAlias(name, alias string) error {
	return p.DB.Save(context.Background(), name, alias)
}
