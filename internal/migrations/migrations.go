// Package migrations embeds the SQL schema and applies it with plain
// database/sql, the same embed.FS shape the pack's postgres consumers use
// for schema bootstrap rather than a migration framework — nothing in the
// retrieval pack imports golang-migrate or a versioned-migration library.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed sql/*.sql
var files embed.FS

// Apply runs every embedded .sql file in filename order against db. Each
// statement is CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS or a
// constraint addition guarded by an existence check, so running Apply
// against an already-migrated database is a no-op.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := files.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("migrations: read embedded sql dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := files.ReadFile("sql/" + name)
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrations: apply %s: %w", name, err)
		}
	}
	return nil
}
