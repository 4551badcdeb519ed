package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migrations is the ordered schema history. Entries are append-only; applied
// versions are tracked in schema_migrations and never re-run.
var migrations = []struct {
	version int
	name    string
	ddl     string
}{
	{
		version: 1,
		name:    "create accounts",
		ddl: `
			CREATE TABLE accounts (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL,
				invite_code     TEXT NOT NULL UNIQUE,
				status          TEXT NOT NULL DEFAULT 'pending_payment',
				charger_count   INTEGER NOT NULL DEFAULT 1 CHECK (charger_count > 0),
				subscription_id TEXT NOT NULL DEFAULT '',
				created_at      TEXT NOT NULL,
				updated_at      TEXT NOT NULL
			)`,
	},
	{
		version: 2,
		name:    "create residents",
		ddl: `
			CREATE TABLE residents (
				id            TEXT PRIMARY KEY,
				account_id    TEXT REFERENCES accounts(id),
				email         TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				display_name  TEXT NOT NULL,
				unit_label    TEXT NOT NULL DEFAULT '',
				car_model     TEXT NOT NULL DEFAULT '',
				is_admin      INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL,
				updated_at    TEXT NOT NULL
			)`,
	},
	{
		version: 3,
		name:    "index residents by unit",
		ddl:     `CREATE INDEX idx_residents_account_unit ON residents(account_id, unit_label)`,
	},
	{
		version: 4,
		name:    "create reservations",
		ddl: `
			CREATE TABLE reservations (
				id          TEXT PRIMARY KEY,
				account_id  TEXT NOT NULL REFERENCES accounts(id),
				resident_id TEXT NOT NULL REFERENCES residents(id),
				charger_id  INTEGER NOT NULL CHECK (charger_id > 0),
				start_time  TEXT NOT NULL,
				end_time    TEXT NOT NULL,
				created_at  TEXT NOT NULL,
				CHECK (end_time > start_time)
			)`,
	},
	{
		version: 5,
		name:    "index reservations by charger slot",
		ddl:     `CREATE INDEX idx_reservations_slot ON reservations(account_id, charger_id, start_time, end_time)`,
	},
	{
		version: 6,
		name:    "index reservations by resident expiry",
		ddl:     `CREATE INDEX idx_reservations_resident_end ON reservations(resident_id, end_time)`,
	},
	{
		version: 7,
		name:    "create sessions",
		ddl: `
			CREATE TABLE sessions (
				token       TEXT PRIMARY KEY,
				resident_id TEXT NOT NULL REFERENCES residents(id),
				created_at  TEXT NOT NULL,
				expires_at  TEXT NOT NULL,
				revoked_at  TEXT
			)`,
	},
}

// Migrate applies any schema migrations that have not yet run.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, migration := range migrations {
		applied, err := migrationApplied(ctx, pool, migration.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(migration.ddl); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", migration.version, migration.name, err)
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
				migration.version, migration.name, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func migrationApplied(ctx context.Context, pool *ConnectionPool, version int) (bool, error) {
	var count int
	err := pool.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	return count > 0, nil
}
