package database

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// getSchemaVersion reads PRAGMA user_version from the database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// isLegacyDB returns true if the database already has the value and
// messages tables but no user_version set. Databases created before schema
// versioning look like this.
func isLegacyDB(conn *sql.DB) (bool, error) {
	var count int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('value', 'messages')",
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking for legacy tables: %w", err)
	}
	return count == 2, nil
}

// migrate brings the database schema up to the latest version.
// It uses PRAGMA user_version to track which migrations have been applied.
// Every failure is returned as a *SchemaError.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return &SchemaError{Err: err}
	}

	// Unversioned databases already match migration 1.
	if current == 0 {
		legacy, err := isLegacyDB(conn)
		if err != nil {
			return &SchemaError{Err: err}
		}
		if legacy {
			log.Info().Msg("detected legacy database, stamping as version 1")
			if _, err := conn.Exec("PRAGMA user_version = 1"); err != nil {
				return &SchemaError{Version: 1, Err: fmt.Errorf("stamping legacy version: %w", err)}
			}
			current = 1
		}
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.Info().Int("version", m.Version).Str("description", m.Description).Msg("applying migration")

		tx, err := conn.Begin()
		if err != nil {
			return &SchemaError{Version: m.Version, Err: fmt.Errorf("begin: %w", err)}
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return &SchemaError{Version: m.Version, Err: fmt.Errorf("%s: %w", m.Description, err)}
		}

		if err := tx.Commit(); err != nil {
			return &SchemaError{Version: m.Version, Err: fmt.Errorf("commit: %w", err)}
		}

		// Set user_version outside the transaction (modernc/sqlite requirement).
		// If we crash here, the idempotent DDL lets the migration re-run.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return &SchemaError{Version: m.Version, Err: fmt.Errorf("setting version: %w", err)}
		}
	}

	return nil
}
