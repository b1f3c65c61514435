package database

import (
	"database/sql"
	"fmt"
	"log"
)

// schemaVersion reads PRAGMA user_version.
func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// stampVersion writes PRAGMA user_version. modernc/sqlite ignores it inside a
// transaction, so it runs on the connection after the commit.
func stampVersion(conn *sql.DB, v int) error {
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		return fmt.Errorf("setting schema version %d: %w", v, err)
	}
	return nil
}

// isLegacyDB reports whether an unversioned database already holds the news
// tables, as files written by the earlier Python service do.
func isLegacyDB(conn *sql.DB) (bool, error) {
	var n int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='news_articles'",
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking for legacy tables: %w", err)
	}
	return n > 0, nil
}

// migrate applies every migration newer than the stored user_version. A
// legacy database is treated as version 1 because its tables match it.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		legacy, err := isLegacyDB(conn)
		if err != nil {
			return err
		}
		if legacy {
			log.Printf("Found unversioned news cache, treating it as schema 1")
			if err := stampVersion(conn, 1); err != nil {
				return err
			}
			current = 1
		}
	}

	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

// apply runs one migration in its own transaction. Its DDL is idempotent, so
// a crash before the version stamp only repeats it on the next open.
func apply(conn *sql.DB, m Migration) error {
	log.Printf("Migrating news cache to schema %d: %s", m.Version, m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return stampVersion(conn, m.Version)
}
