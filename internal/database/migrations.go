package database

import (
	"database/sql"
	"fmt"
)

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "news cache tables",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS news_articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol VARCHAR(20) NOT NULL,
    title TEXT NOT NULL,
    source VARCHAR(100) NOT NULL,
    published_date DATE NOT NULL,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS daily_news_summary (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol VARCHAR(20) NOT NULL,
    date DATE NOT NULL,
    primary_title TEXT NOT NULL,
    primary_source VARCHAR(100) NOT NULL,
    related_count INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS news_fetch_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol VARCHAR(20) NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    articles_found INTEGER DEFAULT 0,
    fetched_at DATETIME DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_symbol_date ON news_articles(symbol, published_date);
CREATE INDEX IF NOT EXISTS idx_summary_symbol_date ON daily_news_summary(symbol, date);
CREATE INDEX IF NOT EXISTS idx_fetch_log_symbol_dates ON news_fetch_log(symbol, start_date, end_date);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "article url/snippet, normalized dates, unique daily summary",
		Up: func(tx *sql.Tx) error {
			for _, col := range []string{"url", "snippet"} {
				if err := addColumnIfMissing(tx, "news_articles", col, "TEXT"); err != nil {
					return err
				}
			}

			// Older rows may carry a time part; date columns compare as YYYY-MM-DD text.
			_, err := tx.Exec(`
UPDATE news_articles SET published_date = substr(published_date, 1, 10) WHERE length(published_date) > 10;
UPDATE daily_news_summary SET date = substr(date, 1, 10) WHERE length(date) > 10;
UPDATE news_fetch_log SET start_date = substr(start_date, 1, 10) WHERE length(start_date) > 10;
UPDATE news_fetch_log SET end_date = substr(end_date, 1, 10) WHERE length(end_date) > 10;

DELETE FROM daily_news_summary
WHERE id NOT IN (SELECT MAX(id) FROM daily_news_summary GROUP BY symbol, date);

CREATE UNIQUE INDEX IF NOT EXISTS uq_summary_symbol_date ON daily_news_summary(symbol, date);
`)
			return err
		},
	},
}

func addColumnIfMissing(tx *sql.Tx, table, column, typ string) error {
	var n int
	err := tx.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
