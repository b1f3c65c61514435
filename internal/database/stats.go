package database

import (
	"fmt"
)

// GetStats returns row counts for the cache tables.
func (s *store) GetStats() (*Stats, error) {
	var st Stats
	err := s.q.QueryRow(`SELECT
		(SELECT COUNT(*) FROM news_articles),
		(SELECT COUNT(*) FROM daily_news_summary),
		(SELECT COUNT(*) FROM news_fetch_log),
		(SELECT COUNT(DISTINCT symbol) FROM news_articles)`,
	).Scan(&st.Articles, &st.Summaries, &st.FetchLogs, &st.Symbols)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return &st, nil
}

// GetSymbolStats returns per-symbol article counts and date spans.
func (s *store) GetSymbolStats() ([]SymbolStats, error) {
	rows, err := s.q.Query(
		`SELECT symbol, COUNT(*), MIN(published_date), MAX(published_date)
		FROM news_articles GROUP BY symbol ORDER BY symbol`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying symbol stats: %w", err)
	}
	defer rows.Close()

	var out []SymbolStats
	for rows.Next() {
		var st SymbolStats
		var first, last string
		if err := rows.Scan(&st.Symbol, &st.Articles, &first, &last); err != nil {
			return nil, err
		}
		if st.FirstDate, err = scanDate(first); err != nil {
			return nil, err
		}
		if st.LastDate, err = scanDate(last); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Reset deletes cached summaries, articles and fetch logs for symbol, or for
// every symbol when symbol is empty.
func (db *DB) Reset(symbol string) (*ResetCounts, error) {
	var counts ResetCounts
	err := db.InTx(func(tx *Tx) error {
		var err error
		if counts.Summaries, err = tx.deleteFrom("daily_news_summary", symbol); err != nil {
			return err
		}
		if counts.Articles, err = tx.deleteFrom("news_articles", symbol); err != nil {
			return err
		}
		counts.FetchLogs, err = tx.deleteFrom("news_fetch_log", symbol)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

func (s *store) deleteFrom(table, symbol string) (int64, error) {
	query := "DELETE FROM " + table
	var args []any
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	result, err := s.q.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("clearing %s: %w", table, err)
	}
	return result.RowsAffected()
}
