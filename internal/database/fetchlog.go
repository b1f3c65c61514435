package database

import (
	"fmt"
	"time"
)

// InsertFetchLog records that [start, end] was searched for symbol.
func (s *store) InsertFetchLog(symbol string, start, end time.Time, articlesFound int) (int64, error) {
	result, err := s.q.Exec(
		`INSERT INTO news_fetch_log (symbol, start_date, end_date, articles_found)
		VALUES (?, ?, ?, ?)`,
		symbol, dateArg(start), dateArg(end), articlesFound,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting fetch log: %w", err)
	}
	return result.LastInsertId()
}

// GetOverlappingFetchLogs returns the fetch log entries for symbol that share
// at least one day with [start, end], ordered by start date.
func (s *store) GetOverlappingFetchLogs(symbol string, start, end time.Time) ([]FetchLogEntry, error) {
	rows, err := s.q.Query(
		`SELECT id, symbol, start_date, end_date, articles_found, fetched_at
		FROM news_fetch_log
		WHERE symbol = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date, id`,
		symbol, dateArg(end), dateArg(start),
	)
	if err != nil {
		return nil, fmt.Errorf("querying fetch log: %w", err)
	}
	defer rows.Close()

	var entries []FetchLogEntry
	for rows.Next() {
		var e FetchLogEntry
		var startDate, endDate string
		if err := rows.Scan(&e.ID, &e.Symbol, &startDate, &endDate, &e.ArticlesFound, &e.FetchedAt); err != nil {
			return nil, err
		}
		if e.StartDate, err = scanDate(startDate); err != nil {
			return nil, err
		}
		if e.EndDate, err = scanDate(endDate); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
