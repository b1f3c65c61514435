package database

import (
	"fmt"
	"time"
)

// DeleteSummariesInRange removes a symbol's summaries dated in [start, end].
func (s *store) DeleteSummariesInRange(symbol string, start, end time.Time) (int64, error) {
	result, err := s.q.Exec(
		"DELETE FROM daily_news_summary WHERE symbol = ? AND date >= ? AND date <= ?",
		symbol, dateArg(start), dateArg(end),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting summaries: %w", err)
	}
	return result.RowsAffected()
}

// InsertSummary stores a daily summary. A second summary for the same
// (symbol, date) violates the unique index.
func (s *store) InsertSummary(d DailySummary) (int64, error) {
	result, err := s.q.Exec(
		`INSERT INTO daily_news_summary (symbol, date, primary_title, primary_source, related_count)
		VALUES (?, ?, ?, ?, ?)`,
		d.Symbol, dateArg(d.Date), d.PrimaryTitle, d.PrimarySource, d.RelatedCount,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting summary: %w", err)
	}
	return result.LastInsertId()
}

// GetSummariesInRange returns a symbol's summaries dated in [start, end],
// newest first.
func (s *store) GetSummariesInRange(symbol string, start, end time.Time) ([]DailySummary, error) {
	rows, err := s.q.Query(
		`SELECT id, symbol, date, primary_title, primary_source, related_count, created_at
		FROM daily_news_summary
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date DESC`,
		symbol, dateArg(start), dateArg(end),
	)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer rows.Close()

	var summaries []DailySummary
	for rows.Next() {
		var d DailySummary
		var date string
		if err := rows.Scan(&d.ID, &d.Symbol, &date, &d.PrimaryTitle, &d.PrimarySource,
			&d.RelatedCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		if d.Date, err = scanDate(date); err != nil {
			return nil, err
		}
		summaries = append(summaries, d)
	}
	return summaries, rows.Err()
}

// GetSummaryDates returns the distinct dates with a summary in [start, end],
// ascending.
func (s *store) GetSummaryDates(symbol string, start, end time.Time) ([]time.Time, error) {
	rows, err := s.q.Query(
		`SELECT DISTINCT date FROM daily_news_summary
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		symbol, dateArg(start), dateArg(end),
	)
	if err != nil {
		return nil, fmt.Errorf("querying summary dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := scanDate(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
