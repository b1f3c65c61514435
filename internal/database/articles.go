package database

import (
	"database/sql"
	"fmt"
	"time"
)

const articleColumns = `id, symbol, title, source, published_date, url, snippet, created_at`

// InsertArticle stores an article and returns its ID.
func (s *store) InsertArticle(a CachedArticle) (int64, error) {
	result, err := s.q.Exec(
		`INSERT INTO news_articles (symbol, title, source, published_date, url, snippet)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Symbol, a.Title, a.Source, dateArg(a.PublishedDate), a.URL, a.Snippet,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting article: %w", err)
	}
	return result.LastInsertId()
}

// GetArticlesInRange returns a symbol's articles published in [start, end],
// ordered by date then insertion order.
func (s *store) GetArticlesInRange(symbol string, start, end time.Time) ([]CachedArticle, error) {
	rows, err := s.q.Query(
		`SELECT `+articleColumns+`
		FROM news_articles
		WHERE symbol = ? AND published_date >= ? AND published_date <= ?
		ORDER BY published_date, id`,
		symbol, dateArg(start), dateArg(end),
	)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// CountArticlesInRange counts a symbol's articles published in [start, end].
func (s *store) CountArticlesInRange(symbol string, start, end time.Time) (int, error) {
	var n int
	err := s.q.QueryRow(
		`SELECT COUNT(*) FROM news_articles
		WHERE symbol = ? AND published_date >= ? AND published_date <= ?`,
		symbol, dateArg(start), dateArg(end),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return n, nil
}

func scanArticles(rows *sql.Rows) ([]CachedArticle, error) {
	var articles []CachedArticle
	for rows.Next() {
		var a CachedArticle
		var published string
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Title, &a.Source, &published,
			&a.URL, &a.Snippet, &a.CreatedAt); err != nil {
			return nil, err
		}
		d, err := scanDate(published)
		if err != nil {
			return nil, err
		}
		a.PublishedDate = d
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
