package news

import (
	"time"

	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/selector"
)

// Regenerate rebuilds the daily summaries of symbol in [start, end] from the
// cached articles and returns how many were written. Running it twice gives
// the same summaries.
func (s *Service) Regenerate(symbol string, start, end time.Time) (int, error) {
	r, err := validRange(start, end)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.InTx(func(tx *database.Tx) error {
		var err error
		n, err = regenerate(tx, s.rules, symbol, r.Start, r.End)
		return err
	})
	if err != nil {
		return 0, persistErr("regenerating summaries", err)
	}
	return n, nil
}

func articleFields(a database.CachedArticle) (string, string) {
	return a.Title, a.Source
}

// regenerate replaces the summaries in [start, end] inside tx.
func regenerate(tx *database.Tx, rules selector.Rules, symbol string, start, end time.Time) (int, error) {
	articles, err := tx.GetArticlesInRange(symbol, start, end)
	if err != nil {
		return 0, err
	}

	// Articles arrive ordered by date then id, so each day is a contiguous run.
	var groups [][]database.CachedArticle
	for i, a := range articles {
		if i == 0 || !a.PublishedDate.Equal(articles[i-1].PublishedDate) {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], a)
	}

	if _, err := tx.DeleteSummariesInRange(symbol, start, end); err != nil {
		return 0, err
	}

	for _, g := range groups {
		primary, related, _ := selector.Pick(rules, g, articleFields)
		_, err := tx.InsertSummary(database.DailySummary{
			Symbol:        symbol,
			Date:          primary.PublishedDate,
			PrimaryTitle:  primary.Title,
			PrimarySource: primary.Source,
			RelatedCount:  related,
		})
		if err != nil {
			return 0, err
		}
	}
	return len(groups), nil
}
