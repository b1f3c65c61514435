// Package news keeps a per-symbol news cache complete for requested date
// ranges and answers queries over it.
package news

import (
	"time"

	"github.com/TobiSchelling/stocknews/internal/collect"
	"github.com/TobiSchelling/stocknews/internal/coverage"
	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
	"github.com/TobiSchelling/stocknews/internal/selector"
	"github.com/TobiSchelling/stocknews/internal/tradingday"
)

// ProgressFunc receives fetch progress as a percentage and a message.
type ProgressFunc func(percent int, message string)

// Service coordinates the search provider and the cache database.
type Service struct {
	db       *database.DB
	searcher collect.Searcher
	rules    selector.Rules
	parser   *newsdate.Parser
}

// Option configures a Service.
type Option func(*Service)

// WithParser sets the date parser used for search results.
func WithParser(p *newsdate.Parser) Option {
	return func(s *Service) {
		s.parser = p
	}
}

// NewService creates a service. searcher may be nil when only cached data
// is read.
func NewService(db *database.DB, searcher collect.Searcher, rules selector.Rules, opts ...Option) *Service {
	s := &Service{
		db:       db,
		searcher: searcher,
		rules:    rules,
		parser:   newsdate.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the selection rules in use.
func (s *Service) Rules() selector.Rules {
	return s.rules
}

func validRange(start, end time.Time) (coverage.Range, error) {
	r := coverage.NewRange(start, end)
	if r.End.Before(r.Start) {
		return r, errStartAfterEnd(newsdate.Format(r.Start), newsdate.Format(r.End))
	}
	return r, nil
}

// DailySummaries returns the summaries of symbol in [start, end], newest first.
func (s *Service) DailySummaries(symbol string, start, end time.Time) ([]database.DailySummary, error) {
	r, err := validRange(start, end)
	if err != nil {
		return nil, err
	}
	summaries, err := s.db.GetSummariesInRange(symbol, r.Start, r.End)
	return summaries, persistErr("loading summaries", err)
}

// NewsForTradingDay returns the summaries relevant to a trading day: those
// dated within its lookback window, marker titles first, then newest first.
func (s *Service) NewsForTradingDay(symbol string, day time.Time) ([]database.DailySummary, error) {
	start, end := tradingday.Window(day)
	summaries, err := s.db.GetSummariesInRange(symbol, start, end)
	if err != nil {
		return nil, persistErr("loading summaries", err)
	}
	return tradingday.Order(summaries, s.rules), nil
}

// DatesWithNews returns the dates in [start, end] with a summary, ascending.
func (s *Service) DatesWithNews(symbol string, start, end time.Time) ([]time.Time, error) {
	r, err := validRange(start, end)
	if err != nil {
		return nil, err
	}
	dates, err := s.db.GetSummaryDates(symbol, r.Start, r.End)
	return dates, persistErr("loading news dates", err)
}

// TradingDatesWithNews maps the news dates in [start, end] onto the given
// trading dates.
func (s *Service) TradingDatesWithNews(symbol string, start, end time.Time, tradingDates []time.Time) ([]time.Time, error) {
	dates, err := s.DatesWithNews(symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 || len(tradingDates) == 0 {
		return []time.Time{}, nil
	}
	mapped := tradingday.Map(dates, tradingDates)
	if mapped == nil {
		mapped = []time.Time{}
	}
	return mapped, nil
}

// Articles returns the cached articles of symbol in [start, end].
func (s *Service) Articles(symbol string, start, end time.Time) ([]database.CachedArticle, error) {
	r, err := validRange(start, end)
	if err != nil {
		return nil, err
	}
	articles, err := s.db.GetArticlesInRange(symbol, r.Start, r.End)
	return articles, persistErr("loading articles", err)
}

// Reset clears the cache for symbol, or entirely when symbol is empty.
func (s *Service) Reset(symbol string) (*database.ResetCounts, error) {
	counts, err := s.db.Reset(symbol)
	if err != nil {
		return nil, persistErr("resetting cache", err)
	}
	return counts, nil
}

// Stats returns table counts and per-symbol spans.
func (s *Service) Stats() (*database.Stats, []database.SymbolStats, error) {
	stats, err := s.db.GetStats()
	if err != nil {
		return nil, nil, persistErr("reading stats", err)
	}
	symbols, err := s.db.GetSymbolStats()
	if err != nil {
		return nil, nil, persistErr("reading stats", err)
	}
	return stats, symbols, nil
}
