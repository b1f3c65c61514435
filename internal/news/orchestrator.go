package news

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/stocknews/internal/collect"
	"github.com/TobiSchelling/stocknews/internal/coverage"
	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
	"github.com/TobiSchelling/stocknews/internal/selector"
)

// ErrNoSearcher is returned when uncached days need fetching but no search
// provider is configured.
var ErrNoSearcher = errors.New("no search provider configured")

// FetchResult summarizes a FetchAndCache call.
type FetchResult struct {
	Total         int              // articles cached for the whole request
	NewlyCached   int              // articles added by this call
	Ranges        []coverage.Range // ranges that were searched
	Excluded      int
	ParseFailures int
	OutOfRange    int
}

// Cached reports whether the request was answered without searching.
func (r *FetchResult) Cached() bool {
	return len(r.Ranges) == 0
}

// FetchAndCache makes sure every day of [start, end] has been searched for
// symbol, searching only the days missing from the fetch log. Each missing
// range is committed on its own, so a failure keeps earlier ranges and a
// retry only searches what is still missing.
func (s *Service) FetchAndCache(ctx context.Context, symbol string, start, end time.Time, limits collect.Limits, progress ProgressFunc) (*FetchResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	request, err := validRange(start, end)
	if err != nil {
		return nil, err
	}

	logs, err := s.db.GetOverlappingFetchLogs(symbol, request.Start, request.End)
	if err != nil {
		return nil, persistErr("reading fetch log", err)
	}
	logged := make([]coverage.Range, len(logs))
	for i, l := range logs {
		logged[i] = coverage.NewRange(l.StartDate, l.EndDate)
	}

	missing := coverage.Missing(request, logged)
	if len(missing) == 0 {
		total, err := s.db.CountArticlesInRange(symbol, request.Start, request.End)
		if err != nil {
			return nil, persistErr("counting articles", err)
		}
		log.Printf("News for %s %s fully cached (%d articles)", symbol, request, total)
		progress(100, fmt.Sprintf("使用快取資料 (%d 篇)", total))
		return &FetchResult{Total: total}, nil
	}

	if s.searcher == nil {
		return nil, ErrNoSearcher
	}

	log.Printf("News for %s %s: %d missing range(s), %d day(s)",
		symbol, request, len(missing), coverage.TotalDays(missing))
	progress(5, fmt.Sprintf("需要補足 %d 個日期區間", len(missing)))

	result := &FetchResult{Ranges: missing}
	for i, r := range missing {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		progress(10+i*60/len(missing), fmt.Sprintf("搜尋 %s ~ %s", newsdate.Format(r.Start), newsdate.Format(r.End)))

		cached, stats, err := s.fetchRange(ctx, symbol, r, limits)
		if err != nil {
			return nil, err
		}
		result.NewlyCached += cached
		result.Excluded += stats.Excluded
		result.ParseFailures += stats.ParseFailures
		result.OutOfRange += stats.OutOfRange
	}

	progress(90, "整理快取資料...")

	total, err := s.db.CountArticlesInRange(symbol, request.Start, request.End)
	if err != nil {
		return nil, persistErr("counting articles", err)
	}
	result.Total = total

	log.Printf("News for %s %s: %d total, %d new", symbol, request, total, result.NewlyCached)
	progress(100, fmt.Sprintf("完成！共 %d 篇（新增 %d 篇）", total, result.NewlyCached))
	return result, nil
}

// fetchRange searches one missing range and commits its articles, fetch log
// entry and summaries in a single transaction.
func (s *Service) fetchRange(ctx context.Context, symbol string, r coverage.Range, limits collect.Limits) (int, selector.FilterStats, error) {
	raw, err := s.searcher.Search(ctx, symbol, r.Start, r.End, limits)
	if err != nil {
		return 0, selector.FilterStats{}, &ProviderError{Symbol: symbol, Range: r, Err: err}
	}

	kept, stats := selector.Filter(s.rules, raw, r, s.parser)
	log.Printf("Range %s: %d results, %d kept (%d excluded, %d unparsed dates, %d out of range)",
		r, len(raw), len(kept), stats.Excluded, stats.ParseFailures, stats.OutOfRange)

	err = s.db.InTx(func(tx *database.Tx) error {
		for _, p := range kept {
			_, err := tx.InsertArticle(database.CachedArticle{
				Symbol:        symbol,
				Title:         p.Title,
				Source:        p.Source,
				PublishedDate: p.Published,
				URL:           optional(p.URL),
				Snippet:       optional(p.Snippet),
			})
			if err != nil {
				return err
			}
		}
		if _, err := tx.InsertFetchLog(symbol, r.Start, r.End, len(kept)); err != nil {
			return err
		}
		_, err := regenerate(tx, s.rules, symbol, r.Start, r.End)
		return err
	})
	if err != nil {
		return 0, stats, persistErr("caching "+r.String(), err)
	}
	return len(kept), stats, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
