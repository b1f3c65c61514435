// Package schedule refreshes the news cache of a watchlist on a cron
// schedule.
package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TobiSchelling/stocknews/internal/collect"
	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/news"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
)

// DefaultSpec runs after the Taiwan market closes on weekdays.
const DefaultSpec = "30 18 * * 1-5"

// Fetcher is the part of news.Service the scheduler drives.
type Fetcher interface {
	FetchAndCache(ctx context.Context, symbol string, start, end time.Time, limits collect.Limits, progress news.ProgressFunc) (*news.FetchResult, error)
}

// Summary reports one pass over the watchlist.
type Summary struct {
	Symbols     int
	Failed      int
	NewlyCached int
}

// Scheduler periodically fetches the recent news of each watchlist symbol.
type Scheduler struct {
	fetcher   Fetcher
	watchlist []string
	lookback  int
	limits    collect.Limits
	cron      *cron.Cron

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// New creates a scheduler covering the last lookbackDays days, today included.
func New(fetcher Fetcher, watchlist []string, lookbackDays int, limits collect.Limits) *Scheduler {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	return &Scheduler{
		fetcher:   fetcher,
		watchlist: watchlist,
		lookback:  lookbackDays,
		limits:    limits,
		cron:      cron.New(),
		Now:       time.Now,
	}
}

// Start begins running passes on spec (standard five-field cron).
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}

	_, err := s.cron.AddFunc(spec, func() {
		s.run()
	})
	if err != nil {
		return fmt.Errorf("scheduling %q: %w", spec, err)
	}

	s.cron.Start()
	log.Printf("Watchlist scheduler started (%s, %d symbols)", spec, len(s.watchlist))
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("Watchlist scheduler stopped")
}

// RunNow triggers an immediate pass in the background.
func (s *Scheduler) RunNow() {
	log.Println("Triggering immediate watchlist refresh")
	go s.run()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce fetches every watchlist symbol in turn. A failing symbol is logged
// and does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	end := database.Today()
	if s.Now != nil {
		end = newsdate.Day(s.Now())
	}
	start := end.AddDate(0, 0, -(s.lookback - 1))

	var sum Summary
	for _, symbol := range s.watchlist {
		if ctx.Err() != nil {
			break
		}
		sum.Symbols++

		result, err := s.fetcher.FetchAndCache(ctx, symbol, start, end, s.limits, nil)
		if err != nil {
			sum.Failed++
			log.Printf("Scheduled fetch for %s failed: %v", symbol, err)
			continue
		}
		sum.NewlyCached += result.NewlyCached
		log.Printf("Scheduled fetch for %s: %d total, %d new", symbol, result.Total, result.NewlyCached)
	}

	log.Printf("Watchlist refresh complete: %d symbols, %d failed, %d new articles",
		sum.Symbols, sum.Failed, sum.NewlyCached)
	return sum
}
