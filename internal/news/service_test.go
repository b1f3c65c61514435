package news

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/stocknews/internal/collect"
	"github.com/TobiSchelling/stocknews/internal/coverage"
	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
	"github.com/TobiSchelling/stocknews/internal/selector"
)

type searchCall struct {
	Symbol string
	Range  coverage.Range
}

// mockSearcher returns articles from a fixed pool filtered to the requested
// window, or err when set.
type mockSearcher struct {
	articles []collect.Article
	err      error
	failOn   int // fail on this call number (1-based), 0 = never
	calls    []searchCall
}

func (m *mockSearcher) Search(_ context.Context, symbol string, start, end time.Time, _ collect.Limits) ([]collect.Article, error) {
	m.calls = append(m.calls, searchCall{Symbol: symbol, Range: coverage.NewRange(start, end)})
	if m.err != nil && (m.failOn == 0 || m.failOn == len(m.calls)) {
		return nil, m.err
	}
	var out []collect.Article
	window := coverage.NewRange(start, end)
	for _, a := range m.articles {
		if d, err := newsdate.ParseDay(a.PublishedDate); err == nil && !window.Contains(d) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func day(s string) time.Time {
	t, err := newsdate.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func scenarioArticles() []collect.Article {
	return []collect.Article{
		{Title: "台積電營收創高", Source: "經濟日報", PublishedDate: "2024-01-03", URL: "https://money.udn.com/1"},
		{Title: "台積電法說會", Source: "工商時報", PublishedDate: "2024-01-03", URL: "https://www.ctee.com.tw/1", Snippet: "摘要"},
		{Title: "台積電盤中", Source: "盤中速報", PublishedDate: "2024-01-03"},
		{Title: "外資買超台積電", Source: "經濟日報", PublishedDate: "2024-01-05"},
		{Title: "台積電展望", Source: "自由時報", PublishedDate: "2024-01-05"},
	}
}

func TestFetchAndCacheEndToEnd(t *testing.T) {
	db := openTestDB(t)
	searcher := &mockSearcher{articles: scenarioArticles()}
	svc := NewService(db, searcher, selector.DefaultRules())

	var progress []int
	result, err := svc.FetchAndCache(context.Background(), "2330", day("2024-01-01"), day("2024-01-05"),
		collect.DefaultLimits, func(p int, _ string) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}

	if result.Total != 4 || result.NewlyCached != 4 {
		t.Errorf("expected total 4 / new 4, got %d / %d", result.Total, result.NewlyCached)
	}
	if result.Excluded != 1 {
		t.Errorf("expected 1 excluded article, got %d", result.Excluded)
	}
	if len(searcher.calls) != 1 || searcher.calls[0].Range.String() != "2024-01-01..2024-01-05" {
		t.Errorf("expected one search over the whole request, got %+v", searcher.calls)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("expected progress to end at 100, got %v", progress)
	}

	logs, err := db.GetOverlappingFetchLogs("2330", day("2024-01-01"), day("2024-01-05"))
	if err != nil {
		t.Fatalf("GetOverlappingFetchLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].ArticlesFound != 4 {
		t.Errorf("expected one fetch log with 4 articles, got %+v", logs)
	}

	summaries, err := svc.DailySummaries("2330", day("2024-01-01"), day("2024-01-05"))
	if err != nil {
		t.Fatalf("DailySummaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if !summaries[0].Date.Equal(day("2024-01-05")) || !summaries[1].Date.Equal(day("2024-01-03")) {
		t.Errorf("expected summaries newest first, got %v, %v", summaries[0].Date, summaries[1].Date)
	}
	if summaries[1].PrimarySource != "工商時報" || summaries[1].PrimaryTitle != "台積電法說會" {
		t.Errorf("expected 工商時報 as primary on 01-03, got %+v", summaries[1])
	}
	for _, s := range summaries {
		if s.RelatedCount != 1 {
			t.Errorf("expected related 1 on %v, got %d", s.Date, s.RelatedCount)
		}
	}

	articles, err := svc.Articles("2330", day("2024-01-03"), day("2024-01-03"))
	if err != nil {
		t.Fatalf("Articles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles on 01-03, got %d", len(articles))
	}
	if articles[1].Snippet == nil || *articles[1].Snippet != "摘要" {
		t.Error("expected snippet to be stored")
	}
	if articles[0].Snippet != nil {
		t.Error("expected empty snippet to be stored as NULL")
	}
}

func TestFetchAndCacheNoRefetch(t *testing.T) {
	db := openTestDB(t)
	searcher := &mockSearcher{articles: scenarioArticles()}
	svc := NewService(db, searcher, selector.DefaultRules())
	ctx := context.Background()

	if _, err := svc.FetchAndCache(ctx, "2330", day("2024-01-01"), day("2024-01-05"), collect.DefaultLimits, nil); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	var lastMsg string
	result, err := svc.FetchAndCache(ctx, "2330", day("2024-01-02"), day("2024-01-04"), collect.DefaultLimits,
		func(_ int, msg string) { lastMsg = msg })
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(searcher.calls) != 1 {
		t.Errorf("expected no search inside a logged range, got %d calls", len(searcher.calls))
	}
	if !result.Cached() || result.NewlyCached != 0 || result.Total != 2 {
		t.Errorf("unexpected cached result %+v", result)
	}
	if lastMsg != "使用快取資料 (2 篇)" {
		t.Errorf("unexpected progress message %q", lastMsg)
	}
}

func TestFetchAndCacheOnlyMissingRanges(t *testing.T) {
	db := openTestDB(t)
	searcher := &mockSearcher{}
	svc := NewService(db, searcher, selector.DefaultRules())
	ctx := context.Background()

	if _, err := svc.FetchAndCache(ctx, "2330", day("2024-01-03"), day("2024-01-05"), collect.DefaultLimits, nil); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	result, err := svc.FetchAndCache(ctx, "2330", day("2024-01-01"), day("2024-01-08"), collect.DefaultLimits, nil)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if len(result.Ranges) != 2 {
		t.Fatalf("expected 2 missing ranges, got %v", result.Ranges)
	}
	want := []string{"2024-01-03..2024-01-05", "2024-01-01..2024-01-02", "2024-01-06..2024-01-08"}
	if len(searcher.calls) != len(want) {
		t.Fatalf("expected %d searches, got %d", len(want), len(searcher.calls))
	}
	for i, w := range want {
		if got := searcher.calls[i].Range.String(); got != w {
			t.Errorf("call %d: expected %s, got %s", i, w, got)
		}
	}

	// Empty results are still logged, so the range is never searched again.
	logs, _ := db.GetOverlappingFetchLogs("2330", day("2024-01-01"), day("2024-01-08"))
	if len(logs) != 3 {
		t.Errorf("expected 3 fetch log entries, got %d", len(logs))
	}
}

func TestFetchAndCacheProviderError(t *testing.T) {
	db := openTestDB(t)
	apiErr := &collect.APIError{Provider: "tavily", StatusCode: 500, Message: "down"}
	searcher := &mockSearcher{articles: scenarioArticles(), err: apiErr, failOn: 2}
	svc := NewService(db, searcher, selector.DefaultRules())
	ctx := context.Background()

	// Log 01-03 so the request splits into two missing ranges.
	if _, err := db.InsertFetchLog("2330", day("2024-01-03"), day("2024-01-03"), 0); err != nil {
		t.Fatal(err)
	}

	_, err := svc.FetchAndCache(ctx, "2330", day("2024-01-01"), day("2024-01-05"), collect.DefaultLimits, nil)
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Range.String() != "2024-01-04..2024-01-05" {
		t.Errorf("expected failure on second range, got %s", provErr.Range)
	}
	var gotAPI *collect.APIError
	if !errors.As(err, &gotAPI) {
		t.Error("expected APIError to be unwrappable")
	}

	// The first range stays committed; the failed one left nothing behind.
	logs, _ := db.GetOverlappingFetchLogs("2330", day("2024-01-01"), day("2024-01-05"))
	if len(logs) != 2 {
		t.Errorf("expected 2 fetch log entries after partial failure, got %d", len(logs))
	}
	n, _ := db.CountArticlesInRange("2330", day("2024-01-04"), day("2024-01-05"))
	if n != 0 {
		t.Errorf("expected no articles for the failed range, got %d", n)
	}

	// Retry searches only the range that is still missing.
	searcher.err = nil
	searcher.calls = nil
	result, err := svc.FetchAndCache(ctx, "2330", day("2024-01-01"), day("2024-01-05"), collect.DefaultLimits, nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(searcher.calls) != 1 || searcher.calls[0].Range.String() != "2024-01-04..2024-01-05" {
		t.Errorf("expected retry over 2024-01-04..2024-01-05 only, got %+v", searcher.calls)
	}
	if result.NewlyCached != 2 {
		t.Errorf("expected 2 new articles on retry, got %d", result.NewlyCached)
	}
}

func TestFetchAndCachePersistenceError(t *testing.T) {
	db := openTestDB(t)
	searcher := &mockSearcher{articles: []collect.Article{
		{Title: "台積電法說會", Source: "工商時報", PublishedDate: "2024-01-03"},
		{Title: "台積電擴產", Source: "經濟日報", PublishedDate: "2024-01-08"},
	}}
	svc := NewService(db, searcher, selector.DefaultRules())
	ctx := context.Background()

	// Log 01-04..01-05 so the request splits into two missing ranges.
	if _, err := db.InsertFetchLog("2330", day("2024-01-04"), day("2024-01-05"), 0); err != nil {
		t.Fatal(err)
	}

	raw, err := sql.Open("sqlite", db.Path())
	if err != nil {
		t.Fatalf("open second connection: %v", err)
	}
	defer raw.Close()
	_, err = raw.Exec(`CREATE TRIGGER reject_late_log BEFORE INSERT ON news_fetch_log
WHEN NEW.start_date >= '2024-01-06'
BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, err = svc.FetchAndCache(ctx, "2330", day("2024-01-01"), day("2024-01-10"), collect.DefaultLimits, nil)
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		t.Error("store failure must not be reported as a provider error")
	}

	// The first range stays committed.
	if n, _ := db.CountArticlesInRange("2330", day("2024-01-01"), day("2024-01-03")); n != 1 {
		t.Errorf("expected the 01-03 article to stay cached, got %d", n)
	}
	if dates, _ := db.GetSummaryDates("2330", day("2024-01-01"), day("2024-01-10")); len(dates) != 1 || !dates[0].Equal(day("2024-01-03")) {
		t.Errorf("expected only the 01-03 summary, got %v", dates)
	}
	logs, _ := db.GetOverlappingFetchLogs("2330", day("2024-01-01"), day("2024-01-10"))
	if len(logs) != 2 {
		t.Errorf("expected 2 fetch log entries, got %d", len(logs))
	}

	// The failed range rolled back entirely.
	if n, _ := db.CountArticlesInRange("2330", day("2024-01-06"), day("2024-01-10")); n != 0 {
		t.Errorf("expected no articles for the failed range, got %d", n)
	}
	if logs, _ := db.GetOverlappingFetchLogs("2330", day("2024-01-06"), day("2024-01-10")); len(logs) != 0 {
		t.Errorf("expected no fetch log for the failed range, got %+v", logs)
	}

	if _, err := raw.Exec("DROP TRIGGER reject_late_log"); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}

	searcher.calls = nil
	result, err := svc.FetchAndCache(ctx, "2330", day("2024-01-01"), day("2024-01-10"), collect.DefaultLimits, nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(searcher.calls) != 1 || searcher.calls[0].Range.String() != "2024-01-06..2024-01-10" {
		t.Errorf("expected retry over 2024-01-06..2024-01-10 only, got %+v", searcher.calls)
	}
	if result.NewlyCached != 1 || result.Total != 2 {
		t.Errorf("expected 1 new / 2 total on retry, got %d / %d", result.NewlyCached, result.Total)
	}
}

func TestFetchAndCacheInvalidRange(t *testing.T) {
	svc := NewService(openTestDB(t), &mockSearcher{}, selector.DefaultRules())
	_, err := svc.FetchAndCache(context.Background(), "2330", day("2024-01-05"), day("2024-01-01"), collect.DefaultLimits, nil)
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if !strings.Contains(err.Error(), "2024-01-05 is after end date 2024-01-01") {
		t.Errorf("expected both dates in the error, got %q", err)
	}
}

func TestFetchAndCacheWithoutSearcher(t *testing.T) {
	svc := NewService(openTestDB(t), nil, selector.DefaultRules())
	_, err := svc.FetchAndCache(context.Background(), "2330", day("2024-01-01"), day("2024-01-01"), collect.DefaultLimits, nil)
	if !errors.Is(err, ErrNoSearcher) {
		t.Errorf("expected ErrNoSearcher, got %v", err)
	}
}

func TestFetchAndCacheRelativeDates(t *testing.T) {
	db := openTestDB(t)
	parser := newsdate.New()
	parser.Now = func() time.Time { return time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC) }

	searcher := &mockSearcher{articles: []collect.Article{
		{Title: "兩天前", Source: "經濟日報", PublishedDate: "2天前"},
		{Title: "亂碼", Source: "經濟日報", PublishedDate: "???"},
		{Title: "太舊", Source: "經濟日報", PublishedDate: "2週前"},
	}}
	svc := NewService(db, searcher, selector.DefaultRules(), WithParser(parser))

	result, err := svc.FetchAndCache(context.Background(), "2330", day("2024-01-01"), day("2024-01-05"), collect.DefaultLimits, nil)
	if err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}
	if result.NewlyCached != 1 || result.ParseFailures != 1 || result.OutOfRange != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	dates, _ := svc.DatesWithNews("2330", day("2024-01-01"), day("2024-01-05"))
	if len(dates) != 1 || !dates[0].Equal(day("2024-01-03")) {
		t.Errorf("expected news on 2024-01-03, got %v", dates)
	}
}

func seedArticles(t *testing.T, db *database.DB, symbol string, rows ...[3]string) {
	t.Helper()
	for _, r := range rows {
		if _, err := db.InsertArticle(database.CachedArticle{
			Symbol: symbol, Title: r[0], Source: r[1], PublishedDate: day(r[2]),
		}); err != nil {
			t.Fatalf("InsertArticle: %v", err)
		}
	}
}

func TestRegenerateIdempotent(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, selector.DefaultRules())
	seedArticles(t, db, "2330",
		[3]string{"A", "經濟日報", "2024-01-03"},
		[3]string{"B", "工商時報", "2024-01-03"},
		[3]string{"C", "自由時報", "2024-01-03"},
		[3]string{"謝金河談台積電", "財訊", "2024-01-04"},
		[3]string{"D", "工商時報", "2024-01-04"},
	)

	for i := 0; i < 2; i++ {
		n, err := svc.Regenerate("2330", day("2024-01-01"), day("2024-01-05"))
		if err != nil {
			t.Fatalf("Regenerate #%d: %v", i+1, err)
		}
		if n != 2 {
			t.Errorf("Regenerate #%d: expected 2 summaries, got %d", i+1, n)
		}
	}

	summaries, err := svc.DailySummaries("2330", day("2024-01-01"), day("2024-01-05"))
	if err != nil {
		t.Fatalf("DailySummaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected exactly one summary per day, got %d", len(summaries))
	}
	if summaries[0].PrimaryTitle != "謝金河談台積電" || summaries[0].RelatedCount != 1 {
		t.Errorf("expected marker article on 01-04, got %+v", summaries[0])
	}
	if summaries[1].PrimaryTitle != "B" || summaries[1].RelatedCount != 2 {
		t.Errorf("expected 工商時報 article with related 2 on 01-03, got %+v", summaries[1])
	}
}

func TestNewsForTradingDay(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, selector.DefaultRules())
	seedArticles(t, db, "2330",
		[3]string{"週五新聞", "經濟日報", "2024-01-05"},
		[3]string{"週六新聞", "經濟日報", "2024-01-06"},
		[3]string{"謝金河週日專欄", "財訊", "2024-01-07"},
		[3]string{"週一新聞", "經濟日報", "2024-01-08"},
		[3]string{"週四新聞", "經濟日報", "2024-01-04"},
	)
	if _, err := svc.Regenerate("2330", day("2024-01-01"), day("2024-01-10")); err != nil {
		t.Fatal(err)
	}

	monday, err := svc.NewsForTradingDay("2330", day("2024-01-08"))
	if err != nil {
		t.Fatalf("NewsForTradingDay: %v", err)
	}
	want := []string{"謝金河週日專欄", "週一新聞", "週六新聞", "週五新聞"}
	if len(monday) != len(want) {
		t.Fatalf("expected %d summaries, got %d", len(want), len(monday))
	}
	for i, w := range want {
		if monday[i].PrimaryTitle != w {
			t.Errorf("index %d: expected %q, got %q", i, w, monday[i].PrimaryTitle)
		}
	}

	tuesday, _ := svc.NewsForTradingDay("2330", day("2024-01-09"))
	if len(tuesday) != 1 || tuesday[0].PrimaryTitle != "週一新聞" {
		t.Errorf("expected only Monday's news for Tuesday, got %+v", tuesday)
	}
}

func TestTradingDatesWithNews(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, selector.DefaultRules())
	seedArticles(t, db, "2330",
		[3]string{"週五", "經濟日報", "2024-01-05"},
		[3]string{"週六", "經濟日報", "2024-01-06"},
	)
	if _, err := svc.Regenerate("2330", day("2024-01-01"), day("2024-01-10")); err != nil {
		t.Fatal(err)
	}

	got, err := svc.TradingDatesWithNews("2330", day("2024-01-01"), day("2024-01-10"),
		[]time.Time{day("2024-01-05"), day("2024-01-08")})
	if err != nil {
		t.Fatalf("TradingDatesWithNews: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(day("2024-01-05")) || !got[1].Equal(day("2024-01-08")) {
		t.Errorf("expected [01-05 01-08], got %v", got)
	}

	empty, err := svc.TradingDatesWithNews("2330", day("2024-01-01"), day("2024-01-10"), nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil result without trading dates, got %v (%v)", empty, err)
	}
}

func TestResetAndStats(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, &mockSearcher{articles: scenarioArticles()}, selector.DefaultRules())
	if _, err := svc.FetchAndCache(context.Background(), "2330", day("2024-01-01"), day("2024-01-05"), collect.DefaultLimits, nil); err != nil {
		t.Fatal(err)
	}

	stats, symbols, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Articles != 4 || stats.Summaries != 2 || stats.FetchLogs != 1 || len(symbols) != 1 {
		t.Errorf("unexpected stats %+v %+v", stats, symbols)
	}

	counts, err := svc.Reset("2330")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if counts.Articles != 4 || counts.Summaries != 2 || counts.FetchLogs != 1 {
		t.Errorf("unexpected reset counts %+v", counts)
	}
}
