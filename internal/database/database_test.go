package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func insertArticle(t *testing.T, db *DB, symbol, title, source, date string) int64 {
	t.Helper()
	id, err := db.InsertArticle(CachedArticle{Symbol: symbol, Title: title, Source: source, PublishedDate: day(date)})
	if err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}
	return id
}

func TestInsertArticle(t *testing.T) {
	db := openTestDB(t)
	id, err := db.InsertArticle(CachedArticle{
		Symbol:        "2330",
		Title:         "台積電法說會",
		Source:        "工商時報",
		PublishedDate: day("2024-01-03"),
		URL:           ptr("https://www.ctee.com.tw/news/1"),
		Snippet:       ptr("摘要"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero article ID")
	}

	articles, err := db.GetArticlesInRange("2330", day("2024-01-03"), day("2024-01-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	a := articles[0]
	if !a.PublishedDate.Equal(day("2024-01-03")) {
		t.Errorf("expected 2024-01-03, got %v", a.PublishedDate)
	}
	if a.URL == nil || *a.URL != "https://www.ctee.com.tw/news/1" {
		t.Error("expected url to round-trip")
	}
	if a.CreatedAt == nil {
		t.Error("expected created_at default")
	}
}

func TestGetArticlesInRange(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "2330", "B", "s", "2024-01-05")
	insertArticle(t, db, "2330", "A", "s", "2024-01-03")
	insertArticle(t, db, "2330", "A2", "s", "2024-01-03")
	insertArticle(t, db, "2330", "old", "s", "2023-12-31")
	insertArticle(t, db, "2317", "other", "s", "2024-01-03")

	articles, err := db.GetArticlesInRange("2330", day("2024-01-01"), day("2024-01-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}
	want := []string{"A", "A2", "B"}
	for i, a := range articles {
		if a.Title != want[i] {
			t.Errorf("article %d: expected %q, got %q", i, want[i], a.Title)
		}
	}

	n, err := db.CountArticlesInRange("2330", day("2024-01-01"), day("2024-01-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}
}

func TestGetOverlappingFetchLogs(t *testing.T) {
	db := openTestDB(t)
	db.InsertFetchLog("2330", day("2024-01-10"), day("2024-01-20"), 5)
	db.InsertFetchLog("2330", day("2024-01-01"), day("2024-01-05"), 0)
	db.InsertFetchLog("2330", day("2024-02-01"), day("2024-02-05"), 2)
	db.InsertFetchLog("2317", day("2024-01-01"), day("2024-01-31"), 9)

	entries, err := db.GetOverlappingFetchLogs("2330", day("2024-01-05"), day("2024-01-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 overlapping entries, got %d", len(entries))
	}
	if !entries[0].StartDate.Equal(day("2024-01-01")) || !entries[1].StartDate.Equal(day("2024-01-10")) {
		t.Errorf("expected entries ordered by start date, got %v and %v", entries[0].StartDate, entries[1].StartDate)
	}
	if entries[0].ArticlesFound != 0 || entries[1].ArticlesFound != 5 {
		t.Errorf("unexpected counts %d, %d", entries[0].ArticlesFound, entries[1].ArticlesFound)
	}
}

func TestSummaryLifecycle(t *testing.T) {
	db := openTestDB(t)
	for _, d := range []string{"2024-01-03", "2024-01-05"} {
		if _, err := db.InsertSummary(DailySummary{
			Symbol: "2330", Date: day(d), PrimaryTitle: "t " + d, PrimarySource: "工商時報", RelatedCount: 1,
		}); err != nil {
			t.Fatalf("InsertSummary: %v", err)
		}
	}

	summaries, err := db.GetSummariesInRange("2330", day("2024-01-01"), day("2024-01-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if !summaries[0].Date.Equal(day("2024-01-05")) {
		t.Errorf("expected newest first, got %v", summaries[0].Date)
	}

	dates, err := db.GetSummaryDates("2330", day("2024-01-01"), day("2024-01-31"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 2 || !dates[0].Equal(day("2024-01-03")) {
		t.Errorf("expected ascending dates, got %v", dates)
	}

	deleted, err := db.DeleteSummariesInRange("2330", day("2024-01-04"), day("2024-01-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestSummaryUniquePerDay(t *testing.T) {
	db := openTestDB(t)
	s := DailySummary{Symbol: "2330", Date: day("2024-01-03"), PrimaryTitle: "a", PrimarySource: "b"}
	if _, err := db.InsertSummary(s); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.InsertSummary(s); err == nil {
		t.Error("expected unique violation for a second summary on the same day")
	}
}

func TestInTxRollback(t *testing.T) {
	db := openTestDB(t)
	boom := errors.New("boom")

	err := db.InTx(func(tx *Tx) error {
		if _, err := tx.InsertArticle(CachedArticle{Symbol: "2330", Title: "x", Source: "s", PublishedDate: day("2024-01-03")}); err != nil {
			return err
		}
		if _, err := tx.InsertFetchLog("2330", day("2024-01-03"), day("2024-01-03"), 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Articles != 0 || stats.FetchLogs != 0 {
		t.Errorf("expected rollback to discard writes, got %+v", stats)
	}
}

func TestInTxCommit(t *testing.T) {
	db := openTestDB(t)
	err := db.InTx(func(tx *Tx) error {
		_, err := tx.InsertFetchLog("2330", day("2024-01-03"), day("2024-01-04"), 0)
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	entries, _ := db.GetOverlappingFetchLogs("2330", day("2024-01-01"), day("2024-01-31"))
	if len(entries) != 1 {
		t.Errorf("expected committed fetch log, got %d entries", len(entries))
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "2330", "A", "s", "2024-01-03")
	insertArticle(t, db, "2330", "B", "s", "2024-01-05")
	insertArticle(t, db, "2317", "C", "s", "2024-01-04")
	db.InsertFetchLog("2330", day("2024-01-01"), day("2024-01-05"), 2)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Articles != 3 || stats.FetchLogs != 1 || stats.Symbols != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	perSymbol, err := db.GetSymbolStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(perSymbol) != 2 || perSymbol[1].Symbol != "2330" {
		t.Fatalf("unexpected symbol stats %+v", perSymbol)
	}
	if perSymbol[1].Articles != 2 || !perSymbol[1].FirstDate.Equal(day("2024-01-03")) || !perSymbol[1].LastDate.Equal(day("2024-01-05")) {
		t.Errorf("unexpected 2330 stats %+v", perSymbol[1])
	}
}

func TestReset(t *testing.T) {
	db := openTestDB(t)
	insertArticle(t, db, "2330", "A", "s", "2024-01-03")
	insertArticle(t, db, "2317", "B", "s", "2024-01-03")
	db.InsertFetchLog("2330", day("2024-01-01"), day("2024-01-05"), 1)
	db.InsertSummary(DailySummary{Symbol: "2330", Date: day("2024-01-03"), PrimaryTitle: "A", PrimarySource: "s"})

	counts, err := db.Reset("2330")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if counts.Articles != 1 || counts.Summaries != 1 || counts.FetchLogs != 1 {
		t.Errorf("unexpected reset counts %+v", counts)
	}

	stats, _ := db.GetStats()
	if stats.Articles != 1 {
		t.Errorf("expected other symbol to survive, got %d articles", stats.Articles)
	}

	counts, err = db.Reset("")
	if err != nil {
		t.Fatalf("Reset all: %v", err)
	}
	if counts.Articles != 1 {
		t.Errorf("expected 1 article removed, got %d", counts.Articles)
	}
}

func TestToday(t *testing.T) {
	today := Today()
	if today.Hour() != 0 || today.Location() != time.UTC {
		t.Errorf("expected midnight UTC, got %v", today)
	}
}

func TestFormatRangeDisplay(t *testing.T) {
	tests := []struct {
		start, end string
		want       string
	}{
		{"2026-02-06", "2026-02-06", "Feb 06, 2026"},
		{"2026-02-01", "2026-02-06", "Feb 01 - Feb 06, 2026"},
		{"2025-12-29", "2026-01-02", "Dec 29, 2025 - Jan 02, 2026"},
	}
	for _, tt := range tests {
		if got := FormatRangeDisplay(day(tt.start), day(tt.end)); got != tt.want {
			t.Errorf("FormatRangeDisplay(%s, %s) = %q, want %q", tt.start, tt.end, got, tt.want)
		}
	}
}
