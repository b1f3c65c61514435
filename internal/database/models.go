package database

import "time"

// CachedArticle is a stored news article. Dates are calendar days at UTC
// midnight.
type CachedArticle struct {
	ID            int64
	Symbol        string
	Title         string
	Source        string
	PublishedDate time.Time
	URL           *string
	Snippet       *string
	CreatedAt     *string
}

// FetchLogEntry records a completed search over [StartDate, EndDate].
type FetchLogEntry struct {
	ID            int64
	Symbol        string
	StartDate     time.Time
	EndDate       time.Time
	ArticlesFound int
	FetchedAt     *string
}

// DailySummary is the primary article of one day plus the number of others.
type DailySummary struct {
	ID            int64
	Symbol        string
	Date          time.Time
	PrimaryTitle  string
	PrimarySource string
	RelatedCount  int
	CreatedAt     *string
}

// Stats holds row counts across the cache tables.
type Stats struct {
	Articles  int
	Summaries int
	FetchLogs int
	Symbols   int
}

// SymbolStats summarizes the cached articles of one symbol.
type SymbolStats struct {
	Symbol    string
	Articles  int
	FirstDate time.Time
	LastDate  time.Time
}

// ResetCounts reports how many rows a reset removed per table.
type ResetCounts struct {
	Summaries int64
	Articles  int64
	FetchLogs int64
}
