package database

import (
	"fmt"
	"time"

	"github.com/TobiSchelling/stocknews/internal/newsdate"
)

// Today returns today's calendar date.
func Today() time.Time {
	return newsdate.Day(time.Now())
}

// FormatRangeDisplay formats a date range for human-readable display.
// Single day: "Feb 06, 2026"
// Range: "Feb 01 - Feb 06, 2026"
func FormatRangeDisplay(start, end time.Time) string {
	if start.Equal(end) {
		return start.Format("Jan 02, 2006")
	}
	if start.Year() != end.Year() {
		return fmt.Sprintf("%s - %s", start.Format("Jan 02, 2006"), end.Format("Jan 02, 2006"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
}

// dateArg renders a calendar date as a query argument.
func dateArg(t time.Time) string {
	return newsdate.Format(t)
}

// scanDate parses a stored date column, tolerating a trailing time part.
func scanDate(s string) (time.Time, error) {
	if len(s) > len(newsdate.Layout) {
		s = s[:len(newsdate.Layout)]
	}
	t, err := time.Parse(newsdate.Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored date %q: %w", s, err)
	}
	return t, nil
}
