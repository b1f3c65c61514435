// Package newsdate turns the assorted date strings returned by news search
// providers into calendar dates.
package newsdate

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout is the calendar date layout used for storage and user input.
const Layout = "2006-01-02"

// ErrInvalidDate is returned when a caller-supplied date is malformed.
var ErrInvalidDate = errors.New("invalid date format")

// maxRelative bounds the N in "N 天前" so the arithmetic stays sane.
const maxRelative = 1_000_000

// Strategy tries to read a date from s. It reports false to let the next
// strategy have a go.
type Strategy func(s string, now time.Time) (time.Time, bool)

// Parser tries each strategy in order and returns the first match.
type Parser struct {
	// Now is the reference time for relative dates. Defaults to time.Now.
	Now        func() time.Time
	strategies []Strategy
}

// New creates a parser with the default strategy chain:
// YYYY-MM-DD, RFC 2822, ISO 8601 with a T separator, relative Chinese.
func New() *Parser {
	return &Parser{
		Now: time.Now,
		strategies: []Strategy{
			parseISODate,
			parseRFC2822,
			parseISODateTime,
			parseRelative,
		},
	}
}

// Parse returns the calendar date for s, or false if no strategy matched.
func (p *Parser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	for _, strategy := range p.strategies {
		if t, ok := strategy(s, now); ok {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to its calendar date (in t's own location) and returns it
// as midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Format renders a calendar date as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// ParseDay parses a caller-supplied YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func parseISODate(s string, _ time.Time) (time.Time, bool) {
	t, err := time.Parse(Layout, s)
	return t, err == nil
}

func parseRFC2822(s string, _ time.Time) (time.Time, bool) {
	t, err := mail.ParseDate(s)
	return t, err == nil
}

func parseISODateTime(s string, _ time.Time) (time.Time, bool) {
	if !strings.Contains(s, "T") {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(s)
	return t, err == nil
}

type relativePattern struct {
	re    *regexp.Regexp
	apply func(now time.Time, n int) time.Time
}

// Months and years are approximated as 30 and 365 days.
var relativePatterns = []relativePattern{
	{regexp.MustCompile(`(\d+)\s*天前`), func(now time.Time, n int) time.Time { return now.AddDate(0, 0, -n) }},
	{regexp.MustCompile(`(\d+)\s*週前`), func(now time.Time, n int) time.Time { return now.AddDate(0, 0, -7*n) }},
	{regexp.MustCompile(`(\d+)\s*個月前`), func(now time.Time, n int) time.Time { return now.AddDate(0, 0, -30*n) }},
	{regexp.MustCompile(`(\d+)\s*年前`), func(now time.Time, n int) time.Time { return now.AddDate(0, 0, -365*n) }},
	{regexp.MustCompile(`(\d+)\s*小時前`), func(now time.Time, n int) time.Time { return now.Add(-time.Duration(n) * time.Hour) }},
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	for _, p := range relativePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxRelative {
			return time.Time{}, false
		}
		return p.apply(now, n), true
	}
	return time.Time{}, false
}
