// Package coverage works out which days of a requested date range have not
// been fetched yet, given the ranges already recorded in the fetch log.
package coverage

import (
	"time"

	"github.com/TobiSchelling/stocknews/internal/newsdate"
)

// Range is a closed interval of calendar days.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange creates a range, truncating both ends to the day.
func NewRange(start, end time.Time) Range {
	return Range{Start: newsdate.Day(start), End: newsdate.Day(end)}
}

// Days returns the number of days in the range, 0 if it is empty.
func (r Range) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int((r.End.Unix()-r.Start.Unix())/86400) + 1
}

// Contains reports whether day falls inside the range.
func (r Range) Contains(day time.Time) bool {
	d := newsdate.Day(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether the two ranges share at least one day.
func (r Range) Overlaps(o Range) bool {
	return !r.Start.After(o.End) && !r.End.Before(o.Start)
}

// String returns "YYYY-MM-DD" for a single day, "YYYY-MM-DD..YYYY-MM-DD"
// otherwise.
func (r Range) String() string {
	start, end := newsdate.Format(r.Start), newsdate.Format(r.End)
	if start == end {
		return start
	}
	return start + ".." + end
}

// Missing returns the gaps of request not covered by any of logged, ordered
// by start date. Consecutive uncovered days are coalesced into one range.
func Missing(request Range, logged []Range) []Range {
	request = NewRange(request.Start, request.End)

	covered := make(map[time.Time]struct{})
	for _, l := range logged {
		l = NewRange(l.Start, l.End)
		if !l.Overlaps(request) {
			continue
		}
		for d := l.Start; !d.After(l.End); d = d.AddDate(0, 0, 1) {
			covered[d] = struct{}{}
		}
	}

	var gaps []Range
	var open *time.Time
	for d := request.Start; !d.After(request.End); d = d.AddDate(0, 0, 1) {
		if _, ok := covered[d]; !ok {
			if open == nil {
				start := d
				open = &start
			}
			continue
		}
		if open != nil {
			gaps = append(gaps, Range{Start: *open, End: d.AddDate(0, 0, -1)})
			open = nil
		}
	}
	if open != nil {
		gaps = append(gaps, Range{Start: *open, End: request.End})
	}
	return gaps
}

// TotalDays sums the days of all ranges.
func TotalDays(ranges []Range) int {
	total := 0
	for _, r := range ranges {
		total += r.Days()
	}
	return total
}
