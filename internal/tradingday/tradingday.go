// Package tradingday maps news dates onto exchange trading days.
package tradingday

import (
	"sort"
	"time"

	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
	"github.com/TobiSchelling/stocknews/internal/selector"
)

// Map assigns each news date to a trading day. A trading date maps to
// itself; any other date rolls forward to the next trading date and is
// dropped if there is none. The result is sorted and unique.
func Map(newsDates, tradingDates []time.Time) []time.Time {
	if len(newsDates) == 0 || len(tradingDates) == 0 {
		return nil
	}

	trading := normalize(tradingDates)

	seen := make(map[time.Time]struct{})
	var out []time.Time
	for _, d := range newsDates {
		d = newsdate.Day(d)
		i := sort.Search(len(trading), func(i int) bool { return !trading[i].Before(d) })
		if i == len(trading) {
			continue
		}
		if _, ok := seen[trading[i]]; ok {
			continue
		}
		seen[trading[i]] = struct{}{}
		out = append(out, trading[i])
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// normalize truncates, sorts and deduplicates dates.
func normalize(dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		out = append(out, newsdate.Day(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	n := 0
	for i, d := range out {
		if i > 0 && d.Equal(out[n-1]) {
			continue
		}
		out[n] = d
		n++
	}
	return out[:n]
}

// Lookback is how many days before day still count as its news: the
// weekend for a Monday, otherwise the previous day.
func Lookback(day time.Time) int {
	if day.Weekday() == time.Monday {
		return 3
	}
	return 1
}

// Window returns the summary dates that belong to trading day.
func Window(day time.Time) (start, end time.Time) {
	end = newsdate.Day(day)
	return end.AddDate(0, 0, -Lookback(end)), end
}

// Order sorts summaries with marker titles first, then newest first.
func Order(summaries []database.DailySummary, rules selector.Rules) []database.DailySummary {
	out := make([]database.DailySummary, len(summaries))
	copy(out, summaries)
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := rules.HasMarker(out[i].PrimaryTitle), rules.HasMarker(out[j].PrimaryTitle)
		if mi != mj {
			return mi
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}
