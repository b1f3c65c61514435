// Package selector filters raw search results and picks the primary article
// of a day.
package selector

import (
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/stocknews/internal/collect"
	"github.com/TobiSchelling/stocknews/internal/config"
	"github.com/TobiSchelling/stocknews/internal/coverage"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
)

// DefaultSourcePriority ranks sources without an explicit rule.
const DefaultSourcePriority = 999

// SourceRule assigns a priority to sources containing Match. Lower wins.
type SourceRule struct {
	Match    string
	Priority int
}

// Rules configures exclusion and ranking. All matching is substring based.
type Rules struct {
	Excluded []string
	Markers  []string
	Sources  []SourceRule
}

// DefaultRules returns the built-in Taiwanese market rules.
func DefaultRules() Rules {
	return Rules{
		Excluded: []string{"盤中速報", "TradingView"},
		Markers:  []string{"謝金河"},
		Sources:  []SourceRule{{Match: "工商時報", Priority: 1}},
	}
}

// RulesFrom builds rules from the selection config.
func RulesFrom(cfg config.Selection) Rules {
	r := Rules{
		Excluded: cfg.ExcludedSources,
		Markers:  cfg.Markers,
	}
	for _, sp := range cfg.SourcePriorities {
		r.Sources = append(r.Sources, SourceRule{Match: sp.Match, Priority: sp.Priority})
	}
	return r
}

// IsExcluded reports whether the source matches any excluded pattern.
func (r Rules) IsExcluded(source string) bool {
	return containsAny(source, r.Excluded)
}

// SourcePriority returns the priority of the first rule matching source.
func (r Rules) SourcePriority(source string) int {
	for _, s := range r.Sources {
		if s.Match != "" && strings.Contains(source, s.Match) {
			return s.Priority
		}
	}
	return DefaultSourcePriority
}

// HasMarker reports whether the title mentions a marker keyword.
func (r Rules) HasMarker(title string) bool {
	return containsAny(title, r.Markers)
}

// Rank orders articles: marker titles first, then by source priority.
type Rank struct {
	Content int
	Source  int
}

// Less reports whether a ranks ahead of b.
func (a Rank) Less(b Rank) bool {
	if a.Content != b.Content {
		return a.Content < b.Content
	}
	return a.Source < b.Source
}

// Rank computes the ranking key of an article.
func (r Rules) Rank(title, source string) Rank {
	content := 1
	if r.HasMarker(title) {
		content = 0
	}
	return Rank{Content: content, Source: r.SourcePriority(source)}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Parsed is a raw article with its resolved publication date.
type Parsed struct {
	collect.Article
	Published time.Time
}

// FilterStats counts why articles were dropped.
type FilterStats struct {
	Excluded      int
	ParseFailures int
	OutOfRange    int
}

// Filter drops excluded sources, unparseable dates, and articles published
// outside window. Comparison is by calendar day.
func Filter(rules Rules, articles []collect.Article, window coverage.Range, parser *newsdate.Parser) ([]Parsed, FilterStats) {
	var kept []Parsed
	var stats FilterStats
	for _, a := range articles {
		if rules.IsExcluded(a.Source) {
			stats.Excluded++
			continue
		}
		published, ok := parser.Parse(a.PublishedDate)
		if !ok {
			stats.ParseFailures++
			continue
		}
		if !window.Contains(published) {
			stats.OutOfRange++
			continue
		}
		kept = append(kept, Parsed{Article: a, Published: published})
	}
	return kept, stats
}

// Pick returns the primary item and how many others there are. Ties keep
// input order. ok is false for an empty slice.
func Pick[T any](rules Rules, items []T, fields func(T) (title, source string)) (primary T, related int, ok bool) {
	if len(items) == 0 {
		return primary, 0, false
	}
	ranked := make([]T, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		ti, si := fields(ranked[i])
		tj, sj := fields(ranked[j])
		return rules.Rank(ti, si).Less(rules.Rank(tj, sj))
	})
	return ranked[0], len(items) - 1, true
}
