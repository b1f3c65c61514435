// Package digest renders cached daily summaries as a Markdown document.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
)

// Markdown renders one section per summarized day, newest first. Articles
// are optional; when given, each day lists its linked sources.
func Markdown(symbol string, start, end time.Time, summaries []database.DailySummary, articles []database.CachedArticle) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s News Digest\n\n", symbol)
	fmt.Fprintf(&b, "*%s*\n\n", database.FormatRangeDisplay(start, end))

	if len(summaries) == 0 {
		b.WriteString("No cached news for this period.\n")
		return b.String()
	}

	byDay := make(map[time.Time][]database.CachedArticle)
	for _, a := range articles {
		byDay[a.PublishedDate] = append(byDay[a.PublishedDate], a)
	}

	var related int
	for _, s := range summaries {
		related += s.RelatedCount
	}
	fmt.Fprintf(&b, "%d days with news, %d articles.\n", len(summaries), len(summaries)+related)

	for _, s := range summaries {
		fmt.Fprintf(&b, "\n## %s (%s)\n\n", newsdate.Format(s.Date), s.Date.Weekday().String()[:3])
		fmt.Fprintf(&b, "**%s** (%s)\n", escape(s.PrimaryTitle), s.PrimarySource)
		if s.RelatedCount > 0 {
			fmt.Fprintf(&b, "\n+%d related\n", s.RelatedCount)
		}

		var refs []string
		for _, a := range byDay[s.Date] {
			if a.URL == nil || *a.URL == "" {
				continue
			}
			refs = append(refs, fmt.Sprintf("- [%s](%s) %s", escape(a.Title), *a.URL, a.Source))
		}
		if len(refs) > 0 {
			b.WriteString("\n**Sources:**\n")
			b.WriteString(strings.Join(refs, "\n"))
			b.WriteString("\n")
		}
	}

	return b.String()
}

var mdEscaper = strings.NewReplacer(`*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`)

func escape(s string) string {
	return mdEscaper.Replace(s)
}
