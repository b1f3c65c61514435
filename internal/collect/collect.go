package collect

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// SnippetLength bounds the snippet kept for each article, in runes.
const SnippetLength = 200

// Article is a raw search result. PublishedDate is left unparsed.
type Article struct {
	Title         string
	Source        string
	PublishedDate string
	Snippet       string
	URL           string
}

// Limits caps how much a single search may return.
type Limits struct {
	// MaxPages is accepted for compatibility with existing API clients.
	// No provider pages its results, so it is ignored.
	MaxPages    int
	MaxArticles int
}

// DefaultLimits mirrors the defaults of the fetch API.
var DefaultLimits = Limits{MaxPages: 20, MaxArticles: 300}

// Searcher finds news articles about a stock symbol published in a date range.
type Searcher interface {
	Search(ctx context.Context, symbol string, start, end time.Time, limits Limits) ([]Article, error)
}

// APIError is returned when a provider answers with a non-2xx status.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s (status %d)", e.Provider, e.Message, e.StatusCode)
}

// truncateSnippet cuts s to SnippetLength runes.
func truncateSnippet(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= SnippetLength {
		return s
	}
	return string([]rune(s)[:SnippetLength])
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}

// DomainName maps a news site domain to the source name used for ranking.
type DomainName struct {
	Domain string
	Name   string
}

// sourceFromURL derives a display name from an article URL: the first
// configured name whose domain matches, else the first domain label
// title-cased.
func sourceFromURL(articleURL string, names []DomainName) string {
	u, err := url.Parse(articleURL)
	if err != nil || u.Hostname() == "" {
		return "Unknown"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	for _, n := range names {
		if host == n.Domain || strings.HasSuffix(host, "."+n.Domain) {
			return n.Name
		}
	}

	label := strings.Split(host, ".")[0]
	if label == "" {
		return "Unknown"
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// dayAfter returns the date after t formatted as YYYY-MM-DD.
func dayAfter(t time.Time) string {
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}
