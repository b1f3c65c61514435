// Package fetch fills in missing article snippets by extracting the text of
// the article page.
package fetch

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/stocknews/internal/collect"
)

// minTextLength is the shortest extracted text worth keeping, in runes.
const minTextLength = 40

// Enricher wraps a Searcher and fills empty snippets from the article pages.
type Enricher struct {
	next   collect.Searcher
	client *http.Client
}

// NewEnricher creates an enricher around next.
func NewEnricher(next collect.Searcher, timeout time.Duration) *Enricher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Enricher{
		next: next,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Search runs the wrapped search and enriches its results. Pages that
// cannot be fetched leave the snippet empty.
func (e *Enricher) Search(ctx context.Context, symbol string, start, end time.Time, limits collect.Limits) ([]collect.Article, error) {
	articles, err := e.next.Search(ctx, symbol, start, end, limits)
	if err != nil {
		return nil, err
	}

	enriched, failed := 0, 0
	failedDomains := make(map[string]struct{})

	for i := range articles {
		a := &articles[i]
		if a.Snippet != "" || a.URL == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		domain := ""
		if u, err := url.Parse(a.URL); err == nil {
			domain = strings.ToLower(u.Host)
		}
		if _, skip := failedDomains[domain]; skip {
			failed++
			continue
		}

		text, httpErr := e.extract(ctx, a.URL)
		if httpErr != nil {
			failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", a.URL, domain)
			continue
		}
		if text == "" {
			failed++
			continue
		}

		a.Snippet = truncate(text, collect.SnippetLength)
		enriched++
	}

	if enriched+failed > 0 {
		log.Printf("Snippet enrichment: %d filled, %d failed", enriched, failed)
	}
	return articles, nil
}

// extract returns the readable text of a page. Only HTTP status failures
// are reported as errors; anything else yields empty text.
func (e *Enricher) extract(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", "stocknews/1.0 (news cache)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if utf8.RuneCountInString(text) < minTextLength {
		return "", nil
	}
	return text, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
