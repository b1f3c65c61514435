package collect

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const googleNewsBaseURL = "https://news.google.com/rss/search"

// GoogleNewsClient searches the Google News RSS endpoint.
type GoogleNewsClient struct {
	opts     clientOptions
	language string
	region   string
}

// NewGoogleNewsClient creates a Google News RSS client for Taiwanese news.
func NewGoogleNewsClient(opts ...Option) *GoogleNewsClient {
	return &GoogleNewsClient{
		opts:     newClientOptions(googleNewsBaseURL, opts),
		language: "zh-TW",
		region:   "TW",
	}
}

// Search fetches the RSS search feed for symbol restricted to [start, end].
func (c *GoogleNewsClient) Search(ctx context.Context, symbol string, start, end time.Time, limits Limits) ([]Article, error) {
	query := c.opts.queries.Query(ctx, symbol)
	q := fmt.Sprintf("%s after:%s before:%s", query, start.Format("2006-01-02"), dayAfter(end))

	params := url.Values{
		"q":    {q},
		"hl":   {c.language},
		"gl":   {c.region},
		"ceid": {c.region + ":zh-Hant"},
	}
	feedURL := c.opts.baseURL + "?" + params.Encode()

	if err := c.opts.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	parser := gofeed.NewParser()
	parser.Client = c.opts.httpClient
	parser.UserAgent = "stocknews/1.0 (news cache)"

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &APIError{Provider: "google news", StatusCode: httpErr.StatusCode, Message: httpErr.Status}
		}
		return nil, fmt.Errorf("parsing google news feed: %w", err)
	}

	var articles []Article
	for _, item := range feed.Items {
		if limits.MaxArticles > 0 && len(articles) >= limits.MaxArticles {
			break
		}
		if a, ok := parseItem(item); ok {
			articles = append(articles, a)
		}
	}

	log.Printf("Google News returned %d entries for %q, kept %d", len(feed.Items), query, len(articles))
	return articles, nil
}

func parseItem(item *gofeed.Item) (Article, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" || item.Link == "" {
		return Article{}, false
	}

	published := strings.TrimSpace(item.Published)
	if published == "" {
		published = strings.TrimSpace(item.Updated)
	}
	if published == "" {
		return Article{}, false
	}

	source := ""
	if i := strings.LastIndex(title, " - "); i > 0 {
		source = strings.TrimSpace(title[i+3:])
		title = strings.TrimSpace(title[:i])
	}
	if source == "" && item.Author != nil {
		source = item.Author.Name
	}
	if source == "" {
		source = "Google News"
	}

	return Article{
		Title:         title,
		Source:        source,
		PublishedDate: published,
		Snippet:       truncateSnippet(stripHTML(item.Description)),
		URL:           item.Link,
	}, true
}
