package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

const tavilyBaseURL = "https://api.tavily.com/search"

// tavilyMaxResults is the most results Tavily returns per call.
const tavilyMaxResults = 20

var urlDatePattern = regexp.MustCompile(`/(\d{8})`)

// TavilyClient searches news through the Tavily search API.
type TavilyClient struct {
	apiKey string
	opts   clientOptions
}

// NewTavilyClient creates a Tavily client reading its key from apiKeyEnv.
func NewTavilyClient(apiKeyEnv string, opts ...Option) *TavilyClient {
	return &TavilyClient{
		apiKey: os.Getenv(apiKeyEnv),
		opts:   newClientOptions(tavilyBaseURL, opts),
	}
}

// IsConfigured returns whether the API key is available.
func (c *TavilyClient) IsConfigured() bool {
	return c.apiKey != ""
}

type tavilyRequest struct {
	Query             string   `json:"query"`
	Topic             string   `json:"topic"`
	SearchDepth       string   `json:"search_depth"`
	MaxResults        int      `json:"max_results"`
	IncludeRawContent bool     `json:"include_raw_content"`
	IncludeImages     bool     `json:"include_images"`
	TimeRange         string   `json:"time_range"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		PublishedDate string  `json:"published_date"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// Search queries Tavily for news about symbol between start and end.
func (c *TavilyClient) Search(ctx context.Context, symbol string, start, end time.Time, limits Limits) ([]Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily API key not set")
	}

	query := c.opts.queries.Query(ctx, symbol)
	log.Printf("Tavily news search for %q (symbol %s) from %s to %s",
		query, symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))

	maxResults := tavilyMaxResults
	if limits.MaxArticles > 0 && limits.MaxArticles < maxResults {
		maxResults = limits.MaxArticles
	}

	body, err := json.Marshal(tavilyRequest{
		Query:          query,
		Topic:          "news",
		SearchDepth:    "basic",
		MaxResults:     maxResults,
		TimeRange:      timeRange(start, end),
		IncludeDomains: c.opts.domains,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	if err := c.opts.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{Provider: "tavily", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var result tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding tavily response: %w", err)
	}

	var articles []Article
	for _, r := range result.Results {
		published := dateFromURL(r.URL)
		if published == "" {
			published = strings.TrimSpace(r.PublishedDate)
		}
		if published == "" {
			log.Printf("Skipping article without date: %s", r.Title)
			continue
		}

		articles = append(articles, Article{
			Title:         strings.TrimSpace(r.Title),
			Source:        sourceFromURL(r.URL, c.opts.names),
			PublishedDate: published,
			Snippet:       truncateSnippet(r.Content),
			URL:           r.URL,
		})
	}

	log.Printf("Tavily returned %d results, kept %d", len(result.Results), len(articles))
	return articles, nil
}

// timeRange buckets the search window the way Tavily expects.
func timeRange(start, end time.Time) string {
	days := int(end.Sub(start).Hours() / 24)
	switch {
	case days <= 1:
		return "day"
	case days <= 7:
		return "week"
	case days <= 30:
		return "month"
	default:
		return "year"
	}
}

// dateFromURL extracts a /YYYYMMDD path segment as YYYY-MM-DD.
func dateFromURL(articleURL string) string {
	m := urlDatePattern.FindStringSubmatch(articleURL)
	if m == nil {
		return ""
	}
	t, err := time.Parse("20060102", m[1])
	if err != nil {
		log.Printf("Invalid date in URL: %s", m[1])
		return ""
	}
	return t.Format("2006-01-02")
}
