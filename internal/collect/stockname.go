package collect

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const yahooQuoteURL = "https://tw.stock.yahoo.com/quote/"

// QueryBuilder turns a stock symbol into a search query.
type QueryBuilder interface {
	Query(ctx context.Context, symbol string) string
}

// SymbolQuery uses the bare stock code as the query.
type SymbolQuery struct{}

// Query returns the stock code without its exchange suffix.
func (SymbolQuery) Query(_ context.Context, symbol string) string {
	return StockCode(symbol)
}

// StockCode strips the .TW / .TWO exchange suffix from a symbol.
func StockCode(symbol string) string {
	upper := strings.ToUpper(symbol)
	for _, suffix := range []string{".TWO", ".TW"} {
		if strings.HasSuffix(upper, suffix) {
			return symbol[:len(symbol)-len(suffix)]
		}
	}
	return symbol
}

// StockNames builds "code name" queries using the company name shown on
// Yahoo Taiwan's quote page. Names are cached for the process lifetime.
type StockNames struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	names map[string]string
}

// NewStockNames creates a lookup against baseURL (Yahoo Taiwan if empty).
func NewStockNames(baseURL string, timeout time.Duration) *StockNames {
	if baseURL == "" {
		baseURL = yahooQuoteURL
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &StockNames{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		names:   make(map[string]string),
	}
}

// Query returns "code name", or just the code when the name is unavailable.
func (s *StockNames) Query(ctx context.Context, symbol string) string {
	code := StockCode(symbol)
	name, err := s.Name(ctx, symbol)
	if err != nil || name == "" {
		log.Printf("Using fallback query for %s: %s", symbol, code)
		return code
	}
	return code + " " + name
}

// Name returns the Chinese company name for a symbol.
func (s *StockNames) Name(ctx context.Context, symbol string) (string, error) {
	code := StockCode(symbol)

	s.mu.Lock()
	name, ok := s.names[code]
	s.mu.Unlock()
	if ok {
		return name, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+code+".TW", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stocknews/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching quote page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: "yahoo", StatusCode: resp.StatusCode, Message: resp.Status}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing quote page: %w", err)
	}

	// Page title looks like "台積電(2330) 走勢圖 - Yahoo奇摩股市".
	title := strings.TrimSpace(doc.Find("title").First().Text())
	i := strings.Index(title, "(")
	if i <= 0 {
		return "", fmt.Errorf("no company name in title %q", title)
	}
	name = strings.TrimSpace(title[:i])

	s.mu.Lock()
	s.names[code] = name
	s.mu.Unlock()

	log.Printf("Found Chinese name for %s: %s", symbol, name)
	return name, nil
}
