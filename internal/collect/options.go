package collect

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the HTTP timeout for provider requests.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default request rate (requests per second).
	DefaultRateLimit = 2
)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	domains    []string
	names      []DomainName
	queries    QueryBuilder
}

// Option configures a search client.
type Option func(*clientOptions)

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithRateLimit sets the request rate. Zero or less disables limiting.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(o *clientOptions) {
		if requestsPerSecond <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithDomains restricts results to the given domains (where the provider
// supports it) and names their sources.
func WithDomains(domains []string, names []DomainName) Option {
	return func(o *clientOptions) {
		o.domains = domains
		o.names = names
	}
}

// WithQueryBuilder sets how a symbol is turned into a search query.
func WithQueryBuilder(qb QueryBuilder) Option {
	return func(o *clientOptions) {
		o.queries = qb
	}
}

func newClientOptions(baseURL string, opts []Option) clientOptions {
	o := clientOptions{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		queries:    SymbolQuery{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
