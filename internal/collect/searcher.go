package collect

import (
	"fmt"

	"github.com/TobiSchelling/stocknews/internal/config"
)

// NewSearcher builds the search provider selected in cfg.
func NewSearcher(cfg *config.Config) (Searcher, error) {
	s := cfg.Search

	var domains []string
	var names []DomainName
	for _, d := range s.Domains {
		domains = append(domains, d.Domain)
		names = append(names, DomainName{Domain: d.Domain, Name: d.Name})
	}

	opts := []Option{
		WithTimeout(s.Timeout),
		WithRateLimit(s.RateLimit),
		WithDomains(domains, names),
	}
	if s.StockNames.Enabled {
		opts = append(opts, WithQueryBuilder(NewStockNames(s.StockNames.URL, 0)))
	}

	switch s.Provider {
	case "tavily":
		c := NewTavilyClient(s.APIKeyEnv, opts...)
		if !c.IsConfigured() {
			return nil, fmt.Errorf("tavily API key not set (export %s or add it to %s)", s.APIKeyEnv, s.EnvFile)
		}
		return c, nil
	case "googlenews":
		return NewGoogleNewsClient(opts...), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", s.Provider)
	}
}

// LimitsFrom returns the configured search limits, falling back to DefaultLimits.
func LimitsFrom(cfg *config.Config) Limits {
	l := DefaultLimits
	if cfg.Search.MaxPages > 0 {
		l.MaxPages = cfg.Search.MaxPages
	}
	if cfg.Search.MaxArticles > 0 {
		l.MaxArticles = cfg.Search.MaxArticles
	}
	return l
}
