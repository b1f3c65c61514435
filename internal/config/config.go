package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Search    Search    `yaml:"search"`
	Selection Selection `yaml:"selection"`
	Server    Server    `yaml:"server"`
	Schedule  Schedule  `yaml:"schedule"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type Search struct {
	Provider       string        `yaml:"provider"` // "tavily" or "googlenews"
	APIKeyEnv      string        `yaml:"api_key_env"`
	EnvFile        string        `yaml:"env_file"`
	Domains        []Domain      `yaml:"domains"`
	MaxPages       int           `yaml:"max_pages"`
	MaxArticles    int           `yaml:"max_articles"`
	RateLimit      float64       `yaml:"rate_limit"`
	Timeout        time.Duration `yaml:"timeout"`
	EnrichSnippets bool          `yaml:"enrich_snippets"`
	StockNames     StockNames    `yaml:"stock_names"`
}

// Domain is an allowed news domain and the source name its articles get.
type Domain struct {
	Domain string `yaml:"domain"`
	Name   string `yaml:"name"`
}

type StockNames struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type Selection struct {
	ExcludedSources  []string         `yaml:"excluded_sources"`
	Markers          []string         `yaml:"markers"`
	SourcePriorities []SourcePriority `yaml:"source_priorities"`
}

type SourcePriority struct {
	Match    string `yaml:"match"`
	Priority int    `yaml:"priority"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Schedule struct {
	Enabled      bool     `yaml:"enabled"`
	Cron         string   `yaml:"cron"`
	LookbackDays int      `yaml:"lookback_days"`
	Watchlist    []string `yaml:"watchlist"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for stocknews.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "stocknews")
}

// DataDir returns the XDG data directory for stocknews.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "stocknews")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $XDG_CONFIG_HOME/stocknews/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'stocknews init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Search: Search{
			Provider:    "tavily",
			APIKeyEnv:   "TAVILY_API_KEY",
			EnvFile:     ".env",
			Domains:     []Domain{{Domain: "ctee.com.tw", Name: "工商時報"}},
			MaxPages:    20,
			MaxArticles: 300,
			RateLimit:   2,
			Timeout:     30 * time.Second,
			StockNames:  StockNames{Enabled: true},
		},
		Selection: Selection{
			ExcludedSources:  []string{"盤中速報", "TradingView"},
			Markers:          []string{"謝金河"},
			SourcePriorities: []SourcePriority{{Match: "工商時報", Priority: 1}},
		},
		Server: Server{Port: 8000},
		Schedule: Schedule{
			Cron:         "30 18 * * 1-5",
			LookbackDays: 7,
		},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch cfg.Search.Provider {
	case "tavily", "googlenews":
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Search.Provider)
	}

	return cfg, nil
}

// LoadEnv loads provider secrets from the configured .env file, if present.
// Variables already set in the environment win.
func (c *Config) LoadEnv() error {
	if c.Search.EnvFile == "" {
		return nil
	}
	if err := godotenv.Load(c.Search.EnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", c.Search.EnvFile, err)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "stocknews.db")
}
