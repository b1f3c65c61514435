package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/stocknews/internal/collect"
	"github.com/TobiSchelling/stocknews/internal/config"
	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/fetch"
	"github.com/TobiSchelling/stocknews/internal/jobs"
	"github.com/TobiSchelling/stocknews/internal/news"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
	"github.com/TobiSchelling/stocknews/internal/schedule"
	"github.com/TobiSchelling/stocknews/internal/selector"
	"github.com/TobiSchelling/stocknews/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "stocknews",
	Short:   "Cached Taiwanese stock news",
	Long:    "stocknews searches news for Taiwanese stocks, caches it per day and answers timeline queries from the cache.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetFlags(log.LstdFlags)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.LoadEnv(); err != nil {
			return err
		}

		if verbose || strings.EqualFold(cfg.Logging.Level, "DEBUG") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(summariesCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(datesCmd)
	rootCmd.AddCommand(tradingDatesCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stocknews", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/stocknews/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose a search provider; put TAVILY_API_KEY in your environment or a .env file.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache status",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := openService(false)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, symbols, err := svc.Stats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n", newsdate.Format(database.Today()))
		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("Search provider: %s\n\n", cfg.Search.Provider)
		fmt.Println("Cache:")
		fmt.Printf("  Articles: %d\n", stats.Articles)
		fmt.Printf("  Daily summaries: %d\n", stats.Summaries)
		fmt.Printf("  Fetch log entries: %d\n", stats.FetchLogs)
		fmt.Printf("  Symbols: %d\n", stats.Symbols)

		if len(symbols) > 0 {
			fmt.Println("\nBy symbol:")
			for _, s := range symbols {
				fmt.Printf("  %-10s %5d articles  %s\n", s.Symbol, s.Articles,
					database.FormatRangeDisplay(s.FirstDate, s.LastDate))
			}
		}
		return nil
	},
}

// --- reset command ---

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset [symbol]",
	Short: "Delete cached news for one symbol, or everything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := ""
		if len(args) == 1 {
			symbol = args[0]
		}

		target := "ALL cached news"
		if symbol != "" {
			target = "cached news for " + symbol
		}
		if !resetYes {
			fmt.Printf("Delete %s? [y/N]: ", target)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			answer = strings.TrimSpace(strings.ToLower(answer))
			if answer != "y" && answer != "yes" {
				return fmt.Errorf("aborted")
			}
		}

		svc, db, err := openService(false)
		if err != nil {
			return err
		}
		defer db.Close()

		counts, err := svc.Reset(symbol)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d summaries, %d articles, %d fetch log entries.\n",
			counts.Summaries, counts.Articles, counts.FetchLogs)
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip confirmation")
}

// --- serve command ---

var (
	servePort    int
	serveRefresh bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		searcher, err := newSearcher()
		if err != nil {
			log.Printf("Search provider unavailable (%v); serving cached news only", err)
			searcher = nil
		}
		svc := news.NewService(db, searcher, selector.RulesFrom(cfg.Selection))

		srv, err := server.New(svc, jobs.NewRegistry(), collect.LimitsFrom(cfg))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Schedule.Enabled && searcher != nil && len(cfg.Schedule.Watchlist) > 0 {
			sched := schedule.New(svc, cfg.Schedule.Watchlist, cfg.Schedule.LookbackDays, collect.LimitsFrom(cfg))
			if err := sched.Start(cfg.Schedule.Cron); err != nil {
				return err
			}
			defer sched.Stop()
			if serveRefresh {
				sched.RunNow()
			}
		}

		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port != 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().BoolVar(&serveRefresh, "refresh", false, "Refresh the watchlist once at startup")
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DBPath())
}

// newSearcher builds the configured provider, optionally filling empty
// snippets from the article pages.
func newSearcher() (collect.Searcher, error) {
	s, err := collect.NewSearcher(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Search.EnrichSnippets {
		s = fetch.NewEnricher(s, cfg.Search.Timeout)
	}
	return s, nil
}

// openService opens the database and wraps it in a news service. The search
// provider is only set up when withSearch is true.
func openService(withSearch bool) (*news.Service, *database.DB, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}

	var searcher collect.Searcher
	if withSearch {
		searcher, err = newSearcher()
		if err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return news.NewService(db, searcher, selector.RulesFrom(cfg.Selection)), db, nil
}

// parseRange resolves --start/--end flags. End defaults to today and start
// to a week before end.
func parseRange(start, end string) (time.Time, time.Time, error) {
	endDate := database.Today()
	if end != "" {
		d, err := newsdate.ParseDay(end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		endDate = d
	}

	startDate := endDate.AddDate(0, 0, -6)
	if start != "" {
		d, err := newsdate.ParseDay(start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		startDate = d
	}

	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: --start %s is after --end %s",
			news.ErrInvalidDate, newsdate.Format(startDate), newsdate.Format(endDate))
	}
	return startDate, endDate, nil
}
