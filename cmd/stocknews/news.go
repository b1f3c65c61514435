package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/stocknews/internal/collect"
	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/digest"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
)

var (
	startFlag       string
	endFlag         string
	maxArticlesFlag int
	maxPagesFlag    int
	digestOutput    string
	tradingDateArgs []string
)

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&startFlag, "start", "", "Start date YYYY-MM-DD (default: a week before end)")
	cmd.Flags().StringVar(&endFlag, "end", "", "End date YYYY-MM-DD (default: today)")
}

// --- fetch command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch SYMBOL",
	Short: "Search and cache news for the uncached days of a range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(startFlag, endFlag)
		if err != nil {
			return err
		}

		svc, db, err := openService(true)
		if err != nil {
			return err
		}
		defer db.Close()

		limits := collect.LimitsFrom(cfg)
		if maxArticlesFlag > 0 {
			limits.MaxArticles = maxArticlesFlag
		}
		if maxPagesFlag > 0 {
			limits.MaxPages = maxPagesFlag
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		symbol := args[0]
		fmt.Printf("Fetching %s for %s\n", symbol, database.FormatRangeDisplay(start, end))
		result, err := svc.FetchAndCache(ctx, symbol, start, end, limits, func(percent int, message string) {
			fmt.Printf("  [%3d%%] %s\n", percent, message)
		})
		if err != nil {
			return err
		}

		if result.Cached() {
			fmt.Printf("\nAlready cached: %d articles.\n", result.Total)
			return nil
		}
		fmt.Printf("\nSearched %d range(s), cached %d new articles (%d total).\n",
			len(result.Ranges), result.NewlyCached, result.Total)
		if result.Excluded+result.ParseFailures+result.OutOfRange > 0 {
			fmt.Printf("Dropped: %d excluded, %d unparseable dates, %d out of range.\n",
				result.Excluded, result.ParseFailures, result.OutOfRange)
		}
		return nil
	},
}

// --- summaries command ---

var summariesCmd = &cobra.Command{
	Use:   "summaries SYMBOL",
	Short: "List the daily summaries of a range, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(startFlag, endFlag)
		if err != nil {
			return err
		}
		svc, db, err := openService(false)
		if err != nil {
			return err
		}
		defer db.Close()

		summaries, err := svc.DailySummaries(args[0], start, end)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No cached news for this period. Run 'stocknews fetch' first.")
			return nil
		}
		for _, s := range summaries {
			printSummary(s)
		}
		return nil
	},
}

func printSummary(s database.DailySummary) {
	fmt.Printf("%s  %s (%s)", newsdate.Format(s.Date), s.PrimaryTitle, s.PrimarySource)
	if s.RelatedCount > 0 {
		fmt.Printf("  +%d", s.RelatedCount)
	}
	fmt.Println()
}

// --- news command ---

var newsCmd = &cobra.Command{
	Use:   "news SYMBOL DATE",
	Short: "Show the news a trading day covers, including preceding non-trading days",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := newsdate.ParseDay(args[1])
		if err != nil {
			return err
		}
		svc, db, err := openService(false)
		if err != nil {
			return err
		}
		defer db.Close()

		summaries, err := svc.NewsForTradingDay(args[0], day)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No cached news for this trading day.")
			return nil
		}
		for _, s := range summaries {
			printSummary(s)
		}
		return nil
	},
}

// --- dates commands ---

var datesCmd = &cobra.Command{
	Use:   "dates SYMBOL",
	Short: "List the calendar days with cached news",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(startFlag, endFlag)
		if err != nil {
			return err
		}
		svc, db, err := openService(false)
		if err != nil {
			return err
		}
		defer db.Close()

		dates, err := svc.DatesWithNews(args[0], start, end)
		if err != nil {
			return err
		}
		for _, d := range dates {
			fmt.Println(newsdate.Format(d))
		}
		return nil
	},
}

var tradingDatesCmd = &cobra.Command{
	Use:   "trading-dates SYMBOL --trading-dates DATE,DATE...",
	Short: "List the trading days that have news mapped onto them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(startFlag, endFlag)
		if err != nil {
			return err
		}
		var trading []time.Time
		for _, raw := range tradingDateArgs {
			d, err := newsdate.ParseDay(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			trading = append(trading, d)
		}

		svc, db, err := openService(false)
		if err != nil {
			return err
		}
		defer db.Close()

		dates, err := svc.TradingDatesWithNews(args[0], start, end, trading)
		if err != nil {
			return err
		}
		for _, d := range dates {
			fmt.Println(newsdate.Format(d))
		}
		return nil
	},
}

// --- articles command ---

var articlesCmd = &cobra.Command{
	Use:   "articles SYMBOL",
	Short: "List every cached article of a range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(startFlag, endFlag)
		if err != nil {
			return err
		}
		svc, db, err := openService(false)
		if err != nil {
			return err
		}
		defer db.Close()

		articles, err := svc.Articles(args[0], start, end)
		if err != nil {
			return err
		}
		for _, a := range articles {
			fmt.Printf("%s  %s (%s)\n", newsdate.Format(a.PublishedDate), a.Title, a.Source)
			if a.URL != nil && *a.URL != "" {
				fmt.Printf("            %s\n", *a.URL)
			}
		}
		fmt.Printf("\n%d articles\n", len(articles))
		return nil
	},
}

// --- digest command ---

var digestCmd = &cobra.Command{
	Use:   "digest SYMBOL",
	Short: "Write a Markdown digest of the cached news",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(startFlag, endFlag)
		if err != nil {
			return err
		}
		svc, db, err := openService(false)
		if err != nil {
			return err
		}
		defer db.Close()

		symbol := args[0]
		summaries, err := svc.DailySummaries(symbol, start, end)
		if err != nil {
			return err
		}
		articles, err := svc.Articles(symbol, start, end)
		if err != nil {
			return err
		}

		md := digest.Markdown(symbol, start, end, summaries, articles)
		if digestOutput == "" {
			fmt.Print(md)
			return nil
		}
		if err := os.WriteFile(digestOutput, []byte(md), 0o644); err != nil {
			return fmt.Errorf("writing digest: %w", err)
		}
		fmt.Printf("Digest written to %s\n", digestOutput)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{fetchCmd, summariesCmd, datesCmd, tradingDatesCmd, articlesCmd, digestCmd} {
		addRangeFlags(cmd)
	}
	fetchCmd.Flags().IntVar(&maxArticlesFlag, "max-articles", 0, "Override search.max_articles")
	fetchCmd.Flags().IntVar(&maxPagesFlag, "max-pages", 0, "Override search.max_pages")
	tradingDatesCmd.Flags().StringSliceVar(&tradingDateArgs, "trading-dates", nil, "Trading days, comma separated")
	tradingDatesCmd.MarkFlagRequired("trading-dates")
	digestCmd.Flags().StringVarP(&digestOutput, "output", "o", "", "Write to file instead of stdout")
}
