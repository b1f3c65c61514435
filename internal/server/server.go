package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/stocknews/internal/collect"
	"github.com/TobiSchelling/stocknews/internal/database"
	"github.com/TobiSchelling/stocknews/internal/digest"
	"github.com/TobiSchelling/stocknews/internal/jobs"
	"github.com/TobiSchelling/stocknews/internal/news"
	"github.com/TobiSchelling/stocknews/internal/newsdate"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New()

// jobTimeout bounds a background fetch.
const jobTimeout = 30 * time.Minute

// Server is the HTTP API over the news cache.
type Server struct {
	svc    *news.Service
	jobs   *jobs.Registry
	limits collect.Limits
	page   *template.Template
	engine *gin.Engine

	wg sync.WaitGroup
}

// New creates a new Server.
func New(svc *news.Service, registry *jobs.Registry, limits collect.Limits) (*Server, error) {
	page, err := template.New("digest.html").Funcs(template.FuncMap{
		"markdown": renderMarkdown,
	}).ParseFS(templateFS, "templates/digest.html")
	if err != nil {
		return nil, fmt.Errorf("parsing digest template: %w", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLog())

	s := &Server{
		svc:    svc,
		jobs:   registry,
		limits: limits,
		page:   page,
		engine: engine,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Wait blocks until background fetch jobs have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/digest/:symbol", s.handleDigest)

	api := s.engine.Group("/api/news")
	api.POST("/fetch", s.handleFetch)
	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.DELETE("/jobs/:id", s.handleDeleteJob)
	api.GET("/summaries/:symbol", s.handleSummaries)
	api.GET("/by-date/:symbol/:date", s.handleByDate)
	api.GET("/dates/:symbol", s.handleDates)
	api.POST("/trading-dates/:symbol", s.handleTradingDates)
	api.GET("/articles/:symbol", s.handleArticles)
}

// requestLog writes one log line per request.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond))
	}
}

// fail maps service errors to status codes.
func fail(c *gin.Context, action string, err error) {
	var provErr *news.ProviderError
	switch {
	case errors.Is(err, news.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.As(err, &provErr):
		log.Printf("Provider error while trying to %s: %v", action, err)
		c.JSON(http.StatusBadGateway, gin.H{"detail": fmt.Sprintf("Failed to %s: %v", action, err)})
	default:
		log.Printf("Error while trying to %s: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("Failed to %s: %v", action, err)})
	}
}

// dateRange reads the start_date and end_date query parameters.
func dateRange(c *gin.Context) (time.Time, time.Time, error) {
	start, err := newsdate.ParseDay(c.Query("start_date"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := newsdate.ParseDay(c.Query("end_date"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type fetchRequest struct {
	Symbol      string `json:"symbol" binding:"required"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
	MaxPages    int    `json:"max_pages"`
	MaxArticles int    `json:"max_articles"`
	Async       bool   `json:"async"`
}

type fetchResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	ArticlesCount int    `json:"articles_count"`
	NewArticles   int    `json:"new_articles"`
	Cached        bool   `json:"cached"`
}

func (s *Server) handleFetch(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	start, err := newsdate.ParseDay(req.StartDate)
	if err != nil {
		fail(c, "fetch news", err)
		return
	}
	end, err := newsdate.ParseDay(req.EndDate)
	if err != nil {
		fail(c, "fetch news", err)
		return
	}
	if end.Before(start) {
		fail(c, "fetch news", fmt.Errorf("%w: start date after end date", news.ErrInvalidDate))
		return
	}

	limits := s.limits
	if req.MaxPages > 0 {
		limits.MaxPages = req.MaxPages
	}
	if req.MaxArticles > 0 {
		limits.MaxArticles = req.MaxArticles
	}

	log.Printf("Fetch request: %s %s..%s (max %d articles, async=%v)",
		req.Symbol, req.StartDate, req.EndDate, limits.MaxArticles, req.Async)

	if req.Async {
		job := s.jobs.Create(req.Symbol, start, end)
		s.wg.Add(1)
		go s.runJob(job, req.Symbol, start, end, limits)
		c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID(), "status": jobs.StatusPending})
		return
	}

	result, err := s.svc.FetchAndCache(c.Request.Context(), req.Symbol, start, end, limits, nil)
	if err != nil {
		fail(c, "fetch news", err)
		return
	}

	c.JSON(http.StatusOK, fetchResponse{
		Status:        "success",
		Message:       fmt.Sprintf("成功獲取 %d 篇新聞", result.Total),
		ArticlesCount: result.Total,
		NewArticles:   result.NewlyCached,
		Cached:        result.NewlyCached == 0,
	})
}

func (s *Server) runJob(job *jobs.Job, symbol string, start, end time.Time, limits collect.Limits) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	job.Start()
	result, err := s.svc.FetchAndCache(ctx, symbol, start, end, limits, job.Progress)
	if err != nil {
		log.Printf("Fetch job %s failed: %v", job.ID(), err)
		job.Fail(err)
		return
	}
	job.Succeed(result.Total, result.NewlyCached)
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.jobs.List())
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, ok := s.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job.Snapshot())
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	if !s.jobs.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "job not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type dailyNews struct {
	Date          string `json:"date"`
	PrimaryTitle  string `json:"primary_title"`
	PrimarySource string `json:"primary_source"`
	RelatedCount  int    `json:"related_count"`
}

func toDailyNews(summaries []database.DailySummary) []dailyNews {
	out := make([]dailyNews, len(summaries))
	for i, s := range summaries {
		out[i] = dailyNews{
			Date:          newsdate.Format(s.Date),
			PrimaryTitle:  s.PrimaryTitle,
			PrimarySource: s.PrimarySource,
			RelatedCount:  s.RelatedCount,
		}
	}
	return out
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = newsdate.Format(d)
	}
	return out
}

func (s *Server) handleSummaries(c *gin.Context) {
	start, end, err := dateRange(c)
	if err != nil {
		fail(c, "get summaries", err)
		return
	}
	summaries, err := s.svc.DailySummaries(c.Param("symbol"), start, end)
	if err != nil {
		fail(c, "get summaries", err)
		return
	}
	c.JSON(http.StatusOK, toDailyNews(summaries))
}

func (s *Server) handleByDate(c *gin.Context) {
	day, err := newsdate.ParseDay(c.Param("date"))
	if err != nil {
		fail(c, "get news", err)
		return
	}
	summaries, err := s.svc.NewsForTradingDay(c.Param("symbol"), day)
	if err != nil {
		fail(c, "get news", err)
		return
	}
	c.JSON(http.StatusOK, toDailyNews(summaries))
}

func (s *Server) handleDates(c *gin.Context) {
	start, end, err := dateRange(c)
	if err != nil {
		fail(c, "get dates", err)
		return
	}
	dates, err := s.svc.DatesWithNews(c.Param("symbol"), start, end)
	if err != nil {
		fail(c, "get dates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": formatDates(dates)})
}

type tradingDatesRequest struct {
	TradingDates []string `json:"trading_dates"`
}

func (s *Server) handleTradingDates(c *gin.Context) {
	start, end, err := dateRange(c)
	if err != nil {
		fail(c, "get trading dates", err)
		return
	}

	var req tradingDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	trading := make([]time.Time, 0, len(req.TradingDates))
	for _, raw := range req.TradingDates {
		d, err := newsdate.ParseDay(raw)
		if err != nil {
			fail(c, "get trading dates", err)
			return
		}
		trading = append(trading, d)
	}

	dates, err := s.svc.TradingDatesWithNews(c.Param("symbol"), start, end, trading)
	if err != nil {
		fail(c, "get trading dates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": formatDates(dates)})
}

type articleJSON struct {
	ID      int64  `json:"id"`
	Date    string `json:"date"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Server) handleArticles(c *gin.Context) {
	start, end, err := dateRange(c)
	if err != nil {
		fail(c, "get articles", err)
		return
	}
	articles, err := s.svc.Articles(c.Param("symbol"), start, end)
	if err != nil {
		fail(c, "get articles", err)
		return
	}
	out := make([]articleJSON, len(articles))
	for i, a := range articles {
		out[i] = articleJSON{
			ID:      a.ID,
			Date:    newsdate.Format(a.PublishedDate),
			Title:   a.Title,
			Source:  a.Source,
			URL:     deref(a.URL),
			Snippet: deref(a.Snippet),
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDigest(c *gin.Context) {
	symbol := c.Param("symbol")
	start, end, err := dateRange(c)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	summaries, err := s.svc.DailySummaries(symbol, start, end)
	if err != nil {
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	articles, err := s.svc.Articles(symbol, start, end)
	if err != nil {
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	var buf bytes.Buffer
	err = s.page.Execute(&buf, map[string]any{
		"Symbol": symbol,
		"Period": database.FormatRangeDisplay(start, end),
		"Body":   digest.Markdown(symbol, start, end, summaries, articles),
	})
	if err != nil {
		log.Printf("Error rendering digest for %s: %v", symbol, err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port and shuts it down when ctx
// is cancelled.
func Serve(ctx context.Context, srv *Server, port int) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	srv.Wait()
	return nil
}
