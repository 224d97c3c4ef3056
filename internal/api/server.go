// Package api exposes the HTTP interface for the news crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riverdogs/newscrawler/internal/metrics"
	"github.com/riverdogs/newscrawler/internal/runner"
	"github.com/riverdogs/newscrawler/internal/scraper"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	queryTimeout   = 5 * time.Second
)

// RunController triggers runs and reports their state.
type RunController interface {
	StartRun() error
	Progress() scraper.ProgressSnapshot
	Stats(ctx context.Context) (runner.Stats, error)
}

// ArticleReader serves stored articles with pagination.
type ArticleReader interface {
	List(ctx context.Context, limit, offset int) ([]scraper.Article, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]scraper.Article, int, error)
}

// Server wires HTTP handlers to the run manager and the article store.
type Server struct {
	router   chi.Router
	runs     RunController
	articles ArticleReader
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runs RunController, articles ArticleReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runs:     runs,
		articles: articles,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/health", s.health)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/scraping-progress", s.scrapingProgress)
		r.Post("/start-scraping", s.startScraping)
		r.Post("/refresh", s.startScraping)
		r.Get("/articles", s.listArticles)
		r.Get("/search", s.searchArticles)
		r.Get("/database-stats", s.databaseStats)
		r.Get("/system-status", s.systemStatus)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"scraper_status": string(s.runs.Progress().Status),
	})
}

// scrapingProgress handles GET /api/scraping-progress. It is safe to poll
// while a run is in flight.
func (s *Server) scrapingProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runs.Progress())
}

// startScraping handles POST /api/start-scraping and POST /api/refresh. At
// most one run is in flight at a time; a second trigger gets 409 and leaves
// the active run untouched.
func (s *Server) startScraping(w http.ResponseWriter, _ *http.Request) {
	if err := s.runs.StartRun(); err != nil {
		if errors.Is(err, scraper.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "a scraping operation is already in progress")
			return
		}
		s.logger.Error("failed to start run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start scraping")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": "scraping started in background",
	})
}

// listArticles handles GET /api/articles?page=&per_page=.
func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	articles, total, err := s.articles.List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		s.logger.Error("list articles failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// searchArticles handles GET /api/search?q=&page=&per_page=. An empty query
// is a 400.
func (s *Server) searchArticles(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "search query is required")
		return
	}
	page, perPage, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	articles, total, err := s.articles.Search(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		s.logger.Error("search articles failed", zap.Error(err), zap.String("query", query))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"total":    total,
		"page":     page,
		"per_page": perPage,
		"query":    query,
	})
}

// databaseStats handles GET /api/database-stats.
func (s *Server) databaseStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	stats, err := s.runs.Stats(ctx)
	if err != nil {
		s.logger.Error("database stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load database stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// systemStatus handles GET /api/system-status: one payload combining the
// store view and the run tracker.
func (s *Server) systemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	status := "operational"
	stats, err := s.runs.Stats(ctx)
	if err != nil {
		s.logger.Warn("system status: store unreachable", zap.Error(err))
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  stats,
		"scraper":   s.runs.Progress(),
	})
}

func parsePagination(r *http.Request) (page, perPage int, err error) {
	q := r.URL.Query()
	page = 1
	if raw := q.Get("page"); raw != "" {
		val, convErr := strconv.Atoi(raw)
		if convErr != nil || val <= 0 {
			return 0, 0, errors.New("invalid page")
		}
		page = val
	}
	perPage = defaultPerPage
	if raw := q.Get("per_page"); raw != "" {
		val, convErr := strconv.Atoi(raw)
		if convErr != nil || val <= 0 {
			return 0, 0, errors.New("invalid per_page")
		}
		if val > maxPerPage {
			val = maxPerPage
		}
		perPage = val
	}
	return page, perPage, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.status, duration)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", duration.Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

// routePattern resolves the chi route template so metrics labels stay low
// cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
