package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverdogs/newscrawler/internal/api"
	"github.com/riverdogs/newscrawler/internal/metrics"
	"github.com/riverdogs/newscrawler/internal/runner"
	"github.com/riverdogs/newscrawler/internal/scraper"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeController struct {
	startErr error
	started  int
	snapshot scraper.ProgressSnapshot
	stats    runner.Stats
	statsErr error
}

func (f *fakeController) StartRun() error {
	f.started++
	return f.startErr
}

func (f *fakeController) Progress() scraper.ProgressSnapshot { return f.snapshot }

func (f *fakeController) Stats(_ context.Context) (runner.Stats, error) {
	return f.stats, f.statsErr
}

type fakeReader struct {
	articles  []scraper.Article
	total     int
	err       error
	gotQuery  string
	gotLimit  int
	gotOffset int
}

func (f *fakeReader) List(_ context.Context, limit, offset int) ([]scraper.Article, int, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return f.articles, f.total, f.err
}

func (f *fakeReader) Search(_ context.Context, query string, limit, offset int) ([]scraper.Article, int, error) {
	f.gotQuery, f.gotLimit, f.gotOffset = query, limit, offset
	return f.articles, f.total, f.err
}

func serve(t *testing.T, ctrl *fakeController, reader *fakeReader, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	srv := api.NewServer(ctrl, reader, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{snapshot: scraper.ProgressSnapshot{Status: scraper.StatusIdle}}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "idle", body["scraper_status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestScrapingProgress(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{snapshot: scraper.ProgressSnapshot{
		Status:            scraper.StatusRunning,
		TotalURLs:         4,
		ProcessedURLs:     2,
		SuccessfulScrapes: 2,
	}}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodGet, "/api/scraping-progress")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 4, body["total_urls"])
	assert.EqualValues(t, 2, body["processed_urls"])
}

func TestStartScraping(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodPost, "/api/start-scraping")

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ctrl.started)
	assert.Equal(t, "started", decodeBody(t, rec)["status"])
}

func TestStartScrapingConflict(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{startErr: scraper.ErrAlreadyRunning}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodPost, "/api/start-scraping")

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "already in progress")
}

func TestRefreshAliasesStartScraping(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodPost, "/api/refresh")

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ctrl.started)
}

func TestListArticles(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{
		articles: []scraper.Article{{URL: "https://example.com/a", Title: "A"}},
		total:    41,
	}
	rec := serve(t, &fakeController{}, reader, http.MethodGet, "/api/articles?page=3&per_page=10")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, reader.gotLimit)
	assert.Equal(t, 20, reader.gotOffset)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 41, body["total"])
	assert.EqualValues(t, 3, body["page"])
	assert.EqualValues(t, 10, body["per_page"])
}

func TestListArticlesDefaultsAndLimits(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{}
	rec := serve(t, &fakeController{}, reader, http.MethodGet, "/api/articles")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, reader.gotLimit)
	assert.Equal(t, 0, reader.gotOffset)

	rec = serve(t, &fakeController{}, reader, http.MethodGet, "/api/articles?per_page=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, reader.gotLimit, "per_page is clamped")

	rec = serve(t, &fakeController{}, reader, http.MethodGet, "/api/articles?page=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, &fakeController{}, reader, http.MethodGet, "/api/articles?per_page=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeController{}, &fakeReader{}, http.MethodGet, "/api/search")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, &fakeController{}, &fakeReader{}, http.MethodGet, "/api/search?q=%20%20")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{
		articles: []scraper.Article{{URL: "https://example.com/a", Title: "Opener"}},
		total:    1,
	}
	rec := serve(t, &fakeController{}, reader, http.MethodGet, "/api/search?q=opener")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "opener", reader.gotQuery)
	body := decodeBody(t, rec)
	assert.Equal(t, "opener", body["query"])
	assert.EqualValues(t, 1, body["total"])
}

func TestSearchStoreError(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{err: errors.New("down")}
	rec := serve(t, &fakeController{}, reader, http.MethodGet, "/api/search?q=opener")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDatabaseStats(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{stats: runner.Stats{TotalArticles: 12, JSONBackups: 3}}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodGet, "/api/database-stats")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 12, body["total_articles"])
	assert.EqualValues(t, 3, body["json_backups"])
}

func TestDatabaseStatsError(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{statsErr: errors.New("down")}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodGet, "/api/database-stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSystemStatus(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{
		stats:    runner.Stats{TotalArticles: 5},
		snapshot: scraper.ProgressSnapshot{Status: scraper.StatusIdle},
	}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodGet, "/api/system-status")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "operational", body["status"])
	require.Contains(t, body, "database")
	require.Contains(t, body, "scraper")
}

func TestSystemStatusDegraded(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{statsErr: errors.New("down")}
	rec := serve(t, ctrl, &fakeReader{}, http.MethodGet, "/api/system-status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeController{}, &fakeReader{}, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
