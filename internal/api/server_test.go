package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/imagefetch/internal/api/ratelimit"
	"github.com/slipstream/imagefetch/internal/config"
	"github.com/slipstream/imagefetch/internal/health"
	"github.com/slipstream/imagefetch/internal/logger"
	"github.com/slipstream/imagefetch/internal/metadata"
	"github.com/slipstream/imagefetch/internal/metadata/tmdb"
	"github.com/slipstream/imagefetch/internal/metrics"
	"github.com/slipstream/imagefetch/internal/scheduler"
	"github.com/slipstream/imagefetch/internal/scheduler/tasks"
)

const imagesJSON = `{
	"id": 550,
	"posters": [{"file_path": "/p1.jpg", "iso_639_1": "de", "width": 1000, "height": 1500, "vote_average": 5.3, "vote_count": 4}],
	"backdrops": [{"file_path": "/b1.jpg", "iso_639_1": null, "width": 3840, "height": 2160, "vote_average": 4.8, "vote_count": 7}],
	"logos": []
}`

type fakeLogs struct {
	entries []logger.LogEntry
	path    string
}

func (f *fakeLogs) GetRecentLogs() []logger.LogEntry { return f.entries }
func (f *fakeLogs) GetLogFilePath() string           { return f.path }

type testServer struct {
	*Server
	store    *config.Store
	health   *health.Service
	registry *prometheus.Registry
	tmdbHits int
	lastPath string
	lastRaw  string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.tmdbHits++
		ts.lastPath = r.URL.Path
		ts.lastRaw = r.URL.RawQuery
		switch {
		case strings.HasPrefix(r.URL.Path, "/3/movie/404/"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"status_message":"The resource you requested could not be found."}`)
		case strings.HasSuffix(r.URL.Path, "/images"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, imagesJSON)
		case strings.HasPrefix(r.URL.Path, "/t/p/original/"):
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Cache-Control", "max-age=31536000")
			_, _ = io.WriteString(w, "JPEGDATA")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.TMDB.APIKey = "secret-key"
	cfg.TMDB.BaseURL = upstream.URL
	cfg.TMDB.ImageBaseURL = upstream.URL
	cfg.RateLimit.ProxyPerMinute = 2

	ts.store = config.NewStore(cfg.TMDB)
	ts.health = health.NewService(zerolog.Nop())
	ts.registry = prometheus.NewRegistry()
	m := metrics.New(ts.registry)

	provider := tmdb.NewProvider(upstream.Client(), zerolog.Nop())
	provider.SetMetrics(m)

	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	task := tasks.NewProviderHealthTask(provider, ts.store, ts.health, zerolog.Nop())
	require.NoError(t, tasks.RegisterProviderHealthTask(sched, task, &cfg.Health))

	logFile := filepath.Join(t.TempDir(), "imagefetch.log")
	require.NoError(t, os.WriteFile(logFile, []byte("{}\n"), 0o644))

	ts.Server = NewServer(cfg, Deps{
		Provider:  provider,
		Store:     ts.store,
		Logs:      &fakeLogs{path: logFile, entries: []logger.LogEntry{{Level: "warn", Message: "a"}, {Level: "info", Message: "b"}}},
		Health:    ts.health,
		Scheduler: sched,
		Limiter:   ratelimit.NewIPLimiter(cfg.RateLimit.ProxyPerMinute),
		Metrics:   m,
		Gatherer:  ts.registry,
	}, zerolog.Nop())

	return ts
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	return ts.getFrom(path, "192.0.2.1")
}

func (ts *testServer) getFrom(path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestGetImages_Movie(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.get("/api/v1/images/movie/550")
	require.Equal(t, http.StatusOK, rec.Code)

	var images []metadata.RemoteImage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &images))
	require.Len(t, images, 2)
	assert.Equal(t, metadata.ImageTypePrimary, images[0].Type)
	assert.Equal(t, ts.store.Snapshot().ImageBaseURL+"/t/p/original/p1.jpg", images[0].URL)
	assert.Equal(t, metadata.ImageTypeBackdrop, images[1].Type)
	assert.Nil(t, images[1].Language)

	assert.Equal(t, "/3/movie/550/images", ts.lastPath)
	assert.Equal(t, "api_key=secret-key&include_image_language=de,en,null", ts.lastRaw)
}

func TestGetImages_SeriesUsesTVEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.get("/api/v1/images/series/1399")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/3/tv/1399/images", ts.lastPath)
}

func TestGetImages_FailuresReturnEmptyList(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		mutate   func(cfg *config.TMDBConfig)
		wantHits int
	}{
		{name: "unsupported kind", path: "/api/v1/images/person/287"},
		{name: "missing api key", path: "/api/v1/images/movie/550", mutate: func(cfg *config.TMDBConfig) { cfg.APIKey = " " }},
		{name: "upstream 404", path: "/api/v1/images/movie/404", wantHits: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)
			if tt.mutate != nil {
				cfg := ts.store.Snapshot()
				tt.mutate(&cfg)
				ts.store.Set(cfg)
			}

			rec := ts.get(tt.path)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `[]`, rec.Body.String())
			assert.Equal(t, tt.wantHits, ts.tmdbHits)
			assert.NotContains(t, rec.Body.String(), "secret-key")
		})
	}
}

func TestGetSupportedTypes(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.get("/api/v1/images/types/tv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"provider":"TheMovieDb","kind":"series","supported":true,"types":["Primary","Backdrop","Logo"]}`, rec.Body.String())

	rec = ts.get("/api/v1/images/types/episode")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"supported":false`)
}

func TestProxy(t *testing.T) {
	ts := setupTestServer(t)
	origin := ts.store.Snapshot().ImageBaseURL

	rec := ts.get("/api/v1/images/proxy?url=" + origin + "/t/p/original/p1.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "JPEGDATA", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "max-age=31536000", rec.Header().Get("Cache-Control"))

	rec = ts.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `imagefetch_proxy_responses_total{status="2xx"} 1`)
}

func TestProxy_RejectsForeignURLs(t *testing.T) {
	ts := setupTestServer(t)

	for i, target := range []string{"", "https://example.com/t/p/original/x.jpg", "not-a-url"} {
		rec := ts.getFrom("/api/v1/images/proxy?url="+target, fmt.Sprintf("192.0.2.%d", 10+i))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Zero(t, ts.tmdbHits)
}

func TestProxy_RateLimited(t *testing.T) {
	ts := setupTestServer(t)
	path := "/api/v1/images/proxy?url=" + ts.store.Snapshot().ImageBaseURL + "/t/p/original/p1.jpg"

	assert.Equal(t, http.StatusOK, ts.get(path).Code)
	assert.Equal(t, http.StatusOK, ts.get(path).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.get(path).Code)
}

func TestStatus(t *testing.T) {
	ts := setupTestServer(t)
	ts.health.SetError(tasks.ProviderHealthTaskID, "TMDB API error: status 401")

	rec := ts.get("/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, config.Version, resp.Version)
	assert.Equal(t, "TheMovieDb", resp.Provider)
	assert.True(t, resp.APIKeyConfigured)
	assert.Equal(t, config.DefaultImageLanguages, resp.ImageLanguages)
	require.NotNil(t, resp.ProviderHealth)
	assert.Equal(t, health.StatusError, resp.ProviderHealth.Status)
	assert.NotContains(t, rec.Body.String(), "secret-key")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestSystemHealth(t *testing.T) {
	ts := setupTestServer(t)
	ts.health.SetWarning(tasks.ProviderHealthTaskID, "API key is not configured")

	rec := ts.get("/api/v1/system/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hasIssues":true`)
	assert.Contains(t, rec.Body.String(), `"id":"tmdb-health"`)
}

func TestLogs(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.get("/api/v1/system/logs?level=warn")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []logger.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Message)

	rec = ts.get("/api/v1/system/logs/download")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "imagefetch.log")
}

func TestSchedulerRoutes(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.get("/api/v1/scheduler/tasks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"tmdb-health"`)

	rec = ts.get("/api/v1/scheduler/tasks/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/tasks/unknown/run", nil)
	rec = httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/images/movie/550", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
