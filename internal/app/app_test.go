package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*time.Second, cfg.NumberReservationTTL)
	assert.Equal(t, 24*time.Hour, cfg.PipelineMarkerTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, "fr-FR", cfg.Locale)
	assert.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{StoreDriver: DriverMemory}, true},
		{"sqlite without path", Config{StoreDriver: DriverSQLite}, false},
		{"postgres", Config{StoreDriver: DriverPostgres, PGDSN: "postgres://x"}, true},
		{"unknown driver", Config{StoreDriver: "mysql"}, false},
		{"redis without addr", Config{StoreDriver: DriverMemory, RedisEnabled: true}, false},
		{"negative rate", Config{StoreDriver: DriverMemory, RateLimitPerMinute: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "v", entry["k"])
}

func TestNewStoresRejectsMissingBackend(t *testing.T) {
	_, err := NewStores(Backend{Driver: DriverPostgres})
	require.Error(t, err)
	_, err = NewStores(Backend{Driver: "csv"})
	require.Error(t, err)
}

func newTestRouter(t *testing.T) (http.Handler, *Services, *observability.Metrics) {
	t.Helper()
	stores, err := NewStores(Backend{Driver: DriverMemory})
	require.NoError(t, err)
	require.NoError(t, stores.Load(context.Background()))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	cfg := &Config{StoreDriver: DriverMemory, Locale: "en-US", Currency: "USD"}
	services := NewServices(ServicesParams{Config: cfg, Stores: stores, Metrics: metrics, Logger: logger})
	return NewRouter(RouterParams{Logger: logger, Config: cfg, Services: services, Metrics: metrics}), services, metrics
}

func TestRouterHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouterCountsSuccessfulWrites(t *testing.T) {
	router, services, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clients/", strings.NewReader(`{"name":"Alice"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clients/", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	clients, err := services.MasterData.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `odyssey_document_writes_total{method="POST"} 1`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"currency":"USD"`)
}

func TestRouterWithoutJobHandler(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
