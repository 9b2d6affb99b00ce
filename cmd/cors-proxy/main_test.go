package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"

	"cors-proxy-go/internal/client"
	"cors-proxy-go/internal/config"
	"cors-proxy-go/internal/handler"
	"cors-proxy-go/internal/metrics"
	"cors-proxy-go/internal/service"
)

// newPublicEcho assembles the public server the same way the fx graph does.
func newPublicEcho(t *testing.T, cfg *config.Config, m *metrics.Metrics) *echo.Echo {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewProxyService(client.NewUpstreamClient(cfg, logger, m), cfg, logger)

	e := newEcho(cfg, logger, m)
	handler.RegisterRoutes(e, handler.NewProxyHandler(svc, logger, m))
	return e
}

func serve(e *echo.Echo, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func assertEmpty400(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want unset", got)
	}
}

func rejectedCount(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "cors_proxy_failures_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "kind" && lp.GetValue() == "rejected" {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func countingUpstream(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNewEcho_Success(t *testing.T) {
	upstream, _ := countingUpstream(t)
	e := newPublicEcho(t, config.Default(), metrics.New())

	rec := serve(e, http.MethodGet, "/get?url="+url.QueryEscape(upstream.URL), http.NoBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
	if got := rec.Header().Get(echo.HeaderXContentTypeOptions); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get(echo.HeaderCacheControl); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("X-Request-Id header not set")
	}
}

func TestNewEcho_RateLimitedRequestsGetEmpty400(t *testing.T) {
	upstream, calls := countingUpstream(t)
	cfg := config.Default()
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSecond = 1
	m := metrics.New()
	e := newPublicEcho(t, cfg, m)
	target := "/get?url=" + url.QueryEscape(upstream.URL)

	if rec := serve(e, http.MethodGet, target, http.NoBody); rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	limited := 0
	for range 10 {
		rec := serve(e, http.MethodGet, target, http.NoBody)
		if rec.Code == http.StatusOK {
			continue
		}
		assertEmpty400(t, rec)
		limited++
	}
	if limited == 0 {
		t.Fatal("expected rate-limited requests after the burst, got none")
	}
	if got := rejectedCount(t, m); got != float64(limited) {
		t.Errorf("failures_total{kind=rejected} = %v, want %d", got, limited)
	}
	if n := int(calls.Load()); n != 11-limited {
		t.Errorf("upstream calls = %d, want %d", n, 11-limited)
	}
}

func TestNewEcho_OversizedBodyGetsEmpty400(t *testing.T) {
	upstream, calls := countingUpstream(t)
	cfg := config.Default()
	cfg.Server.BodyMaxBytes = 4
	m := metrics.New()
	e := newPublicEcho(t, cfg, m)

	rec := serve(e, http.MethodPost, "/get?url="+url.QueryEscape(upstream.URL), strings.NewReader("more than four bytes"))

	assertEmpty400(t, rec)
	if n := calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
	if got := rejectedCount(t, m); got != 1 {
		t.Errorf("failures_total{kind=rejected} = %v, want 1", got)
	}
}

func TestNewEcho_PanicGetsEmpty400(t *testing.T) {
	m := metrics.New()
	e := newPublicEcho(t, config.Default(), m)
	e.GET("/boom", func(echo.Context) error {
		panic("boom")
	})

	rec := serve(e, http.MethodGet, "/boom", http.NoBody)

	assertEmpty400(t, rec)
	if got := rejectedCount(t, m); got != 1 {
		t.Errorf("failures_total{kind=rejected} = %v, want 1", got)
	}
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := config.Default()
			cfg.Log.Level = tt.level
			logger := newLogger(cfg)

			if !logger.Enabled(context.Background(), tt.want) {
				t.Errorf("level %v disabled", tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-1) {
				t.Errorf("level below %v enabled", tt.want)
			}
		})
	}
}
