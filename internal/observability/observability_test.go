package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")
	logger.Debug().Msg("hidden")
	logger.Info().Str("stage", "Validated").Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line logged at info level: %s", out)
	}
	if !strings.Contains(out, `"stage":"Validated"`) || !strings.Contains(out, `"time"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/v1/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/things/{id}", "418"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/things/42", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/v1/things/{id}", "418"))
	if after-before != 1 {
		t.Fatalf("request counter delta = %v, want 1", after-before)
	}
}

func TestObserveSchemaRefresh(t *testing.T) {
	okBefore := testutil.ToFloat64(schemaRefreshTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(schemaRefreshTotal.WithLabelValues("error"))
	ObserveSchemaRefresh(true)
	ObserveSchemaRefresh(false)
	ObserveSchemaRefresh(false)
	if d := testutil.ToFloat64(schemaRefreshTotal.WithLabelValues("ok")) - okBefore; d != 1 {
		t.Errorf("ok delta = %v", d)
	}
	if d := testutil.ToFloat64(schemaRefreshTotal.WithLabelValues("error")) - errBefore; d != 2 {
		t.Errorf("error delta = %v", d)
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{})
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders("api-key=abc, x-team = ar ,broken,=nokey")
	if len(got) != 2 || got["api-key"] != "abc" || got["x-team"] != "ar" {
		t.Fatalf("ParseHeaders() = %v", got)
	}
	if ParseHeaders("  ") != nil {
		t.Fatal("expected nil for empty input")
	}
}
