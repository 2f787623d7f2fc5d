package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/customers")

	req := httptest.NewRequest(http.MethodGet, "/customers", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `crmdesk_http_requests_total{code="418",route="/customers"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `crmdesk_http_request_duration_seconds_bucket{route="/customers"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObserveUpstreamAndReconciliation(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveUpstream(http.MethodGet, "ok", 20*time.Millisecond)
	metrics.ObserveUpstream(http.MethodGet, "unauthorized", time.Millisecond)
	metrics.ObserveReconciliation("paid")

	body := scrape(t, metrics)
	for _, want := range []string{
		`crmdesk_upstream_requests_total{method="GET",outcome="ok"} 1`,
		`crmdesk_upstream_requests_total{method="GET",outcome="unauthorized"} 1`,
		`crmdesk_invoice_reconciliations_total{result="paid"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveUpstream(http.MethodPost, "ok", time.Millisecond)
	metrics.ObserveReconciliation("noop")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}
