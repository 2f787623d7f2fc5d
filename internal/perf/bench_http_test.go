package perf

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/crmdesk/crmdesk/internal/invoices"
	"github.com/crmdesk/crmdesk/internal/resource"
	"github.com/crmdesk/crmdesk/internal/testing/fakecrm"
)

func newConsole(tb testing.TB) *fakecrm.Console {
	tb.Helper()
	c := fakecrm.NewConsole(tb)
	registry, err := resource.DefaultRegistry()
	if err != nil {
		tb.Fatalf("registry: %v", err)
	}
	for _, schema := range registry.All() {
		resource.NewHandler(schema, registry, c.Client, c.Pages).MountRoutes(c.Router)
	}
	invoices.NewHandler(invoices.NewService(c.Client, nil, nil), c.Pages, c.Templates, nil).MountRoutes(c.Router)
	c.SignIn("bench@example.com")

	for i := 0; i < 50; i++ {
		customer := c.API.Seed("customers", map[string]any{"first_name": "Customer", "last_name": strconv.Itoa(i), "email": "c" + strconv.Itoa(i) + "@example.com"})
		invoice := c.API.Seed("invoices", map[string]any{
			"customer_id":    json.Number(customer),
			"invoice_number": "INV-" + strconv.Itoa(i),
			"issue_date":     "2024-01-01",
			"due_date":       "2024-02-01",
			"amount_due":     "100.00",
			"status":         "Pending",
		})
		c.API.SeedPayment(invoice, "40.00", "Cash")
	}
	return c
}

func TestConsoleLatencyTargets(t *testing.T) {
	c := newConsole(t)

	scenarios := []struct {
		name      string
		path      string
		threshold time.Duration
	}{
		{name: "invoice list with relations", path: "/invoices", threshold: 500 * time.Millisecond},
		{name: "invoice detail with reconciliation", path: "/invoices/2", threshold: 500 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 20)
		for i := 0; i < 20; i++ {
			start := time.Now()
			res := c.Do(http.MethodGet, scenario.path, nil)
			samples = append(samples, time.Since(start))
			if res.Code != http.StatusOK {
				t.Fatalf("%s: unexpected status %d", scenario.name, res.Code)
			}
		}
		if p95 := percentile95(samples); p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkInvoiceList(b *testing.B) {
	c := newConsole(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if res := c.Do(http.MethodGet, "/invoices", nil); res.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", res.Code)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
