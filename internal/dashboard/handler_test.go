package dashboard_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmdesk/crmdesk/internal/dashboard"
	"github.com/crmdesk/crmdesk/internal/testing/fakecrm"
	_ "github.com/crmdesk/crmdesk/testing"
)

func newDashboardConsole(t *testing.T) *fakecrm.Console {
	t.Helper()
	c := fakecrm.NewConsole(t)
	dashboard.NewHandler(dashboard.NewService(c.Client), c.Pages).MountRoutes(c.Router)
	c.SignIn("ada@example.com")
	return c
}

func TestDashboardShowsAggregates(t *testing.T) {
	c := newDashboardConsole(t)
	c.API.Seed("customers", map[string]any{"first_name": "Ada"})
	c.API.Seed("customers", map[string]any{"first_name": "Grace"})
	c.API.Seed("deals", map[string]any{"deal_name": "Engines", "stage": "Negotiation"})
	c.API.Seed("inventory", map[string]any{"item_name": "Gear", "stock_quantity": json.Number("3")})
	c.API.Seed("inventory", map[string]any{"item_name": "Shaft", "stock_quantity": json.Number("40")})
	c.API.Seed("tasks", map[string]any{"task_name": "Follow up", "status": "In Progress", "due_date": "2024-04-01T00:00:00.000Z"})

	res := c.Do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `<span class="stat-value">2</span><span class="stat-label">Customers</span>`)
	assert.Contains(t, body, `<span class="stat-value">1</span><span class="stat-label">Low Stock Items</span>`)
	assert.Contains(t, body, "status-negotiation")
	assert.Contains(t, body, "Follow up")
	assert.Contains(t, body, "status-in-progress")
	assert.Contains(t, body, "01 Apr 2024")
}

func TestDashboardRejectedCredential(t *testing.T) {
	c := newDashboardConsole(t)
	c.API.RevokeTokens()

	res := c.Do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.False(t, c.Session().HasCredential())
}

func TestDashboardUnavailable(t *testing.T) {
	c := newDashboardConsole(t)
	c.API.Fail(http.MethodGet, "/api/dashboard", http.StatusServiceUnavailable, 5)

	res := c.Do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Contains(t, res.Body.String(), "unreachable")
	assert.True(t, c.Session().HasCredential())
}
