package view

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err, "templates should parse without error")
	for _, page := range []string{
		"pages/login.html",
		"pages/signup.html",
		"pages/dashboard.html",
		"pages/resource_list.html",
		"pages/resource_form.html",
		"pages/invoice_detail.html",
	} {
		assert.True(t, engine.Has(page), page)
	}
}

func TestRenderUnknownPageWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, http.StatusOK, "pages/missing.html", TemplateData{})
	require.Error(t, err)
	assert.Empty(t, rr.Body.String())
}

func TestMoney(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{decimal.RequireFromString("1234.5"), "R1,234.50"},
		{json.Number("500"), "R500.00"},
		{"0.105", "R0.11"},
		{"-12.3", "-R12.30"},
		{nil, "R0.00"},
		{decimal.NewNullDecimal(decimal.RequireFromString("42")), "R42.00"},
		{decimal.NullDecimal{}, ""},
		{"n/a", "n/a"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Money(tc.in))
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "05 Mar 2024", FormatDate("2024-03-05T00:00:00.000Z"))
	assert.Equal(t, "05 Mar 2024", FormatDate("2024-03-05"))
	assert.Equal(t, "05 Mar 2024", FormatDate(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", FormatDate(nil))
	assert.Equal(t, "soon", FormatDate("soon"))
}
