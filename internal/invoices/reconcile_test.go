package invoices

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func payments(amounts ...string) []Payment {
	out := make([]Payment, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, Payment{AmountPaid: decimal.RequireFromString(a)})
	}
	return out
}

func TestTotalPaidIsExact(t *testing.T) {
	total := TotalPaid(payments("0.10", "0.20"))
	assert.True(t, total.Equal(decimal.RequireFromString("0.30")), total.String())

	forward := TotalPaid(payments("100.01", "0.99", "250.5", "49.5"))
	backward := TotalPaid(payments("49.5", "250.5", "0.99", "100.01"))
	assert.True(t, forward.Equal(backward))
	assert.Equal(t, "401", forward.String())

	assert.True(t, TotalPaid(nil).IsZero())
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name       string
		due        string
		paid       []string
		current    Status
		want       Status
		wantChange bool
	}{
		{"exactly covered", "500", []string{"300", "200"}, StatusPending, StatusPaid, true},
		{"overpaid", "500", []string{"600"}, StatusPending, StatusPaid, true},
		{"partially paid", "500", []string{"100"}, StatusPending, StatusPending, false},
		{"one cent short", "500.00", []string{"250.00", "249.99"}, StatusPending, StatusPending, false},
		{"overdue becomes paid", "80", []string{"80"}, StatusOverdue, StatusPaid, true},
		{"paid stays paid", "500", nil, StatusPaid, StatusPaid, false},
		{"paid never rewritten", "500", []string{"500"}, StatusPaid, StatusPaid, false},
		{"fractions add up", "0.30", []string{"0.10", "0.20"}, StatusPending, StatusPaid, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			due := decimal.NewNullDecimal(decimal.RequireFromString(tc.due))
			got, change := DeriveStatus(due, payments(tc.paid...), tc.current)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantChange, change)
		})
	}
}

func TestDeriveStatusUnknownAmountDue(t *testing.T) {
	got, change := DeriveStatus(decimal.NullDecimal{}, nil, StatusPending)
	assert.Equal(t, StatusPending, got)
	assert.False(t, change)

	got, change = DeriveStatus(decimal.NullDecimal{}, payments("500"), StatusOverdue)
	assert.Equal(t, StatusOverdue, got)
	assert.False(t, change)
}

func TestDetailBalance(t *testing.T) {
	d := &Detail{Invoice: Invoice{AmountDue: decimal.NewNullDecimal(decimal.RequireFromString("500"))}, Payments: payments("120.25")}
	assert.Equal(t, "379.75", d.Balance().StringFixed(2))

	d.Payments = payments("600")
	assert.True(t, d.Balance().IsZero())

	d.Invoice.AmountDue = decimal.NullDecimal{}
	assert.True(t, d.Balance().IsZero())
}
