package invoices

import "github.com/shopspring/decimal"

// TotalPaid sums amount_paid exactly. The result does not depend on the
// order of payments.
func TotalPaid(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.AmountPaid)
	}
	return total
}

// DeriveStatus applies the reconciliation rule. It reports Paid and true
// when the payments cover amountDue and the invoice is not Paid yet. The
// status never moves back from Paid, and an unknown amount due never
// settles an invoice.
func DeriveStatus(amountDue decimal.NullDecimal, payments []Payment, current Status) (Status, bool) {
	if current == StatusPaid || !amountDue.Valid {
		return current, false
	}
	if TotalPaid(payments).GreaterThanOrEqual(amountDue.Decimal) {
		return StatusPaid, true
	}
	return current, false
}
