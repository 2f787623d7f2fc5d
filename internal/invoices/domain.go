// Package invoices serves the invoice detail view: payments, the derived
// Paid status and the PDF export.
package invoices

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state stored on an invoice.
type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusOverdue Status = "Overdue"
)

// Invoice mirrors GET /api/invoices/:id. Amounts decode from JSON numbers
// or numeric strings; a null or missing amount_due stays invalid.
type Invoice struct {
	ID            json.Number         `json:"invoice_id"`
	InvoiceNumber string              `json:"invoice_number"`
	CustomerID    json.Number         `json:"customer_id"`
	DealID        json.Number         `json:"deal_id"`
	IssueDate     string              `json:"issue_date"`
	DueDate       string              `json:"due_date"`
	AmountDue     decimal.NullDecimal `json:"amount_due"`
	Status        Status              `json:"status"`
}

// Payment mirrors one entry of GET /api/payments/invoice/:id.
type Payment struct {
	ID            json.Number     `json:"payment_id,omitempty"`
	InvoiceID     json.Number     `json:"invoice_id"`
	PaymentDate   string          `json:"payment_date"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// PaymentInput is the body of POST /api/payments.
type PaymentInput struct {
	InvoiceID     string          `json:"invoice_id"`
	PaymentDate   string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=50"`
	TransactionID *string         `json:"transaction_id"`
}

// markPaid is the body of the reconciliation write.
type markPaid struct {
	Status    Status      `json:"status"`
	AmountDue json.Number `json:"amount_due"`
}

// Detail is a loaded invoice with its payments.
type Detail struct {
	Invoice  Invoice
	ETag     string
	Payments []Payment
	// Warning is set when reconciliation could not be written; the
	// invoice shown is the last one fetched.
	Warning string
}

// TotalPaid sums the payments of the detail.
func (d *Detail) TotalPaid() decimal.Decimal {
	return TotalPaid(d.Payments)
}

// Balance is what remains to be paid, never below zero. It is zero when
// the amount due is unknown.
func (d *Detail) Balance() decimal.Decimal {
	if !d.Invoice.AmountDue.Valid {
		return decimal.Zero
	}
	rest := d.Invoice.AmountDue.Decimal.Sub(d.TotalPaid())
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}
