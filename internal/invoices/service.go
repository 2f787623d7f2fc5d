package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/crmdesk/crmdesk/internal/apiclient"
)

// Result names what a reconciliation did.
type Result string

const (
	ResultNoop     Result = "noop"
	ResultPaid     Result = "paid"
	ResultConflict Result = "conflict"
	ResultFailed   Result = "failed"
)

const (
	// reconcileWarning is shown when the Paid write could not be completed.
	reconcileWarning = "Payments cover this invoice, but its status could not be updated. It will be retried on the next visit."
	// refreshWarning is shown when the status changed but the invoice could
	// not be read back.
	refreshWarning = "The invoice status was updated, but the latest version could not be loaded. Reload the page to see it."
)

// ErrRefresh marks a reconciliation whose write landed but whose re-read
// failed; the detail still holds the invoice as loaded.
var ErrRefresh = errors.New("invoice not refreshed")

// API is the subset of the CRM API client used for invoices.
type API interface {
	Get(ctx context.Context, creds apiclient.Credentials, path string, out any) error
	Post(ctx context.Context, creds apiclient.Credentials, path string, in, out any) error
	Send(ctx context.Context, creds apiclient.Credentials, req apiclient.Request) (*apiclient.Response, error)
}

// Observer records reconciliation outcomes.
type Observer interface {
	ObserveReconciliation(result string)
}

// Service loads invoices with their payments and keeps the Paid status in
// line with what was paid.
type Service struct {
	api      API
	logger   *slog.Logger
	observer Observer
	writes   singleflight.Group
}

// NewService constructs a Service. observer may be nil.
func NewService(api API, logger *slog.Logger, observer Observer) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{api: api, logger: logger, observer: observer}
}

func invoicePath(id string) string {
	return "/api/invoices/" + url.PathEscape(id)
}

func paymentsPath(id string) string {
	return "/api/payments/invoice/" + url.PathEscape(id)
}

// Load fetches the invoice and its payments concurrently. Either failure
// fails the whole load.
func (s *Service) Load(ctx context.Context, creds apiclient.Credentials, id string) (*Detail, error) {
	detail := &Detail{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inv, etag, err := s.fetchInvoice(gctx, creds, id)
		if err != nil {
			return err
		}
		detail.Invoice = inv
		detail.ETag = etag
		return nil
	})
	g.Go(func() error {
		var payments []Payment
		if err := s.api.Get(gctx, creds, paymentsPath(id), &payments); err != nil {
			return err
		}
		detail.Payments = payments
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) fetchInvoice(ctx context.Context, creds apiclient.Credentials, id string) (Invoice, string, error) {
	path := invoicePath(id)
	resp, err := s.api.Send(ctx, creds, apiclient.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return Invoice{}, "", err
	}
	var inv Invoice
	if err := resp.Decode(&inv); err != nil {
		return Invoice{}, "", &apiclient.Error{Kind: apiclient.ErrUpstream, Method: http.MethodGet, Path: path, Status: resp.Status, Message: "malformed invoice", Err: err}
	}
	return inv, resp.Header.Get("ETag"), nil
}

// Reconcile marks the invoice Paid when its payments cover the amount due,
// then re-reads it into detail. The write is conditional on the ETag of
// the loaded invoice; losing that race to another writer is not an error.
func (s *Service) Reconcile(ctx context.Context, creds apiclient.Credentials, id string, detail *Detail) (Result, error) {
	if _, change := DeriveStatus(detail.Invoice.AmountDue, detail.Payments, detail.Invoice.Status); !change {
		s.observe(ResultNoop)
		return ResultNoop, nil
	}

	// Callers sharing the write must not lose it when the first of them
	// goes away; the client timeout still bounds it.
	key := id + "\x00" + credential(creds)
	writeCtx := context.WithoutCancel(ctx)
	v, err, shared := s.writes.Do(key, func() (any, error) {
		return s.markPaid(writeCtx, creds, id, detail.ETag)
	})
	if err != nil {
		s.observe(ResultFailed)
		return ResultFailed, err
	}
	result := v.(Result)
	s.observe(result)
	s.logger.Info("invoice reconciled", slog.String("invoice_id", id), slog.String("result", string(result)), slog.Bool("shared", shared))

	inv, etag, err := s.fetchInvoice(ctx, creds, id)
	if err != nil {
		return result, fmt.Errorf("invoices: re-read %s after reconcile: %w: %w", id, ErrRefresh, err)
	}
	detail.Invoice = inv
	detail.ETag = etag
	return result, nil
}

func (s *Service) markPaid(ctx context.Context, creds apiclient.Credentials, id, etag string) (Result, error) {
	req := apiclient.Request{
		Method: http.MethodPut,
		Path:   invoicePath(id),
		Body:   markPaid{Status: StatusPaid, AmountDue: "0"},
	}
	if etag != "" {
		req.Header = http.Header{"If-Match": []string{etag}}
	}
	_, err := s.api.Send(ctx, creds, req)
	switch {
	case err == nil:
		return ResultPaid, nil
	case errors.Is(err, apiclient.ErrConflict):
		s.logger.Info("invoice changed by another writer", slog.String("invoice_id", id))
		return ResultConflict, nil
	default:
		return "", err
	}
}

// View loads and reconciles an invoice for display. A failed reconciliation
// keeps the invoice as loaded and sets Warning; only a rejected credential
// is returned as an error.
func (s *Service) View(ctx context.Context, creds apiclient.Credentials, id string) (*Detail, error) {
	detail, err := s.Load(ctx, creds, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Reconcile(ctx, creds, id, detail); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return nil, err
		}
		s.logger.Warn("invoice reconciliation failed", slog.String("invoice_id", id), slog.Any("error", err))
		detail.Warning = reconcileWarning
		if errors.Is(err, ErrRefresh) {
			detail.Warning = refreshWarning
		}
	}
	return detail, nil
}

// RecordPayment appends a payment to the invoice.
func (s *Service) RecordPayment(ctx context.Context, creds apiclient.Credentials, id string, in PaymentInput) error {
	in.InvoiceID = id
	return s.api.Post(ctx, creds, "/api/payments", in, nil)
}

func (s *Service) observe(result Result) {
	if s.observer != nil {
		s.observer.ObserveReconciliation(string(result))
	}
}

func credential(creds apiclient.Credentials) string {
	if creds == nil {
		return ""
	}
	return creds.Credential()
}
