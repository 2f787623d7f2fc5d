package invoices

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/crmdesk/crmdesk/internal/page"
	"github.com/crmdesk/crmdesk/internal/shared"
	"github.com/crmdesk/crmdesk/internal/view"
	"github.com/crmdesk/crmdesk/report"
)

// PDFRenderer converts a rendered HTML document into a PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html []byte, page report.Page) ([]byte, error)
}

// Handler serves the invoice detail page, payment submission and PDF export.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pages     *page.Renderer
	templates *view.Engine
	pdf       PDFRenderer
	validator *validator.Validate
}

// NewHandler constructs a Handler. pdf may be nil when no renderer is
// configured.
func NewHandler(service *Service, pages *page.Renderer, templates *view.Engine, pdf PDFRenderer) *Handler {
	return &Handler{
		logger:    pages.Logger(),
		service:   service,
		pages:     pages,
		templates: templates,
		pdf:       pdf,
		validator: validator.New(),
	}
}

// MountRoutes registers invoice detail routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices/{id}", h.show)
	r.Post("/invoices/{id}/payments", h.addPayment)
	r.Get("/invoices/{id}/pdf", h.exportPDF)
}

type paymentForm struct {
	PaymentDate   string
	AmountPaid    string
	PaymentMethod string
	TransactionID string
}

type detailView struct {
	ID        string
	Detail    *Detail
	Payment   paymentForm
	Errors    map[string]string
	FormError string
	Error     string
}

func detailURL(id string) string {
	return "/invoices/" + url.PathEscape(id)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	form := paymentForm{PaymentDate: time.Now().Format(time.DateOnly)}
	h.renderDetail(w, r, http.StatusOK, id, detailView{Payment: form})
}

// renderDetail loads and reconciles the invoice before rendering. A load
// failure renders only the error, never a partial invoice.
func (h *Handler) renderDetail(w http.ResponseWriter, r *http.Request, status int, id string, data detailView) {
	sess := shared.SessionFromContext(r.Context())
	detail, err := h.service.View(r.Context(), sess, id)
	if h.pages.RedirectIfRejected(w, r, err) {
		return
	}
	data.ID = id
	title := "Invoice"
	if err != nil {
		h.logger.Warn("invoice load failed", slog.String("invoice_id", id), slog.Any("error", err))
		data.Error = page.Message(err, "fetch invoice details")
		h.pages.Render(w, r, page.Status(err), "pages/invoice_detail.html", title, data)
		return
	}
	data.Detail = detail
	if detail.Invoice.InvoiceNumber != "" {
		title = "Invoice #" + detail.Invoice.InvoiceNumber
	}
	h.pages.Render(w, r, status, "pages/invoice_detail.html", title, data)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	form := paymentForm{
		PaymentDate:   strings.TrimSpace(r.PostFormValue("payment_date")),
		AmountPaid:    strings.TrimSpace(r.PostFormValue("amount_paid")),
		PaymentMethod: strings.TrimSpace(r.PostFormValue("payment_method")),
		TransactionID: strings.TrimSpace(r.PostFormValue("transaction_id")),
	}
	input, errs := h.bindPayment(form)
	if len(errs) > 0 {
		h.renderDetail(w, r, http.StatusUnprocessableEntity, id, detailView{
			Payment:   form,
			Errors:    errs,
			FormError: "Please correct the highlighted fields.",
		})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if err := h.service.RecordPayment(r.Context(), sess, id, input); err != nil {
		if h.pages.RedirectIfRejected(w, r, err) {
			return
		}
		h.logger.Warn("record payment failed", slog.String("invoice_id", id), slog.Any("error", err))
		h.renderDetail(w, r, page.Status(err), id, detailView{
			Payment:   form,
			FormError: page.Message(err, "add payment"),
		})
		return
	}
	h.pages.Redirect(w, r, detailURL(id), "success", "Payment recorded")
}

func (h *Handler) bindPayment(form paymentForm) (PaymentInput, map[string]string) {
	errs := make(map[string]string)
	input := PaymentInput{
		PaymentDate:   form.PaymentDate,
		PaymentMethod: form.PaymentMethod,
	}
	if form.TransactionID != "" {
		txn := form.TransactionID
		input.TransactionID = &txn
	}
	if err := h.validator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				switch fe.Field() {
				case "PaymentDate":
					errs["payment_date"] = page.ValidationMessage(fe.Tag(), fe.Param())
				case "PaymentMethod":
					errs["payment_method"] = page.ValidationMessage(fe.Tag(), fe.Param())
				}
			}
		}
	}
	switch amount, err := decimal.NewFromString(form.AmountPaid); {
	case form.AmountPaid == "":
		errs["amount_paid"] = page.ValidationMessage("required", "")
	case err != nil:
		errs["amount_paid"] = page.ValidationMessage("numeric", "")
	case !amount.IsPositive():
		errs["amount_paid"] = page.ValidationMessage("gt", "zero")
	default:
		input.AmountPaid = amount
	}
	return input, errs
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.pdf == nil {
		h.pages.Redirect(w, r, detailURL(id), "error", "PDF export is not configured.")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	detail, err := h.service.View(r.Context(), sess, id)
	if err != nil {
		if h.pages.RedirectIfRejected(w, r, err) {
			return
		}
		h.pages.Redirect(w, r, "/invoices", "error", page.Message(err, "fetch invoice details"))
		return
	}

	buf, err := h.templates.Execute("pages/invoice_print.html", view.TemplateData{
		Title: "Invoice #" + detail.Invoice.InvoiceNumber,
		Data:  detailView{ID: id, Detail: detail},
	})
	if err != nil {
		h.logger.Error("render invoice print", slog.String("invoice_id", id), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), buf.Bytes(), report.A4)
	if err != nil {
		h.logger.Warn("invoice pdf failed", slog.String("invoice_id", id), slog.Any("error", err))
		h.pages.Redirect(w, r, detailURL(id), "error", "The PDF could not be generated right now. Please try again shortly.")
		return
	}
	name := detail.Invoice.InvoiceNumber
	if name == "" {
		name = id
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-`+sanitizeFilename(name)+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
