package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crmdesk/crmdesk/internal/page"
	"github.com/crmdesk/crmdesk/internal/shared"
)

// Handler serves the dashboard.
type Handler struct {
	service *Service
	pages   *page.Renderer
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, pages *page.Renderer) *Handler {
	return &Handler{service: service, pages: pages}
}

// MountRoutes registers the dashboard route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
}

type dashboardView struct {
	Summary *Summary
	Error   string
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), sess)
	if h.pages.RedirectIfRejected(w, r, err) {
		return
	}
	if err != nil {
		h.pages.Logger().Warn("dashboard load failed", slog.Any("error", err))
		h.pages.Render(w, r, page.Status(err), "pages/dashboard.html", "Dashboard", dashboardView{Error: page.Message(err, "load the dashboard")})
		return
	}
	h.pages.Render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", dashboardView{Summary: summary})
}
