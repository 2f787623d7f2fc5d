package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crmdesk/crmdesk/internal/auth"
	"github.com/crmdesk/crmdesk/internal/dashboard"
	"github.com/crmdesk/crmdesk/internal/invoices"
	"github.com/crmdesk/crmdesk/internal/observability"
	"github.com/crmdesk/crmdesk/internal/page"
	"github.com/crmdesk/crmdesk/internal/platform/httpx"
	"github.com/crmdesk/crmdesk/internal/resource"
	"github.com/crmdesk/crmdesk/internal/shared"
	"github.com/crmdesk/crmdesk/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	ResourceHandlers []*resource.Handler
	InvoiceHandler   *invoices.Handler
	HealthChecks     map[string]httpx.HealthCheck
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	// Probes and assets skip sessions, CSRF and rate limiting.
	r.Group(func(r chi.Router) {
		r.Get("/healthz", httpx.HealthHandler(params.HealthChecks))
		if params.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
		}
		staticFS, err := fs.Sub(web.Static, "static")
		if err != nil {
			params.Logger.Error("create static sub filesystem", slog.Any("error", err))
			return
		}
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	})

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		params.AuthHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCredential)
			if params.DashboardHandler != nil {
				params.DashboardHandler.MountRoutes(r)
			}
			for _, h := range params.ResourceHandlers {
				h.MountRoutes(r)
			}
			if params.InvoiceHandler != nil {
				params.InvoiceHandler.MountRoutes(r)
			}
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, page.LoginPath, http.StatusSeeOther)
		})
	})

	return r
}

// staticCacheHandler caches static assets in the browser for one hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
