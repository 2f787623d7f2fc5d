package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crmdesk/crmdesk/internal/apiclient"
	"github.com/crmdesk/crmdesk/internal/app"
	"github.com/crmdesk/crmdesk/internal/auth"
	"github.com/crmdesk/crmdesk/internal/dashboard"
	"github.com/crmdesk/crmdesk/internal/invoices"
	"github.com/crmdesk/crmdesk/internal/observability"
	"github.com/crmdesk/crmdesk/internal/page"
	"github.com/crmdesk/crmdesk/internal/platform/cache"
	"github.com/crmdesk/crmdesk/internal/platform/httpx"
	"github.com/crmdesk/crmdesk/internal/resource"
	"github.com/crmdesk/crmdesk/internal/shared"
	"github.com/crmdesk/crmdesk/internal/view"
	"github.com/crmdesk/crmdesk/report"
)

const sessionCookieName = "crmdesk_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(cache.NewPoolCollector(redisClient))

	api := apiclient.New(apiclient.Config{
		BaseURL: cfg.CRMAPIURL,
		Timeout: cfg.CRMAPITimeout,
		Retry:   apiclient.RetryConfig{MaxRetries: cfg.CRMAPIMaxRetries},
	}, apiclient.WithLogger(logger), apiclient.WithObserver(metrics))

	pages := page.NewRenderer(logger, templates, csrfManager)

	registry, err := resource.DefaultRegistry()
	if err != nil {
		logger.Error("build resource registry", slog.Any("error", err))
		os.Exit(1)
	}
	var resourceHandlers []*resource.Handler
	for _, schema := range registry.All() {
		resourceHandlers = append(resourceHandlers, resource.NewHandler(schema, registry, api, pages))
	}

	var pdf invoices.PDFRenderer
	if cfg.GotenbergURL != "" {
		gotenberg := report.NewClient(cfg.GotenbergURL)
		if err := gotenberg.Ping(ctx); err != nil {
			logger.Warn("gotenberg ping", slog.Any("error", err))
		}
		pdf = gotenberg
	}
	invoiceService := invoices.NewService(api, logger, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      auth.NewHandler(logger, auth.NewService(api), pages, sessionManager),
		DashboardHandler: dashboard.NewHandler(dashboard.NewService(api), pages),
		ResourceHandlers: resourceHandlers,
		InvoiceHandler:   invoices.NewHandler(invoiceService, pages, templates, pdf),
		HealthChecks: map[string]httpx.HealthCheck{
			"redis": func(r *http.Request) error {
				return redisClient.Ping(r.Context()).Err()
			},
		},
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("crm_api", cfg.CRMAPIURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
