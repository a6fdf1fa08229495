package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-commerce/internal/analytics"
	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/delivery"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/observability"
	"github.com/odyssey-erp/odyssey-commerce/internal/procurement"
	"github.com/odyssey-erp/odyssey-commerce/internal/sales"
	"github.com/odyssey-erp/odyssey-commerce/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Services *Services
	Metrics  *observability.Metrics
	// JobHandler is optional; the routes are skipped without it.
	JobHandler *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	svc := params.Services
	logger := params.Logger
	r.Route("/api", func(r chi.Router) {
		r.Use(WriteHook(func(ctx context.Context, method string) {
			params.Metrics.DocumentWrite(method)
			svc.Analytics.Invalidate(ctx)
		}))
		masterdata.NewHandler(logger, svc.MasterData).MountRoutes(r)
		inventory.NewHandler(logger, svc.Ledger).MountRoutes(r)
		ar.NewHandler(logger, svc.AR).MountRoutes(r)
		sales.NewHandler(logger, svc.Sales).MountRoutes(r)
		delivery.NewHandler(logger, svc.Delivery).MountRoutes(r)
		procurement.NewHandler(logger, svc.Procurement).MountRoutes(r)
		analytics.NewHandler(logger, svc.Analytics).MountRoutes(r)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
