package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-commerce/internal/analytics"
	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/delivery"
	"github.com/odyssey-erp/odyssey-commerce/internal/integration"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/numbering"
	"github.com/odyssey-erp/odyssey-commerce/internal/observability"
	"github.com/odyssey-erp/odyssey-commerce/internal/procurement"
	"github.com/odyssey-erp/odyssey-commerce/internal/sales"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// ServicesParams groups the dependencies needed to wire the domain services.
type ServicesParams struct {
	Config  *Config
	Stores  *Stores
	Redis   *redis.Client
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Clock   shared.Clock
}

// Services is the composed domain layer shared by the API and the worker.
type Services struct {
	MasterData  *masterdata.Service
	Ledger      *inventory.Ledger
	AR          *ar.Service
	Sales       *sales.Service
	Delivery    *delivery.Service
	Procurement *procurement.Service
	Analytics   *analytics.Service
	Cache       *analytics.Cache
	Receipts    *integration.Hooks
	Progress    shared.ProgressTracker
}

// NewServices wires every service. A nil redis client falls back to
// in-process markers, no number reservation and no analytics cache.
func NewServices(p ServicesParams) *Services {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := p.Config
	if cfg == nil {
		cfg = &Config{}
	}

	var (
		progress shared.ProgressTracker = shared.NewMemoryProgress()
		reserver numbering.Reserver     = numbering.NoopReserver{}
	)
	if p.Redis != nil {
		progress = shared.NewRedisProgress(p.Redis, cfg.PipelineMarkerTTL)
		reserver = numbering.NewRedisReserver(p.Redis, cfg.NumberReservationTTL)
	}
	pipelines := shared.PipelineDeps{Tracker: progress, Logger: logger}
	var ledgerObserver inventory.Observer
	if p.Metrics != nil {
		pipelines.Observer = p.Metrics
		ledgerObserver = p.Metrics
	}
	numbers := numbering.NewAllocator(reserver, logger)
	st := p.Stores

	ledger := inventory.NewLedger(inventory.LedgerParams{
		Movements: st.Movements,
		Products:  st.Products,
		Observer:  ledgerObserver,
		Logger:    logger.With(slog.String("module", "inventory")),
		Clock:     p.Clock,
	})
	master := masterdata.NewService(masterdata.ServiceParams{
		Clients:   st.Clients,
		Suppliers: st.Suppliers,
		Products:  st.Products,
		Settings:  st.Settings,
		Stock:     ledger,
		Pipelines: pipelines,
		Logger:    logger.With(slog.String("module", "masterdata")),
		Clock:     p.Clock,
		Locale:    cfg.Locale,
		Currency:  cfg.Currency,
	})
	receivables := ar.NewService(ar.ServiceParams{
		Invoices:    st.Invoices,
		Payments:    st.Payments,
		CreditNotes: st.CreditNotes,
		Numbers:     numbers,
		Stock:       ledger,
		Clients:     master,
		Terms:       master,
		Pipelines:   pipelines,
		Logger:      logger.With(slog.String("module", "ar")),
		Clock:       p.Clock,
	})
	quotes := sales.NewService(sales.ServiceParams{
		Quotes:    st.Quotes,
		Numbers:   numbers,
		Invoices:  receivables,
		Clients:   master,
		Pipelines: pipelines,
		Logger:    logger.With(slog.String("module", "sales")),
		Clock:     p.Clock,
	})
	notes := delivery.NewService(delivery.ServiceParams{
		Notes:     st.DeliveryNotes,
		Numbers:   numbers,
		Invoices:  receivables,
		Stock:     ledger,
		Clients:   master,
		Pipelines: pipelines,
		Logger:    logger.With(slog.String("module", "delivery")),
		Clock:     p.Clock,
	})

	cache := analytics.NewCache(p.Redis, cfg.AnalyticsCacheTTL)
	dashboard := analytics.NewService(analytics.ServiceParams{
		Receivables: receivables,
		Catalog:     master,
		Cache:       cache,
		Logger:      logger.With(slog.String("module", "analytics")),
		Clock:       p.Clock,
	})
	hooks := integration.NewHooks(logger.With(slog.String("module", "integration")), dashboard)
	orders := procurement.NewService(procurement.ServiceParams{
		Orders:    st.PurchaseOrders,
		Numbers:   numbers,
		Inventory: ledger,
		Suppliers: master,
		Receipts:  hooks,
		Pipelines: pipelines,
		Logger:    logger.With(slog.String("module", "procurement")),
		Clock:     p.Clock,
	})

	return &Services{
		MasterData:  master,
		Ledger:      ledger,
		AR:          receivables,
		Sales:       quotes,
		Delivery:    notes,
		Procurement: orders,
		Analytics:   dashboard,
		Cache:       cache,
		Receipts:    hooks,
		Progress:    progress,
	}
}
