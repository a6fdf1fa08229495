package analytics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// Handler exposes the dashboard aggregates.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the analytics handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/dashboard", h.dashboard)
		r.Get("/outstanding", h.outstanding)
		r.Get("/low-stock", h.lowStock)
		r.Get("/aging", h.aging)
		r.Get("/aging.csv", h.agingCSV)
	})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) outstanding(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.Outstanding(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]float64{"outstanding": total})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStockProducts(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	buckets, ok := h.loadAging(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func (h *Handler) agingCSV(w http.ResponseWriter, r *http.Request) {
	buckets, ok := h.loadAging(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ar-aging.csv"`)
	if err := WriteAgingCSV(w, buckets); err != nil {
		h.logger.Error("write aging csv", slog.Any("error", err))
	}
}

func (h *Handler) loadAging(w http.ResponseWriter, r *http.Request) ([]AgingBucket, bool) {
	var asOf time.Time
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("asOf", "expected YYYY-MM-DD"))
			return nil, false
		}
		asOf = parsed
	}
	buckets, err := h.service.ARAging(r.Context(), asOf)
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return buckets, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("analytics request failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
