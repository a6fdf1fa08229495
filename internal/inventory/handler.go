package inventory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
)

type ledgerService interface {
	Movements(ctx context.Context) ([]StockMovement, error)
	StockCard(ctx context.Context, productID string) ([]StockCardEntry, error)
	Adjust(ctx context.Context, in AdjustmentInput) (*StockMovement, error)
	Reconcile(ctx context.Context, productID string) (*Correction, error)
	ReconcileAll(ctx context.Context) ([]Correction, error)
}

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service ledgerService
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service ledgerService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Get("/movements", h.listMovements)
		r.Get("/card/{productID}", h.stockCard)
		r.Post("/adjustments", h.adjust)
		r.Post("/reconcile", h.reconcileAll)
		r.Post("/reconcile/{productID}", h.reconcile)
	})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.Movements(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if productID := r.URL.Query().Get("productId"); productID != "" {
		filtered := movements[:0:0]
		for _, m := range movements {
			if m.ProductID == productID {
				filtered = append(filtered, m)
			}
		}
		movements = filtered
	}
	httpx.Paginated(w, r, movements)
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.StockCard(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var in AdjustmentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	movement, err := h.service.Adjust(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if movement == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	correction, err := h.service.Reconcile(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	corrections := []Correction{}
	if correction != nil {
		corrections = append(corrections, *correction)
	}
	httpx.JSON(w, http.StatusOK, corrections)
}

func (h *Handler) reconcileAll(w http.ResponseWriter, r *http.Request) {
	corrections, err := h.service.ReconcileAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if corrections == nil {
		corrections = []Correction{}
	}
	httpx.JSON(w, http.StatusOK, corrections)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
