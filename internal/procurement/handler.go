package procurement

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
)

type orderService interface {
	ListOrders(ctx context.Context) ([]PurchaseOrder, error)
	GetOrder(ctx context.Context, id string) (PurchaseOrder, error)
	CreateOrder(ctx context.Context, in OrderInput) (PurchaseOrder, error)
	UpdateOrder(ctx context.Context, id string, in OrderInput) (PurchaseOrder, error)
	DeleteOrder(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status POStatus) (PurchaseOrder, error)
}

// Handler wires procurement HTTP routes.
type Handler struct {
	logger  *slog.Logger
	service orderService
}

// NewHandler builds a procurement handler.
func NewHandler(logger *slog.Logger, service orderService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches purchase order endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.showOrder)
		r.Put("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
		r.Post("/{id}/status", h.updateStatus)
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Paginated(w, r, orders)
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in OrderInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var in OrderInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.UpdateOrder(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var in StatusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("purchase order request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
