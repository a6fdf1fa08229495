package sales

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
)

type quoteService interface {
	ListQuotes(ctx context.Context) ([]Quote, error)
	GetQuote(ctx context.Context, id string) (Quote, error)
	CreateQuote(ctx context.Context, in QuoteInput) (Quote, error)
	UpdateQuote(ctx context.Context, id string, in QuoteInput) (Quote, error)
	DeleteQuote(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status QuoteStatus) (Quote, error)
	ConvertToInvoice(ctx context.Context, quoteID string) (ar.Invoice, error)
}

// Handler exposes quote endpoints.
type Handler struct {
	logger  *slog.Logger
	service quoteService
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service quoteService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers quote routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Get("/", h.listQuotes)
		r.Post("/", h.createQuote)
		r.Get("/{id}", h.showQuote)
		r.Put("/{id}", h.updateQuote)
		r.Delete("/{id}", h.deleteQuote)
		r.Post("/{id}/status", h.updateStatus)
		r.Post("/{id}/convert", h.convertToInvoice)
	})
}

func (h *Handler) listQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.service.ListQuotes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Paginated(w, r, quotes)
}

func (h *Handler) showQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) createQuote(w http.ResponseWriter, r *http.Request) {
	var in QuoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.CreateQuote(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) updateQuote(w http.ResponseWriter, r *http.Request) {
	var in QuoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.UpdateQuote(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) deleteQuote(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteQuote(r.Context(), chi.URLParam(r, "id")); err != nil {
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
	q, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) convertToInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.ConvertToInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("quote request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
