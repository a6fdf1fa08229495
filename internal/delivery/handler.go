package delivery

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
)

type noteService interface {
	ListNotes(ctx context.Context) ([]DeliveryNote, error)
	GetNote(ctx context.Context, id string) (DeliveryNote, error)
	CreateNote(ctx context.Context, in NoteInput) (DeliveryNote, error)
	UpdateNote(ctx context.Context, id string, in NoteUpdate) (DeliveryNote, error)
	DeleteNote(ctx context.Context, id string) error
	ConvertToInvoice(ctx context.Context, id string) (ar.Invoice, error)
}

// Handler manages delivery note endpoints.
type Handler struct {
	logger  *slog.Logger
	service noteService
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service noteService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers delivery note routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/delivery-notes", func(r chi.Router) {
		r.Get("/", h.listNotes)
		r.Post("/", h.createNote)
		r.Get("/{id}", h.showNote)
		r.Put("/{id}", h.updateNote)
		r.Delete("/{id}", h.deleteNote)
		r.Post("/{id}/convert", h.convertToInvoice)
	})
}

func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListNotes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Paginated(w, r, notes)
}

func (h *Handler) showNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	var in NoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.CreateNote(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request) {
	var in NoteUpdate
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.UpdateNote(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
	h.logger.Warn("delivery note request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
