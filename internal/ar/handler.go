package ar

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
)

// Handler exposes invoice, payment and credit note endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the receivables handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type invoiceStatusInput struct {
	Status InvoiceStatus `json:"status"`
}

type creditNoteStatusInput struct {
	Status CreditNoteStatus `json:"status"`
}

type paymentResult struct {
	Invoice Invoice `json:"invoice"`
	Payment Payment `json:"payment"`
}

type reconcileResult struct {
	Invoice  Invoice `json:"invoice"`
	Repaired bool    `json:"repaired"`
}

// MountRoutes registers receivables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Post("/reconcile", h.reconcileAll)
		r.Get("/{id}", h.showInvoice)
		r.Put("/{id}", h.updateInvoice)
		r.Delete("/{id}", h.deleteInvoice)
		r.Post("/{id}/status", h.updateInvoiceStatus)
		r.Post("/{id}/reconcile", h.reconcileInvoice)
		r.Get("/{id}/payments", h.listPayments)
		r.Post("/{id}/payments", h.addPayment)
		r.Post("/{id}/credit-notes", h.createCreditNote)
	})
	r.Delete("/payments/{id}", h.deletePayment)
	r.Route("/credit-notes", func(r chi.Router) {
		r.Get("/", h.listCreditNotes)
		r.Get("/{id}", h.showCreditNote)
		r.Put("/{id}", h.updateCreditNote)
		r.Delete("/{id}", h.deleteCreditNote)
		r.Post("/{id}/status", h.updateCreditNoteStatus)
	})
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if status := InvoiceStatus(r.URL.Query().Get("status")); status != "" {
		filtered := make([]Invoice, 0, len(invoices))
		for _, inv := range invoices {
			if inv.Status == status {
				filtered = append(filtered, inv)
			}
		}
		invoices = filtered
	}
	httpx.Paginated(w, r, invoices)
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var in InvoiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	var in InvoiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.UpdateInvoice(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var in invoiceStatusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.UpdateInvoiceStatus(r.Context(), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteInvoice(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reconcileInvoice(w http.ResponseWriter, r *http.Request) {
	inv, repaired, err := h.service.ReconcileInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reconcileResult{Invoice: inv, Repaired: repaired})
}

func (h *Handler) reconcileAll(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.service.ReconcileAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if repaired == nil {
		repaired = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, repaired)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.PaymentsFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	var in PaymentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, payment, err := h.service.AddPayment(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, paymentResult{Invoice: inv, Payment: payment})
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.DeletePayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listCreditNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListCreditNotes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Paginated(w, r, notes)
}

func (h *Handler) showCreditNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.GetCreditNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) createCreditNote(w http.ResponseWriter, r *http.Request) {
	var in CreditNoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.CreateCreditNote(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, note)
}

func (h *Handler) updateCreditNote(w http.ResponseWriter, r *http.Request) {
	var in CreditNoteInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.UpdateCreditNote(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) deleteCreditNote(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCreditNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateCreditNoteStatus(w http.ResponseWriter, r *http.Request) {
	var in creditNoteStatusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	note, err := h.service.UpdateCreditNoteStatus(r.Context(), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("receivables request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
