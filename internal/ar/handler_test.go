package ar

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestHandlerInvoicePaymentFlow(t *testing.T) {
	env := newTestEnv(t)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), env.svc).MountRoutes(r)

	rec := serve(r, http.MethodPost, "/invoices/", `{"clientId":"c-1","clientName":"ACME","lineItems":[{"description":"Consulting","quantity":2,"unitPrice":500}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, "FAC/2024/00001", inv.DocumentID)
	assert.Equal(t, StatusPending, inv.Status)

	rec = serve(r, http.MethodPost, "/invoices/"+inv.ID+"/payments", `{"amount":400,"method":"card"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var paid paymentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, StatusPartial, paid.Invoice.Status)
	assert.Equal(t, 400.0, paid.Invoice.AmountPaid)

	rec = serve(r, http.MethodPost, "/invoices/"+inv.ID+"/status", `{"status":"Paid"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(r, http.MethodGet, "/invoices/"+inv.ID+"/payments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var payments []Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payments))
	require.Len(t, payments, 1)

	rec = serve(r, http.MethodDelete, "/payments/"+payments[0].ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, StatusPending, inv.Status)
	assert.Zero(t, inv.AmountPaid)

	rec = serve(r, http.MethodGet, "/invoices/?status=Pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), inv.ID)

	rec = serve(r, http.MethodPost, "/invoices/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandlerCreditNotes(t *testing.T) {
	env := newTestEnv(t)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), env.svc).MountRoutes(r)

	inv, err := env.svc.CreateInvoice(t.Context(), invoiceInput(300))
	require.NoError(t, err)

	rec := serve(r, http.MethodPost, "/invoices/"+inv.ID+"/credit-notes", `{"reason":"damaged"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var note CreditNote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &note))
	assert.Equal(t, inv.DocumentID, note.InvoiceID)
	assert.Equal(t, CreditDraft, note.Status)

	rec = serve(r, http.MethodPost, "/credit-notes/"+note.ID+"/status", `{"status":"Refunded"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(r, http.MethodPost, "/credit-notes/"+note.ID+"/status", `{"status":"Validated"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodDelete, "/credit-notes/"+note.ID, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(r, http.MethodGet, "/credit-notes/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
