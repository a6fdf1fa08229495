package inventory

import (
	"context"
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

	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

func newTestRouter(t *testing.T) (chi.Router, *Ledger, ProductStore) {
	t.Helper()
	products := store.NewMemory[masterdata.Product](masterdata.ProductsCollection)
	ledger, _, _ := newLedger(t, products)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), ledger).MountRoutes(r)
	return r, ledger, products
}

func TestHandlerAdjustAndStockCard(t *testing.T) {
	r, ledger, products := newTestRouter(t)
	seedProduct(t, products, "desk", 0)
	require.NoError(t, ledger.PostInitial(context.Background(), "desk", 10, ledger.clock.Now()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/adjustments", strings.NewReader(`{"productId":"desk","realQuantity":7}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var movement StockMovement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &movement))
	assert.Equal(t, -3.0, movement.Quantity)
	assert.Equal(t, MovementAdjustment, movement.Type)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/adjustments", strings.NewReader(`{"productId":"desk","realQuantity":7}`)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/card/desk", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var card []StockCardEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	require.Len(t, card, 2)
	assert.Equal(t, 7.0, card[1].Balance)
	assert.Equal(t, 7.0, stockOf(t, products, "desk"))
}

func TestHandlerReconcileAndErrors(t *testing.T) {
	r, _, products := newTestRouter(t)
	seedProduct(t, products, "lamp", 4)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/reconcile", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var corrections []Correction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &corrections))
	require.Len(t, corrections, 1)
	assert.Equal(t, -4.0, corrections[0].Delta)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/reconcile/lamp", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/card/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/adjustments", strings.NewReader(`{"productId":"lamp","realQuantity":-1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
