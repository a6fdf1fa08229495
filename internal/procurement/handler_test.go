package procurement

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

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

type stubOrders struct {
	orders    map[string]PurchaseOrder
	statusErr error
	lastState POStatus
}

func (s *stubOrders) ListOrders(context.Context) ([]PurchaseOrder, error) {
	out := make([]PurchaseOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *stubOrders) GetOrder(_ context.Context, id string) (PurchaseOrder, error) {
	o, ok := s.orders[id]
	if !ok {
		return PurchaseOrder{}, &shared.NotFoundError{Collection: OrdersCollection, ID: id}
	}
	return o, nil
}

func (s *stubOrders) CreateOrder(_ context.Context, in OrderInput) (PurchaseOrder, error) {
	o := PurchaseOrder{ID: "po-new", DocumentID: "BC/2024/00009", SupplierID: in.SupplierID, Status: POStatusDraft}
	s.orders[o.ID] = o
	return o, nil
}

func (s *stubOrders) UpdateOrder(ctx context.Context, id string, _ OrderInput) (PurchaseOrder, error) {
	return s.GetOrder(ctx, id)
}

func (s *stubOrders) DeleteOrder(_ context.Context, id string) error {
	delete(s.orders, id)
	return nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, id string, status POStatus) (PurchaseOrder, error) {
	s.lastState = status
	if s.statusErr != nil {
		return PurchaseOrder{}, s.statusErr
	}
	o := s.orders[id]
	o.Status = status
	return o, nil
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newRouter(svc orderService) http.Handler {
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)
	return r
}

func TestHandlerCreateAndShow(t *testing.T) {
	svc := &stubOrders{orders: map[string]PurchaseOrder{}}
	h := newRouter(svc)

	rec := serve(h, http.MethodPost, "/purchase-orders", `{"supplierId":"s-1","lineItems":[]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var po PurchaseOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &po))
	assert.Equal(t, "BC/2024/00009", po.DocumentID)

	rec = serve(h, http.MethodGet, "/purchase-orders/po-new", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(h, http.MethodGet, "/purchase-orders/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerStatusErrors(t *testing.T) {
	svc := &stubOrders{orders: map[string]PurchaseOrder{"po-1": {ID: "po-1"}}}
	h := newRouter(svc)

	rec := serve(h, http.MethodPost, "/purchase-orders/po-1/status", `{"status":"Received"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, POStatusReceived, svc.lastState)

	svc.statusErr = &shared.StepError{
		Pipeline:  "purchase_order_receive",
		Step:      "stock_in:p-1",
		Completed: []shared.CompletedStep{{Step: "save_status", RecordID: "po-1"}},
		Err:       shared.ErrPersistence,
	}
	rec = serve(h, http.MethodPost, "/purchase-orders/po-1/status", `{"status":"Received"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "stock_in:p-1", problem["step"])

	rec = serve(h, http.MethodPost, "/purchase-orders/po-1/status", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
