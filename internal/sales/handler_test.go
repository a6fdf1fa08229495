package sales

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
)

func newTestRouter(t *testing.T) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc).MountRoutes(r)
	return f, r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerQuoteLifecycle(t *testing.T) {
	_, h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/quotes", sampleInput())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "DEV/2024/00001", q.DocumentID)

	for _, s := range []QuoteStatus{QuoteSent, QuoteApproved} {
		rec = do(t, h, http.MethodPost, "/quotes/"+q.ID+"/status", StatusInput{Status: s})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/quotes/"+q.ID+"/convert", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv ar.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, q.ID, inv.QuoteID)

	rec = do(t, h, http.MethodPost, "/quotes/"+q.ID+"/convert", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/quotes?page=1&perPage=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page httpx.Page[Quote]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, QuoteConverted, page.Items[0].Status)
}

func TestHandlerQuoteErrors(t *testing.T) {
	_, h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/quotes/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/quotes", map[string]any{"clientId": "c-1", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/quotes", QuoteInput{ClientID: "c-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/quotes", sampleInput())
	require.Equal(t, http.StatusCreated, rec.Code)
	var q Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	rec = do(t, h, http.MethodPost, "/quotes/"+q.ID+"/status", StatusInput{Status: QuoteConverted})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
