package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/galleria/storefront/internal/stock/application"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string]bool
}

func (r *memRepo) SetMany(_ context.Context, ids []string, inStock bool, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.rows[id] = inStock
	}
	return len(ids), nil
}

func (r *memRepo) GetMany(_ context.Context, ids []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		v, ok := r.rows[id]
		out[id] = !ok || v
	}
	return out, nil
}

func (r *memRepo) Seed(context.Context, []string, time.Time) (int, error) { return 0, nil }

func newRouter(token string) (http.Handler, *memRepo) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memRepo{rows: map[string]bool{}}
	r := chi.NewRouter()
	NewHandler(log, application.NewService(log, repo), token).Register(r)
	return r, repo
}

func TestUpdateStockEndpoint(t *testing.T) {
	router, repo := newRouter("")

	req := httptest.NewRequest(http.MethodPut, "/api/products/stock", strings.NewReader(`{"productIds":["p1","p2",""],"inStock":false}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success         bool              `json:"success"`
		UpdatedProducts int               `json:"updatedProducts"`
		Skipped         []json.RawMessage `json:"skipped"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.UpdatedProducts)
	assert.Len(t, body.Skipped, 1)
	assert.Equal(t, map[string]bool{"p1": false, "p2": false}, repo.rows)
}

func TestUpdateStockRejectsBadBody(t *testing.T) {
	router, repo := newRouter("")

	for _, body := range []string{`{`, `{"productIds":["p1"]}`, `{"inStock":true}`} {
		req := httptest.NewRequest(http.MethodPut, "/api/products/stock", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, repo.rows)
}

func TestUpdateStockRequiresToken(t *testing.T) {
	router, repo := newRouter("s3cret")

	req := httptest.NewRequest(http.MethodPut, "/api/products/stock", strings.NewReader(`{"productIds":["p1"],"inStock":false}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, repo.rows)
}

func TestGetStockEndpoint(t *testing.T) {
	router, repo := newRouter("")
	repo.rows["p1"] = false

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/p1/stock", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"productId":"p1","inStock":false}`, rec.Body.String())
}
