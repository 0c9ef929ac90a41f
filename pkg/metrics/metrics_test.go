package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/products/{id}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/products/{id}", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products/p1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products/p2", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/products/{id}", "404"))
	assert.Equal(t, 2.0, after-before)
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(stockUpdatesTotal.WithLabelValues("false"))
	RecordStockUpdate(false, 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(stockUpdatesTotal.WithLabelValues("false"))-before)

	before = testutil.ToFloat64(reconciliationsTotal.WithLabelValues("poll", "settled"))
	RecordReconciliation("poll", "settled")
	assert.Equal(t, 1.0, testutil.ToFloat64(reconciliationsTotal.WithLabelValues("poll", "settled"))-before)
}
