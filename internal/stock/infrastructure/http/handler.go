package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/galleria/storefront/internal/stock/application"
	"github.com/galleria/storefront/internal/stock/domain"
	"github.com/galleria/storefront/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	log        *slog.Logger
	service    *application.Service
	adminToken string
	tracer     trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, adminToken string) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		adminToken: adminToken,
		tracer:     otel.Tracer("stock-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.With(httpx.AdminToken(h.adminToken)).Put("/api/products/stock", h.updateStock)
	r.Get("/api/products/{id}/stock", h.getStock)
}

type updateStockReq struct {
	ProductIDs []string `json:"productIds"`
	InStock    *bool    `json:"inStock"`
}

type updateStockResp struct {
	Success bool `json:"success"`
	application.UpdateResult
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateStock")
	defer span.End()

	var req updateStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductIDs == nil || req.InStock == nil {
		httpx.Error(w, r, http.StatusBadRequest, "productIds (array) and inStock (bool) are required")
		return
	}
	span.SetAttributes(attribute.Int("stock.products", len(req.ProductIDs)), attribute.Bool("stock.in_stock", *req.InStock))

	res, err := h.service.Update(ctx, req.ProductIDs, *req.InStock)
	if err != nil {
		h.log.Error("update stock", "err", err)
		httpx.Error(w, r, http.StatusInternalServerError, "failed to update stock")
		return
	}
	render.JSON(w, r, updateStockResp{Success: true, UpdateResult: res})
}

type stockResp struct {
	ProductID string `json:"productId"`
	InStock   bool   `json:"inStock"`
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inStock, err := h.service.GetStock(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrInvalidProductID):
		httpx.Error(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Error("get stock", "product_id", id, "err", err)
		httpx.Error(w, r, http.StatusInternalServerError, "failed to read stock")
		return
	}
	render.JSON(w, r, stockResp{ProductID: id, InStock: inStock})
}
