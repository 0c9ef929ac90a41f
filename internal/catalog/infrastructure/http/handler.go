package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/galleria/storefront/internal/catalog/application"
	"github.com/galleria/storefront/internal/catalog/domain"
	"github.com/galleria/storefront/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/products", h.list)
	r.Get("/api/products/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.log.Error("list products", "err", err)
		httpx.Error(w, r, http.StatusInternalServerError, "failed to list products")
		return
	}
	render.JSON(w, r, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := h.service.Get(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpx.Error(w, r, http.StatusNotFound, "product not found")
		return
	case err != nil:
		h.log.Error("get product", "product_id", id, "err", err)
		httpx.Error(w, r, http.StatusInternalServerError, "failed to load product")
		return
	}
	render.JSON(w, r, l)
}
