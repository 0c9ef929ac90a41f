package http

import (
	"encoding/json"
	"errors"
	"net/http"

	catalogdomain "github.com/galleria/storefront/internal/catalog/domain"
	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
	"github.com/galleria/storefront/pkg/httpx"
	"github.com/go-chi/render"
)

type checkoutReq struct {
	Items []domain.CartItem `json:"items"`
}

type checkoutResp struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// createCheckout prices the cart from the catalog, never from the client, and
// refuses products that are already sold.
func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCheckout")
	defer span.End()

	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Items) == 0 {
		httpx.Error(w, r, http.StatusBadRequest, "items are required")
		return
	}

	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ID)
	}
	ids = domain.NormalizeIDs(ids)
	if len(ids) == 0 {
		httpx.Error(w, r, http.StatusBadRequest, "items are required")
		return
	}

	lines := make([]paydomain.CheckoutLine, 0, len(ids))
	for _, id := range ids {
		p, err := h.deps.Catalog.Get(ctx, id)
		if errors.Is(err, catalogdomain.ErrNotFound) {
			httpx.Error(w, r, http.StatusBadRequest, "unknown product "+id)
			return
		}
		if err != nil {
			h.log.Error("catalog lookup", "product_id", id, "err", err)
			httpx.Error(w, r, http.StatusInternalServerError, "failed to price cart")
			return
		}
		// One-of-a-kind pieces: quantity is always one.
		lines = append(lines, paydomain.CheckoutLine{ProductID: p.ID, Name: p.Title, UnitAmount: p.PriceCents, Quantity: 1})
	}

	flags, err := h.deps.Stock.GetMany(ctx, ids)
	if err != nil {
		h.log.Error("stock lookup", "err", err)
		httpx.Error(w, r, http.StatusInternalServerError, "failed to check stock")
		return
	}
	for _, id := range ids {
		if inStock, ok := flags[id]; ok && !inStock {
			httpx.Error(w, r, http.StatusConflict, "product "+id+" is sold")
			return
		}
	}

	link, err := h.deps.Checkout.CreateCheckout(ctx, lines)
	if err != nil {
		h.log.Error("create checkout session", "err", err)
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, httpx.ErrorResponse{Error: "payment processor unavailable", Retryable: errors.Is(err, paydomain.ErrUpstream)})
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, checkoutResp{SessionID: link.SessionID, URL: link.URL})
}
