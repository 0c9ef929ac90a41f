package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/galleria/storefront/internal/order/application"
	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/attribute"
)

type verifyResp struct {
	Success       bool     `json:"success"`
	Settled       bool     `json:"settled"`
	Retryable     bool     `json:"retryable,omitempty"`
	Message       string   `json:"message,omitempty"`
	SessionID     string   `json:"sessionId,omitempty"`
	OrderID       string   `json:"orderId,omitempty"`
	PaymentStatus string   `json:"paymentStatus,omitempty"`
	CustomerEmail string   `json:"customerEmail,omitempty"`
	AmountTotal   int64    `json:"amountTotal,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	ProductIDs    []string `json:"productIds,omitempty"`
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyPayment")
	defer span.End()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verifyResp{Message: "Session ID is required"})
		return
	}
	span.SetAttributes(attribute.String("checkout.session_id", sessionID))
	cart := h.parseCart(r.URL.Query().Get("cart"))

	lookup, cancel := context.WithTimeout(ctx, h.deps.PollTimeout)
	sess, err := h.deps.Sessions.Retrieve(lookup, sessionID)
	cancel()
	switch {
	case errors.Is(err, paydomain.ErrSessionNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, verifyResp{SessionID: sessionID, Message: "Session not found"})
		return
	case errors.Is(err, paydomain.ErrMalformedEvent):
		h.log.Warn("unusable session from processor", "session_id", sessionID, "err", err)
		render.JSON(w, r, verifyResp{SessionID: sessionID, Message: "Payment not completed"})
		return
	case err != nil:
		h.log.Warn("session lookup failed", "session_id", sessionID, "err", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, verifyResp{SessionID: sessionID, Retryable: true, Message: "Payment status unavailable, try again"})
		return
	}

	if !sess.Paid() {
		render.JSON(w, r, verifyResp{
			SessionID:     sessionID,
			PaymentStatus: string(sess.PaymentStatus),
			Message:       "Payment not completed",
		})
		return
	}

	resp := verifyResp{
		Success:       true,
		SessionID:     sessionID,
		PaymentStatus: string(sess.PaymentStatus),
		CustomerEmail: sess.Email,
		AmountTotal:   sess.AmountTotal,
		Currency:      sess.Currency,
	}
	res, err := h.deps.Service.Settle(ctx, sess, cart, application.SourcePoll)
	if err == nil {
		resp.OrderID = res.Order.ID
		resp.ProductIDs = res.Order.ProductIDs
		err = res.Err()
	}
	resp.Settled = err == nil
	if err != nil {
		h.log.Warn("settle from poll incomplete", "session_id", sessionID, "err", err)
		if derr := h.deferRetry(ctx, sessionID, cart, application.SourcePoll, err); derr != nil {
			h.log.Error("enqueue retry from poll", "session_id", sessionID, "err", derr)
		}
	}
	render.JSON(w, r, resp)
}

// parseCart decodes the optional cart hint. A malformed hint is dropped: it
// only ever fills in products the processor did not record.
func (h *Handler) parseCart(raw string) []domain.CartItem {
	if raw == "" {
		return nil
	}
	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		h.log.Warn("ignoring malformed cart hint", "err", err)
		return nil
	}
	return items
}
