package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	catalogdomain "github.com/galleria/storefront/internal/catalog/domain"
	"github.com/galleria/storefront/internal/order/application"
	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
	"github.com/galleria/storefront/pkg/httpx"
	"github.com/galleria/storefront/pkg/idempotency"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type EventVerifier interface {
	Parse(payload []byte, signature string) (paydomain.Event, error)
}

type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, lines []paydomain.CheckoutLine) (paydomain.CheckoutLink, error)
}

// Deduper claims webhook event ids so a redelivered event is acknowledged
// without being processed twice. A claim is only final after Complete.
type Deduper interface {
	WebhookKey(eventID string) string
	Claim(ctx context.Context, key string) (idempotency.ClaimState, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

type StockReader interface {
	GetMany(ctx context.Context, productIDs []string) (map[string]bool, error)
}

type Deps struct {
	Service  *application.Service
	Verifier EventVerifier
	Sessions application.SessionSource
	Checkout CheckoutCreator
	Dedupe   Deduper
	Catalog  catalogdomain.Catalog
	Stock    StockReader

	// WebhookBudget bounds processing of one webhook delivery.
	WebhookBudget time.Duration
	// PollTimeout bounds the processor lookup behind verify-payment.
	PollTimeout time.Duration
}

type Handler struct {
	log    *slog.Logger
	deps   Deps
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, deps Deps) *Handler {
	if deps.WebhookBudget <= 0 {
		deps.WebhookBudget = 4 * time.Second
	}
	if deps.PollTimeout <= 0 {
		deps.PollTimeout = 3 * time.Second
	}
	return &Handler{
		log:    log,
		deps:   deps,
		tracer: otel.Tracer("order-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/webhooks/stripe", h.stripeWebhook)
	r.Get("/api/verify-payment", h.verifyPayment)
	r.Get("/api/orders", h.getOrder)
	r.Post("/api/checkout", h.createCheckout)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httpx.Error(w, r, http.StatusBadRequest, "session_id is required")
		return
	}
	o, err := h.deps.Service.Get(r.Context(), sessionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpx.Error(w, r, http.StatusNotFound, "order not found")
		return
	case err != nil:
		h.log.Error("get order", "session_id", sessionID, "err", err)
		httpx.Error(w, r, http.StatusInternalServerError, "failed to load order")
		return
	}
	render.JSON(w, r, o)
}

// deferRetry queues a retry on a context detached from the request, since the
// request budget is usually what ran out.
func (h *Handler) deferRetry(ctx context.Context, sessionID string, cart []domain.CartItem, source string, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	return h.deps.Service.Defer(ctx, sessionID, cart, 0, source, cause)
}
