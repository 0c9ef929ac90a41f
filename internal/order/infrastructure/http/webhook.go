package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/galleria/storefront/internal/order/application"
	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
	"github.com/galleria/storefront/pkg/httpx"
	"github.com/galleria/storefront/pkg/idempotency"
	"github.com/galleria/storefront/pkg/metrics"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxWebhookBody = 64 << 10

type webhookResp struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
	Deferred  bool `json:"deferred,omitempty"`
}

func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "StripeWebhook")
	defer span.End()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Warn("webhook body too large", "limit", tooLarge.Limit)
			metrics.RecordWebhook("unknown", "too_large")
			httpx.Error(w, r, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		httpx.Error(w, r, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := h.deps.Verifier.Parse(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, paydomain.ErrNotConfigured):
		h.log.Error("webhook secret not configured")
		metrics.RecordWebhook("unknown", "not_configured")
		httpx.Error(w, r, http.StatusInternalServerError, "webhook not configured")
		return
	case errors.Is(err, paydomain.ErrInvalidSignature):
		h.log.Warn("webhook signature rejected", "err", err, "state", domain.StateRejected)
		metrics.RecordWebhook("unknown", "invalid_signature")
		httpx.Error(w, r, http.StatusBadRequest, "invalid signature")
		return
	case errors.Is(err, paydomain.ErrMalformedEvent):
		// Authentic but unusable; redelivery would not change it.
		h.log.Warn("ignoring malformed webhook event", "err", err)
		metrics.RecordWebhook("unknown", "malformed")
		render.JSON(w, r, webhookResp{Received: true})
		return
	case err != nil:
		httpx.Error(w, r, http.StatusBadRequest, "invalid event")
		return
	}

	span.SetAttributes(
		attribute.String("stripe.event_id", ev.ID),
		attribute.String("stripe.event_type", ev.Type),
		attribute.String("checkout.session_id", ev.Session.ID),
	)
	if ev.Kind == paydomain.EventIgnored {
		metrics.RecordWebhook(ev.Type, "ignored")
		render.JSON(w, r, webhookResp{Received: true})
		return
	}

	key := h.deps.Dedupe.WebhookKey(ev.ID)
	state, err := h.deps.Dedupe.Claim(ctx, key)
	if err != nil {
		// The writes are idempotent on their own, so carry on without dedupe.
		h.log.Warn("webhook dedupe unavailable", "event_id", ev.ID, "err", err)
		state = idempotency.Claimed
	}
	switch state {
	case idempotency.Done:
		metrics.RecordWebhook(ev.Type, "duplicate")
		render.JSON(w, r, webhookResp{Received: true, Duplicate: true})
		return
	case idempotency.InFlight:
		// Not acknowledged, so the processor redelivers after the lease is gone.
		metrics.RecordWebhook(ev.Type, "in_flight")
		httpx.Error(w, r, http.StatusConflict, "event is being processed")
		return
	}

	budget, cancel := context.WithTimeout(ctx, h.deps.WebhookBudget)
	err = h.handleEvent(budget, ev)
	cancel()
	if err == nil {
		h.complete(ctx, ev.ID, key)
		metrics.RecordWebhook(ev.Type, "processed")
		render.JSON(w, r, webhookResp{Received: true})
		return
	}

	span.RecordError(err)
	if derr := h.deferRetry(ctx, ev.Session.ID, nil, application.SourceWebhook, err); derr != nil {
		span.SetStatus(codes.Error, "retry not enqueued")
		h.log.Error("webhook processing failed", "event_id", ev.ID, "session_id", ev.Session.ID, "err", err, "defer_err", derr)
		if rerr := h.deps.Dedupe.Release(context.WithoutCancel(ctx), key); rerr != nil {
			h.log.Warn("release webhook claim", "event_id", ev.ID, "err", rerr)
		}
		metrics.RecordWebhook(ev.Type, "error")
		httpx.Error(w, r, http.StatusInternalServerError, "processing failed")
		return
	}
	h.complete(ctx, ev.ID, key)
	metrics.RecordWebhook(ev.Type, "deferred")
	render.JSON(w, r, webhookResp{Received: true, Deferred: true})
}

func (h *Handler) complete(ctx context.Context, eventID, key string) {
	if err := h.deps.Dedupe.Complete(context.WithoutCancel(ctx), key); err != nil {
		h.log.Warn("complete webhook claim", "event_id", eventID, "err", err)
	}
}

func (h *Handler) handleEvent(ctx context.Context, ev paydomain.Event) error {
	sess := ev.Session
	switch ev.Kind {
	case paydomain.EventSessionCompleted, paydomain.EventAsyncPaymentSucceeded:
		if !sess.Paid() {
			if ev.Kind == paydomain.EventSessionCompleted {
				_, err := h.deps.Service.RecordPending(ctx, sess)
				return err
			}
			h.log.Warn("payment succeeded event for unpaid session", "event_id", ev.ID, "session_id", sess.ID, "payment_status", sess.PaymentStatus)
			return nil
		}
		res, err := h.deps.Service.Settle(ctx, sess, nil, application.SourceWebhook)
		if err != nil {
			return err
		}
		return res.Err()
	case paydomain.EventAsyncPaymentFailed, paydomain.EventSessionExpired:
		_, _, err := h.deps.Service.MarkFailed(ctx, sess.ID)
		return err
	default:
		return nil
	}
}
