package application

import (
	"context"
	"errors"
	"time"

	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
)

// Retrier settles sessions named by ReconcileRetry events. It re-reads the
// session from the processor rather than trusting the event payload.
type Retrier struct {
	svc      *Service
	sessions SessionSource
}

func NewRetrier(svc *Service, sessions SessionSource) *Retrier {
	return &Retrier{svc: svc, sessions: sessions}
}

// Backoff is how long after enqueueing attempt n should run.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(1<<(attempt-1)) * 2 * time.Second
	return min(d, time.Minute)
}

// Handle returns an error only when the retry could neither complete nor be
// queued again.
func (r *Retrier) Handle(ctx context.Context, req domain.ReconcileRetry) error {
	log := r.svc.log.With("session_id", req.SessionID, "attempt", req.Attempt)
	cart := make([]domain.CartItem, 0, len(req.CartIDs))
	for _, id := range req.CartIDs {
		cart = append(cart, domain.CartItem{ID: id})
	}

	sess, err := r.sessions.Retrieve(ctx, req.SessionID)
	switch {
	case errors.Is(err, paydomain.ErrSessionNotFound), errors.Is(err, paydomain.ErrMalformedEvent):
		log.Warn("dropping retry for unusable session", "err", err)
		return nil
	case err != nil:
		return r.again(ctx, req, cart, err)
	}
	if !sess.Paid() {
		log.Info("dropping retry for unpaid session", "payment_status", sess.PaymentStatus)
		return nil
	}

	res, err := r.svc.Settle(ctx, sess, cart, SourceRetry)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return r.again(ctx, req, cart, err)
	}
	return nil
}

func (r *Retrier) again(ctx context.Context, req domain.ReconcileRetry, cart []domain.CartItem, cause error) error {
	err := r.svc.Defer(ctx, req.SessionID, cart, req.Attempt, SourceRetry, cause)
	if err != nil && req.Attempt >= MaxRetryAttempts {
		r.svc.log.Error("reconcile retries exhausted", "session_id", req.SessionID, "err", err)
		return nil
	}
	return err
}
