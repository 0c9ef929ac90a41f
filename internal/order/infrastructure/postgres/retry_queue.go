package postgres

import (
	"context"
	"encoding/json"

	"github.com/galleria/storefront/internal/order/domain"
	"github.com/galleria/storefront/pkg/outbox"
	"github.com/galleria/storefront/pkg/tracing"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RetryQueue writes ReconcileRetry requests to the outbox; the relay publishes
// them and the reconcile worker consumes them.
type RetryQueue struct {
	pool *pgxpool.Pool
}

func NewRetryQueue(pool *pgxpool.Pool) *RetryQueue {
	return &RetryQueue{pool: pool}
}

func (q *RetryQueue) EnqueueRetry(ctx context.Context, r domain.ReconcileRetry) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return outbox.Enqueue(ctx, q.pool, outbox.Event{
		AggregateType: "checkout_session",
		AggregateID:   r.SessionID,
		Type:          domain.EventReconcileRetry,
		Payload:       payload,
		Traceparent:   tracing.Traceparent(ctx),
	})
}
