package application

import (
	"context"

	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
)

type OrderRepository interface {
	// Upsert inserts the order or merges it into the existing row for the
	// same session. created reports whether this call inserted the row; the
	// OrderReconciled event is only written when it did.
	Upsert(ctx context.Context, o domain.Order, created domain.OrderReconciled) (domain.Order, bool, error)
	// AttachAddress stores an address for (order, kind) unless one exists and
	// links it from the order if that slot is still empty.
	AttachAddress(ctx context.Context, a domain.Address) (domain.Address, bool, error)
	MarkFailed(ctx context.Context, sessionID string) (domain.Order, bool, error)
	GetBySession(ctx context.Context, sessionID string) (domain.Order, error)
}

type StockUpdater interface {
	SetStock(ctx context.Context, productIDs []string, inStock bool) (int, error)
}

type SessionSource interface {
	Retrieve(ctx context.Context, sessionID string) (paydomain.CheckoutSession, error)
}

// ProductFilter keeps only ids the catalog knows. Cart hints from the client
// pass through it before they can become part of an order.
type ProductFilter interface {
	Known(ctx context.Context, ids []string) []string
}

type RetryQueue interface {
	EnqueueRetry(ctx context.Context, r domain.ReconcileRetry) error
}
