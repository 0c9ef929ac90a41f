package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
	"github.com/galleria/storefront/pkg/metrics"
	"github.com/google/uuid"
)

const MaxRetryAttempts = 5

// Entry points that can settle a session.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceRetry   = "retry"
	SourceCLI     = "cli"
)

type Service struct {
	log     *slog.Logger
	repo    OrderRepository
	stock   StockUpdater
	filter  ProductFilter
	retries RetryQueue
	now     func() time.Time
	newID   func() string
}

func NewService(log *slog.Logger, repo OrderRepository, stock StockUpdater, filter ProductFilter, retries RetryQueue) *Service {
	return &Service{
		log:     log,
		repo:    repo,
		stock:   stock,
		filter:  filter,
		retries: retries,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// Settlement is the outcome of settling one verified session. Deferred holds
// the secondary steps (addresses, stock) that failed and must be retried; the
// order row itself is durable whenever Settle returns a nil error.
type Settlement struct {
	Order    domain.Order
	Created  bool
	Deferred []error
}

func (s Settlement) Complete() bool { return len(s.Deferred) == 0 }

func (s Settlement) Err() error { return errors.Join(s.Deferred...) }

// Reconcile converges the order for sess. It is safe to call any number of
// times, from any entry point, concurrently: there is exactly one order per
// session afterwards.
func (s *Service) Reconcile(ctx context.Context, sess paydomain.CheckoutSession, cart []domain.CartItem) (domain.Order, bool, error) {
	var cartIDs []string
	if len(sess.ProductIDs) == 0 && len(cart) > 0 {
		cartIDs = s.knownCartIDs(ctx, cart)
	}
	candidate := domain.NewOrder(s.newID(), sess, cartIDs, s.now())
	created := domain.OrderReconciled{
		OrderID:    candidate.ID,
		SessionID:  candidate.SessionID,
		Status:     string(candidate.Status),
		ProductIDs: candidate.ProductIDs,
		Source:     candidate.ProductSource.String(),
	}
	o, inserted, err := s.repo.Upsert(ctx, candidate, created)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("reconcile order %s: %w", sess.ID, err)
	}
	return o, inserted, nil
}

// Settle runs the full success path for a paid session: reconcile the order,
// attach any addresses and flag its products out of stock. Unpaid sessions
// are refused before anything is written.
func (s *Service) Settle(ctx context.Context, sess paydomain.CheckoutSession, cart []domain.CartItem, source string) (Settlement, error) {
	if !sess.Paid() {
		metrics.RecordReconciliation(source, "not_paid")
		return Settlement{}, paydomain.ErrNotPaid
	}

	o, created, err := s.Reconcile(ctx, sess, cart)
	if err != nil {
		metrics.RecordReconciliation(source, "error")
		return Settlement{}, err
	}
	res := Settlement{Order: o, Created: created}

	if err := s.AttachAddresses(ctx, o.ID, sess.Billing, sess.Shipping); err != nil {
		res.Deferred = append(res.Deferred, err)
	}
	// Re-applied on every pass so a lost stock write heals on redelivery.
	if o.Sold() {
		if _, err := s.stock.SetStock(ctx, o.ProductIDs, false); err != nil {
			res.Deferred = append(res.Deferred, fmt.Errorf("mark products sold for %s: %w", o.SessionID, err))
		}
	}

	outcome, state := "settled", domain.StateReconciled
	if !res.Complete() {
		outcome, state = "deferred", domain.StatePendingVerification
	}
	metrics.RecordReconciliation(source, outcome)
	s.log.Info("session settled",
		"session_id", sess.ID,
		"order_id", o.ID,
		"created", created,
		"product_source", o.ProductSource.String(),
		"products", len(o.ProductIDs),
		"source", source,
		"deferred", len(res.Deferred),
		"state", state,
	)
	return res, nil
}

// RecordPending stores a completed-but-unpaid session (delayed payment
// methods) so the later async result has a row to settle or fail.
func (s *Service) RecordPending(ctx context.Context, sess paydomain.CheckoutSession) (domain.Order, error) {
	if sess.Paid() {
		return domain.Order{}, fmt.Errorf("session %s is paid", sess.ID)
	}
	o, _, err := s.Reconcile(ctx, sess, nil)
	if err != nil {
		return domain.Order{}, err
	}
	metrics.RecordReconciliation(SourceWebhook, "pending")
	return o, nil
}

// AttachAddresses stores whichever addresses are present. Each kind is
// attempted independently; failures are joined.
func (s *Service) AttachAddresses(ctx context.Context, orderID string, billing, shipping *paydomain.Address) error {
	var errs []error
	for _, in := range []struct {
		kind domain.AddressKind
		addr *paydomain.Address
	}{
		{domain.AddressBilling, billing},
		{domain.AddressShipping, shipping},
	} {
		if in.addr == nil || in.addr.IsZero() {
			continue
		}
		a := domain.NewAddress(s.newID(), orderID, in.kind, *in.addr, s.now())
		if _, _, err := s.repo.AttachAddress(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("attach %s address to %s: %w", in.kind, orderID, err))
		}
	}
	return errors.Join(errs...)
}

// MarkFailed moves a pending order to failed. Completed orders are left alone.
func (s *Service) MarkFailed(ctx context.Context, sessionID string) (domain.Order, bool, error) {
	o, changed, err := s.repo.MarkFailed(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, err
	}
	if changed {
		s.log.Info("order marked failed", "session_id", sessionID, "order_id", o.ID)
	}
	return o, changed, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (domain.Order, error) {
	return s.repo.GetBySession(ctx, sessionID)
}

// Defer queues a retry for work Settle could not finish.
func (s *Service) Defer(ctx context.Context, sessionID string, cart []domain.CartItem, attempt int, source string, cause error) error {
	if attempt >= MaxRetryAttempts {
		return fmt.Errorf("session %s: giving up after %d attempts: %w", sessionID, attempt, cause)
	}
	ids := make([]string, 0, len(cart))
	for _, c := range cart {
		ids = append(ids, c.ID)
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	err := s.retries.EnqueueRetry(ctx, domain.ReconcileRetry{
		SessionID:  sessionID,
		CartIDs:    domain.NormalizeIDs(ids),
		Attempt:    attempt + 1,
		Reason:     reason,
		EnqueuedBy: source,
	})
	if err != nil {
		return fmt.Errorf("enqueue retry for %s: %w", sessionID, err)
	}
	s.log.Warn("reconcile deferred", "session_id", sessionID, "attempt", attempt+1, "reason", reason, "state", domain.StatePendingVerification)
	return nil
}

func (s *Service) knownCartIDs(ctx context.Context, cart []domain.CartItem) []string {
	ids := make([]string, 0, len(cart))
	for _, c := range cart {
		ids = append(ids, c.ID)
	}
	ids = domain.NormalizeIDs(ids)
	if s.filter == nil {
		return ids
	}
	known := s.filter.Known(ctx, ids)
	if len(known) < len(ids) {
		s.log.Warn("dropped unknown cart products", "requested", len(ids), "known", len(known))
	}
	return known
}
