package http

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
	"github.com/galleria/storefront/pkg/idempotency"
	"github.com/stripe/stripe-go/v81/webhook"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	addrs  map[string]domain.Address
}

func (r *memRepo) Upsert(_ context.Context, o domain.Order, _ domain.OrderReconciled) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.SessionID]
	if !ok {
		r.orders[o.SessionID] = o
		return o, true, nil
	}
	merged, _ := cur.Merge(o)
	r.orders[o.SessionID] = merged
	return merged, false, nil
}

func (r *memRepo) AttachAddress(_ context.Context, a domain.Address) (domain.Address, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := a.OrderID + "/" + string(a.Kind)
	if cur, ok := r.addrs[key]; ok {
		return cur, false, nil
	}
	r.addrs[key] = a
	return a, true, nil
}

func (r *memRepo) MarkFailed(_ context.Context, sessionID string) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[sessionID]
	if !ok {
		return domain.Order{}, false, domain.ErrNotFound
	}
	if o.Status != domain.StatusPending {
		return o, false, nil
	}
	o.Status = domain.StatusFailed
	r.orders[sessionID] = o
	return o, true, nil
}

func (r *memRepo) GetBySession(_ context.Context, sessionID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[sessionID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

type memStock struct {
	mu    sync.Mutex
	state map[string]bool
	err   error
	// block makes SetStock wait for its context to end.
	block bool
}

func (s *memStock) SetStock(ctx context.Context, ids []string, inStock bool) (int, error) {
	if s.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	for _, id := range ids {
		s.state[id] = inStock
	}
	return len(ids), nil
}

func (s *memStock) GetMany(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		if v, ok := s.state[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type memRetries struct {
	mu    sync.Mutex
	queue []domain.ReconcileRetry
	err   error
}

func (q *memRetries) EnqueueRetry(_ context.Context, r domain.ReconcileRetry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.queue = append(q.queue, r)
	return nil
}

type fakeSessions struct {
	sessions map[string]paydomain.CheckoutSession
	err      error
	calls    int
	// block makes Retrieve hang until its context ends.
	block bool
}

func (f *fakeSessions) Retrieve(ctx context.Context, id string) (paydomain.CheckoutSession, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return paydomain.CheckoutSession{}, ctx.Err()
	}
	if f.err != nil {
		return paydomain.CheckoutSession{}, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return paydomain.CheckoutSession{}, paydomain.ErrSessionNotFound
	}
	return s, nil
}

const testLease = 10 * time.Second

type memClaim struct {
	done  bool
	until time.Time
}

// memDedupe mirrors idempotency.Store: claims are leases until completed.
type memDedupe struct {
	mu   sync.Mutex
	keys map[string]memClaim
	now  func() time.Time
}

func (d *memDedupe) WebhookKey(id string) string { return "idem:webhook:" + id }

func (d *memDedupe) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func (d *memDedupe) Claim(_ context.Context, key string) (idempotency.ClaimState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.keys[key]
	switch {
	case ok && c.done:
		return idempotency.Done, nil
	case ok && d.clock().Before(c.until):
		return idempotency.InFlight, nil
	}
	d.keys[key] = memClaim{until: d.clock().Add(testLease)}
	return idempotency.Claimed, nil
}

func (d *memDedupe) Complete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key] = memClaim{done: true}
	return nil
}

func (d *memDedupe) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

type fakeCheckout struct {
	lines []paydomain.CheckoutLine
	err   error
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, lines []paydomain.CheckoutLine) (paydomain.CheckoutLink, error) {
	if f.err != nil {
		return paydomain.CheckoutLink{}, f.err
	}
	f.lines = lines
	return paydomain.CheckoutLink{SessionID: "cs_new", URL: "https://checkout.example/cs_new"}, nil
}

func sign(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}
