package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/galleria/storefront/internal/order/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	addresses map[string]domain.Address
	events    []domain.OrderReconciled
	upsertErr error
	addrErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[string]domain.Order{}, addresses: map[string]domain.Address{}}
}

func (r *memRepo) Upsert(_ context.Context, o domain.Order, created domain.OrderReconciled) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return domain.Order{}, false, r.upsertErr
	}
	cur, ok := r.orders[o.SessionID]
	if !ok {
		r.orders[o.SessionID] = o
		r.events = append(r.events, created)
		return o, true, nil
	}
	merged, _ := cur.Merge(o)
	r.orders[o.SessionID] = merged
	return merged, false, nil
}

func (r *memRepo) AttachAddress(_ context.Context, a domain.Address) (domain.Address, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addrErr != nil {
		return domain.Address{}, false, r.addrErr
	}
	key := a.OrderID + "/" + string(a.Kind)
	if cur, ok := r.addresses[key]; ok {
		return cur, false, nil
	}
	r.addresses[key] = a
	for sid, o := range r.orders {
		if o.ID != a.OrderID {
			continue
		}
		id := a.ID
		switch a.Kind {
		case domain.AddressBilling:
			if o.BillingAddressID == nil {
				o.BillingAddressID = &id
			}
		case domain.AddressShipping:
			if o.ShippingAddressID == nil {
				o.ShippingAddressID = &id
			}
		}
		r.orders[sid] = o
	}
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
	calls int
	err   error
}

func newMemStock() *memStock { return &memStock{state: map[string]bool{}} }

func (s *memStock) SetStock(_ context.Context, ids []string, inStock bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	for _, id := range ids {
		s.state[id] = inStock
	}
	return len(ids), nil
}

func (s *memStock) get(id string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[id]
	return v, ok
}

type setFilter []string

func (f setFilter) Known(_ context.Context, ids []string) []string {
	out := []string{}
	for _, id := range ids {
		if slices.Contains(f, id) {
			out = append(out, id)
		}
	}
	return out
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

var errBoom = errors.New("boom")
