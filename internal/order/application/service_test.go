package application

import (
	"context"
	"sync"
	"testing"

	"github.com/galleria/storefront/internal/order/domain"
	paydomain "github.com/galleria/storefront/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *Service
	repo    *memRepo
	stock   *memStock
	retries *memRetries
}

func newFixture() fixture {
	f := fixture{repo: newMemRepo(), stock: newMemStock(), retries: &memRetries{}}
	f.svc = NewService(discardLogger(), f.repo, f.stock, setFilter{"p1", "p2", "p3"}, f.retries)
	return f
}

func paidSession(products ...string) paydomain.CheckoutSession {
	return paydomain.CheckoutSession{
		ID:            "cs_test_1",
		Status:        paydomain.SessionComplete,
		PaymentStatus: paydomain.PaymentPaid,
		Email:         "a@x.com",
		AmountTotal:   5000,
		Currency:      "cad",
		Billing:       &paydomain.Address{Line1: "1 Main St", City: "Toronto", PostalCode: "M5V", Country: "CA"},
		ProductIDs:    products,
	}
}

func TestSettleCreatesOrderAndMarksSold(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Settle(ctx, paidSession("p1", "p2"), nil, SourceWebhook)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Complete())
	assert.Equal(t, domain.StatusCompleted, res.Order.Status)
	assert.Equal(t, []string{"p1", "p2"}, res.Order.ProductIDs)
	assert.Equal(t, domain.SourceMetadata, res.Order.ProductSource)
	assert.EqualValues(t, 5000, res.Order.TotalCents)

	for _, id := range []string{"p1", "p2"} {
		inStock, ok := f.stock.get(id)
		require.True(t, ok)
		assert.False(t, inStock)
	}

	stored, err := f.svc.Get(ctx, "cs_test_1")
	require.NoError(t, err)
	require.NotNil(t, stored.BillingAddressID)
	assert.Nil(t, stored.ShippingAddressID)
	assert.Len(t, f.repo.events, 1)
}

func TestWebhookThenPollWithCartKeepsMetadata(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Settle(ctx, paidSession("p1", "p2"), nil, SourceWebhook)
	require.NoError(t, err)

	res, err := f.svc.Settle(ctx, paidSession("p1", "p2"), []domain.CartItem{{ID: "p3"}}, SourcePoll)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"p1", "p2"}, res.Order.ProductIDs)
	assert.Len(t, f.repo.orders, 1)

	_, touched := f.stock.get("p3")
	assert.False(t, touched)
}

func TestCartOnlyUpgradedByMetadata(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.Settle(ctx, paidSession(), []domain.CartItem{{ID: "p3"}, {ID: "bogus"}}, SourcePoll)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, res.Order.ProductIDs)
	assert.Equal(t, domain.SourceCart, res.Order.ProductSource)

	res, err = f.svc.Settle(ctx, paidSession("p1"), nil, SourceWebhook)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, res.Order.ProductIDs)
	assert.Equal(t, domain.SourceMetadata, res.Order.ProductSource)
}

func TestSettleRefusesUnpaid(t *testing.T) {
	f := newFixture()
	sess := paidSession("p1")
	sess.PaymentStatus = paydomain.PaymentUnpaid

	_, err := f.svc.Settle(context.Background(), sess, nil, SourcePoll)
	require.ErrorIs(t, err, paydomain.ErrNotPaid)
	assert.Empty(t, f.repo.orders)
	assert.Zero(t, f.stock.calls)
}

func TestSettleStockFailureIsDeferredAndHealsOnRedelivery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.stock.err = errBoom

	res, err := f.svc.Settle(ctx, paidSession("p1"), nil, SourceWebhook)
	require.NoError(t, err)
	assert.False(t, res.Complete())
	require.ErrorIs(t, res.Err(), errBoom)

	f.stock.err = nil
	res, err = f.svc.Settle(ctx, paidSession("p1"), nil, SourceRetry)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	inStock, ok := f.stock.get("p1")
	require.True(t, ok)
	assert.False(t, inStock)
}

func TestConcurrentSettleYieldsOneOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart := []domain.CartItem{{ID: "p3"}}
			if i%2 == 0 {
				cart = nil
			}
			_, err := f.svc.Settle(ctx, paidSession("p1", "p2"), cart, SourcePoll)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, f.repo.orders, 1)
	assert.Len(t, f.repo.events, 1)
	assert.Equal(t, []string{"p1", "p2"}, f.repo.orders["cs_test_1"].ProductIDs)
}

func TestRecordPendingThenFailed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := paidSession("p1")
	sess.PaymentStatus = paydomain.PaymentUnpaid

	o, err := f.svc.RecordPending(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)

	o, changed, err := f.svc.MarkFailed(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StatusFailed, o.Status)
	assert.Zero(t, f.stock.calls)
}

func TestMarkFailedNeverDowngradesCompleted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Settle(ctx, paidSession("p1"), nil, SourceWebhook)
	require.NoError(t, err)

	o, changed, err := f.svc.MarkFailed(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.StatusCompleted, o.Status)

	_, changed, err = f.svc.MarkFailed(ctx, "cs_unknown")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestAttachAddressesIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.svc.Settle(ctx, paidSession("p1"), nil, SourceWebhook)
	require.NoError(t, err)
	before, err := f.svc.Get(ctx, "cs_test_1")
	require.NoError(t, err)
	require.NotNil(t, before.BillingAddressID)
	first := *before.BillingAddressID

	require.NoError(t, f.svc.AttachAddresses(ctx, res.Order.ID, &paydomain.Address{Line1: "other", Country: "US"}, nil))
	o, err := f.svc.Get(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, first, *o.BillingAddressID)
	assert.Len(t, f.repo.addresses, 1)
}

func TestDeferEnqueuesUntilLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Defer(ctx, "cs_test_1", []domain.CartItem{{ID: "p2"}, {ID: "p2"}}, 0, SourceWebhook, errBoom))
	require.Len(t, f.retries.queue, 1)
	r := f.retries.queue[0]
	assert.Equal(t, 1, r.Attempt)
	assert.Equal(t, []string{"p2"}, r.CartIDs)
	assert.Equal(t, "boom", r.Reason)

	err := f.svc.Defer(ctx, "cs_test_1", nil, MaxRetryAttempts, SourceRetry, errBoom)
	require.ErrorIs(t, err, errBoom)
	assert.Len(t, f.retries.queue, 1)
}
