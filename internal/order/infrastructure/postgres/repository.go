package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/galleria/storefront/internal/order/domain"
	"github.com/galleria/storefront/pkg/outbox"
	"github.com/galleria/storefront/pkg/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id, session_id, customer_email, product_ids, product_source, total_cents, currency, status,
	billing_address_id, shipping_address_id, created_at, updated_at`

// upsertOrder mirrors domain.Order.Merge. The WHERE clause skips no-op
// updates so a duplicate delivery leaves updated_at alone; in that case no row
// is returned and the caller reads the existing one.
const upsertOrder = `
INSERT INTO orders (id, session_id, customer_email, product_ids, product_source, total_cents, currency, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (session_id) DO UPDATE SET
	customer_email = CASE WHEN orders.customer_email = '' THEN EXCLUDED.customer_email ELSE orders.customer_email END,
	product_ids    = CASE WHEN EXCLUDED.product_source > orders.product_source THEN EXCLUDED.product_ids ELSE orders.product_ids END,
	product_source = GREATEST(orders.product_source, EXCLUDED.product_source),
	total_cents    = CASE WHEN orders.total_cents = 0 THEN EXCLUDED.total_cents ELSE orders.total_cents END,
	currency       = CASE WHEN orders.currency = '' THEN EXCLUDED.currency ELSE orders.currency END,
	status         = CASE
		WHEN EXCLUDED.status = 'completed' THEN 'completed'
		WHEN EXCLUDED.status = 'failed' AND orders.status = 'pending' THEN 'failed'
		ELSE orders.status END,
	updated_at     = EXCLUDED.updated_at
WHERE (orders.customer_email = '' AND EXCLUDED.customer_email <> '')
   OR EXCLUDED.product_source > orders.product_source
   OR (orders.total_cents = 0 AND EXCLUDED.total_cents <> 0)
   OR (orders.currency = '' AND EXCLUDED.currency <> '')
   OR (EXCLUDED.status = 'completed' AND orders.status <> 'completed')
   OR (EXCLUDED.status = 'failed' AND orders.status = 'pending')
RETURNING ` + orderColumns + `, (xmax = 0) AS inserted`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Upsert inserts or merges the order for o.SessionID and, when the row is new,
// writes the OrderReconciled outbox event in the same transaction.
func (r *Repository) Upsert(ctx context.Context, o domain.Order, created domain.OrderReconciled) (domain.Order, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var inserted bool
	row := tx.QueryRow(ctx, upsertOrder,
		o.ID, o.SessionID, o.CustomerEmail, o.ProductIDs, int16(o.ProductSource), o.TotalCents, o.Currency, string(o.Status), o.CreatedAt, o.UpdatedAt)
	stored, err := scanOrder(row, &inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		stored, err = scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE session_id=$1`, o.SessionID))
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("upsert order: %w", err)
	}

	if inserted {
		payload, err := json.Marshal(created)
		if err != nil {
			return domain.Order{}, false, err
		}
		err = outbox.Enqueue(ctx, tx, outbox.Event{
			AggregateType: "order",
			AggregateID:   stored.ID,
			Type:          domain.EventOrderReconciled,
			Payload:       payload,
			Traceparent:   tracing.Traceparent(ctx),
		})
		if err != nil {
			return domain.Order{}, false, fmt.Errorf("enqueue %s: %w", domain.EventOrderReconciled, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, false, err
	}
	return stored, inserted, nil
}

// AttachAddress inserts the address unless the order already has one of that
// kind, then links it from the order only while the slot is empty.
func (r *Repository) AttachAddress(ctx context.Context, a domain.Address) (domain.Address, bool, error) {
	column := "billing_address_id"
	if a.Kind == domain.AddressShipping {
		column = "shipping_address_id"
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Address{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `INSERT INTO addresses (id, order_id, kind, line1, line2, city, region, postal_code, country, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (order_id, kind) DO NOTHING`,
		a.ID, a.OrderID, string(a.Kind), a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country, a.CreatedAt)
	if err != nil {
		return domain.Address{}, false, fmt.Errorf("insert address: %w", err)
	}
	inserted := ct.RowsAffected() == 1

	var stored domain.Address
	var kind string
	err = tx.QueryRow(ctx, `SELECT id, order_id, kind, line1, line2, city, region, postal_code, country, created_at
		FROM addresses WHERE order_id=$1 AND kind=$2`, a.OrderID, string(a.Kind)).
		Scan(&stored.ID, &stored.OrderID, &kind, &stored.Line1, &stored.Line2, &stored.City, &stored.Region, &stored.PostalCode, &stored.Country, &stored.CreatedAt)
	if err != nil {
		return domain.Address{}, false, fmt.Errorf("read address: %w", err)
	}
	stored.Kind = domain.AddressKind(kind)

	if _, err := tx.Exec(ctx, `UPDATE orders SET `+column+`=$1 WHERE id=$2 AND `+column+` IS NULL`, stored.ID, a.OrderID); err != nil {
		return domain.Address{}, false, fmt.Errorf("link address: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Address{}, false, err
	}
	return stored, inserted, nil
}

func (r *Repository) MarkFailed(ctx context.Context, sessionID string) (domain.Order, bool, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `UPDATE orders SET status='failed', updated_at=now()
		WHERE session_id=$1 AND status='pending'
		RETURNING `+orderColumns, sessionID))
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, err
	}
	o, err = r.GetBySession(ctx, sessionID)
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, false, nil
}

func (r *Repository) GetBySession(ctx context.Context, sessionID string) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE session_id=$1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, err
}

func scanOrder(row pgx.Row, extra ...any) (domain.Order, error) {
	var o domain.Order
	var source int16
	var status string
	dest := []any{&o.ID, &o.SessionID, &o.CustomerEmail, &o.ProductIDs, &source, &o.TotalCents, &o.Currency, &status,
		&o.BillingAddressID, &o.ShippingAddressID, &o.CreatedAt, &o.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.Order{}, err
	}
	o.ProductSource = domain.ProductSource(source)
	o.Status = domain.OrderStatus(status)
	if o.ProductIDs == nil {
		o.ProductIDs = []string{}
	}
	return o, nil
}
