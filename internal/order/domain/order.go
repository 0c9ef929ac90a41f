package domain

import (
	"slices"
	"strings"
	"time"

	paydomain "github.com/galleria/storefront/internal/payment/domain"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusFailed    OrderStatus = "failed"
)

// rank orders statuses so that merges only ever move forward:
// pending < failed < completed.
func (s OrderStatus) rank() int {
	switch s {
	case StatusCompleted:
		return 2
	case StatusFailed:
		return 1
	default:
		return 0
	}
}

// ProductSource records where an order's product ids came from. A higher
// source replaces a lower one; equal or lower sources never overwrite.
type ProductSource int16

const (
	SourceNone ProductSource = iota
	SourceCart
	SourceMetadata
)

func (s ProductSource) String() string {
	switch s {
	case SourceCart:
		return "cart"
	case SourceMetadata:
		return "metadata"
	default:
		return "none"
	}
}

type Order struct {
	ID                string        `json:"id"`
	SessionID         string        `json:"sessionId"`
	CustomerEmail     string        `json:"customerEmail,omitempty"`
	ProductIDs        []string      `json:"productIds"`
	ProductSource     ProductSource `json:"-"`
	TotalCents        int64         `json:"totalAmount"`
	Currency          string        `json:"currency"`
	Status            OrderStatus   `json:"status"`
	BillingAddressID  *string       `json:"billingAddressId,omitempty"`
	ShippingAddressID *string       `json:"shippingAddressId,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// CartItem is a line from the client's own cart state. It is only a hint: the
// client is not trusted for anything but product ids, and only when the
// processor did not record them.
type CartItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity,omitempty"`
}

// NewOrder builds the candidate row for a session. cartIDs must already be
// filtered to known products.
func NewOrder(id string, s paydomain.CheckoutSession, cartIDs []string, now time.Time) Order {
	o := Order{
		ID:            id,
		SessionID:     s.ID,
		CustomerEmail: s.Email,
		TotalCents:    s.AmountTotal,
		Currency:      s.Currency,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if s.Paid() {
		o.Status = StatusCompleted
	}
	if ids := NormalizeIDs(s.ProductIDs); len(ids) > 0 {
		o.ProductIDs, o.ProductSource = ids, SourceMetadata
	} else if ids := NormalizeIDs(cartIDs); len(ids) > 0 {
		o.ProductIDs, o.ProductSource = ids, SourceCart
	} else {
		o.ProductIDs = []string{}
	}
	return o
}

// Merge folds a later observation of the same session into o. Every field only
// moves from "unknown" to "known" or up its precedence order, which makes the
// result independent of arrival order for observations of one session. The
// Postgres upsert implements the same rules.
func (o Order) Merge(in Order) (Order, bool) {
	out := o
	if out.CustomerEmail == "" && in.CustomerEmail != "" {
		out.CustomerEmail = in.CustomerEmail
	}
	if in.ProductSource > out.ProductSource {
		out.ProductIDs = slices.Clone(in.ProductIDs)
		out.ProductSource = in.ProductSource
	}
	if out.TotalCents == 0 && in.TotalCents != 0 {
		out.TotalCents = in.TotalCents
	}
	if out.Currency == "" && in.Currency != "" {
		out.Currency = in.Currency
	}
	if in.Status.rank() > out.Status.rank() {
		out.Status = in.Status
	}

	changed := out.CustomerEmail != o.CustomerEmail ||
		out.ProductSource != o.ProductSource ||
		out.TotalCents != o.TotalCents ||
		out.Currency != o.Currency ||
		out.Status != o.Status
	if changed {
		out.UpdatedAt = in.UpdatedAt
	}
	return out, changed
}

// Sold reports whether the order's products should be flagged out of stock.
func (o Order) Sold() bool {
	return o.Status == StatusCompleted && len(o.ProductIDs) > 0
}

// NormalizeIDs trims, drops empties, de-duplicates and sorts ids.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
