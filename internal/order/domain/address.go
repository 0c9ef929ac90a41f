package domain

import (
	"time"

	paydomain "github.com/galleria/storefront/internal/payment/domain"
)

type AddressKind string

const (
	AddressBilling  AddressKind = "billing"
	AddressShipping AddressKind = "shipping"
)

// Address is attached to an order at most once per kind.
type Address struct {
	ID         string      `json:"id"`
	OrderID    string      `json:"orderId"`
	Kind       AddressKind `json:"type"`
	Line1      string      `json:"line1"`
	Line2      string      `json:"line2,omitempty"`
	City       string      `json:"city"`
	Region     string      `json:"region,omitempty"`
	PostalCode string      `json:"postalCode"`
	Country    string      `json:"country"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func NewAddress(id, orderID string, kind AddressKind, a paydomain.Address, now time.Time) Address {
	return Address{
		ID:         id,
		OrderID:    orderID,
		Kind:       kind,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		CreatedAt:  now,
	}
}
