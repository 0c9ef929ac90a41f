package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

var ErrInvalidProductID = errors.New("invalid product id")

const MaxProductIDLen = 128

// Stock is the sold/available flag for one product. A product with no row is
// in stock.
type Stock struct {
	ProductID string    `json:"productId"`
	InStock   bool      `json:"inStock"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type Skip struct {
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
}

// Batch is a normalized set of product ids. Invalid entries are reported in
// Skipped and never block the valid ones.
type Batch struct {
	IDs     []string
	Skipped []Skip
}

func NewBatch(ids []string) Batch {
	b := Batch{IDs: make([]string, 0, len(ids))}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if err := Validate(id); err != nil {
			b.Skipped = append(b.Skipped, Skip{ProductID: raw, Reason: err.Error()})
			continue
		}
		b.IDs = append(b.IDs, id)
	}
	slices.Sort(b.IDs)
	b.IDs = slices.Compact(b.IDs)
	return b
}

func Validate(id string) error {
	switch {
	case id == "":
		return errors.New("empty product id")
	case len(id) > MaxProductIDLen:
		return errors.New("product id too long")
	case strings.ContainsAny(id, ",\x00"):
		return errors.New("product id contains reserved characters")
	}
	return nil
}
