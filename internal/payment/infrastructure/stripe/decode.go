package stripe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/galleria/storefront/internal/payment/domain"
)

// MetadataProductIDs is the session metadata key carrying a comma separated
// list of catalog product ids. It is set when the storefront creates the
// session.
const MetadataProductIDs = "product_ids"

const (
	eventSessionCompleted      = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	eventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	eventSessionExpired        = "checkout.session.expired"
)

type wireAddress struct {
	Line1      *string `json:"line1"`
	Line2      *string `json:"line2"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	PostalCode *string `json:"postal_code"`
	Country    *string `json:"country"`
}

type wireShipping struct {
	Address *wireAddress `json:"address"`
}

type wireSession struct {
	ID            string  `json:"id"`
	Object        string  `json:"object"`
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	AmountTotal   *int64  `json:"amount_total"`
	Currency      *string `json:"currency"`
	CustomerEmail *string `json:"customer_email"`

	CustomerDetails *struct {
		Email   *string      `json:"email"`
		Address *wireAddress `json:"address"`
	} `json:"customer_details"`

	// Older API versions put the shipping address here; newer ones under
	// collected_information.
	ShippingDetails      *wireShipping `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *wireShipping `json:"shipping_details"`
	} `json:"collected_information"`

	Metadata map[string]string `json:"metadata"`
}

// DecodeSession validates a checkout session object and keeps only the fields
// reconciliation needs. Unknown payment states decode as unpaid.
func DecodeSession(raw []byte) (domain.CheckoutSession, error) {
	var w wireSession
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if w.Object != "" && w.Object != "checkout.session" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: unexpected object %q", domain.ErrMalformedEvent, w.Object)
	}
	if !strings.HasPrefix(w.ID, "cs_") {
		return domain.CheckoutSession{}, fmt.Errorf("%w: bad session id %q", domain.ErrMalformedEvent, w.ID)
	}

	s := domain.CheckoutSession{
		ID:            w.ID,
		Status:        domain.SessionStatus(deref(w.Status)),
		PaymentStatus: domain.PaymentUnpaid,
		Currency:      strings.ToLower(deref(w.Currency)),
	}
	switch ps := domain.PaymentStatus(deref(w.PaymentStatus)); ps {
	case domain.PaymentPaid, domain.PaymentNoPaymentRequired:
		s.PaymentStatus = ps
	}
	if w.AmountTotal != nil && *w.AmountTotal > 0 {
		s.AmountTotal = *w.AmountTotal
	}

	if w.CustomerDetails != nil {
		s.Email = strings.TrimSpace(deref(w.CustomerDetails.Email))
		s.Billing = toAddress(w.CustomerDetails.Address)
	}
	if s.Email == "" {
		s.Email = strings.TrimSpace(deref(w.CustomerEmail))
	}

	if w.CollectedInformation != nil && w.CollectedInformation.ShippingDetails != nil {
		s.Shipping = toAddress(w.CollectedInformation.ShippingDetails.Address)
	}
	if s.Shipping == nil && w.ShippingDetails != nil {
		s.Shipping = toAddress(w.ShippingDetails.Address)
	}

	if v := w.Metadata[MetadataProductIDs]; v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				s.ProductIDs = append(s.ProductIDs, id)
			}
		}
	}
	return s, nil
}

// DecodeEvent maps an already verified event envelope to a domain event. Event
// types the service does not act on decode as EventIgnored without looking at
// the payload.
func DecodeEvent(id, typ string, object []byte) (domain.Event, error) {
	ev := domain.Event{ID: id, Type: typ}
	switch typ {
	case eventSessionCompleted:
		ev.Kind = domain.EventSessionCompleted
	case eventAsyncPaymentSucceeded:
		ev.Kind = domain.EventAsyncPaymentSucceeded
	case eventAsyncPaymentFailed:
		ev.Kind = domain.EventAsyncPaymentFailed
	case eventSessionExpired:
		ev.Kind = domain.EventSessionExpired
	default:
		return ev, nil
	}
	if id == "" {
		return domain.Event{}, fmt.Errorf("%w: event without id", domain.ErrMalformedEvent)
	}

	s, err := DecodeSession(object)
	if err != nil {
		return domain.Event{}, err
	}
	ev.Session = s
	return ev, nil
}

func toAddress(w *wireAddress) *domain.Address {
	if w == nil {
		return nil
	}
	a := domain.Address{
		Line1:      deref(w.Line1),
		Line2:      deref(w.Line2),
		City:       deref(w.City),
		Region:     deref(w.State),
		PostalCode: deref(w.PostalCode),
		Country:    deref(w.Country),
	}
	if a.IsZero() {
		return nil
	}
	return &a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
