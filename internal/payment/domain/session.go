// Package domain holds the processor-neutral view of a checkout session: only
// the fields reconciliation depends on, already validated.
package domain

import "errors"

var (
	// ErrInvalidSignature means a webhook could not be authenticated.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrNotConfigured means the webhook secret is missing.
	ErrNotConfigured = errors.New("webhook secret not configured")
	// ErrMalformedEvent means a payload did not have the expected shape.
	ErrMalformedEvent = errors.New("malformed payment payload")
	// ErrUpstream means the processor could not be reached or answered with a
	// server-side failure. Callers may retry.
	ErrUpstream = errors.New("payment processor unavailable")
	// ErrSessionNotFound means the processor does not know the session id.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrNotPaid is returned when reconciliation is asked for a session that
	// has not been paid. It is a normal state, not a failure.
	ErrNotPaid = errors.New("payment not completed")
)

type PaymentStatus string

const (
	PaymentPaid              PaymentStatus = "paid"
	PaymentUnpaid            PaymentStatus = "unpaid"
	PaymentNoPaymentRequired PaymentStatus = "no_payment_required"
)

type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// CheckoutSession is a decoded processor session. ProductIDs come from the
// session metadata and may be empty when the checkout was created without it.
type CheckoutSession struct {
	ID            string
	Status        SessionStatus
	PaymentStatus PaymentStatus
	Email         string
	AmountTotal   int64
	Currency      string
	Billing       *Address
	Shipping      *Address
	ProductIDs    []string
}

// Paid reports whether the processor considers the session settled. Only an
// explicit "paid" counts; anything else fails closed.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == PaymentPaid
}

type EventKind int

const (
	EventIgnored EventKind = iota
	EventSessionCompleted
	EventAsyncPaymentSucceeded
	EventAsyncPaymentFailed
	EventSessionExpired
)

func (k EventKind) String() string {
	switch k {
	case EventSessionCompleted:
		return "session_completed"
	case EventAsyncPaymentSucceeded:
		return "async_payment_succeeded"
	case EventAsyncPaymentFailed:
		return "async_payment_failed"
	case EventSessionExpired:
		return "session_expired"
	default:
		return "ignored"
	}
}

// Event is a verified webhook notification. Session is only populated for
// kinds other than EventIgnored.
type Event struct {
	ID      string
	Type    string
	Kind    EventKind
	Session CheckoutSession
}

// CheckoutLine is one catalog-priced line for a new checkout session.
type CheckoutLine struct {
	ProductID  string
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CheckoutLink struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}
