package domain

import "errors"

var ErrNotFound = errors.New("order not found")

const (
	EventOrderReconciled = "OrderReconciled"
	EventReconcileRetry  = "ReconcileRetry"
)

// OrderReconciled is published once, when the order row is first created.
type OrderReconciled struct {
	OrderID    string   `json:"orderId"`
	SessionID  string   `json:"sessionId"`
	Status     string   `json:"status"`
	ProductIDs []string `json:"productIds"`
	Source     string   `json:"source"`
}

// ReconcileRetry asks the worker to settle a session again after part of the
// work could not finish on the request path.
type ReconcileRetry struct {
	SessionID  string   `json:"sessionId"`
	CartIDs    []string `json:"cartIds,omitempty"`
	Attempt    int      `json:"attempt"`
	Reason     string   `json:"reason"`
	EnqueuedBy string   `json:"enqueuedBy"`
}

// ReconcileState is logged as a session moves through an entry point:
// pending_verification -> reconciled | rejected.
type ReconcileState string

const (
	StatePendingVerification ReconcileState = "pending_verification"
	StateReconciled          ReconcileState = "reconciled"
	StateRejected            ReconcileState = "rejected"
)
