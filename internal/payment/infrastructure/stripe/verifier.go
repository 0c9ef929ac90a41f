package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/galleria/storefront/internal/payment/domain"
)

// Verifier authenticates webhook deliveries with the endpoint secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data *struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Parse checks the Stripe-Signature header against payload before decoding
// anything from it.
func (v *Verifier) Parse(payload []byte, signature string) (domain.Event, error) {
	if v.secret == "" {
		return domain.Event{}, domain.ErrNotConfigured
	}
	if signature == "" {
		return domain.Event{}, fmt.Errorf("%w: missing header", domain.ErrInvalidSignature)
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, signature, v.secret, v.tolerance); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	var object []byte
	if env.Data != nil {
		object = env.Data.Object
	}
	return DecodeEvent(env.ID, env.Type, object)
}
