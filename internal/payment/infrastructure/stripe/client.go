package stripe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"

	"github.com/galleria/storefront/internal/payment/domain"
	"github.com/galleria/storefront/pkg/circuitbreaker"
)

type Options struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// Client talks to the processor's checkout session API. Every call is bounded
// by Timeout and goes through a circuit breaker so a struggling upstream turns
// into fast ErrUpstream failures instead of piling up requests.
type Client struct {
	log      *slog.Logger
	sessions *session.Client
	breaker  *circuitbreaker.CircuitBreaker
	opts     Options
}

func NewClient(log *slog.Logger, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Client{
		log:      log,
		sessions: &session.Client{B: stripeapi.GetBackend(stripeapi.APIBackend), Key: opts.SecretKey},
		breaker:  circuitbreaker.New(5, 30*time.Second),
		opts:     opts,
	}
}

// Retrieve fetches the current state of a checkout session.
func (c *Client) Retrieve(ctx context.Context, sessionID string) (domain.CheckoutSession, error) {
	if c.opts.SecretKey == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: secret key not configured", domain.ErrUpstream)
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var raw []byte
	err := c.breaker.Execute(func() error {
		params := &stripeapi.CheckoutSessionParams{}
		params.Context = ctx
		s, err := c.sessions.Get(sessionID, params)
		if err != nil {
			if isNotFound(err) {
				// A bad id from a client is not an upstream fault.
				raw = nil
				return nil
			}
			return err
		}
		if s.LastResponse != nil {
			raw = s.LastResponse.RawJSON
		}
		return nil
	})
	if err != nil {
		return domain.CheckoutSession{}, c.upstream("retrieve session", sessionID, err)
	}
	if raw == nil {
		return domain.CheckoutSession{}, domain.ErrSessionNotFound
	}
	return DecodeSession(raw)
}

// CreateCheckout opens a hosted checkout session for catalog-priced lines and
// stamps the product ids into the session metadata.
func (c *Client) CreateCheckout(ctx context.Context, lines []domain.CheckoutLine) (domain.CheckoutLink, error) {
	if c.opts.SecretKey == "" {
		return domain.CheckoutLink{}, fmt.Errorf("%w: secret key not configured", domain.ErrUpstream)
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	ids := make([]string, 0, len(lines))
	items := make([]*stripeapi.CheckoutSessionLineItemParams, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
		items = append(items, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripeapi.String(c.opts.Currency),
				UnitAmount: stripeapi.Int64(l.UnitAmount),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripeapi.String(l.Name),
					Metadata: map[string]string{"product_id": l.ProductID},
				},
			},
			Quantity: stripeapi.Int64(l.Quantity),
		})
	}

	params := &stripeapi.CheckoutSessionParams{
		Mode:                     stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		LineItems:                items,
		SuccessURL:               stripeapi.String(c.opts.SuccessURL),
		CancelURL:                stripeapi.String(c.opts.CancelURL),
		BillingAddressCollection: stripeapi.String("required"),
	}
	params.Context = ctx
	params.AddMetadata(MetadataProductIDs, strings.Join(ids, ","))

	var link domain.CheckoutLink
	err := c.breaker.Execute(func() error {
		s, err := c.sessions.New(params)
		if err != nil {
			return err
		}
		link = domain.CheckoutLink{SessionID: s.ID, URL: s.URL}
		return nil
	})
	if err != nil {
		return domain.CheckoutLink{}, c.upstream("create session", "", err)
	}
	return link, nil
}

func (c *Client) upstream(op, sessionID string, err error) error {
	c.log.Warn("payment processor call failed", "op", op, "session_id", sessionID, "err", err)
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstream, op, err)
}

func isNotFound(err error) bool {
	var serr *stripeapi.Error
	if errors.As(err, &serr) {
		return serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripeapi.ErrorCodeResourceMissing
	}
	return false
}
