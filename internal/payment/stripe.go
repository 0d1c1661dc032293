package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// minCheckoutLifetime is the shortest expires_at Stripe accepts, plus a
// margin for clock skew between us and the gateway.
const minCheckoutLifetime = 31 * time.Minute

// Stripe implements checkout creation and webhook verification on Stripe.
type Stripe struct {
	api           *client.API
	webhookSecret string

	Now func() time.Time
}

// NewStripe returns a Stripe gateway.  backends may be nil to talk to the
// real Stripe API.
func NewStripe(secretKey, webhookSecret string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{api: api, webhookSecret: webhookSecret, Now: time.Now}
}

// CreateCheckout opens a one-line-item checkout session.  The booking id is
// attached to both the session and its payment intent so either webhook
// event can be traced back to the booking.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error) {
	bookingID := strconv.FormatUint(req.BookingID, 10)
	expires := req.ExpiresAt
	if earliest := s.Now().Add(minCheckoutLifetime); expires.Before(earliest) {
		expires = earliest
	}

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.ProductName),
	}
	if req.Description != "" {
		product.Description = stripe.String(req.Description)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(bookingID),
		ExpiresAt:         stripe.Int64(expires.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(req.AmountMinor),
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{MetadataBookingID: bookingID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata(MetadataBookingID, bookingID)
	params.Context = ctx

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return &Session{ID: cs.ID, URL: cs.URL, ExpiresAt: time.Unix(cs.ExpiresAt, 0).UTC()}, nil
}

// ExpireCheckout closes an open checkout session.  Stripe refuses sessions
// that already completed; the resulting payment then arrives as a late
// notification.
func (s *Stripe) ExpireCheckout(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := s.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("stripe: expire checkout session %s: %w", sessionID, err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header against the raw body
// and extracts the booking id of payment events.  Without a signing secret
// every delivery is rejected.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Notification, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("%w: no webhook signing secret configured", ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	n := &Notification{EventID: ev.ID, Type: string(ev.Type), Kind: KindIgnored}
	if ev.Data == nil {
		return n, nil
	}

	var metadata map[string]string
	switch ev.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return n, nil
		}
		n.SessionID = cs.ID
		metadata = cs.Metadata
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		metadata = pi.Metadata
	default:
		return n, nil
	}

	raw, ok := metadata[MetadataBookingID]
	if !ok {
		// Payments not created by this service carry no booking id.
		return n, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: booking_id %q", ErrMalformedEvent, raw)
	}
	n.BookingID = id
	n.Kind = KindPaymentSucceeded
	return n, nil
}
