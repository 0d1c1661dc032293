// Package payment is the boundary to the external payment gateway: it opens
// hosted checkout sessions and turns signed webhook deliveries into
// notifications the booking core understands.
package payment

import (
	"errors"
	"time"
)

var (
	// ErrInvalidSignature is returned when a webhook body does not carry a
	// valid, recent signature.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	// ErrMalformedEvent is returned when a signed event cannot be decoded
	// or lacks a usable booking id.
	ErrMalformedEvent = errors.New("payment: malformed webhook event")
)

// CheckoutRequest describes one hosted payment for a booking.
type CheckoutRequest struct {
	BookingID     uint64
	AmountMinor   int64
	Currency      string
	ProductName   string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	ExpiresAt     time.Time
}

// Session is an open checkout the customer is redirected to.
type Session struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Kind classifies a webhook delivery.
type Kind string

const (
	// KindPaymentSucceeded means the booking in the notification is paid.
	KindPaymentSucceeded Kind = "payment_succeeded"
	// KindIgnored covers event types the booking core does not act on.
	KindIgnored Kind = "ignored"
)

// Notification is a verified webhook delivery.  Deliveries are at least
// once, so the same booking may be reported several times.
type Notification struct {
	EventID   string
	Type      string
	Kind      Kind
	BookingID uint64
	SessionID string
}

// MetadataBookingID is the metadata key carrying the booking id on every
// gateway object created for a booking.
const MetadataBookingID = "booking_id"
