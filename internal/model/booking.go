package model

import "time"

// PaymentStatus is the three-valued lifecycle of a booking.  A booking is
// created pending and moves exactly once to either paid or cancelled.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusPaid      PaymentStatus = "paid"
	StatusCancelled PaymentStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Booking records one reservation attempt for a show.  AmountCents is fixed
// when the booking is created and is never recomputed.
//
// Fields:
//
//	ID           – primary key identifier.
//	UserID       – subject of the identity token that created the booking.
//	ContactEmail – address used for the confirmation mail (may be empty).
//	ShowID       – show being booked.
//	Seats        – ordered seat labels, no duplicates.
//	AmountCents  – price per seat × number of seats at creation time.
//	Status       – pending, paid or cancelled.
//	PaymentRef   – external payment session id while a checkout is open.
//	PaymentURL   – redirect URL of that checkout session.
//	CreatedAt    – creation timestamp; the hold deadline counts from here.
//	UpdatedAt    – last update timestamp.
type Booking struct {
	ID           uint64        `json:"id"`
	UserID       string        `json:"user_id"`
	ContactEmail string        `json:"-"`
	ShowID       uint64        `json:"show_id"`
	Seats        []string      `json:"seats"`
	AmountCents  uint64        `json:"amount_cents"`
	Status       PaymentStatus `json:"status"`
	PaymentRef   *string       `json:"-"`
	PaymentURL   *string       `json:"payment_url,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// HoldDeadline returns the instant after which an unpaid booking is released.
func (b *Booking) HoldDeadline(grace time.Duration) time.Time {
	return b.CreatedAt.Add(grace)
}
