// Package queue defines message payloads exchanged over the message broker
// and the publisher and consumer that move them.
package queue

const (
	// PaidQueue carries BookingPaidEvent messages.
	PaidQueue = "booking.paid"
	// ReconcileQueue carries PaymentAnomalyEvent messages.
	ReconcileQueue = "booking.reconcile"
	// ShowAddedQueue carries ShowAddedEvent messages.
	ShowAddedQueue = "show.added"
)

// BookingPaidEvent is published once, when a booking moves from pending to
// paid.  It contains enough information to send the confirmation mail
// without querying the primary database.
type BookingPaidEvent struct {
	BookingID   uint64   `json:"booking_id"`
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	ShowID      uint64   `json:"show_id"`
	MovieTitle  string   `json:"movie_title"`
	StartsAt    string   `json:"starts_at"`
	Seats       []string `json:"seats"`
	AmountCents uint64   `json:"amount_cents"`
	Currency    string   `json:"currency"`
	PaidAt      string   `json:"paid_at"`
}

// PaymentAnomalyEvent flags a payment that arrived for a booking that was no
// longer pending (or no longer exists).  Money was collected without valid
// seats, so someone has to reconcile it by hand.
type PaymentAnomalyEvent struct {
	BookingID  uint64 `json:"booking_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	DetectedAt string `json:"detected_at"`
}

// ShowAddedEvent announces a newly scheduled show.
type ShowAddedEvent struct {
	ShowID     uint64 `json:"show_id"`
	MovieID    string `json:"movie_id"`
	Title      string `json:"title"`
	StartsAt   string `json:"starts_at"`
	PriceCents uint32 `json:"price_cents"`
}
