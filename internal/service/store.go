// Package service implements the seat-hold lifecycle: availability checks,
// the reservation transaction, hold expiry and payment confirmation.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/payment"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
)

// SeatMapReader loads a consistent snapshot of a show's occupancy.
type SeatMapReader interface {
	LoadSeatMap(ctx context.Context, showID uint64) (*model.Show, *seatmap.Grid, error)
}

// Store is the persistence boundary of the booking core.
// *repository.Store implements it on MySQL.
type Store interface {
	SeatMapReader
	CommitHold(ctx context.Context, c repository.HoldCommit) error
	CommitRelease(ctx context.Context, c repository.ReleaseCommit) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	GetShow(ctx context.Context, id uint64) (*model.Show, error)
	ConfirmPayment(ctx context.Context, bookingID uint64) (model.PaymentStatus, error)
	FlagReconcileOnce(ctx context.Context, bookingID uint64) (bool, error)
	SetPaymentSession(ctx context.Context, bookingID uint64, ref, url string) error
}

// Locker serializes occupancy writers of one show.  Acquire blocks until the
// lock is held or fails; the returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Gateway creates hosted payment sessions.
type Gateway interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error)
}

// SessionExpirer closes an open checkout session so it can no longer be
// paid.
type SessionExpirer interface {
	ExpireCheckout(ctx context.Context, sessionID string) error
}

// EventPublisher announces booking lifecycle events to downstream consumers.
type EventPublisher interface {
	PublishBookingPaid(ctx context.Context, ev queue.BookingPaidEvent) error
	PublishPaymentAnomaly(ctx context.Context, ev queue.PaymentAnomalyEvent) error
}

func showLockKey(showID uint64) string {
	return "show:" + strconv.FormatUint(showID, 10) + ":seats"
}

// RetryPolicy bounds the internal retry loops.  Delay doubles from
// BaseDelay up to MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used when a zero policy is supplied.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: 20 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// delay returns the wait before retry number n (1-based).
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
