package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// Outcome says what a fired hold did.
type Outcome string

const (
	OutcomeBookingMissing   Outcome = "booking_missing"
	OutcomeHonored          Outcome = "honored"
	OutcomeAlreadyCancelled Outcome = "already_cancelled"
	OutcomeReleased         Outcome = "released"
)

// Expiry is the action run when a booking's hold deadline passes.  Firing is
// idempotent: every branch re-reads the booking status, and the release
// only deletes seats still attributed to the booking.
type Expiry struct {
	store  Store
	locker Locker
	retry  RetryPolicy

	// Sessions, when set, closes the checkout session of a released
	// booking.  Failures are logged; the session then lapses on its own.
	Sessions SessionExpirer
}

// NewExpiry builds the expiry action.
func NewExpiry(store Store, locker Locker, retry RetryPolicy) *Expiry {
	return &Expiry{store: store, locker: locker, retry: retry.normalized()}
}

// Fire settles the hold of bookingID.  A returned error means the action
// must run again later; the booking was not changed in that case.
func (e *Expiry) Fire(ctx context.Context, bookingID uint64) (Outcome, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, e.retry.delay(attempt-1)); err != nil {
				return "", err
			}
		}
		out, err := e.fireOnce(ctx, bookingID)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("expire booking %d: %w", bookingID, lastErr)
}

func (e *Expiry) fireOnce(ctx context.Context, bookingID uint64) (Outcome, error) {
	b, err := e.store.GetBooking(ctx, bookingID)
	if errors.Is(err, ErrBookingNotFound) {
		return OutcomeBookingMissing, nil
	}
	if err != nil {
		return "", err
	}
	if b.Status.Terminal() {
		if b.Status == model.StatusPaid {
			return OutcomeHonored, nil
		}
		return OutcomeAlreadyCancelled, nil
	}

	release, err := e.locker.Acquire(ctx, showLockKey(b.ShowID))
	if err != nil {
		return "", err
	}
	defer release()

	// A missing show here is retried: the booking would otherwise keep its
	// seats forever.
	_, grid, err := e.store.LoadSeatMap(ctx, b.ShowID)
	if err != nil {
		return "", err
	}
	held := grid.Release(b.ID)
	err = e.store.CommitRelease(ctx, repository.ReleaseCommit{
		ShowID:          b.ShowID,
		ExpectedVersion: grid.Version,
		BookingID:       b.ID,
	})
	if errors.Is(err, ErrBookingNotFound) {
		return OutcomeBookingMissing, nil
	}
	if err != nil {
		// ErrStatusChanged lands here too; the next attempt re-reads the
		// booking and takes the paid or cancelled branch.
		return "", err
	}
	log.Printf("expiry: booking %d cancelled, released %d seat(s) on show %d", b.ID, len(held), b.ShowID)
	e.closeCheckout(ctx, b)
	return OutcomeReleased, nil
}

// closeCheckout uses the payment reference read before the release, which
// cleared it on the booking row.
func (e *Expiry) closeCheckout(ctx context.Context, b *model.Booking) {
	if e.Sessions == nil || b.PaymentRef == nil || *b.PaymentRef == "" {
		return
	}
	if err := e.Sessions.ExpireCheckout(ctx, *b.PaymentRef); err != nil {
		log.Printf("expiry: booking %d: close checkout %s: %v", b.ID, *b.PaymentRef, err)
	}
}
