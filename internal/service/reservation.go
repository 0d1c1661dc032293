package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
)

// ReserveRequest asks for a set of seats on one show.
type ReserveRequest struct {
	ShowID uint64
	UserID string
	Email  string
	Seats  []string
}

// Reservation is the result of a successful Reserve.
type Reservation struct {
	Booking   *model.Booking
	Show      *model.Show
	HoldUntil time.Time
}

// Reservations runs the reservation transaction: re-check availability on a
// fresh snapshot, then write booking, seat holders and expiry job in a
// single compare-and-set against the show's seat_version.
type Reservations struct {
	store  Store
	locker Locker
	grace  time.Duration
	retry  RetryPolicy

	Now   func() time.Time
	NewID func() string
}

// NewReservations builds the reservation service.  grace is the hold window
// counted from booking creation.
func NewReservations(store Store, locker Locker, grace time.Duration, retry RetryPolicy) *Reservations {
	return &Reservations{
		store:  store,
		locker: locker,
		grace:  grace,
		retry:  retry.normalized(),
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

// Reserve holds the requested seats for the user.  It fails with a
// *SeatsUnavailableError when any seat is taken, and with
// ErrTransientStoreFailure when the store keeps failing or losing races.
// No state is written on any error path.
func (r *Reservations) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrMissingUser
	}
	var lastErr error
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, r.retry.delay(attempt-1)); err != nil {
				return nil, err
			}
		}
		res, err := r.tryReserve(ctx, req)
		if err == nil {
			return res, nil
		}
		if isFinal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
		if !isConflict(err) {
			log.Printf("reservation: show %d attempt %d/%d failed: %v", req.ShowID, attempt, r.retry.MaxAttempts, err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrTransientStoreFailure, lastErr)
}

func (r *Reservations) tryReserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	release, err := r.locker.Acquire(ctx, showLockKey(req.ShowID))
	if err != nil {
		return nil, err
	}
	defer release()

	show, grid, err := r.store.LoadSeatMap(ctx, req.ShowID)
	if err != nil {
		return nil, err
	}
	seats, err := grid.Resolve(req.Seats)
	if err != nil {
		return nil, err
	}
	// Stage the hold on the snapshot: every seat or none.  The commit assigns
	// the booking id, so the staged cells carry zero.
	if err := grid.Hold(seats, 0); err != nil {
		if errors.Is(err, seatmap.ErrSeatHeld) {
			return nil, &SeatsUnavailableError{Seats: seatmap.Labels(grid.Unavailable(seats))}
		}
		return nil, err
	}

	// DATETIME(3) keeps milliseconds; truncate so the stored and returned
	// creation times agree.
	now := r.Now().UTC().Truncate(time.Millisecond)
	b := &model.Booking{
		UserID:       req.UserID,
		ContactEmail: req.Email,
		ShowID:       show.ID,
		Seats:        seatmap.Labels(seats),
		AmountCents:  uint64(show.PriceCents) * uint64(len(seats)),
		Status:       model.StatusPending,
		CreatedAt:    now,
	}
	job := &model.HoldJob{ID: r.NewID(), DueAt: b.HoldDeadline(r.grace)}
	err = r.store.CommitHold(ctx, repository.HoldCommit{
		ShowID:          show.ID,
		ExpectedVersion: grid.Version,
		Booking:         b,
		Seats:           seats,
		Job:             job,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("reservation: booking %d holds %s on show %d until %s",
		b.ID, strings.Join(b.Seats, ","), show.ID, job.DueAt.Format(time.RFC3339))
	return &Reservation{Booking: b, Show: show, HoldUntil: job.DueAt}, nil
}
