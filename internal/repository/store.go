package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
)

// HoldCommit is everything the reservation path writes in one transaction:
// the version check on the show, the booking row, the seat holder rows and
// the armed expiry job.
type HoldCommit struct {
	ShowID          uint64
	ExpectedVersion uint64
	Booking         *model.Booking
	Seats           []seatmap.Seat
	Job             *model.HoldJob
}

// ReleaseCommit describes the expiry path's write: cancel a still-pending
// booking and drop the seats attributed to it.
type ReleaseCommit struct {
	ShowID          uint64
	ExpectedVersion uint64
	BookingID       uint64
}

// Store composes the show, seat, booking and hold-job repositories and owns
// the transactions that must touch several of them atomically.
type Store struct {
	db       *sql.DB
	Shows    *ShowRepo
	Seats    *ShowSeatRepo
	Bookings *BookingRepo
	Jobs     *HoldJobRepo
}

// NewStore wires every repository to the same database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		Shows:    NewShowRepo(db),
		Seats:    NewShowSeatRepo(db),
		Bookings: NewBookingRepo(db),
		Jobs:     NewHoldJobRepo(db),
	}
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func (s *Store) withTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// LoadSeatMap reads a show and its occupancy from one consistent snapshot.
// The returned grid carries the show's seat_version.
func (s *Store) LoadSeatMap(ctx context.Context, showID uint64) (*model.Show, *seatmap.Grid, error) {
	var (
		show *model.Show
		grid *seatmap.Grid
	)
	err := s.withTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}, func(tx *sql.Tx) error {
		var err error
		show, err = s.Shows.GetByIDTx(ctx, tx, showID)
		if err != nil {
			return err
		}
		holders, err := s.Seats.ListByShowTx(ctx, tx, showID)
		if err != nil {
			return err
		}
		grid = seatmap.NewGrid(int(show.SeatRows), int(show.SeatCols), show.SeatVersion)
		for _, h := range holders {
			if err := grid.Place(h.Seat, h.BookingID); err != nil {
				return fmt.Errorf("show %d: %w", showID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return show, grid, nil
}

// CommitHold applies a reservation atomically.  ErrVersionConflict or
// ErrSeatTaken mean another writer changed the show first; nothing was
// written and the caller should re-read.
func (s *Store) CommitHold(ctx context.Context, c HoldCommit) error {
	if c.Booking == nil || c.Job == nil {
		return errors.New("hold commit: booking and job are required")
	}
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.Shows.BumpVersionTx(ctx, tx, c.ShowID, c.ExpectedVersion); err != nil {
			return err
		}
		if err := s.Bookings.CreateTx(ctx, tx, c.Booking); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if err := s.Seats.HoldTx(ctx, tx, c.ShowID, c.Seats, c.Booking.ID); err != nil {
			return err
		}
		c.Job.BookingID = c.Booking.ID
		if err := s.Jobs.ArmTx(ctx, tx, c.Job); err != nil {
			return fmt.Errorf("arm hold job: %w", err)
		}
		return nil
	})
}

// GetBooking returns a booking by id.
func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

// GetShow returns a show by id.
func (s *Store) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	return s.Shows.GetByID(ctx, id)
}

// CreateShow inserts a new show.
func (s *Store) CreateShow(ctx context.Context, show *model.Show) error {
	return s.Shows.Create(ctx, show)
}

// SearchShows lists shows for the catalogue endpoint.
func (s *Store) SearchShows(ctx context.Context, q ShowSearchQuery) ([]model.Show, int64, error) {
	return s.Shows.Search(ctx, q, time.Now())
}

// ListBookingsByUser returns the user's bookings, newest first.
func (s *Store) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return s.Bookings.ListByUser(ctx, userID)
}

// SetPaymentSession stores the checkout session of a pending booking.
func (s *Store) SetPaymentSession(ctx context.Context, bookingID uint64, ref, url string) error {
	return s.Bookings.SetPaymentSession(ctx, bookingID, ref, url)
}

// CommitRelease cancels a pending booking and frees its seats in one
// transaction.  ErrStatusChanged means the booking left pending in the
// meantime (usually paid) and nothing was written.
func (s *Store) CommitRelease(ctx context.Context, c ReleaseCommit) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if err := s.Bookings.TransitionStatusTx(ctx, tx, c.BookingID, model.StatusPending, model.StatusCancelled, true); err != nil {
			return err
		}
		if err := s.Shows.BumpVersionTx(ctx, tx, c.ShowID, c.ExpectedVersion); err != nil {
			return err
		}
		if _, err := s.Seats.ReleaseByBookingTx(ctx, tx, c.ShowID, c.BookingID); err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
		return nil
	})
}

// ConfirmPayment marks a pending booking paid, clears its payment session
// and disarms its expiry job.  It returns the status the booking had before
// the call, so pending means this call made the transition.  Bookings that
// are already paid or cancelled are left untouched.
func (s *Store) ConfirmPayment(ctx context.Context, bookingID uint64) (model.PaymentStatus, error) {
	var prev model.PaymentStatus
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		b, err := s.Bookings.GetByIDForUpdateTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		prev = b.Status
		if b.Status != model.StatusPending {
			return nil
		}
		if err := s.Bookings.TransitionStatusTx(ctx, tx, bookingID, model.StatusPending, model.StatusPaid, true); err != nil {
			return err
		}
		return s.Jobs.CompleteForBookingTx(ctx, tx, bookingID)
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

// FlagReconcileOnce marks a late payment on a settled booking; see
// BookingRepo.FlagReconcileOnce.
func (s *Store) FlagReconcileOnce(ctx context.Context, bookingID uint64) (bool, error) {
	return s.Bookings.FlagReconcileOnce(ctx, bookingID)
}

// ClaimDue, Complete and Retry expose the hold-job queue to the expiry worker.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.HoldJob, error) {
	return s.Jobs.ClaimDue(ctx, now, lease, limit)
}

func (s *Store) Complete(ctx context.Context, id string) error { return s.Jobs.Complete(ctx, id) }

func (s *Store) Retry(ctx context.Context, id string, next time.Time, reason string) error {
	return s.Jobs.Retry(ctx, id, next, reason)
}

// Ping checks database connectivity for health probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
