package service

import (
	"errors"
	"strings"

	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
)

var (
	// ErrSeatsUnavailable is matched by *SeatsUnavailableError.
	ErrSeatsUnavailable = errors.New("seats unavailable")

	// ErrInvalidSeats covers malformed, duplicated or out-of-grid labels.
	ErrInvalidSeats = seatmap.ErrInvalidSeats

	ErrShowNotFound    = repository.ErrShowNotFound
	ErrBookingNotFound = repository.ErrBookingNotFound

	// ErrMissingUser is returned when a reservation carries no user id.
	ErrMissingUser = errors.New("user id is required")

	// ErrTransientStoreFailure is surfaced once internal retries are used
	// up.  Callers may retry the whole request later.
	ErrTransientStoreFailure = errors.New("temporary store failure, please retry")

	// ErrLateOrOrphanedPayment marks money collected for a booking that is
	// no longer pending.  It needs manual reconciliation.
	ErrLateOrOrphanedPayment = errors.New("payment received for a booking that is no longer pending")

	// ErrPaymentGateway wraps failures of the external payment provider.
	ErrPaymentGateway = errors.New("payment gateway error")
)

// SeatsUnavailableError lists the requested seats that are already held.
type SeatsUnavailableError struct {
	Seats []string
}

func (e *SeatsUnavailableError) Error() string {
	return "seats unavailable: " + strings.Join(e.Seats, ", ")
}

func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrSeatsUnavailable }

// isConflict reports a lost race on the per-show serialization.
func isConflict(err error) bool {
	return errors.Is(err, repository.ErrVersionConflict) ||
		errors.Is(err, repository.ErrSeatTaken) ||
		errors.Is(err, repository.ErrStatusChanged)
}

// isFinal reports errors that retrying cannot fix.
func isFinal(err error) bool {
	return errors.Is(err, ErrSeatsUnavailable) ||
		errors.Is(err, ErrInvalidSeats) ||
		errors.Is(err, ErrShowNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrMissingUser)
}
