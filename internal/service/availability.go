package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
)

// Availability is the answer of CheckAvailability.  Unavailable lists the
// requested seats that are currently held; it is empty when the show is
// missing.
type Availability struct {
	Available   bool     `json:"available"`
	ShowFound   bool     `json:"show_found"`
	Unavailable []string `json:"unavailable"`
}

// CheckAvailability reports whether none of the labelled seats is held on
// the show.  It never writes.  A missing show is reported as unavailable,
// not as an error; malformed labels return ErrInvalidSeats.
func CheckAvailability(ctx context.Context, store SeatMapReader, showID uint64, labels []string) (Availability, error) {
	_, grid, err := store.LoadSeatMap(ctx, showID)
	if errors.Is(err, ErrShowNotFound) {
		return Availability{Unavailable: []string{}}, nil
	}
	if err != nil {
		return Availability{}, fmt.Errorf("%w: %v", ErrTransientStoreFailure, err)
	}
	seats, err := grid.Resolve(labels)
	if err != nil {
		return Availability{}, err
	}
	taken := seatmap.Labels(grid.Unavailable(seats))
	return Availability{Available: len(taken) == 0, ShowFound: true, Unavailable: taken}, nil
}
