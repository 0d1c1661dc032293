package model

import "time"

// Show represents a scheduled screening of a movie.  The seat grid of a
// show is fixed at creation time (SeatRows × SeatCols) and every seat is
// sold at the same PriceCents.
//
// Fields:
//
//	ID          – primary key identifier.
//	MovieID     – reference to the movie in the external catalog.
//	Title       – movie title, copied for notifications and receipts.
//	StartsAt    – when the show begins (UTC).
//	PriceCents  – price per seat in minor currency units.
//	SeatRows    – number of seat rows in the grid.
//	SeatCols    – number of seats per row.
//	SeatVersion – optimistic-concurrency counter bumped by every change
//	              to the show's seat occupancy.
//	CreatedAt   – creation timestamp.
//	UpdatedAt   – last update timestamp.
type Show struct {
	ID          uint64    `json:"id"`          // shows.id
	MovieID     string    `json:"movie_id"`    // shows.movie_id
	Title       string    `json:"title"`       // shows.title
	StartsAt    time.Time `json:"starts_at"`   // shows.starts_at
	PriceCents  uint32    `json:"price_cents"` // shows.price_cents
	SeatRows    uint32    `json:"seat_rows"`   // shows.seat_rows
	SeatCols    uint32    `json:"seat_cols"`   // shows.seat_cols
	SeatVersion uint64    `json:"-"`           // shows.seat_version
	CreatedAt   time.Time `json:"created_at"`  // shows.created_at
	UpdatedAt   time.Time `json:"updated_at"`  // shows.updated_at
}
