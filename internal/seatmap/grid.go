package seatmap

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidSeats is returned when a request names a seat outside the
	// grid, names the same seat twice, or names no seat at all.
	ErrInvalidSeats = errors.New("invalid seat selection")

	// ErrSeatHeld is returned by Hold when a target cell is not empty.
	ErrSeatHeld = errors.New("seat already held")
)

// CellState tags a grid cell.
type CellState uint8

const (
	Empty CellState = iota
	Held
)

// Cell is the tagged variant {Empty, Held(BookingID)}.  BookingID is only
// meaningful when State is Held.
type Cell struct {
	State     CellState
	BookingID uint64
}

// Grid is an in-memory snapshot of a show's occupancy taken at Version.
// It is not safe for concurrent use; the store hands out a fresh Grid per
// read.
type Grid struct {
	rows, cols int
	cells      []Cell
	Version    uint64
}

// NewGrid returns an all-empty rows × cols grid.
func NewGrid(rows, cols int, version uint64) *Grid {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Grid{rows: rows, cols: cols, cells: make([]Cell, rows*cols), Version: version}
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

// Contains reports whether s lies inside the grid.
func (g *Grid) Contains(s Seat) bool {
	return s.Row >= 0 && s.Row < g.rows && s.Col >= 0 && s.Col < g.cols
}

// At returns the cell at s.  Seats outside the grid read as Empty.
func (g *Grid) At(s Seat) Cell {
	if !g.Contains(s) {
		return Cell{}
	}
	return g.cells[s.Row*g.cols+s.Col]
}

// Place marks s as held by bookingID without checking the current state.
// Stores use it to rebuild a grid from persisted rows.
func (g *Grid) Place(s Seat, bookingID uint64) error {
	if !g.Contains(s) {
		return fmt.Errorf("%w: %s outside %dx%d grid", ErrInvalidSeats, s.Label(), g.rows, g.cols)
	}
	g.cells[s.Row*g.cols+s.Col] = Cell{State: Held, BookingID: bookingID}
	return nil
}

// Resolve parses labels and checks that each one is inside the grid and
// appears only once.  The returned seats keep the request order.
func (g *Grid) Resolve(labels []string) ([]Seat, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", ErrInvalidSeats)
	}
	seen := make(map[Seat]struct{}, len(labels))
	seats := make([]Seat, 0, len(labels))
	for _, l := range labels {
		s, err := ParseLabel(l)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSeats, err)
		}
		if !g.Contains(s) {
			return nil, fmt.Errorf("%w: %s outside %dx%d grid", ErrInvalidSeats, s.Label(), g.rows, g.cols)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("%w: %s requested twice", ErrInvalidSeats, s.Label())
		}
		seen[s] = struct{}{}
		seats = append(seats, s)
	}
	return seats, nil
}

// Unavailable returns the subset of seats whose cells are not empty.
func (g *Grid) Unavailable(seats []Seat) []Seat {
	var out []Seat
	for _, s := range seats {
		if g.At(s).State != Empty {
			out = append(out, s)
		}
	}
	return out
}

// Hold marks every seat as held by bookingID.  Either all cells change or
// none do.
func (g *Grid) Hold(seats []Seat, bookingID uint64) error {
	for _, s := range seats {
		if !g.Contains(s) {
			return fmt.Errorf("%w: %s", ErrInvalidSeats, s.Label())
		}
		if g.At(s).State != Empty {
			return fmt.Errorf("%w: %s", ErrSeatHeld, s.Label())
		}
	}
	for _, s := range seats {
		g.cells[s.Row*g.cols+s.Col] = Cell{State: Held, BookingID: bookingID}
	}
	return nil
}

// Release empties every cell held by bookingID and returns those seats.
// Cells held by other bookings are left alone, so releasing twice is a no-op.
func (g *Grid) Release(bookingID uint64) []Seat {
	out := g.HeldBy(bookingID)
	for _, s := range out {
		g.cells[s.Row*g.cols+s.Col] = Cell{}
	}
	return out
}

// HeldBy returns the seats currently attributed to bookingID in row-major order.
func (g *Grid) HeldBy(bookingID uint64) []Seat {
	var out []Seat
	for i, c := range g.cells {
		if c.State == Held && c.BookingID == bookingID {
			out = append(out, Seat{Row: i / g.cols, Col: i % g.cols})
		}
	}
	return out
}

// Occupied lists every held seat in row-major order.
func (g *Grid) Occupied() []Seat {
	var out []Seat
	for i, c := range g.cells {
		if c.State == Held {
			out = append(out, Seat{Row: i / g.cols, Col: i % g.cols})
		}
	}
	return out
}

// SortSeats orders seats row-major in place.
func SortSeats(seats []Seat) {
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].Row != seats[j].Row {
			return seats[i].Row < seats[j].Row
		}
		return seats[i].Col < seats[j].Col
	})
}
