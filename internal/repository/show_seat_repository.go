package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
)

// ShowSeatRepo provides access to the show_seats table.  A row in
// show_seats means the cell (row_idx, col_idx) of the show is held by
// booking_id; an empty cell has no row.  The primary key on
// (show_id, row_idx, col_idx) guarantees that a cell has one holder.
type ShowSeatRepo struct {
	db *sql.DB
}

// NewShowSeatRepo returns a new ShowSeatRepo bound to the provided database.
func NewShowSeatRepo(db *sql.DB) *ShowSeatRepo { return &ShowSeatRepo{db: db} }

// HolderRecord mirrors one show_seats row.
type HolderRecord struct {
	Seat      seatmap.Seat
	BookingID uint64
}

// ListByShowTx returns every held cell of the show.
func (r *ShowSeatRepo) ListByShowTx(ctx context.Context, tx *sql.Tx, showID uint64) ([]HolderRecord, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT row_idx, col_idx, booking_id FROM show_seats WHERE show_id = ? ORDER BY row_idx, col_idx`,
		showID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HolderRecord
	for rows.Next() {
		var h HolderRecord
		if err := rows.Scan(&h.Seat.Row, &h.Seat.Col, &h.BookingID); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// HoldTx inserts one show_seats row per seat, all attributed to bookingID,
// in a single statement.  A duplicate key means another booking got there
// first and is reported as ErrSeatTaken.  Passing no seats is a no-op.
func (r *ShowSeatRepo) HoldTx(ctx context.Context, tx *sql.Tx, showID uint64, seats []seatmap.Seat, bookingID uint64) error {
	if len(seats) == 0 {
		return nil
	}
	ordered := append([]seatmap.Seat(nil), seats...)
	seatmap.SortSeats(ordered)

	var b strings.Builder
	b.WriteString(`INSERT INTO show_seats (show_id, row_idx, col_idx, booking_id) VALUES `)
	args := make([]any, 0, len(ordered)*4)
	for i, s := range ordered {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, showID, s.Row, s.Col, bookingID)
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		if isDuplicateKey(err) {
			return ErrSeatTaken
		}
		return err
	}
	return nil
}

// ReleaseByBookingTx deletes the cells of the show still attributed to
// bookingID and returns how many were removed.  Cells re-issued to another
// booking are never touched.
func (r *ShowSeatRepo) ReleaseByBookingTx(ctx context.Context, tx *sql.Tx, showID, bookingID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM show_seats WHERE show_id = ? AND booking_id = ?`, showID, bookingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
