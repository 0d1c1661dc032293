package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  The ordered seat labels of
// a booking are stored as a JSON array so the order chosen by the customer
// survives a round trip.  All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, contact_email, show_id, seats, amount_cents, status, payment_ref, payment_url, created_at, updated_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b          model.Booking
		seats      []byte
		status     string
		paymentRef sql.NullString
		paymentURL sql.NullString
	)
	err := row.Scan(&b.ID, &b.UserID, &b.ContactEmail, &b.ShowID, &seats, &b.AmountCents,
		&status, &paymentRef, &paymentURL, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(seats, &b.Seats); err != nil {
		return nil, fmt.Errorf("booking %d: decode seats: %w", b.ID, err)
	}
	b.Status = model.PaymentStatus(status)
	if !b.Status.Valid() {
		return nil, fmt.Errorf("booking %d: unknown status %q", b.ID, status)
	}
	if paymentRef.Valid {
		ref := paymentRef.String
		b.PaymentRef = &ref
	}
	if paymentURL.Valid {
		u := paymentURL.String
		b.PaymentURL = &u
	}
	return &b, nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID.  CreatedAt is written as
// given so the hold deadline the caller computed stays exact.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	seats, err := json.Marshal(b.Seats)
	if err != nil {
		return err
	}
	const q = `INSERT INTO bookings (user_id, contact_email, show_id, seats, amount_cents, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.ContactEmail, b.ShowID, string(seats), b.AmountCents,
		string(b.Status), b.CreatedAt.UTC(), b.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.UpdatedAt = b.CreatedAt
	return nil
}

// GetByID retrieves a booking by id or returns ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
}

// GetByIDForUpdateTx reads a booking and locks its row until tx ends.
func (r *BookingRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id))
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// TransitionStatusTx moves a booking from one status to another only if it
// is still in from.  When clearPayment is set the payment session columns
// are nulled in the same statement.  ErrStatusChanged reports that the
// booking exists but is no longer in from; ErrBookingNotFound that it is gone.
func (r *BookingRepo) TransitionStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.PaymentStatus, clearPayment bool) error {
	q := `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP(3) WHERE id = ? AND status = ?`
	if clearPayment {
		q = `UPDATE bookings SET status = ?, payment_ref = NULL, payment_url = NULL, updated_at = UTC_TIMESTAMP(3) WHERE id = ? AND status = ?`
	}
	res, err := tx.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	return ErrStatusChanged
}

// SetPaymentSession records the external checkout session of a booking that
// is still pending.  A booking that already left pending is not touched and
// ErrStatusChanged is returned.
func (r *BookingRepo) SetPaymentSession(ctx context.Context, id uint64, ref, url string) error {
	const q = `UPDATE bookings SET payment_ref = ?, payment_url = ?, updated_at = UTC_TIMESTAMP(3) WHERE id = ? AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, ref, url, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusChanged
	}
	return nil
}

// FlagReconcileOnce stamps reconcile_flagged_at on a booking that is not
// pending and has not been flagged before.  It reports whether this call
// set the flag, so a payment anomaly is raised once per booking however many
// notifications arrive.
func (r *BookingRepo) FlagReconcileOnce(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE bookings SET reconcile_flagged_at = UTC_TIMESTAMP(3)
               WHERE id = ? AND status <> 'pending' AND reconcile_flagged_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
