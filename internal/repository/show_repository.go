// Package repository contains data access logic for the booking core.  This
// file covers the shows table, which also carries the per-show seat_version
// counter used for optimistic concurrency on seat occupancy.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// ShowRepo manages persistence for shows.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

const showColumns = `id, movie_id, title, starts_at, price_cents, seat_rows, seat_cols, seat_version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(row rowScanner) (*model.Show, error) {
	var s model.Show
	err := row.Scan(&s.ID, &s.MovieID, &s.Title, &s.StartsAt, &s.PriceCents,
		&s.SeatRows, &s.SeatCols, &s.SeatVersion, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new show and populates the generated ID and DB-default
// fields on s.  seat_version always starts at zero.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) error {
	const q = `INSERT INTO shows (movie_id, title, starts_at, price_cents, seat_rows, seat_cols) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.MovieID, s.Title, s.StartsAt.UTC(), s.PriceCents, s.SeatRows, s.SeatCols)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// GetByID retrieves a show by its ID.  It returns ErrShowNotFound if
// there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	return scanShow(r.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id))
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *ShowRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Show, error) {
	return scanShow(tx.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id))
}

// BumpVersionTx advances seat_version from expected to expected+1.  When the
// stored version is no longer expected the row is left unchanged and
// ErrVersionConflict is returned; the UPDATE's row lock serializes
// concurrent writers on the same show until the transaction ends.
func (r *ShowRepo) BumpVersionTx(ctx context.Context, tx *sql.Tx, showID, expected uint64) error {
	const q = `UPDATE shows SET seat_version = seat_version + 1 WHERE id = ? AND seat_version = ?`
	res, err := tx.ExecContext(ctx, q, showID, expected)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM shows WHERE id = ?`, showID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrShowNotFound
		}
		if err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}
