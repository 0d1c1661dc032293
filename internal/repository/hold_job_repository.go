package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// HoldJobRepo provides data access to the hold_jobs table, the durable
// timer behind booking expiry.  A job is armed when its booking is created
// and becomes done once it ran successfully or the booking was paid.
// Claims are leased through locked_until so that a crashed worker's jobs
// become claimable again once the lease lapses.
type HoldJobRepo struct {
	db *sql.DB
}

// NewHoldJobRepo returns a new HoldJobRepo bound to the provided database.
func NewHoldJobRepo(db *sql.DB) *HoldJobRepo { return &HoldJobRepo{db: db} }

// ArmTx inserts an armed job within the caller's transaction.
func (r *HoldJobRepo) ArmTx(ctx context.Context, tx *sql.Tx, j *model.HoldJob) error {
	const q = `INSERT INTO hold_jobs (id, booking_id, due_at, state, attempts, locked_until) VALUES (?, ?, ?, 'armed', 0, ?)`
	due := j.DueAt.UTC()
	if _, err := tx.ExecContext(ctx, q, j.ID, j.BookingID, due, due); err != nil {
		return err
	}
	j.State = model.HoldJobArmed
	return nil
}

// ClaimDue leases up to limit armed jobs whose deadline and lease have both
// passed.  SKIP LOCKED lets several workers claim disjoint batches.  The
// attempts counter of every claimed job is incremented.
func (r *HoldJobRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.HoldJob, error) {
	if limit <= 0 {
		return nil, nil
	}
	now = now.UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, booking_id, due_at, attempts, last_error FROM hold_jobs
		 WHERE state = 'armed' AND due_at <= ? AND locked_until <= ?
		 ORDER BY due_at LIMIT ? FOR UPDATE SKIP LOCKED`,
		now, now, limit,
	)
	if err != nil {
		return nil, err
	}
	var jobs []model.HoldJob
	for rows.Next() {
		var (
			j       model.HoldJob
			lastErr sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.BookingID, &j.DueAt, &j.Attempts, &lastErr); err != nil {
			rows.Close()
			return nil, err
		}
		j.State = model.HoldJobArmed
		j.Attempts++
		if lastErr.Valid {
			s := lastErr.String
			j.LastError = &s
		}
		jobs = append(jobs, j)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(jobs)+1)
	ids = append(ids, now.Add(lease))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	q := `UPDATE hold_jobs SET locked_until = ?, attempts = attempts + 1, updated_at = UTC_TIMESTAMP(3)
	      WHERE id IN (?` + strings.Repeat(",?", len(jobs)-1) + `)`
	if _, err := tx.ExecContext(ctx, q, ids...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return jobs, nil
}

// Complete marks a job done.  Completing a done job is a no-op.
func (r *HoldJobRepo) Complete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE hold_jobs SET state = 'done', last_error = NULL, updated_at = UTC_TIMESTAMP(3) WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Retry keeps the job armed and hides it from ClaimDue until next.
func (r *HoldJobRepo) Retry(ctx context.Context, id string, next time.Time, reason string) error {
	if len(reason) > 1000 {
		reason = reason[:1000]
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE hold_jobs SET locked_until = ?, last_error = ?, updated_at = UTC_TIMESTAMP(3) WHERE id = ? AND state = 'armed'`,
		next.UTC(), reason, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// CompleteForBookingTx marks every armed job of the booking done.  It is
// used when payment lands so the pending expiry never has to fire.
func (r *HoldJobRepo) CompleteForBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE hold_jobs SET state = 'done', updated_at = UTC_TIMESTAMP(3) WHERE booking_id = ? AND state = 'armed'`, bookingID)
	return err
}
