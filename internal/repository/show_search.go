package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// ShowSearchQuery defines filters & pagination for listing shows.
// TimeFilter is "upcoming" (default, starts_at >= now) or "any".
type ShowSearchQuery struct {
	Title      string
	MovieID    string
	TimeFilter string
	Page       int
	PageSize   int
}

// where renders the filter as a SQL condition and its arguments.
func (q ShowSearchQuery) where(now time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if strings.ToLower(q.TimeFilter) != "any" {
		conds = append(conds, "starts_at >= ?")
		args = append(args, now.UTC())
	}
	if q.Title != "" {
		conds = append(conds, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	if q.MovieID != "" {
		conds = append(conds, "movie_id = ?")
		args = append(args, q.MovieID)
	}
	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

// Search lists shows matching q ordered by start time, plus the total match
// count for pagination.
func (r *ShowRepo) Search(ctx context.Context, q ShowSearchQuery, now time.Time) ([]model.Show, int64, error) {
	cond, args := q.where(now)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shows WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + showColumns + ` FROM shows WHERE ` + cond + ` ORDER BY starts_at ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, dataSQL, append(args, q.PageSize, (q.Page-1)*q.PageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Show, 0, q.PageSize)
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
