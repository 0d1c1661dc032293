//go:build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/database"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
)

// Run with: TEST_DB_HOST=127.0.0.1 TEST_DB_USER=root TEST_DB_NAME=tickets_test go test -tags integration ./internal/repository
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set")
	}
	port := os.Getenv("TEST_DB_PORT")
	if port == "" {
		port = "3306"
	}
	db, err := database.Open(os.Getenv("TEST_DB_USER"), os.Getenv("TEST_DB_PASS"), host, port, os.Getenv("TEST_DB_NAME"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func seedShow(t *testing.T, s *Store) *model.Show {
	t.Helper()
	show := &model.Show{MovieID: "tt0113277", Title: "Heat", StartsAt: time.Now().Add(24 * time.Hour).UTC(),
		PriceCents: 200, SeatRows: 2, SeatCols: 5}
	require.NoError(t, s.CreateShow(context.Background(), show))
	return show
}

func hold(s *Store, show *model.Show, version uint64, user string, seats ...seatmap.Seat) (*model.Booking, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	b := &model.Booking{UserID: user, ShowID: show.ID, Seats: seatmap.Labels(seats),
		AmountCents: uint64(show.PriceCents) * uint64(len(seats)), Status: model.StatusPending, CreatedAt: now}
	err := s.CommitHold(context.Background(), HoldCommit{
		ShowID:          show.ID,
		ExpectedVersion: version,
		Booking:         b,
		Seats:           seats,
		Job:             &model.HoldJob{ID: uuid.NewString(), DueAt: now.Add(-time.Second)},
	})
	return b, err
}

func TestStore_HoldReleaseConfirm(t *testing.T) {
	s := NewStore(openTestDB(t))
	ctx := context.Background()
	show := seedShow(t, s)
	a1, a2, a3 := seatmap.Seat{Row: 0, Col: 0}, seatmap.Seat{Row: 0, Col: 1}, seatmap.Seat{Row: 0, Col: 2}

	_, grid, err := s.LoadSeatMap(ctx, show.ID)
	require.NoError(t, err)
	v0 := grid.Version

	b1, err := hold(s, show, v0, "u1", a1, a2)
	require.NoError(t, err)

	_, err = hold(s, show, v0, "u2", a3)
	assert.ErrorIs(t, err, ErrVersionConflict, "stale version is rejected")

	_, grid, err = s.LoadSeatMap(ctx, show.ID)
	require.NoError(t, err)
	_, err = hold(s, show, grid.Version, "u2", a2, a3)
	assert.ErrorIs(t, err, ErrSeatTaken, "primary key guards a held seat")
	assert.Equal(t, []seatmap.Seat{a1, a2}, grid.HeldBy(b1.ID))

	jobs, err := s.ClaimDue(ctx, time.Now().UTC(), time.Minute, 100)
	require.NoError(t, err)
	var claimed bool
	for _, j := range jobs {
		claimed = claimed || j.BookingID == b1.ID
	}
	assert.True(t, claimed)

	require.NoError(t, s.CommitRelease(ctx, ReleaseCommit{ShowID: show.ID, ExpectedVersion: grid.Version, BookingID: b1.ID}))
	got, err := s.GetBooking(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	prev, err := s.ConfirmPayment(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, prev, "late payment leaves the booking cancelled")

	flagged, err := s.FlagReconcileOnce(ctx, b1.ID)
	require.NoError(t, err)
	assert.True(t, flagged)
	flagged, err = s.FlagReconcileOnce(ctx, b1.ID)
	require.NoError(t, err)
	assert.False(t, flagged, "a booking is flagged for reconciliation once")

	_, grid, err = s.LoadSeatMap(ctx, show.ID)
	require.NoError(t, err)
	assert.Empty(t, grid.Occupied())

	b2, err := hold(s, show, grid.Version, "u2", a1, a2)
	require.NoError(t, err)
	flagged, err = s.FlagReconcileOnce(ctx, b2.ID)
	require.NoError(t, err)
	assert.False(t, flagged, "pending bookings are never flagged")
	prev, err = s.ConfirmPayment(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, prev)
	prev, err = s.ConfirmPayment(ctx, b2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, prev)

	_, err = s.GetBooking(ctx, 1<<62)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
