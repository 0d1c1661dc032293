package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/scheduler"
)

var errBoom = errors.New("boom")

// lifecycle wires reservations, payments and the expiry worker over one
// store and one clock.
type lifecycle struct {
	st     *memStore
	now    time.Time
	res    *Reservations
	pay    *Payments
	worker *scheduler.Worker
}

func newLifecycle(t *testing.T) *lifecycle {
	t.Helper()
	l := &lifecycle{st: newMemStore(), now: testNow}
	l.st.addShow(1, "Heat", 200, 1, 5)
	clock := func() time.Time { return l.now }

	l.res = newReservations(l.st, noLock{})
	l.res.Now = clock
	l.pay = newPayments(l.st, &fakeGateway{}, &recordingEvents{})
	l.pay.Now = clock

	exp := NewExpiry(l.st, noLock{}, fastRetry)
	l.worker = scheduler.NewWorker("expiry", l.st, func(ctx context.Context, j model.HoldJob) error {
		_, err := exp.Fire(ctx, j.BookingID)
		return err
	}, scheduler.Config{Interval: time.Second, Batch: 10, Lease: time.Minute})
	l.worker.Now = clock
	return l
}

func (l *lifecycle) reserve(user string, seats ...string) (*Reservation, error) {
	return l.res.Reserve(context.Background(), ReserveRequest{ShowID: 1, UserID: user, Seats: seats})
}

func (l *lifecycle) tick(t *testing.T, d time.Duration) int {
	t.Helper()
	l.now = l.now.Add(d)
	n, err := l.worker.RunOnce(context.Background())
	require.NoError(t, err)
	return n
}

func TestLifecycle_HoldExpires(t *testing.T) {
	l := newLifecycle(t)

	r1, err := l.reserve("U1", "A1", "A2")
	require.NoError(t, err)
	b1 := r1.Booking
	assert.Equal(t, uint64(400), b1.AmountCents)
	assert.Equal(t, map[string]uint64{"A1": b1.ID, "A2": b1.ID}, l.st.occupied(1))

	_, err = l.reserve("U2", "A2", "A3")
	var unavailable *SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"A2"}, unavailable.Seats)

	assert.Zero(t, l.tick(t, 9*time.Minute), "nothing is due inside the grace window")
	assert.Equal(t, model.StatusPending, l.st.status(b1.ID))

	assert.Equal(t, 1, l.tick(t, time.Minute))
	assert.Equal(t, model.StatusCancelled, l.st.status(b1.ID))
	assert.Empty(t, l.st.occupied(1))
	assert.Equal(t, model.HoldJobDone, l.st.jobFor(b1.ID).State)

	r2, err := l.reserve("U2", "A1", "A2")
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"A1": r2.Booking.ID, "A2": r2.Booking.ID}, l.st.occupied(1))
}

func TestLifecycle_HoldHonored(t *testing.T) {
	l := newLifecycle(t)

	r1, err := l.reserve("U1", "A1", "A2")
	require.NoError(t, err)
	b1 := r1.Booking

	l.now = l.now.Add(5 * time.Minute)
	res, err := l.pay.Confirm(context.Background(), b1.ID)
	require.NoError(t, err)
	assert.Equal(t, ConfirmPaid, res)

	assert.Zero(t, l.tick(t, 10*time.Minute), "confirmation disarms the deadline")
	assert.Equal(t, model.StatusPaid, l.st.status(b1.ID))
	assert.Equal(t, map[string]uint64{"A1": b1.ID, "A2": b1.ID}, l.st.occupied(1))

	_, err = l.reserve("U2", "A2")
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
}

func TestLifecycle_DeadlineRacesConfirmation(t *testing.T) {
	l := newLifecycle(t)

	r1, err := l.reserve("U1", "A1")
	require.NoError(t, err)
	b1 := r1.Booking

	// The job was claimed just before the payment landed: firing must see
	// the paid status and leave the seats alone.
	l.now = l.now.Add(10 * time.Minute)
	jobs, err := l.st.ClaimDue(context.Background(), l.now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	_, err = l.pay.Confirm(context.Background(), b1.ID)
	require.NoError(t, err)

	out, err := NewExpiry(l.st, noLock{}, fastRetry).Fire(context.Background(), jobs[0].BookingID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHonored, out)
	assert.Equal(t, map[string]uint64{"A1": b1.ID}, l.st.occupied(1))
}

func TestLifecycle_FailedExpiryIsRetriedNotDropped(t *testing.T) {
	l := newLifecycle(t)
	r1, err := l.reserve("U1", "A1")
	require.NoError(t, err)
	b1 := r1.Booking

	// Every release attempt inside one firing fails.
	for i := 0; i < fastRetry.MaxAttempts; i++ {
		l.st.releaseErrs = append(l.st.releaseErrs, errBoom)
	}
	assert.Equal(t, 1, l.tick(t, 10*time.Minute))
	assert.Equal(t, model.StatusPending, l.st.status(b1.ID))
	assert.Equal(t, model.HoldJobArmed, l.st.jobFor(b1.ID).State, "job stays armed after a failed run")

	assert.Equal(t, 1, l.tick(t, time.Hour))
	assert.Equal(t, model.StatusCancelled, l.st.status(b1.ID))
	assert.Empty(t, l.st.occupied(1))
}
