package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
)

// memStore is an in-memory Store with the same compare-and-set semantics as
// the MySQL store.  The err queues inject one failure per call, front first.
type memStore struct {
	mu       sync.Mutex
	shows    map[uint64]*model.Show
	holders  map[uint64]map[seatmap.Seat]uint64
	bookings map[uint64]*model.Booking
	jobs     map[string]*model.HoldJob
	leases   map[string]time.Time
	nextID   uint64

	loadErrs    []error
	holdErrs    []error
	releaseErrs []error
	confirmErrs []error
	holdCalls   int
	flagged     map[uint64]bool
}

func newMemStore() *memStore {
	return &memStore{
		shows:    map[uint64]*model.Show{},
		holders:  map[uint64]map[seatmap.Seat]uint64{},
		bookings: map[uint64]*model.Booking{},
		jobs:     map[string]*model.HoldJob{},
		leases:   map[string]time.Time{},
		flagged:  map[uint64]bool{},
	}
}

func (m *memStore) addShow(id uint64, title string, price uint32, rows, cols uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shows[id] = &model.Show{ID: id, Title: title, PriceCents: price, SeatRows: rows, SeatCols: cols,
		StartsAt: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)}
	m.holders[id] = map[seatmap.Seat]uint64{}
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.Seats = append([]string(nil), b.Seats...)
	return &c
}

func (m *memStore) LoadSeatMap(ctx context.Context, showID uint64) (*model.Show, *seatmap.Grid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.loadErrs); err != nil {
		return nil, nil, err
	}
	s, ok := m.shows[showID]
	if !ok {
		return nil, nil, repository.ErrShowNotFound
	}
	show := *s
	g := seatmap.NewGrid(int(show.SeatRows), int(show.SeatCols), show.SeatVersion)
	for seat, id := range m.holders[showID] {
		_ = g.Place(seat, id)
	}
	return &show, g, nil
}

func (m *memStore) CommitHold(ctx context.Context, c repository.HoldCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdCalls++
	if err := pop(&m.holdErrs); err != nil {
		return err
	}
	s, ok := m.shows[c.ShowID]
	if !ok {
		return repository.ErrShowNotFound
	}
	if s.SeatVersion != c.ExpectedVersion {
		return repository.ErrVersionConflict
	}
	for _, seat := range c.Seats {
		if _, taken := m.holders[c.ShowID][seat]; taken {
			return repository.ErrSeatTaken
		}
	}
	m.nextID++
	c.Booking.ID = m.nextID
	c.Booking.UpdatedAt = c.Booking.CreatedAt
	m.bookings[c.Booking.ID] = cloneBooking(c.Booking)
	for _, seat := range c.Seats {
		m.holders[c.ShowID][seat] = c.Booking.ID
	}
	s.SeatVersion++
	c.Job.BookingID = c.Booking.ID
	c.Job.State = model.HoldJobArmed
	job := *c.Job
	m.jobs[job.ID] = &job
	m.leases[job.ID] = job.DueAt
	return nil
}

func (m *memStore) CommitRelease(ctx context.Context, c repository.ReleaseCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.releaseErrs); err != nil {
		return err
	}
	b, ok := m.bookings[c.BookingID]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status != model.StatusPending {
		return repository.ErrStatusChanged
	}
	s, ok := m.shows[c.ShowID]
	if !ok {
		return repository.ErrShowNotFound
	}
	if s.SeatVersion != c.ExpectedVersion {
		return repository.ErrVersionConflict
	}
	b.Status = model.StatusCancelled
	b.PaymentRef, b.PaymentURL = nil, nil
	for seat, id := range m.holders[c.ShowID] {
		if id == c.BookingID {
			delete(m.holders[c.ShowID], seat)
		}
	}
	s.SeatVersion++
	return nil
}

func (m *memStore) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (m *memStore) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	c := *s
	return &c, nil
}

func (m *memStore) ConfirmPayment(ctx context.Context, id uint64) (model.PaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := pop(&m.confirmErrs); err != nil {
		return "", err
	}
	b, ok := m.bookings[id]
	if !ok {
		return "", repository.ErrBookingNotFound
	}
	prev := b.Status
	if prev == model.StatusPending {
		b.Status = model.StatusPaid
		b.PaymentRef, b.PaymentURL = nil, nil
		for _, j := range m.jobs {
			if j.BookingID == id {
				j.State = model.HoldJobDone
			}
		}
	}
	return prev, nil
}

func (m *memStore) FlagReconcileOnce(ctx context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status == model.StatusPending || m.flagged[id] {
		return false, nil
	}
	m.flagged[id] = true
	return true, nil
}

func (m *memStore) SetPaymentSession(ctx context.Context, id uint64, ref, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status != model.StatusPending {
		return repository.ErrStatusChanged
	}
	b.PaymentRef, b.PaymentURL = &ref, &url
	return nil
}

// JobStore side, so the scheduler can drive expiry end to end.

func (m *memStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.HoldJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.HoldJob
	for id, j := range m.jobs {
		if j.State == model.HoldJobArmed && !j.DueAt.After(now) && !m.leases[id].After(now) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DueAt.Before(out[b].DueAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		m.jobs[out[i].ID].Attempts++
		out[i].Attempts++
		m.leases[out[i].ID] = now.Add(lease)
	}
	return out, nil
}

func (m *memStore) Complete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.State = model.HoldJobDone
		return nil
	}
	return repository.ErrJobNotFound
}

func (m *memStore) Retry(ctx context.Context, id string, next time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok && j.State == model.HoldJobArmed {
		m.leases[id] = next
		return nil
	}
	return repository.ErrJobNotFound
}

// occupied returns label → booking id for a show.
func (m *memStore) occupied(showID uint64) map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]uint64{}
	for seat, id := range m.holders[showID] {
		out[seat.Label()] = id
	}
	return out
}

func (m *memStore) status(id uint64) model.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id].Status
}

func (m *memStore) jobFor(bookingID uint64) *model.HoldJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.BookingID == bookingID {
			c := *j
			return &c
		}
	}
	return nil
}

// recordingEvents captures published events.
type recordingEvents struct {
	mu        sync.Mutex
	paid      []queue.BookingPaidEvent
	anomalies []queue.PaymentAnomalyEvent
}

func (r *recordingEvents) PublishBookingPaid(ctx context.Context, ev queue.BookingPaidEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, ev)
	return nil
}

func (r *recordingEvents) PublishPaymentAnomaly(ctx context.Context, ev queue.PaymentAnomalyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies = append(r.anomalies, ev)
	return nil
}

// noLock satisfies Locker without serializing anything, leaving the
// version check as the only guard.
type noLock struct{}

func (noLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

var fastRetry = RetryPolicy{MaxAttempts: 50}
