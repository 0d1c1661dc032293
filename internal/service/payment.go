package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/payment"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
)

// ConfirmResult says what a payment notification did.
type ConfirmResult string

const (
	ConfirmPaid      ConfirmResult = "paid"
	ConfirmDuplicate ConfirmResult = "duplicate"
)

// Payments starts checkout sessions and applies payment notifications to
// bookings.
type Payments struct {
	store       Store
	gateway     Gateway
	events      EventPublisher
	currency    string
	checkoutTTL time.Duration
	retry       RetryPolicy

	Now func() time.Time
}

// NewPayments builds the payment service.  events may be nil, in which case
// nothing is announced.
func NewPayments(store Store, gateway Gateway, events EventPublisher, currency string, checkoutTTL time.Duration, retry RetryPolicy) *Payments {
	return &Payments{
		store:       store,
		gateway:     gateway,
		events:      events,
		currency:    strings.ToLower(currency),
		checkoutTTL: checkoutTTL,
		retry:       retry.normalized(),
		Now:         time.Now,
	}
}

// StartCheckout opens a hosted payment session for a fresh reservation and
// stores its reference on the booking.  A failure leaves the hold in place;
// it simply lapses at its deadline.
func (p *Payments) StartCheckout(ctx context.Context, res *Reservation, origin string) (*payment.Session, error) {
	b, show := res.Booking, res.Show
	origin = strings.TrimRight(origin, "/")
	req := payment.CheckoutRequest{
		BookingID:     b.ID,
		AmountMinor:   int64(b.AmountCents),
		Currency:      p.currency,
		ProductName:   show.Title,
		Description:   fmt.Sprintf("Seats %s, %s", strings.Join(b.Seats, ", "), show.StartsAt.UTC().Format("02 Jan 2006 15:04 MST")),
		CustomerEmail: b.ContactEmail,
		SuccessURL:    origin + "/loading/my-bookings",
		CancelURL:     origin + "/my-bookings",
		ExpiresAt:     p.Now().Add(p.checkoutTTL),
	}
	sess, err := p.gateway.CreateCheckout(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if err := p.store.SetPaymentSession(ctx, b.ID, sess.ID, sess.URL); err != nil {
		return nil, fmt.Errorf("store payment session for booking %d: %w", b.ID, err)
	}
	b.PaymentRef = &sess.ID
	b.PaymentURL = &sess.URL
	return sess, nil
}

// Confirm applies a successful-payment notification.  The first call on a
// pending booking marks it paid and disarms its expiry; later calls return
// ConfirmDuplicate.  A booking that is cancelled or gone yields
// ErrLateOrOrphanedPayment; a cancelled one raises its reconciliation event
// only on the first such notification.
func (p *Payments) Confirm(ctx context.Context, bookingID uint64) (ConfirmResult, error) {
	var (
		prev model.PaymentStatus
		err  error
	)
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if serr := sleepCtx(ctx, p.retry.delay(attempt-1)); serr != nil {
				return "", serr
			}
		}
		prev, err = p.store.ConfirmPayment(ctx, bookingID)
		if err == nil || errors.Is(err, ErrBookingNotFound) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		log.Printf("payment: confirm booking %d attempt %d/%d failed: %v", bookingID, attempt, p.retry.MaxAttempts, err)
	}
	switch {
	case errors.Is(err, ErrBookingNotFound):
		p.reportAnomaly(ctx, bookingID, "", "booking not found")
		return "", fmt.Errorf("%w: booking %d does not exist", ErrLateOrOrphanedPayment, bookingID)
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrTransientStoreFailure, err)
	}

	switch {
	case !prev.Terminal():
		p.announcePaid(ctx, bookingID)
		return ConfirmPaid, nil
	case prev == model.StatusPaid:
		return ConfirmDuplicate, nil
	}

	// The gateway reports one payment through several event types, so only
	// the first notification raises the anomaly.
	first, ferr := p.store.FlagReconcileOnce(ctx, bookingID)
	if ferr != nil {
		log.Printf("payment: flag booking %d for reconciliation: %v", bookingID, ferr)
		first = true
	}
	if first {
		p.reportAnomaly(ctx, bookingID, prev, "hold expired before payment was recognized")
	}
	return "", fmt.Errorf("%w: booking %d is %s", ErrLateOrOrphanedPayment, bookingID, prev)
}

func (p *Payments) announcePaid(ctx context.Context, bookingID uint64) {
	if p.events == nil {
		return
	}
	b, err := p.store.GetBooking(ctx, bookingID)
	if err != nil {
		log.Printf("payment: load booking %d for notification: %v", bookingID, err)
		return
	}
	ev := queue.BookingPaidEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		Email:       b.ContactEmail,
		ShowID:      b.ShowID,
		Seats:       b.Seats,
		AmountCents: b.AmountCents,
		Currency:    p.currency,
		PaidAt:      p.Now().UTC().Format(time.RFC3339),
	}
	if show, err := p.store.GetShow(ctx, b.ShowID); err == nil {
		ev.MovieTitle = show.Title
		ev.StartsAt = show.StartsAt.UTC().Format(time.RFC3339)
	} else {
		log.Printf("payment: load show %d for notification: %v", b.ShowID, err)
	}
	if err := p.events.PublishBookingPaid(ctx, ev); err != nil {
		log.Printf("payment: publish booking.paid for %d: %v", bookingID, err)
	}
}

func (p *Payments) reportAnomaly(ctx context.Context, bookingID uint64, status model.PaymentStatus, reason string) {
	log.Printf("payment: RECONCILE booking %d status=%q: %s", bookingID, status, reason)
	if p.events == nil {
		return
	}
	ev := queue.PaymentAnomalyEvent{
		BookingID:  bookingID,
		Status:     string(status),
		Reason:     reason,
		DetectedAt: p.Now().UTC().Format(time.RFC3339),
	}
	if err := p.events.PublishPaymentAnomaly(ctx, ev); err != nil {
		log.Printf("payment: publish booking.reconcile for %d: %v", bookingID, err)
	}
}
