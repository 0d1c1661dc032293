package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/movie-ticket-booking/internal/mailer"
)

// ConfirmationSender delivers the booking confirmation mail.
type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, c mailer.Confirmation) error
}

// ShowAnnouncer delivers the new-show mail to one recipient.
type ShowAnnouncer interface {
	SendShowAnnouncement(ctx context.Context, to string, a mailer.ShowAnnouncement) error
}

// Consumer drains booking.paid into confirmation mails, appends
// booking.reconcile events to logs/reconcile.log and mails show.added
// announcements to Recipients.
type Consumer struct {
	URL    string
	Mail   ConfirmationSender
	LogDir string

	Announcer   ShowAnnouncer
	Recipients  []string
	Currency    string
	BookingLink string
}

// NewConsumer returns a Consumer writing reconcile lines under logDir.
func NewConsumer(url string, mail ConfirmationSender, logDir string) *Consumer {
	if logDir == "" {
		logDir = "logs"
	}
	return &Consumer{URL: url, Mail: mail, LogDir: logDir}
}

// Run connects to RabbitMQ, declares both queues (durable) and consumes them
// until ctx is cancelled.  Broker failures are retried with exponential
// backoff; a message that cannot be handled is logged and rejected without
// requeue so the loop keeps going.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}
	for _, q := range []string{PaidQueue, ReconcileQueue, ShowAddedQueue} {
		if err := declare(ch, q); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
	}
	paid, err := ch.Consume(PaidQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", PaidQueue, err)
	}
	reconcile, err := ch.Consume(ReconcileQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", ReconcileQueue, err)
	}
	shows, err := ch.Consume(ShowAddedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume %s: %w", ShowAddedQueue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-paid:
			if !ok {
				return errors.New("booking.paid deliveries channel closed")
			}
			settle(d, c.handlePaid(ctx, d.Body))
		case d, ok := <-reconcile:
			if !ok {
				return errors.New("booking.reconcile deliveries channel closed")
			}
			settle(d, c.handleReconcile(d.Body))
		case d, ok := <-shows:
			if !ok {
				return errors.New("show.added deliveries channel closed")
			}
			settle(d, c.handleShowAdded(ctx, d.Body))
		}
	}
}

func settle(d amqp.Delivery, err error) {
	if err != nil {
		log.Printf("booking-consumer: handle %s message failed: %v", d.RoutingKey, err)
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) handlePaid(ctx context.Context, body []byte) error {
	var ev BookingPaidEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if strings.TrimSpace(ev.Email) == "" {
		log.Printf("booking-consumer: booking %d has no contact email; skipping confirmation", ev.BookingID)
		return nil
	}
	if c.Mail == nil {
		return errors.New("no mail sender configured")
	}
	conf := mailer.Confirmation{
		BookingID:   ev.BookingID,
		To:          ev.Email,
		MovieTitle:  ev.MovieTitle,
		Seats:       ev.Seats,
		AmountCents: ev.AmountCents,
		Currency:    ev.Currency,
	}
	if ev.StartsAt != "" {
		if t, err := time.Parse(time.RFC3339, ev.StartsAt); err == nil {
			conf.StartsAt = t
		}
	}
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := c.Mail.SendBookingConfirmation(sendCtx, conf); err != nil {
		return fmt.Errorf("send confirmation for booking %d: %w", ev.BookingID, err)
	}
	log.Printf("booking-consumer: confirmation for booking %d sent to %s", ev.BookingID, ev.Email)
	return nil
}

func (c *Consumer) handleReconcile(body []byte) error {
	var ev PaymentAnomalyEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, "reconcile.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	status := ev.Status
	if status == "" {
		status = "missing"
	}
	line := fmt.Sprintf("[%s] Payment needs reconciliation | booking_id=%d | status=%s | reason=%q\n",
		ev.DetectedAt, ev.BookingID, status, ev.Reason)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func (c *Consumer) handleShowAdded(ctx context.Context, body []byte) error {
	var ev ShowAddedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if len(c.Recipients) == 0 {
		log.Printf("booking-consumer: show %d added; no announcement recipients configured", ev.ShowID)
		return nil
	}
	if c.Announcer == nil {
		return errors.New("no mail sender configured")
	}
	a := mailer.ShowAnnouncement{
		MovieTitle:  ev.Title,
		PriceCents:  ev.PriceCents,
		Currency:    c.Currency,
		BookingLink: c.BookingLink,
	}
	if t, err := time.Parse(time.RFC3339, ev.StartsAt); err == nil {
		a.StartsAt = t
	}

	// One failed recipient does not stop the others.
	var errs []error
	sent := 0
	for _, to := range c.Recipients {
		sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := c.Announcer.SendShowAnnouncement(sendCtx, to, a)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("announce show %d to %s: %w", ev.ShowID, to, err))
			continue
		}
		sent++
	}
	log.Printf("booking-consumer: show %d announced to %d/%d recipient(s)", ev.ShowID, sent, len(c.Recipients))
	return errors.Join(errs...)
}
