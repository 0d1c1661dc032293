package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/payment"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// maxWebhookBody bounds the raw body read for signature verification.
const maxWebhookBody = 64 << 10

// WebhookParser verifies and decodes a gateway delivery.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.Notification, error)
}

// PaymentConfirmer applies a successful payment to its booking.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, bookingID uint64) (service.ConfirmResult, error)
}

// WebhookHandler receives payment gateway notifications.
type WebhookHandler struct {
	Parser   WebhookParser
	Payments PaymentConfirmer
}

func NewWebhookHandler(p WebhookParser, payments PaymentConfirmer) *WebhookHandler {
	return &WebhookHandler{Parser: p, Payments: payments}
}

// Payment handles POST /v1/webhooks/payments.  The gateway redelivers on
// any non-2xx answer, so only failures that a retry can fix return 500.
// Late or orphaned payments are acknowledged; they are already queued for
// reconciliation.
func (h *WebhookHandler) Payment(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read body"})
	}
	n, err := h.Parser.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("webhook: rejected delivery: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid webhook"})
	}
	if n.Kind != payment.KindPaymentSucceeded {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	res, err := h.Payments.Confirm(c.Request().Context(), n.BookingID)
	switch {
	case errors.Is(err, service.ErrLateOrOrphanedPayment):
		log.Printf("webhook: event %s: %v", n.EventID, err)
		return c.JSON(http.StatusOK, echo.Map{"received": true, "result": "reconcile"})
	case err != nil:
		log.Printf("webhook: event %s booking %d: %v", n.EventID, n.BookingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirmation failed"})
	}
	log.Printf("webhook: event %s booking %d %s", n.EventID, n.BookingID, res)
	return c.JSON(http.StatusOK, echo.Map{"received": true, "result": res})
}
