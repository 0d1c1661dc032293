package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/payment"
	"github.com/iliyamo/movie-ticket-booking/internal/seatmap"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// Reserver runs the reservation transaction.
type Reserver interface {
	Reserve(ctx context.Context, req service.ReserveRequest) (*service.Reservation, error)
}

// CheckoutStarter opens a payment session for a fresh reservation.
type CheckoutStarter interface {
	StartCheckout(ctx context.Context, res *service.Reservation, origin string) (*payment.Session, error)
}

// BookingReader is the read side the booking endpoints need.
type BookingReader interface {
	service.SeatMapReader
	GetShow(ctx context.Context, id uint64) (*model.Show, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error)
}

// BookingHandler serves show, seat and booking endpoints.  Checkout may be
// nil when no payment gateway is configured; bookings are then created
// without a payment URL and lapse on their deadline.
type BookingHandler struct {
	Reservations Reserver
	Checkout     CheckoutStarter
	Store        BookingReader
	Origin       string // fallback when the request carries no Origin header
}

// NewBookingHandler wires the booking endpoints.
func NewBookingHandler(r Reserver, checkout CheckoutStarter, store BookingReader, origin string) *BookingHandler {
	if r == nil || store == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Reservations: r, Checkout: checkout, Store: store, Origin: origin}
}

type createBookingResponse struct {
	Booking    *model.Booking `json:"booking"`
	HoldUntil  time.Time      `json:"hold_until"`
	PaymentURL string         `json:"payment_url,omitempty"`
}

// CreateBooking handles POST /v1/shows/:id/bookings.  Body:
// {"seats": ["A1", "A2"]}.  On success the seats are held for the grace
// window and the response carries the checkout URL.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var body struct {
		Seats []string `json:"seats"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
	}

	ctx := c.Request().Context()
	res, err := h.Reservations.Reserve(ctx, service.ReserveRequest{
		ShowID: showID,
		UserID: userID,
		Email:  middleware.Email(c),
		Seats:  body.Seats,
	})
	if err != nil {
		return writeServiceError(c, err)
	}

	out := createBookingResponse{Booking: res.Booking, HoldUntil: res.HoldUntil}
	if h.Checkout != nil {
		sess, err := h.Checkout.StartCheckout(ctx, res, h.origin(c))
		if err != nil {
			log.Printf("booking: checkout for booking %d: %v", res.Booking.ID, err)
			return c.JSON(http.StatusBadGateway, echo.Map{
				"error":      "payment gateway unavailable",
				"booking_id": res.Booking.ID,
				"hold_until": res.HoldUntil,
			})
		}
		out.PaymentURL = sess.URL
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *BookingHandler) origin(c echo.Context) string {
	if o := strings.TrimSpace(c.Request().Header.Get(echo.HeaderOrigin)); o != "" {
		return o
	}
	return h.Origin
}

// GetShow handles GET /v1/shows/:id.
func (h *BookingHandler) GetShow(c echo.Context) error {
	showID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	show, err := h.Store.GetShow(c.Request().Context(), showID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, show)
}

// GetSeats handles GET /v1/shows/:id/seats and returns the grid size plus
// every held seat label, in row-major order.
func (h *BookingHandler) GetSeats(c echo.Context) error {
	showID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	_, grid, err := h.Store.LoadSeatMap(c.Request().Context(), showID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"show_id":  showID,
		"rows":     grid.Rows(),
		"cols":     grid.Cols(),
		"occupied": seatmap.Labels(grid.Occupied()),
	})
}

// CheckAvailability handles GET /v1/shows/:id/availability?seats=A1,A2.
func (h *BookingHandler) CheckAvailability(c echo.Context) error {
	showID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var labels []string
	for _, l := range strings.Split(c.QueryParam("seats"), ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats query parameter is required"})
	}
	a, err := service.CheckAvailability(c.Request().Context(), h.Store, showID, labels)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListMyBookings handles GET /v1/my-bookings, newest first.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Store.ListBookingsByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list bookings"})
	}
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetBooking handles GET /v1/bookings/:id.  Other users' bookings are
// reported as missing.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Store.GetBooking(c.Request().Context(), id)
	if err == nil && b.UserID != userID {
		err = service.ErrBookingNotFound
	}
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// writeServiceError maps booking-core errors onto HTTP responses.
func writeServiceError(c echo.Context, err error) error {
	var unavailable *service.SeatsUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats unavailable", "seats": unavailable.Seats})
	case errors.Is(err, service.ErrSeatsUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats unavailable"})
	case errors.Is(err, service.ErrInvalidSeats):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrMissingUser):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, service.ErrShowNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
	case errors.Is(err, service.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, service.ErrTransientStoreFailure):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "try again"})
	}
	log.Printf("booking: unexpected error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
