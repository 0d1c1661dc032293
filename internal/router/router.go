package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
)

// Deps bundles what the routes need.  Cache and RateLimit may be
// pass-through middleware when Redis is not available.  Webhooks may be nil.
type Deps struct {
	JWTSecret string
	Health    echo.HandlerFunc
	Bookings  *handler.BookingHandler
	Search    *handler.ShowSearchHandler
	Webhooks  *handler.WebhookHandler
	Admin     *handler.AdminHandler
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers every endpoint on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)

	// Public show reads.  Only the catalogue and show detail go through the response
	// cache; seat maps change with every reservation.
	e.GET("/v1/shows", d.Search.SearchShows, d.Cache)
	e.GET("/v1/shows/:id", d.Bookings.GetShow, d.Cache)
	e.GET("/v1/shows/:id/seats", d.Bookings.GetSeats)
	e.GET("/v1/shows/:id/availability", d.Bookings.CheckAvailability)

	// The gateway authenticates with the signature header, not a JWT.  No
	// handler means no signing secret, so the route stays closed.
	if d.Webhooks != nil {
		e.POST("/v1/webhooks/payments", d.Webhooks.Payment)
	}

	RegisterCustomer(e, d)
	RegisterAdmin(e, d)
}

// RegisterCustomer registers endpoints that act on behalf of the
// authenticated user.  Any role may book.
func RegisterCustomer(e *echo.Echo, d Deps) {
	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))
	g.POST("/shows/:id/bookings", d.Bookings.CreateBooking, d.RateLimit)
	g.GET("/my-bookings", d.Bookings.ListMyBookings)
	g.GET("/bookings/:id", d.Bookings.GetBooking)
}

// RegisterAdmin registers catalogue maintenance endpoints, restricted to the
// ADMIN role.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin", middleware.JWTAuth(d.JWTSecret), middleware.RequireRole("ADMIN"))
	g.POST("/shows", d.Admin.CreateShow)
}
