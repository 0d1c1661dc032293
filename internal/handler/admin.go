package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
)

// Grid bounds for new shows.  Rows beyond Z use two letters (AA, AB, ...).
const (
	maxSeatRows = 52
	maxSeatCols = 60
)

// ShowCreator persists a new show with an empty seat map.
type ShowCreator interface {
	CreateShow(ctx context.Context, show *model.Show) error
}

// ShowAnnouncer publishes a newly created show.
type ShowAnnouncer interface {
	PublishShowAdded(ctx context.Context, ev queue.ShowAddedEvent) error
}

// AdminHandler exposes catalogue maintenance endpoints.  Events may be nil.
type AdminHandler struct {
	Shows  ShowCreator
	Events ShowAnnouncer
}

func NewAdminHandler(shows ShowCreator, events ShowAnnouncer) *AdminHandler {
	return &AdminHandler{Shows: shows, Events: events}
}

// CreateShow handles POST /v1/admin/shows.
func (h *AdminHandler) CreateShow(c echo.Context) error {
	var body struct {
		MovieID    string `json:"movie_id"`
		Title      string `json:"title"`
		StartsAt   string `json:"starts_at"`
		PriceCents uint32 `json:"price_cents"`
		Rows       uint32 `json:"rows"`
		Cols       uint32 `json:"cols"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(body.StartsAt))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at format"})
	}
	if body.Rows == 0 || body.Rows > maxSeatRows || body.Cols == 0 || body.Cols > maxSeatCols {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rows and cols must be within the supported grid"})
	}

	show := &model.Show{
		MovieID:    strings.TrimSpace(body.MovieID),
		Title:      title,
		StartsAt:   startsAt.UTC(),
		PriceCents: body.PriceCents,
		SeatRows:   body.Rows,
		SeatCols:   body.Cols,
	}
	if err := h.Shows.CreateShow(c.Request().Context(), show); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create show"})
	}
	if h.Events != nil {
		ev := queue.ShowAddedEvent{
			ShowID:     show.ID,
			MovieID:    show.MovieID,
			Title:      show.Title,
			StartsAt:   show.StartsAt.Format(time.RFC3339),
			PriceCents: show.PriceCents,
		}
		// The show exists either way; a lost announcement is only logged.
		if err := h.Events.PublishShowAdded(c.Request().Context(), ev); err != nil {
			log.Printf("admin: announce show %d: %v", show.ID, err)
		}
	}
	return c.JSON(http.StatusCreated, show)
}
