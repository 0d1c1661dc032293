package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// ShowSearcher lists shows for the public catalogue.
type ShowSearcher interface {
	SearchShows(ctx context.Context, q repository.ShowSearchQuery) ([]model.Show, int64, error)
}

// ShowSearchHandler serves GET /v1/shows.
type ShowSearchHandler struct {
	Shows ShowSearcher
}

func NewShowSearchHandler(s ShowSearcher) *ShowSearchHandler { return &ShowSearchHandler{Shows: s} }

// SearchShows filters by ?title=, ?movie_id= and ?time=upcoming|any
// (default upcoming), paginated with ?page= and ?page_size= (max 100).
func (h *ShowSearchHandler) SearchShows(c echo.Context) error {
	timeFilter := strings.ToLower(strings.TrimSpace(c.QueryParam("time")))
	if timeFilter == "" {
		timeFilter = "upcoming"
	}
	if timeFilter != "upcoming" && timeFilter != "any" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "time must be upcoming or any"})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	if ps < 1 {
		ps = 20
	}
	if ps > 100 {
		ps = 100
	}

	items, total, err := h.Shows.SearchShows(c.Request().Context(), repository.ShowSearchQuery{
		Title:      strings.TrimSpace(c.QueryParam("title")),
		MovieID:    strings.TrimSpace(c.QueryParam("movie_id")),
		TimeFilter: timeFilter,
		Page:       page,
		PageSize:   ps,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to search shows"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      items,
		"total":     total,
		"page":      page,
		"page_size": ps,
	})
}
