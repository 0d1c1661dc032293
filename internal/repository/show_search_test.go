package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShowSearchQuery_Where(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	cond, args := ShowSearchQuery{}.where(now)
	assert.Equal(t, "starts_at >= ?", cond)
	assert.Equal(t, []any{now}, args)

	cond, args = ShowSearchQuery{TimeFilter: "ANY"}.where(now)
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)

	cond, args = ShowSearchQuery{TimeFilter: "any", Title: "HeAt", MovieID: "tt1"}.where(now)
	assert.Equal(t, "LOWER(title) LIKE ? AND movie_id = ?", cond)
	assert.Equal(t, []any{"%heat%", "tt1"}, args)
}
