package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/config"
)

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	var gotUser, gotEmail, gotRole string
	e.GET("/me", func(c echo.Context) error {
		gotUser, gotEmail, gotRole = UserID(c), Email(c), Role(c)
		return c.NoContent(http.StatusNoContent)
	}, JWTAuth("k"))

	tok := signed(t, "k", jwt.MapClaims{"sub": "u1", "email": "u1@example.com", "role": "CUSTOMER",
		"exp": time.Now().Add(time.Hour).Unix()})
	rec := serve(e, http.MethodGet, "/me", tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "u1@example.com", gotEmail)
	assert.Equal(t, "CUSTOMER", gotRole)

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", signed(t, "other", jwt.MapClaims{"sub": "u1"})).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", signed(t, "k", jwt.MapClaims{"role": "ADMIN"})).Code,
		"a token without subject identifies nobody")
	expired := signed(t, "k", jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", expired).Code)
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.POST("/admin", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		JWTAuth("k"), RequireRole("ADMIN"))

	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/admin", signed(t, "k", jwt.MapClaims{"sub": "a", "role": "ADMIN"})).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodPost, "/admin", signed(t, "k", jwt.MapClaims{"sub": "c", "role": "CUSTOMER"})).Code)
}

func TestTokenBucket(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: time.Hour, KeyStrategy: "ip_route", Prefix: "rl"}

	e := echo.New()
	e.POST("/book", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, NewTokenBucket(cfg, rdb))

	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/book", "").Code)
	rec := serve(e, http.MethodPost, "/book", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodPost, "/book", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	mr.Close()
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/book", "").Code, "redis outage fails open")
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
		Prefix: "cache", MaxBodyBytes: 1 << 20}

	calls := 0
	e := echo.New()
	e.GET("/shows/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
	}, NewRedisCache(cfg, rdb))

	rec := serve(e, http.MethodGet, "/shows/1", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = serve(e, http.MethodGet, "/shows/1", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/json")

	rec = serve(e, http.MethodGet, "/shows/2", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), "each show has its own entry")
	assert.JSONEq(t, `{"id":"2"}`, rec.Body.String())
	assert.Equal(t, 2, calls)
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.GET("/boom", func(c echo.Context) error { return assert.AnError })

	rec := serve(e, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
