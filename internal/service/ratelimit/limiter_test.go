package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestAllowRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")
	assert.Equal(t, time.Second, l.RetryAfter("a"))

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestIdleBucketsEvicted(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 10000; i++ {
		l.Allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	assert.Equal(t, 10000, l.Len())

	now = now.Add(24 * time.Hour)
	assert.True(t, l.Allow("192.168.0.1"))
	assert.Equal(t, 1, l.Len())
}

func TestPartiallyRefilledBucketsKept(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(3, 0.001, time.Minute)
	l.now = func() time.Time { return now }

	// Neither bucket has refilled to capacity after the TTL.
	for i := 0; i < 3; i++ {
		l.Allow("drained")
	}
	l.Allow("idle")

	now = now.Add(2 * time.Minute)
	l.Allow("fresh")
	assert.Equal(t, 3, l.Len())
	assert.False(t, l.Allow("drained"), "evicting would hand out a fresh burst")
	assert.Greater(t, l.RetryAfter("drained"), time.Duration(0))
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	l := New(1, 0.001, 0)
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, Middleware(l))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
