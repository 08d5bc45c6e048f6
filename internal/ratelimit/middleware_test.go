package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/hektorlabs/vdbgate/internal/apierror"
)

func newRatedEcho(limiter Limiter) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apierror.Handler(zap.NewNop())
	e.Use(Middleware(limiter, zap.NewNop()))

	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/health", ok)
	e.GET("/stats", ok)
	return e
}

func doGet(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_DeniesOverQuota(t *testing.T) {
	e := newRatedEcho(NewLocal(Config{Default: 2, Window: time.Minute}))

	assert.Equal(t, http.StatusOK, doGet(e, "/stats").Code)
	assert.Equal(t, http.StatusOK, doGet(e, "/stats").Code)

	rec := doGet(e, "/stats")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMiddleware_HealthIsExempt(t *testing.T) {
	e := newRatedEcho(NewLocal(Config{Default: 1, Window: time.Minute}))

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, doGet(e, "/health").Code)
	}
}
