package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware returns an echo middleware recording request metrics.
//
// The active-connections gauge is incremented on entry and decremented in a
// defer so a panicking handler cannot leak the increment. Handler errors are
// resolved through the error handler before the status is read, so the
// recorded status matches what the client saw.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ActiveConnections.Inc()
			defer ActiveConnections.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				// Commit the error response now so the final status is
				// visible below. The outer error handler skips committed
				// responses.
				c.Error(err)
			}

			endpoint := c.Path()
			if endpoint == "" {
				endpoint = c.Request().URL.Path
			}
			ObserveRequest(c.Request().Method, endpoint, c.Response().Status, time.Since(start))
			return err
		}
	}
}
