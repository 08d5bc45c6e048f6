package ratelimit

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hektorlabs/vdbgate/internal/apierror"
	"github.com/hektorlabs/vdbgate/internal/metrics"
)

// unratedRoutes are operational endpoints exempt from quotas.
var unratedRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Middleware returns an echo middleware rejecting over-quota requests with
// 429 before authentication and handler execution. Denials are counted in
// the dedicated denial metric; the request metric records them under their
// 429 status, outside the success classes.
func Middleware(limiter Limiter, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if unratedRoutes[route] {
				return next(c)
			}

			key := c.RealIP()
			ok, retryAfter := limiter.Allow(key, route)
			if !ok {
				metrics.RateLimitedTotal.WithLabelValues(route).Inc()
				logger.Debug("rate limited",
					zap.String("key", key),
					zap.String("route", route),
				)
				return apierror.RateLimited(retryAfter)
			}
			return next(c)
		}
	}
}
