// Package apierror defines the gateway's error taxonomy and its mapping to
// HTTP responses.
//
// Every error that crosses the handler boundary is one of the kinds below.
// The mapping to status codes happens in exactly one place (Handler); handlers
// and middleware build taxonomy errors and never write statuses themselves.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Kind classifies an error for status mapping and logging.
type Kind int

const (
	// KindValidation indicates malformed client input. Never reaches the engine.
	KindValidation Kind = iota

	// KindAuth indicates a missing, invalid, or expired credential.
	KindAuth

	// KindRateLimited indicates the caller exceeded its request quota.
	KindRateLimited

	// KindNotFound indicates a referenced collection or document is absent.
	KindNotFound

	// KindUnavailable indicates the engine handle is not Ready.
	KindUnavailable

	// KindBackend indicates an engine call failed after the handle was Ready.
	KindBackend
)

// statusOf maps each kind to its HTTP status code.
func statusOf(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindBackend:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// FieldError names a single offending request field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error is the taxonomy error type returned by handlers and middleware.
type Error struct {
	Kind    Kind
	Message string

	// Op is the engine operation name for KindBackend errors.
	Op string

	// Fields lists offending fields for KindValidation errors.
	Fields []FieldError

	// RetryAfter is the hint for KindRateLimited errors.
	RetryAfter time.Duration

	// err is the underlying cause; logged, never sent to clients.
	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.err }

// Validation builds a validation error listing the offending fields.
func Validation(fields ...FieldError) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "invalid request",
		Fields:  fields,
	}
}

// Unauthorized builds an auth error with a client-safe message.
func Unauthorized(message string, cause error) *Error {
	return &Error{Kind: KindAuth, Message: message, err: cause}
}

// RateLimited builds a 429 error carrying a retry hint.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// NotFound builds a 404 error for an absent resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Unavailable builds a 503 error for a not-Ready engine handle.
func Unavailable(cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: "backend unavailable", err: cause}
}

// Backend wraps a failed engine operation. The underlying message is logged
// with full detail; only the operation name reaches the client.
func Backend(op string, cause error) *Error {
	return &Error{
		Kind:    KindBackend,
		Message: fmt.Sprintf("operation %s failed", op),
		Op:      op,
		err:     cause,
	}
}

// response is the wire shape for all error replies.
type response struct {
	Error      string       `json:"error"`
	Fields     []FieldError `json:"fields,omitempty"`
	RetryAfter int          `json:"retry_after_seconds,omitempty"`
}

// Handler returns an echo HTTPErrorHandler applying the taxonomy-to-status
// table. Unknown errors are treated as internal and their details withheld.
func Handler(logger *zap.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *Error
		if errors.As(err, &apiErr) {
			status := statusOf(apiErr.Kind)

			if apiErr.Kind == KindBackend {
				logger.Error("engine operation failed",
					zap.String("operation", apiErr.Op),
					zap.String("path", c.Path()),
					zap.Error(apiErr.err),
				)
			} else {
				logger.Debug("request rejected",
					zap.Int("status", status),
					zap.String("path", c.Path()),
					zap.Error(err),
				)
			}

			resp := response{Error: apiErr.Message, Fields: apiErr.Fields}
			if apiErr.Kind == KindRateLimited {
				secs := int(apiErr.RetryAfter.Round(time.Second).Seconds())
				if secs < 1 {
					secs = 1
				}
				resp.RetryAfter = secs
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			}

			if writeErr := c.JSON(status, resp); writeErr != nil {
				logger.Warn("failed to write error response", zap.Error(writeErr))
			}
			return
		}

		// echo's own errors (404 route miss, 405, bind failures).
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			msg := http.StatusText(httpErr.Code)
			if s, ok := httpErr.Message.(string); ok {
				msg = s
			}
			if writeErr := c.JSON(httpErr.Code, response{Error: msg}); writeErr != nil {
				logger.Warn("failed to write error response", zap.Error(writeErr))
			}
			return
		}

		logger.Error("unhandled error",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		if writeErr := c.JSON(http.StatusInternalServerError, response{Error: "internal error"}); writeErr != nil {
			logger.Warn("failed to write error response", zap.Error(writeErr))
		}
	}
}
