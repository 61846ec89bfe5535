package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
)

// DefaultStackSize bounds the captured stack trace (4KB).
const DefaultStackSize = 4 << 10

// RecoveryConfig holds configuration for the panic recovery middleware.
type RecoveryConfig struct {
	Logger *slog.Logger

	// StackSize is the maximum size of the captured stack trace.
	// Zero means DefaultStackSize.
	StackSize int
}

// DefaultRecoveryConfig returns a RecoveryConfig with sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:    slog.Default(),
		StackSize: DefaultStackSize,
	}
}

// Recovery returns a middleware that converts handler panics into logged
// 500 responses. Only the panicking goroutine's stack is captured.
func Recovery(config RecoveryConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.StackSize == 0 {
		config.StackSize = DefaultStackSize
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}

				stack := make([]byte, config.StackSize)
				stack = stack[:runtime.Stack(stack, false)]

				req := c.Request()
				attrs := []any{
					slog.String("error", err.Error()),
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.String("remote_ip", c.RealIP()),
					slog.String("stack", string(stack)),
				}

				// The logging middleware runs inside recovery, so the
				// request ID is already on the context here.
				if requestID := GetRequestID(c); requestID != "" {
					attrs = append(attrs, slog.String("request_id", requestID))
				}

				config.Logger.Error("panic recovered", attrs...)

				if !c.Response().Committed {
					_ = c.JSON(http.StatusInternalServerError, map[string]any{
						"success": false,
						"error": map[string]string{
							"code":    "INTERNAL_ERROR",
							"message": "An internal error occurred",
						},
					})
				}
			}()

			return next(c)
		}
	}
}
