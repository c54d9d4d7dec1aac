// Package requestlog is the echo middleware that gives every request its own
// logger and writes one line when the request completes.
package requestlog

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/ean_catalog/internal/logging"
)

type Config struct {
	Logger *slog.Logger

	// Skipper leaves the context logger in place but suppresses the
	// completion line, for probes and scrapes.
	Skipper middleware.Skipper

	// UserID reports the authenticated user once the handler has run.
	UserID func(c echo.Context) (uint, bool)
}

func New(cfg Config) echo.MiddlewareFunc {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			l := cfg.Logger.With(
				"method", req.Method,
				"route", c.Path(),
				"path", req.URL.Path,
				"remote_ip", c.RealIP(),
			)
			if rid != "" {
				l = l.With("request_id", rid)
			}
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				// the error is rendered here so the status below is final
				c.Error(err)
			}
			if cfg.Skipper(c) {
				return nil
			}

			attrs := []any{
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if cfg.UserID != nil {
				if id, ok := cfg.UserID(c); ok {
					attrs = append(attrs, "user_id", id)
				}
			}

			status := c.Response().Status
			switch {
			case status >= 500:
				l.Error("request_completed", append(attrs, "error", err)...)
			case status >= 400:
				l.Warn("request_completed", attrs...)
			default:
				l.Info("request_completed", append(attrs, "bytes", c.Response().Size)...)
			}
			return nil
		}
	}
}
