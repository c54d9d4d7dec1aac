package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/ean_catalog/internal/logging"
	"github.com/Skotchmaster/ean_catalog/internal/metrics"
	"github.com/Skotchmaster/ean_catalog/internal/service"
	"github.com/Skotchmaster/ean_catalog/internal/session"
	"github.com/Skotchmaster/ean_catalog/pkg/transport"
)

type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type AuthHTTP struct {
	Svc      *service.AuthService
	Sessions *session.Manager

	// Limiter and Metrics are optional.
	Limiter LoginLimiter
	Metrics *metrics.Metrics
}

func userDTO(s *session.Session) transport.User {
	return transport.User{ID: s.UserID, Username: s.Username, Nome: s.DisplayName}
}

func (h *AuthHTTP) observe(outcome string) {
	if h.Metrics != nil {
		h.Metrics.ObserveLogin(outcome)
	}
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	if h.Limiter != nil {
		ok, err := h.Limiter.Allow(ctx, c.RealIP())
		if err != nil {
			l.Warn("login_rate_limit_unavailable", "error", err)
		} else if !ok {
			h.observe("rate_limited")
			l.Warn("login_failed", "status", 429, "reason", "too many attempts")
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
		}
	}

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.observe("invalid_request")
			l.Warn("login_failed", "status", 400, "reason", "missing fields")
			return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
		case errors.Is(err, service.ErrInvalidCredentials):
			h.observe("invalid_credentials")
			l.Warn("login_failed", "status", 401, "reason", "invalid credentials")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		default:
			h.observe("error")
			l.Error("login_failed", "status", 500, "reason", "internal error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	c.SetCookie(h.Sessions.Cookie(res.Token))
	h.observe("success")
	l.Info("login_successful", "user_id", res.Session.UserID)

	return c.JSON(http.StatusOK, transport.LoginResponse{
		Success: true,
		User:    userDTO(res.Session),
	})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	sess, err := h.Sessions.FromRequest(c.Request())
	if err != nil {
		if !errors.Is(err, session.ErrUnauthenticated) {
			c.SetCookie(h.Sessions.ClearCookie())
		}
		return echo.NewHTTPError(http.StatusUnauthorized, authMessage(err))
	}
	return c.JSON(http.StatusOK, transport.MeResponse{User: userDTO(sess)})
}

// Logout never reads the body and always succeeds, so it can be sent as a
// beacon while the page unloads.
func (h *AuthHTTP) Logout(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "auth_logout")

	c.SetCookie(h.Sessions.ClearCookie())
	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
