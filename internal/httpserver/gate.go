package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/ean_catalog/internal/session"
)

const (
	sessionKey = "session"
	loginPath  = "/login"
	homePath   = "/"
)

func gateExempt(path string) bool {
	return strings.HasPrefix(path, "/api/") ||
		strings.HasPrefix(path, "/health/") ||
		path == "/metrics"
}

// SessionGate redirects page requests without a valid session to the login
// page, and logged-in users away from it. API, health and metrics paths pass
// through untouched.
func SessionGate(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if gateExempt(path) {
				return next(c)
			}

			sess, err := sessions.FromRequest(c.Request())
			if path == loginPath {
				if err == nil {
					return c.Redirect(http.StatusFound, homePath)
				}
				return next(c)
			}

			if err != nil {
				if !errors.Is(err, session.ErrUnauthenticated) {
					c.SetCookie(sessions.ClearCookie())
				}
				return c.Redirect(http.StatusFound, loginPath)
			}

			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

// RequireSession is the API counterpart of SessionGate: it answers 401
// instead of redirecting.
func RequireSession(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := sessions.FromRequest(c.Request())
			if err != nil {
				if !errors.Is(err, session.ErrUnauthenticated) {
					c.SetCookie(sessions.ClearCookie())
				}
				return echo.NewHTTPError(http.StatusUnauthorized, authMessage(err))
			}

			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrExpired):
		return "session expired"
	case errors.Is(err, session.ErrInvalidToken):
		return "invalid session"
	default:
		return "not authenticated"
	}
}

func SessionFrom(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionKey).(*session.Session)
	return sess
}
