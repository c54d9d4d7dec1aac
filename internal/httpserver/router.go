package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/ean_catalog/internal/metrics"
	"github.com/Skotchmaster/ean_catalog/internal/middleware/requestlog"
	"github.com/Skotchmaster/ean_catalog/internal/session"
)

type Deps struct {
	AuthHandler    *AuthHTTP
	CatalogHandler *CatalogHTTP
	Sessions       *session.Manager
	Logger         *slog.Logger

	// Metrics and Ready are optional.
	Metrics *metrics.Metrics
	Ready   func(ctx context.Context) error
}

// New builds the echo instance with the middleware chain and all routes.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware)
	}
	e.Use(requestlog.New(requestlog.Config{
		Logger:  d.Logger,
		Skipper: isProbe,
		UserID: func(c echo.Context) (uint, bool) {
			if s := SessionFrom(c); s != nil {
				return s.UserID, true
			}
			return 0, false
		},
	}))
	e.Use(SessionGate(d.Sessions))

	Register(e, d)
	return e
}

func isProbe(c echo.Context) bool {
	p := c.Request().URL.Path
	return strings.HasPrefix(p, "/health/") || p == "/metrics"
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	e.GET("/", homePage)
	e.GET("/login", loginPage)

	auth := e.Group("/api/auth")
	auth.POST("/login", d.AuthHandler.Login)
	auth.GET("/me", d.AuthHandler.Me)
	auth.POST("/logout", d.AuthHandler.Logout)

	products := e.Group("/api/products", RequireSession(d.Sessions))
	products.GET("", d.CatalogHandler.Search)
	products.GET("/search", d.CatalogHandler.QuickSearch)
	products.GET("/template", d.CatalogHandler.Template)
	products.POST("", d.CatalogHandler.CreateProduct)
	products.POST("/import", d.CatalogHandler.ImportProducts)
	products.PUT("/:sku", d.CatalogHandler.UpdateProduct)
	products.DELETE("/:sku", d.CatalogHandler.DeleteProduct)
}
