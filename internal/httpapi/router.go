// Package httpapi is the echo transport for the goGuard engine.
package httpapi

import (
	"log/slog"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Deps struct {
	Engine *goGuard.Engine
	Logger *slog.Logger
	// TrustProxy takes the client IP from the first X-Forwarded-For hop.
	TrustProxy bool
	// Metrics serves /metrics. Nil uses the Prometheus exporter over Engine.
	Metrics http.Handler
}

// New builds an echo instance with the middleware chain and all routes.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPDirect()
	e.HTTPErrorHandler = errorHandler
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.RequestID(),
		RequestLogger(d.Logger),
		Recover(),
		ClientContext(d.TrustProxy),
	)

	Register(e, d)
	return e
}

// Register mounts the routes on e.
func Register(e *echo.Echo, d Deps) {
	h := &AuthHTTP{Engine: d.Engine}

	metrics := d.Metrics
	if metrics == nil {
		metrics = prometheus.NewExporter(d.Engine).Handler()
	}

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics))

	auth := e.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)

	authMw := RequireUser(d.Engine)
	auth.POST("/logout-all", h.LogoutAll, authMw)
	auth.GET("/me", h.Me, authMw, RateLimitUser(d.Engine))
	auth.GET("/admin-only", h.AdminOnly, authMw, RequireRole(d.Engine, goGuard.RoleAdmin))
}
