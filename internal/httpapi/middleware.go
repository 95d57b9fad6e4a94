package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/internal/observability"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/labstack/echo/v4"
)

const userKey = "goguard.user"

// RequestLogger puts a request-scoped logger into the context and logs one
// line per request once the handler has returned.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := base.With(
				"method", c.Request().Method,
				"path", c.Path(),
				"url", c.Request().URL.Path,
			)
			if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
				l = l.With("request_id", rid)
			}
			c.SetRequest(c.Request().WithContext(logging.IntoContext(c.Request().Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			dur := time.Since(start)
			status := c.Response().Status

			switch {
			case err != nil || status >= 500:
				l.Error("request completed", "status", status, "duration_ms", dur.Milliseconds(), "error", errString(err))
			case status >= 400:
				l.Warn("request completed", "status", status, "duration_ms", dur.Milliseconds())
			default:
				l.Info("request completed", "status", status, "duration_ms", dur.Milliseconds(), "bytes", c.Response().Size)
			}
			return nil
		}
	}
}

// Recover turns a handler panic into a 500 and reports it to Sentry.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := c.Request().Context()
				logging.FromContext(ctx).Error("panic recovered", "panic", rec)
				observability.CapturePanic(ctx, rec, map[string]string{
					"method": c.Request().Method,
					"path":   c.Path(),
				})
				err = writeMessage(c, http.StatusInternalServerError, "internal error")
			}()
			return next(c)
		}
	}
}

// ClientContext stores the client IP and request id where the engine reads
// them for rate limiting, lockout keys and audit events.
func ClientContext(trustProxy bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := goGuard.WithClientIP(c.Request().Context(), clientIP(c, trustProxy))
			if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
				ctx = goGuard.WithRequestID(ctx, rid)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func clientIP(c echo.Context, trustProxy bool) string {
	if trustProxy {
		if xff := c.Request().Header.Get(echo.HeaderXForwardedFor); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// RequireUser resolves the bearer token and stores the user for CurrentUser.
func RequireUser(engine *goGuard.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return writeMessage(c, http.StatusUnauthorized, "missing bearer token")
			}
			u, err := engine.ResolveCurrentUser(c.Request().Context(), token)
			if err != nil {
				return writeError(c, err)
			}
			c.Set(userKey, u)
			return next(c)
		}
	}
}

// RequireRole must run after RequireUser.
func RequireRole(engine *goGuard.Engine, role goGuard.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := engine.RequireRole(CurrentUser(c), role); err != nil {
				return writeError(c, err)
			}
			return next(c)
		}
	}
}

// RateLimitUser applies the api scope keyed by the authenticated user id.
func RateLimitUser(engine *goGuard.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return writeMessage(c, http.StatusUnauthorized, "missing bearer token")
			}
			identity := "user:" + strconv.FormatInt(u.ID, 10)
			if err := engine.CheckRateLimit(c.Request().Context(), goGuard.ScopeAPI, identity); err != nil {
				return writeError(c, err)
			}
			return next(c)
		}
	}
}

// CurrentUser returns the user set by RequireUser, or nil.
func CurrentUser(c echo.Context) *goGuard.User {
	u, _ := c.Get(userKey).(*goGuard.User)
	return u
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
