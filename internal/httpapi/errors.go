package httpapi

import (
	"errors"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/internal/observability"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/labstack/echo/v4"
)

// writeError renders an engine error with the same status and body the
// net/http middleware uses.
func writeError(c echo.Context, err error) error {
	switch kind := goGuard.KindOf(err); kind {
	case goGuard.KindInternal, goGuard.KindStoreUnavailable:
		ctx := c.Request().Context()
		logging.FromContext(ctx).Error("request_failed", "kind", kind.String(), "error", err)
		if kind == goGuard.KindInternal {
			observability.CaptureError(ctx, err, map[string]string{"path": c.Path()})
		}
	}

	r := middleware.Describe(err)
	if r.RetryAfter != "" {
		c.Response().Header().Set("Retry-After", r.RetryAfter)
	}
	return writeMessage(c, r.Status, r.Message)
}

func writeMessage(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// errorHandler renders router errors (404, 405) in the same body shape as
// engine errors.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = writeMessage(c, status, msg)
}
