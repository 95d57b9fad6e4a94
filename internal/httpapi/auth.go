package httpapi

import (
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/labstack/echo/v4"
)

type AuthHTTP struct {
	Engine *goGuard.Engine
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func publicUser(u *goGuard.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Role: string(u.Role)}
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_bad_body", "error", err)
		return writeMessage(c, http.StatusBadRequest, "invalid body")
	}

	u, err := h.Engine.Register(ctx, req.Username, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	l.Info("register_successful", "user_id", u.ID)
	return c.JSON(http.StatusCreated, publicUser(u))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_bad_body", "error", err)
		return writeMessage(c, http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Engine.Login(ctx, req.Username, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return writeMessage(c, http.StatusBadRequest, "refreshToken is required")
	}

	pair, err := h.Engine.RotateRefresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return writeMessage(c, http.StatusBadRequest, "refreshToken is required")
	}

	if err := h.Engine.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) LogoutAll(c echo.Context) error {
	u := CurrentUser(c)
	n, err := h.Engine.LogoutAll(c.Request().Context(), u.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, publicUser(CurrentUser(c)))
}

func (h *AuthHTTP) AdminOnly(c echo.Context) error {
	u := CurrentUser(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "Hello admin " + u.Username + "!"})
}

func (h *AuthHTTP) Health(c echo.Context) error {
	if err := h.Engine.Health(c.Request().Context()); err != nil {
		logging.FromContext(c.Request().Context()).Warn("health_check_failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
