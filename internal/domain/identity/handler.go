package identity

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/pkg/pagination"
)

type Handler struct {
	svc          *Service
	cookieTTL    time.Duration
	secureCookie bool
}

// NewHandler builds the auth and user management handlers. secureCookie
// marks the session cookie Secure; it is set in production.
func NewHandler(svc *Service, cookieTTL time.Duration, secureCookie bool) *Handler {
	return &Handler{svc: svc, cookieTTL: cookieTTL, secureCookie: secureCookie}
}

func (h *Handler) RegisterRoutes(public, authed *echo.Group, p auth.Policy) {
	public.POST("/auth/signup", h.Signup)
	public.POST("/auth/signin", h.Signin)

	profile := auth.Authorize(p, auth.OpViewProfile)
	authed.POST("/auth/logout", h.Logout, profile)
	authed.GET("/auth/profile", h.Profile, profile)

	manage := authed.Group("/admin", auth.Authorize(p, auth.OpManageUsers))
	manage.GET("/users", h.ListUsers)
	manage.DELETE("/user/:id", h.DeleteUser)
	manage.POST("/doctor", h.CreateDoctor)
	manage.GET("/doctors", h.ListDoctors)
}

func (h *Handler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	resp, err := h.svc.Signup(c.Request().Context(), req)
	if err != nil {
		return err
	}
	h.setSessionCookie(c, resp.Token, h.cookieTTL)
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Signin(c echo.Context) error {
	var req SigninRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	resp, err := h.svc.Signin(c.Request().Context(), req)
	if err != nil {
		return err
	}
	h.setSessionCookie(c, resp.Token, h.cookieTTL)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context()); err != nil {
		return err
	}
	h.setSessionCookie(c, "", -1)
	return c.JSON(http.StatusOK, echo.Map{"msg": "Logged out successfully"})
}

func (h *Handler) Profile(c echo.Context) error {
	u, err := h.svc.GetUser(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.Profile())
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), c.QueryParam("role"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg))
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound("User not found.")
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteUser(ctx, auth.UserIDFromContext(ctx), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "User deleted successfully."})
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	u, err := h.svc.CreateDoctor(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u.Profile())
}

// setSessionCookie writes the http-only session cookie. A negative ttl
// clears it.
func (h *Handler) setSessionCookie(c echo.Context, token string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl < 0 {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else {
		cookie.MaxAge = int(ttl.Seconds())
	}
	c.SetCookie(cookie)
}
