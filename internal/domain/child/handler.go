package child

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(authed *echo.Group, p auth.Policy) {
	g := authed.Group("/parent", auth.Authorize(p, auth.OpManageChildren))
	g.POST("/add-child", h.AddChild)
	g.GET("/children", h.ListChildren)
	g.GET("/children/:id", h.GetChild)
}

func (h *Handler) AddChild(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	req.Name = middleware.SanitizeString(req.Name)

	ctx := c.Request().Context()
	child, err := h.svc.AddChild(ctx, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, child)
}

func (h *Handler) ListChildren(c echo.Context) error {
	ctx := c.Request().Context()
	children, err := h.svc.ListChildren(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, children)
}

func (h *Handler) GetChild(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound("Child not found or doesn't belong to the parent")
	}
	ctx := c.Request().Context()
	child, err := h.svc.GetChild(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, child)
}
