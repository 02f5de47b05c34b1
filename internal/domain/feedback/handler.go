package feedback

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/middleware"
	"github.com/vaxtrack/vaxtrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(authed *echo.Group, p auth.Policy) {
	authed.POST("/feedback", h.Submit, auth.Authorize(p, auth.OpSubmitFeedback))
	authed.GET("/admin/feedback", h.List, auth.Authorize(p, auth.OpReadFeedback))
}

func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	req.Message = middleware.SanitizeString(req.Message)

	ctx := c.Request().Context()
	if _, err := h.svc.Submit(ctx, auth.UserIDFromContext(ctx), req); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"msg": "Thank you for your feedback."})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg))
}
