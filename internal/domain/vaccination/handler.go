package vaccination

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(authed *echo.Group, p auth.Policy) {
	authed.POST("/parent/schedule", h.RequestSchedule, auth.Authorize(p, auth.OpRequestSchedule))
	authed.GET("/parent/vaccination", h.ListForParent, auth.Authorize(p, auth.OpListOwnSchedule))
	authed.DELETE("/parent/cancel-vaccination/:id", h.CancelSchedule, auth.Authorize(p, auth.OpCancelSchedule))
	authed.GET("/parent/dashboard", h.Dashboard, auth.Authorize(p, auth.OpParentDashboard))

	authed.GET("/doctor/vaccinations", h.ListForDoctor, auth.Authorize(p, auth.OpListDoctorSchedule))
	authed.PUT("/doctor/complete-vaccination/:id", h.CompleteSchedule, auth.Authorize(p, auth.OpCompleteSchedule))

	authed.PUT("/admin/vaccination/:id/review", h.ReviewSchedule, auth.Authorize(p, auth.OpReviewSchedule))
	authed.DELETE("/admin/vaccination/:id", h.DeleteSchedule, auth.Authorize(p, auth.OpDeleteSchedule))
	authed.GET("/admin/vaccinations/pending", h.ListPending, auth.Authorize(p, auth.OpListPendingSchedule))
	authed.GET("/admin/vaccinations", h.List, auth.Authorize(p, auth.OpListAllSchedules))
}

func scheduleID(c echo.Context, notFound string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("%s", notFound)
	}
	return id, nil
}

func (h *Handler) RequestSchedule(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	ctx := c.Request().Context()
	sched, err := h.svc.RequestSchedule(ctx, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) ListForParent(c echo.Context) error {
	ctx := c.Request().Context()
	views, err := h.svc.ListForParent(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) CancelSchedule(c echo.Context) error {
	id, err := scheduleID(c, "Vaccination schedule not found or not authorized.")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.svc.CancelSchedule(ctx, auth.UserIDFromContext(ctx), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Vaccination schedule cancelled successfully."})
}

func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	d, err := h.svc.Dashboard(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListForDoctor(c echo.Context) error {
	ctx := c.Request().Context()
	views, err := h.svc.ListForDoctor(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) CompleteSchedule(c echo.Context) error {
	id, err := scheduleID(c, "vaccination schedule not found or not authorized.")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sched, err := h.svc.CompleteSchedule(ctx, auth.UserIDFromContext(ctx), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Vaccination completed successfully.", "schedule": sched})
}

func (h *Handler) ReviewSchedule(c echo.Context) error {
	id, err := scheduleID(c, "Vaccination schedule not found.")
	if err != nil {
		return err
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	view, err := h.svc.ReviewSchedule(c.Request().Context(), id, req.Decision)
	if err != nil {
		return err
	}
	msg := "Vaccination schedule approved."
	if req.Decision == DecisionReject {
		msg = "Vaccination schedule rejected."
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": msg, "schedule": view})
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	id, err := scheduleID(c, "Vaccination schedule not found.")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSchedule(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Vaccination schedule deleted successfully."})
}

func (h *Handler) ListPending(c echo.Context) error {
	views, err := h.svc.ListPending(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	views, total, err := h.svc.List(c.Request().Context(), Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}
