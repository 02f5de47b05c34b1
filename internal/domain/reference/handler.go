package reference

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public reference listings on public and the
// admin management endpoints on authed.
func (h *Handler) RegisterRoutes(public, authed *echo.Group, p auth.Policy) {
	public.GET("/vaccines", h.ListVaccines)
	public.GET("/regions", h.ListRegions)

	admin := authed.Group("/admin", auth.Authorize(p, auth.OpManageReference))
	admin.POST("/vaccine", h.CreateVaccine)
	admin.PUT("/vaccine/:id", h.UpdateVaccine)
	admin.DELETE("/vaccine/:id", h.DeleteVaccine)

	admin.GET("/venues", h.ListVenues)
	admin.POST("/venue", h.CreateVenue)
	admin.PUT("/venue/:id", h.UpdateVenue)
	admin.DELETE("/venue/:id", h.DeleteVenue)

	admin.POST("/region", h.CreateRegion)
	admin.PUT("/region/:id", h.UpdateRegion)
	admin.DELETE("/region/:id", h.DeleteRegion)
}

func pathID(c echo.Context, kind string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("%s not found.", kind)
	}
	return id, nil
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	return nil
}

// -- Vaccine --

func (h *Handler) ListVaccines(c echo.Context) error {
	vaccines, err := h.svc.ListVaccines(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vaccines)
}

func (h *Handler) CreateVaccine(c echo.Context) error {
	var req VaccineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.CreateVaccine(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) UpdateVaccine(c echo.Context) error {
	id, err := pathID(c, "Vaccine")
	if err != nil {
		return err
	}
	var req VaccineRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.UpdateVaccine(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVaccine(c echo.Context) error {
	id, err := pathID(c, "Vaccine")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVaccine(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Vaccine deleted successfully."})
}

// -- Venue --

func (h *Handler) ListVenues(c echo.Context) error {
	venues, err := h.svc.ListVenues(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, venues)
}

func (h *Handler) CreateVenue(c echo.Context) error {
	var req VenueRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.CreateVenue(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) UpdateVenue(c echo.Context) error {
	id, err := pathID(c, "Venue")
	if err != nil {
		return err
	}
	var req VenueRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.UpdateVenue(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVenue(c echo.Context) error {
	id, err := pathID(c, "Venue")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVenue(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Venue deleted successfully."})
}

// -- Region --

func (h *Handler) ListRegions(c echo.Context) error {
	regions, err := h.svc.ListRegions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, regions)
}

func (h *Handler) CreateRegion(c echo.Context) error {
	var req RegionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := h.svc.CreateRegion(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) UpdateRegion(c echo.Context) error {
	id, err := pathID(c, "Region")
	if err != nil {
		return err
	}
	var req RegionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	r, err := h.svc.UpdateRegion(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteRegion(c echo.Context) error {
	id, err := pathID(c, "Region")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRegion(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"msg": "Region deleted successfully."})
}
