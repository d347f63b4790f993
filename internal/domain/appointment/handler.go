package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinichq/clinic-server/internal/platform/auth"
	"github.com/clinichq/clinic-server/internal/platform/middleware"
	"github.com/clinichq/clinic-server/internal/platform/routemeta"
	"github.com/clinichq/clinic-server/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes binds appointment endpoints and records their access
// metadata in the registry.
func (h *Handler) RegisterRoutes(e *echo.Echo, reg *routemeta.Registry) {
	staff := auth.RequireRole(auth.DoctorRole, auth.NurseRole, auth.ReceptionistRole)

	e.POST("/api/v1/appointments", h.Create, staff)
	reg.Register(routemeta.Route{
		Method: http.MethodPost, Path: "/api/v1/appointments",
		Resource: "appointment",
	})

	e.GET("/api/v1/appointments/queue", h.WaitingQueue, staff)
	reg.Register(routemeta.Route{
		Method: http.MethodGet, Path: "/api/v1/appointments/queue",
		Resource: "appointment",
	})

	// The :id parameter here is the appointment id, not a patient id, so no
	// PatientParam: GetByID reports the owning patient once it is loaded.
	e.GET("/api/v1/appointments/:id", h.GetByID, auth.RequireAuthenticated())
	reg.Register(routemeta.Route{
		Method: http.MethodGet, Path: "/api/v1/appointments/:id",
		Resource: "appointment", PatientScoped: true,
	})

	e.GET("/api/v1/appointments", h.List, staff)
	reg.Register(routemeta.Route{
		Method: http.MethodGet, Path: "/api/v1/appointments",
		Resource: "appointment",
	})

	e.PATCH("/api/v1/appointments/:id/status", h.UpdateStatus, staff)
	reg.Register(routemeta.Route{
		Method: http.MethodPatch, Path: "/api/v1/appointments/:id/status",
		Resource: "appointment",
	})
}

type createRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	VisitType *string   `json:"visit_type"`
	Notes     *string   `json:"notes"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a := &Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		VisitType: req.VisitType,
		Notes:     req.Notes,
	}
	if err := h.service.Create(c.Request().Context(), a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	a, err := h.service.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return err
	}
	middleware.SetAuditPatient(c, a.PatientID.String())
	return c.JSON(http.StatusOK, a)
}

// List filters by patient_id or doctor_id; one of the two is required so a
// caller cannot enumerate the whole table.
func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	ctx := c.Request().Context()

	if raw := c.QueryParam("patient_id"); raw != "" {
		patientID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.service.ListByPatient(ctx, patientID, p.Limit, p.Offset)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
	}

	if raw := c.QueryParam("doctor_id"); raw != "" {
		doctorID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		items, total, err := h.service.ListByDoctor(ctx, doctorID, p.Limit, p.Offset)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
	}

	return echo.NewHTTPError(http.StatusBadRequest, "patient_id or doctor_id query parameter is required")
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}

	a, err := h.service.Transition(c.Request().Context(), id, req.Status)
	if err != nil {
		var te *TransitionError
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		case errors.As(err, &te):
			return echo.NewHTTPError(http.StatusConflict, map[string]string{
				"reason":  te.ReasonCode(),
				"message": te.Error(),
			})
		case errors.Is(err, ErrVersionConflict):
			return echo.NewHTTPError(http.StatusConflict, map[string]string{
				"reason":  "VersionConflict",
				"message": err.Error(),
			})
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) WaitingQueue(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.service.WaitingQueue(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}
