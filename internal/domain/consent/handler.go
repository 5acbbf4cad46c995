package consent

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthid/healthid/internal/platform/auth"
	"github.com/healthid/healthid/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/access-requests", h.RequestAccess, auth.RequireRole(
		auth.RoleDoctor, auth.RoleHospital, auth.RoleInsuranceProvider, auth.RoleEmergencyResponder))
	api.GET("/requester/access-requests", h.ListMyRequests, auth.RequireRole(
		auth.RoleDoctor, auth.RoleHospital, auth.RoleInsuranceProvider, auth.RoleEmergencyResponder))

	patient := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	patient.GET("/access-requests", h.ListPendingRequests)
	patient.GET("/access-granted", h.ListGranted)
	patient.POST("/access-requests/:id/approve", h.Approve)
	patient.POST("/access-requests/:id/reject", h.Reject)
	patient.POST("/access/:id/revoke", h.Revoke)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "access request not found")
	case errors.Is(err, ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrDuplicateActiveRequest):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAccessType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

type requestAccessBody struct {
	PatientID  string `json:"patient_id"`
	AccessType string `json:"access_type"`
	Reason     string `json:"reason"`
}

func (h *Handler) RequestAccess(c echo.Context) error {
	ctx := c.Request().Context()
	var body requestAccessBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patientID, err := uuid.Parse(body.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	req, err := h.svc.RequestAccess(ctx, auth.UserIDFromContext(ctx), patientID, AccessType(body.AccessType), body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) respond(c echo.Context, decision Decision) error {
	ctx := c.Request().Context()
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	req, err := h.svc.RespondToRequest(ctx, auth.UserIDFromContext(ctx), requestID, decision)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Approve(c echo.Context) error { return h.respond(c, DecisionGrant) }
func (h *Handler) Reject(c echo.Context) error  { return h.respond(c, DecisionReject) }

func (h *Handler) Revoke(c echo.Context) error {
	ctx := c.Request().Context()
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	req, err := h.svc.RevokeAccess(ctx, auth.UserIDFromContext(ctx), requestID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListPendingRequests(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(ctx, auth.UserIDFromContext(ctx), StatusPending, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListGranted(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(ctx, auth.UserIDFromContext(ctx), StatusGranted, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListMyRequests(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByRequester(ctx, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
