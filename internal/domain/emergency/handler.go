package emergency

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/healthid/healthid/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	qr := api.Group("/user/qr", auth.RequireRole(auth.RolePatient))
	qr.POST("", h.GenerateQR)
	qr.GET("", h.GetQR)
	qr.GET("/image", h.QRImage)

	api.POST("/qr/scan", h.Scan, auth.RequireRole(
		auth.RoleDoctor, auth.RoleHospital, auth.RoleEmergencyResponder))
}

func (h *Handler) GenerateQR(c echo.Context) error {
	ctx := c.Request().Context()
	qr, err := h.svc.GenerateQR(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, qr)
}

func (h *Handler) GetQR(c echo.Context) error {
	ctx := c.Request().Context()
	qr, err := h.svc.GetQR(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		if errors.Is(err, ErrNoQR) {
			return echo.NewHTTPError(http.StatusNotFound, "no QR generated yet")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, qr)
}

func (h *Handler) QRImage(c echo.Context) error {
	ctx := c.Request().Context()
	size, _ := strconv.Atoi(c.QueryParam("size"))
	png, err := h.svc.RenderPNG(ctx, auth.UserIDFromContext(ctx), size)
	if err != nil {
		if errors.Is(err, ErrNoQR) {
			return echo.NewHTTPError(http.StatusNotFound, "no QR generated yet")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

type scanRequest struct {
	QRData string `json:"qrData"`
}

type scanResponse struct {
	Success     bool         `json:"success"`
	PatientInfo *PatientInfo `json:"patientInfo,omitempty"`
}

func (h *Handler) Scan(c echo.Context) error {
	ctx := c.Request().Context()
	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.QRData == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "qrData is required")
	}

	info, err := h.svc.VerifyScan(ctx, req.QRData, auth.UserIDFromContext(ctx), c.RealIP())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidOrStaleQRPayload):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrNotAuthorized):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrPatientUnavailable):
			return echo.NewHTTPError(http.StatusGone, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, scanResponse{Success: true, PatientInfo: info})
}
