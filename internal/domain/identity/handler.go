package identity

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthid/healthid/internal/platform/auth"
	"github.com/healthid/healthid/internal/platform/blobstore"
	"github.com/healthid/healthid/pkg/pagination"
)

// AccessChecker gates record reads on the consent ledger. Re-evaluated on
// every call so revocation takes effect immediately.
type AccessChecker interface {
	CheckAccess(ctx context.Context, patientID, requesterID uuid.UUID) (bool, error)
}

type Handler struct {
	svc       *Service
	access    AccessChecker
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewHandler(svc *Service, access AccessChecker, jwtSecret []byte, tokenTTL time.Duration) *Handler {
	return &Handler{svc: svc, access: access, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/auth/login", h.Login)

	api.GET("/me", h.Me)

	patient := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	patient.GET("/profile", h.GetProfile)
	patient.PUT("/profile", h.UpsertProfile)
	patient.POST("/documents", h.UploadDocument)
	patient.GET("/documents", h.ListDocuments)
	patient.GET("/documents/:cid", h.FetchDocument)

	api.POST("/kyc", h.SubmitKYC, auth.RequireRole(
		auth.RolePatient, auth.RoleDoctor, auth.RoleHospital,
		auth.RoleInsuranceProvider, auth.RoleEmergencyResponder))

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/users", h.ListUsers)
	admin.POST("/users/:id/kyc/approve", h.ApproveKYC)
	admin.POST("/users/:id/suspend", h.Suspend)

	api.GET("/patients/:id/records", h.PatientRecords, auth.RequireRole(
		auth.RolePatient, auth.RoleDoctor, auth.RoleHospital,
		auth.RoleInsuranceProvider, auth.RoleEmergencyResponder))
}

type loginRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Login assumes the upstream wallet collaborator already verified that the
// caller controls the address; it resolves (provisioning on first connect)
// and issues a session token.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.Resolve(c.Request().Context(), req.WalletAddress)
	if err != nil {
		if errors.Is(err, ErrInvalidAddress) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid wallet address")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if u.Status == StatusSuspended {
		return echo.NewHTTPError(http.StatusForbidden, "account suspended")
	}

	token, err := auth.IssueToken(h.jwtSecret, u.ID, u.UID, u.WalletAddress, u.Role, h.tokenTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "issue token")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, User: u})
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.GetUser(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := h.svc.GetProfile(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpsertProfile(c echo.Context) error {
	ctx := c.Request().Context()
	var p HealthProfile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpsertProfile(ctx, auth.UserIDFromContext(ctx), &p); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UploadDocument(c echo.Context) error {
	ctx := c.Request().Context()

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, blobstore.MaxBlobSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	d, err := h.svc.UploadDocument(ctx, auth.UserIDFromContext(ctx), fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		if errors.Is(err, blobstore.ErrFileTooLarge) || errors.Is(err, blobstore.ErrEmptyBlob) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	docs, total, err := h.svc.ListDocuments(ctx, auth.UserIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(docs, total, pg.Limit, pg.Offset))
}

func (h *Handler) FetchDocument(c echo.Context) error {
	ctx := c.Request().Context()
	d, data, err := h.svc.FetchDocument(ctx, auth.UserIDFromContext(ctx), c.Param("cid"))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, blobstore.ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, d.ContentType, data)
}

type kycRequest struct {
	RequestedRole string `json:"requested_role"`
	Document      []byte `json:"document"`
}

func (h *Handler) SubmitKYC(c echo.Context) error {
	ctx := c.Request().Context()
	var req kycRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role, err := auth.ParseRole(req.RequestedRole)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sub, err := h.svc.SubmitKYC(ctx, auth.UserIDFromContext(ctx), role, req.Document)
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, sub)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

type approveKYCRequest struct {
	Role         string  `json:"role"`
	HospitalName *string `json:"hospital_name,omitempty"`
}

func (h *Handler) ApproveKYC(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req approveKYCRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.ApproveKYC(ctx, auth.UserIDFromContext(ctx), userID, role, req.HospitalName)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		case errors.Is(err, ErrInvalidRole):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Suspend(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Suspend(ctx, auth.UserIDFromContext(ctx), userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type patientRecords struct {
	Patient   *User          `json:"patient"`
	Profile   *HealthProfile `json:"profile,omitempty"`
	Documents []*Document    `json:"documents"`
}

// PatientRecords is the consent-gated record read. Authorization is
// re-evaluated on every request against the consent ledger; there is no
// caching, so a revoke is effective immediately.
func (h *Handler) PatientRecords(c echo.Context) error {
	ctx := c.Request().Context()
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	callerID := auth.UserIDFromContext(ctx)
	if callerID != patientID {
		ok, err := h.access.CheckAccess(ctx, patientID, callerID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !ok {
			return echo.NewHTTPError(http.StatusForbidden, "no active access grant for this patient")
		}
	}

	patient, err := h.svc.GetUser(ctx, patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}

	records := patientRecords{Patient: patient}
	if p, err := h.svc.GetProfile(ctx, patientID); err == nil {
		records.Profile = p
	}
	if docs, _, err := h.svc.ListDocuments(ctx, patientID, pagination.MaxLimit, 0); err == nil {
		records.Documents = docs
	}
	return c.JSON(http.StatusOK, records)
}
