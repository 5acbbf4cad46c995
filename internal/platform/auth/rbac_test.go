package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func requestAs(t *testing.T, role Role, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, mw)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req = req.WithContext(WithIdentity(req.Context(), uuid.New(), role, "0x1"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireRole_Allowed(t *testing.T) {
	mw := RequireRole(RoleDoctor, RoleHospital)
	for _, role := range []Role{RoleDoctor, RoleHospital} {
		if rec := requestAs(t, role, mw); rec.Code != http.StatusOK {
			t.Errorf("role %s: expected 200, got %d", role, rec.Code)
		}
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	mw := RequireRole(RoleDoctor)
	for _, role := range []Role{RolePatient, RoleInsuranceProvider, RoleEmergencyResponder} {
		if rec := requestAs(t, role, mw); rec.Code != http.StatusForbidden {
			t.Errorf("role %s: expected 403, got %d", role, rec.Code)
		}
	}
}

func TestRequireRole_NoAdminPassThrough(t *testing.T) {
	// Patient-owned routes list patient only; an admin must be rejected.
	mw := RequireRole(RolePatient)
	if rec := requestAs(t, RoleAdmin, mw); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for admin on a patient-only route, got %d", rec.Code)
	}
}

func TestRoleValidation(t *testing.T) {
	for _, r := range []Role{RolePatient, RoleDoctor, RoleHospital, RoleInsuranceProvider, RoleEmergencyResponder, RoleAdmin} {
		if !r.Valid() {
			t.Errorf("expected %s to be valid", r)
		}
	}
	if Role("root").Valid() {
		t.Error("unknown role must not validate")
	}
	if _, err := ParseRole("root"); err == nil {
		t.Error("ParseRole must reject unknown roles")
	}
}

func TestRoleCapabilities(t *testing.T) {
	if RolePatient.CanScanEmergencyQR() {
		t.Error("patients must not scan emergency QR codes")
	}
	if RoleAdmin.CanScanEmergencyQR() {
		t.Error("admins must not scan emergency QR codes")
	}
	if !RoleEmergencyResponder.CanScanEmergencyQR() {
		t.Error("emergency responders must be able to scan")
	}
	if RolePatient.CanRequestAccess() {
		t.Error("patients must not file access requests")
	}
	if !RoleInsuranceProvider.CanRequestAccess() {
		t.Error("insurance providers must be able to file access requests")
	}
}
