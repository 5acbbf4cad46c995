package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-signing-secret")

func echoHandler(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, map[string]string{
		"user_id": UserIDFromContext(ctx).String(),
		"role":    string(RoleFromContext(ctx)),
		"wallet":  WalletFromContext(ctx),
	})
}

func doRequest(t *testing.T, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/me", echoHandler, JWTMiddleware(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	token, err := IssueToken(testSecret, userID, "HID-abc", "0xAbCd", RoleDoctor, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	rec := doRequest(t, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{userID.String(), "doctor", "0xAbCd"} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %q: %s", want, body)
		}
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	rec := doRequest(t, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_BadFormat(t *testing.T) {
	rec := doRequest(t, "Token abc")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	token, _ := IssueToken([]byte("a-different-secret"), uuid.New(), "HID-abc", "0x1", RolePatient, time.Hour)
	rec := doRequest(t, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_Expired(t *testing.T) {
	token, _ := IssueToken(testSecret, uuid.New(), "HID-abc", "0x1", RolePatient, -time.Minute)
	rec := doRequest(t, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_UnknownRole(t *testing.T) {
	token, _ := IssueToken(testSecret, uuid.New(), "HID-abc", "0x1", Role("superuser"), time.Hour)
	rec := doRequest(t, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
