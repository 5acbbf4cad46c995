package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that rejects callers whose role is not in the
// given set. There is no implicit admin pass-through: patient-owned operations
// must not be reachable by administrators, so every allowed role is listed
// explicitly at the route.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			have := RoleFromContext(c.Request().Context())
			for _, required := range roles {
				if have == required {
					return next(c)
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden, "required role: "+strings.Join(names, " or "))
		}
	}
}
