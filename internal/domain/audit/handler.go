package audit

import (
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
	api.GET("/audit-logs", h.ListAuditLogs)
}

func (h *Handler) ListAuditLogs(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)

	f := Filter{Action: c.QueryParam("action")}
	if uid := c.QueryParam("user_id"); uid != "" {
		id, err := uuid.Parse(uid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		f.UserID = id
	}
	if tid := c.QueryParam("target_id"); tid != "" {
		id, err := uuid.Parse(tid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid target_id")
		}
		f.TargetID = id
	}

	entries, total, err := h.svc.Query(ctx, auth.UserIDFromContext(ctx), auth.RoleFromContext(ctx), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}
