package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

const defaultListLimit = 50

// AdminAuditHandler serves the read-only /api/admin/audit-logs surface.
type AdminAuditHandler struct {
	audit ports.AuditService
}

func NewAdminAuditHandler(audit ports.AuditService) *AdminAuditHandler {
	return &AdminAuditHandler{audit: audit}
}

// Query handles GET /api/admin/audit-logs.
//
// @Summary      Query audit logs
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        event_type  query     string  false  "Event type"
// @Param        actor_id    query     string  false  "Actor id"
// @Param        target_id   query     string  false  "Target id"
// @Param        limit       query     int     false  "Page size (default 50, max 100)"
// @Param        offset      query     int     false  "Page offset"
// @Success      200         {object}  auditPageResponse
// @Failure      400         {object}  errorResponse
// @Router       /api/admin/audit-logs [get]
func (h *AdminAuditHandler) Query(c echo.Context) error {
	var req auditQueryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	page, err := h.audit.Query(c.Request().Context(), ports.AuditQuery{
		EventType: domain.AuditEventType(req.EventType),
		ActorID:   req.ActorID,
		TargetID:  req.TargetID,
		Limit:     req.Limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, auditPageResponse{
		Logs:    toAuditLogResponses(page.Entries),
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: page.HasMore,
	})
}

// Recent handles GET /api/admin/audit-logs/recent.
//
// @Summary      Most recent audit logs
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Max entries (default 50, max 100)"
// @Success      200    {object}  auditListResponse
// @Router       /api/admin/audit-logs/recent [get]
func (h *AdminAuditHandler) Recent(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	entries, err := h.audit.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuditListResponse(entries))
}

// ForUser handles GET /api/admin/audit-logs/user/:id. It returns entries where
// the user is either the actor or the target.
//
// @Summary      Audit logs involving a user
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "User id"
// @Param        limit  query     int     false  "Max entries (default 50, max 100)"
// @Success      200    {object}  auditListResponse
// @Router       /api/admin/audit-logs/user/{id} [get]
func (h *AdminAuditHandler) ForUser(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	entries, err := h.audit.ForUser(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuditListResponse(entries))
}

// ForActor handles GET /api/admin/audit-logs/actor/:id.
//
// @Summary      Audit logs performed by an actor
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Actor id"
// @Param        limit  query     int     false  "Max entries (default 50, max 100)"
// @Success      200    {object}  auditListResponse
// @Router       /api/admin/audit-logs/actor/{id} [get]
func (h *AdminAuditHandler) ForActor(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	entries, err := h.audit.ForActor(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuditListResponse(entries))
}

// Get handles GET /api/admin/audit-logs/:id.
//
// @Summary      Get an audit log entry
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Audit entry id"
// @Success      200  {object}  auditLogResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/admin/audit-logs/{id} [get]
func (h *AdminAuditHandler) Get(c echo.Context) error {
	id, err := idParam(c, domain.ErrAuditLogNotFound)
	if err != nil {
		return err
	}

	entry, err := h.audit.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuditLogResponse(entry))
}

// Statistics handles GET /api/admin/audit-logs/statistics.
//
// @Summary      Audit statistics
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  auditStatisticsResponse
// @Router       /api/admin/audit-logs/statistics [get]
func (h *AdminAuditHandler) Statistics(c echo.Context) error {
	stats, err := h.audit.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, auditStatisticsResponse{
		Total:             stats.Total,
		RoleChanges:       stats.RoleChanges,
		Deactivations:     stats.Deactivations,
		Reactivations:     stats.Reactivations,
		PermissionDenials: stats.PermissionDenials,
	})
}

// queryLimit reads ?limit=, defaulting to defaultListLimit when absent.
// Non-positive values are passed through for the service to reject.
func queryLimit(c echo.Context) (int, error) {
	limit := defaultListLimit
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return 0, invalidPayload(err)
	}
	return limit, nil
}
