package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

// AdminUserHandler serves /api/admin/users. Every route requires an admin.
type AdminUserHandler struct {
	admin ports.AdminService
}

func NewAdminUserHandler(admin ports.AdminService) *AdminUserHandler {
	return &AdminUserHandler{admin: admin}
}

// List handles GET /api/admin/users.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        role        query     string  false  "Role filter"
// @Param        status      query     string  false  "Status filter"
// @Param        search      query     string  false  "Email or name substring"
// @Param        sort_by     query     string  false  "createdAt, email, role or status"
// @Param        sort_order  query     string  false  "asc or desc (default desc)"
// @Param        limit       query     int     false  "Page size (default 50, max 100)"
// @Param        offset      query     int     false  "Page offset"
// @Success      200         {object}  userListResponse
// @Failure      400         {object}  errorResponse
// @Failure      403         {object}  errorResponse
// @Router       /api/admin/users [get]
func (h *AdminUserHandler) List(c echo.Context) error {
	var req listUsersRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	page, err := h.admin.ListUsers(c.Request().Context(), ports.ListUsersInput{
		Role:     domain.Role(req.Role),
		Status:   domain.UserStatus(req.Status),
		Search:   req.Search,
		SortBy:   req.SortBy,
		SortDesc: req.SortOrder != "asc",
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserListResponse(page))
}

// Statistics handles GET /api/admin/users/statistics.
//
// @Summary      User statistics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userStatisticsResponse
// @Router       /api/admin/users/statistics [get]
func (h *AdminUserHandler) Statistics(c echo.Context) error {
	stats, err := h.admin.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserStatisticsResponse(stats))
}

// Get handles GET /api/admin/users/:id.
//
// @Summary      Get a user with recent audit history
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userDetailResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/admin/users/{id} [get]
func (h *AdminUserHandler) Get(c echo.Context) error {
	id, err := idParam(c, domain.ErrUserNotFound)
	if err != nil {
		return err
	}

	detail, err := h.admin.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userDetailResponse{
		userResponse: toUserResponse(detail.User),
		AuditHistory: toAuditLogResponses(detail.AuditHistory),
	})
}

// Update handles PUT /api/admin/users/:id.
//
// @Summary      Update a user's display name
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      updateUserRequest  true  "Fields"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/admin/users/{id} [put]
func (h *AdminUserHandler) Update(c echo.Context) error {
	actor, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, domain.ErrUserNotFound)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.admin.UpdateUser(c.Request().Context(), actor, id, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// ChangeRole handles PUT /api/admin/users/:id/role.
//
// @Summary      Change a user's role
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      changeRoleRequest  true  "New role and reason"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/admin/users/{id}/role [put]
func (h *AdminUserHandler) ChangeRole(c echo.Context) error {
	actor, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, domain.ErrUserNotFound)
	if err != nil {
		return err
	}

	var req changeRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.admin.ChangeRole(c.Request().Context(), actor, id, domain.Role(req.NewRole), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// Deactivate handles POST /api/admin/users/:id/deactivate.
//
// @Summary      Deactivate a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "User id"
// @Param        body  body      statusChangeRequest  true  "Reason"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /api/admin/users/{id}/deactivate [post]
func (h *AdminUserHandler) Deactivate(c echo.Context) error {
	return h.changeStatus(c, h.admin.Deactivate)
}

// Reactivate handles POST /api/admin/users/:id/reactivate.
//
// @Summary      Reactivate a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "User id"
// @Param        body  body      statusChangeRequest  true  "Reason"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Router       /api/admin/users/{id}/reactivate [post]
func (h *AdminUserHandler) Reactivate(c echo.Context) error {
	return h.changeStatus(c, h.admin.Reactivate)
}

type statusChangeFunc func(ctx context.Context, actor domain.Identity, id, reason string) (*domain.User, error)

func (h *AdminUserHandler) changeStatus(c echo.Context, apply statusChangeFunc) error {
	actor, err := currentIdentity(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, domain.ErrUserNotFound)
	if err != nil {
		return err
	}

	var req statusChangeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := apply(c.Request().Context(), actor, id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}
