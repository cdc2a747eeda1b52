package handler

import (
	"net/http"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/model"
	"electricity-billing/internal/service"
	"electricity-billing/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RoleHandler struct {
	roleService service.RoleService
}

func NewRoleHandler(roleService service.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/api/admin/users/:id/roles")
	{
		roles.GET("", h.ListRoles)
		roles.POST("", h.AssignRole)
		roles.DELETE("/:role", h.RemoveRole)
	}
}

// ListRoles returns the roles granted to a user
// @Summary      List user roles
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=[]service.UserRoleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/admin/users/{id}/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperror.BadRequest("invalid user id"))
		return
	}
	grants, err := h.roleService.ListGrants(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, grants))
}

// AssignRole grants a role to a user
// @Summary      Assign role
// @Tags         roles
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.AssignRoleRequest  true  "Role"
// @Success      201      {object}  response.Response{data=service.UserRoleResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/admin/users/{id}/roles [post]
func (h *RoleHandler) AssignRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperror.BadRequest("invalid user id"))
		return
	}
	var req service.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	grant, err := h.roleService.AssignRole(c.Request.Context(), userID, model.Role(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, service.UserRoleResponse{
		UserID:     grant.UserID.String(),
		Role:       string(grant.Role),
		AssignedAt: grant.AssignedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}))
}

// RemoveRole revokes a role; the last role of a user cannot be removed
// @Summary      Remove role
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      string  true  "User ID"
// @Param        role  path      string  true  "Role name"
// @Success      200   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Failure      409   {object}  response.Response
// @Router       /api/admin/users/{id}/roles/{role} [delete]
func (h *RoleHandler) RemoveRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperror.BadRequest("invalid user id"))
		return
	}
	role, ok := model.ParseRole(c.Param("role"))
	if !ok {
		respondError(c, apperror.BadRequest("unknown role %q", c.Param("role")))
		return
	}

	if err := h.roleService.RemoveRole(c.Request.Context(), userID, role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Role removed successfully"))
}
