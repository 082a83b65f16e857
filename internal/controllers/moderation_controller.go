package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"shortly/internal/entities"
	"shortly/internal/middleware"
	"shortly/internal/models"
)

// ModerationService is the administrator API
type ModerationService interface {
	ListFlagged(ctx context.Context, limit, offset int) ([]*entities.URL, error)
	SetURLStatus(ctx context.Context, shortCode string, status entities.URLStatus) (*entities.URL, error)
	Approve(ctx context.Context, shortCode string) (*entities.URL, error)
	DeleteURL(ctx context.Context, shortCode string) error
	SetUserStatus(ctx context.Context, actor *entities.Principal, userID string, status entities.UserStatus) (*entities.User, error)
	SetUserRole(ctx context.Context, actor *entities.Principal, userID string, role entities.Role) (*entities.User, error)
}

// ModerationController serves the admin routes; it relies on AdminOnly running first
type ModerationController struct {
	moderation ModerationService
	baseURL    string
}

func NewModerationController(moderation ModerationService, baseURL string) *ModerationController {
	return &ModerationController{
		moderation: moderation,
		baseURL:    baseURL,
	}
}

// ListFlagged handles GET /api/v1/admin/urls/flagged
func (mc *ModerationController) ListFlagged(c *gin.Context) {
	const op = "controllers.ModerationController.ListFlagged"

	var q models.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	urls, err := mc.moderation.ListFlagged(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewURLListResponse(urls, mc.baseURL))
}

// SetURLStatus handles PATCH /api/v1/admin/url/:shortCode/status
func (mc *ModerationController) SetURLStatus(c *gin.Context) {
	const op = "controllers.ModerationController.SetURLStatus"

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	url, err := mc.moderation.SetURLStatus(c.Request.Context(), c.Param("shortCode"), entities.URLStatus(req.Status))
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewURLResponse(url, mc.baseURL))
}

// ApproveURL handles POST /api/v1/admin/url/:shortCode/approve
func (mc *ModerationController) ApproveURL(c *gin.Context) {
	const op = "controllers.ModerationController.ApproveURL"

	url, err := mc.moderation.Approve(c.Request.Context(), c.Param("shortCode"))
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewURLResponse(url, mc.baseURL))
}

// DeleteURL handles DELETE /api/v1/admin/url/:shortCode
func (mc *ModerationController) DeleteURL(c *gin.Context) {
	const op = "controllers.ModerationController.DeleteURL"

	if err := mc.moderation.DeleteURL(c.Request.Context(), c.Param("shortCode")); err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "URL deleted successfully",
	})
}

// SetUserStatus handles PATCH /api/v1/admin/users/:id/status
func (mc *ModerationController) SetUserStatus(c *gin.Context) {
	const op = "controllers.ModerationController.SetUserStatus"

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := mc.moderation.SetUserStatus(c.Request.Context(), middleware.Principal(c), c.Param("id"), entities.UserStatus(req.Status))
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewUserResponse(user))
}

// SetUserRole handles PATCH /api/v1/admin/users/:id/role
func (mc *ModerationController) SetUserRole(c *gin.Context) {
	const op = "controllers.ModerationController.SetUserRole"

	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := mc.moderation.SetUserRole(c.Request.Context(), middleware.Principal(c), c.Param("id"), entities.Role(req.Role))
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewUserResponse(user))
}
