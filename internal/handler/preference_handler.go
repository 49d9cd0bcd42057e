package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/scijournal/internal/middleware"
	"github.com/weiwangfds/scijournal/internal/response"
	"github.com/weiwangfds/scijournal/internal/service/backend"
)

// PreferenceHandler 用户偏好处理器
type PreferenceHandler struct {
	preferenceService backend.PreferenceService
}

// NewPreferenceHandler 创建用户偏好处理器
func NewPreferenceHandler(preferenceService backend.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferenceService: preferenceService}
}

// GetUserPreferences 当前用户的偏好
// @Summary 获取用户偏好
// @Tags 用户偏好
// @Produce json
// @Security BearerAuth
// @Success 200 {object} backend.PreferenceDTO "获取成功"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 500 {object} response.ErrorBody "服务器内部错误"
// @Router /user/preferences [get]
func (h *PreferenceHandler) GetUserPreferences(c *gin.Context) {
	prefs, err := h.preferenceService.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err, "Failed to retrieve user preferences")
		return
	}
	response.OK(c, prefs)
}

// UpdateUserPreferences 部分更新偏好，未提供的字段保持不变
// @Summary 更新用户偏好
// @Tags 用户偏好
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param preferences body backend.PreferenceUpdate true "需要修改的字段"
// @Success 200 {object} backend.PreferenceDTO "更新成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 500 {object} response.ErrorBody "服务器内部错误"
// @Router /user/preferences [put]
func (h *PreferenceHandler) UpdateUserPreferences(c *gin.Context) {
	var req backend.PreferenceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	prefs, err := h.preferenceService.Update(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.FromError(c, err, "Failed to update user preferences")
		return
	}
	response.OK(c, prefs)
}
