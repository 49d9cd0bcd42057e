// Package handler 开发服务器的HTTP处理器
// 请求和响应直接使用资源JSON，错误统一返回 {"error": "..."}
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/response"
	"github.com/weiwangfds/scijournal/internal/service/backend"
)

// AuthHandler 登录注册处理器
type AuthHandler struct {
	authService backend.AuthService
}

// NewAuthHandler 创建登录注册处理器
func NewAuthHandler(authService backend.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login 邮箱密码登录
// @Summary 登录
// @Description 使用邮箱和密码登录，返回JWT令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param credentials body model.Credentials true "登录凭证"
// @Success 200 {object} model.AuthResponse "登录成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "邮箱或密码错误"
// @Failure 429 {object} response.ErrorBody "请求过于频繁"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(c, err, "Login failed")
		return
	}
	response.OK(c, model.AuthResponse{Token: token, Message: "Login successful"})
}

// Register 注册并直接返回令牌
// @Summary 注册
// @Description 创建账号并返回JWT令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param credentials body model.Credentials true "注册信息"
// @Success 201 {object} model.AuthResponse "注册成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 409 {object} response.ErrorBody "邮箱已被注册"
// @Failure 429 {object} response.ErrorBody "请求过于频繁"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	token, err := h.authService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(c, err, "Failed to create user")
		return
	}
	response.Created(c, model.AuthResponse{Token: token, Message: "User registered successfully"})
}
