package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/scijournal/internal/middleware"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/response"
	"github.com/weiwangfds/scijournal/internal/service/backend"
)

// CategoryHandler 分类处理器
type CategoryHandler struct {
	categoryService backend.CategoryService
}

// NewCategoryHandler 创建分类处理器
func NewCategoryHandler(categoryService backend.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// GetCategories 分类列表
// @Summary 分类列表
// @Tags 分类管理
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Category "获取成功"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 500 {object} response.ErrorBody "服务器内部错误"
// @Router /categories [get]
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err, "Failed to retrieve categories")
		return
	}
	response.OK(c, categories)
}

// GetCategory 分类详情
// @Summary 分类详情
// @Tags 分类管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Success 200 {object} model.Category "获取成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 404 {object} response.ErrorBody "资源不存在"
// @Router /categories/{id} [get]
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id, ok := parseID(c, "Invalid category ID")
	if !ok {
		return
	}
	category, err := h.categoryService.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.FromError(c, err, "Failed to retrieve category")
		return
	}
	response.OK(c, category)
}

// CreateCategory 创建分类，返回201
// @Summary 创建分类
// @Tags 分类管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param category body model.CategoryInput true "分类名称和颜色"
// @Success 201 {object} model.Category "创建成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 409 {object} response.ErrorBody "分类名称已存在"
// @Router /categories [post]
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req model.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.FromError(c, err, "Failed to create category")
		return
	}
	response.Created(c, category)
}

// UpdateCategory 修改分类
// @Summary 修改分类
// @Tags 分类管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Param category body model.CategoryInput true "分类名称和颜色"
// @Success 200 {object} model.Category "更新成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 404 {object} response.ErrorBody "资源不存在"
// @Router /categories/{id} [put]
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id, ok := parseID(c, "Invalid category ID")
	if !ok {
		return
	}

	var req model.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), middleware.UserID(c), id, req)
	if err != nil {
		response.FromError(c, err, "Failed to update category")
		return
	}
	response.OK(c, category)
}

// DeleteCategory 删除分类，返回204
// @Summary 删除分类
// @Description 删除后原属于该分类的日记变为未分类
// @Tags 分类管理
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Success 204 "删除成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 404 {object} response.ErrorBody "资源不存在"
// @Router /categories/{id} [delete]
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id, ok := parseID(c, "Invalid category ID")
	if !ok {
		return
	}
	if err := h.categoryService.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.FromError(c, err, "Failed to delete category")
		return
	}
	response.NoContent(c)
}
