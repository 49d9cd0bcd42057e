package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/scijournal/internal/middleware"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/response"
	"github.com/weiwangfds/scijournal/internal/service/backend"
)

// EntryHandler 日记处理器
type EntryHandler struct {
	entryService backend.EntryService
}

// NewEntryHandler 创建日记处理器
func NewEntryHandler(entryService backend.EntryService) *EntryHandler {
	return &EntryHandler{entryService: entryService}
}

// CreateEntry 创建日记
// @Summary 创建日记
// @Description 创建日记，标签按名称复用或新建
// @Tags 日记管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entry body model.EntryInput true "日记内容"
// @Success 200 {object} model.Entry "创建成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 500 {object} response.ErrorBody "服务器内部错误"
// @Router /entries [post]
func (h *EntryHandler) CreateEntry(c *gin.Context) {
	var req model.EntryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.FromError(c, err, "Invalid request body")
		return
	}

	entry, err := h.entryService.Create(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.FromError(c, err, "Failed to create entry")
		return
	}
	response.OK(c, entry)
}

// GetEntry 获取日记详情
// @Summary 获取日记详情
// @Tags 日记管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "日记ID"
// @Success 200 {object} model.Entry "获取成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 404 {object} response.ErrorBody "资源不存在"
// @Router /entries/{id} [get]
func (h *EntryHandler) GetEntry(c *gin.Context) {
	id, ok := parseID(c, "Invalid entry ID")
	if !ok {
		return
	}

	entry, err := h.entryService.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.FromError(c, err, "Entry not found")
		return
	}
	response.OK(c, entry)
}

// UpdateEntry 更新日记，标签整体替换
// @Summary 更新日记
// @Description 更新标题、内容、心情和分类，标签列表整体替换
// @Tags 日记管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "日记ID"
// @Param entry body model.EntryInput true "日记内容"
// @Success 200 {object} model.Entry "更新成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 404 {object} response.ErrorBody "资源不存在"
// @Router /entries/{id} [put]
func (h *EntryHandler) UpdateEntry(c *gin.Context) {
	id, ok := parseID(c, "Invalid entry ID")
	if !ok {
		return
	}

	var req model.EntryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.FromError(c, err, "Invalid request body")
		return
	}

	entry, err := h.entryService.Update(c.Request.Context(), middleware.UserID(c), id, req)
	if err != nil {
		response.FromError(c, err, "Failed to update entry")
		return
	}
	response.OK(c, entry)
}

// DeleteEntry 删除日记
// @Summary 删除日记
// @Tags 日记管理
// @Security BearerAuth
// @Param id path int true "日记ID"
// @Success 204 "删除成功"
// @Failure 400 {object} response.ErrorBody "请求参数错误"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 404 {object} response.ErrorBody "资源不存在"
// @Router /entries/{id} [delete]
func (h *EntryHandler) DeleteEntry(c *gin.Context) {
	id, ok := parseID(c, "Invalid entry ID")
	if !ok {
		return
	}

	if err := h.entryService.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.FromError(c, err, "Failed to delete entry")
		return
	}
	response.NoContent(c)
}

// ListEntries 分页列出日记
// @Summary 日记列表
// @Description 按创建时间倒序分页，可按分类或标签过滤
// @Tags 日记管理
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(10)
// @Param categoryId query int false "分类ID"
// @Param tagId query int false "标签ID"
// @Success 200 {object} model.EntryList "获取成功"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 500 {object} response.ErrorBody "服务器内部错误"
// @Router /entries [get]
func (h *EntryHandler) ListEntries(c *gin.Context) {
	params := model.ListParams{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
	}
	if id, ok := queryUint(c, "categoryId"); ok {
		params.CategoryID = &id
	}
	if id, ok := queryUint(c, "tagId"); ok {
		params.TagID = &id
	}

	list, err := h.entryService.List(c.Request.Context(), middleware.UserID(c), params)
	if err != nil {
		response.FromError(c, err, "Failed to list entries")
		return
	}
	response.OK(c, list)
}

// GetEntryStats 日记统计
// @Summary 日记统计
// @Description 总数、字数、心情分布和分类分布
// @Tags 日记管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.EntryStats "获取成功"
// @Failure 401 {object} response.ErrorBody "未登录或令牌无效"
// @Failure 500 {object} response.ErrorBody "服务器内部错误"
// @Router /entries/stats [get]
func (h *EntryHandler) GetEntryStats(c *gin.Context) {
	stats, err := h.entryService.Stats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.FromError(c, err, "Failed to get entry stats")
		return
	}
	response.OK(c, stats)
}

// parseID 解析路径中的 :id，失败时直接返回400
func parseID(c *gin.Context, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, message)
		return 0, false
	}
	return uint(id), true
}

// queryInt 非法或缺失的分页参数按0处理，由服务层填充默认值
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

func queryUint(c *gin.Context, key string) (uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
