// Package response 开发服务器的HTTP响应辅助函数
// 成功时直接返回资源JSON，失败时返回 {"error": "..."}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/logger"
)

// ErrorBody 错误响应体
type ErrorBody struct {
	// 可读的错误消息
	Error string `json:"error" example:"Entry not found"`
}

// JSON 返回资源本身
func JSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK 200响应
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 201响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent 204响应，无响应体
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error 错误响应并终止后续处理
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: message})
}

// BadRequest 400错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401错误响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// NotFound 404错误响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalServerError 500错误响应
func InternalServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// FromError 根据应用错误码选择状态码
// 参数:
//   - c: gin上下文
//   - err: 业务层返回的错误
//   - fallback: 服务端错误时返回给调用方的消息，避免泄露内部细节
func FromError(c *gin.Context, err error, fallback string) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		logError(c, err)
		InternalServerError(c, fallback)
		return
	}

	status := StatusFor(appErr.Code)
	if status >= http.StatusInternalServerError {
		logError(c, err)
		Error(c, status, fallback)
		return
	}
	Error(c, status, appErr.Message)
}

// StatusFor 错误码对应的HTTP状态码
func StatusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrInvalidParams, apperrors.ErrInvalidEntry, apperrors.ErrInvalidCategory, apperrors.ErrInvalidPreferences:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrNotFound, apperrors.ErrRecordNotFound:
		return http.StatusNotFound
	case apperrors.ErrConflict, apperrors.ErrRecordAlreadyExists:
		return http.StatusConflict
	case apperrors.ErrTooManyRequests:
		return http.StatusTooManyRequests
	case apperrors.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func logError(c *gin.Context, err error) {
	logger.WithField("request_id", getRequestID(c)).
		WithField("path", c.FullPath()).
		Errorf("[接口] 请求处理失败: %v", err)
}

// getRequestID 获取请求ID
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
