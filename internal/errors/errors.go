package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/weiwangfds/scijournal/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)，对应远端接口返回的失败
	ErrSuccess            ErrorCode = 0    // 成功
	ErrInternalServer     ErrorCode = 1000 // 服务器内部错误
	ErrInvalidParams      ErrorCode = 1001 // 参数错误
	ErrUnauthorized       ErrorCode = 1002 // 未授权
	ErrForbidden          ErrorCode = 1003 // 禁止访问
	ErrNotFound           ErrorCode = 1004 // 资源未找到
	ErrConflict           ErrorCode = 1005 // 资源冲突
	ErrTooManyRequests    ErrorCode = 1006 // 请求过于频繁
	ErrServiceUnavailable ErrorCode = 1007 // 服务不可用
	ErrNetwork            ErrorCode = 1008 // 网络/传输层失败
	ErrRequestFailed      ErrorCode = 1009 // 其他4xx失败

	// 数据库相关错误码 (4000-4999)
	ErrDatabaseConnection  ErrorCode = 4000 // 数据库连接错误
	ErrDatabaseQuery       ErrorCode = 4001 // 数据库查询错误
	ErrRecordNotFound      ErrorCode = 4006 // 记录未找到
	ErrRecordAlreadyExists ErrorCode = 4007 // 记录已存在

	// 客户端本地错误码 (5000-5999)
	ErrStorageRead            ErrorCode = 5000 // 读取本地存储失败
	ErrStorageWrite           ErrorCode = 5001 // 写入本地存储失败
	ErrDecodeResponse         ErrorCode = 5002 // 响应解析失败
	ErrInvalidPreferences     ErrorCode = 5003 // 偏好设置无效
	ErrInvalidEntry           ErrorCode = 5004 // 日记输入无效
	ErrInvalidCategory        ErrorCode = 5005 // 分类输入无效
	ErrPreferencesFetchFailed ErrorCode = 5006 // 拉取远端偏好失败
	ErrPreferencesSaveFailed  ErrorCode = 5007 // 推送远端偏好失败
)

// Kind 错误大类，presentation层据此决定展示方式
type Kind int

const (
	KindUnknown    Kind = iota
	KindTransport       // 网络不可达、超时等
	KindAuth            // 401
	KindValidation      // 其余4xx，通常带有服务端消息
	KindServer          // 5xx
	KindLocal           // 本地存储、解析、输入校验
)

// String 返回错误大类名称
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindLocal:
		return "local"
	default:
		return "unknown"
	}
}

// AppError 应用错误结构体
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息，面向用户
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// HTTP状态码，非HTTP错误为0
	Status int `json:"status,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" && e.Details != e.Message {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，支持errors.Is/As
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// Is 错误码相同即视为同一类错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Kind 返回错误大类
func (e *AppError) Kind() Kind {
	switch e.Code {
	case ErrNetwork:
		return KindTransport
	case ErrUnauthorized:
		return KindAuth
	case ErrInvalidParams, ErrForbidden, ErrNotFound, ErrConflict, ErrTooManyRequests, ErrRequestFailed:
		return KindValidation
	case ErrInternalServer, ErrServiceUnavailable:
		return KindServer
	}
	if e.Code >= 4000 && e.Code < 6000 {
		return KindLocal
	}
	return KindUnknown
}

// WithDetails 返回附加了详细信息的副本，不修改预定义错误
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithOriginalError 返回附加了原始错误的副本
func (e *AppError) WithOriginalError(err error) *AppError {
	cp := *e
	cp.OriginalError = err
	if cp.Details == "" && err != nil {
		cp.Details = err.Error()
	}
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails 创建带详细信息的应用错误
func NewWithDetails(code ErrorCode, message string, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap 包装原始错误，message为空时使用错误码对应的默认消息
func Wrap(code ErrorCode, message string, err error) *AppError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	appErr := &AppError{
		Code:          code,
		Message:       message,
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
		var inner *AppError
		if stderrors.As(err, &inner) {
			appErr.Status = inner.Status
		}
	}
	return appErr
}

// FromStatus 根据HTTP状态码构造错误
// message为服务端返回的可读消息，为空时回退到通用消息
func FromStatus(status int, message string) *AppError {
	code := CodeForStatus(status)
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// CodeForStatus 将HTTP状态码映射为错误码
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrTooManyRequests
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ErrInvalidParams
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		return ErrServiceUnavailable
	case status >= 500:
		return ErrInternalServer
	case status >= 400:
		return ErrRequestFailed
	default:
		return ErrSuccess
	}
}

// IsAppError 判断是否为应用错误（支持包装链）
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError 从错误链中提取应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf 返回任意错误的大类
func KindOf(err error) Kind {
	if appErr, ok := GetAppError(err); ok {
		return appErr.Kind()
	}
	return KindUnknown
}

// IsUnauthorized 判断错误链中是否包含401
func IsUnauthorized(err error) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == ErrUnauthorized
}

// UserMessage 返回适合直接展示给用户的消息
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := GetAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// 预定义的常用错误，仅用于errors.Is比较
var (
	ErrUnauthorizedAccess = New(ErrUnauthorized, "unauthorized")
	ErrResourceNotFound   = New(ErrNotFound, "not found")
	ErrNetworkFailure     = New(ErrNetwork, "network error")
	ErrRecordNotFoundErr  = New(ErrRecordNotFound, "record not found")
	ErrRecordExistsErr    = New(ErrRecordAlreadyExists, "record already exists")
)

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:            "success",
	ErrInternalServer:     "internal_server_error",
	ErrInvalidParams:      "invalid_params",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
	ErrNotFound:           "not_found",
	ErrConflict:           "conflict",
	ErrTooManyRequests:    "too_many_requests",
	ErrServiceUnavailable: "service_unavailable",
	ErrNetwork:            "network_error",
	ErrRequestFailed:      "request_failed",

	ErrDatabaseConnection:  "database_connection",
	ErrDatabaseQuery:       "database_query",
	ErrRecordNotFound:      "record_not_found",
	ErrRecordAlreadyExists: "record_already_exists",

	ErrStorageRead:            "storage_read_failed",
	ErrStorageWrite:           "storage_write_failed",
	ErrDecodeResponse:         "decode_failed",
	ErrInvalidPreferences:     "invalid_preferences",
	ErrInvalidEntry:           "invalid_entry",
	ErrInvalidCategory:        "invalid_category",
	ErrPreferencesFetchFailed: "prefs_fetch_failed",
	ErrPreferencesSaveFailed:  "prefs_save_failed",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}
