// Package i18n 提供国际化支持
// 负责管理错误消息和通知文案的语言包
package i18n

import (
	"fmt"
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/scijournal/internal/logger"
)

// 支持的语言
const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	// 语言包存储
	translations = map[string]map[string]string{
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"unauthorized":          "Unauthorized",
			"forbidden":             "Forbidden",
			"not_found":             "Resource Not Found",
			"conflict":              "Resource Conflict",
			"too_many_requests":     "Too Many Requests",
			"service_unavailable":   "Service Unavailable",
			"network_error":         "Network error, please check your connection",
			"request_failed":        "Request failed",

			"storage_read_failed":   "Failed to read local storage",
			"storage_write_failed":  "Failed to write local storage",
			"decode_failed":         "Unexpected response from server",
			"invalid_preferences":   "Invalid preferences",
			"invalid_entry":         "Invalid entry",
			"invalid_category":      "Invalid category",
			"prefs_fetch_failed":    "Failed to fetch preferences",
			"prefs_save_failed":     "Failed to save preferences",
			"database_connection":   "Database Connection Error",
			"database_query":        "Database Query Error",
			"record_not_found":      "Record Not Found",
			"record_already_exists": "Record Already Exists",

			"login_success":          "Logged in successfully",
			"login_failed":           "Login failed",
			"register_success":       "Account created successfully",
			"register_failed":        "Registration failed",
			"logout_success":         "Logged out",
			"entry_created":          "Entry created successfully",
			"entry_create_failed":    "Failed to create entry",
			"entry_updated":          "Entry updated successfully",
			"entry_update_failed":    "Failed to update entry",
			"entry_deleted":          "Entry deleted successfully",
			"entry_delete_failed":    "Failed to delete entry",
			"category_created":       "Category created successfully",
			"category_create_failed": "Failed to create category",
			"category_updated":       "Category updated successfully",
			"category_update_failed": "Failed to update category",
			"category_deleted":       "Category deleted successfully",
			"category_delete_failed": "Failed to delete category",
			"category_required":      "Name and color are required",
			"prefs_saved":            "Preferences saved",
			"token_persist_failed":   "Signed in, but the session could not be saved. You will need to sign in again next time.",
			"stats_unavailable":      "There was a problem loading your journal statistics. Please try again later.",

			"unknown_error": "Unknown Error",
		},
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"unauthorized":          "未授权",
			"forbidden":             "禁止访问",
			"not_found":             "资源未找到",
			"conflict":              "资源冲突",
			"too_many_requests":     "请求过于频繁",
			"service_unavailable":   "服务不可用",
			"network_error":         "网络错误，请检查网络连接",
			"request_failed":        "请求失败",

			"storage_read_failed":   "读取本地存储失败",
			"storage_write_failed":  "写入本地存储失败",
			"decode_failed":         "服务器响应格式错误",
			"invalid_preferences":   "偏好设置无效",
			"invalid_entry":         "日记内容无效",
			"invalid_category":      "分类无效",
			"prefs_fetch_failed":    "获取偏好设置失败",
			"prefs_save_failed":     "保存偏好设置失败",
			"database_connection":   "数据库连接错误",
			"database_query":        "数据库查询错误",
			"record_not_found":      "记录未找到",
			"record_already_exists": "记录已存在",

			"login_success":          "登录成功",
			"login_failed":           "登录失败",
			"register_success":       "注册成功",
			"register_failed":        "注册失败",
			"logout_success":         "已退出登录",
			"entry_created":          "日记创建成功",
			"entry_create_failed":    "日记创建失败",
			"entry_updated":          "日记更新成功",
			"entry_update_failed":    "日记更新失败",
			"entry_deleted":          "日记删除成功",
			"entry_delete_failed":    "日记删除失败",
			"category_created":       "分类创建成功",
			"category_create_failed": "分类创建失败",
			"category_updated":       "分类更新成功",
			"category_update_failed": "分类更新失败",
			"category_deleted":       "分类删除成功",
			"category_delete_failed": "分类删除失败",
			"category_required":      "名称和颜色为必填项",
			"prefs_saved":            "偏好设置已保存",
			"token_persist_failed":   "已登录，但会话未能保存，下次需要重新登录。",
			"stats_unavailable":      "加载日记统计时出现问题，请稍后重试。",

			"unknown_error": "未知错误",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	mu          sync.RWMutex
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangEnUS,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 初始化翻译器
func (i *I18n) initTranslators() {
	enUS := en_US.New()
	zhCN := zh.New()
	uni := ut.New(enUS, enUS, zhCN)

	// 使用locale库的标识符注册支持的语言
	langMappings := map[string]string{
		LangEnUS: "en_US",
		LangZhCN: "zh",
	}

	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("[国际化] 初始化翻译器失败: %s (locale: %s)", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
	}
}

// Translate 根据键和语言获取翻译，找不到时回退到默认语言，再回退到键本身
func (i *I18n) Translate(key, lang string) string {
	i.mu.RLock()
	defaultLang := i.defaultLang
	i.mu.RUnlock()

	if _, exists := i.translators[lang]; !exists {
		lang = defaultLang
	}

	if translation, found := translations[lang][key]; found {
		return translation
	}

	if lang != defaultLang {
		if translation, found := translations[defaultLang][key]; found {
			return translation
		}
	}

	logger.Warnf("[国际化] 未找到翻译: %s, 语言: %s", key, lang)
	return key
}

// T 使用默认语言翻译
func (i *I18n) T(key string) string {
	return i.Translate(key, i.GetDefaultLanguage())
}

// FormatNumber 按语言格式化数字，例如统计页面的平均字数
func (i *I18n) FormatNumber(num float64, digits uint64, lang string) string {
	trans, ok := i.translators[lang]
	if !ok {
		return fmt.Sprintf("%.*f", int(digits), num)
	}
	return trans.FmtNumber(num, digits)
}

// SetDefaultLanguage 设置默认语言，不支持的语言会被忽略
func (i *I18n) SetDefaultLanguage(lang string) {
	if !i.IsSupportedLanguage(lang) {
		logger.Warnf("[国际化] 不支持的语言 %s，保持 %s", lang, i.GetDefaultLanguage())
		return
	}
	i.mu.Lock()
	i.defaultLang = lang
	i.mu.Unlock()
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}
