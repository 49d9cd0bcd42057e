package model

import (
	"encoding/json"
	"time"

	apperrors "github.com/weiwangfds/scijournal/internal/errors"
)

// View 默认视图
type View string

const (
	ViewList     View = "list"
	ViewCalendar View = "calendar"
)

// Valid 是否为已知视图
func (v View) Valid() bool {
	return v == ViewList || v == ViewCalendar
}

// DateFormat 日期显示格式
type DateFormat string

const (
	DateFormatMDY DateFormat = "MM/DD/YYYY"
	DateFormatDMY DateFormat = "DD/MM/YYYY"
	DateFormatISO DateFormat = "YYYY-MM-DD"
)

// Valid 是否为已知日期格式
func (f DateFormat) Valid() bool {
	switch f {
	case DateFormatMDY, DateFormatDMY, DateFormatISO:
		return true
	}
	return false
}

// Layout 对应的Go时间布局，未知格式按 MM/DD/YYYY 处理
func (f DateFormat) Layout() string {
	switch f {
	case DateFormatDMY:
		return "02/01/2006"
	case DateFormatISO:
		return "2006-01-02"
	default:
		return "01/02/2006"
	}
}

// tagsToShow 取值范围
const (
	MinTagsToShow = 1
	MaxTagsToShow = 10
)

// Preferences 本地偏好设置
type Preferences struct {
	DarkMode             bool       `json:"darkMode"`
	NotificationsEnabled bool       `json:"notificationsEnabled"`
	DefaultView          View       `json:"defaultView" validate:"oneof=list calendar"`
	DateFormat           DateFormat `json:"dateFormat" validate:"oneof=MM/DD/YYYY DD/MM/YYYY YYYY-MM-DD"`
	TagsToShow           int        `json:"tagsToShow" validate:"min=1,max=10"`
}

// DefaultPreferences 默认偏好设置
func DefaultPreferences() Preferences {
	return Preferences{
		DarkMode:             false,
		NotificationsEnabled: true,
		DefaultView:          ViewList,
		DateFormat:           DateFormatMDY,
		TagsToShow:           5,
	}
}

// Validate 校验偏好设置
func (p Preferences) Validate() error {
	return validateStruct(p, apperrors.ErrInvalidPreferences)
}

// Normalize 将无效字段替换为默认值
func (p Preferences) Normalize() Preferences {
	def := DefaultPreferences()
	if !p.DefaultView.Valid() {
		p.DefaultView = def.DefaultView
	}
	if !p.DateFormat.Valid() {
		p.DateFormat = def.DateFormat
	}
	if p.TagsToShow < MinTagsToShow || p.TagsToShow > MaxTagsToShow {
		p.TagsToShow = def.TagsToShow
	}
	return p
}

// Apply 应用补丁，补丁中存在的字段覆盖当前值
func (p Preferences) Apply(patch PreferencesPatch) Preferences {
	if patch.DarkMode != nil {
		p.DarkMode = *patch.DarkMode
	}
	if patch.NotificationsEnabled != nil {
		p.NotificationsEnabled = *patch.NotificationsEnabled
	}
	if patch.DefaultView != nil {
		p.DefaultView = *patch.DefaultView
	}
	if patch.DateFormat != nil {
		p.DateFormat = *patch.DateFormat
	}
	if patch.TagsToShow != nil {
		p.TagsToShow = *patch.TagsToShow
	}
	return p
}

// DecodePreferences 解析持久化的偏好设置
// 缺失字段取默认值，无法解析时返回默认值和错误
func DecodePreferences(data []byte) (Preferences, error) {
	prefs := DefaultPreferences()
	if len(data) == 0 {
		return prefs, nil
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPreferences(), apperrors.Wrap(apperrors.ErrDecodeResponse, "", err)
	}
	return prefs.Normalize(), nil
}

// PreferencesPatch 偏好设置的部分更新
type PreferencesPatch struct {
	DarkMode             *bool       `json:"darkMode,omitempty"`
	NotificationsEnabled *bool       `json:"notificationsEnabled,omitempty"`
	DefaultView          *View       `json:"defaultView,omitempty"`
	DateFormat           *DateFormat `json:"dateFormat,omitempty"`
	TagsToShow           *int        `json:"tagsToShow,omitempty"`
}

// IsEmpty 补丁中没有任何字段
func (p PreferencesPatch) IsEmpty() bool {
	return p.DarkMode == nil && p.NotificationsEnabled == nil && p.DefaultView == nil &&
		p.DateFormat == nil && p.TagsToShow == nil
}

// Validate 只校验存在的字段
func (p PreferencesPatch) Validate() error {
	if p.DefaultView != nil && !p.DefaultView.Valid() {
		return apperrors.NewWithDetails(apperrors.ErrInvalidPreferences,
			apperrors.GetErrorMessage(apperrors.ErrInvalidPreferences), "defaultView must be one of: list calendar")
	}
	if p.DateFormat != nil && !p.DateFormat.Valid() {
		return apperrors.NewWithDetails(apperrors.ErrInvalidPreferences,
			apperrors.GetErrorMessage(apperrors.ErrInvalidPreferences), "dateFormat must be one of: MM/DD/YYYY DD/MM/YYYY YYYY-MM-DD")
	}
	if p.TagsToShow != nil && (*p.TagsToShow < MinTagsToShow || *p.TagsToShow > MaxTagsToShow) {
		return apperrors.NewWithDetails(apperrors.ErrInvalidPreferences,
			apperrors.GetErrorMessage(apperrors.ErrInvalidPreferences), "tagsToShow must be between 1 and 10")
	}
	return nil
}

// 服务端主题取值
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// RemotePreferences 服务端偏好设置，字段缺失表示不修改
type RemotePreferences struct {
	Theme              *string `json:"theme,omitempty"`
	DefaultView        *string `json:"defaultView,omitempty"`
	EmailNotifications *bool   `json:"emailNotifications,omitempty"`
}

// ToPatch 映射为本地补丁，未知的主题或视图按缺失处理
func (r RemotePreferences) ToPatch() PreferencesPatch {
	var patch PreferencesPatch
	if r.Theme != nil {
		switch *r.Theme {
		case ThemeDark:
			patch.DarkMode = Ptr(true)
		case ThemeLight:
			patch.DarkMode = Ptr(false)
		}
	}
	if r.DefaultView != nil && View(*r.DefaultView).Valid() {
		patch.DefaultView = Ptr(View(*r.DefaultView))
	}
	if r.EmailNotifications != nil {
		patch.NotificationsEnabled = Ptr(*r.EmailNotifications)
	}
	return patch
}

// IsEmpty 没有任何字段
func (r RemotePreferences) IsEmpty() bool {
	return r.Theme == nil && r.DefaultView == nil && r.EmailNotifications == nil
}

// RemoteFromPatch 将本地补丁映射为服务端字段，只包含补丁中存在且服务端支持的字段
func RemoteFromPatch(p PreferencesPatch) RemotePreferences {
	var r RemotePreferences
	if p.DarkMode != nil {
		theme := ThemeLight
		if *p.DarkMode {
			theme = ThemeDark
		}
		r.Theme = &theme
	}
	if p.DefaultView != nil {
		r.DefaultView = Ptr(string(*p.DefaultView))
	}
	if p.NotificationsEnabled != nil {
		r.EmailNotifications = Ptr(*p.NotificationsEnabled)
	}
	return r
}

// PatchFromPreferences 完整偏好设置转为补丁
func PatchFromPreferences(p Preferences) PreferencesPatch {
	return PreferencesPatch{
		DarkMode:             Ptr(p.DarkMode),
		NotificationsEnabled: Ptr(p.NotificationsEnabled),
		DefaultView:          Ptr(p.DefaultView),
		DateFormat:           Ptr(p.DateFormat),
		TagsToShow:           Ptr(p.TagsToShow),
	}
}

// Ptr 返回值的指针
func Ptr[T any](v T) *T {
	return &v
}

// FormatDate 按日期格式渲染时间，includeTime 时追加 12 小时制时间
func FormatDate(t time.Time, format DateFormat, includeTime bool) string {
	layout := format.Layout()
	if includeTime {
		layout += " 3:04 PM"
	}
	return t.Format(layout)
}

// FormatDateString 解析ISO 8601字符串后渲染，无法解析时原样返回
func FormatDateString(s string, format DateFormat, includeTime bool) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return FormatDate(t, format, includeTime)
		}
	}
	return s
}
