package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/weiwangfds/scijournal/internal/errors"
)

// Mood 心情
type Mood string

// 可选心情，空字符串表示未设置
const (
	MoodHappy      Mood = "Happy"
	MoodSad        Mood = "Sad"
	MoodAngry      Mood = "Angry"
	MoodExcited    Mood = "Excited"
	MoodPeaceful   Mood = "Peaceful"
	MoodNeutral    Mood = "Neutral"
	MoodAnxious    Mood = "Anxious"
	MoodGrateful   Mood = "Grateful"
	MoodFrustrated Mood = "Frustrated"
	MoodHopeful    Mood = "Hopeful"
)

// Moods 所有可选心情，顺序即展示顺序
var Moods = []Mood{
	MoodHappy, MoodSad, MoodAngry, MoodExcited, MoodPeaceful,
	MoodNeutral, MoodAnxious, MoodGrateful, MoodFrustrated, MoodHopeful,
}

// Valid 空心情或固定集合中的心情
func (m Mood) Valid() bool {
	if m == "" {
		return true
	}
	for _, known := range Moods {
		if m == known {
			return true
		}
	}
	return false
}

func moodNames() []string {
	names := make([]string, len(Moods))
	for i, m := range Moods {
		names[i] = string(m)
	}
	return names
}

// Tag 标签
type Tag struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// Category 分类
type Category struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Entry 日记条目
type Entry struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Mood       Mood      `json:"mood"`
	CategoryID *uint     `json:"categoryId"`
	Tags       []Tag     `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	WordCount  int       `json:"wordCount"`
}

// UnmarshalJSON 解码后根据正文重新计算字数，服务端返回的字数不作为依据
func (e *Entry) UnmarshalJSON(data []byte) error {
	type alias Entry
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry(raw)
	e.WordCount = CountWords(e.Content)
	if e.Tags == nil {
		e.Tags = []Tag{}
	}
	return nil
}

// TagNames 返回条目的标签名
func (e Entry) TagNames() []string {
	names := make([]string, 0, len(e.Tags))
	for _, t := range e.Tags {
		names = append(names, t.Name)
	}
	return names
}

// VisibleTags 返回前n个标签，n<=0时返回全部
func (e Entry) VisibleTags(n int) []Tag {
	if n <= 0 || len(e.Tags) <= n {
		return e.Tags
	}
	return e.Tags[:n]
}

// ToInput 以当前条目为基础构造更新请求
func (e Entry) ToInput() EntryInput {
	return EntryInput{
		Title:      e.Title,
		Content:    e.Content,
		Mood:       e.Mood,
		CategoryID: e.CategoryID,
		Tags:       e.TagNames(),
	}
}

// DayGroup 同一天创建的日记
type DayGroup struct {
	Day     time.Time
	Entries []Entry
}

// GroupByDay 按本地时区的创建日期分组，组和组内日记都保持输入顺序
func GroupByDay(entries []Entry) []DayGroup {
	var groups []DayGroup
	index := make(map[string]int)
	for _, e := range entries {
		t := e.CreatedAt.Local()
		day := t.Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DayGroup{Day: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

// EntryList 日记列表响应
type EntryList struct {
	Entries []Entry `json:"entries"`
	Total   int64   `json:"total"`
}

// UnmarshalJSON 服务端在没有条目时可能返回null
func (l *EntryList) UnmarshalJSON(data []byte) error {
	type alias EntryList
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = EntryList(raw)
	if l.Entries == nil {
		l.Entries = []Entry{}
	}
	return nil
}

// ListParams 日记列表查询参数，同时作为缓存键的一部分
type ListParams struct {
	Page       int   `json:"page,omitempty"`
	PageSize   int   `json:"pageSize,omitempty"`
	CategoryID *uint `json:"categoryId,omitempty"`
	TagID      *uint `json:"tagId,omitempty"`
}

// 分页默认值
const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// Normalize 填充分页默认值
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// EntryInput 创建或更新日记的请求体，标签以名称传递
type EntryInput struct {
	Title      string   `json:"title" validate:"required"`
	Content    string   `json:"content" validate:"required"`
	Mood       Mood     `json:"mood" validate:"mood"`
	CategoryID *uint    `json:"categoryId"`
	Tags       []string `json:"tags"`
}

// Validate 校验输入并规范化标签
func (in *EntryInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Tags = NormalizeTagNames(in.Tags)
	return validateStruct(in, apperrors.ErrInvalidEntry)
}

// CategoryInput 创建或更新分类的请求体
type CategoryInput struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color" validate:"required,rgbhex"`
}

// Validate 名称和颜色为必填项
func (in *CategoryInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if in.Name == "" || in.Color == "" {
		return apperrors.New(apperrors.ErrInvalidCategory, translate("category_required"))
	}
	return validateStruct(in, apperrors.ErrInvalidCategory)
}

// Credentials 登录/注册请求体
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate 校验登录信息
func (c *Credentials) Validate() error {
	c.Email = strings.TrimSpace(c.Email)
	return validateStruct(c, apperrors.ErrInvalidParams)
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// MoodCount 心情分布项
type MoodCount struct {
	Mood  string `json:"mood"`
	Count int64  `json:"count"`
}

// CategoryCount 分类分布项
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// EntryStats 日记统计，平均字数以服务端为准
type EntryStats struct {
	TotalEntries         int64           `json:"totalEntries"`
	TotalWords           int64           `json:"totalWords"`
	AvgWordsPerEntry     float64         `json:"avgWordsPerEntry"`
	CategoryCount        int64           `json:"categoryCount"`
	TagCount             int64           `json:"tagCount"`
	MoodDistribution     []MoodCount     `json:"moodDistribution"`
	CategoryDistribution []CategoryCount `json:"categoryDistribution"`
}

// FormatAverage 平均字数保留一位小数
func (s EntryStats) FormatAverage() string {
	return strconv.FormatFloat(s.AvgWordsPerEntry, 'f', 1, 64)
}

// CountWords 以空白分隔的非空片段数
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// NormalizeTagNames 去除首尾空白、丢弃空名称并按首次出现去重
func NormalizeTagNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = AddTagName(out, n)
	}
	return out
}

// AddTagName 添加标签名，已存在时不变
func AddTagName(names []string, name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return names
	}
	for _, existing := range names {
		if existing == name {
			return names
		}
	}
	return append(names, name)
}

// RemoveTagName 按名称移除标签，不存在时不变
func RemoveTagName(names []string, name string) []string {
	name = strings.TrimSpace(name)
	out := names[:0:0]
	for _, existing := range names {
		if existing != name {
			out = append(out, existing)
		}
	}
	return out
}
