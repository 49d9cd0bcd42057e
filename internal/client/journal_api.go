package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/weiwangfds/scijournal/internal/model"
)

// 接口路径，相对于 api.base_url
const (
	pathLogin           = "auth/login"
	pathRegister        = "auth/register"
	pathEntries         = "entries"
	pathEntryStats      = "entries/stats"
	pathCategories      = "categories"
	pathUserPreferences = "user/preferences"
)

func entryPath(id uint) string {
	return pathEntries + "/" + strconv.FormatUint(uint64(id), 10)
}

func categoryPath(id uint) string {
	return pathCategories + "/" + strconv.FormatUint(uint64(id), 10)
}

// Login 登录
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.do(ctx, http.MethodPost, pathLogin, nil, creds, &resp)
	return resp, err
}

// Register 注册
func (c *Client) Register(ctx context.Context, creds model.Credentials) (model.AuthResponse, error) {
	var resp model.AuthResponse
	err := c.do(ctx, http.MethodPost, pathRegister, nil, creds, &resp)
	return resp, err
}

// ListEntries 分页获取日记列表
func (c *Client) ListEntries(ctx context.Context, params model.ListParams) (model.EntryList, error) {
	params = params.Normalize()
	query := url.Values{}
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("pageSize", strconv.Itoa(params.PageSize))
	if params.CategoryID != nil {
		query.Set("categoryId", strconv.FormatUint(uint64(*params.CategoryID), 10))
	}
	if params.TagID != nil {
		query.Set("tagId", strconv.FormatUint(uint64(*params.TagID), 10))
	}

	list := model.EntryList{Entries: []model.Entry{}}
	err := c.do(ctx, http.MethodGet, pathEntries, query, nil, &list)
	return list, err
}

// GetEntry 获取单篇日记
func (c *Client) GetEntry(ctx context.Context, id uint) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, http.MethodGet, entryPath(id), nil, nil, &entry)
	return entry, err
}

// CreateEntry 创建日记
func (c *Client) CreateEntry(ctx context.Context, in model.EntryInput) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, http.MethodPost, pathEntries, nil, in, &entry)
	return entry, err
}

// UpdateEntry 更新日记
func (c *Client) UpdateEntry(ctx context.Context, id uint, in model.EntryInput) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, http.MethodPut, entryPath(id), nil, in, &entry)
	return entry, err
}

// DeleteEntry 删除日记
func (c *Client) DeleteEntry(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, entryPath(id), nil, nil, nil)
}

// GetStats 获取日记统计
func (c *Client) GetStats(ctx context.Context) (model.EntryStats, error) {
	var stats model.EntryStats
	err := c.do(ctx, http.MethodGet, pathEntryStats, nil, nil, &stats)
	return stats, err
}

// ListCategories 获取全部分类
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.do(ctx, http.MethodGet, pathCategories, nil, nil, &categories); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []model.Category{}
	}
	return categories, nil
}

// CreateCategory 创建分类
func (c *Client) CreateCategory(ctx context.Context, in model.CategoryInput) (model.Category, error) {
	var category model.Category
	err := c.do(ctx, http.MethodPost, pathCategories, nil, in, &category)
	return category, err
}

// UpdateCategory 更新分类
func (c *Client) UpdateCategory(ctx context.Context, id uint, in model.CategoryInput) (model.Category, error) {
	var category model.Category
	err := c.do(ctx, http.MethodPut, categoryPath(id), nil, in, &category)
	return category, err
}

// DeleteCategory 删除分类
func (c *Client) DeleteCategory(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, categoryPath(id), nil, nil, nil)
}

// GetPreferences 获取服务端偏好设置
func (c *Client) GetPreferences(ctx context.Context) (model.RemotePreferences, error) {
	var prefs model.RemotePreferences
	err := c.do(ctx, http.MethodGet, pathUserPreferences, nil, nil, &prefs)
	return prefs, err
}

// UpdatePreferences 更新服务端偏好设置，只发送存在的字段
func (c *Client) UpdatePreferences(ctx context.Context, prefs model.RemotePreferences) (model.RemotePreferences, error) {
	var updated model.RemotePreferences
	err := c.do(ctx, http.MethodPut, pathUserPreferences, nil, prefs, &updated)
	return updated, err
}
