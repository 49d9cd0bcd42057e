package journal

import (
	"context"

	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/cache"
)

// Entries 分页读取日记列表
func (s *Service) Entries(ctx context.Context, params model.ListParams) cache.Result[model.EntryList] {
	return cache.Fetch(ctx, s.cache, s.entryList, params.Normalize())
}

// PeekEntries 非阻塞读取日记列表，数据过期时在后台刷新
func (s *Service) PeekEntries(params model.ListParams) cache.Result[model.EntryList] {
	return cache.Peek(s.cache, s.entryList, params.Normalize())
}

// EntriesKey 日记列表的缓存键，用于订阅变化
func (s *Service) EntriesKey(params model.ListParams) string {
	return cache.Key(endpointEntries, params.Normalize())
}

// Entry 读取单篇日记
func (s *Service) Entry(ctx context.Context, id uint) cache.Result[model.Entry] {
	return cache.Fetch(ctx, s.cache, s.entry, id)
}

// Stats 读取统计，失败时错误消息降级为统一提示，已有的旧数据仍一并返回
func (s *Service) Stats(ctx context.Context) cache.Result[model.EntryStats] {
	return degradeStats(cache.Fetch(ctx, s.cache, s.stats, cache.NoParams{}))
}

// RefreshStats 强制刷新统计
func (s *Service) RefreshStats(ctx context.Context) cache.Result[model.EntryStats] {
	return degradeStats(cache.Refetch(ctx, s.cache, s.stats, cache.NoParams{}))
}

func degradeStats(r cache.Result[model.EntryStats]) cache.Result[model.EntryStats] {
	if r.Err != nil {
		r.Err = apperrors.Wrap(codeOf(r.Err), translate("stats_unavailable"), r.Err)
	}
	return r
}

// Categories 读取全部分类
func (s *Service) Categories(ctx context.Context) cache.Result[[]model.Category] {
	return cache.Fetch(ctx, s.cache, s.categories, cache.NoParams{})
}

// CreateEntry 创建日记
func (s *Service) CreateEntry(ctx context.Context, in model.EntryInput) (model.Entry, error) {
	if err := in.Validate(); err != nil {
		s.notifier.Error(apperrors.UserMessage(err))
		return model.Entry{}, err
	}
	entry, err := cache.Mutate(ctx, s.cache, s.createEntry, in)
	s.report(err, "entry_created", "entry_create_failed")
	return entry, err
}

// UpdateEntry 更新日记
func (s *Service) UpdateEntry(ctx context.Context, id uint, in model.EntryInput) (model.Entry, error) {
	if err := in.Validate(); err != nil {
		s.notifier.Error(apperrors.UserMessage(err))
		return model.Entry{}, err
	}
	entry, err := cache.Mutate(ctx, s.cache, s.updateEntry, entryUpdate{ID: id, Input: in})
	s.report(err, "entry_updated", "entry_update_failed")
	return entry, err
}

// DeleteEntry 删除日记
func (s *Service) DeleteEntry(ctx context.Context, id uint) error {
	_, err := cache.Mutate(ctx, s.cache, s.deleteEntry, id)
	s.report(err, "entry_deleted", "entry_delete_failed")
	return err
}

// CreateCategory 创建分类
func (s *Service) CreateCategory(ctx context.Context, in model.CategoryInput) (model.Category, error) {
	if err := in.Validate(); err != nil {
		s.notifier.Error(apperrors.UserMessage(err))
		return model.Category{}, err
	}
	category, err := cache.Mutate(ctx, s.cache, s.createCategory, in)
	s.report(err, "category_created", "category_create_failed")
	return category, err
}

// UpdateCategory 更新分类
func (s *Service) UpdateCategory(ctx context.Context, id uint, in model.CategoryInput) (model.Category, error) {
	if err := in.Validate(); err != nil {
		s.notifier.Error(apperrors.UserMessage(err))
		return model.Category{}, err
	}
	category, err := cache.Mutate(ctx, s.cache, s.updateCategory, categoryUpdate{ID: id, Input: in})
	s.report(err, "category_updated", "category_update_failed")
	return category, err
}

// DeleteCategory 删除分类
func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	_, err := cache.Mutate(ctx, s.cache, s.deleteCategory, id)
	s.report(err, "category_deleted", "category_delete_failed")
	return err
}

// report 将变更结果发送到通知出口
func (s *Service) report(err error, successKey, failureKey string) {
	if err != nil {
		logger.Warnf("[日记] %s: %v", translate(failureKey), err)
		s.notifier.Error(translate(failureKey))
		return
	}
	s.notifier.Success(translate(successKey))
}

func codeOf(err error) apperrors.ErrorCode {
	if appErr, ok := apperrors.GetAppError(err); ok {
		return appErr.Code
	}
	return apperrors.ErrRequestFailed
}
