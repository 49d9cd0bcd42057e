package journal

import (
	"context"

	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/cache"
)

// 查询端点名，作为缓存键前缀
const (
	endpointEntries        = "getEntries"
	endpointEntry          = "getEntry"
	endpointStats          = "getEntryStats"
	endpointCategories     = "getCategories"
	endpointCreateEntry    = "createEntry"
	endpointUpdateEntry    = "updateEntry"
	endpointDeleteEntry    = "deleteEntry"
	endpointCreateCategory = "createCategory"
	endpointUpdateCategory = "updateCategory"
	endpointDeleteCategory = "deleteCategory"
)

type entryUpdate struct {
	ID    uint
	Input model.EntryInput
}

type categoryUpdate struct {
	ID    uint
	Input model.CategoryInput
}

func (s *Service) defineQueries() {
	s.entryList = cache.Query[model.ListParams, model.EntryList]{
		Endpoint: endpointEntries,
		Fetch:    s.api.ListEntries,
		Provides: func(list model.EntryList, _ model.ListParams) []cache.Tag {
			tags := []cache.Tag{cache.ListTag(cache.TagEntry)}
			for _, e := range list.Entries {
				tags = append(tags, cache.IDTag(cache.TagEntry, e.ID))
			}
			return tags
		},
	}

	s.entry = cache.Query[uint, model.Entry]{
		Endpoint: endpointEntry,
		Fetch:    s.api.GetEntry,
		Provides: func(_ model.Entry, id uint) []cache.Tag {
			return []cache.Tag{cache.IDTag(cache.TagEntry, id)}
		},
	}

	s.stats = cache.Query[cache.NoParams, model.EntryStats]{
		Endpoint: endpointStats,
		Fetch: func(ctx context.Context, _ cache.NoParams) (model.EntryStats, error) {
			return s.api.GetStats(ctx)
		},
		Provides: func(model.EntryStats, cache.NoParams) []cache.Tag {
			return []cache.Tag{cache.TypeTag(cache.TagStats)}
		},
	}

	s.categories = cache.Query[cache.NoParams, []model.Category]{
		Endpoint: endpointCategories,
		Fetch: func(ctx context.Context, _ cache.NoParams) ([]model.Category, error) {
			return s.api.ListCategories(ctx)
		},
		Provides: func(categories []model.Category, _ cache.NoParams) []cache.Tag {
			tags := []cache.Tag{cache.ListTag(cache.TagCategory)}
			for _, c := range categories {
				tags = append(tags, cache.IDTag(cache.TagCategory, c.ID))
			}
			return tags
		},
	}
}

func (s *Service) defineMutations() {
	s.createEntry = cache.Mutation[model.EntryInput, model.Entry]{
		Endpoint: endpointCreateEntry,
		Do:       s.api.CreateEntry,
		Invalidates: func(model.Entry, model.EntryInput) []cache.Tag {
			return []cache.Tag{cache.ListTag(cache.TagEntry), cache.TypeTag(cache.TagStats)}
		},
	}

	s.updateEntry = cache.Mutation[entryUpdate, model.Entry]{
		Endpoint: endpointUpdateEntry,
		Do: func(ctx context.Context, p entryUpdate) (model.Entry, error) {
			return s.api.UpdateEntry(ctx, p.ID, p.Input)
		},
		Invalidates: func(_ model.Entry, p entryUpdate) []cache.Tag {
			return []cache.Tag{
				cache.IDTag(cache.TagEntry, p.ID),
				cache.ListTag(cache.TagEntry),
				cache.TypeTag(cache.TagStats),
			}
		},
	}

	s.deleteEntry = cache.Mutation[uint, struct{}]{
		Endpoint: endpointDeleteEntry,
		Do: func(ctx context.Context, id uint) (struct{}, error) {
			return struct{}{}, s.api.DeleteEntry(ctx, id)
		},
		Invalidates: func(_ struct{}, id uint) []cache.Tag {
			return []cache.Tag{
				cache.IDTag(cache.TagEntry, id),
				cache.ListTag(cache.TagEntry),
				cache.TypeTag(cache.TagStats),
			}
		},
	}

	s.createCategory = cache.Mutation[model.CategoryInput, model.Category]{
		Endpoint: endpointCreateCategory,
		Do:       s.api.CreateCategory,
		Invalidates: func(model.Category, model.CategoryInput) []cache.Tag {
			return []cache.Tag{cache.TypeTag(cache.TagCategory)}
		},
	}

	s.updateCategory = cache.Mutation[categoryUpdate, model.Category]{
		Endpoint: endpointUpdateCategory,
		Do: func(ctx context.Context, p categoryUpdate) (model.Category, error) {
			return s.api.UpdateCategory(ctx, p.ID, p.Input)
		},
		Invalidates: func(model.Category, categoryUpdate) []cache.Tag {
			return []cache.Tag{cache.TypeTag(cache.TagCategory)}
		},
	}

	// 删除分类后服务端会把相关日记的分类置空，日记和统计一并失效
	s.deleteCategory = cache.Mutation[uint, struct{}]{
		Endpoint: endpointDeleteCategory,
		Do: func(ctx context.Context, id uint) (struct{}, error) {
			return struct{}{}, s.api.DeleteCategory(ctx, id)
		},
		Invalidates: func(struct{}, uint) []cache.Tag {
			return []cache.Tag{
				cache.TypeTag(cache.TagCategory),
				cache.TypeTag(cache.TagEntry),
				cache.TypeTag(cache.TagStats),
			}
		},
	}
}
