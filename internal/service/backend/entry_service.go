package backend

import (
	"context"
	"errors"

	"github.com/weiwangfds/scijournal/internal/database"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/model"
	"gorm.io/gorm"
)

// EntryService 日记服务接口，所有操作都限定在当前用户范围内
type EntryService interface {
	// Create 创建日记，标签按名称查找或创建
	Create(ctx context.Context, userID uint, in model.EntryInput) (model.Entry, error)
	// Get 获取单篇日记
	Get(ctx context.Context, userID, id uint) (model.Entry, error)
	// Update 更新日记，标签整体替换
	Update(ctx context.Context, userID, id uint, in model.EntryInput) (model.Entry, error)
	// Delete 删除日记
	Delete(ctx context.Context, userID, id uint) error
	// List 分页列表，按创建时间倒序，可按分类或标签过滤
	List(ctx context.Context, userID uint, params model.ListParams) (model.EntryList, error)
	// Stats 用户日记统计
	Stats(ctx context.Context, userID uint) (model.EntryStats, error)
}

type entryService struct {
	db *gorm.DB
}

// NewEntryService 创建日记服务
func NewEntryService(db *gorm.DB) EntryService {
	return &entryService{db: db}
}

var errEntryNotFound = apperrors.New(apperrors.ErrRecordNotFound, "Entry not found")

func (s *entryService) Create(ctx context.Context, userID uint, in model.EntryInput) (model.Entry, error) {
	var entry database.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCategory(tx, userID, in.CategoryID); err != nil {
			return err
		}
		tags, err := findOrCreateTags(tx, userID, in.Tags)
		if err != nil {
			return err
		}

		entry = database.JournalEntry{
			UserID:     userID,
			CategoryID: in.CategoryID,
			Title:      in.Title,
			Content:    in.Content,
			Mood:       string(in.Mood),
			WordCount:  model.CountWords(in.Content),
			Tags:       tags,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return model.Entry{}, wrapDB(err, "Failed to create entry")
	}
	return toEntry(&entry), nil
}

func (s *entryService) Get(ctx context.Context, userID, id uint) (model.Entry, error) {
	entry, err := s.find(s.db.WithContext(ctx), userID, id)
	if err != nil {
		return model.Entry{}, err
	}
	return toEntry(entry), nil
}

func (s *entryService) find(tx *gorm.DB, userID, id uint) (*database.JournalEntry, error) {
	var entry database.JournalEntry
	err := tx.Preload("Tags").Where("id = ? AND user_id = ?", id, userID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errEntryNotFound
		}
		return nil, wrapDB(err, "Failed to get entry")
	}
	return &entry, nil
}

func (s *entryService) Update(ctx context.Context, userID, id uint, in model.EntryInput) (model.Entry, error) {
	var entry *database.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if entry, err = s.find(tx, userID, id); err != nil {
			return err
		}
		if err := checkCategory(tx, userID, in.CategoryID); err != nil {
			return err
		}
		tags, err := findOrCreateTags(tx, userID, in.Tags)
		if err != nil {
			return err
		}

		entry.Title = in.Title
		entry.Content = in.Content
		entry.CategoryID = in.CategoryID
		entry.Mood = string(in.Mood)
		entry.WordCount = model.CountWords(in.Content)
		if err := tx.Omit("Tags").Save(entry).Error; err != nil {
			return err
		}
		if err := tx.Model(entry).Association("Tags").Replace(tags); err != nil {
			return err
		}
		entry.Tags = tags
		return nil
	})
	if err != nil {
		return model.Entry{}, wrapDB(err, "Failed to update entry")
	}
	return toEntry(entry), nil
}

func (s *entryService) Delete(ctx context.Context, userID, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.find(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Model(entry).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(entry).Error
	})
	if err != nil {
		return wrapDB(err, "Failed to delete entry")
	}
	return nil
}

func (s *entryService) List(ctx context.Context, userID uint, params model.ListParams) (model.EntryList, error) {
	params = params.Normalize()

	query := s.db.WithContext(ctx).Model(&database.JournalEntry{}).
		Where("journal_entries.user_id = ?", userID)
	if params.CategoryID != nil {
		query = query.Where("journal_entries.category_id = ?", *params.CategoryID)
	}
	if params.TagID != nil {
		query = query.
			Joins("JOIN journal_entry_tags ON journal_entry_tags.entry_id = journal_entries.id").
			Where("journal_entry_tags.tag_id = ?", *params.TagID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return model.EntryList{}, wrapDB(err, "Failed to list entries")
	}

	var rows []database.JournalEntry
	if err := query.Preload("Tags").
		Order("journal_entries.created_at DESC, journal_entries.id DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&rows).Error; err != nil {
		return model.EntryList{}, wrapDB(err, "Failed to list entries")
	}

	list := model.EntryList{Entries: make([]model.Entry, 0, len(rows)), Total: total}
	for i := range rows {
		list.Entries = append(list.Entries, toEntry(&rows[i]))
	}
	return list, nil
}

func (s *entryService) Stats(ctx context.Context, userID uint) (model.EntryStats, error) {
	db := s.db.WithContext(ctx)
	stats := model.EntryStats{
		MoodDistribution:     []model.MoodCount{},
		CategoryDistribution: []model.CategoryCount{},
	}
	fail := func(err error) (model.EntryStats, error) {
		return model.EntryStats{}, wrapDB(err, "Failed to get entry stats")
	}

	entries := func() *gorm.DB {
		return db.Model(&database.JournalEntry{}).Where("journal_entries.user_id = ?", userID)
	}

	if err := entries().Count(&stats.TotalEntries).Error; err != nil {
		return fail(err)
	}
	if err := entries().Select("COALESCE(SUM(word_count), 0)").Scan(&stats.TotalWords).Error; err != nil {
		return fail(err)
	}
	if stats.TotalEntries > 0 {
		stats.AvgWordsPerEntry = float64(stats.TotalWords) / float64(stats.TotalEntries)
	}

	if err := db.Model(&database.Category{}).Where("user_id = ?", userID).Count(&stats.CategoryCount).Error; err != nil {
		return fail(err)
	}
	if err := db.Model(&database.Tag{}).Where("user_id = ?", userID).Count(&stats.TagCount).Error; err != nil {
		return fail(err)
	}

	if err := entries().
		Select("mood, COUNT(*) AS count").
		Group("mood").
		Order("count DESC").
		Scan(&stats.MoodDistribution).Error; err != nil {
		return fail(err)
	}

	// 未分类的日记归入 Uncategorized
	if err := entries().
		Joins("LEFT JOIN categories ON journal_entries.category_id = categories.id").
		Select("COALESCE(categories.name, 'Uncategorized') AS category, COUNT(*) AS count").
		Group("categories.name").
		Order("count DESC").
		Scan(&stats.CategoryDistribution).Error; err != nil {
		return fail(err)
	}

	return stats, nil
}

// checkCategory 分类必须属于当前用户
func checkCategory(tx *gorm.DB, userID uint, categoryID *uint) error {
	if categoryID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&database.Category{}).Where("id = ? AND user_id = ?", *categoryID, userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.New(apperrors.ErrInvalidParams, "Invalid category")
	}
	return nil
}

// findOrCreateTags 按名称查找用户的标签，不存在时创建
func findOrCreateTags(tx *gorm.DB, userID uint, names []string) ([]database.Tag, error) {
	names = model.NormalizeTagNames(names)
	tags := make([]database.Tag, 0, len(names))
	for _, name := range names {
		tag := database.Tag{UserID: userID, Name: name}
		if err := tx.Where(database.Tag{UserID: userID, Name: name}).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func toEntry(e *database.JournalEntry) model.Entry {
	tags := make([]model.Tag, 0, len(e.Tags))
	for _, t := range e.Tags {
		tags = append(tags, model.Tag{ID: t.ID, Name: t.Name})
	}
	return model.Entry{
		ID:         e.ID,
		Title:      e.Title,
		Content:    e.Content,
		Mood:       model.Mood(e.Mood),
		CategoryID: e.CategoryID,
		Tags:       tags,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
		WordCount:  e.WordCount,
	}
}

// wrapDB 应用错误原样返回，其余数据库错误包装为查询错误
func wrapDB(err error, message string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Wrap(apperrors.ErrDatabaseQuery, message, err)
}
