package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/weiwangfds/scijournal/internal/database"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/model"
	"gorm.io/gorm"
)

// DefaultCategoryColor 未指定颜色时使用
const DefaultCategoryColor = "#0693E3"

// CategoryService 分类服务接口
type CategoryService interface {
	// List 按名称排序返回用户的全部分类
	List(ctx context.Context, userID uint) ([]model.Category, error)
	// Get 获取单个分类
	Get(ctx context.Context, userID, id uint) (model.Category, error)
	// Create 创建分类，名称必填
	Create(ctx context.Context, userID uint, in model.CategoryInput) (model.Category, error)
	// Update 修改分类名称和颜色
	Update(ctx context.Context, userID, id uint, in model.CategoryInput) (model.Category, error)
	// Delete 删除分类，原分类下的日记变为未分类
	Delete(ctx context.Context, userID, id uint) error
}

type categoryService struct {
	db *gorm.DB
}

// NewCategoryService 创建分类服务
func NewCategoryService(db *gorm.DB) CategoryService {
	return &categoryService{db: db}
}

var errCategoryNotFound = apperrors.New(apperrors.ErrRecordNotFound, "Category not found")

func (s *categoryService) List(ctx context.Context, userID uint) ([]model.Category, error) {
	var rows []database.Category
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, wrapDB(err, "Failed to retrieve categories")
	}
	categories := make([]model.Category, 0, len(rows))
	for i := range rows {
		categories = append(categories, toCategory(&rows[i]))
	}
	return categories, nil
}

func (s *categoryService) Get(ctx context.Context, userID, id uint) (model.Category, error) {
	category, err := s.find(s.db.WithContext(ctx), userID, id)
	if err != nil {
		return model.Category{}, err
	}
	return toCategory(category), nil
}

func (s *categoryService) find(tx *gorm.DB, userID, id uint) (*database.Category, error) {
	var category database.Category
	if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errCategoryNotFound
		}
		return nil, wrapDB(err, "Failed to retrieve category")
	}
	return &category, nil
}

func (s *categoryService) Create(ctx context.Context, userID uint, in model.CategoryInput) (model.Category, error) {
	name, color, err := categoryFields(in)
	if err != nil {
		return model.Category{}, err
	}
	category := database.Category{UserID: userID, Name: name, Color: color}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return model.Category{}, wrapDB(err, "Failed to create category")
	}
	return toCategory(&category), nil
}

func (s *categoryService) Update(ctx context.Context, userID, id uint, in model.CategoryInput) (model.Category, error) {
	name, color, err := categoryFields(in)
	if err != nil {
		return model.Category{}, err
	}

	db := s.db.WithContext(ctx)
	category, err := s.find(db, userID, id)
	if err != nil {
		return model.Category{}, err
	}

	category.Name = name
	category.Color = color
	if err := db.Save(category).Error; err != nil {
		return model.Category{}, wrapDB(err, "Failed to update category")
	}
	return toCategory(category), nil
}

func (s *categoryService) Delete(ctx context.Context, userID, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&database.Category{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errCategoryNotFound
		}
		return tx.Model(&database.JournalEntry{}).
			Where("user_id = ? AND category_id = ?", userID, id).
			Update("category_id", nil).Error
	})
	if err != nil {
		return wrapDB(err, "Failed to delete category")
	}
	return nil
}

func categoryFields(in model.CategoryInput) (string, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", "", apperrors.New(apperrors.ErrInvalidParams, "Category name is required")
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = DefaultCategoryColor
	}
	return name, color, nil
}

func toCategory(c *database.Category) model.Category {
	return model.Category{ID: c.ID, Name: c.Name, Color: c.Color}
}
