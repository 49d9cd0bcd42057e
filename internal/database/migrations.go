// Package database 提供数据库迁移和初始化功能
package database

import (
	"github.com/weiwangfds/scijournal/internal/logger"
	"gorm.io/gorm"
)

// MigrateLocal 迁移客户端本地键值表
func MigrateLocal(db *gorm.DB) error {
	return db.AutoMigrate(&LocalSetting{})
}

// MigrateServer 执行开发服务器相关表的数据库迁移
// 参数: db *gorm.DB - GORM数据库连接实例
// 返回值: error - 迁移失败时返回错误信息
func MigrateServer(db *gorm.DB) error {
	logger.Info("开始执行日记服务数据库迁移...")

	err := db.AutoMigrate(
		&User{},           // 用户表
		&UserPreference{}, // 用户偏好表
		&Category{},       // 分类表
		&JournalEntry{},   // 日记表
		&Tag{},            // 标签表
	)
	if err != nil {
		return err
	}

	if err := createServerIndexes(db); err != nil {
		return err
	}

	logger.Info("日记服务数据库迁移完成")
	return nil
}

// createServerIndexes 创建列表和统计查询使用的复合索引
func createServerIndexes(db *gorm.DB) error {
	indexes := []string{
		// 列表查询：按用户和创建时间倒序
		"CREATE INDEX IF NOT EXISTS idx_entries_user_created ON journal_entries(user_id, created_at DESC) WHERE deleted_at IS NULL",
		// 按分类过滤
		"CREATE INDEX IF NOT EXISTS idx_entries_user_category ON journal_entries(user_id, category_id) WHERE deleted_at IS NULL",
		// 按标签过滤
		"CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON journal_entry_tags(tag_id, entry_id)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			logger.Errorf("创建索引失败: %s, 错误: %v", indexSQL, err)
			return err
		}
	}
	return nil
}

// SeedDefaultCategories 为新用户创建默认分类
func SeedDefaultCategories(db *gorm.DB, userID uint) error {
	categories := []Category{
		{UserID: userID, Name: "Personal", Color: "#2196F3"},
		{UserID: userID, Name: "Work", Color: "#FF9800"},
		{UserID: userID, Name: "Ideas", Color: "#9C27B0"},
	}

	for _, category := range categories {
		if err := db.FirstOrCreate(&category, Category{UserID: userID, Name: category.Name}).Error; err != nil {
			return err
		}
	}
	return nil
}
