// Package database 定义了数据库相关的模型和结构体
// 包含客户端本地键值表，以及开发服务器的用户、偏好、分类、日记和标签表
package database

import (
	"time"

	"gorm.io/gorm"
)

// LocalSetting 客户端本地键值记录，保存令牌和偏好设置
type LocalSetting struct {
	Key       string `gorm:"column:name;primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (LocalSetting) TableName() string {
	return "local_settings"
}

// User 用户
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"not null"`
	Preferences  UserPreference
}

// UserPreference 服务端保存的用户偏好
type UserPreference struct {
	gorm.Model
	UserID             uint   `gorm:"uniqueIndex;not null"`
	Theme              string `gorm:"size:16;default:'light'"`
	DefaultView        string `gorm:"size:16;default:'list'"`
	DateFormat         string `gorm:"size:16;default:'MM/DD/YYYY'"`
	EmailNotifications bool   `gorm:"default:true"`
}

// Category 分类
type Category struct {
	gorm.Model
	UserID uint   `gorm:"not null;index"`
	Name   string `gorm:"size:100;not null"`
	Color  string `gorm:"size:16;default:'#000000'"`
}

// JournalEntry 日记条目
type JournalEntry struct {
	gorm.Model
	UserID     uint   `gorm:"not null;index"`
	CategoryID *uint  `gorm:"index"`
	Title      string `gorm:"size:255;not null"`
	Content    string `gorm:"type:text;not null"`
	Mood       string `gorm:"size:50;index"`
	WordCount  int
	Tags       []Tag `gorm:"many2many:journal_entry_tags;joinForeignKey:EntryID;joinReferences:TagID"`
}

// Tag 标签，同一用户内名称唯一
type Tag struct {
	gorm.Model
	UserID uint   `gorm:"not null;uniqueIndex:idx_tags_user_name"`
	Name   string `gorm:"size:100;not null;uniqueIndex:idx_tags_user_name"`
}
