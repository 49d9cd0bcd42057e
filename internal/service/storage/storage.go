// Package storage 提供客户端的持久化键值存储
// 令牌和偏好设置以字符串形式保存在本地SQLite的 local_settings 表中
package storage

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/weiwangfds/scijournal/internal/database"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 已知的存储键
const (
	KeyToken       = "token"
	KeyPreferences = "preferences"
)

// Store 持久化键值存储接口
type Store interface {
	// Get 读取键，不存在时 ok 为 false
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set 写入键，已存在时覆盖
	Set(ctx context.Context, key, value string) error
	// Delete 删除键，不存在时不报错
	Delete(ctx context.Context, key string) error
}

// GormStore 基于gorm的键值存储
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建键值存储，db需已迁移 local_settings 表
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get 读取键
func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var setting database.LocalSetting
	err := s.db.WithContext(ctx).Where("name = ?", key).First(&setting).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		logger.Errorf("[存储] 读取键失败: key=%s, err=%v", key, err)
		return "", false, apperrors.Wrap(apperrors.ErrStorageRead, "", err)
	}
	return setting.Value, true, nil
}

// Set 写入键
func (s *GormStore) Set(ctx context.Context, key, value string) error {
	setting := database.LocalSetting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		logger.Errorf("[存储] 写入键失败: key=%s, err=%v", key, err)
		return apperrors.Wrap(apperrors.ErrStorageWrite, "", err)
	}
	logger.Debugf("[存储] 写入键: %s", key)
	return nil
}

// Delete 删除键
func (s *GormStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("name = ?", key).Delete(&database.LocalSetting{}).Error
	if err != nil {
		logger.Errorf("[存储] 删除键失败: key=%s, err=%v", key, err)
		return apperrors.Wrap(apperrors.ErrStorageWrite, "", err)
	}
	logger.Debugf("[存储] 删除键: %s", key)
	return nil
}

// MemoryStore 内存键值存储，用于测试和 storage.driver=memory
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get 读取键
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set 写入键
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Delete 删除键
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
