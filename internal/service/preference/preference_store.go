// Package preference 管理本地偏好设置及其与服务端的同步
package preference

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/storage"
)

// Listener 偏好变化回调
type Listener func(model.Preferences)

// Store 本地偏好设置，内存副本与持久化存储在同一临界区内更新
type Store struct {
	mu        sync.RWMutex
	kv        storage.Store
	prefs     model.Preferences
	listeners map[int]Listener
	nextID    int
}

// NewStore 从持久化存储加载偏好设置，记录缺失或损坏时使用默认值
func NewStore(ctx context.Context, kv storage.Store) (*Store, error) {
	s := &Store{
		kv:        kv,
		prefs:     model.DefaultPreferences(),
		listeners: make(map[int]Listener),
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	raw, ok, err := s.kv.Get(ctx, storage.KeyPreferences)
	if err != nil {
		return err
	}

	prefs := model.DefaultPreferences()
	if ok {
		decoded, decodeErr := model.DecodePreferences([]byte(raw))
		if decodeErr != nil {
			logger.Warnf("[偏好] 本地偏好设置解析失败，使用默认值: %v", decodeErr)
		}
		prefs = decoded
	}

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return nil
}

// Get 当前偏好设置
func (s *Store) Get() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Update 应用补丁并持久化，返回更新后的偏好设置
func (s *Store) Update(ctx context.Context, patch model.PreferencesPatch) (model.Preferences, error) {
	if err := patch.Validate(); err != nil {
		return s.Get(), err
	}
	if patch.IsEmpty() {
		return s.Get(), nil
	}

	s.mu.Lock()
	s.prefs = s.prefs.Apply(patch)
	prefs := s.prefs
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(prefs)
	return prefs, err
}

// ToggleDarkMode 切换深色模式
func (s *Store) ToggleDarkMode(ctx context.Context) (model.Preferences, error) {
	s.mu.RLock()
	next := !s.prefs.DarkMode
	s.mu.RUnlock()
	return s.Update(ctx, model.PreferencesPatch{DarkMode: &next})
}

// Replace 整体替换偏好设置
func (s *Store) Replace(ctx context.Context, prefs model.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.prefs = prefs
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(prefs)
	return err
}

// Reset 恢复默认偏好设置
func (s *Store) Reset(ctx context.Context) error {
	return s.Replace(ctx, model.DefaultPreferences())
}

// Reload 重新读取持久化存储
func (s *Store) Reload(ctx context.Context) error {
	before := s.Get()
	if err := s.load(ctx); err != nil {
		return err
	}
	after := s.Get()
	if after != before {
		logger.Infof("[偏好] 偏好设置已从存储重新加载")
		s.notify(after)
	}
	return nil
}

// OnChange 注册变化回调，返回取消函数
func (s *Store) OnChange(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// persistLocked 写入持久化存储，调用方需持有写锁
func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.prefs)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, storage.KeyPreferences, string(data)); err != nil {
		logger.Errorf("[偏好] 持久化偏好设置失败: %v", err)
		return err
	}
	return nil
}

func (s *Store) notify(prefs model.Preferences) {
	s.mu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(prefs)
	}
}
