// Package session 管理客户端唯一的访问令牌
// 令牌同时保存在内存和持久化存储中，内存先写，持久化后写，二者在同一临界区内完成
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/service/storage"
)

// State 会话状态快照
type State struct {
	Token         string
	Authenticated bool
}

// Listener 会话变化回调
type Listener func(State)

// Session 会话状态
type Session struct {
	mu        sync.RWMutex
	store     storage.Store
	token     string
	listeners map[int]Listener
	nextID    int
	now       func() time.Time
}

// New 从持久化存储恢复会话
// 已过期的JWT令牌会被清除，非JWT令牌原样保留
func New(ctx context.Context, store storage.Store) (*Session, error) {
	s := &Session{
		store:     store,
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok, err := s.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return err
	}
	if !ok {
		s.token = ""
		return nil
	}

	if TokenExpired(token, s.now()) {
		logger.Infof("[会话] 本地令牌已过期，清除")
		s.token = ""
		return s.store.Delete(ctx, storage.KeyToken)
	}
	s.token = token
	return nil
}

// Token 当前令牌，未登录时为空
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated 是否持有令牌
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// State 当前状态快照
func (s *Session) State() State {
	token := s.Token()
	return State{Token: token, Authenticated: token != ""}
}

// SetToken 保存令牌，空令牌等同于 ClearToken
func (s *Session) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.ClearToken(ctx)
	}

	s.mu.Lock()
	s.token = token
	err := s.store.Set(ctx, storage.KeyToken, token)
	s.mu.Unlock()

	if err != nil {
		logger.Errorf("[会话] 持久化令牌失败: %v", err)
	} else {
		logger.Debugf("[会话] 令牌已保存")
	}
	s.notify()
	return err
}

// ClearToken 清除令牌
func (s *Session) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	err := s.store.Delete(ctx, storage.KeyToken)
	s.mu.Unlock()

	if err != nil {
		logger.Errorf("[会话] 删除持久化令牌失败: %v", err)
	} else {
		logger.Debugf("[会话] 令牌已清除")
	}
	s.notify()
	return err
}

// ClearIfCurrent 仅当令牌仍为 token 时清除，用于401处理，避免误清新登录的令牌
func (s *Session) ClearIfCurrent(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false, nil
	}
	s.token = ""
	err := s.store.Delete(ctx, storage.KeyToken)
	s.mu.Unlock()

	logger.Warnf("[会话] 令牌被服务端拒绝，已清除")
	s.notify()
	return true, err
}

// Reload 重新读取持久化存储，其他进程修改存储后调用
func (s *Session) Reload(ctx context.Context) error {
	before := s.Token()
	if err := s.load(ctx); err != nil {
		return err
	}
	if s.Token() != before {
		logger.Infof("[会话] 令牌已从存储重新加载")
		s.notify()
	}
	return nil
}

// OnChange 注册状态变化回调，返回取消函数
func (s *Session) OnChange(fn Listener) func() {
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

// notify 在锁外调用回调
func (s *Session) notify() {
	s.mu.RLock()
	state := State{Token: s.token, Authenticated: s.token != ""}
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(state)
	}
}

// TokenExpired 判断JWT令牌的exp是否已过，不校验签名
// 无法解析为JWT或没有exp的令牌视为未过期
func TokenExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
