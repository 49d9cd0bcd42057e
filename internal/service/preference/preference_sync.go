package preference

import (
	"context"
	"sync"

	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/model"
)

// RemoteAPI 服务端偏好接口
type RemoteAPI interface {
	GetPreferences(ctx context.Context) (model.RemotePreferences, error)
	UpdatePreferences(ctx context.Context, prefs model.RemotePreferences) (model.RemotePreferences, error)
}

// SyncStatus 同步状态
type SyncStatus struct {
	// Syncing 至少有一个同步请求在途
	Syncing bool
	// LastError 最后完成的请求的错误，为空表示成功
	LastError error
}

// Message 错误消息，无错误时为空
func (s SyncStatus) Message() string {
	return apperrors.UserMessage(s.LastError)
}

// Synchronizer 将本地偏好与服务端对齐
// 并发调用不去重，错误状态以最后完成的请求为准
type Synchronizer struct {
	store *Store
	api   RemoteAPI

	mu       sync.Mutex
	inFlight int
	lastErr  error
}

// NewSynchronizer 创建同步器
func NewSynchronizer(store *Store, api RemoteAPI) *Synchronizer {
	return &Synchronizer{store: store, api: api}
}

func (s *Synchronizer) begin() {
	s.mu.Lock()
	s.inFlight++
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Synchronizer) finish(err error) {
	s.mu.Lock()
	s.inFlight--
	s.lastErr = err
	s.mu.Unlock()
}

// Status 当前同步状态
func (s *Synchronizer) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncStatus{Syncing: s.inFlight > 0, LastError: s.lastErr}
}

// Fetch 拉取服务端偏好并合并到本地，服务端缺失的字段保持不变
func (s *Synchronizer) Fetch(ctx context.Context) (model.Preferences, error) {
	s.begin()

	remote, err := s.api.GetPreferences(ctx)
	if err != nil {
		appErr := apperrors.Wrap(apperrors.ErrPreferencesFetchFailed, "", err)
		logger.Warnf("[偏好同步] 拉取失败: %v", err)
		s.finish(appErr)
		return s.store.Get(), appErr
	}

	prefs, err := s.store.Update(ctx, remote.ToPatch())
	if err != nil {
		appErr := apperrors.Wrap(apperrors.ErrPreferencesFetchFailed, "", err)
		s.finish(appErr)
		return prefs, appErr
	}

	logger.Debugf("[偏好同步] 拉取完成")
	s.finish(nil)
	return prefs, nil
}

// Save 将补丁中服务端支持的字段推送到服务端，本地偏好不变
func (s *Synchronizer) Save(ctx context.Context, patch model.PreferencesPatch) error {
	s.begin()

	remote := model.RemoteFromPatch(patch)
	if remote.IsEmpty() {
		s.finish(nil)
		return nil
	}

	if _, err := s.api.UpdatePreferences(ctx, remote); err != nil {
		appErr := apperrors.Wrap(apperrors.ErrPreferencesSaveFailed, "", err)
		logger.Warnf("[偏好同步] 推送失败: %v", err)
		s.finish(appErr)
		return appErr
	}

	logger.Debugf("[偏好同步] 推送完成")
	s.finish(nil)
	return nil
}

// SaveAll 推送完整的本地偏好
func (s *Synchronizer) SaveAll(ctx context.Context) error {
	return s.Save(ctx, model.PatchFromPreferences(s.store.Get()))
}
