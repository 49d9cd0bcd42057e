// Package journal 日记业务服务：通过查询缓存读取数据，变更后按标签失效并发出通知
package journal

import (
	"context"

	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/i18n"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/model"
	"github.com/weiwangfds/scijournal/internal/service/cache"
	"github.com/weiwangfds/scijournal/internal/service/session"
)

// API 日记服务端接口
type API interface {
	Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error)
	Register(ctx context.Context, creds model.Credentials) (model.AuthResponse, error)

	ListEntries(ctx context.Context, params model.ListParams) (model.EntryList, error)
	GetEntry(ctx context.Context, id uint) (model.Entry, error)
	CreateEntry(ctx context.Context, in model.EntryInput) (model.Entry, error)
	UpdateEntry(ctx context.Context, id uint, in model.EntryInput) (model.Entry, error)
	DeleteEntry(ctx context.Context, id uint) error
	GetStats(ctx context.Context) (model.EntryStats, error)

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, in model.CategoryInput) (model.Category, error)
	UpdateCategory(ctx context.Context, id uint, in model.CategoryInput) (model.Category, error)
	DeleteCategory(ctx context.Context, id uint) error
}

// Notifier 通知出口
type Notifier interface {
	Success(message string) string
	Warning(message string) string
	Error(message string) string
}

// Service 日记服务
type Service struct {
	api      API
	cache    *cache.Cache
	session  *session.Session
	notifier Notifier

	unsubscribe func()

	entryList  cache.Query[model.ListParams, model.EntryList]
	entry      cache.Query[uint, model.Entry]
	stats      cache.Query[cache.NoParams, model.EntryStats]
	categories cache.Query[cache.NoParams, []model.Category]

	createEntry    cache.Mutation[model.EntryInput, model.Entry]
	updateEntry    cache.Mutation[entryUpdate, model.Entry]
	deleteEntry    cache.Mutation[uint, struct{}]
	createCategory cache.Mutation[model.CategoryInput, model.Category]
	updateCategory cache.Mutation[categoryUpdate, model.Category]
	deleteCategory cache.Mutation[uint, struct{}]
}

// NewService 创建日记服务，会话失效时清空查询缓存
func NewService(api API, c *cache.Cache, sess *session.Session, notifier Notifier) *Service {
	s := &Service{
		api:      api,
		cache:    c,
		session:  sess,
		notifier: notifier,
	}
	s.defineQueries()
	s.defineMutations()

	s.unsubscribe = sess.OnChange(func(st session.State) {
		if !st.Authenticated {
			logger.Debugf("[日记] 会话已结束，清空查询缓存")
			c.Reset()
		}
	})
	return s
}

// Close 取消会话监听
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Cache 查询缓存
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Login 登录并保存令牌
func (s *Service) Login(ctx context.Context, creds model.Credentials) error {
	return s.authenticate(ctx, creds, s.api.Login, "login_success", "login_failed")
}

// Register 注册并保存令牌
func (s *Service) Register(ctx context.Context, creds model.Credentials) error {
	return s.authenticate(ctx, creds, s.api.Register, "register_success", "register_failed")
}

func (s *Service) authenticate(
	ctx context.Context,
	creds model.Credentials,
	call func(context.Context, model.Credentials) (model.AuthResponse, error),
	successKey, failureKey string,
) error {
	if err := creds.Validate(); err != nil {
		s.notifier.Error(apperrors.UserMessage(err))
		return err
	}

	resp, err := call(ctx, creds)
	if err != nil {
		logger.Warnf("[日记] %s: %v", translate(failureKey), err)
		s.notifier.Error(failureMessage(failureKey, err))
		return err
	}
	if resp.Token == "" {
		err := apperrors.New(apperrors.ErrDecodeResponse, translate("decode_failed"))
		s.notifier.Error(translate(failureKey))
		return err
	}

	// 新账号不应看到上一个账号的缓存
	s.cache.Reset()
	// 令牌已在内存中生效，持久化失败只影响下次启动
	if err := s.session.SetToken(ctx, resp.Token); err != nil {
		logger.Warnf("[日记] 保存令牌失败: %v", err)
		s.notifier.Warning(translate("token_persist_failed"))
		return nil
	}
	s.notifier.Success(translate(successKey))
	return nil
}

// Logout 清除令牌和缓存
func (s *Service) Logout(ctx context.Context) error {
	err := s.session.ClearToken(ctx)
	s.cache.Reset()
	if err != nil {
		return err
	}
	s.notifier.Success(translate("logout_success"))
	return nil
}

// IsAuthenticated 当前是否持有令牌
func (s *Service) IsAuthenticated() bool {
	return s.session.IsAuthenticated()
}

// failureMessage 认证失败时优先展示服务端给出的原因
func failureMessage(key string, err error) string {
	if appErr, ok := apperrors.GetAppError(err); ok && appErr.Status != 0 {
		switch appErr.Kind() {
		case apperrors.KindAuth, apperrors.KindValidation:
			return appErr.Message
		}
	}
	return translate(key)
}

func translate(key string) string {
	return i18n.GetInstance().T(key)
}
