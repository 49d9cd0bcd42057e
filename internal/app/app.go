// Package app 组装客户端运行所需的全部组件
// 命令行的每个子命令都从这里拿到同一组显式依赖，不使用全局单例
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiwangfds/scijournal/config"
	"github.com/weiwangfds/scijournal/internal/client"
	"github.com/weiwangfds/scijournal/internal/database"
	"github.com/weiwangfds/scijournal/internal/i18n"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/service/cache"
	"github.com/weiwangfds/scijournal/internal/service/journal"
	"github.com/weiwangfds/scijournal/internal/service/notification"
	"github.com/weiwangfds/scijournal/internal/service/preference"
	"github.com/weiwangfds/scijournal/internal/service/session"
	"github.com/weiwangfds/scijournal/internal/service/storage"
	"github.com/weiwangfds/scijournal/internal/service/watcher"
	"gorm.io/gorm"
)

// App 客户端组件
type App struct {
	Config        *config.Config
	Store         storage.Store
	Session       *session.Session
	Preferences   *preference.Store
	Sync          *preference.Synchronizer
	Notifications *notification.Center
	Cache         *cache.Cache
	API           *client.Client
	Journal       *journal.Service

	db      *gorm.DB
	watcher *watcher.StoreWatcher
}

// Option 组装选项
type Option func(*options)

type options struct {
	clientOpts []client.Option
	store      storage.Store
}

// WithClientOptions 传递给接口客户端的选项
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithStore 使用给定的存储代替配置中的存储
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// New 按配置组装客户端
// 参数:
//   - ctx: 用于从存储恢复会话和偏好
//   - cfg: 已校验的配置
//
// 返回值:
//   - *App: 组装好的客户端，调用方负责 Close
//   - error: 打开存储或恢复状态失败
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	i18n.GetInstance().SetDefaultLanguage(cfg.App.Language)

	a := &App{Config: cfg}

	switch {
	case o.store != nil:
		a.Store = o.store
	case cfg.Storage.Driver == "memory":
		a.Store = storage.NewMemoryStore()
	default:
		db, err := database.InitLocal(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		a.db = db
		a.Store = storage.NewGormStore(db)
	}

	sess, err := session.New(ctx, a.Store)
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	a.Session = sess

	prefs, err := preference.NewStore(ctx, a.Store)
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	a.Preferences = prefs

	a.API = client.New(cfg.API, sess, o.clientOpts...)
	a.Sync = preference.NewSynchronizer(prefs, a.API)
	a.Notifications = notification.NewCenter(cfg.Notification.DefaultDuration)
	a.Cache = cache.New(cache.WithKeepUnusedFor(cfg.Cache.KeepUnusedFor))
	a.Journal = journal.NewService(a.API, a.Cache, sess, a.Notifications)

	logger.Debugf("[存储] 客户端已就绪: driver=%s api=%s", cfg.Storage.Driver, a.API.BaseURL())
	return a, nil
}

// Watch 监听本地存储文件，其他进程登录、退出或修改偏好后重新加载会话和偏好，并让日记数据过期
// 内存存储没有可监听的文件，直接返回；重复调用无副作用
func (a *App) Watch(ctx context.Context) error {
	if a.db == nil || a.watcher != nil {
		return nil
	}
	w := watcher.NewStoreWatcher(a.Config.Storage.DSN, 0,
		a.Session, a.Preferences, watcher.ReloadFunc(a.Journal.Revalidate))
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.watcher = w
	return nil
}

// Close 释放全部资源，可重复调用
func (a *App) Close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Stop())
		a.watcher = nil
	}
	if a.Journal != nil {
		a.Journal.Close()
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.Notifications != nil {
		a.Notifications.Dismiss()
	}
	errs = append(errs, a.closeDB())
	return errors.Join(errs...)
}

func (a *App) closeDB() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	a.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
