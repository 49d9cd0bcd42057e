// Package command 命令行前端
// 每个子命令组装一次客户端，调用日记服务后把缓存结果和通知渲染到终端
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/weiwangfds/scijournal/config"
	"github.com/weiwangfds/scijournal/internal/app"
	apperrors "github.com/weiwangfds/scijournal/internal/errors"
	"github.com/weiwangfds/scijournal/internal/i18n"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/service/notification"
)

// Version 程序版本
const Version = "1.0.0"

type configKey struct{}

// ErrFailed 命令失败且原因已经输出，调用方只需设置退出码
var ErrFailed = errors.New("command failed")

// NewApp 创建命令行程序
// 参数:
//   - opts: 组装客户端时附加的选项，测试中用于替换存储或HTTP客户端
func NewApp(opts ...app.Option) *cli.App {
	return &cli.App{
		Name:    "scijournal",
		Usage:   "personal journal client",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to journal.yaml",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if lvl := c.String("log-level"); lvl != "" {
				cfg.Log.Level = lvl
			}
			if err := logger.Init(&cfg.Log); err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			c.Context = context.WithValue(c.Context, configKey{}, cfg)
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(opts),
			registerCommand(opts),
			logoutCommand(opts),
			statusCommand(opts),
			entriesCommand(opts),
			statsCommand(opts),
			categoriesCommand(opts),
			prefsCommand(opts),
		},
		// 退出码由 main 决定
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

func configFrom(c *cli.Context) *config.Config {
	cfg, _ := c.Context.Value(configKey{}).(*config.Config)
	return cfg
}

// withApp 组装客户端并在命令结束后释放
func withApp(opts []app.Option, fn func(c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := configFrom(c)
		if cfg == nil {
			return errors.New("configuration not loaded")
		}
		a, err := app.New(c.Context, cfg, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.Storage.Watch {
			if err := a.Watch(c.Context); err != nil {
				logger.Warnf("[存储监听] 启动失败: %v", err)
			}
		}
		return fn(c, a)
	}
}

// printNotice 输出当前通知
func printNotice(w io.Writer, center *notification.Center) {
	n := center.Current()
	if n == nil {
		return
	}
	prefix := "•"
	switch n.Severity {
	case notification.SeveritySuccess:
		prefix = "✓"
	case notification.SeverityError:
		prefix = "✗"
	case notification.SeverityWarning:
		prefix = "!"
	}
	fmt.Fprintf(w, "%s %s\n", prefix, n.Message)
}

// finish 输出变更操作的通知，失败时返回 ErrFailed
func finish(c *cli.Context, a *app.App, err error) error {
	printNotice(c.App.Writer, a.Notifications)
	if err != nil {
		logger.Debugf("[日记] 命令失败: %v", err)
		return ErrFailed
	}
	return nil
}

// queryFailed 查询失败时输出可读消息
func queryFailed(c *cli.Context, err error) error {
	fmt.Fprintf(c.App.ErrWriter, "✗ %s\n", apperrors.UserMessage(err))
	return ErrFailed
}

// signalContext 收到中断信号时取消
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func translate(key string) string {
	return i18n.GetInstance().T(key)
}
