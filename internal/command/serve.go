package command

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/weiwangfds/scijournal/config"
	"github.com/weiwangfds/scijournal/internal/database"
	"github.com/weiwangfds/scijournal/internal/logger"
	"github.com/weiwangfds/scijournal/internal/router"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the development journal backend",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port, overrides server.port"},
		},
		Action: func(c *cli.Context) error {
			cfg := configFrom(c).Server
			if c.IsSet("port") {
				cfg.Port = c.Int("port")
			}
			ctx, stop := signalContext(c.Context)
			defer stop()
			return Serve(ctx, cfg, nil)
		},
	}
}

// Serve 启动开发服务器，ctx 取消后优雅关闭
// ready 非空时在开始监听后收到实际地址
func Serve(ctx context.Context, cfg config.ServerConfig, ready chan<- string) error {
	db, err := database.InitServer(cfg.Database)
	if err != nil {
		return err
	}

	r := router.NewRouter(db, cfg)
	defer func() {
		if sqlDB, err := r.GetDB().DB(); err == nil {
			sqlDB.Close()
		}
	}()

	var handler http.Handler = r.GetEngine()
	// 明文HTTP/2，开发环境无需证书
	if cfg.EnableHTTP2 {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[接口] 开发服务器启动在 %s (HTTP/2: %v)", ln.Addr(), cfg.EnableHTTP2)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("[接口] 正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Infof("[接口] 服务器已退出")
	return nil
}
