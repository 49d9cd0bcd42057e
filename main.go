// @title SciJournal Dev API
// @version 1.0
// @description 日记客户端开发服务器
// @BasePath /api
// @schemes http

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 格式为 Bearer <token>
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/weiwangfds/scijournal/internal/command"
)

func main() {
	if err := command.NewApp().Run(os.Args); err != nil {
		// 失败原因已经输出
		if !errors.Is(err, command.ErrFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
