package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fly2outerspace/NeoChat/internal/bootstrap"
	"github.com/fly2outerspace/NeoChat/internal/httpapi"
	"github.com/fly2outerspace/NeoChat/internal/pkg/clock"
	"github.com/fly2outerspace/NeoChat/internal/pkg/config"
	"github.com/spf13/cobra"
)

// serveCmd 启动 HTTP 服务；配置文件变更时热更新日志级别
func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 服务",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Watch(cfgFile, func(next *config.Config) {
				config.SetLogLevel(next.App.LogLevel)
			})
			if err != nil {
				fail("加载配置失败: %v", err)
			}
			config.SetupLogger(cfg.App.LogLevel)

			c, err := bootstrap.NewCoreFromConfig(cfg, clock.Real{})
			if err != nil {
				fail("初始化失败: %v", err)
			}
			defer c.Close()

			srv, err := httpapi.Start(ctx, c, httpapi.Options{ListenAddr: listen})
			if err != nil {
				fail("启动 HTTP 服务失败: %v", err)
			}
			slog.Info("NeoChat 已启动", "name", cfg.App.Name, "base_url", srv.BaseURL(), "timezone", c.Loc.String())

			<-ctx.Done()
			slog.Info("收到退出信号，正在关闭")
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "监听地址（默认取配置 server.listen_addr）")
	return cmd
}

// initConfigCmd 写出默认配置
func initConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "生成默认配置文件",
		Run: func(cmd *cobra.Command, args []string) {
			path := cfgFile
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				fail("配置文件已存在: %s（使用 --force 覆盖）", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				fail("检查配置文件失败: %v", err)
			}
			if err := config.WriteFile(path, config.Default()); err != nil {
				fail("写入配置失败: %v", err)
			}
			fmt.Printf("✅ 已生成配置文件: %s\n", path)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "覆盖已存在的配置文件")
	return cmd
}
