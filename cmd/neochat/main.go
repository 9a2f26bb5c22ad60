package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fly2outerspace/NeoChat/internal/bootstrap"
	"github.com/fly2outerspace/NeoChat/internal/pkg/buildinfo"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

// 这些命令自行处理配置与数据库
var standalone = map[string]bool{
	"serve":       true,
	"init-config": true,
	"version":     true,
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "neochat",
		Short: "NeoChat - 带会话虚拟时钟的对话后端",
		Long:  `NeoChat 为每个会话维护一条可加速、暂停、平移的虚拟时间线，每条消息都记录其创建时的虚拟时间。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if standalone[cmd.Name()] {
				return
			}
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	// 添加子命令
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initConfigCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(timeCmd())
	rootCmd.AddCommand(messageCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildinfo.String())
		},
	}
}

func fail(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
