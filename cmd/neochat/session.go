package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "会话管理",
	}

	var name, id string
	create := &cobra.Command{
		Use:   "create",
		Short: "创建会话",
		Run: func(cmd *cobra.Command, args []string) {
			s, err := core.Services.Sessions.Create(context.Background(), id, name)
			if err != nil {
				fail("创建会话失败: %v", err)
			}
			fmt.Printf("✅ 已创建会话 %s\n", s.ID)
		},
	}
	create.Flags().StringVarP(&name, "name", "n", "", "会话名称")
	create.Flags().StringVar(&id, "id", "", "会话 ID（默认自动生成）")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "列出会话",
		Run: func(cmd *cobra.Command, args []string) {
			sessions, err := core.Services.Sessions.List(context.Background(), limit)
			if err != nil {
				fail("查询会话失败: %v", err)
			}
			if len(sessions) == 0 {
				fmt.Println("📭 还没有会话")
				return
			}
			for _, s := range sessions {
				n, err := core.Services.Messages.Count(context.Background(), s.ID)
				if err != nil {
					fail("统计消息失败: %v", err)
				}
				fmt.Printf("  • %s  %s  (%s, %d 条消息)\n", s.ID, s.Name, s.CreatedAt.Format(time.DateTime), n)
			}
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "最大数量")

	del := &cobra.Command{
		Use:   "delete <session_id>",
		Short: "删除会话（连同时钟与消息）",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := core.Services.Sessions.Delete(context.Background(), args[0]); err != nil {
				fail("删除会话失败: %v", err)
			}
			fmt.Printf("🗑️  已删除会话 %s\n", args[0])
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}
