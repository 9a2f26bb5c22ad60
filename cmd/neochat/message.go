package main

import (
	"context"
	"fmt"

	"github.com/fly2outerspace/NeoChat/internal/service"
	"github.com/spf13/cobra"
)

func messageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "会话消息",
	}

	var role string
	add := &cobra.Command{
		Use:   "add <session_id> <content>",
		Short: "写入消息（自动记录虚拟时间）",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireSession(ctx, args[0])
			msg, err := core.Services.Messages.Create(ctx, service.NewMessage{
				SessionID: args[0],
				Role:      role,
				Content:   args[1],
			})
			if err != nil {
				fail("写入消息失败: %v", err)
			}
			fmt.Printf("✅ #%d [%s] %s\n", msg.Seq, msg.VirtualCreatedAt, msg.ID)
		},
	}
	add.Flags().StringVarP(&role, "role", "r", "user", "角色: user|assistant|system")

	var limit int
	list := &cobra.Command{
		Use:   "list <session_id>",
		Short: "查看消息",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireSession(ctx, args[0])
			msgs, err := core.Services.Messages.List(ctx, args[0], limit)
			if err != nil {
				fail("查询消息失败: %v", err)
			}
			if len(msgs) == 0 {
				fmt.Println("📭 还没有消息")
				return
			}
			for _, m := range msgs {
				fmt.Printf("  %s - %s : %s\n", m.VirtualCreatedAt, m.Role, m.Content)
			}
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "最大数量")

	cmd.AddCommand(add, list)
	return cmd
}
