package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fly2outerspace/NeoChat/internal/service"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
	"github.com/spf13/cobra"
)

func timeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time",
		Short: "会话虚拟时钟",
	}

	var format string
	show := &cobra.Command{
		Use:   "show <session_id>",
		Short: "查看时钟",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireSession(ctx, args[0])
			snap, err := core.Services.Clocks.Snapshot(ctx, args[0])
			if err != nil {
				fail("读取时钟失败: %v", err)
			}
			printClock(snap)
			if format != "" {
				fmt.Printf("  当前（%s）: %s\n", format,
					service.FormatTime(snap.CurrentVirtual, core.Loc, service.ParseTimeFormat(format)))
			}
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "", "额外输出格式: readable|iso|timestamp|logfile")

	list := &cobra.Command{
		Use:   "list",
		Short: "列出全部时钟",
		Run: func(cmd *cobra.Command, args []string) {
			records, err := core.Repos.Clocks.List(context.Background())
			if err != nil {
				fail("查询时钟失败: %v", err)
			}
			if len(records) == 0 {
				fmt.Println("📭 还没有时钟")
				return
			}
			for _, rec := range records {
				if rec.Err != nil {
					fmt.Printf("  ⚠️  %s: %v\n", rec.SessionID, rec.Err)
					continue
				}
				fmt.Printf("  • %s  base=%s  actions=%d  speed=%g\n",
					rec.SessionID,
					vclock.FormatTimestamp(rec.State.BaseVirtual, core.Loc),
					len(rec.State.Actions),
					rec.State.EffectiveSpeed(),
				)
			}
		},
	}

	seek := &cobra.Command{
		Use:   "seek <session_id> <YYYY-MM-DD HH:MM:SS>",
		Short: "跳转到指定虚拟时间",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireSession(ctx, args[0])
			snap, err := core.Services.Clocks.Seek(ctx, args[0], args[1])
			if err != nil {
				fail("跳转失败: %v", err)
			}
			printClock(snap)
		},
	}

	nudge := &cobra.Command{
		Use:   "nudge <session_id> <delta_seconds>",
		Short: "平移虚拟时间（秒，可为负）",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			delta := parseFloatArg("delta_seconds", args[1])
			requireSession(ctx, args[0])
			snap, err := core.Services.Clocks.Nudge(ctx, args[0], delta)
			if err != nil {
				fail("平移失败: %v", err)
			}
			printClock(snap)
		},
	}

	speed := &cobra.Command{
		Use:   "speed <session_id> <multiplier>",
		Short: "设置倍速（0 为暂停）",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			v := parseFloatArg("multiplier", args[1])
			requireSession(ctx, args[0])
			snap, err := core.Services.Clocks.SetSpeed(ctx, args[0], v)
			if err != nil {
				fail("设置倍速失败: %v", err)
			}
			printClock(snap)
		},
	}

	var note string
	freeze := &cobra.Command{
		Use:   "freeze <session_id>",
		Short: "冻结虚拟时间",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireSession(ctx, args[0])
			snap, err := core.Services.Clocks.Freeze(ctx, args[0], note)
			if err != nil {
				fail("冻结失败: %v", err)
			}
			printClock(snap)
		},
	}
	freeze.Flags().StringVar(&note, "note", "", "备注")

	rebase := &cobra.Command{
		Use:   "rebase <session_id>",
		Short: "压平动作日志（显示时间不变）",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireSession(ctx, args[0])
			snap, err := core.Services.Clocks.Rebase(ctx, args[0])
			if err != nil {
				fail("rebase 失败: %v", err)
			}
			printClock(snap)
		},
	}

	cmd.AddCommand(show, list, seek, nudge, speed, freeze, rebase)
	return cmd
}

func requireSession(ctx context.Context, id string) {
	ok, err := core.Services.Sessions.Exists(ctx, id)
	if err != nil {
		fail("查询会话失败: %v", err)
	}
	if !ok {
		fail("会话不存在: %s", id)
	}
}

func parseFloatArg(name, raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		fail("%s 不是数字: %s", name, raw)
	}
	return v
}

func printClock(snap service.ClockSnapshot) {
	loc := core.Loc
	st := snap.State
	fmt.Printf("🕒 会话 %s\n", st.SessionID)
	fmt.Printf("  虚拟时间: %s\n", vclock.FormatTimestamp(snap.CurrentVirtual, loc))
	fmt.Printf("  真实时间: %s\n", vclock.FormatTimestamp(snap.CurrentReal, loc))
	fmt.Printf("  基准: %s @ %s\n", vclock.FormatTimestamp(st.BaseVirtual, loc), vclock.FormatTimestamp(st.BaseReal, loc))
	fmt.Printf("  倍速: %g", st.EffectiveSpeed())
	if st.Frozen() {
		fmt.Print("（已冻结）")
	}
	fmt.Println()
	for i, a := range st.Actions {
		line := fmt.Sprintf("    %d. %s %g", i+1, a.Kind, a.Value)
		if a.Note != "" {
			line += "  # " + a.Note
		}
		fmt.Println(line)
	}
}
