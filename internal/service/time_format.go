package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/vclock"
)

// TimeFormat 当前时间的输出格式
type TimeFormat string

const (
	FormatReadable  TimeFormat = "readable"  // 2006-01-02 15:04:05
	FormatISO       TimeFormat = "iso"       // 2006-01-02T15:04:05
	FormatTimestamp TimeFormat = "timestamp" // unix 秒
	FormatLogfile   TimeFormat = "logfile"   // 20060102150405
)

// ParseTimeFormat 解析格式名；空串或未知名称按 readable 处理
func ParseTimeFormat(name string) TimeFormat {
	switch f := TimeFormat(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatISO, FormatTimestamp, FormatLogfile:
		return f
	default:
		return FormatReadable
	}
}

// FormatTime 按格式输出 t（先换算到 loc）
func FormatTime(t time.Time, loc *time.Location, format TimeFormat) string {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc).Truncate(time.Second)
	switch format {
	case FormatISO:
		return t.Format("2006-01-02T15:04:05")
	case FormatTimestamp:
		return strconv.FormatInt(t.Unix(), 10)
	case FormatLogfile:
		return t.Format("20060102150405")
	default:
		return vclock.FormatTimestamp(t, loc)
	}
}
