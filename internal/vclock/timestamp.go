package vclock

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Layout 对外时间戳格式（秒精度，不带时区）
const Layout = "2006-01-02 15:04:05"

// ParseTimestamp 按 loc 解析 "YYYY-MM-DD HH:MM:SS"
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty value, expected 'YYYY-MM-DD HH:MM:SS'", ErrInvalidTimestamp)
	}
	t, err := time.ParseInLocation(Layout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q, expected 'YYYY-MM-DD HH:MM:SS'", ErrInvalidTimestamp, value)
	}
	if !InRange(t) {
		return time.Time{}, fmt.Errorf("%w: %q out of range (%s)", ErrInvalidTimestamp, value, rangeText)
	}
	return t, nil
}

// 可落库的时间范围：四位年份。两端各留一天，任何时区下格式化后仍是四位年份。
var (
	minTimestamp = time.Date(1, 1, 2, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(9999, 12, 30, 23, 59, 59, 0, time.UTC)
)

const rangeText = "0001-01-02 ~ 9999-12-30"

// InRange 判断 t 能否按 Layout 写入并原样读回
func InRange(t time.Time) bool {
	return !t.Before(minTimestamp) && !t.After(maxTimestamp)
}

// FormatTimestamp 按 loc 输出秒精度字符串，亚秒部分直接截断
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(Layout)
}

// maxShiftSeconds 单次平移上限（约 3000 万年），远超可落库范围，
// 保证 int64 换算不溢出；超出的结果由 InRange 拒绝。
const maxShiftSeconds = 1e15

// addSeconds 以秒为单位平移时间。拆成整秒与纳秒两部分，避免超大偏移
// 经 time.Duration（约 ±292 年）溢出。
func addSeconds(t time.Time, secs float64) time.Time {
	if secs == 0 || math.IsNaN(secs) {
		return t
	}
	secs = math.Max(-maxShiftSeconds, math.Min(maxShiftSeconds, secs))
	whole := math.Trunc(secs)
	frac := secs - whole
	nsec := int64(t.Nanosecond()) + int64(math.Round(frac*1e9))
	return time.Unix(t.Unix()+int64(whole), nsec).In(t.Location())
}

// toSecond 截断到秒（基准时间统一按秒精度保存）
func toSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
