// Package clock 提供可替换的墙钟，业务逻辑通过它获取“当前真实时间”，测试中可手动推进。
package clock

import (
	"sync"
	"time"
)

// Clock 墙钟抽象
type Clock interface {
	Now() time.Time
}

// Real 使用系统时间
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Manual 手动推进的时钟（测试与回放使用），并发安全
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance 向前推进 d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set 直接设置当前时间
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
