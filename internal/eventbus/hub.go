package eventbus

import (
	"context"
	"sync"
	"time"
)

// 事件类型
const (
	TypeClockUpdated   = "clock.updated"
	TypeMessageCreated = "message.created"
	TypeSessionCreated = "session.created"
	TypeSessionDeleted = "session.deleted"
)

type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

type subscriber struct {
	sessionID string // 为空表示接收全部会话
}

type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]subscriber)}
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, sub := range h.subs {
		if sub.sessionID != "" && sub.sessionID != evt.SessionID {
			continue
		}
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，避免阻塞时钟写路径
		}
	}
}

// Subscribe 订阅事件；sessionID 非空时只接收该会话的事件。ctx 结束后通道关闭。
func (h *Hub) Subscribe(ctx context.Context, buffer int, sessionID string) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = subscriber{sessionID: sessionID}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Subscribers 当前订阅数
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
