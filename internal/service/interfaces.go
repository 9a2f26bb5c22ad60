package service

import (
	"context"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/eventbus"
	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
)

// 仓储/外部依赖的最小接口集合（ISP）

// ClockStore 会话时钟持久化。Save 必须是原子的：要么整条写入，要么不写。
type ClockStore interface {
	Load(ctx context.Context, sessionID string) (*vclock.State, error)
	CreateDefault(ctx context.Context, sessionID string, now time.Time) (*vclock.State, error)
	Save(ctx context.Context, st *vclock.State) error
}

type ChatSessionRepository interface {
	Create(ctx context.Context, session *schema.ChatSession) error
	GetByID(ctx context.Context, id string) (*schema.ChatSession, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, limit int) ([]schema.ChatSession, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *schema.Message) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]schema.Message, error)
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}

// VirtualClock 消息打时间戳所需的只读时钟视图
type VirtualClock interface {
	Snapshot(ctx context.Context, sessionID string) (ClockSnapshot, error)
}

type EventPublisher interface {
	Publish(evt eventbus.Event)
}
