package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fly2outerspace/NeoChat/internal/eventbus"
	"github.com/fly2outerspace/NeoChat/internal/pkg/clock"
	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
	"github.com/google/uuid"
)

// ErrInvalidRole 消息角色不合法
var ErrInvalidRole = errors.New("消息角色不合法")

// MessageService 消息写入：每条消息打上所属会话的虚拟时间，只读时钟，不修改时钟
type MessageService struct {
	repo   MessageRepository
	clocks VirtualClock
	clock  clock.Clock
	loc    *time.Location
	events EventPublisher
	locks  *keyedMutex
}

// NewMessageService 创建消息服务
func NewMessageService(repo MessageRepository, clocks VirtualClock, clk clock.Clock, loc *time.Location, events EventPublisher) *MessageService {
	if clk == nil {
		clk = clock.Real{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &MessageService{
		repo:   repo,
		clocks: clocks,
		clock:  clk,
		loc:    loc,
		events: events,
		locks:  newKeyedMutex(),
	}
}

// NewMessage 写入消息的参数
type NewMessage struct {
	SessionID string
	Role      string
	Content   string
}

// Create 写入一条消息。同一会话内按调用顺序写入，虚拟时间不回退
// （除非期间时钟被人为回拨）。
func (s *MessageService) Create(ctx context.Context, in NewMessage) (*schema.Message, error) {
	if in.SessionID == "" {
		return nil, ErrEmptySessionID
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(in.SessionID)
	defer unlock()

	snap, err := s.clocks.Snapshot(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("读取会话虚拟时间失败: %w", err)
	}

	msg := &schema.Message{
		ID:               uuid.NewString(),
		SessionID:        in.SessionID,
		Role:             role,
		Content:          in.Content,
		VirtualCreatedAt: vclock.FormatTimestamp(snap.CurrentVirtual, s.loc),
		RealCreatedAt:    vclock.FormatTimestamp(s.clock.Now(), s.loc),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	slog.Debug("消息已写入", "session_id", msg.SessionID, "seq", msg.Seq, "virtual_time", msg.VirtualCreatedAt)
	if s.events != nil {
		s.events.Publish(eventbus.Event{
			Type:      eventbus.TypeMessageCreated,
			SessionID: msg.SessionID,
			Data: map[string]any{
				"id":         msg.ID,
				"seq":        msg.Seq,
				"role":       msg.Role,
				"created_at": msg.VirtualCreatedAt,
				"preview":    truncateRunes(msg.Content, 60),
			},
		})
	}
	return msg, nil
}

// List 会话最近 limit 条消息
func (s *MessageService) List(ctx context.Context, sessionID string, limit int) ([]schema.Message, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	return s.repo.ListBySession(ctx, sessionID, limit)
}

// Count 会话消息总数
func (s *MessageService) Count(ctx context.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, ErrEmptySessionID
	}
	return s.repo.CountBySession(ctx, sessionID)
}

func parseRole(raw string) (string, error) {
	role := strings.ToLower(strings.TrimSpace(raw))
	switch role {
	case "":
		return schema.RoleUser, nil
	case schema.RoleUser, schema.RoleAssistant, schema.RoleSystem:
		return role, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// truncateRunes 按 rune 数量截断，超长时追加省略号
func truncateRunes(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
