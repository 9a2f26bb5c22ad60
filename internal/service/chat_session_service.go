package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fly2outerspace/NeoChat/internal/eventbus"
	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/google/uuid"
)

// ErrSessionNotFound 会话不存在
var ErrSessionNotFound = errors.New("会话不存在")

// ChatSessionService 聊天会话的创建/查询/删除。
// 删除会话时一并删除其时钟与消息。
type ChatSessionService struct {
	repo   ChatSessionRepository
	events EventPublisher
}

func NewChatSessionService(repo ChatSessionRepository, events EventPublisher) *ChatSessionService {
	return &ChatSessionService{repo: repo, events: events}
}

// Create 创建会话，ID 为空时自动生成
func (s *ChatSessionService) Create(ctx context.Context, id, name string) (*schema.ChatSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	session := &schema.ChatSession{ID: id, Name: strings.TrimSpace(name)}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("会话已创建", "session_id", id)
	s.publish(eventbus.TypeSessionCreated, id)
	return session, nil
}

// Get 查询会话，不存在返回 ErrSessionNotFound
func (s *ChatSessionService) Get(ctx context.Context, id string) (*schema.ChatSession, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}

// Exists 会话是否存在
func (s *ChatSessionService) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	return s.repo.Exists(ctx, id)
}

func (s *ChatSessionService) List(ctx context.Context, limit int) ([]schema.ChatSession, error) {
	return s.repo.List(ctx, limit)
}

// Delete 删除会话及其时钟与消息
func (s *ChatSessionService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	slog.Info("会话已删除", "session_id", id)
	s.publish(eventbus.TypeSessionDeleted, id)
	return nil
}

func (s *ChatSessionService) publish(typ, id string) {
	if s.events == nil {
		return
	}
	s.events.Publish(eventbus.Event{Type: typ, SessionID: id})
}
