package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
	"gorm.io/gorm"
)

// ChatSessionRepository 聊天会话仓储
type ChatSessionRepository struct {
	db *gorm.DB
}

// NewChatSessionRepository 创建会话仓储
func NewChatSessionRepository(db *gorm.DB) *ChatSessionRepository {
	return &ChatSessionRepository{db: db}
}

// Create 创建会话
func (r *ChatSessionRepository) Create(ctx context.Context, session *schema.ChatSession) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	if session.ID == "" {
		return fmt.Errorf("session id 不能为空")
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("%w: 创建会话失败: %w", vclock.ErrPersistence, err)
	}
	return nil
}

// GetByID 按 ID 查询会话，不存在返回 nil, nil
func (r *ChatSessionRepository) GetByID(ctx context.Context, id string) (*schema.ChatSession, error) {
	var session schema.ChatSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: 查询会话失败: %w", vclock.ErrPersistence, err)
	}
	return &session, nil
}

// Exists 会话是否存在
func (r *ChatSessionRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&schema.ChatSession{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: 查询会话失败: %w", vclock.ErrPersistence, err)
	}
	return count > 0, nil
}

// List 按创建时间倒序列出会话
func (r *ChatSessionRepository) List(ctx context.Context, limit int) ([]schema.ChatSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var sessions []schema.ChatSession
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("%w: 查询会话列表失败: %w", vclock.ErrPersistence, err)
	}
	return sessions, nil
}

// Delete 删除会话及其时钟、消息（单事务）
func (r *ChatSessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&schema.Message{}).Error; err != nil {
			return fmt.Errorf("删除会话消息失败: %w", err)
		}
		if err := tx.Where("session_id = ?", id).Delete(&schema.SessionClock{}).Error; err != nil {
			return fmt.Errorf("删除会话时钟失败: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&schema.ChatSession{})
		if res.Error != nil {
			return fmt.Errorf("删除会话失败: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", vclock.ErrPersistence, err)
	}
	return deleted, nil
}
