package repository

import (
	"context"
	"fmt"

	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/fly2outerspace/NeoChat/internal/vclock"
	"gorm.io/gorm"
)

// MessageRepository 消息仓储
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 写入消息并分配会话内序号（事务内取 MAX(seq)+1）
func (r *MessageRepository) Create(ctx context.Context, msg *schema.Message) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&schema.Message{}).
			Select("COALESCE(MAX(seq), 0)").
			Where("session_id = ?", msg.SessionID).
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("查询消息序号失败: %w", err)
		}
		msg.Seq = maxSeq + 1
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", vclock.ErrPersistence, err)
	}
	return nil
}

// ListBySession 返回会话最近 limit 条消息（按序号升序）
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]schema.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var msgs []schema.Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("%w: 查询消息失败: %w", vclock.ErrPersistence, err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountBySession 统计会话消息数
func (r *MessageRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&schema.Message{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: 统计消息失败: %w", vclock.ErrPersistence, err)
	}
	return count, nil
}
