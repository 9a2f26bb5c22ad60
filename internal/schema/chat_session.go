package schema

import "time"

// ChatSession 聊天会话（时钟与消息的归属方）
type ChatSession struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ChatSession) TableName() string {
	return "sessions"
}
