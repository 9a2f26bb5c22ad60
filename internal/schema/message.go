package schema

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message 会话消息
// 数据量级：万级/会话
type Message struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	SessionID string `gorm:"size:64;not null;uniqueIndex:idx_messages_session_seq,priority:1" json:"session_id"`
	Seq       int64  `gorm:"not null;uniqueIndex:idx_messages_session_seq,priority:2" json:"seq"` // 会话内自增序号
	Role      string `gorm:"size:20;not null" json:"role"`
	Content   string `gorm:"type:text" json:"content"`

	VirtualCreatedAt string `gorm:"column:created_at;size:19;index" json:"created_at"` // 会话虚拟时间（展示用）
	RealCreatedAt    string `gorm:"column:real_created_at;size:19" json:"real_created_at"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}
