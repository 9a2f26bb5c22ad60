package schema

// SessionClock 会话虚拟时钟（每个会话一行，懒创建）
// 时间字段均为 "YYYY-MM-DD HH:MM:SS" 的无时区字符串，时区由配置 clock.timezone 决定。
type SessionClock struct {
	SessionID   string `gorm:"primaryKey;size:64" json:"session_id"`
	VirtualBase string `gorm:"column:virtual_base;size:19;not null" json:"virtual_base"`
	RealBase    string `gorm:"column:real_base;size:19;not null" json:"real_base"`
	Actions     string `gorm:"type:text;not null;default:'[]'" json:"actions"` // TimeAction 列表（JSON）
	Revision    int64  `gorm:"not null;default:1" json:"revision"`                 // 乐观锁版本号，每次保存 +1

	// 最近一次修改的记账字段，不参与投影计算
	VirtualUpdatedAt string `gorm:"column:updated_at;size:19" json:"updated_at"`
	RealUpdatedAt    string `gorm:"column:real_updated_at;size:19" json:"real_updated_at"`
}

// TableName 指定表名
func (SessionClock) TableName() string {
	return "session_clock"
}
