package schema

import "time"

// SchemaMeta 记录数据库 schema 版本，迁移以版本号为门闸。
// 表内仅维护单行（ID=1）。
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	AppVersion    string    `gorm:"size:32"` // 最近一次执行迁移的程序版本
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}
