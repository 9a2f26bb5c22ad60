package testutil

import (
	"testing"

	"github.com/fly2outerspace/NeoChat/internal/schema"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB 打开内存 SQLite 并自动迁移所有表
//
// 连接池限制为 1：:memory: 库按连接隔离，多连接会看到不同的库。
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&schema.SchemaMeta{},
		&schema.ChatSession{},
		&schema.SessionClock{},
		&schema.Message{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}
