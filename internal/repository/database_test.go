package repository

import (
	"path/filepath"
	"testing"

	"github.com/fly2outerspace/NeoChat/internal/schema"
)

func TestNewDatabaseMigratesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "chat.db")

	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	if db.SafeMode || db.SchemaVersion != latestSchemaVersion {
		t.Fatalf("safe=%v version=%d", db.SafeMode, db.SchemaVersion)
	}
	for _, table := range []string{"sessions", "session_clock", "messages"} {
		if !db.DB.Migrator().HasTable(table) {
			t.Fatalf("table %s missing", table)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	again, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer again.Close()
	if again.SafeMode || again.SchemaVersion != latestSchemaVersion {
		t.Fatalf("reopen safe=%v version=%d", again.SafeMode, again.SchemaVersion)
	}
}

func TestNewDatabaseFutureSchemaEntersSafeMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	if err := db.DB.Model(&schema.SchemaMeta{}).Where("id = ?", 1).
		Update("schema_version", latestSchemaVersion+1).Error; err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	again, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer again.Close()
	if !again.SafeMode || again.MigrationError == "" {
		t.Fatalf("expected safe mode, got %+v", again)
	}
}
