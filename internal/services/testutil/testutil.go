// Package testutil provides shared test utilities for service tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/lacyplayer-go/internal/database"
	"github.com/bbernstein/lacyplayer-go/internal/database/repositories"
)

// TestDB holds the test database and repositories.
type TestDB struct {
	DB          *gorm.DB
	SettingRepo *repositories.SettingRepository
	RecentRepo  *repositories.RecentProjectRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is closed when the test finishes.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// Each pooled connection to ":memory:" is a separate database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })

	return &TestDB{
		DB:          db,
		SettingRepo: repositories.NewSettingRepository(db),
		RecentRepo:  repositories.NewRecentProjectRepository(db),
	}
}

// UniqueProjectPath generates a unique project file path for testing.
func UniqueProjectPath(prefix string) string {
	return "/shows/" + prefix + "-" + cuid.New()[:8] + ".json"
}
