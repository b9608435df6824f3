package models

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// The models carry no database-side uuid default: postgres gets its
// gen_random_uuid() from the goose migration, and services assign IDs before
// insert, so AutoMigrate must stay valid DDL on sqlite for the test fixtures.
func TestModelsMigrateOnSQLite(t *testing.T) {
	t.Parallel()

	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&Story{}, &ProcessedContent{}, &PlatformPublication{}, &ErrorLog{}, &ConfigEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	story := Story{ID: uuid.New(), ExternalID: "abc123", Title: "t", Body: "b"}
	if err := db.Create(&story).Error; err != nil {
		t.Fatalf("insert story: %v", err)
	}
}
