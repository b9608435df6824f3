package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:audit_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ErrorLog{}); err != nil {
		t.Fatalf("migrate error logs: %v", err)
	}
	return db
}

func TestRecordPersistsSynchronously(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	storyID := uuid.New()
	svc.Record(context.Background(), StoryRef(storyID), enums.ErrorCategoryValidation, "missing final artifact path")

	var entries []models.ErrorLog
	if err := db.Find(&entries).Error; err != nil {
		t.Fatalf("load entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].RelatedTable != enums.EntityKindStory {
		t.Fatalf("unexpected related table %q", entries[0].RelatedTable)
	}
	if entries[0].RelatedID == nil || *entries[0].RelatedID != storyID {
		t.Fatalf("unexpected related id %v", entries[0].RelatedID)
	}
	if entries[0].Resolved {
		t.Fatal("new entries must start unresolved")
	}
}

func TestResolveFlipsFlagOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	svc, _ := NewService(repo, nil)

	entry := &models.ErrorLog{
		RelatedTable: enums.EntityKindPublication,
		Category:     enums.ErrorCategoryDependency,
		Message:      "upload timeout",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Append(context.Background(), entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := svc.Resolve(context.Background(), entry.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	err := svc.Resolve(context.Background(), entry.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found on second resolve, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	svc, _ := NewService(repo, nil)
	ctx := context.Background()

	for _, entry := range []*models.ErrorLog{
		{RelatedTable: enums.EntityKindStory, Category: enums.ErrorCategoryValidation, Message: "a"},
		{RelatedTable: enums.EntityKindStory, Category: enums.ErrorCategoryLeaseExpired, Message: "b"},
		{RelatedTable: enums.EntityKindPublication, Category: enums.ErrorCategoryDependency, Message: "c", Resolved: true},
	} {
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := svc.List(ctx, ListParams{Kind: enums.EntityKindStory})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 story entries, got %d", len(entries))
	}

	entries, err = svc.List(ctx, ListParams{Unresolved: true})
	if err != nil {
		t.Fatalf("list unresolved: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 unresolved entries, got %d", len(entries))
	}
}

func TestDeleteResolvedBefore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	old := &models.ErrorLog{
		RelatedTable: enums.EntityKindStory,
		Category:     enums.ErrorCategoryRetention,
		Message:      "old",
		CreatedAt:    time.Now().UTC().Add(-48 * time.Hour),
		Resolved:     true,
	}
	fresh := &models.ErrorLog{
		RelatedTable: enums.EntityKindStory,
		Category:     enums.ErrorCategoryRetention,
		Message:      "fresh",
		CreatedAt:    time.Now().UTC(),
		Resolved:     true,
	}
	for _, entry := range []*models.ErrorLog{old, fresh} {
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	deleted, err := repo.DeleteResolvedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete resolved: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
}
