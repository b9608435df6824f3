package sysconfig

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/pkg/config"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	dsn := "file:sysconfig_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ConfigEntry{}); err != nil {
		t.Fatalf("migrate config: %v", err)
	}
	svc, err := NewService(
		NewRepository(db),
		config.PipelineConfig{MinPopularity: 10, ScoreThreshold: 60, MinContentLength: 200, MaxContentLength: 10000, Language: "es"},
		config.PublishingConfig{StartHour: 9, EndHour: 23},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestDefaultsWhenTableEmpty(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	if got := svc.MinPopularity(ctx); got != 10 {
		t.Fatalf("expected default min popularity 10, got %d", got)
	}
	if got := svc.ScoreThreshold(ctx); got != 60 {
		t.Fatalf("expected default threshold 60, got %d", got)
	}
	if got := svc.Language(ctx); got != "es" {
		t.Fatalf("expected default language es, got %q", got)
	}
}

func TestSetOverridesDefault(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, KeyScoreThreshold, "75", "raised for launch week"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := svc.ScoreThreshold(ctx); got != 75 {
		t.Fatalf("expected threshold 75, got %d", got)
	}

	// second write updates in place
	if err := svc.Set(ctx, KeyScoreThreshold, "50", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := svc.ScoreThreshold(ctx); got != 50 {
		t.Fatalf("expected threshold 50, got %d", got)
	}

	entries, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestSetRejectsUnknownKey(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	err := svc.Set(context.Background(), "pipeline.bogus", "1", "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMalformedValueFallsBack(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, KeyMinPopularity, "not-a-number", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := svc.MinPopularity(ctx); got != 10 {
		t.Fatalf("expected fallback 10 for malformed value, got %d", got)
	}
}

func TestSchedulingWindowGuardsInversion(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, KeySchedulingStart, "23", ""); err != nil {
		t.Fatalf("set start: %v", err)
	}
	if err := svc.Set(ctx, KeySchedulingEnd, "9", ""); err != nil {
		t.Fatalf("set end: %v", err)
	}

	start, end := svc.SchedulingWindow(ctx)
	if start != 9 || end != 23 {
		t.Fatalf("expected env window 9-23 when override inverts, got %d-%d", start, end)
	}
}
