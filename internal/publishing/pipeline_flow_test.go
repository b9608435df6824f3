package publishing_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/internal/captions"
	"github.com/andresvelez/shortreel-backend/internal/ingest"
	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/internal/publishing"
	"github.com/andresvelez/shortreel-backend/internal/scoring"
	"github.com/andresvelez/shortreel-backend/internal/sysconfig"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

type flowNarrator struct{}

func (flowNarrator) Narrate(ctx context.Context, script, language string) (processing.Narration, error) {
	return processing.Narration{AudioPath: "storage/audio/flow.mp3", Duration: 42}, nil
}

type flowLibrary struct{}

func (flowLibrary) PickBackground(ctx context.Context) (string, error) {
	return "storage/backgrounds/gameplay.mp4", nil
}

type flowRenderer struct{}

func (flowRenderer) Render(ctx context.Context, req processing.RenderRequest) (string, error) {
	return "storage/videos/flow.mp4", nil
}

// TestStoryLifecycleEndToEnd drives one story through ingestion, selection,
// rendering, scheduling and dispatch, checking the persisted state after each
// stage.
func TestStoryLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	dsn := "file:flow_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Story{}, &models.ProcessedContent{}, &models.PlatformPublication{}, &models.ErrorLog{}, &models.ConfigEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "flow-test", Output: io.Discard})

	configService, err := sysconfig.NewService(
		sysconfig.NewRepository(db),
		config.PipelineConfig{
			MinPopularity:    10,
			MinContentLength: 100,
			MaxContentLength: 10000,
			ScoreThreshold:   40,
			Language:         "es",
		},
		config.PublishingConfig{StartHour: 9, EndHour: 23, IntervalHours: 3},
	)
	if err != nil {
		t.Fatalf("config service: %v", err)
	}

	auditor, err := audit.NewService(audit.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}

	selector, err := scoring.NewService(scoring.NewRepository(db), configService, scoring.DefaultPolicy())
	if err != nil {
		t.Fatalf("scoring service: %v", err)
	}

	ingester, err := ingest.NewService(ingest.NewRepository(db), configService, auditor, scoring.DefaultPolicy(), logg)
	if err != nil {
		t.Fatalf("ingest service: %v", err)
	}

	engine, err := captions.NewEngine(
		captions.Params{
			Canvas:         captions.Canvas{Width: 1080, Height: 1920},
			WordSpacing:    18,
			LineSpacing:    84,
			TopOffset:      640,
			LineHeight:     60,
			HighlightCount: 2,
		},
		captions.FixedWidthMeasurer{CharWidth: 12},
		captions.SeededHighlight{Seed: 7},
	)
	if err != nil {
		t.Fatalf("caption engine: %v", err)
	}

	machine, err := processing.NewService(
		processing.NewRepository(db),
		auditor,
		engine,
		flowNarrator{},
		flowLibrary{},
		flowRenderer{},
		logg,
		nil,
		15*time.Minute,
		4,
	)
	if err != nil {
		t.Fatalf("processing service: %v", err)
	}

	uploader := &flowUploader{}
	publisher, err := publishing.NewService(
		publishing.NewRepository(db),
		auditor,
		map[enums.Platform]publishing.Uploader{enums.PlatformYouTube: uploader},
		nil,
		[]enums.Platform{enums.PlatformYouTube},
		publishing.Window{StartHour: 9, EndHour: 23, IntervalHours: 3},
		3,
		15*time.Minute,
		logg,
		nil,
	)
	if err != nil {
		t.Fatalf("publishing service: %v", err)
	}

	// Ingest a popular story.
	result, err := ingester.Ingest(ctx, ingest.RawItem{
		ExternalID:   "flow1",
		Title:        "Mi vecino nunca devuelve nada",
		Body:         strings.Repeat("Una historia que vale la pena contar. ", 40),
		Author:       "cuentacuentos",
		Score:        1200,
		CommentCount: 150,
		Awards:       6,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Outcome != ingest.OutcomeInserted {
		t.Fatalf("unexpected outcome %q: %s", result.Outcome, result.Reason)
	}

	// Select and render it.
	eligible, err := selector.SelectEligible(ctx, 5)
	if err != nil {
		t.Fatalf("select eligible: %v", err)
	}
	if len(eligible) != 1 {
		t.Fatalf("expected 1 eligible story, got %d", len(eligible))
	}
	if err := machine.ProcessStory(ctx, eligible[0]); err != nil {
		t.Fatalf("process story: %v", err)
	}

	var story models.Story
	if err := db.First(&story, "external_id = ?", "flow1").Error; err != nil {
		t.Fatalf("load story: %v", err)
	}
	if story.Status != enums.StoryStatusProcessed {
		t.Fatalf("unexpected story status %q", story.Status)
	}

	var content models.ProcessedContent
	if err := db.First(&content, "story_id = ?", story.ID).Error; err != nil {
		t.Fatalf("load content: %v", err)
	}
	if content.FinalPath != "storage/videos/flow.mp4" || content.Duration != 42 {
		t.Fatalf("unexpected artifacts %+v", content)
	}

	// Schedule and dispatch.
	scheduled, err := publisher.ScheduleContent(ctx, content.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("schedule content: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("expected 1 publication, got %d", len(scheduled))
	}

	due, err := publisher.DueForPublication(ctx, scheduled[0].ScheduledAt.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("due for publication: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due publication, got %d", len(due))
	}
	if err := publisher.Dispatch(ctx, due[0]); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if uploader.calls != 1 {
		t.Fatalf("expected 1 upload, got %d", uploader.calls)
	}

	var pub models.PlatformPublication
	if err := db.First(&pub, "id = ?", due[0].ID).Error; err != nil {
		t.Fatalf("load publication: %v", err)
	}
	if pub.Status != enums.PublicationStatusPublished {
		t.Fatalf("unexpected publication status %q", pub.Status)
	}
	if pub.RemoteID == nil || *pub.RemoteID != "yt-flow" {
		t.Fatalf("unexpected remote id %+v", pub.RemoteID)
	}

	if err := db.First(&content, "id = ?", content.ID).Error; err != nil {
		t.Fatalf("reload content: %v", err)
	}
	if content.Status != enums.ContentStatusPublished {
		t.Fatalf("unexpected content status %q", content.Status)
	}
}

type flowUploader struct {
	calls int
}

func (u *flowUploader) Upload(ctx context.Context, pub models.PlatformPublication, content models.ProcessedContent) (publishing.UploadResult, error) {
	u.calls++
	return publishing.UploadResult{RemoteID: "yt-flow", RemoteURL: "https://youtu.be/yt-flow"}, nil
}
