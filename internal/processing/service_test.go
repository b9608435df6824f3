package processing

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/internal/captions"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

type stubNarrator struct {
	narration Narration
	err       error
}

func (s stubNarrator) Narrate(ctx context.Context, script, language string) (Narration, error) {
	return s.narration, s.err
}

type stubMedia struct {
	path string
	err  error
}

func (s stubMedia) PickBackground(ctx context.Context) (string, error) {
	return s.path, s.err
}

type stubRenderer struct {
	path string
	err  error
}

func (s stubRenderer) Render(ctx context.Context, req RenderRequest) (string, error) {
	return s.path, s.err
}

type fixture struct {
	svc Service
	db  *gorm.DB
}

func newFixture(t *testing.T, narrator Narrator, media MediaLibrary, renderer Renderer) fixture {
	t.Helper()
	dsn := "file:processing_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Story{}, &models.ProcessedContent{}, &models.ErrorLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "processing-test", Output: io.Discard})
	auditor, err := audit.NewService(audit.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}
	engine, err := captions.NewEngine(captions.Params{
		Canvas:         captions.Canvas{Width: 1080, Height: 1920},
		WordSpacing:    18,
		LineSpacing:    84,
		TopOffset:      640,
		HighlightCount: 2,
	}, captions.FixedWidthMeasurer{CharWidth: 12}, captions.SeededHighlight{Seed: 3})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	svc, err := NewService(NewRepository(db), auditor, engine, narrator, media, renderer, logg, nil, 30*time.Minute, 4)
	if err != nil {
		t.Fatalf("processing service: %v", err)
	}
	return fixture{svc: svc, db: db}
}

func seedPending(t *testing.T, db *gorm.DB) models.Story {
	t.Helper()
	story := models.Story{
		ID:         uuid.New(),
		ExternalID: uuid.NewString()[:12],
		Title:      "Una historia",
		Author:     "autora",
		Body:       strings.Repeat("palabra ", 60),
		Status:     enums.StoryStatusPending,
		Language:   "es",
	}
	if err := db.Create(&story).Error; err != nil {
		t.Fatalf("seed story: %v", err)
	}
	return story
}

func reload(t *testing.T, db *gorm.DB, id uuid.UUID) models.Story {
	t.Helper()
	var story models.Story
	if err := db.First(&story, "id = ?", id).Error; err != nil {
		t.Fatalf("reload story: %v", err)
	}
	return story
}

func TestClaimWinsExactlyOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()
	story := seedPending(t, f.db)

	lease, err := f.svc.Claim(ctx, story.ID)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if lease.Token == uuid.Nil || !lease.ExpiresAt.After(time.Now()) {
		t.Fatalf("lease not populated: %+v", lease)
	}

	_, err = f.svc.Claim(ctx, story.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on second claim, got %v", err)
	}

	reloaded := reload(t, f.db, story.ID)
	if reloaded.Status != enums.StoryStatusProcessing {
		t.Fatalf("expected processing, got %s", reloaded.Status)
	}
	if reloaded.LeaseToken == nil || *reloaded.LeaseToken != lease.Token {
		t.Fatalf("stored lease token does not match claim")
	}
}

func TestClaimUnknownStoryIsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	_, err := f.svc.Claim(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func validArtifacts() Artifacts {
	return Artifacts{
		CleanedText:    "texto limpio",
		Script:         "guion narrado",
		AudioPath:      "/tmp/audio.wav",
		BackgroundPath: "/tmp/bg.mp4",
		FinalPath:      "/tmp/final.mp4",
		Duration:       42.5,
	}
}

func TestCompleteWritesContentAndAdvancesStory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()
	story := seedPending(t, f.db)
	lease, err := f.svc.Claim(ctx, story.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := f.svc.Complete(ctx, *lease, validArtifacts()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	reloaded := reload(t, f.db, story.ID)
	if reloaded.Status != enums.StoryStatusProcessed {
		t.Fatalf("expected processed, got %s", reloaded.Status)
	}
	if reloaded.LeaseToken != nil {
		t.Fatalf("lease must be cleared after completion")
	}

	var content models.ProcessedContent
	if err := f.db.First(&content, "story_id = ?", story.ID).Error; err != nil {
		t.Fatalf("load content: %v", err)
	}
	if content.Status != enums.ContentStatusProcessed || content.Duration != 42.5 {
		t.Fatalf("unexpected content row %+v", content)
	}

	var transitions []models.ErrorLog
	if err := f.db.Find(&transitions, "category = ?", enums.ErrorCategoryStatusChange).Error; err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("expected one status-change audit entry, got %d", len(transitions))
	}
}

func TestCompleteWithMissingFinalPathFailsStory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()
	story := seedPending(t, f.db)
	lease, err := f.svc.Claim(ctx, story.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	bad := validArtifacts()
	bad.FinalPath = ""
	err = f.svc.Complete(ctx, *lease, bad)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	reloaded := reload(t, f.db, story.ID)
	if reloaded.Status != enums.StoryStatusFailed {
		t.Fatalf("expected failed, got %s", reloaded.Status)
	}

	var contentCount int64
	if err := f.db.Model(&models.ProcessedContent{}).Count(&contentCount).Error; err != nil {
		t.Fatalf("count content: %v", err)
	}
	if contentCount != 0 {
		t.Fatalf("no content row may survive an invalid completion")
	}

	var logs []models.ErrorLog
	if err := f.db.Find(&logs, "category = ?", enums.ErrorCategoryValidation).Error; err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if len(logs) != 1 || !strings.Contains(logs[0].Message, "final artifact path") {
		t.Fatalf("expected validation audit entry naming the missing field, got %+v", logs)
	}
}

func TestCompleteWithStaleTokenIsRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()
	story := seedPending(t, f.db)
	lease, err := f.svc.Claim(ctx, story.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	stale := Lease{StoryID: story.ID, Token: uuid.New()}
	err = f.svc.Complete(ctx, stale, validArtifacts())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeLeaseExpired {
		t.Fatalf("expected lease expired, got %v", err)
	}

	reloaded := reload(t, f.db, story.ID)
	if reloaded.Status != enums.StoryStatusProcessing {
		t.Fatalf("holder's claim must survive a stale completion, got %s", reloaded.Status)
	}
	if err := f.svc.Complete(ctx, *lease, validArtifacts()); err != nil {
		t.Fatalf("holder completion: %v", err)
	}
}

func TestAbandonRecordsFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()
	story := seedPending(t, f.db)
	lease, err := f.svc.Claim(ctx, story.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := f.svc.Abandon(ctx, *lease, "render host unreachable"); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	reloaded := reload(t, f.db, story.ID)
	if reloaded.Status != enums.StoryStatusFailed {
		t.Fatalf("expected failed, got %s", reloaded.Status)
	}

	var logs []models.ErrorLog
	if err := f.db.Find(&logs, "category = ?", enums.ErrorCategoryDependency).Error; err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "render host unreachable" {
		t.Fatalf("expected abandon reason in audit log, got %+v", logs)
	}
}

func TestReleaseReturnsStoryToPool(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()
	story := seedPending(t, f.db)
	lease, err := f.svc.Claim(ctx, story.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := f.svc.Release(ctx, *lease); err != nil {
		t.Fatalf("release: %v", err)
	}
	reloaded := reload(t, f.db, story.ID)
	if reloaded.Status != enums.StoryStatusPending || reloaded.LeaseToken != nil {
		t.Fatalf("expected pending with no lease, got %+v", reloaded)
	}

	// released stories are claimable again
	if _, err := f.svc.Claim(ctx, story.ID); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
}

func TestReapExpiredLeasesReclaimsOnlyLapsed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()

	expiredToken := uuid.New()
	pastExpiry := time.Now().UTC().Add(-time.Hour)
	expired := seedPending(t, f.db)
	f.db.Model(&models.Story{}).Where("id = ?", expired.ID).Updates(map[string]any{
		"status":           enums.StoryStatusProcessing,
		"lease_token":      expiredToken,
		"lease_expires_at": pastExpiry,
	})

	held := seedPending(t, f.db)
	if _, err := f.svc.Claim(ctx, held.ID); err != nil {
		t.Fatalf("claim held: %v", err)
	}

	reclaimed, err := f.svc.ReapExpired(ctx)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed lease, got %d", reclaimed)
	}
	if got := reload(t, f.db, expired.ID).Status; got != enums.StoryStatusPending {
		t.Fatalf("expired claim should be pending again, got %s", got)
	}
	if got := reload(t, f.db, held.ID).Status; got != enums.StoryStatusProcessing {
		t.Fatalf("live claim must survive the reaper, got %s", got)
	}
}

func TestRequeueOnlyFailedStories(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()
	story := seedPending(t, f.db)

	err := f.svc.Requeue(ctx, story.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for pending story, got %v", err)
	}

	f.db.Model(&models.Story{}).Where("id = ?", story.ID).Update("status", enums.StoryStatusFailed)
	if err := f.svc.Requeue(ctx, story.ID); err != nil {
		t.Fatalf("requeue failed story: %v", err)
	}
	if got := reload(t, f.db, story.ID).Status; got != enums.StoryStatusPending {
		t.Fatalf("expected pending after requeue, got %s", got)
	}
}

func TestProcessStoryHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		stubNarrator{narration: Narration{AudioPath: "/tmp/a.wav", Duration: 30}},
		stubMedia{path: "/tmp/bg.mp4"},
		stubRenderer{path: "/tmp/final.mp4"},
	)
	ctx := context.Background()
	story := seedPending(t, f.db)

	if err := f.svc.ProcessStory(ctx, story); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := reload(t, f.db, story.ID).Status; got != enums.StoryStatusProcessed {
		t.Fatalf("expected processed, got %s", got)
	}

	var content models.ProcessedContent
	if err := f.db.First(&content, "story_id = ?", story.ID).Error; err != nil {
		t.Fatalf("load content: %v", err)
	}
	if content.FinalPath != "/tmp/final.mp4" || content.Duration != 30 {
		t.Fatalf("unexpected artifacts %+v", content)
	}
}

func TestProcessStoryTransientFailureReleasesClaim(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		stubNarrator{err: pkgerrors.New(pkgerrors.CodeDependency, "tts timeout")},
		stubMedia{path: "/tmp/bg.mp4"},
		stubRenderer{path: "/tmp/final.mp4"},
	)
	ctx := context.Background()
	story := seedPending(t, f.db)

	if err := f.svc.ProcessStory(ctx, story); err == nil {
		t.Fatalf("expected error from narrator")
	}
	if got := reload(t, f.db, story.ID).Status; got != enums.StoryStatusPending {
		t.Fatalf("transient failure should release the claim, got %s", got)
	}
}

func TestPurgeStoriesRemovesOnlyOldTerminalRows(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	ctx := context.Background()
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)

	published := seedPending(t, f.db)
	failed := seedPending(t, f.db)
	pending := seedPending(t, f.db)
	fresh := seedPending(t, f.db)
	if err := f.db.Model(&models.Story{}).Where("id = ?", published.ID).
		Updates(map[string]any{"status": enums.StoryStatusPublished, "collected_at": old}).Error; err != nil {
		t.Fatalf("seed published: %v", err)
	}
	if err := f.db.Model(&models.Story{}).Where("id = ?", failed.ID).
		Updates(map[string]any{"status": enums.StoryStatusFailed, "collected_at": old}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := f.db.Model(&models.Story{}).Where("id = ?", pending.ID).
		Update("collected_at", old).Error; err != nil {
		t.Fatalf("seed pending: %v", err)
	}
	if err := f.db.Model(&models.Story{}).Where("id = ?", fresh.ID).
		Update("status", enums.StoryStatusPublished).Error; err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	deleted, err := f.svc.PurgeStories(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deletions, got %d", deleted)
	}

	var remaining []models.Story
	if err := f.db.Find(&remaining).Error; err != nil {
		t.Fatalf("list stories: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(remaining))
	}
	for _, story := range remaining {
		if story.ID != pending.ID && story.ID != fresh.ID {
			t.Fatalf("unexpected survivor %s", story.ID)
		}
	}
}

func TestClaimConcurrentFanoutSingleWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, nil)
	// sqlite only tolerates one writer; funnel the pool through a single
	// connection so the goroutines race in the service, not the driver.
	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	ctx := context.Background()
	story := seedPending(t, f.db)

	const workers = 8
	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	unexpected := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Claim(ctx, story.ID)
			if err == nil {
				atomic.AddInt32(&wins, 1)
				return
			}
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
				unexpected <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(unexpected)
	for err := range unexpected {
		t.Fatalf("unexpected claim error: %v", err)
	}

	if got := atomic.LoadInt32(&wins); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
	if got := reload(t, f.db, story.ID); got.Status != enums.StoryStatusProcessing {
		t.Fatalf("expected processing after claim, got %s", got.Status)
	}
}
