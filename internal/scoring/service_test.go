package scoring

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/andresvelez/shortreel-backend/internal/sysconfig"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
)

func TestScoreBands(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	body := strings.Repeat("a", 2000) // inside the optimal range

	cases := []struct {
		name  string
		story models.Story
		want  int
	}{
		{
			name:  "cold story gets only the length bonus",
			story: models.Story{Body: body},
			want:  10,
		},
		{
			name: "maximal story clamps at 100",
			story: models.Story{
				Body:         body,
				Score:        5000,
				CommentCount: 400,
				Awards:       9,
			},
			want: 100,
		},
		{
			name: "mid bands compose",
			// upvotes 60*0.4 + comments 40*0.3 + awards 40*0.2 + length 100*0.1
			story: models.Story{
				Body:         body,
				Score:        250,
				CommentCount: 12,
				Awards:       1,
			},
			want: 54,
		},
		{
			name: "short body scales the length bonus down",
			// length 500/1000*100 = 50 points, weighted 5
			story: models.Story{Body: strings.Repeat("a", 500)},
			want: 5,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := policy.Score(tc.story); got != tc.want {
				t.Fatalf("expected score %d, got %d", tc.want, got)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()
	story := models.Story{Body: strings.Repeat("x", 1500), Score: 120, CommentCount: 30, Awards: 2}
	first := policy.Score(story)
	for i := 0; i < 10; i++ {
		if got := policy.Score(story); got != first {
			t.Fatalf("score changed between calls: %d then %d", first, got)
		}
	}
}

func newSelectionFixture(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:scoring_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Story{}, &models.ConfigEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg, err := sysconfig.NewService(
		sysconfig.NewRepository(db),
		config.PipelineConfig{MinPopularity: 10, ScoreThreshold: 50, MinContentLength: 200, MaxContentLength: 10000, Language: "es"},
		config.PublishingConfig{StartHour: 9, EndHour: 23},
	)
	if err != nil {
		t.Fatalf("config service: %v", err)
	}
	svc, err := NewService(NewRepository(db), cfg, DefaultPolicy())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func seedStory(t *testing.T, db *gorm.DB, externalID string, mutate func(*models.Story)) models.Story {
	t.Helper()
	story := models.Story{
		ID:              uuid.New(),
		ExternalID:      externalID,
		Title:           "story " + externalID,
		Body:            strings.Repeat("palabra ", 100),
		Status:          enums.StoryStatusPending,
		ImportanceScore: 60,
		CollectedAt:     time.Now().UTC(),
	}
	if mutate != nil {
		mutate(&story)
	}
	if err := db.Create(&story).Error; err != nil {
		t.Fatalf("seed story %s: %v", externalID, err)
	}
	return story
}

func TestSelectEligibleFiltersAndOrders(t *testing.T) {
	t.Parallel()

	svc, db := newSelectionFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	high := seedStory(t, db, "abc1", func(s *models.Story) {
		s.ImportanceScore = 90
		s.CollectedAt = base.Add(2 * time.Hour)
	})
	olderTie := seedStory(t, db, "abc2", func(s *models.Story) {
		s.ImportanceScore = 70
		s.CollectedAt = base
	})
	newerTie := seedStory(t, db, "abc3", func(s *models.Story) {
		s.ImportanceScore = 70
		s.CollectedAt = base.Add(time.Hour)
	})
	seedStory(t, db, "below", func(s *models.Story) { s.ImportanceScore = 40 })
	seedStory(t, db, "nsfw", func(s *models.Story) { s.NSFW = true; s.ImportanceScore = 95 })
	seedStory(t, db, "short", func(s *models.Story) { s.Body = "too short"; s.ImportanceScore = 95 })
	seedStory(t, db, "claimed", func(s *models.Story) {
		s.Status = enums.StoryStatusProcessing
		s.ImportanceScore = 95
	})

	stories, err := svc.SelectEligible(ctx, 10)
	if err != nil {
		t.Fatalf("select eligible: %v", err)
	}
	if len(stories) != 3 {
		t.Fatalf("expected 3 eligible stories, got %d", len(stories))
	}
	if stories[0].ID != high.ID {
		t.Fatalf("expected highest score first, got %s", stories[0].ExternalID)
	}
	if stories[1].ID != olderTie.ID || stories[2].ID != newerTie.ID {
		t.Fatalf("expected ties broken oldest first, got %s then %s", stories[1].ExternalID, stories[2].ExternalID)
	}
}

func TestSelectEligibleHonorsLimit(t *testing.T) {
	t.Parallel()

	svc, db := newSelectionFixture(t)
	for i := 0; i < 5; i++ {
		seedStory(t, db, "lim"+uuid.NewString()[:8], nil)
	}

	stories, err := svc.SelectEligible(context.Background(), 2)
	if err != nil {
		t.Fatalf("select eligible: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(stories))
	}
}

func TestSelectEligibleDoesNotMutateStatus(t *testing.T) {
	t.Parallel()

	svc, db := newSelectionFixture(t)
	story := seedStory(t, db, "keep", nil)

	if _, err := svc.SelectEligible(context.Background(), 5); err != nil {
		t.Fatalf("select eligible: %v", err)
	}

	var reloaded models.Story
	if err := db.First(&reloaded, "id = ?", story.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.StoryStatusPending {
		t.Fatalf("selection must not mutate status, got %s", reloaded.Status)
	}
}
