package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/internal/captions"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
	"github.com/andresvelez/shortreel-backend/pkg/metrics"
)

// Lease is an exclusive, time-bounded right to advance one story. All
// subsequent transitions must present the token the claim handed out.
type Lease struct {
	StoryID   uuid.UUID
	Token     uuid.UUID
	ExpiresAt time.Time
}

// Artifacts are the outputs a worker must produce before a story can be
// marked processed.
type Artifacts struct {
	CleanedText    string
	Script         string
	AudioPath      string
	BackgroundPath string
	FinalPath      string
	Duration       float64
}

// Narration is the voiced form of a script.
type Narration struct {
	AudioPath string
	Duration  float64
}

// Narrator voices a script. Implementations may fail transiently.
type Narrator interface {
	Narrate(ctx context.Context, script, language string) (Narration, error)
}

// MediaLibrary picks supporting assets for a render.
type MediaLibrary interface {
	PickBackground(ctx context.Context) (string, error)
}

// RenderRequest carries everything the renderer needs for one video.
type RenderRequest struct {
	Story          models.Story
	AudioPath      string
	BackgroundPath string
	Duration       float64
	Captions       []captions.WordCue
}

// Renderer composes the final video artifact.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// Service drives stories through pending → processing → processed | failed.
type Service interface {
	Claim(ctx context.Context, storyID uuid.UUID) (*Lease, error)
	Complete(ctx context.Context, lease Lease, artifacts Artifacts) error
	Abandon(ctx context.Context, lease Lease, reason string) error
	Release(ctx context.Context, lease Lease) error
	ReapExpired(ctx context.Context) (int64, error)
	Requeue(ctx context.Context, storyID uuid.UUID) error
	PurgeStories(ctx context.Context, cutoff time.Time) (int64, error)
	ProcessStory(ctx context.Context, story models.Story) error
}

type service struct {
	repo         Repository
	auditor      audit.Service
	engine       *captions.Engine
	narrator     Narrator
	media        MediaLibrary
	renderer     Renderer
	logg         *logger.Logger
	metrics      *metrics.PipelineMetrics
	leaseTimeout time.Duration
	wordsPerLine int
	now          func() time.Time
}

// NewService wires the processing state machine. Narrator, media library and
// renderer are required only when ProcessStory is used; the transition
// operations work without them.
func NewService(
	repo Repository,
	auditor audit.Service,
	engine *captions.Engine,
	narrator Narrator,
	media MediaLibrary,
	renderer Renderer,
	logg *logger.Logger,
	pipelineMetrics *metrics.PipelineMetrics,
	leaseTimeout time.Duration,
	wordsPerLine int,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "processing repository is required")
	}
	if auditor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger is required")
	}
	if leaseTimeout <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lease timeout must be positive")
	}
	if wordsPerLine <= 0 {
		wordsPerLine = 4
	}
	return &service{
		repo:         repo,
		auditor:      auditor,
		engine:       engine,
		narrator:     narrator,
		media:        media,
		renderer:     renderer,
		logg:         logg,
		metrics:      pipelineMetrics,
		leaseTimeout: leaseTimeout,
		wordsPerLine: wordsPerLine,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Claim(ctx context.Context, storyID uuid.UUID) (*Lease, error) {
	story, err := s.repo.GetStory(ctx, storyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load story")
	}
	if story == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "story not found")
	}

	token := uuid.New()
	expiresAt := s.now().Add(s.leaseTimeout)
	won, err := s.repo.ClaimStory(ctx, storyID, token, expiresAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim story")
	}
	if !won {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "story already claimed").
			WithDetails(map[string]string{"status": string(story.Status)})
	}

	ctx = s.logg.WithStoryID(ctx, storyID.String())
	s.logg.Info(ctx, "story claimed for processing")
	s.metrics.IncStage("claim", "won")
	return &Lease{StoryID: storyID, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *service) Complete(ctx context.Context, lease Lease, artifacts Artifacts) error {
	ctx = s.logg.WithStoryID(ctx, lease.StoryID.String())

	if missing := missingArtifact(artifacts); missing != "" {
		// invalid artifacts fail the story outright; no content row survives
		message := fmt.Sprintf("incomplete artifacts: missing %s", missing)
		if _, err := s.repo.FailStory(ctx, lease.StoryID, &lease.Token); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail story")
		}
		s.auditor.Record(ctx, audit.StoryRef(lease.StoryID), enums.ErrorCategoryValidation, message)
		s.metrics.IncStage("complete", "invalid")
		return pkgerrors.New(pkgerrors.CodeValidation, message)
	}

	content := &models.ProcessedContent{
		ID:             uuid.New(),
		StoryID:        lease.StoryID,
		CleanedText:    artifacts.CleanedText,
		Script:         artifacts.Script,
		AudioPath:      artifacts.AudioPath,
		BackgroundPath: artifacts.BackgroundPath,
		FinalPath:      artifacts.FinalPath,
		Duration:       artifacts.Duration,
		Status:         enums.ContentStatusProcessed,
	}
	won, err := s.repo.CompleteStory(ctx, lease.StoryID, lease.Token, content)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete story")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeLeaseExpired, "lease no longer held")
	}

	s.auditor.Record(ctx, audit.StoryRef(lease.StoryID), enums.ErrorCategoryStatusChange, "story processed")
	s.logg.Info(ctx, "story processed")
	s.metrics.IncStage("complete", "processed")
	return nil
}

func (s *service) Abandon(ctx context.Context, lease Lease, reason string) error {
	ctx = s.logg.WithStoryID(ctx, lease.StoryID.String())
	won, err := s.repo.FailStory(ctx, lease.StoryID, &lease.Token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandon story")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeLeaseExpired, "lease no longer held")
	}
	s.auditor.Record(ctx, audit.StoryRef(lease.StoryID), enums.ErrorCategoryDependency, reason)
	s.logg.Warn(ctx, "story abandoned: "+reason)
	s.metrics.IncStage("complete", "failed")
	return nil
}

func (s *service) Release(ctx context.Context, lease Lease) error {
	won, err := s.repo.ReleaseStory(ctx, lease.StoryID, lease.Token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release story")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeLeaseExpired, "lease no longer held")
	}
	s.metrics.IncStage("claim", "released")
	return nil
}

func (s *service) ReapExpired(ctx context.Context) (int64, error) {
	reclaimed, err := s.repo.ReapExpiredLeases(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reap expired leases")
	}
	if reclaimed > 0 {
		s.logg.Warn(ctx, fmt.Sprintf("reclaimed %d expired processing leases", reclaimed))
	}
	return reclaimed, nil
}

func (s *service) PurgeStories(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteStoriesCollectedBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge old stories")
	}
	if deleted > 0 {
		s.logg.Info(ctx, fmt.Sprintf("purged %d stories past retention", deleted))
	}
	return deleted, nil
}

func (s *service) Requeue(ctx context.Context, storyID uuid.UUID) error {
	story, err := s.repo.GetStory(ctx, storyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load story")
	}
	if story == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "story not found")
	}
	won, err := s.repo.RequeueStory(ctx, storyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue story")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only failed stories can be requeued").
			WithDetails(map[string]string{"status": string(story.Status)})
	}
	s.auditor.Record(ctx, audit.StoryRef(storyID), enums.ErrorCategoryOperator, "story requeued")
	return nil
}

// ProcessStory runs the full pipeline for one story: claim, narrate, lay out
// captions, render, complete. Transient dependency failures release the
// claim; everything else abandons it.
func (s *service) ProcessStory(ctx context.Context, story models.Story) error {
	if s.engine == nil || s.narrator == nil || s.media == nil || s.renderer == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "render capabilities are not configured")
	}

	lease, err := s.Claim(ctx, story.ID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithStoryID(ctx, story.ID.String())

	artifacts, err := s.produceArtifacts(ctx, story)
	if err != nil {
		if pkgerrors.Retryable(err) {
			if releaseErr := s.Release(ctx, *lease); releaseErr != nil {
				s.logg.Error(ctx, "release after transient failure", releaseErr)
			}
			return err
		}
		if abandonErr := s.Abandon(ctx, *lease, err.Error()); abandonErr != nil {
			s.logg.Error(ctx, "abandon after failure", abandonErr)
		}
		return err
	}

	return s.Complete(ctx, *lease, artifacts)
}

func (s *service) produceArtifacts(ctx context.Context, story models.Story) (Artifacts, error) {
	script := BuildScript(story)
	narration, err := s.narrator.Narrate(ctx, script, story.Language)
	if err != nil {
		return Artifacts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "narrate script")
	}

	lines := captions.SplitScript(script, s.wordsPerLine)
	cues, err := s.engine.LayoutPaged(lines, narration.Duration)
	if err != nil {
		return Artifacts{}, err
	}

	background, err := s.media.PickBackground(ctx)
	if err != nil {
		return Artifacts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pick background")
	}

	finalPath, err := s.renderer.Render(ctx, RenderRequest{
		Story:          story,
		AudioPath:      narration.AudioPath,
		BackgroundPath: background,
		Duration:       narration.Duration,
		Captions:       cues,
	})
	if err != nil {
		return Artifacts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "render video")
	}

	return Artifacts{
		CleanedText:    CleanText(story.Body),
		Script:         script,
		AudioPath:      narration.AudioPath,
		BackgroundPath: background,
		FinalPath:      finalPath,
		Duration:       narration.Duration,
	}, nil
}

func missingArtifact(artifacts Artifacts) string {
	switch {
	case artifacts.FinalPath == "":
		return "final artifact path"
	case artifacts.Duration <= 0:
		return "duration"
	case artifacts.Script == "":
		return "script"
	default:
		return ""
	}
}
