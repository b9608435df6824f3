package publishing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
	"github.com/andresvelez/shortreel-backend/pkg/metrics"
)

// UploadResult identifies the remote artifact after a successful upload.
type UploadResult struct {
	RemoteID  string
	RemoteURL string
}

// Uploader delivers one rendered video to an external platform.
type Uploader interface {
	Upload(ctx context.Context, pub models.PlatformPublication, content models.ProcessedContent) (UploadResult, error)
}

// Engagement is a point-in-time snapshot of remote audience counters.
type Engagement struct {
	Views    int
	Likes    int
	Shares   int
	Comments int
}

// MetricsFetcher reads engagement counters for a published artifact.
type MetricsFetcher interface {
	Fetch(ctx context.Context, remoteID string) (Engagement, error)
}

// PublicationLease is the exclusive right to dispatch one publication.
type PublicationLease struct {
	PublicationID uuid.UUID
	Token         uuid.UUID
}

// Outcome reports what an upload attempt produced.
type Outcome struct {
	Success   bool
	RemoteID  string
	RemoteURL string
	Permanent bool
	Message   string
}

// Service drives platform publications from scheduled to published or failed.
type Service interface {
	ScheduleFor(ctx context.Context, contentID uuid.UUID, platform enums.Platform, when time.Time) (*models.PlatformPublication, error)
	ScheduleContent(ctx context.Context, contentID uuid.UUID, now time.Time) ([]models.PlatformPublication, error)
	ScheduleReady(ctx context.Context, now time.Time, limit int) (int, error)
	DueForPublication(ctx context.Context, now time.Time, limit int) ([]models.PlatformPublication, error)
	Dispatch(ctx context.Context, pub models.PlatformPublication) error
	RecordResult(ctx context.Context, lease PublicationLease, outcome Outcome) error
	RefreshEngagement(ctx context.Context, limit int) error
	ListByContent(ctx context.Context, contentID uuid.UUID) ([]models.PlatformPublication, error)
	Monitor(ctx context.Context, limit int) ([]MonitorRow, error)
}

type service struct {
	repo         Repository
	auditor      audit.Service
	uploaders    map[enums.Platform]Uploader
	fetchers     map[enums.Platform]MetricsFetcher
	platforms    []enums.Platform
	window       Window
	maxAttempts  int
	leaseTimeout time.Duration
	logg         *logger.Logger
	metrics      *metrics.PipelineMetrics
	now          func() time.Time
}

// NewService wires the publication scheduler. Uploaders and fetchers may be
// partial maps; dispatch fails permanently for a platform with no uploader.
func NewService(
	repo Repository,
	auditor audit.Service,
	uploaders map[enums.Platform]Uploader,
	fetchers map[enums.Platform]MetricsFetcher,
	platforms []enums.Platform,
	window Window,
	maxAttempts int,
	leaseTimeout time.Duration,
	logg *logger.Logger,
	pipelineMetrics *metrics.PipelineMetrics,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "publishing repository is required")
	}
	if auditor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger is required")
	}
	if maxAttempts <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max upload attempts must be positive")
	}
	if leaseTimeout <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lease timeout must be positive")
	}
	return &service{
		repo:         repo,
		auditor:      auditor,
		uploaders:    uploaders,
		fetchers:     fetchers,
		platforms:    platforms,
		window:       window,
		maxAttempts:  maxAttempts,
		leaseTimeout: leaseTimeout,
		logg:         logg,
		metrics:      pipelineMetrics,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) ScheduleFor(ctx context.Context, contentID uuid.UUID, platform enums.Platform, when time.Time) (*models.PlatformPublication, error) {
	if !platform.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown platform").
			WithDetails(map[string]string{"platform": string(platform)})
	}
	content, err := s.repo.GetContent(ctx, contentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load content")
	}
	if content == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
	}
	if content.Status != enums.ContentStatusProcessed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "content is not ready for scheduling").
			WithDetails(map[string]string{"status": string(content.Status)})
	}

	active, err := s.repo.HasActivePublication(ctx, contentID, platform)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active publication")
	}
	if active {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "publication already scheduled for platform")
	}

	story, err := s.repo.GetStory(ctx, content.StoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load story")
	}

	pub := &models.PlatformPublication{
		ID:          uuid.New(),
		ContentID:   contentID,
		Platform:    platform,
		ScheduledAt: when,
		Status:      enums.PublicationStatusScheduled,
	}
	if story != nil {
		pub.Title = videoTitle(*story)
		pub.Description = videoDescription(*story)
		pub.Tags = videoTags(*story)
	}
	if err := s.repo.Create(ctx, pub); err != nil {
		// partial unique index backstops the read-then-insert race
		if pkgerrors.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "publication already scheduled for platform")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert publication")
	}

	ctx = s.logg.WithContentID(s.logg.WithPlatform(ctx, string(platform)), contentID.String())
	s.logg.Info(ctx, "publication scheduled for "+pub.ScheduledAt.Format(time.RFC3339))
	s.metrics.IncStage("schedule", "created")
	return pub, nil
}

// ScheduleContent fans one processed content out to every configured
// platform, each on its own upcoming slot. Platforms that already have an
// active publication are skipped.
func (s *service) ScheduleContent(ctx context.Context, contentID uuid.UUID, now time.Time) ([]models.PlatformPublication, error) {
	slots := SlotSequence(now, s.window, len(s.platforms))
	scheduled := make([]models.PlatformPublication, 0, len(s.platforms))
	for i, platform := range s.platforms {
		pub, err := s.ScheduleFor(ctx, contentID, platform, slots[i])
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			return scheduled, err
		}
		scheduled = append(scheduled, *pub)
	}
	return scheduled, nil
}

// ScheduleReady sweeps processed content that has no publications yet and
// fans each one out to the configured platforms. Returns the number of
// contents scheduled.
func (s *service) ScheduleReady(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 10
	}
	contents, err := s.repo.ListUnscheduledContent(ctx, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unscheduled content")
	}
	scheduled := 0
	for _, content := range contents {
		if _, err := s.ScheduleContent(ctx, content.ID, now); err != nil {
			return scheduled, err
		}
		scheduled++
	}
	return scheduled, nil
}

func (s *service) DueForPublication(ctx context.Context, now time.Time, limit int) ([]models.PlatformPublication, error) {
	if limit <= 0 {
		limit = 20
	}
	pubs, err := s.repo.Due(ctx, now, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query due publications")
	}
	return pubs, nil
}

// Dispatch claims one due publication, uploads it, and records the outcome.
func (s *service) Dispatch(ctx context.Context, pub models.PlatformPublication) error {
	ctx = s.logg.WithPlatform(ctx, string(pub.Platform))

	token := uuid.New()
	now := s.now()
	won, err := s.repo.ClaimPublication(ctx, pub.ID, token, now, now.Add(s.leaseTimeout))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim publication")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeConflict, "publication already claimed")
	}
	lease := PublicationLease{PublicationID: pub.ID, Token: token}

	uploader, ok := s.uploaders[pub.Platform]
	if !ok {
		return s.RecordResult(ctx, lease, Outcome{Permanent: true, Message: "no uploader configured for platform"})
	}
	content, err := s.repo.GetContent(ctx, pub.ContentID)
	if err != nil || content == nil {
		return s.RecordResult(ctx, lease, Outcome{Permanent: true, Message: "content row missing"})
	}

	result, err := uploader.Upload(ctx, pub, *content)
	if err != nil {
		return s.RecordResult(ctx, lease, Outcome{Permanent: !pkgerrors.Retryable(err), Message: failureMessage(err)})
	}
	return s.RecordResult(ctx, lease, Outcome{Success: true, RemoteID: result.RemoteID, RemoteURL: result.RemoteURL})
}

// failureMessage keeps last_error readable: the typed message without the
// code prefix that Error() prepends.
func failureMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

func (s *service) RecordResult(ctx context.Context, lease PublicationLease, outcome Outcome) error {
	switch {
	case outcome.Success:
		return s.recordSuccess(ctx, lease, outcome)
	case outcome.Permanent:
		return s.recordPermanentFailure(ctx, lease, outcome.Message)
	default:
		return s.recordTransientFailure(ctx, lease, outcome.Message)
	}
}

func (s *service) recordSuccess(ctx context.Context, lease PublicationLease, outcome Outcome) error {
	won, err := s.repo.MarkPublished(ctx, lease.PublicationID, lease.Token, outcome.RemoteID, outcome.RemoteURL, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark published")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeLeaseExpired, "publication lease no longer held")
	}
	s.auditor.Record(ctx, audit.PublicationRef(lease.PublicationID), enums.ErrorCategoryStatusChange, "publication published")
	s.metrics.IncStage("publish", "published")

	pub, err := s.repo.GetPublication(ctx, lease.PublicationID)
	if err != nil || pub == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload publication")
	}
	return s.recomputeContentStatus(ctx, pub.ContentID)
}

func (s *service) recordPermanentFailure(ctx context.Context, lease PublicationLease, message string) error {
	won, err := s.repo.MarkFailed(ctx, lease.PublicationID, &lease.Token, message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark failed")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeLeaseExpired, "publication lease no longer held")
	}
	s.auditor.Record(ctx, audit.PublicationRef(lease.PublicationID), enums.ErrorCategoryDependency, message)
	s.logg.Warn(ctx, "publication failed permanently: "+message)
	s.metrics.IncStage("publish", "failed")
	return nil
}

func (s *service) recordTransientFailure(ctx context.Context, lease PublicationLease, message string) error {
	won, err := s.repo.RecordTransientFailure(ctx, lease.PublicationID, lease.Token, message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transient failure")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeLeaseExpired, "publication lease no longer held")
	}
	s.metrics.IncStage("publish", "retried")

	exhausted, err := s.repo.FailIfExhausted(ctx, lease.PublicationID, s.maxAttempts)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert exhausted publication")
	}
	if exhausted {
		s.auditor.Record(ctx, audit.PublicationRef(lease.PublicationID), enums.ErrorCategoryDependency,
			fmt.Sprintf("retry budget exhausted after %d attempts: %s", s.maxAttempts, message))
		s.logg.Warn(ctx, "publication retry budget exhausted")
		s.metrics.IncStage("publish", "failed")
	}
	return nil
}

// recomputeContentStatus derives the parent status from its children: any
// published platform marks the content delivered.
func (s *service) recomputeContentStatus(ctx context.Context, contentID uuid.UUID) error {
	published, err := s.repo.HasPublishedChild(ctx, contentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check published children")
	}
	if !published {
		return nil
	}
	if err := s.repo.SetContentStatus(ctx, contentID, enums.ContentStatusPublished); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance content status")
	}
	s.auditor.Record(ctx, audit.ContentRef(contentID), enums.ErrorCategoryStatusChange, "content published")
	return nil
}

// RefreshEngagement pulls remote audience counters for recently published
// rows. Fetch failures are logged and skipped; one bad platform must not
// stall the rest.
func (s *service) RefreshEngagement(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 50
	}
	pubs, err := s.repo.ListPublished(ctx, limit)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list published")
	}
	for _, pub := range pubs {
		fetcher, ok := s.fetchers[pub.Platform]
		if !ok || pub.RemoteID == nil {
			continue
		}
		engagement, err := fetcher.Fetch(ctx, *pub.RemoteID)
		if err != nil {
			s.logg.Warn(s.logg.WithPlatform(ctx, string(pub.Platform)), "engagement fetch failed: "+err.Error())
			continue
		}
		if err := s.repo.UpdateEngagement(ctx, pub.ID, engagement.Views, engagement.Likes, engagement.Shares, engagement.Comments); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update engagement")
		}
	}
	return nil
}

func (s *service) ListByContent(ctx context.Context, contentID uuid.UUID) ([]models.PlatformPublication, error) {
	pubs, err := s.repo.ListByContent(ctx, contentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list publications")
	}
	return pubs, nil
}

func (s *service) Monitor(ctx context.Context, limit int) ([]MonitorRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.repo.Monitor(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pipeline monitor")
	}
	return rows, nil
}

func videoTitle(story models.Story) string {
	title := strings.TrimSpace(story.Title)
	if len(title) > 95 {
		title = title[:95] + "..."
	}
	return title + " #shorts"
}

func videoDescription(story models.Story) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(story.Title))
	if author := strings.TrimSpace(story.Author); author != "" && author != "[deleted]" {
		b.WriteString("\n\nHistoria de " + author)
	}
	if story.SourceURL != "" {
		b.WriteString("\nFuente: " + story.SourceURL)
	}
	return b.String()
}

func videoTags(story models.Story) string {
	tags := []string{"historias", "reddit", "shorts"}
	if flair := strings.TrimSpace(strings.ToLower(story.Flair)); flair != "" {
		tags = append(tags, strings.ReplaceAll(flair, " ", ""))
	}
	return strings.Join(tags, ",")
}
