package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/internal/scoring"
	"github.com/andresvelez/shortreel-backend/internal/sysconfig"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

// Outcome classifies what happened to a raw item. Only Inserted stores a row;
// Duplicate and Rejected are terminal no-ops and safe to retry.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
)

// RawItem is an incoming source item prior to any persistence.
type RawItem struct {
	ExternalID      string    `json:"external_id" validate:"required,max=50"`
	Title           string    `json:"title" validate:"required,max=512"`
	Body            string    `json:"body" validate:"required"`
	Author          string    `json:"author" validate:"max=128"`
	Score           int       `json:"score" validate:"gte=0"`
	UpvoteRatio     float64   `json:"upvote_ratio" validate:"gte=0,lte=1"`
	CommentCount    int       `json:"comment_count" validate:"gte=0"`
	Flair           string    `json:"flair" validate:"max=50"`
	NSFW            bool      `json:"nsfw"`
	Awards          int       `json:"awards" validate:"gte=0"`
	SourceURL       string    `json:"source_url" validate:"omitempty,url,max=512"`
	SourceCreatedAt time.Time `json:"source_created_at"`
	Language        string    `json:"language" validate:"omitempty,max=8"`
}

// Result reports the per-item outcome. Story is set only when Outcome is
// Inserted; Reason explains rejections.
type Result struct {
	Outcome Outcome       `json:"outcome"`
	Story   *models.Story `json:"story,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// BatchSummary aggregates the outcomes of a batch ingestion run.
type BatchSummary struct {
	Inserted  int `json:"inserted"`
	Duplicate int `json:"duplicate"`
	Rejected  int `json:"rejected"`
}

// Service accepts raw source items, deduplicates them by external id, scores
// them, and stores the ones worth keeping with status pending.
type Service interface {
	Ingest(ctx context.Context, item RawItem) (Result, error)
	IngestBatch(ctx context.Context, items []RawItem) (BatchSummary, error)
}

type service struct {
	repo     Repository
	cfg      sysconfig.Service
	auditor  audit.Service
	policy   scoring.Policy
	logg     *logger.Logger
	validate *validator.Validate
}

// NewService wires the ingestion service.
func NewService(repo Repository, cfg sysconfig.Service, auditor audit.Service, policy scoring.Policy, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ingest repository is required")
	}
	if cfg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "config service is required")
	}
	if auditor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger is required")
	}
	return &service{
		repo:     repo,
		cfg:      cfg,
		auditor:  auditor,
		policy:   policy,
		logg:     logg,
		validate: validator.New(),
	}, nil
}

func (s *service) Ingest(ctx context.Context, item RawItem) (Result, error) {
	if reason := s.rejectReason(ctx, item); reason != "" {
		ctx = s.logg.WithField(ctx, "external_id", item.ExternalID)
		s.logg.Warn(ctx, "story rejected: "+reason)
		s.auditor.Record(ctx, audit.EntityRef{Kind: enums.EntityKindStory}, enums.ErrorCategoryValidation,
			fmt.Sprintf("ingest rejected %q: %s", item.ExternalID, reason))
		return Result{Outcome: OutcomeRejected, Reason: reason}, nil
	}

	exists, err := s.repo.ExistsByExternalID(ctx, item.ExternalID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check story existence")
	}
	if exists {
		return Result{Outcome: OutcomeDuplicate}, nil
	}

	story := s.buildStory(ctx, item)
	if err := s.repo.Create(ctx, &story); err != nil {
		// A concurrent ingester can win the insert between the existence
		// check and ours; the unique index makes that a duplicate, not an
		// error.
		if pkgerrors.IsUniqueViolation(err) {
			return Result{Outcome: OutcomeDuplicate}, nil
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert story")
	}

	ctx = s.logg.WithStoryID(ctx, story.ID.String())
	s.logg.Info(ctx, fmt.Sprintf("story ingested with score %d", story.ImportanceScore))
	return Result{Outcome: OutcomeInserted, Story: &story}, nil
}

func (s *service) IngestBatch(ctx context.Context, items []RawItem) (BatchSummary, error) {
	var summary BatchSummary
	for _, item := range items {
		result, err := s.Ingest(ctx, item)
		if err != nil {
			return summary, err
		}
		switch result.Outcome {
		case OutcomeInserted:
			summary.Inserted++
		case OutcomeDuplicate:
			summary.Duplicate++
		case OutcomeRejected:
			summary.Rejected++
		}
	}
	return summary, nil
}

func (s *service) rejectReason(ctx context.Context, item RawItem) string {
	if err := s.validate.Struct(item); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return fmt.Sprintf("field %s failed %s validation", errs[0].Field(), errs[0].Tag())
		}
		return "invalid item"
	}
	if item.Score < s.cfg.MinPopularity(ctx) {
		return fmt.Sprintf("popularity %d below minimum %d", item.Score, s.cfg.MinPopularity(ctx))
	}
	if max := s.cfg.MaxContentLength(ctx); max > 0 && len(item.Body) > max {
		return fmt.Sprintf("body length %d exceeds maximum %d", len(item.Body), max)
	}
	return ""
}

func (s *service) buildStory(ctx context.Context, item RawItem) models.Story {
	language := item.Language
	if language == "" {
		language = s.cfg.Language(ctx)
	}
	story := models.Story{
		ID:              uuid.New(),
		ExternalID:      item.ExternalID,
		Title:           item.Title,
		Body:            item.Body,
		Author:          item.Author,
		Score:           item.Score,
		UpvoteRatio:     item.UpvoteRatio,
		CommentCount:    item.CommentCount,
		Flair:           item.Flair,
		NSFW:            item.NSFW,
		Awards:          item.Awards,
		SourceURL:       item.SourceURL,
		SourceCreatedAt: item.SourceCreatedAt,
		CollectedAt:     time.Now().UTC(),
		Language:        language,
		Status:          enums.StoryStatusPending,
	}
	story.ImportanceScore = s.policy.Score(story)
	return story
}
