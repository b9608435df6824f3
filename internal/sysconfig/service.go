package sysconfig

import (
	"context"
	"strconv"

	"github.com/andresvelez/shortreel-backend/pkg/config"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
)

// Recognized operator-tunable keys. Env config supplies the defaults; rows in
// system_config override them at runtime.
const (
	KeyMinPopularity    = "pipeline.min_popularity"
	KeyMaxContentLength = "pipeline.max_content_length"
	KeyMinContentLength = "pipeline.min_content_length"
	KeyScoreThreshold   = "pipeline.score_threshold"
	KeySchedulingStart  = "publishing.start_hour"
	KeySchedulingEnd    = "publishing.end_hour"
	KeyLanguage         = "pipeline.language"
)

var recognizedKeys = map[string]bool{
	KeyMinPopularity:    true,
	KeyMaxContentLength: true,
	KeyMinContentLength: true,
	KeyScoreThreshold:   true,
	KeySchedulingStart:  true,
	KeySchedulingEnd:    true,
	KeyLanguage:         true,
}

// Service resolves operator configuration, falling back to env defaults. The
// pipeline reads through this service; only the administrative API writes.
type Service interface {
	MinPopularity(ctx context.Context) int
	MinContentLength(ctx context.Context) int
	MaxContentLength(ctx context.Context) int
	ScoreThreshold(ctx context.Context) int
	SchedulingWindow(ctx context.Context) (startHour, endHour int)
	Language(ctx context.Context) string
	List(ctx context.Context) ([]models.ConfigEntry, error)
	Set(ctx context.Context, key, value, description string) error
}

type service struct {
	repo     Repository
	defaults config.PipelineConfig
	window   config.PublishingConfig
}

// NewService wires the operator configuration store.
func NewService(repo Repository, defaults config.PipelineConfig, window config.PublishingConfig) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "config repository required")
	}
	return &service{repo: repo, defaults: defaults, window: window}, nil
}

func (s *service) MinPopularity(ctx context.Context) int {
	return s.intOr(ctx, KeyMinPopularity, s.defaults.MinPopularity)
}

func (s *service) MinContentLength(ctx context.Context) int {
	return s.intOr(ctx, KeyMinContentLength, s.defaults.MinContentLength)
}

func (s *service) MaxContentLength(ctx context.Context) int {
	return s.intOr(ctx, KeyMaxContentLength, s.defaults.MaxContentLength)
}

func (s *service) ScoreThreshold(ctx context.Context) int {
	return s.intOr(ctx, KeyScoreThreshold, s.defaults.ScoreThreshold)
}

func (s *service) SchedulingWindow(ctx context.Context) (int, int) {
	start := s.intOr(ctx, KeySchedulingStart, s.window.StartHour)
	end := s.intOr(ctx, KeySchedulingEnd, s.window.EndHour)
	if start >= end {
		return s.window.StartHour, s.window.EndHour
	}
	return start, end
}

func (s *service) Language(ctx context.Context) string {
	entry, err := s.repo.Get(ctx, KeyLanguage)
	if err != nil || entry == nil || entry.Value == "" {
		return s.defaults.Language
	}
	return entry.Value
}

func (s *service) List(ctx context.Context) ([]models.ConfigEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list config entries")
	}
	return entries, nil
}

func (s *service) Set(ctx context.Context, key, value, description string) error {
	if !recognizedKeys[key] {
		return pkgerrors.New(pkgerrors.CodeValidation, "unrecognized config key").
			WithDetails(map[string]string{"key": key})
	}
	if err := s.repo.Upsert(ctx, key, value, description); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write config entry")
	}
	return nil
}

func (s *service) intOr(ctx context.Context, key string, fallback int) int {
	entry, err := s.repo.Get(ctx, key)
	if err != nil || entry == nil {
		return fallback
	}
	parsed, err := strconv.Atoi(entry.Value)
	if err != nil {
		return fallback
	}
	return parsed
}
