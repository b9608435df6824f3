package scoring

import (
	"context"

	"github.com/andresvelez/shortreel-backend/internal/sysconfig"
	"github.com/andresvelez/shortreel-backend/pkg/db/models"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
)

// Service ranks stories and surfaces the ones worth processing. Selection
// never mutates status; claiming happens downstream in the processing machine.
type Service interface {
	Score(story models.Story) int
	SelectEligible(ctx context.Context, limit int) ([]models.Story, error)
	CountByStatus(ctx context.Context) (map[enums.StoryStatus]int64, error)
}

type service struct {
	repo   Repository
	cfg    sysconfig.Service
	policy Policy
}

// NewService wires the selection service with its weighting policy.
func NewService(repo Repository, cfg sysconfig.Service, policy Policy) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scoring repository is required")
	}
	if cfg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "config service is required")
	}
	return &service{repo: repo, cfg: cfg, policy: policy}, nil
}

func (s *service) Score(story models.Story) int {
	return s.policy.Score(story)
}

func (s *service) SelectEligible(ctx context.Context, limit int) ([]models.Story, error) {
	if limit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection limit must be positive")
	}
	stories, err := s.repo.SelectEligible(ctx, selectEligibleParams{
		MinScore:  s.cfg.ScoreThreshold(ctx),
		MinLength: s.cfg.MinContentLength(ctx),
		MaxLength: s.cfg.MaxContentLength(ctx),
		Limit:     limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "select eligible stories")
	}
	return stories, nil
}

func (s *service) CountByStatus(ctx context.Context) (map[enums.StoryStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count stories by status")
	}
	return counts, nil
}
