package cron

import (
	"context"
	"fmt"

	"github.com/andresvelez/shortreel-backend/internal/publishing"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

const defaultEngagementBatch = 50

// EngagementJobParams configure the engagement refresh job.
type EngagementJobParams struct {
	Logger    *logger.Logger
	Publisher publishing.Service
	BatchSize int
}

// NewEngagementJob builds the job that refreshes remote audience counters
// for published videos.
func NewEngagementJob(params EngagementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("publishing service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultEngagementBatch
	}
	return &engagementJob{logg: params.Logger, publisher: params.Publisher, batch: batch}, nil
}

type engagementJob struct {
	logg      *logger.Logger
	publisher publishing.Service
	batch     int
}

func (j *engagementJob) Name() string { return "refresh-engagement" }

func (j *engagementJob) Run(ctx context.Context) error {
	if err := j.publisher.RefreshEngagement(ctx, j.batch); err != nil {
		return fmt.Errorf("refresh engagement: %w", err)
	}
	return nil
}
