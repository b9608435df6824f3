package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/andresvelez/shortreel-backend/internal/publishing"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

const defaultScheduleBatch = 10

// ScheduleJobParams configure the publication scheduling job.
type ScheduleJobParams struct {
	Logger    *logger.Logger
	Publisher publishing.Service
	BatchSize int
}

// NewScheduleJob builds the job that assigns publication slots to freshly
// processed content.
func NewScheduleJob(params ScheduleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("publishing service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultScheduleBatch
	}
	return &scheduleJob{
		logg:      params.Logger,
		publisher: params.Publisher,
		batch:     batch,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

type scheduleJob struct {
	logg      *logger.Logger
	publisher publishing.Service
	batch     int
	now       func() time.Time
}

func (j *scheduleJob) Name() string { return "schedule-publications" }

func (j *scheduleJob) Run(ctx context.Context) error {
	scheduled, err := j.publisher.ScheduleReady(ctx, j.now(), j.batch)
	if err != nil {
		return fmt.Errorf("schedule ready content: %w", err)
	}
	if scheduled > 0 {
		j.logg.Info(j.logg.WithField(ctx, "scheduled", scheduled), "publication slots assigned")
	}
	return nil
}
