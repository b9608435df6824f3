package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/andresvelez/shortreel-backend/internal/publishing"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

const defaultDispatchBatch = 10

// DispatchJobParams configure the publication dispatch job.
type DispatchJobParams struct {
	Logger    *logger.Logger
	Publisher publishing.Service
	BatchSize int
}

// NewDispatchJob builds the job that uploads due publications.
func NewDispatchJob(params DispatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("publishing service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDispatchBatch
	}
	return &dispatchJob{
		logg:      params.Logger,
		publisher: params.Publisher,
		batch:     batch,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

type dispatchJob struct {
	logg      *logger.Logger
	publisher publishing.Service
	batch     int
	now       func() time.Time
}

func (j *dispatchJob) Name() string { return "dispatch-publications" }

func (j *dispatchJob) Run(ctx context.Context) error {
	due, err := j.publisher.DueForPublication(ctx, j.now(), j.batch)
	if err != nil {
		return fmt.Errorf("query due publications: %w", err)
	}

	var errs error
	for _, pub := range due {
		if err := j.publisher.Dispatch(ctx, pub); err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("publication %s: %w", pub.ID, err))
		}
	}
	if len(due) > 0 {
		j.logg.Info(j.logg.WithField(ctx, "due", len(due)), "dispatch pass complete")
	}
	return errs
}
