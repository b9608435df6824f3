package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/internal/scoring"
	pkgerrors "github.com/andresvelez/shortreel-backend/pkg/errors"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

const defaultProcessingBatch = 5

// ProcessingJobParams configure the story processing job.
type ProcessingJobParams struct {
	Logger    *logger.Logger
	Selector  scoring.Service
	Machine   processing.Service
	BatchSize int
}

// NewProcessingJob builds the job that drains eligible stories through the
// render pipeline.
func NewProcessingJob(params ProcessingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Selector == nil {
		return nil, fmt.Errorf("scoring service required")
	}
	if params.Machine == nil {
		return nil, fmt.Errorf("processing service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultProcessingBatch
	}
	return &processingJob{
		logg:     params.Logger,
		selector: params.Selector,
		machine:  params.Machine,
		batch:    batch,
	}, nil
}

type processingJob struct {
	logg     *logger.Logger
	selector scoring.Service
	machine  processing.Service
	batch    int
}

func (j *processingJob) Name() string { return "process-stories" }

func (j *processingJob) Run(ctx context.Context) error {
	stories, err := j.selector.SelectEligible(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("select eligible: %w", err)
	}
	if len(stories) == 0 {
		return nil
	}

	var errs error
	processed := 0
	for _, story := range stories {
		if err := j.machine.ProcessStory(ctx, story); err != nil {
			// lost claims are expected when several workers poll the
			// same selection
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("story %s: %w", story.ID, err))
			continue
		}
		processed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"selected":  len(stories),
		"processed": processed,
	})
	j.logg.Info(logCtx, "processing pass complete")
	return errs
}
