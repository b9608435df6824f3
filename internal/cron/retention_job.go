package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

const defaultRetentionDays = 30

// RetentionJobParams configure the retention job. Machine is optional; when
// set, delivered and failed stories past the window are deleted as well.
type RetentionJobParams struct {
	Logger    *logger.Logger
	Auditor   audit.Service
	Machine   processing.Service
	Retention int
}

// NewRetentionJob builds the job that purges resolved audit entries and old
// stories past the retention window.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auditor == nil {
		return nil, fmt.Errorf("audit service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	return &retentionJob{
		logg:      params.Logger,
		auditor:   params.Auditor,
		machine:   params.Machine,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

type retentionJob struct {
	logg      *logger.Logger
	auditor   audit.Service
	machine   processing.Service
	retention int
	now       func() time.Time
}

func (j *retentionJob) Name() string { return "audit-retention" }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-time.Duration(j.retention) * 24 * time.Hour)
	removed, err := j.auditor.PurgeResolved(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("audit retention: %w", err)
	}

	var stories int64
	if j.machine != nil {
		stories, err = j.machine.PurgeStories(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("story retention: %w", err)
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"retention_days":  j.retention,
		"rows_deleted":    removed,
		"stories_deleted": stories,
	})
	j.logg.Info(logCtx, "audit retention complete")
	return nil
}
