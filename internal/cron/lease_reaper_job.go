package cron

import (
	"context"
	"fmt"

	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
)

// LeaseReaperJobParams configure the stale lease reaper.
type LeaseReaperJobParams struct {
	Logger  *logger.Logger
	Machine processing.Service
}

// NewLeaseReaperJob builds the job that returns stories stranded by crashed
// workers to the pending pool.
func NewLeaseReaperJob(params LeaseReaperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Machine == nil {
		return nil, fmt.Errorf("processing service required")
	}
	return &leaseReaperJob{logg: params.Logger, machine: params.Machine}, nil
}

type leaseReaperJob struct {
	logg    *logger.Logger
	machine processing.Service
}

func (j *leaseReaperJob) Name() string { return "reap-expired-leases" }

func (j *leaseReaperJob) Run(ctx context.Context) error {
	reclaimed, err := j.machine.ReapExpired(ctx)
	if err != nil {
		return fmt.Errorf("reap expired leases: %w", err)
	}
	if reclaimed > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "reclaimed", reclaimed), "stale processing leases reclaimed")
	}
	return nil
}
