package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
)

// ReconcileJobs re-derives pending request statuses from their approval rows
// so a crash between the approval write and the request write heals itself.
type ReconcileJobs struct {
	requestService request.Service
	logger         *slog.Logger
}

func NewReconcileJobs(requestService request.Service, logger *slog.Logger) *ReconcileJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileJobs{requestService: requestService, logger: logger}
}

// RegisterJobs adds the reconcile sweep. A sweep may use most of the interval
// but never overlaps the next one.
func (j *ReconcileJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	scheduler.AddJob("reconcile_requests", interval, interval*9/10, j.ReconcileRequests)
}

// ReconcileRequests sweeps every company.
func (j *ReconcileJobs) ReconcileRequests(ctx context.Context) error {
	result, err := j.requestService.Reconcile(ctx, nil)
	if err != nil {
		return err
	}
	if result.Repaired > 0 || result.Flagged > 0 {
		j.logger.Warn("Reconcile repaired requests",
			"checked", result.Checked,
			"repaired", result.Repaired,
			"flagged", result.Flagged,
		)
		return nil
	}
	j.logger.Debug("Reconcile found nothing to repair", "checked", result.Checked)
	return nil
}
