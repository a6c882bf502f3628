package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsletterScanner/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
	onPass   func(RunReport, error)
}

// NewScheduler returns a helper to start/stop recurring passes. onPass, if
// set, observes every finished pass.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger, onPass func(RunReport, error)) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger, onPass: onPass}
}

// Start registers the pipeline with the provided scheduler. A failed pass is
// logged and the next tick tries again.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		report, err := s.pipeline.Run(ctx)
		if err != nil {
			s.logger.Error("pass failed", "trigger", trigger.Format(time.RFC3339), "run_id", report.RunID, "error", err)
		}
		if s.onPass != nil {
			s.onPass(report, err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
