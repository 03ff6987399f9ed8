// Package reconciler periodically recomputes the denormalized engagement
// counters from their relation rows, repairing drift left by crashes or
// manual data edits.
package reconciler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openquill/platform/internal/app/metrics"
	"github.com/openquill/platform/internal/app/storage"
	"github.com/openquill/platform/pkg/logger"
)

const runTimeout = 2 * time.Minute

// Service runs counter reconciliation on a cron schedule. It implements
// system.Service.
type Service struct {
	store    storage.ReconcilerStore
	schedule string
	log      *logger.Logger
	cron     *cron.Cron
}

// New creates the reconciler. schedule is a standard five-field cron spec.
func New(store storage.ReconcilerStore, schedule string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reconciler")
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Service{store: store, schedule: schedule, log: log}
}

// Name implements system.Service.
func (s *Service) Name() string { return "reconciler" }

// Start schedules the reconciliation job.
func (s *Service) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.runOnce); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.WithField("schedule", s.schedule).Info("counter reconciler started")
	return nil
}

// Stop halts the scheduler, waiting for an in-flight run to finish.
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// RunNow performs one reconciliation pass immediately.
func (s *Service) RunNow(ctx context.Context) (int64, error) {
	corrected, err := s.store.ReconcileCounters(ctx)
	if err == nil {
		metrics.RecordCounterCorrections(corrected)
	}
	return corrected, err
}

func (s *Service) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	corrected, err := s.RunNow(ctx)
	if err != nil {
		s.log.WithError(err).Error("counter reconciliation failed")
		return
	}
	if corrected > 0 {
		s.log.WithField("corrected", corrected).Warn("counter drift repaired")
	} else {
		s.log.Debug("counters consistent")
	}
}
