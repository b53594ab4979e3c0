package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/hrsync"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
)

// DefaultInterval is how often the scheduler checks whether a run is due.
const DefaultInterval = time.Minute

// FullSyncer is the sync entry point the scheduler triggers.
type FullSyncer interface {
	Full(ctx context.Context) ([]hrsync.SyncResult, error)
}

type Scheduler struct {
	svc      *Service
	runner   FullSyncer
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(svc *Service, runner FullSyncer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{svc: svc, runner: runner, interval: interval, now: time.Now}
}

// Start checks the schedule every interval until ctx is done. It blocks.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	tools.Log.WithField("interval", s.interval).Info("Sync scheduler started")
	for {
		select {
		case <-ctx.Done():
			tools.Log.Info("Sync scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one due-check. It reports whether a sync ran. A tick that finds a run already in
// progress is dropped.
func (s *Scheduler) Tick(ctx context.Context) bool {
	state, err := s.svc.Get(ctx)
	if err != nil {
		tools.Log.WithError(err).Error("Failed to read sync schedule")
		return false
	}
	now := s.now()

	if state.Enabled && state.NextRun == nil {
		if _, err := s.svc.Update(ctx, true, state.Frequency); err != nil {
			tools.Log.WithError(err).Error("Failed to initialise next sync run")
		}
		return false
	}
	if !IsDue(state, now) {
		return false
	}

	results, err := s.runner.Full(audit.WithActor(ctx, audit.SystemActor))
	if errors.Is(err, hrsync.ErrRunInProgress) {
		tools.Log.Debug("Scheduled sync skipped, another run is in progress")
		return false
	}
	if err != nil {
		tools.Log.WithError(err).Error("Scheduled sync failed")
	}

	finished := s.now()
	state, saveErr := s.svc.markRun(ctx, finished)
	if saveErr != nil {
		tools.Log.WithError(saveErr).Error("Failed to persist sync schedule")
	}
	summary := hrsync.Summarize(results)
	tools.Log.WithFields(logrus.Fields{
		"total":    summary.Total,
		"updated":  summary.Updated,
		"failed":   summary.Failed,
		"next_run": state.NextRun,
	}).Info("Scheduled sync finished")
	return true
}
