// Package schedule decides when the full directory sync runs.
package schedule

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// ParseFrequency lowercases s. Unknown values are kept; ComputeNextRun treats them as daily.
func ParseFrequency(s string) Frequency {
	return Frequency(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether f is one of the supported frequencies.
func (f Frequency) Known() bool {
	return f == Daily || f == Weekly || f == Monthly
}

// State is the persisted schedule. NextRun is nil while disabled.
type State struct {
	Enabled   bool       `json:"enabled"`
	Frequency Frequency  `json:"frequency"`
	NextRun   *time.Time `json:"nextRun"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
}

// DefaultState is the schedule before anyone has configured it.
func DefaultState() State {
	return State{Enabled: false, Frequency: Daily}
}

// ComputeNextRun returns the next midnight boundary strictly after from, in from's location:
// tomorrow for daily, the coming Sunday for weekly, the 1st of next month for monthly.
func ComputeNextRun(freq Frequency, from time.Time) time.Time {
	y, m, d := from.Date()
	loc := from.Location()
	switch freq {
	case Weekly:
		days := (7 - int(from.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(y, m, d+days, 0, 0, 0, 0, loc)
	case Monthly:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
}

// IsDue reports whether an enabled schedule has reached its next run.
func IsDue(s State, now time.Time) bool {
	return s.Enabled && s.NextRun != nil && !now.Before(*s.NextRun)
}

// Store persists the single schedule row.
type Store interface {
	GetSchedule(ctx context.Context) (State, error)
	SaveSchedule(ctx context.Context, s State) error
}

// Service owns reads and writes of the schedule. Update and markRun are serialised.
type Service struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Get(ctx context.Context) (State, error) {
	return s.store.GetSchedule(ctx)
}

// Update sets enabled and frequency and recomputes NextRun from now.
func (s *Service) Update(ctx context.Context, enabled bool, freq Frequency) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.store.GetSchedule(ctx)
	if err != nil {
		return State{}, err
	}
	if freq == "" {
		freq = state.Frequency
	}
	if !freq.Known() {
		tools.Log.WithField("frequency", freq).Warn("Unknown schedule frequency, runs will follow the daily cadence")
	}
	state.Enabled = enabled
	state.Frequency = freq
	state.NextRun = nil
	if enabled {
		next := ComputeNextRun(freq, s.now())
		state.NextRun = &next
	}
	if err := s.store.SaveSchedule(ctx, state); err != nil {
		return State{}, err
	}
	tools.Log.WithFields(logrus.Fields{
		"enabled":   state.Enabled,
		"frequency": state.Frequency,
		"next_run":  state.NextRun,
	}).Info("Sync schedule updated")
	return state, nil
}

// markRun records a finished run at now. It re-reads the stored schedule so enabled and frequency
// changes made during the run are kept; NextRun is set only while the schedule is still enabled.
func (s *Service) markRun(ctx context.Context, now time.Time) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.store.GetSchedule(ctx)
	if err != nil {
		return State{}, err
	}
	state.LastRun = &now
	state.NextRun = nil
	if state.Enabled {
		next := ComputeNextRun(state.Frequency, now)
		state.NextRun = &next
	}
	return state, s.store.SaveSchedule(ctx, state)
}
