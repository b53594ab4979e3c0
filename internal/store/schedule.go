package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matthewdavidson09/onboard-sync/internal/schedule"
)

// GetSchedule returns the stored schedule, creating the default row on first access.
func (s *Store) GetSchedule(ctx context.Context) (schedule.State, error) {
	var (
		state            schedule.State
		frequency        string
		nextRun, lastRun sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled, frequency, next_run, last_run FROM sync_schedule WHERE id = 1`,
	).Scan(&state.Enabled, &frequency, &nextRun, &lastRun)
	if errors.Is(err, sql.ErrNoRows) {
		state = schedule.DefaultState()
		if err := s.SaveSchedule(ctx, state); err != nil {
			return schedule.State{}, err
		}
		return state, nil
	}
	if err != nil {
		return schedule.State{}, fmt.Errorf("failed to read schedule: %w", err)
	}

	state.Frequency = schedule.Frequency(frequency)
	if state.NextRun, err = parseTime(nextRun); err != nil {
		return schedule.State{}, err
	}
	if state.LastRun, err = parseTime(lastRun); err != nil {
		return schedule.State{}, err
	}
	return state, nil
}

// SaveSchedule upserts the schedule row.
func (s *Store) SaveSchedule(ctx context.Context, state schedule.State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_schedule (id, enabled, frequency, next_run, last_run, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			frequency = excluded.frequency,
			next_run = excluded.next_run,
			last_run = excluded.last_run,
			updated_at = excluded.updated_at
	`, state.Enabled, string(state.Frequency), formatTime(state.NextRun), formatTime(state.LastRun),
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}
