package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matthewdavidson09/onboard-sync/internal/audit"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// AuditStore is the durable audit.Sink.
type AuditStore struct {
	db *sql.DB
}

func (s *Store) Audit() *AuditStore {
	return &AuditStore{db: s.db}
}

func (a *AuditStore) Record(ctx context.Context, e audit.Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, employee_id, action_type, status, message, performed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.EmployeeID, e.ActionType, e.Status, e.Message, e.PerformedBy, ts.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// List returns the newest events first. An empty employeeID lists every employee.
func (a *AuditStore) List(ctx context.Context, employeeID string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	query := `SELECT id, employee_id, action_type, status, message, performed_by, created_at FROM audit_events`
	args := []any{}
	if employeeID != "" {
		query += ` WHERE employee_id = ?`
		args = append(args, employeeID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []audit.Event{}
	for rows.Next() {
		var (
			e       audit.Event
			created sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.ActionType, &e.Status, &e.Message, &e.PerformedBy, &created); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ts, err := parseTime(created)
		if err != nil {
			return nil, err
		}
		if ts != nil {
			e.Timestamp = *ts
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
