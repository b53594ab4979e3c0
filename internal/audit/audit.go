// Package audit carries the structured events emitted after every provisioning or sync apply.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
)

// Action types.
const (
	ActionProvision = "provision"
	ActionSync      = "hris_sync"
)

// Statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// SystemActor is PerformedBy for events raised by the scheduler.
const SystemActor = "system"

type Event struct {
	ID          string    `json:"id"`
	EmployeeID  string    `json:"employeeId"`
	ActionType  string    `json:"actionType"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	PerformedBy string    `json:"performedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink persists or forwards events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// New stamps an event with an ID and the current time.
func New(employeeID, actionType, status, message, performedBy string) Event {
	if performedBy == "" {
		performedBy = SystemActor
	}
	return Event{
		ID:          uuid.NewString(),
		EmployeeID:  employeeID,
		ActionType:  actionType,
		Status:      status,
		Message:     message,
		PerformedBy: performedBy,
		Timestamp:   time.Now().UTC(),
	}
}

// Emit hands e to sink and only logs a failure. Callers never depend on the write.
func Emit(ctx context.Context, sink Sink, e Event) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, e); err != nil {
		tools.Log.WithFields(logrus.Fields{
			"event":    e.ID,
			"employee": e.EmployeeID,
			"action":   e.ActionType,
			"error":    err,
		}).Warn("Failed to record audit event")
	}
}

// LogSink writes events to the application log.
type LogSink struct{}

func (LogSink) Record(_ context.Context, e Event) error {
	tools.Fields(logrus.Fields{
		"event":        e.ID,
		"employee":     e.EmployeeID,
		"action":       e.ActionType,
		"status":       e.Status,
		"performed_by": e.PerformedBy,
	}).Info(e.Message)
	return nil
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Record(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type actorKey struct{}

// WithActor attaches the operator name that events raised under ctx are attributed to.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor set by WithActor, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}
