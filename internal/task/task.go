// Package task implements the asynchronous task execution engine: submission,
// dispatch, worker execution, lifecycle tracking, cancellation and retention
// cleanup of background work.
package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the current lifecycle state of a task.
type Status string

// Possible task status values.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Notification kinds emitted on terminal transitions.
const (
	NotificationTaskCompleted = "task_completed"
	NotificationTaskFailed    = "task_failed"
	NotificationTaskCancelled = "task_cancelled"
)

// ErrInvalidTransition is returned when a status change would violate the
// task state machine, e.g. cancelling a task that is already running.
var ErrInvalidTransition = errors.New("invalid task status transition")

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s is a terminal state. Terminal states permit
// no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// canTransitionTo encodes the task state machine:
//
//	pending → running | cancelled
//	running → completed | failed
func (s Status) canTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusRunning || target == StatusCancelled
	case StatusRunning:
		return target == StatusCompleted || target == StatusFailed
	}
	return false
}

// Job is a unit of work submitted to the engine. Callers construct closures
// implementing it (usually via JobFunc); the engine treats the work and its
// captured arguments as opaque.
//
// The context passed to Run is the engine's lifecycle context: it is
// cancelled on shutdown so cooperative jobs can stop early. The engine never
// forcibly interrupts a running job.
type Job interface {
	// Run executes the work and returns its result as an opaque blob.
	Run(ctx context.Context) ([]byte, error)
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func(ctx context.Context) ([]byte, error)

// Run executes the function.
func (f JobFunc) Run(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// Record is the trackable representation of one submitted task. All fields
// except the job itself are persisted; the job is an in-memory reference
// that does not survive a process restart.
type Record struct {
	// ID is the task's unique identifier, assigned at submission.
	ID uuid.UUID

	// Name and Description are human-readable labels, immutable after
	// creation.
	Name        string
	Description string

	// Status is the current lifecycle state.
	Status Status

	// OwnerID identifies the requesting user. uuid.Nil means the task is
	// unowned and will never produce notifications.
	OwnerID uuid.UUID

	// Notify controls whether the completion notifier is invoked when the
	// task reaches a terminal state.
	Notify bool

	// CreatedAt is set once at submission. UpdatedAt changes on every
	// status transition. CompletedAt is set exactly once, on the first
	// transition into a terminal state.
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time

	// Result is populated only on completed, Error only on failed. They
	// are mutually exclusive.
	Result []byte
	Error  string

	// job is the in-memory work reference. Never persisted.
	job Job
}

// Clone returns a copy of the record. The result blob is copied so callers
// cannot mutate the registry's view; the job reference is shared.
func (r *Record) Clone() *Record {
	c := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	if r.Result != nil {
		c.Result = append([]byte(nil), r.Result...)
	}
	return &c
}

// Store defines the durable persistence contract for task metadata. The
// store is the source of truth for everything that must survive a restart;
// the in-memory registry is a cache replayed from it at startup.
type Store interface {
	// SaveTask persists a newly submitted task.
	SaveTask(ctx context.Context, rec *Record) error

	// UpdateTask persists the mutable fields (status, timestamps, result,
	// error) of an existing task, identified by rec.ID.
	UpdateTask(ctx context.Context, rec *Record) error

	// GetTask retrieves a single task by id. Returns
	// store.ErrTaskNotFound if no such task exists.
	GetTask(ctx context.Context, id uuid.UUID) (*Record, error)

	// ListTasks retrieves every task in the store, used to rebuild the
	// registry at startup.
	ListTasks(ctx context.Context) ([]*Record, error)

	// ListByOwner retrieves the owner's tasks in descending creation
	// order, bounded by limit and optionally filtered by status.
	ListByOwner(ctx context.Context, owner uuid.UUID, status *Status, limit int) ([]*Record, error)

	// DeleteTerminalBefore removes every task in a terminal state whose
	// updated_at is before the cutoff, returning the ids removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// Notifier is the completion-notification capability consumed by the engine.
// It is invoked fire-and-forget on terminal transitions of tasks that were
// submitted with Notify set; failures are logged and never affect task
// state.
type Notifier interface {
	Notify(ctx context.Context, owner uuid.UUID, title, message, kind string, relatedID uuid.UUID) error
}
