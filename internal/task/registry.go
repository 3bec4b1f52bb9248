package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pzielinski/tourney-api/internal/store"
)

// Registry is the authoritative in-process index of every task known to the
// engine, keyed by task id. It is a plain map guarded by a read-write mutex;
// all mutations funnel through the engine's transition function, which uses
// Advance so the cancel-versus-claim race on a pending task is decided
// atomically under the lock.
type Registry struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[uuid.UUID]*Record),
	}
}

// Put inserts or replaces the record for rec.ID. The registry takes
// ownership of rec; callers must not mutate it afterwards.
func (r *Registry) Put(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[rec.ID] = rec
}

// Get returns a copy of the record with the given id.
func (r *Registry) Get(id uuid.UUID) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Advance atomically applies a status transition to the record with the
// given id. The transition is validated against the state machine before
// apply runs; apply receives the record already moved to the target status
// and fills in transition-specific fields (timestamps, result, error).
//
// It returns a copy of the updated record and a copy of the record as it was
// before the transition, so the caller can roll back with Restore if the
// durable write fails.
func (r *Registry) Advance(id uuid.UUID, target Status, apply func(*Record)) (updated, prev *Record, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tasks[id]
	if !ok {
		return nil, nil, store.ErrTaskNotFound
	}

	if !rec.Status.canTransitionTo(target) {
		return nil, nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, rec.Status, target)
	}

	prev = rec.Clone()
	rec.Status = target
	if apply != nil {
		apply(rec)
	}
	return rec.Clone(), prev, nil
}

// Force moves the record to the target status regardless of the state
// machine. It is the escape hatch for persistence failures where the
// dispatch entry has already been consumed and a rollback to pending would
// strand the task. A record that is already terminal is left untouched and
// returned as is; terminal states stay permanent even here.
func (r *Registry) Force(id uuid.UUID, target Status, apply func(*Record)) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if rec.Status.IsTerminal() {
		return rec.Clone(), nil
	}

	rec.Status = target
	if apply != nil {
		apply(rec)
	}
	return rec.Clone(), nil
}

// Restore replaces the stored record with a previously captured copy. Used
// to roll back a transition whose durable write failed.
func (r *Registry) Restore(prev *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[prev.ID] = prev.Clone()
}

// Delete removes the records with the given ids, if present.
func (r *Registry) Delete(ids ...uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.tasks, id)
	}
}

// SweepTerminalBefore removes every terminal record whose UpdatedAt is
// before the cutoff and returns how many were removed. Terminal is a
// one-way state, so records selected here cannot be mid-transition.
func (r *Registry) SweepTerminalBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.tasks {
		if rec.Status.IsTerminal() && rec.UpdatedAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// CountByStatus returns the number of tracked tasks in each status.
func (r *Registry) CountByStatus() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[Status]int, 5)
	for _, rec := range r.tasks {
		counts[rec.Status]++
	}
	return counts
}
