package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pzielinski/tourney-api/internal/store"
)

// Config holds the engine's tunable settings.
type Config struct {
	// WorkerCount determines how many concurrent workers execute jobs.
	WorkerCount int

	// QueueSize determines the buffer size of the dispatch queue.
	QueueSize int

	// RetentionAge is how long terminal tasks are kept before the
	// periodic sweep removes them.
	RetentionAge time.Duration

	// SweepInterval defines how often the retention sweep runs. Zero
	// disables the periodic sweep; Cleanup can still be called directly.
	SweepInterval time.Duration
}

// DefaultConfig returns a Config with the stock settings: three workers
// and a thirty day retention window.
func DefaultConfig() Config {
	return Config{
		WorkerCount:   3,
		QueueSize:     100,
		RetentionAge:  30 * 24 * time.Hour,
		SweepInterval: time.Hour,
	}
}

// SubmitOptions carries the caller-provided metadata for a new task.
type SubmitOptions struct {
	Name        string
	Description string

	// Owner is the requesting user; uuid.Nil for unowned tasks.
	Owner uuid.UUID

	// Notify requests a completion notification for the owner when the
	// task reaches a terminal state.
	Notify bool
}

// Stats is a point-in-time snapshot of the engine, as reported by
// QueueStats.
type Stats struct {
	TotalTasks  int `json:"total_tasks"`
	Pending     int `json:"pending"`
	Running     int `json:"running"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Cancelled   int `json:"cancelled"`
	QueueDepth  int `json:"queue_depth"`
	WorkerCount int `json:"worker_count"`
}

// Engine accepts long-running units of work, schedules them onto a fixed
// pool of workers, tracks their lifecycle in the registry and the durable
// store, supports cancellation of not-yet-started tasks, and reclaims
// terminal tasks past the retention window.
type Engine struct {
	store    Store
	registry *Registry
	queue    *Queue
	notifier Notifier
	config   Config
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine on top of the given durable store. The
// notifier may be nil, in which case terminal transitions produce no
// notifications.
func NewEngine(store Store, config Config, logger *slog.Logger) *Engine {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", DefaultConfig().WorkerCount)
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:    store,
		registry: NewRegistry(),
		queue:    NewQueue(config.QueueSize, logger),
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetNotifier installs the completion-notification capability. Must be
// called before Start.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Start replays the store into the registry and launches the worker pool
// and the periodic retention sweep.
func (e *Engine) Start() error {
	if err := e.recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < e.config.WorkerCount; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	if e.config.SweepInterval > 0 {
		e.wg.Add(1)
		go e.sweepLoop()
	}

	return nil
}

// Stop gracefully shuts down the engine. Workers finish the job they are
// currently executing; queued tasks stay pending in the store.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	e.queue.Close()
}

// Submit admits a new unit of work. The record is written to the store
// first, then inserted into the registry, then enqueued for dispatch; a
// failed durable write rejects the submission atomically. Submit blocks
// while the dispatch queue is full and returns once the task is queued --
// it never waits for execution to begin.
func (e *Engine) Submit(ctx context.Context, job Job, opts SubmitOptions) (uuid.UUID, error) {
	if job == nil {
		return uuid.Nil, errors.New("job must not be nil")
	}
	if opts.Name == "" {
		return uuid.Nil, errors.New("task name must not be empty")
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:          uuid.New(),
		Name:        opts.Name,
		Description: opts.Description,
		Status:      StatusPending,
		OwnerID:     opts.Owner,
		Notify:      opts.Notify,
		CreatedAt:   now,
		UpdatedAt:   now,
		job:         job,
	}

	if err := e.store.SaveTask(ctx, rec); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save task: %w", err)
	}

	e.registry.Put(rec.Clone())

	if err := e.queue.Enqueue(ctx, dispatch{id: rec.ID, job: job}); err != nil {
		// The record is already durable; cancel it so no orphan stays
		// pending with a job nobody will ever dispatch.
		if _, cErr := e.transition(context.WithoutCancel(ctx), rec.ID, StatusCancelled, nil, ""); cErr != nil {
			e.logger.Error("failed to cancel task after enqueue failure",
				"task_id", rec.ID, "error", cErr)
		}
		return uuid.Nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	e.logger.Debug("task submitted",
		"task_id", rec.ID,
		"task_name", rec.Name,
		"owner_id", rec.OwnerID)

	return rec.ID, nil
}

// GetStatus retrieves the current view of a task. Reads go to the store so
// results stay correct across process restarts. Returns
// store.ErrTaskNotFound for unknown ids.
func (e *Engine) GetStatus(ctx context.Context, id uuid.UUID) (*Record, error) {
	return e.store.GetTask(ctx, id)
}

// ListForOwner retrieves the owner's tasks, most recently created first,
// bounded by limit (default 50) and optionally filtered by status.
func (e *Engine) ListForOwner(ctx context.Context, owner uuid.UUID, status *Status, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.store.ListByOwner(ctx, owner, status, limit)
}

// Cancel cancels the task if and only if it has not been claimed by a
// worker yet. It returns true when the task moved to cancelled; false when
// the task is unknown, already running, or already terminal. Running jobs
// are never interrupted.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) bool {
	rec, err := e.transition(ctx, id, StatusCancelled, nil, "")
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, store.ErrTaskNotFound) {
			return false
		}
		// The registry reached cancelled but the durable write failed. A
		// worker may already have refused the dispatch entry against the
		// cancelled registry state, so restoring pending would strand the
		// task; force the cancellation through instead.
		e.logger.Error("failed to persist cancellation", "task_id", id, "error", err)
		rec = e.forceTerminal(id, StatusCancelled, "")
		if rec == nil || rec.Status != StatusCancelled {
			return false
		}
	}

	e.logger.Info("task cancelled", "task_id", id, "task_name", rec.Name)
	e.notifyTerminal(ctx, rec)
	return true
}

// Cleanup removes every terminal task older than the cutoff from the store
// and the registry, returning the number of durable records removed.
func (e *Engine) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	ids, err := e.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tasks: %w", err)
	}
	e.registry.Delete(ids...)

	// Registry entries that never made it to the store (a durable write
	// failed mid-flight) are swept by the same predicate.
	e.registry.SweepTerminalBefore(cutoff)

	if len(ids) > 0 {
		e.logger.Info("removed expired tasks", "count", len(ids), "cutoff", cutoff)
	}
	return len(ids), nil
}

// QueueStats returns a snapshot of per-status task counts, the dispatch
// queue depth and the worker pool size.
func (e *Engine) QueueStats() Stats {
	counts := e.registry.CountByStatus()
	return Stats{
		TotalTasks:  e.registry.Len(),
		Pending:     counts[StatusPending],
		Running:     counts[StatusRunning],
		Completed:   counts[StatusCompleted],
		Failed:      counts[StatusFailed],
		Cancelled:   counts[StatusCancelled],
		QueueDepth:  e.queue.Depth(),
		WorkerCount: e.config.WorkerCount,
	}
}

// recover rebuilds the registry from the store. Jobs are in-memory-only, so
// tasks that were pending or running when the previous process died cannot
// be re-executed; they are marked failed instead of silently lingering.
func (e *Engine) recover() error {
	ctx := context.Background()

	recs, err := e.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	interrupted := 0
	for _, rec := range recs {
		if !rec.Status.IsTerminal() {
			now := time.Now().UTC()
			rec.Status = StatusFailed
			rec.Error = "interrupted by process restart"
			rec.UpdatedAt = now
			if rec.CompletedAt == nil {
				rec.CompletedAt = &now
			}
			if err := e.store.UpdateTask(ctx, rec); err != nil {
				e.logger.Error("failed to mark interrupted task as failed",
					"task_id", rec.ID, "error", err)
			}
			interrupted++
		}
		e.registry.Put(rec)
	}

	e.logger.Info("task registry rebuilt from store",
		"task_count", len(recs),
		"interrupted_count", interrupted)
	return nil
}

// worker drains the dispatch queue until the engine shuts down.
func (e *Engine) worker(id int) {
	defer e.wg.Done()

	e.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Debug("stopping worker", "worker_id", id)
			return

		case d := <-e.queue.Channel():
			e.runTask(d, id)
		}
	}
}

// runTask claims and executes a single dispatched task.
func (e *Engine) runTask(d dispatch, workerID int) {
	logger := e.logger.With("task_id", d.id, "worker_id", workerID)

	// Claim the task. A task cancelled while still queued fails the
	// pending → running transition here and must never execute.
	if _, err := e.transition(e.ctx, d.id, StatusRunning, nil, ""); err != nil {
		switch {
		case errors.Is(err, ErrInvalidTransition):
			logger.Debug("skipping task no longer pending")
		case errors.Is(err, store.ErrTaskNotFound):
			logger.Error("dispatched task is unknown", "error", err)
		default:
			// The dispatch entry is consumed and nothing redelivers it, so
			// leaving the task pending would strand it. Fail it instead.
			logger.Error("failed to claim task", "error", err)
			e.forceTerminal(d.id, StatusFailed,
				fmt.Sprintf("failed to persist task claim: %v", err))
		}
		return
	}

	logger.Info("executing task")

	result, jobErr := runJob(e.ctx, d.job)

	var rec *Record
	var err error
	if jobErr != nil {
		logger.Error("task execution failed", "error", jobErr)
		rec, err = e.transition(e.ctx, d.id, StatusFailed, nil, jobErr.Error())
	} else {
		logger.Info("task completed")
		rec, err = e.transition(e.ctx, d.id, StatusCompleted, result, "")
	}

	if err != nil {
		// The outcome could not be made durable and the registry was
		// rolled back to running. Record a failure in the registry on a
		// best-effort basis so same-process queries see a terminal state;
		// the cross-restart inconsistency is a documented limitation.
		logger.Error("failed to persist task outcome", "error", err)
		e.forceTerminal(d.id, StatusFailed, fmt.Sprintf("failed to persist task outcome: %v", err))
		return
	}

	e.notifyTerminal(e.ctx, rec)
}

// runJob invokes the job, converting a panic into an ordinary error so a
// misbehaving job can never take down a worker.
func runJob(ctx context.Context, job Job) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// transition moves a task to the target status, keeping registry and store
// consistent. The registry is advanced first -- atomically under its lock,
// which is what decides the cancel-versus-claim race -- and rolled back if
// the durable write fails.
func (e *Engine) transition(ctx context.Context, id uuid.UUID, target Status, result []byte, errMsg string) (*Record, error) {
	now := time.Now().UTC()

	updated, prev, err := e.registry.Advance(id, target, func(rec *Record) {
		rec.UpdatedAt = now
		if target.IsTerminal() && rec.CompletedAt == nil {
			t := now
			rec.CompletedAt = &t
		}
		switch target {
		case StatusCompleted:
			rec.Result = result
		case StatusFailed:
			rec.Error = errMsg
		}
	})
	if err != nil {
		return nil, err
	}

	if err := e.store.UpdateTask(ctx, updated); err != nil {
		e.registry.Restore(prev)
		return nil, fmt.Errorf("failed to persist task transition to %s: %w", target, err)
	}

	return updated, nil
}

// forceTerminal forces a task to the target terminal status in the registry
// after a persistence error, bypassing the state machine, then retries the
// durable write once without letting a second failure undo the in-memory
// outcome. Returns the resulting record, or nil when the task is unknown.
func (e *Engine) forceTerminal(id uuid.UUID, target Status, errMsg string) *Record {
	now := time.Now().UTC()
	updated, err := e.registry.Force(id, target, func(rec *Record) {
		rec.UpdatedAt = now
		if errMsg != "" {
			rec.Error = errMsg
		}
		if rec.CompletedAt == nil {
			t := now
			rec.CompletedAt = &t
		}
	})
	if err != nil {
		e.logger.Error("failed to record terminal task state in registry",
			"task_id", id, "status", target, "error", err)
		return nil
	}
	if err := e.store.UpdateTask(context.Background(), updated); err != nil {
		e.logger.Error("failed to persist terminal task state, registry and store diverge until restart",
			"task_id", id, "status", target, "error", err)
	}
	return updated
}

// notifyTerminal invokes the completion notifier for a terminal record when
// the task asked for it. Notifier errors are logged and never affect task
// state.
func (e *Engine) notifyTerminal(ctx context.Context, rec *Record) {
	if e.notifier == nil || !rec.Notify || rec.OwnerID == uuid.Nil {
		return
	}

	var title, message, kind string
	switch rec.Status {
	case StatusCompleted:
		title = "Task completed"
		message = fmt.Sprintf("Task %q finished successfully", rec.Name)
		kind = NotificationTaskCompleted
	case StatusFailed:
		title = "Task failed"
		message = fmt.Sprintf("Task %q failed: %s", rec.Name, rec.Error)
		kind = NotificationTaskFailed
	case StatusCancelled:
		title = "Task cancelled"
		message = fmt.Sprintf("Task %q was cancelled", rec.Name)
		kind = NotificationTaskCancelled
	default:
		return
	}

	if err := e.notifier.Notify(ctx, rec.OwnerID, title, message, kind, rec.ID); err != nil {
		e.logger.Error("failed to deliver task notification",
			"task_id", rec.ID,
			"owner_id", rec.OwnerID,
			"kind", kind,
			"error", err)
	}
}

// sweepLoop periodically removes terminal tasks older than the retention
// window.
func (e *Engine) sweepLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Cleanup(e.ctx, e.config.RetentionAge); err != nil {
				e.logger.Error("retention sweep failed", "error", err)
			}
		}
	}
}
