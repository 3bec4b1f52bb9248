// Package postgres provides the PostgreSQL-backed implementation of the
// task engine's durable store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pzielinski/tourney-api/internal/platform/logger"
	"github.com/pzielinski/tourney-api/internal/store"
	"github.com/pzielinski/tourney-api/internal/task"
)

// TaskStore implements the task.Store interface using PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a TaskStore on top of a database connection or
// transaction.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// taskColumns is the select list shared by every read query.
const taskColumns = `id, name, description, status, owner_id, notify, created_at, updated_at, completed_at, error_message, result`

// SaveTask persists a newly submitted task.
func (s *TaskStore) SaveTask(ctx context.Context, rec *task.Record) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks (id, name, description, status, owner_id, notify, created_at, updated_at, completed_at, error_message, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Name,
		rec.Description,
		rec.Status,
		ownerParam(rec.OwnerID),
		rec.Notify,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.CompletedAt,
		rec.Error,
		rec.Result,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", rec.ID,
			"task_name", rec.Name,
			"error", err)
		return fmt.Errorf("failed to save task: %w", MapError(err))
	}

	return nil
}

// UpdateTask persists the mutable fields of an existing task.
func (s *TaskStore) UpdateTask(ctx context.Context, rec *task.Record) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2, completed_at = $3, error_message = $4, result = $5
		WHERE id = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		rec.Status,
		rec.UpdatedAt,
		rec.CompletedAt,
		rec.Error,
		rec.Result,
		rec.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			"task_id", rec.ID,
			"status", rec.Status,
			"error", err)
		return fmt.Errorf("failed to update task: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

// GetTask retrieves a single task by id.
func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	rec, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if store.IsNotFoundError(MapError(err)) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return rec, nil
}

// ListTasks retrieves every task, oldest first, for registry replay at
// startup.
func (s *TaskStore) ListTasks(ctx context.Context) ([]*task.Record, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", MapError(err))
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListByOwner retrieves the owner's tasks in descending creation order,
// bounded by limit and optionally filtered by status.
func (s *TaskStore) ListByOwner(ctx context.Context, owner uuid.UUID, status *task.Status, limit int) ([]*task.Record, error) {
	var (
		query string
		args  []any
	)

	if status != nil {
		query = `SELECT ` + taskColumns + `
			FROM tasks
			WHERE owner_id = $1 AND status = $2
			ORDER BY created_at DESC
			LIMIT $3`
		args = []any{owner, *status, limit}
	} else {
		query = `SELECT ` + taskColumns + `
			FROM tasks
			WHERE owner_id = $1
			ORDER BY created_at DESC
			LIMIT $2`
		args = []any{owner, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by owner: %w", MapError(err))
	}
	defer rows.Close()

	return collectTasks(rows)
}

// DeleteTerminalBefore removes every terminal task older than the cutoff
// and returns the ids removed.
func (s *TaskStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	log := logger.FromContext(ctx)

	query := `
		DELETE FROM tasks
		WHERE status IN ($1, $2, $3) AND updated_at < $4
		RETURNING id
	`

	rows, err := s.db.QueryContext(ctx, query,
		task.StatusCompleted,
		task.StatusFailed,
		task.StatusCancelled,
		cutoff,
	)
	if err != nil {
		log.Error("failed to delete expired tasks", "cutoff", cutoff, "error", err)
		return nil, fmt.Errorf("failed to delete expired tasks: %w", MapError(err))
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted task ids: %w", err)
	}

	return ids, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row into a Record.
func scanTask(row rowScanner) (*task.Record, error) {
	var (
		rec          task.Record
		ownerID      uuid.NullUUID
		completedAt  sql.NullTime
		errorMessage sql.NullString
	)

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Description,
		&rec.Status,
		&ownerID,
		&rec.Notify,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&completedAt,
		&errorMessage,
		&rec.Result,
	)
	if err != nil {
		return nil, err
	}

	if ownerID.Valid {
		rec.OwnerID = ownerID.UUID
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	rec.Error = errorMessage.String

	return &rec, nil
}

// collectTasks drains a result set of task rows.
func collectTasks(rows *sql.Rows) ([]*task.Record, error) {
	var recs []*task.Record
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return recs, nil
}

// ownerParam converts the engine's uuid.Nil-means-unowned convention into a
// nullable database value.
func ownerParam(owner uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: owner, Valid: owner != uuid.Nil}
}
