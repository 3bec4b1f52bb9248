// Package redis provides a Redis-backed implementation of the task
// engine's durable store, for deployments that run without PostgreSQL.
//
// Layout: each task is a JSON value under tasks:task:<id>; tasks:created is
// a sorted set of ids scored by creation time, and tasks:owner:<owner> is a
// per-owner sorted set with the same scores. All multi-key writes go
// through a transactional pipeline so the value and its indexes never
// diverge.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pzielinski/tourney-api/internal/store"
	"github.com/pzielinski/tourney-api/internal/task"
	"github.com/redis/go-redis/v9"
)

const (
	taskKeyPrefix  = "tasks:task:"
	createdSetKey  = "tasks:created"
	ownerKeyPrefix = "tasks:owner:"
)

// TaskStore implements the task.Store interface on Redis.
type TaskStore struct {
	rdb redis.UniversalClient
}

// NewTaskStore creates a TaskStore on top of a Redis client.
func NewTaskStore(rdb redis.UniversalClient) *TaskStore {
	return &TaskStore{rdb: rdb}
}

// taskDoc is the persisted shape of a task record. The in-memory job
// reference is deliberately absent; only metadata survives.
type taskDoc struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	OwnerID     uuid.UUID  `json:"owner_id,omitempty"`
	Notify      bool       `json:"notify,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      []byte     `json:"result,omitempty"`
}

// encodeTask serializes a record with the standard library; decodeTask uses
// sonic on the hot read paths (registry replay, listings).
func encodeTask(rec *task.Record) ([]byte, error) {
	doc := taskDoc{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		Status:      string(rec.Status),
		OwnerID:     rec.OwnerID,
		Notify:      rec.Notify,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		CompletedAt: rec.CompletedAt,
		Error:       rec.Error,
		Result:      rec.Result,
	}
	return json.Marshal(doc)
}

func decodeTask(raw []byte) (*task.Record, error) {
	var doc taskDoc
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task.Record{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Status:      task.Status(doc.Status),
		OwnerID:     doc.OwnerID,
		Notify:      doc.Notify,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		CompletedAt: doc.CompletedAt,
		Error:       doc.Error,
		Result:      doc.Result,
	}, nil
}

func taskKey(id uuid.UUID) string {
	return taskKeyPrefix + id.String()
}

func ownerKey(owner uuid.UUID) string {
	return ownerKeyPrefix + owner.String()
}

// SaveTask persists a newly submitted task and its index entries.
func (s *TaskStore) SaveTask(ctx context.Context, rec *task.Record) error {
	raw, err := encodeTask(rec)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, taskKey(rec.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	if !ok {
		return store.ErrDuplicate
	}

	score := float64(rec.CreatedAt.UnixNano())
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, createdSetKey, redis.Z{Score: score, Member: rec.ID.String()})
		if rec.OwnerID != uuid.Nil {
			p.ZAdd(ctx, ownerKey(rec.OwnerID), redis.Z{Score: score, Member: rec.ID.String()})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index task: %w", err)
	}

	return nil
}

// UpdateTask persists the current state of an existing task.
func (s *TaskStore) UpdateTask(ctx context.Context, rec *task.Record) error {
	raw, err := encodeTask(rec)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	// SET XX: only overwrite an existing value, mirroring UPDATE semantics.
	ok, err := s.rdb.SetXX(ctx, taskKey(rec.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if !ok {
		return store.ErrTaskNotFound
	}

	return nil
}

// GetTask retrieves a single task by id.
func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	raw, err := s.rdb.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return decodeTask(raw)
}

// ListTasks retrieves every task, oldest first.
func (s *TaskStore) ListTasks(ctx context.Context) ([]*task.Record, error) {
	ids, err := s.rdb.ZRange(ctx, createdSetKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list task ids: %w", err)
	}
	return s.fetchTasks(ctx, ids)
}

// ListByOwner retrieves the owner's tasks in descending creation order,
// bounded by limit and optionally filtered by status.
func (s *TaskStore) ListByOwner(ctx context.Context, owner uuid.UUID, status *task.Status, limit int) ([]*task.Record, error) {
	ids, err := s.rdb.ZRevRange(ctx, ownerKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list owner task ids: %w", err)
	}

	recs, err := s.fetchTasks(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*task.Record, 0, limit)
	for _, rec := range recs {
		if status != nil && rec.Status != *status {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// DeleteTerminalBefore removes every terminal task older than the cutoff
// and returns the ids removed.
func (s *TaskStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	ids, err := s.rdb.ZRange(ctx, createdSetKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list task ids: %w", err)
	}

	recs, err := s.fetchTasks(ctx, ids)
	if err != nil {
		return nil, err
	}

	var removed []uuid.UUID
	for _, rec := range recs {
		if !rec.Status.IsTerminal() || !rec.UpdatedAt.Before(cutoff) {
			continue
		}

		_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, taskKey(rec.ID))
			p.ZRem(ctx, createdSetKey, rec.ID.String())
			if rec.OwnerID != uuid.Nil {
				p.ZRem(ctx, ownerKey(rec.OwnerID), rec.ID.String())
			}
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("failed to delete task %s: %w", rec.ID, err)
		}
		removed = append(removed, rec.ID)
	}

	return removed, nil
}

// fetchTasks loads task values for the given ids, skipping ids whose value
// has already been deleted (an index entry can briefly outlive its value).
func (s *TaskStore) fetchTasks(ctx context.Context, ids []string) ([]*task.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKeyPrefix + id
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	recs := make([]*task.Record, 0, len(vals))
	for _, val := range vals {
		str, ok := val.(string)
		if !ok {
			continue
		}
		rec, err := decodeTask([]byte(str))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
