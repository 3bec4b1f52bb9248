package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pzielinski/tourney-api/internal/store"
)

// MockStore implements the Store interface in memory for testing. Each
// method has an overridable function field so individual tests can inject
// failures without redefining the whole store.
type MockStore struct {
	mutex sync.RWMutex
	tasks map[uuid.UUID]*Record

	SaveFn                 func(ctx context.Context, rec *Record) error
	UpdateFn               func(ctx context.Context, rec *Record) error
	GetFn                  func(ctx context.Context, id uuid.UUID) (*Record, error)
	ListFn                 func(ctx context.Context) ([]*Record, error)
	ListByOwnerFn          func(ctx context.Context, owner uuid.UUID, status *Status, limit int) ([]*Record, error)
	DeleteTerminalBeforeFn func(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// NewMockStore creates a MockStore with default in-memory behavior.
func NewMockStore() *MockStore {
	s := &MockStore{
		tasks: make(map[uuid.UUID]*Record),
	}

	s.SaveFn = func(ctx context.Context, rec *Record) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if _, exists := s.tasks[rec.ID]; exists {
			return store.ErrDuplicate
		}
		s.tasks[rec.ID] = rec.Clone()
		return nil
	}

	s.UpdateFn = func(ctx context.Context, rec *Record) error {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if _, exists := s.tasks[rec.ID]; !exists {
			return store.ErrTaskNotFound
		}
		s.tasks[rec.ID] = rec.Clone()
		return nil
	}

	s.GetFn = func(ctx context.Context, id uuid.UUID) (*Record, error) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		rec, exists := s.tasks[id]
		if !exists {
			return nil, store.ErrTaskNotFound
		}
		return rec.Clone(), nil
	}

	s.ListFn = func(ctx context.Context) ([]*Record, error) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		recs := make([]*Record, 0, len(s.tasks))
		for _, rec := range s.tasks {
			recs = append(recs, rec.Clone())
		}
		return recs, nil
	}

	s.ListByOwnerFn = func(ctx context.Context, owner uuid.UUID, status *Status, limit int) ([]*Record, error) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		var recs []*Record
		for _, rec := range s.tasks {
			if rec.OwnerID != owner {
				continue
			}
			if status != nil && rec.Status != *status {
				continue
			}
			recs = append(recs, rec.Clone())
		}
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		})
		if len(recs) > limit {
			recs = recs[:limit]
		}
		return recs, nil
	}

	s.DeleteTerminalBeforeFn = func(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		var removed []uuid.UUID
		for id, rec := range s.tasks {
			if rec.Status.IsTerminal() && rec.UpdatedAt.Before(cutoff) {
				delete(s.tasks, id)
				removed = append(removed, id)
			}
		}
		return removed, nil
	}

	return s
}

func (s *MockStore) SaveTask(ctx context.Context, rec *Record) error {
	return s.SaveFn(ctx, rec)
}

func (s *MockStore) UpdateTask(ctx context.Context, rec *Record) error {
	return s.UpdateFn(ctx, rec)
}

func (s *MockStore) GetTask(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.GetFn(ctx, id)
}

func (s *MockStore) ListTasks(ctx context.Context) ([]*Record, error) {
	return s.ListFn(ctx)
}

func (s *MockStore) ListByOwner(ctx context.Context, owner uuid.UUID, status *Status, limit int) ([]*Record, error) {
	return s.ListByOwnerFn(ctx, owner, status, limit)
}

func (s *MockStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	return s.DeleteTerminalBeforeFn(ctx, cutoff)
}
