package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pzielinski/tourney-api/internal/store"
	"github.com/pzielinski/tourney-api/internal/task"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *TaskStore {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewTaskStore(rdb)
}

func newRecord(owner uuid.UUID, status task.Status, createdAt time.Time) *task.Record {
	rec := &task.Record{
		ID:        uuid.New(),
		Name:      "export",
		Status:    status,
		OwnerID:   owner,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if status.IsTerminal() {
		done := createdAt
		rec.CompletedAt = &done
	}
	return rec
}

func TestTaskStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	owner := uuid.New()
	rec := newRecord(owner, task.StatusPending, time.Now().UTC().Truncate(time.Millisecond))
	rec.Description = "end of season export"

	require.NoError(t, s.SaveTask(ctx, rec))

	got, err := s.GetTask(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Description, got.Description)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, owner, got.OwnerID)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	assert.Nil(t, got.CompletedAt)
}

func TestTaskStore_SaveDuplicate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := newRecord(uuid.Nil, task.StatusPending, time.Now().UTC())
	require.NoError(t, s.SaveTask(ctx, rec))

	err := s.SaveTask(ctx, rec)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestTaskStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	_, err := s.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_Update(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := newRecord(uuid.Nil, task.StatusPending, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, s.SaveTask(ctx, rec))

	now := time.Now().UTC().Truncate(time.Millisecond)
	rec.Status = task.StatusCompleted
	rec.UpdatedAt = now
	rec.CompletedAt = &now
	rec.Result = []byte(`{"rows":12}`)
	require.NoError(t, s.UpdateTask(ctx, rec))

	got, err := s.GetTask(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, []byte(`{"rows":12}`), got.Result)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(now))
}

func TestTaskStore_UpdateMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	rec := newRecord(uuid.Nil, task.StatusRunning, time.Now().UTC())
	err := s.UpdateTask(context.Background(), rec)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_ListTasks(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		rec := newRecord(uuid.Nil, task.StatusPending, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.SaveTask(ctx, rec))
		ids = append(ids, rec.ID)
	}

	recs, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// Oldest first.
	for i, rec := range recs {
		assert.Equal(t, ids[i], rec.ID)
	}
}

func TestTaskStore_ListByOwner(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	owner := uuid.New()
	other := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		status := task.StatusCompleted
		if i%2 == 1 {
			status = task.StatusFailed
		}
		rec := newRecord(owner, status, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.SaveTask(ctx, rec))
		ids = append(ids, rec.ID)
	}
	require.NoError(t, s.SaveTask(ctx, newRecord(other, task.StatusPending, base)))

	t.Run("descending order with limit", func(t *testing.T) {
		recs, err := s.ListByOwner(ctx, owner, nil, 3)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, ids[3], recs[0].ID)
		assert.Equal(t, ids[2], recs[1].ID)
		assert.Equal(t, ids[1], recs[2].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		failed := task.StatusFailed
		recs, err := s.ListByOwner(ctx, owner, &failed, 10)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		for _, rec := range recs {
			assert.Equal(t, task.StatusFailed, rec.Status)
		}
	})

	t.Run("owner without tasks", func(t *testing.T) {
		recs, err := s.ListByOwner(ctx, uuid.New(), nil, 10)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestTaskStore_DeleteTerminalBefore(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	owner := uuid.New()
	oldDone := newRecord(owner, task.StatusCompleted, now.Add(-48*time.Hour))
	oldPending := newRecord(owner, task.StatusPending, now.Add(-48*time.Hour))
	freshDone := newRecord(owner, task.StatusCancelled, now)

	for _, rec := range []*task.Record{oldDone, oldPending, freshDone} {
		require.NoError(t, s.SaveTask(ctx, rec))
	}

	removed, err := s.DeleteTerminalBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, oldDone.ID, removed[0])

	_, err = s.GetTask(ctx, oldDone.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	// Index entries are gone too: neither listing returns the deleted id.
	recs, err := s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	ownerRecs, err := s.ListByOwner(ctx, owner, nil, 10)
	require.NoError(t, err)
	assert.Len(t, ownerRecs, 2)

	// Idempotent at the same cutoff.
	removed, err = s.DeleteTerminalBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, removed)
}
