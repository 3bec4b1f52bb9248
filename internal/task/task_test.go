package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Valid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled} {
		assert.True(t, s.Valid(), "expected %s to be valid", s)
	}

	assert.False(t, Status("processing").Valid())
	assert.False(t, Status("").Valid())
}

func TestStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestStatus_Transitions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to running", StatusPending, StatusRunning, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"pending to failed", StatusPending, StatusFailed, false},
		{"running to completed", StatusRunning, StatusCompleted, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"running to cancelled", StatusRunning, StatusCancelled, false},
		{"running to pending", StatusRunning, StatusPending, false},
		{"completed is terminal", StatusCompleted, StatusRunning, false},
		{"failed is terminal", StatusFailed, StatusPending, false},
		{"cancelled is terminal", StatusCancelled, StatusRunning, false},
		{"cancelled stays cancelled", StatusCancelled, StatusCancelled, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.allowed, tc.from.canTransitionTo(tc.to))
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	t.Parallel()

	completed := time.Now().UTC()
	rec := &Record{
		Name:        "export",
		Status:      StatusCompleted,
		CompletedAt: &completed,
		Result:      []byte(`{"x":1}`),
	}

	clone := rec.Clone()
	clone.Result[0] = '!'
	*clone.CompletedAt = completed.Add(time.Hour)
	clone.Name = "changed"

	assert.Equal(t, []byte(`{"x":1}`), rec.Result)
	assert.Equal(t, completed, *rec.CompletedAt)
	assert.Equal(t, "export", rec.Name)
}
