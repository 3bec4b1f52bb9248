package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pzielinski/tourney-api/internal/task"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	stats task.Stats
}

func (p *fakeProvider) QueueStats() task.Stats {
	return p.stats
}

func TestEngineCollector(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{stats: task.Stats{
		TotalTasks:  7,
		Pending:     2,
		Running:     1,
		Completed:   3,
		Failed:      1,
		Cancelled:   0,
		QueueDepth:  2,
		WorkerCount: 3,
	}}

	reg := Register(provider)

	expected := `
# HELP tourney_task_queue_depth Number of dispatch entries waiting for a worker.
# TYPE tourney_task_queue_depth gauge
tourney_task_queue_depth 2
# HELP tourney_task_workers Size of the task worker pool.
# TYPE tourney_task_workers gauge
tourney_task_workers 3
# HELP tourney_tasks Number of tracked tasks by status.
# TYPE tourney_tasks gauge
tourney_tasks{status="cancelled"} 0
tourney_tasks{status="completed"} 3
tourney_tasks{status="failed"} 1
tourney_tasks{status="pending"} 2
tourney_tasks{status="running"} 1
`

	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"tourney_tasks", "tourney_task_queue_depth", "tourney_task_workers")
	require.NoError(t, err)
}
