package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/process"
	"github.com/jazz-lang/jlight/internal/vmlog"
)

func newTrivialProcess(t *testing.T) *process.Process {
	t.Helper()
	table := cell.NewTable()
	fn := &bytecode.Function{Name: "main", Code: []bytecode.BasicBlock{{Instructions: []bytecode.Instruction{
		{Op: bytecode.OpReturn},
	}}}}
	return process.New(fn, table, nil, 1<<20, false)
}

func TestQueueLIFOThenFIFOSteal(t *testing.T) {
	q := &queue{}
	a, b, c := &process.Process{}, &process.Process{}, &process.Process{}
	q.push(a)
	q.push(b)
	q.push(c)

	p, ok := q.pop()
	require.True(t, ok)
	assert.Same(t, c, p, "expected pop to return the most recently pushed job")

	p, ok = q.steal()
	require.True(t, ok)
	assert.Same(t, a, p, "expected steal to return the oldest job")
}

func TestPoolGlobalQueueFIFO(t *testing.T) {
	pool := NewPool(1)
	a, b := &process.Process{}, &process.Process{}
	pool.PushGlobal(a)
	pool.PushGlobal(b)

	p, ok := pool.popGlobal()
	require.True(t, ok)
	assert.Same(t, a, p, "expected FIFO order on the global queue")
	assert.True(t, pool.hasGlobalJobs(), "expected one job left on the global queue")
}

func TestWorkerProcessJobTerminatesEntryReturn(t *testing.T) {
	pool := NewPool(1)
	w := NewWorker(0, pool, 10, vmlog.Nop())
	p := newTrivialProcess(t)

	w.processJob(p)

	assert.True(t, p.IsTerminated(), "expected a process whose entry context returns to terminate")
}

func TestSchedulerRunsSpawnedProcesses(t *testing.T) {
	log := vmlog.Nop()
	s := New(2, 100, log)
	s.Start(context.Background())

	procs := make([]*process.Process, 5)
	for i := range procs {
		procs[i] = newTrivialProcess(t)
		s.Spawn(procs[i])
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		allDone := true
		for _, p := range procs {
			if !p.IsTerminated() {
				allDone = false
				break
			}
		}
		if allDone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for spawned processes to terminate")
		}
		time.Sleep(time.Millisecond)
	}

	s.Stop()
	require.NoError(t, s.Wait(), "unexpected worker error")
}
