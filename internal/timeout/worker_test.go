package timeout

import (
	"testing"
	"time"

	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/process"
	"github.com/jazz-lang/jlight/internal/vmlog"
)

func newTestProcess(t *testing.T) *process.Process {
	t.Helper()
	table := cell.NewTable()
	fn := &bytecode.Function{Name: "main", Code: []bytecode.BasicBlock{{Instructions: []bytecode.Instruction{
		{Op: bytecode.OpReturn},
	}}}}
	return process.New(fn, table, nil, 1<<20, false)
}

type fakeScheduler struct {
	mu          chan struct{}
	rescheduled []*process.Process
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{mu: make(chan struct{}, 1024)}
}

func (f *fakeScheduler) Reschedule(p *process.Process) {
	f.rescheduled = append(f.rescheduled, p)
	f.mu <- struct{}{}
}

// Boundary scenario 6: a process suspended with a short timeout is
// rescheduled once the deadline elapses.
func TestWorkerReschedulesOnDeadline(t *testing.T) {
	p := newTestProcess(t)
	to := &process.Timeout{Deadline: time.Now().Add(20 * time.Millisecond)}
	p.SuspendWithTimeout(to)

	sched := newFakeScheduler()
	w := New(sched, vmlog.Nop())
	w.Schedule(p, to)
	go w.Run()
	defer w.Stop()

	select {
	case <-sched.mu:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the timeout worker to reschedule the process")
	}
	if len(sched.rescheduled) != 1 || sched.rescheduled[0] != p {
		t.Fatalf("expected exactly one reschedule of p, got %v", sched.rescheduled)
	}
}

// A message that wins rescheduling rights first causes NotifyExpired
// to prune the heap entry; the timeout worker must not also
// reschedule the process when its stale deadline elapses.
func TestNotifyExpiredPreventsDoubleReschedule(t *testing.T) {
	p := newTestProcess(t)
	to := &process.Timeout{Deadline: time.Now().Add(30 * time.Millisecond)}
	p.SuspendWithTimeout(to)

	sched := newFakeScheduler()
	w := New(sched, vmlog.Nop())
	w.Schedule(p, to)
	go w.Run()
	defer w.Stop()

	// Simulate a message beating the timeout: it acquires rescheduling
	// rights itself, reschedules directly, and notifies the worker.
	rights, timeout := p.AcquireReschedulingRights()
	if rights != process.RightsAcquiredWithTimeout {
		t.Fatalf("expected RightsAcquiredWithTimeout, got %v", rights)
	}
	sched.Reschedule(p)
	w.NotifyExpired(timeout)
	<-sched.mu

	time.Sleep(80 * time.Millisecond)
	if len(sched.rescheduled) != 1 {
		t.Fatalf("expected exactly one reschedule, got %d", len(sched.rescheduled))
	}
}
