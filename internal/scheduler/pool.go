// Package scheduler implements the work-stealing process pool from
// spec.md §4.6/§9: one local deque per worker, a global injector
// queue for newly spawned processes, park/notify idling instead of
// busy-waiting, and an exclusive (pinned) mode a process can force a
// worker into. Grounded on
// original_source/src/scheduler/state.rs (PoolState) and
// original_source/src/scheduler/proc_worker.rs (ProcessWorker).
package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/jazz-lang/jlight/internal/process"
)

// Pool is the shared state every worker in a scheduler reads and
// writes: per-worker queues, a global queue, and the park/notify
// condition workers block on when there is nothing to do. It
// implements process.Rescheduler.
type Pool struct {
	mu    sync.Mutex
	cond  *sync.Cond
	alive atomic.Bool

	queues []*queue
	global []*process.Process
}

// NewPool builds a pool with n per-worker queues. Workers are started
// separately via Worker.Run.
func NewPool(n int) *Pool {
	p := &Pool{queues: make([]*queue, n)}
	for i := range p.queues {
		p.queues[i] = &queue{}
	}
	p.cond = sync.NewCond(&p.mu)
	p.alive.Store(true)
	return p
}

// PushGlobal schedules p onto the global queue, for brand-new
// processes with no worker affinity yet.
func (p *Pool) PushGlobal(proc *process.Process) {
	p.mu.Lock()
	p.global = append(p.global, proc)
	p.mu.Unlock()
	p.cond.Signal()
}

// Reschedule implements process.Rescheduler by pushing back onto the
// global queue; spec.md doesn't require sticky affinity for a process
// regaining the right to run after a suspension.
func (p *Pool) Reschedule(proc *process.Process) {
	p.PushGlobal(proc)
}

// ScheduleOntoQueue pins proc onto worker i's external inbox, used
// when entering exclusive mode.
func (p *Pool) ScheduleOntoQueue(i int, proc *process.Process) {
	p.queues[i].pushExternal(proc)
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Pool) popGlobal() (*process.Process, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.global) == 0 {
		return nil, false
	}
	proc := p.global[0]
	p.global = p.global[1:]
	return proc, true
}

func (p *Pool) hasGlobalJobs() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.global) > 0
}

// IsAlive reports whether the pool has not yet been terminated.
func (p *Pool) IsAlive() bool { return p.alive.Load() }

// Terminate tells every parked worker to wake up and exit its run
// loop once it finishes (or abandons) its current job.
func (p *Pool) Terminate() {
	p.alive.Store(false)
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// parkWhile blocks the calling goroutine until the pool dies or cond
// becomes false, mirroring PoolState::park_while.
func (p *Pool) parkWhile(cond func() bool) {
	p.mu.Lock()
	for p.alive.Load() && cond() {
		p.cond.Wait()
	}
	p.mu.Unlock()
}
