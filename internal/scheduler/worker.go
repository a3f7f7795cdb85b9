package scheduler

import (
	"go.uber.org/zap"

	"github.com/jazz-lang/jlight/internal/interp"
	"github.com/jazz-lang/jlight/internal/process"
)

// Mode is the state a Worker's run loop is in.
type Mode uint8

const (
	// ModeNormal processes the worker's own queue, steals from other
	// queues, and falls back to the global queue.
	ModeNormal Mode = iota
	// ModeExclusive runs only the job pinned to this worker, refusing
	// to steal or accept any other work until that job releases the
	// pin.
	ModeExclusive
)

// Worker executes processes popped from its own queue or stolen from
// others, driving each through interp.Machine one reduction-slice at
// a time. Grounded on ProcessWorker in
// original_source/src/scheduler/proc_worker.rs.
type Worker struct {
	ID int

	queue       *queue
	pool        *Pool
	machine     *interp.Machine
	reductions  int
	mode        Mode
	log         *zap.Logger
}

// NewWorker constructs worker id, bound to pool's queue[id].
// reductions is the per-slice budget (config.ReductionsPerSlice)
// handed to interp.Machine.Run for every job this worker executes.
func NewWorker(id int, pool *Pool, reductions int, log *zap.Logger) *Worker {
	return &Worker{
		ID:         id,
		queue:      pool.queues[id],
		pool:       pool,
		machine:    interp.NewMachine(),
		reductions: reductions,
		mode:       ModeNormal,
		log:        log,
	}
}

// EnterExclusiveMode moves every job on this worker's local deque
// (and anything waiting in its external inbox) to the pool's global
// queue, then switches to ModeExclusive so only the pinned job that
// triggered this call will run here.
func (w *Worker) EnterExclusiveMode() {
	w.queue.moveExternalJobs()
	for {
		p, ok := w.queue.pop()
		if !ok {
			break
		}
		w.pool.PushGlobal(p)
	}
	w.mode = ModeExclusive
}

// LeaveExclusiveMode returns the worker to normal work-stealing.
func (w *Worker) LeaveExclusiveMode() { w.mode = ModeNormal }

// Run is the worker's main loop; it returns once the pool is
// terminated. Intended to be launched as its own goroutine (the
// scheduler's Start wires one per configured worker via
// golang.org/x/sync/errgroup).
func (w *Worker) Run() {
	for w.pool.IsAlive() {
		switch w.mode {
		case ModeNormal:
			w.normalIteration()
		case ModeExclusive:
			w.exclusiveIteration()
		}
	}
}

func (w *Worker) normalIteration() {
	if w.processLocalJobs() {
		return
	}
	if w.stealFromOtherQueue() {
		return
	}
	if w.queue.moveExternalJobs() {
		return
	}
	if w.stealFromGlobalQueue() {
		return
	}
	w.pool.parkWhile(func() bool {
		return !w.pool.hasGlobalJobs() && !w.queue.hasExternalJobs()
	})
}

func (w *Worker) exclusiveIteration() {
	if w.processLocalJobs() {
		return
	}
	// Moving external jobs here would let other workers steal them,
	// starving this worker of the pinned job it's waiting for; since
	// at most one job is ever pinned to a given worker, a single pop
	// suffices.
	if p, ok := w.queue.popExternalJob(); ok {
		w.processJob(p)
		return
	}
	w.pool.parkWhile(func() bool { return !w.queue.hasExternalJobs() })
}

func (w *Worker) processLocalJobs() bool {
	p, ok := w.queue.pop()
	if !ok {
		return false
	}
	w.processJob(p)
	return true
}

func (w *Worker) stealFromOtherQueue() bool {
	for i, q := range w.pool.queues {
		if i == w.ID {
			continue
		}
		if p, ok := q.steal(); ok {
			w.processJob(p)
			return true
		}
	}
	return false
}

func (w *Worker) stealFromGlobalQueue() bool {
	p, ok := w.pool.popGlobal()
	if !ok {
		return false
	}
	w.processJob(p)
	return true
}

// processJob runs one reduction-slice of p. A process that names this
// worker as its pinned thread (via Process.Pin, used by stdlib calls
// requiring exclusive access to a worker) forces entry into exclusive
// mode before it runs.
func (w *Worker) processJob(p *process.Process) {
	if wid, pinned := p.ThreadID(); pinned && w.mode == ModeNormal && wid == w.ID {
		w.EnterExclusiveMode()
	}

	done, err := w.machine.Run(p, w.reductions)
	if err != nil {
		w.log.Error("process terminated with an uncaught error",
			zap.String("process", p.ID.String()), zap.Error(err))
		p.Terminate()
		w.releaseIfPinned(p)
		return
	}
	if done {
		p.Terminate()
		w.releaseIfPinned(p)
		return
	}

	// Reduction budget exhausted at a safepoint; the process is still
	// runnable. Route it back through the scheduler instead of looping
	// locally so other workers (and other pinned jobs queued here) get
	// a turn.
	if p.IsPinned() {
		w.queue.pushExternal(p)
		return
	}
	w.pool.Reschedule(p)
}

func (w *Worker) releaseIfPinned(p *process.Process) {
	if !p.IsPinned() {
		return
	}
	p.Unpin()
	w.LeaveExclusiveMode()
}
