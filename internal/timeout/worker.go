// Package timeout implements the timeout worker described in
// spec.md §4.6/§9: a min-heap of (deadline, process) entries, one per
// suspended-with-timeout process, woken either by its own deadline
// elapsing or by NotifyExpired pruning it early because a message
// already rescheduled the process first.
//
// original_source/src/scheduler/timeout_worker.rs is a near-empty
// stub in the retrieved revision (no Timeout struct, no heap, no
// wake loop survive there), so spec.md's description of the
// min-heap of (deadline, process, generation-counter) entries is the
// primary source for this package rather than a Rust file.
package timeout

import (
	"container/heap"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jazz-lang/jlight/internal/process"
)

// Worker owns the min-heap and the single goroutine that sleeps until
// the nearest deadline. It implements process.TimeoutNotifier.
type Worker struct {
	mu    sync.Mutex
	heap  entryHeap
	byPtr map[*process.Timeout]*entry

	wake chan struct{}
	done chan struct{}

	sched process.Rescheduler
	log   *zap.Logger
}

// New builds a timeout worker that reschedules through sched.
func New(sched process.Rescheduler, log *zap.Logger) *Worker {
	return &Worker{
		byPtr: make(map[*process.Timeout]*entry),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		sched: sched,
		log:   log,
	}
}

// Schedule registers p as suspended until t's deadline.
func (w *Worker) Schedule(p *process.Process, t *process.Timeout) {
	w.mu.Lock()
	e := &entry{timeout: t, proc: p}
	heap.Push(&w.heap, e)
	w.byPtr[t] = e
	w.mu.Unlock()
	w.poke()
}

// NotifyExpired implements process.TimeoutNotifier: a message already
// won the race to reschedule t's process, so drop its heap entry
// instead of waiting for the stale deadline to fire.
func (w *Worker) NotifyExpired(t *process.Timeout) {
	w.mu.Lock()
	if e, ok := w.byPtr[t]; ok && e.idx >= 0 {
		heap.Remove(&w.heap, e.idx)
		delete(w.byPtr, t)
	}
	w.mu.Unlock()
	w.poke()
}

func (w *Worker) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run sleeps until the nearest deadline (or a Schedule/NotifyExpired
// wakes it early to recompute that deadline), then reschedules every
// process whose timeout actually elapsed. Returns when Stop is
// called. Intended to run as its own goroutine.
func (w *Worker) Run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		w.mu.Lock()
		sleep := time.Hour
		if len(w.heap) > 0 {
			sleep = time.Until(w.heap[0].timeout.Deadline)
			if sleep < 0 {
				sleep = 0
			}
		}
		w.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(sleep)

		select {
		case <-w.done:
			return
		case <-w.wake:
			continue
		case <-timer.C:
			w.wakeExpired()
		}
	}
}

// Stop tells Run to exit.
func (w *Worker) Stop() { close(w.done) }

func (w *Worker) wakeExpired() {
	now := time.Now()
	for {
		w.mu.Lock()
		if len(w.heap) == 0 || w.heap[0].timeout.Deadline.After(now) {
			w.mu.Unlock()
			return
		}
		e := heap.Pop(&w.heap).(*entry)
		delete(w.byPtr, e.timeout)
		w.mu.Unlock()

		// Whoever wins AcquireReschedulingRights owns the obligation to
		// reschedule, whether or not it happens to be this exact timeout
		// (a process may have resumed and re-suspended between this
		// entry's deadline and this pop); RightsFailed means a message
		// already rescheduled it, so this entry is simply dropped.
		if rights, _ := e.proc.AcquireReschedulingRights(); rights != process.RightsFailed {
			w.sched.Reschedule(e.proc)
		}
	}
}
