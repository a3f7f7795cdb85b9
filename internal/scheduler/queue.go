package scheduler

import (
	"sync"

	"github.com/jazz-lang/jlight/internal/process"
)

// queue is one worker's share of the work-stealing pool: a local deque
// the owning worker pushes/pops from the back (LIFO, for locality),
// and an external inbox other workers or Send use to hand the worker
// a pinned job without racing on the local deque, mirroring
// RcQueue/Queue in original_source/src/sync/queue.rs.
type queue struct {
	mu       sync.Mutex
	local    []*process.Process
	external []*process.Process
}

func (q *queue) push(p *process.Process) {
	q.mu.Lock()
	q.local = append(q.local, p)
	q.mu.Unlock()
}

// pop removes the most recently pushed job (LIFO), matching the
// owning worker's own queue discipline.
func (q *queue) pop() (*process.Process, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.local) == 0 {
		return nil, false
	}
	p := q.local[len(q.local)-1]
	q.local = q.local[:len(q.local)-1]
	return p, true
}

// steal removes the oldest job (FIFO) so a thief and the owner rarely
// contend for the same end of the deque.
func (q *queue) steal() (*process.Process, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.local) == 0 {
		return nil, false
	}
	p := q.local[0]
	q.local = q.local[1:]
	return p, true
}

func (q *queue) pushExternal(p *process.Process) {
	q.mu.Lock()
	q.external = append(q.external, p)
	q.mu.Unlock()
}

// popExternalJob takes one job from the external inbox without
// touching the rest, used in exclusive mode where only the pinned job
// may run on this worker.
func (q *queue) popExternalJob() (*process.Process, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.external) == 0 {
		return nil, false
	}
	p := q.external[0]
	q.external = q.external[1:]
	return p, true
}

// moveExternalJobs drains the external inbox into the local deque,
// reporting whether anything moved.
func (q *queue) moveExternalJobs() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.external) == 0 {
		return false
	}
	q.local = append(q.local, q.external...)
	q.external = q.external[:0]
	return true
}

func (q *queue) hasExternalJobs() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.external) > 0
}
