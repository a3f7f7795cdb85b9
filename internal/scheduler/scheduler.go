package scheduler

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jazz-lang/jlight/internal/process"
	"github.com/jazz-lang/jlight/internal/timeout"
)

// Scheduler owns a Pool, its worker goroutines, and the timeout
// worker that reschedules processes suspended against a deadline —
// together the two collaborators spec.md §4.6 describes feeding into
// each other ("Timeouts feed back into the scheduler."). The worker
// goroutines' lifecycle is managed through golang.org/x/sync/errgroup.
type Scheduler struct {
	Pool     *Pool
	Timeouts *timeout.Worker

	workers []*Worker
	group   *errgroup.Group
	log     *zap.Logger
}

// New builds a scheduler with n workers, each budgeted reductions
// reductions (safepoints and context-popping returns) per time slice
// (config.ReductionsPerSlice).
func New(n, reductions int, log *zap.Logger) *Scheduler {
	pool := NewPool(n)
	workers := make([]*Worker, n)
	for i := range workers {
		workers[i] = NewWorker(i, pool, reductions, log)
	}
	return &Scheduler{
		Pool:     pool,
		Timeouts: timeout.New(pool, log),
		workers:  workers,
		log:      log,
	}
}

// Start launches one goroutine per worker plus the timeout worker. It
// returns immediately; call Wait to block until Stop has drained
// everything.
func (s *Scheduler) Start(ctx context.Context) {
	group, _ := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w := w
		group.Go(func() error {
			w.Run()
			return nil
		})
	}
	group.Go(func() error {
		s.Timeouts.Run()
		return nil
	})
	s.group = group
}

// Wait blocks until every worker goroutine has returned, which only
// happens after Stop.
func (s *Scheduler) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Stop tells every worker and the timeout worker to finish and exit.
func (s *Scheduler) Stop() {
	s.Pool.Terminate()
	s.Timeouts.Stop()
}

// Suspend suspends p against t and registers it with the timeout
// worker so a deadline wakeup or an earlier message (via
// process.Process.Send, which calls Timeouts.NotifyExpired) can
// reschedule it. This is the entry point stdlib blocking
// operations (sleep, receive-with-timeout) use.
func (s *Scheduler) Suspend(p *process.Process, t *process.Timeout) {
	p.SuspendWithTimeout(t)
	s.Timeouts.Schedule(p, t)
}

// Spawn schedules a freshly constructed process onto the global
// queue, matching spec.md §4.6's process-creation entry point.
func (s *Scheduler) Spawn(p *process.Process) {
	s.Pool.PushGlobal(p)
}
