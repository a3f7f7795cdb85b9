// Package runtime implements spec.md §6's runtime entry point: given
// a module already loaded into a bytecode.ModuleRegistry and a
// function cell to invoke, it constructs a top context, pushes a
// fresh process onto a scheduler, schedules it as MAIN, and blocks
// until that process terminates — at which point the scheduler and
// its timeout worker are signalled to stop and join_all returns.
//
// This is the driver cmd/jlightvm's thin main.go calls into; it is
// also the seam an embedding host (anything producing the CFG/module
// spec.md §1 describes as external collaborators) would call instead
// of a CLI.
package runtime

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/config"
	"github.com/jazz-lang/jlight/internal/heap/permanent"
	"github.com/jazz-lang/jlight/internal/process"
	"github.com/jazz-lang/jlight/internal/scheduler"
)

// Driver owns the runtime-wide state that outlives any single
// process: the shared cell table, the permanent space, and the
// scheduler. Exactly one Driver is constructed per runtime instance
// (spec.md §9: "the string interner and permanent heap are
// process-wide, initialized before any scheduler worker starts").
type Driver struct {
	Config    config.Config
	Table     *cell.Table
	Permanent *permanent.Space
	Modules   *bytecode.ModuleRegistry
	Scheduler *scheduler.Scheduler

	// NilPrototype is the permanent cell Cell.IsFalse treats as the
	// falsy "nil object" (spec.md §4.1's to_boolean: false iff ...
	// or nil-prototype cell).
	NilPrototype *cell.Cell

	log *zap.Logger
}

// New constructs a Driver from cfg: the shared table, permanent
// space, and a not-yet-started scheduler sized per
// cfg.SchedulerWorkers/cfg.ReductionsPerSlice. log must not be nil;
// pass vmlog.Nop() in tests.
func New(cfg config.Config, log *zap.Logger) *Driver {
	table := cell.NewTable()
	perm := permanent.New(table, cfg.PermanentSize)
	nilProto, _ := perm.Allocate(cell.Variant{Kind: cell.KindNone}, nil)

	return &Driver{
		Config:       cfg,
		Table:        table,
		Permanent:    perm,
		Modules:      bytecode.NewModuleRegistry(),
		Scheduler:    scheduler.New(cfg.SchedulerWorkers, cfg.ReductionsPerSlice, log),
		NilPrototype: nilProto,
		log:          log,
	}
}

// Run starts the scheduler, schedules entry as the MAIN process, and
// blocks until that process terminates, then stops and joins the
// scheduler. It is the Go expression of spec.md §6's "Runtime entry":
// the host has already loaded entry's module into d.Modules before
// calling Run. The returned error aggregates every independent
// failure a shutdown can surface (a worker goroutine's join error,
// the permanent space having outgrown its configured budget) via
// go.uber.org/multierr, rather than reporting only the first one
// encountered.
func (d *Driver) Run(ctx context.Context, entry *bytecode.Function) error {
	main := process.New(entry, d.Table, d.NilPrototype, d.Config.YoungThreshold, true)

	d.Scheduler.Start(ctx)
	d.Scheduler.Spawn(main)
	d.log.Info("main process scheduled", zap.String("process", main.ID.String()))

	select {
	case <-main.Done():
		d.log.Info("main process terminated")
	case <-ctx.Done():
		d.log.Warn("runtime context cancelled before main process terminated")
	}

	d.Scheduler.Stop()

	var budgetErr error
	if d.Permanent.NeedsGrow() {
		budgetErr = fmt.Errorf("permanent space exceeded its configured %d-byte budget (used %d)",
			d.Config.PermanentSize, d.Permanent.BytesUsed())
	}
	return multierr.Combine(d.Scheduler.Wait(), budgetErr)
}
