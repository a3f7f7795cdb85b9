// Package incremental implements the alternate collection path used
// by processes configured for large heaps: tri-color incremental
// mark-sweep driven in bounded-work steps, with a mark-compact pass
// when free-list fragmentation exceeds 40%. Grounded on
// original_source/jlight-vm/src/heap/ieiunium/mod.rs's
// IeiuniumCollectorInner/IncrementalState design and spec.md §4.4.
package incremental

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/heap/freelist"
	"github.com/jazz-lang/jlight/internal/value"
)

// Color is the tri-color mark state.
type Color uint8

const (
	White Color = iota
	Grey
	Black
)

// FragmentationThreshold is the free-list fragmentation ratio above
// which a major cycle compacts instead of sweeping in place.
const FragmentationThreshold = 0.40

// State is the incremental engine's own state machine, independent of
// a cell's tri-color mark.
type State uint8

const (
	StateDone State = iota
	StateRoots
	StateMark
	StateSweep
)

// RootScanner enumerates root Values for the collector to walk.
type RootScanner interface {
	ScanRoots(visit func(value.Value))
}

// entry pairs a live cell with the table handle used to address it,
// so the sweep pass can release dead handles.
type entry struct {
	c      *cell.Cell
	handle value.Value
	addr   uintptr // logical address for sort-by-address sweep/compact passes
}

// Collector drives the incremental mark-sweep engine plus mark-compact
// escalation over one process's old-generation-equivalent heap: for
// processes opted into this path, it is the only collector (there is
// no separate young generation).
type Collector struct {
	Table *cell.Table
	Free  *freelist.FreeList

	cells []entry
	gray  []*cell.Cell

	state State

	bytesAllocated int64
	minorThreshold int64
	majorThreshold int64

	workers int64 // max concurrent goroutines for parallel root-scan
}

// New constructs a collector with the given worker concurrency for
// the parallel root-scan phase of a major cycle.
func New(table *cell.Table, workers int) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{
		Table:          table,
		Free:           freelist.New(),
		minorThreshold: 4096,
		majorThreshold: 8192,
		workers:        int64(workers),
	}
}

// Allocate registers a newly allocated cell at a synthetic address
// (monotonically increasing, standing in for a real bump pointer into
// the backing region) and returns its table handle.
func (col *Collector) Allocate(c *cell.Cell) value.Value {
	h := col.Table.Intern(c)
	addr := uintptr(len(col.cells))
	col.cells = append(col.cells, entry{c: c, handle: h, addr: addr})
	col.bytesAllocated++
	return h
}

// NeedsMinor reports whether bytesAllocated has crossed the minor
// threshold (mirrors IeiuniumCollectorInner::alloc's minor trigger).
func (col *Collector) NeedsMinor() bool {
	return col.bytesAllocated > col.minorThreshold
}

// NeedsMajor reports whether a major cycle should run, that is,
// whether bytesAllocated has crossed the major threshold.
func (col *Collector) NeedsMajor() bool {
	return col.bytesAllocated > col.majorThreshold
}

// Minor runs a full incremental mark-and-sweep cycle to completion
// (the bounded-work Step machine is exposed separately for callers
// that want to interleave it with mutator safepoints; Minor is the
// convenience path used by tests and the simple driver).
func (col *Collector) Minor(scanner RootScanner) {
	col.state = StateRoots
	for col.state != StateDone {
		col.Step(scanner, 1<<30)
	}
	col.bytesAllocated = int64(float64(col.bytesAllocated) * 0.3)
}

// Step advances the engine by one state and returns; the driver calls
// Step repeatedly until State() == StateDone. limit bounds only the
// Mark state, which processes at most limit grey cells per call; the
// Roots and Sweep states each run to completion in a single call.
func (col *Collector) Step(scanner RootScanner, limit int) {
	switch col.state {
	case StateDone:
		col.state = StateRoots
		fallthrough
	case StateRoots:
		col.stepRoots(scanner)
		col.state = StateMark
	case StateMark:
		col.stepMark(limit)
	case StateSweep:
		col.stepSweep()
		col.state = StateDone
	}
}

// State reports the engine's current state.
func (col *Collector) State() State { return col.state }

func (col *Collector) stepRoots(scanner RootScanner) {
	col.gray = col.gray[:0]
	scanner.ScanRoots(func(v value.Value) {
		c := col.Table.Resolve(v)
		if c == nil || c.IsPermanent() {
			return
		}
		col.setColor(c, Grey)
		col.gray = append(col.gray, c)
	})
}

// stepRootsParallel is the root-scan phase used by a pool-wide major
// collection, which must visit every process's root scanner. Scans
// run concurrently, bounded by col.workers (the GCWorkers config
// tunable), matching the ieiunium collector's multi-process major
// cycle; the grey list itself is protected by a mutex since ScanRoots
// callbacks run on worker goroutines.
func (col *Collector) stepRootsParallel(ctx context.Context, scanners []RootScanner) error {
	col.gray = col.gray[:0]
	sem := semaphore.NewWeighted(col.workers)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, s := range scanners {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func(s RootScanner) {
			defer wg.Done()
			defer sem.Release(1)
			s.ScanRoots(func(v value.Value) {
				c := col.Table.Resolve(v)
				if c == nil || c.IsPermanent() {
					return
				}
				mu.Lock()
				if col.colorOf(c) == White {
					col.setColor(c, Grey)
					col.gray = append(col.gray, c)
				}
				mu.Unlock()
			})
		}(s)
	}
	wg.Wait()
	return nil
}

// MajorParallel runs a major collection across every process scanner
// in scanners concurrently during the root-scan phase, then marks and
// sweeps/compacts exactly as Major does for a single scanner.
func (col *Collector) MajorParallel(ctx context.Context, scanners []RootScanner) error {
	if err := col.stepRootsParallel(ctx, scanners); err != nil {
		return err
	}
	col.state = StateMark
	for col.state != StateDone {
		col.Step(noopScanner{}, 1<<30)
	}
	if col.Fragmentation() > FragmentationThreshold {
		col.compact()
	}
	col.bytesAllocated = int64(float64(col.bytesAllocated) * 0.3)
	return nil
}

type noopScanner struct{}

func (noopScanner) ScanRoots(func(value.Value)) {}

func (col *Collector) stepMark(limit int) {
	done := 0
	for done < limit && len(col.gray) > 0 {
		c := col.gray[len(col.gray)-1]
		col.gray = col.gray[:len(col.gray)-1]
		col.setColor(c, Black)
		col.markChild(c.Prototype)
		for _, child := range c.ChildValues() {
			col.markChild(col.Table.Resolve(child))
		}
		done++
	}
	if len(col.gray) == 0 {
		col.state = StateSweep
	}
}

func (col *Collector) markChild(c *cell.Cell) {
	if c == nil || c.IsPermanent() {
		return
	}
	if col.colorOf(c) == White {
		col.setColor(c, Grey)
		col.gray = append(col.gray, c)
	}
}

// stepSweep sorts the allocated-cells list by address, traverses it
// once, coalesces runs of dead cells into free-list entries, finalizes
// dead cells, and resets survivors to White.
func (col *Collector) stepSweep() {
	sort.Slice(col.cells, func(i, j int) bool { return col.cells[i].addr < col.cells[j].addr })

	survivors := col.cells[:0]
	runStart := uintptr(0)
	runLen := 0
	flushRun := func() {
		if runLen > 0 {
			col.Free.Add(runStart, runLen)
			runLen = 0
		}
	}

	for _, e := range col.cells {
		if col.colorOf(e.c) == White {
			if runLen == 0 {
				runStart = e.addr
			}
			runLen++
			col.finalize(e.c)
			col.Table.Release(e.handle)
			continue
		}
		flushRun()
		col.setColor(e.c, White)
		survivors = append(survivors, e)
	}
	flushRun()
	col.cells = survivors
}

func (col *Collector) finalize(c *cell.Cell) {
	if c.Value.Kind == cell.KindFile && c.Value.File != nil {
		_ = c.Value.File.Close()
	}
}

// WriteBarrier must be called whenever parent's attribute map or
// array gains a reference to child: if parent is Black and child is
// White, demote parent to Grey and re-enqueue it, preserving the
// invariant that Black cells reference only non-White cells.
func (col *Collector) WriteBarrier(parent, child *cell.Cell) {
	if parent == nil || child == nil {
		return
	}
	if col.colorOf(parent) == Black && col.colorOf(child) == White {
		col.setColor(parent, Grey)
		col.gray = append(col.gray, parent)
	}
}

// colorOf derives the tri-color state from cell.Cell's hard-mark and
// soft-mark bits: Black is hard-marked, Grey is soft-marked only,
// White is neither. This reuses the same two bits the copying
// collector uses for its own (two-color) bookkeeping, since a given
// process uses exactly one of the two collectors at a time.
func (col *Collector) colorOf(c *cell.Cell) Color {
	if c.IsMarked() {
		return Black
	}
	if c.IsSoftMarked() {
		return Grey
	}
	return White
}

func (col *Collector) setColor(c *cell.Cell, color Color) {
	switch color {
	case White:
		c.Unmark()
		c.SoftMarkClear()
	case Grey:
		c.SoftMarkSet()
		c.Unmark()
	case Black:
		c.Mark()
		c.SoftMarkClear()
	}
}

// Fragmentation reports the free-list's current fragmentation ratio.
func (col *Collector) Fragmentation() float64 {
	return col.Free.Fragmentation()
}

// Major runs a major collection: a full mark-sweep cycle, followed by
// a mark-compact pass if fragmentation exceeds FragmentationThreshold.
// Its root scan is the sequential one; the semaphore-bounded parallel
// root scan is used only by MajorParallel.
func (col *Collector) Major(scanner RootScanner) {
	col.Minor(scanner)
	if col.Fragmentation() > FragmentationThreshold {
		col.compact()
	}
	col.bytesAllocated = int64(float64(col.bytesAllocated) * 0.3)
}

// compact performs the three mark-compact passes described in
// spec.md §4.4: forwarding addresses, update references, relocate.
func (col *Collector) compact() {
	sort.Slice(col.cells, func(i, j int) bool { return col.cells[i].addr < col.cells[j].addr })

	// Pass (a): forwarding addresses via a compacting bump pointer.
	var next uintptr
	for i := range col.cells {
		col.cells[i].c.Forward = col.cells[i].c // cells keep their identity; dest below records the new addresses
	}
	dest := make(map[*cell.Cell]uintptr, len(col.cells))
	for _, e := range col.cells {
		dest[e.c] = next
		next++
	}

	// Pass (b): update references — rewrite each cell's own addr to
	// its destination. In this Go port there is no raw byte layout to
	// rewrite pointers into, so "updating references" means updating
	// the synthetic addr used for sweep/compact bookkeeping; the
	// table handles themselves are untouched since they already
	// resolve by pointer identity, not address.
	for i := range col.cells {
		col.cells[i].addr = dest[col.cells[i].c]
	}

	// Pass (c): relocate. Nothing to physically copy since cells are
	// Go-heap objects; this pass exists to reset the free-list, since
	// compaction leaves no fragmentation behind.
	col.Free.Reset()
}
