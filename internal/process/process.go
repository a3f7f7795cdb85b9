// Package process implements an isolated execution unit per spec.md
// §4.6: exclusive ownership of a heap and a context (call frame)
// chain, a FIFO mailbox, a catch-entry stack, combinable status bits,
// and a CAS-guarded suspension pointer granting "rescheduling
// rights" to at most one thread at a time. Grounded on
// original_source/vm/src/runtime/process.rs (RescheduleRights,
// SUSPENDED_BIT tagged pointer) and original_source/src/process.rs
// (ProcessStatus bits, Mailbox, catch_entries, write_barrier).
package process

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/heap/copying"
	"github.com/jazz-lang/jlight/internal/interp"
	"github.com/jazz-lang/jlight/internal/value"
)

// Status is a set of combinable bits describing a process's run
// state, matching spec.md §4.6 exactly.
type Status uint32

const (
	StatusNormal     Status = 0
	StatusMain       Status = 1 << 0
	StatusBlocking   Status = 1 << 1
	StatusTerminated Status = 1 << 2
)

// Timeout is the payload a suspended process may be waiting against:
// a deadline and a generation counter the timeout worker uses to
// tell a live heap entry from one a prior message already cancelled.
type Timeout struct {
	Deadline   time.Time
	Generation uint64
}

// suspendState is the Go stand-in for the original's tagged pointer.
// Go gives no safe way to steal bits from a live pointer the way a
// raw TaggedPointer<Timeout> does, so the "suspended" marker and the
// optional *Timeout are CAS'd together as one small immutable struct
// instead of one packed word; the three observable states are
// identical: nil = not suspended, non-nil with Timeout == nil =
// suspended indefinitely, non-nil with Timeout != nil = suspended
// until Timeout.Deadline.
type suspendState struct {
	Timeout *Timeout
}

// RescheduleRights reports the outcome of a CAS attempt to acquire
// the right to re-enqueue a suspended process. Exactly one caller
// ever observes Acquired or AcquiredWithTimeout for a given
// suspension; every other concurrent caller observes Failed.
type RescheduleRights int

const (
	RightsFailed RescheduleRights = iota
	RightsAcquired
	RightsAcquiredWithTimeout
)

// Rescheduler is implemented by the scheduler: re-enqueueing a
// process that just regained the right to run.
type Rescheduler interface {
	Reschedule(p *Process)
}

// TimeoutNotifier is implemented by the timeout worker: notified when
// a timeout it is tracking was beaten by a message-driven wakeup, so
// its corresponding min-heap entry can be dropped as cancelled.
type TimeoutNotifier interface {
	NotifyExpired(t *Timeout)
}

// Process owns exactly one heap, one context chain, one mailbox, and
// one catch-entry stack. Cross-process data sharing goes only through
// messages, deep-copied by CopyValue before Send enqueues them.
type Process struct {
	ID uuid.UUID

	Heap *copying.Heap

	table        *cell.Table
	nilPrototype *cell.Cell

	// ctxMu guards ctx and catch: the owning worker is the only
	// routine that mutates them while the process runs, but a
	// concurrent GC pass (triggered from a different worker during
	// stop-the-world bookkeeping) or a debugging inspector may read
	// them, matching the "single execution, concurrent-safe root scan"
	// discipline spec.md §5 describes.
	ctxMu sync.Mutex
	ctx   *interp.Context
	catch []interp.CatchEntry

	mailboxMu sync.Mutex
	mailbox   []value.Value

	status atomic.Uint32

	suspended         atomic.Pointer[suspendState]
	waitingForMessage atomic.Bool

	// threadID pins the process to one scheduler worker while >= 0
	// (exclusive mode); -1 means unpinned.
	threadID atomic.Int64

	doneOnce sync.Once
	done     chan struct{}
}

// New constructs a process ready to run entry as its top-level
// (MAIN, if main is true) context. table is the runtime-wide shared
// cell table every process's Values resolve through (see
// cell.Table's doc comment); nilPrototype is the permanent cell used
// by Cell.IsFalse to recognize the falsy "nil object" per spec.md
// §4.1.
func New(entry *bytecode.Function, table *cell.Table, nilPrototype *cell.Cell, youngThreshold int64, main bool) *Process {
	ctx := interp.NewContext(entry)
	ctx.TerminateUponReturn = true

	p := &Process{
		ID:           uuid.New(),
		Heap:         copying.New(table, youngThreshold),
		table:        table,
		nilPrototype: nilPrototype,
		ctx:          ctx,
		done:         make(chan struct{}),
	}
	p.threadID.Store(-1)
	if main {
		p.SetMain()
	}
	return p
}

// ---- interp.ProcessHandle ----

// ContextPtr returns the current top context.
func (p *Process) ContextPtr() *interp.Context {
	p.ctxMu.Lock()
	defer p.ctxMu.Unlock()
	return p.ctx
}

// PushContext makes ctx the new top context, its Parent set to the
// previous top, mirroring Process::push_context's swap-and-link.
func (p *Process) PushContext(ctx *interp.Context) {
	p.ctxMu.Lock()
	defer p.ctxMu.Unlock()
	ctx.Parent = p.ctx
	p.ctx = ctx
}

// PopContext pops to the parent context, reporting whether the top
// context had no parent (the process should terminate).
func (p *Process) PopContext() bool {
	p.ctxMu.Lock()
	defer p.ctxMu.Unlock()
	if p.ctx.Parent == nil {
		return true
	}
	p.ctx = p.ctx.Parent
	return false
}

// PushCatch pushes a catch-entry, per CatchBlock's semantics.
func (p *Process) PushCatch(e interp.CatchEntry) {
	p.ctxMu.Lock()
	defer p.ctxMu.Unlock()
	p.catch = append(p.catch, e)
}

// PopCatch pops the most recently pushed catch-entry.
func (p *Process) PopCatch() (interp.CatchEntry, bool) {
	p.ctxMu.Lock()
	defer p.ctxMu.Unlock()
	if len(p.catch) == 0 {
		return interp.CatchEntry{}, false
	}
	e := p.catch[len(p.catch)-1]
	p.catch = p.catch[:len(p.catch)-1]
	return e, true
}

// Table returns the shared cell table Values resolve through.
func (p *Process) Table() *cell.Table { return p.table }

// NilPrototype returns the permanent "falsy nil object" cell.
func (p *Process) NilPrototype() *cell.Cell { return p.nilPrototype }

// IsYoung reports whether v resolves to a cell in this process's
// young generation, driving the intra-generational write barrier in
// Cell.AddAttribute.
func (p *Process) IsYoung(v value.Value) bool {
	if !v.IsCell() {
		return false
	}
	c := p.table.Resolve(v)
	if c == nil {
		return false
	}
	return !c.IsMature()
}

// Safepoint runs a GC cycle if the allocator has requested one. It is
// called by the interpreter at every explicit Safepoint instruction
// and implicitly on Return, per spec.md §4.5's state machine.
func (p *Process) Safepoint() {
	p.CollectIfNeeded()
}

// ---- garbage collection ----

// CollectIfNeeded runs one collection cycle if the heap's allocator
// has set a needs-gc trigger, per spec.md §4.3's algorithm.
func (p *Process) CollectIfNeeded() {
	if need := p.Heap.NeedsGC(); need != copying.NeedsGCNone {
		p.Heap.Collect(p, need)
	}
}

// ScanRoots implements copying.RootScanner and incremental.RootScanner:
// it walks the context chain (registers, operand stack, upvalues,
// This, module globals) and the mailbox.
func (p *Process) ScanRoots(visit func(value.Value)) {
	p.ctxMu.Lock()
	ctx := p.ctx
	p.ctxMu.Unlock()
	if ctx != nil {
		ctx.Trace(visit)
	}

	p.mailboxMu.Lock()
	msgs := append([]value.Value(nil), p.mailbox...)
	p.mailboxMu.Unlock()
	for _, v := range msgs {
		visit(v)
	}
}

// ---- status bits ----

func (p *Process) updateStatus(mask Status, enable bool) {
	for {
		cur := p.status.Load()
		next := cur
		if enable {
			next = cur | uint32(mask)
		} else {
			next = cur &^ uint32(mask)
		}
		if p.status.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (p *Process) hasStatus(mask Status) bool {
	return p.status.Load()&uint32(mask) == uint32(mask)
}

func (p *Process) SetMain()              { p.updateStatus(StatusMain, true) }
func (p *Process) IsMain() bool          { return p.hasStatus(StatusMain) }
func (p *Process) SetBlocking(on bool)   { p.updateStatus(StatusBlocking, on) }
func (p *Process) IsBlocking() bool      { return p.hasStatus(StatusBlocking) }
func (p *Process) SetTerminated()        { p.updateStatus(StatusTerminated, true) }
func (p *Process) IsTerminated() bool    { return p.hasStatus(StatusTerminated) }

// Terminate marks the process terminated and releases any pending
// timeout, mirroring the original's Drop impl: "this ensures the
// timeout is dropped if it's present, without having to duplicate the
// dropping logic."
func (p *Process) Terminate() {
	p.SetTerminated()
	p.AcquireReschedulingRights()
	p.doneOnce.Do(func() { close(p.done) })
}

// Done returns a channel closed once Terminate has run, letting the
// runtime driver block on the MAIN process's exit (spec.md §6: "When
// the main process terminates, the scheduler and GC pool are
// signalled to terminate and join_all returns.") without polling
// IsTerminated.
func (p *Process) Done() <-chan struct{} { return p.done }

// ---- pinning (exclusive scheduler mode) ----

// Pin ties the process to scheduler worker workerID.
func (p *Process) Pin(workerID int) { p.threadID.Store(int64(workerID)) }

// Unpin releases the process back to normal work-stealing.
func (p *Process) Unpin() { p.threadID.Store(-1) }

// IsPinned reports whether the process is currently pinned.
func (p *Process) IsPinned() bool { return p.threadID.Load() >= 0 }

// ThreadID returns the pinned worker id, if any.
func (p *Process) ThreadID() (int, bool) {
	id := p.threadID.Load()
	if id < 0 {
		return 0, false
	}
	return int(id), true
}

// ---- suspension & rescheduling rights ----

// SuspendWithTimeout marks the process suspended until t's deadline.
func (p *Process) SuspendWithTimeout(t *Timeout) {
	p.suspended.Store(&suspendState{Timeout: t})
}

// SuspendWithoutTimeout marks the process suspended indefinitely.
func (p *Process) SuspendWithoutTimeout() {
	p.suspended.Store(&suspendState{})
}

// IsSuspended reports whether the process currently has a suspension
// marker installed, regardless of kind.
func (p *Process) IsSuspended() bool {
	return p.suspended.Load() != nil
}

// IsSuspendedWithTimeout reports whether the process is specifically
// suspended against t.
func (p *Process) IsSuspendedWithTimeout(t *Timeout) bool {
	cur := p.suspended.Load()
	return cur != nil && cur.Timeout == t
}

// AcquireReschedulingRights atomically reads the current suspension
// marker and clears it; only the caller that wins the CAS may
// re-enqueue the process. It returns the timeout that was in effect,
// if any, so the caller can notify the timeout worker to drop the
// corresponding heap entry.
func (p *Process) AcquireReschedulingRights() (RescheduleRights, *Timeout) {
	for {
		cur := p.suspended.Load()
		if cur == nil {
			return RightsFailed, nil
		}
		if p.suspended.CompareAndSwap(cur, nil) {
			if cur.Timeout == nil {
				return RightsAcquired, nil
			}
			return RightsAcquiredWithTimeout, cur.Timeout
		}
	}
}

// ---- mailbox ----

// Send enqueues an already-receiver-resident value (see CopyValue)
// and attempts to reschedule the receiver, per spec.md §4.6's
// "message send rescheduling" rule. sched/timeouts may be nil, e.g.
// in tests that only assert mailbox ordering.
func (p *Process) Send(v value.Value, sched Rescheduler, timeouts TimeoutNotifier) {
	p.mailboxMu.Lock()
	p.mailbox = append(p.mailbox, v)
	p.mailboxMu.Unlock()

	switch rights, timeout := p.AcquireReschedulingRights(); rights {
	case RightsAcquired:
		if sched != nil {
			sched.Reschedule(p)
		}
	case RightsAcquiredWithTimeout:
		if timeouts != nil && timeout != nil {
			timeouts.NotifyExpired(timeout)
		}
		if sched != nil {
			sched.Reschedule(p)
		}
	case RightsFailed:
		// The receiver was still running; it will see the message on
		// its next Receive.
	}
}

// Receive pops the oldest message, if any.
func (p *Process) Receive() (value.Value, bool) {
	p.mailboxMu.Lock()
	defer p.mailboxMu.Unlock()
	if len(p.mailbox) == 0 {
		return value.Empty, false
	}
	v := p.mailbox[0]
	p.mailbox = p.mailbox[1:]
	return v, true
}

// HasMessages reports whether the mailbox is non-empty.
func (p *Process) HasMessages() bool {
	p.mailboxMu.Lock()
	defer p.mailboxMu.Unlock()
	return len(p.mailbox) > 0
}

// ---- cross-process deep copy ----

// CopyValue deep-copies v — resolved against srcTable — into dst's
// heap, using the same reachability walk the copying GC uses (shared
// table handles plus a visited set to preserve cyclic graph shape),
// per spec.md §4.6: "the message's value is copied into the
// receiver's heap first, using the GC copy protocol." Permanent cells
// (prototypes, interned strings) are never copied, since they are
// already globally valid and immutable.
func CopyValue(srcTable *cell.Table, v value.Value, dst *Process) value.Value {
	if !v.IsCell() {
		return v
	}
	seen := make(map[*cell.Cell]*cell.Cell)
	return copyCellValue(srcTable, v, dst, seen)
}

func copyCellValue(srcTable *cell.Table, v value.Value, dst *Process, seen map[*cell.Cell]*cell.Cell) value.Value {
	c := srcTable.Resolve(v)
	if c == nil {
		return value.Null
	}
	return dst.table.Intern(copyCell(srcTable, c, dst, seen))
}

func copyCell(srcTable *cell.Table, c *cell.Cell, dst *Process, seen map[*cell.Cell]*cell.Cell) *cell.Cell {
	if c.IsPermanent() {
		return c
	}
	if existing, ok := seen[c]; ok {
		return existing
	}

	nc := &cell.Cell{Generation: c.Generation}
	seen[c] = nc

	nc.Value = copyVariant(srcTable, c.Value, dst, seen)
	if c.Prototype != nil {
		nc.Prototype = copyCell(srcTable, c.Prototype, dst, seen)
	}
	for _, name := range c.AttributeNames() {
		attrVal, _ := c.LookupAttributeInSelf(name)
		nc.AddAttribute(name, copyValueMaybeCell(srcTable, attrVal, dst, seen), dst.IsYoung)
	}

	dst.Heap.AllocateYoung(nc)
	return nc
}

func copyValueMaybeCell(srcTable *cell.Table, v value.Value, dst *Process, seen map[*cell.Cell]*cell.Cell) value.Value {
	if !v.IsCell() {
		return v
	}
	c := srcTable.Resolve(v)
	if c == nil {
		return value.Null
	}
	return dst.table.Intern(copyCell(srcTable, c, dst, seen))
}

func copyVariant(srcTable *cell.Table, v cell.Variant, dst *Process, seen map[*cell.Cell]*cell.Cell) cell.Variant {
	out := v
	switch v.Kind {
	case cell.KindArray:
		out.Array = make([]value.Value, len(v.Array))
		for i, e := range v.Array {
			out.Array[i] = copyValueMaybeCell(srcTable, e, dst, seen)
		}
	case cell.KindByteArray:
		out.ByteArray = append([]byte(nil), v.ByteArray...)
	}
	return out
}
