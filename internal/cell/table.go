package cell

import (
	"sync"

	"github.com/jazz-lang/jlight/internal/value"
)

// Table interns *Cell pointers behind small integer handles so they
// can be carried inside a NaN-boxed value.Value. A real systems
// implementation stores the cell's address directly in the tagged
// word; Go's garbage collector gives no safe way to round-trip a live
// pointer through a plain uintptr (the object could be collected
// before the bits are converted back), so the runtime keeps this side
// table instead and a Value's "cell" payload is the table index plus
// one, shifted left by handleShift bits so that it is aligned like a
// cell pointer and never collides with an immediate tag; it is not a
// literal address. This is a deliberate
// adaptation, not a simplification of semantics: every predicate,
// invariant, and forwarding rule in spec.md §3/§4.1 holds identically
// over the indirection.
//
// One Table is shared by every process in a runtime (see
// internal/runtime.Driver and internal/heap/permanent's "shared
// cell.Table decision"), so its methods are called concurrently from
// whichever worker goroutines happen to be running those processes —
// a message send resolving a value while the receiver's own collection
// cycle resolves a root is the common case. mu serializes all of it.
type Table struct {
	mu    sync.Mutex
	cells []*Cell
	free  []uint32
}

// handleShift is how far a handle's slot number is shifted left
// inside a cell-tagged Value.
const handleShift = 3

// NewTable constructs an empty table.
func NewTable() *Table {
	return &Table{}
}

// Intern assigns c a fresh handle and returns the Value that carries
// it. Every call allocates a new handle: interning a cell that already
// has one does not return the existing handle.
func (t *Table) Intern(c *Cell) value.Value {
	if c == nil {
		return value.Null
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.free) > 0 {
		idx := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.cells[idx] = c
		return value.FromCell((uintptr(idx) + 1) << handleShift)
	}
	t.cells = append(t.cells, c)
	return value.FromCell(uintptr(len(t.cells)) << handleShift)
}

// Resolve returns the *Cell a cell-tagged Value refers to, or nil if
// v is not a cell or its handle has been freed.
func (t *Table) Resolve(v value.Value) *Cell {
	if !v.IsCell() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := v.AsCell() >> handleShift
	if idx == 0 || idx > uintptr(len(t.cells)) {
		return nil
	}
	return t.cells[idx-1]
}

// Release frees a handle, called once the owning collection has
// determined the cell is unreachable. The slot is recycled by future
// Intern calls.
func (t *Table) Release(v value.Value) {
	if !v.IsCell() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := v.AsCell() >> handleShift
	if idx == 0 || idx > uintptr(len(t.cells)) {
		return
	}
	t.cells[idx-1] = nil
	t.free = append(t.free, uint32(idx-1))
}

// Rekey replaces the cell stored at handle v's slot, used when a
// forwarding pointer is installed and the table should resolve future
// lookups straight to the new location.
func (t *Table) Rekey(v value.Value, newCell *Cell) {
	if !v.IsCell() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := v.AsCell() >> handleShift
	if idx == 0 || idx > uintptr(len(t.cells)) {
		return
	}
	t.cells[idx-1] = newCell
}

// ChildValues enumerates every Value held directly by c that might
// itself be a cell reference: its variant's array elements and its
// attribute map's values. Prototype is walked separately by callers
// that need *Cell identity rather than a boxed Value.
func (c *Cell) ChildValues() []value.Value {
	var out []value.Value
	switch c.Value.Kind {
	case KindArray:
		out = append(out, c.Value.Array...)
	}
	for _, v := range c.Attributes() {
		out = append(out, v)
	}
	return out
}
