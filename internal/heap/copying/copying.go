// Package copying implements the two-generation semi-space copying
// collector described in spec.md §4.3: young and old spaces, soft-mark
// escape for remote-generation refs, and promotion by age at
// cell.MinOld.
//
// Unlike the original systems-language implementation, cells
// themselves are ordinary Go-heap-managed *cell.Cell values — Go
// offers no portable way to placement-allocate a pointer-containing
// struct into a raw byte arena, or to round-trip a live pointer
// through a plain integer, without defeating the host GC. The
// young/old accounting in space.Space meters byte budgets and drives
// the needs-gc/promotion policy exactly as specified; cell identity is
// carried by a cell.Table handle (see cell.Table's doc comment) and
// "copying" a surviving cell means re-registering it in the next
// generation's live-cell slice rather than moving bytes. See
// DESIGN.md for the full rationale.
package copying

import (
	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/heap/space"
	"github.com/jazz-lang/jlight/internal/value"
)

// NeedsGC mirrors the {None, Young, Old} enum gating collector
// triggers.
type NeedsGC uint8

const (
	NeedsGCNone NeedsGC = iota
	NeedsGCYoung
	NeedsGCOld
)

const approxCellSize = 64 // accounting unit charged per cell in Space

// RootScanner is implemented by the owning process: it enumerates
// every root value (register file, operand stack, upvalues, module
// globals, interned-string roots) that might be a cell reference.
type RootScanner interface {
	ScanRoots(visit func(value.Value))
}

// Heap owns one process's young and old generations and refers to the
// runtime's shared cell table, used to resolve Value handles to live
// *cell.Cell pointers.
type Heap struct {
	Table *cell.Table

	young *space.Space
	old   *space.Space

	youngCells []*cell.Cell
	oldCells   []*cell.Cell

	needsGC NeedsGC

	// YoungThreshold is the allocated-byte threshold past which the
	// next young collection escalates to an old collection.
	YoungThreshold int64
}

// New constructs an empty per-process heap bound to table.
func New(table *cell.Table, youngThreshold int64) *Heap {
	return &Heap{
		Table:          table,
		young:          space.NewSpace(),
		old:            space.NewSpace(),
		YoungThreshold: youngThreshold,
	}
}

// AllocateYoung bump-allocates c into the young generation.
func (h *Heap) AllocateYoung(c *cell.Cell) {
	h.young.Alloc(approxCellSize)
	h.youngCells = append(h.youngCells, c)
	if h.young.NeedsGC() {
		h.needsGC = NeedsGCYoung
	}
}

// AllocateOld bump-allocates c directly into the old generation (used
// for cells that are promoted at construction time, e.g. explicitly
// requested permanent-adjacent allocation).
func (h *Heap) AllocateOld(c *cell.Cell) {
	h.old.Alloc(approxCellSize)
	c.Generation = cell.MinOld
	h.oldCells = append(h.oldCells, c)
	if h.old.NeedsGC() {
		h.needsGC = NeedsGCOld
	}
}

// NeedsGC reports the current trigger state.
func (h *Heap) NeedsGC() NeedsGC { return h.needsGC }

// Collect runs one collection cycle on generation g, per the
// algorithm in spec.md §4.3.
func (h *Heap) Collect(scanner RootScanner, g NeedsGC) {
	if g == NeedsGCYoung {
		h.collectYoung(scanner)
		if h.needsGC == NeedsGCOld {
			h.collectOld(scanner)
		}
		return
	}
	h.collectOld(scanner)
}

// membership is a fast lookup of "is this cell currently tracked in
// this generation's live-cell slice".
type membership map[*cell.Cell]bool

func toMembership(cells []*cell.Cell) membership {
	m := make(membership, len(cells))
	for _, c := range cells {
		m[c] = true
	}
	return m
}

// collectYoung implements a young-generation cycle: live cells
// reachable from roots are retained (re-registered into the next
// young-cell slice, the Go equivalent of "copy to T"); survivors whose
// generation reaches cell.MinOld are promoted to old instead.
// Permanent cells are filtered out before grey processing and never
// copied, per spec.md §4.3.
func (h *Heap) collectYoung(scanner RootScanner) {
	h.runCycle(scanner, toMembership(h.youngCells), true)
}

// collectOld implements the equivalent cycle over the old generation.
func (h *Heap) collectOld(scanner RootScanner) {
	h.runCycle(scanner, toMembership(h.oldCells), false)
}

func (h *Heap) runCycle(scanner RootScanner, inGen membership, young bool) {
	visited := make(map[*cell.Cell]bool)
	var grey []*cell.Cell

	markChild := func(c *cell.Cell) {
		if c == nil || c.IsPermanent() {
			return
		}
		if !inGen[c] {
			// Reference into a different generation (e.g. a young
			// cycle seeing a pointer into old space): soft-mark and
			// push children without "copying" it, per spec.md §4.3
			// step 3's first bullet.
			if !c.IsSoftMarked() {
				c.SoftMarkSet()
				grey = append(grey, c)
			}
			return
		}
		if !visited[c] {
			visited[c] = true
			if young {
				c.Generation++
			}
			grey = append(grey, c)
		}
	}

	visit := func(v value.Value) {
		markChild(h.Table.Resolve(v))
	}

	scanner.ScanRoots(visit)
	for i := 0; i < len(grey); i++ {
		c := grey[i]
		markChild(c.Prototype)
		for _, child := range c.ChildValues() {
			visit(child)
		}
	}

	var survivors, promoted []*cell.Cell
	var source []*cell.Cell
	if young {
		source = h.youngCells
	} else {
		source = h.oldCells
	}
	for _, c := range source {
		if c.IsMarked() || c.IsSoftMarked() || visited[c] {
			if young && c.Generation >= cell.MinOld {
				promoted = append(promoted, c)
			} else {
				survivors = append(survivors, c)
			}
		} else {
			h.finalizeCell(c)
		}
		c.Unmark()
		c.SoftMarkClear()
	}

	if young {
		h.young.Reset()
		for range survivors {
			h.young.Alloc(approxCellSize)
		}
		h.youngCells = survivors
		for _, c := range promoted {
			h.old.Alloc(approxCellSize)
		}
		h.oldCells = append(h.oldCells, promoted...)
		h.needsGC = NeedsGCNone
		if int64(h.young.BytesUsed()) > h.YoungThreshold {
			h.needsGC = NeedsGCOld
		}
	} else {
		h.old.Reset()
		for range survivors {
			h.old.Alloc(approxCellSize)
		}
		h.oldCells = survivors
		h.needsGC = NeedsGCNone
	}
}

// finalizeCell runs the destructor for cells with finalizable
// payloads (files, threads, byte arrays), per spec.md §3's lifecycle
// note.
func (h *Heap) finalizeCell(c *cell.Cell) {
	if c.Value.Kind == cell.KindFile && c.Value.File != nil {
		_ = c.Value.File.Close()
	}
}

// YoungCount and OldCount report live cell counts, used by tests
// asserting round-trip survival.
func (h *Heap) YoungCount() int { return len(h.youngCells) }
func (h *Heap) OldCount() int   { return len(h.oldCells) }
