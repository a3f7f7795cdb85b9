// Package permanent implements the permanent space described in
// spec.md §3's lifecycle notes: prototypes and interned strings are
// allocated here once and never moved or freed. It is process-wide,
// initialized before any scheduler worker starts, and torn down last
// during runtime shutdown.
//
// Cell identity for permanent cells is registered in the same
// cell.Table every process's heap resolves through (see
// cell.Table's doc comment and DESIGN.md): unlike young/old
// generation cells, which are only ever addressed from within the
// owning process, a permanent cell's Value is meant to be globally
// valid, so the table that maps a Value's handle back to a *cell.Cell
// must itself be shared rather than per-process.
package permanent

import (
	"sync"

	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/heap/space"
	"github.com/jazz-lang/jlight/internal/value"
)

const approxCellSize = 64

// Space owns the permanent cells and the shared cell table every
// process's Value resolves through.
type Space struct {
	mu    sync.Mutex
	table *cell.Table
	bump  *space.Space

	// SizeLimit is the configured byte budget (spec.md §6's
	// permanent-space size); exceeding it is reported via NeedsGrow so
	// the caller can log or refuse further permanent allocation rather
	// than growing unbounded, since permanent cells are never reclaimed.
	SizeLimit int64
}

// New constructs a permanent space backed by table, budgeted at
// sizeLimit bytes.
func New(table *cell.Table, sizeLimit int64) *Space {
	return &Space{
		table:     table,
		bump:      space.NewSpace(),
		SizeLimit: sizeLimit,
	}
}

// Table returns the shared cell table every process resolves Values
// through.
func (s *Space) Table() *cell.Table { return s.table }

// Allocate registers a permanent cell and interns it into the shared
// table, returning both the cell and the Value handle referring to
// it.
func (s *Space) Allocate(v cell.Variant, proto *cell.Cell) (*cell.Cell, value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cell.WithPrototype(v, proto)
	c.SetPermanent()
	s.bump.Alloc(approxCellSize)
	return c, s.table.Intern(c)
}

// NeedsGrow reports whether the permanent space has exceeded its
// configured size budget. Since permanent cells are never reclaimed,
// this is advisory only: the caller decides whether to log a warning
// or refuse further growth.
func (s *Space) NeedsGrow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.bump.BytesUsed()) > s.SizeLimit
}

// BytesUsed reports the permanent space's accounted byte usage.
func (s *Space) BytesUsed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.bump.BytesUsed())
}
