// Package regalloc implements the linear-scan register allocator from
// spec.md §4.7: backward liveness dataflow over a basic-block CFG,
// live intervals sorted by start position, and the
// unhandled/active/inactive/handled four-list scan that assigns real
// registers (or fails, per spec.md §9's explicit allowance, rather
// than implementing interval splitting or blocked-register spilling).
// Grounded on
// original_source/jlight-vm/regalloc.rs/lib/src/linear_scan.rs
// (LiveInterval, update_state, try_allocate_reg, free_until_pos,
// allocate_blocked_reg).
package regalloc

import "github.com/jazz-lang/jlight/internal/bytecode"

// RegClass identifies a register class. This instruction set has
// exactly one, matching spec.md §4.7's "virtual registers of a single
// class (integer)".
type RegClass uint8

// IntegerClass is the only register class this runtime allocates.
const IntegerClass RegClass = 0

// Universe lists the real registers allocable for a class, in
// ascending tie-break order (spec.md §4.7's determinism rule: "among
// equal free-until positions, the smaller register index wins").
type Universe struct {
	Allocable []bytecode.Reg
}

// FixedInterval pre-colors a virtual register to a specific real
// register over [Start, End] — e.g. an incoming argument register
// bound by the calling convention before allocation runs.
type FixedInterval struct {
	Virtual    bytecode.Reg
	Real       bytecode.Reg
	Start, End int
}

// interval is one live range, either pre-colored (fixed) or awaiting
// a real register (virtual). Per the simplification recorded in
// DESIGN.md, a virtual register's entire live range — however many
// range fragments spec.md §4.7 describes it as having — collapses
// into a single contiguous [start, end], so a register is assigned
// exactly once for its whole lifetime; this is also precisely what
// boundary scenario 7 (the diamond-CFG join) requires.
type interval struct {
	vreg       bytecode.Reg
	fixed      bool
	real       bytecode.Reg
	start, end int
	assigned   bool
}

func (iv *interval) covers(p int) bool {
	return iv.start <= p && p <= iv.end
}

// intersects returns the first point at which iv and other are both
// live, if any.
func (iv *interval) intersects(other *interval) (int, bool) {
	lo := iv.start
	if other.start > lo {
		lo = other.start
	}
	hi := iv.end
	if other.end < hi {
		hi = other.end
	}
	if lo <= hi {
		return lo, true
	}
	return 0, false
}
