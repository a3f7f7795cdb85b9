package regalloc

import (
	"golang.org/x/exp/slices"

	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/vmerr"
)

// Result maps every virtual register the allocator saw to the real
// register it was assigned, ready to drive
// bytecode.Instruction.MapRegsDU.
type Result struct {
	assign map[bytecode.Reg]bytecode.Reg
}

// Assign returns the real register chosen for virtual register r, or
// r unchanged if the allocator never saw it (e.g. it was already a
// real register, such as a fixed argument slot outside the virtual
// range).
func (res *Result) Assign(r bytecode.Reg) bytecode.Reg {
	if real, ok := res.assign[r]; ok {
		return real
	}
	return r
}

// Rewrite applies Result to every instruction in code, returning a
// new CFG with only real registers, per spec.md §4.7's "Output: a
// per-instruction rewrite replacing virtual registers with real
// registers."
func (res *Result) Rewrite(code []bytecode.BasicBlock) []bytecode.BasicBlock {
	out := make([]bytecode.BasicBlock, len(code))
	for i, b := range code {
		nb := b
		nb.Instructions = make([]bytecode.Instruction, len(b.Instructions))
		for j, inst := range b.Instructions {
			nb.Instructions[j] = inst.MapRegsDU(res.Assign)
		}
		out[i] = nb
	}
	return out
}

// Run allocates real registers for code, per spec.md §4.7. fixed
// pre-colors specific virtual registers — e.g. calling-convention
// argument slots bound before allocation runs; pass nil if none. It
// fails with vmerr.RegallocFailure if some interval can be neither
// assigned directly nor split nor spilled (spec.md §9 explicitly
// permits stopping there instead of implementing splitting/spilling).
func Run(code []bytecode.BasicBlock, universe Universe, fixed []FixedInterval) (*Result, error) {
	ranges := buildIntervals(code)

	intervals := make([]*interval, 0, len(ranges)+len(fixed))
	for _, iv := range ranges {
		intervals = append(intervals, iv)
	}
	for _, f := range fixed {
		intervals = append(intervals, &interval{
			vreg: f.Virtual, fixed: true, real: f.Real,
			start: f.Start, end: f.End, assigned: true,
		})
	}

	// Sort by start, tie-broken by smaller virtual register id, per
	// spec.md §4.7's determinism rule.
	slices.SortFunc(intervals, func(a, b *interval) int {
		if a.start != b.start {
			return a.start - b.start
		}
		return int(a.vreg) - int(b.vreg)
	})

	s := newState(intervals)
	for {
		id, ok := s.nextUnhandled()
		if !ok {
			break
		}
		s.updateState(id)
		if !s.tryAllocateReg(id, universe) {
			return nil, vmerr.NewRegallocFailure(
				"no free register for virtual register (and splitting/spilling are not implemented)")
		}
		if s.intervals[id].assigned {
			s.active = append(s.active, id)
		}
	}

	assign := make(map[bytecode.Reg]bytecode.Reg, len(ranges))
	for _, iv := range s.intervals {
		if !iv.fixed {
			assign[iv.vreg] = iv.real
		}
	}
	return &Result{assign: assign}, nil
}
