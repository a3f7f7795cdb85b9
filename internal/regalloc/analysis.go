package regalloc

import "github.com/jazz-lang/jlight/internal/bytecode"

// blockStartPoints assigns each block the global instruction-point
// index its first instruction occupies, assuming code is laid out in
// execution order (block i immediately precedes block i+1 in the
// slice) — the same assumption BasicBlock.ComputeSuccessors' implicit
// fallthrough edge relies on.
func blockStartPoints(code []bytecode.BasicBlock) []int {
	points := make([]int, len(code))
	total := 0
	for i, b := range code {
		points[i] = total
		total += len(b.Instructions)
	}
	return points
}

type regSet map[bytecode.Reg]bool

func (s regSet) clone() regSet {
	out := make(regSet, len(s))
	for r := range s {
		out[r] = true
	}
	return out
}

func (s regSet) equal(other regSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other[r] {
			return false
		}
	}
	return true
}

// computeLiveness runs the standard backward dataflow fixed-point
// iteration to a fixed point, producing per-block live-in and
// live-out register sets, per spec.md §4.7's "standard backward
// dataflow computes per-block live-in and live-out."
func computeLiveness(code []bytecode.BasicBlock) (liveIn, liveOut []regSet) {
	n := len(code)
	use := make([]regSet, n)
	def := make([]regSet, n)
	liveIn = make([]regSet, n)
	liveOut = make([]regSet, n)

	for i, b := range code {
		u, d := regSet{}, regSet{}
		for j := len(b.Instructions) - 1; j >= 0; j-- {
			ru := b.Instructions[j].GetRegUsage()
			for _, r := range ru.Def {
				delete(u, r)
				d[r] = true
			}
			for _, r := range ru.Use {
				u[r] = true
			}
			for _, r := range ru.Mod {
				u[r] = true
				d[r] = true
			}
		}
		use[i], def[i] = u, d
		liveIn[i], liveOut[i] = regSet{}, regSet{}
	}

	for changed := true; changed; {
		changed = false
		for i := n - 1; i >= 0; i-- {
			newOut := regSet{}
			for _, succ := range code[i].Successors {
				for r := range liveIn[succ] {
					newOut[r] = true
				}
			}
			newIn := use[i].clone()
			for r := range newOut {
				if !def[i][r] {
					newIn[r] = true
				}
			}
			if !newIn.equal(liveIn[i]) || !newOut.equal(liveOut[i]) {
				changed = true
			}
			liveIn[i], liveOut[i] = newIn, newOut
		}
	}
	return liveIn, liveOut
}

// buildIntervals derives one interval per virtual register appearing
// in code, from the earliest point it is live or defined to the
// latest point it is live or used.
func buildIntervals(code []bytecode.BasicBlock) map[bytecode.Reg]*interval {
	starts := blockStartPoints(code)
	liveIn, liveOut := computeLiveness(code)

	ranges := make(map[bytecode.Reg]*interval)
	touch := func(r bytecode.Reg, p int) {
		iv, ok := ranges[r]
		if !ok {
			ranges[r] = &interval{vreg: r, start: p, end: p}
			return
		}
		if p < iv.start {
			iv.start = p
		}
		if p > iv.end {
			iv.end = p
		}
	}

	for i, b := range code {
		base := starts[i]
		for r := range liveIn[i] {
			touch(r, base)
		}
		end := base + len(b.Instructions)
		for r := range liveOut[i] {
			touch(r, end)
		}
		for j, inst := range b.Instructions {
			p := base + j
			ru := inst.GetRegUsage()
			for _, r := range ru.Def {
				touch(r, p)
			}
			for _, r := range ru.Use {
				touch(r, p)
			}
			for _, r := range ru.Mod {
				touch(r, p)
			}
		}
	}
	return ranges
}
