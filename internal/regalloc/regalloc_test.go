package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jazz-lang/jlight/internal/bytecode"
)

func universe(n int) Universe {
	regs := make([]bytecode.Reg, n)
	for i := range regs {
		regs[i] = bytecode.Reg(i)
	}
	return Universe{Allocable: regs}
}

// Boundary scenario 7: entry -> {then, else} -> join, with `then` and
// `else` each defining v1 and `join` using it. The allocator must
// assign v1 a single real register consistent across both
// predecessors.
func TestDiamondCFGConsistentRegisterAtJoin(t *testing.T) {
	const v1, vCond, vTmp bytecode.Reg = 1, 2, 3

	code := []bytecode.BasicBlock{
		{Index: 0, Instructions: []bytecode.Instruction{
			{Op: bytecode.OpLoadBool, R0: vCond, ImmBool: true},
			{Op: bytecode.OpConditionalGoto, R0: vCond, Block0: 1, Block1: 2},
		}},
		{Index: 1, Instructions: []bytecode.Instruction{
			{Op: bytecode.OpLoadInt, R0: v1, ImmInt: 1},
			{Op: bytecode.OpGoto, Block0: 3},
		}},
		{Index: 2, Instructions: []bytecode.Instruction{
			{Op: bytecode.OpLoadInt, R0: v1, ImmInt: 2},
			{Op: bytecode.OpGoto, Block0: 3},
		}},
		{Index: 3, Instructions: []bytecode.Instruction{
			{Op: bytecode.OpNot, R0: vTmp, R1: v1},
			{Op: bytecode.OpReturn, R0: vTmp, HasR0: true},
		}},
	}
	for i := range code {
		code[i].ComputeSuccessors(len(code))
	}

	result, err := Run(code, universe(4), nil)
	require.NoError(t, err, "unexpected allocation failure")

	r1 := result.Assign(v1)
	// v1 must resolve to the same real register from both predecessors'
	// perspective: since this allocator assigns one real register per
	// virtual register for its entire extent, a single lookup already
	// proves the invariant, but assert it's actually been assigned (not
	// merely left unchanged) to catch a no-op Result by accident.
	require.NotEqual(t, v1, r1, "expected v1 to be reassigned to a real register")

	rewritten := result.Rewrite(code)
	gotThen := rewritten[1].Instructions[0].R0
	gotElse := rewritten[2].Instructions[0].R0
	gotJoin := rewritten[3].Instructions[0].R1
	require.Equal(t, gotThen, gotElse, "predecessors disagree on v1's real register")
	require.Equal(t, gotElse, gotJoin, "join disagrees with predecessors on v1's real register")
}

func TestMoveChainAllocatesWithinTwoRegisters(t *testing.T) {
	const a, b bytecode.Reg = 10, 20

	code := []bytecode.BasicBlock{{Index: 0, Instructions: []bytecode.Instruction{
		{Op: bytecode.OpLoadInt, R0: a, ImmInt: 1},
		{Op: bytecode.OpMove, R0: b, R1: a},
		{Op: bytecode.OpReturn, R0: b, HasR0: true},
	}}}
	code[0].ComputeSuccessors(1)

	result, err := Run(code, universe(2), nil)
	require.NoError(t, err, "unexpected allocation failure")
	if result.Assign(a) == result.Assign(b) {
		// a is dead after the Move, so the allocator is free to reuse its
		// register for b; this just documents that expectation rather
		// than asserting a specific outcome.
		t.Log("allocator reused a's register for b after its last use, which is valid")
	}
}

func TestRunFailsWhenUniverseTooSmall(t *testing.T) {
	const a, b, c bytecode.Reg = 1, 2, 3
	code := []bytecode.BasicBlock{{Index: 0, Instructions: []bytecode.Instruction{
		{Op: bytecode.OpLoadInt, R0: a, ImmInt: 1},
		{Op: bytecode.OpLoadInt, R0: b, ImmInt: 2},
		{Op: bytecode.OpLoadInt, R0: c, ImmInt: 3},
		{Op: bytecode.OpAdd, R0: a, R1: a, R2: b},
		{Op: bytecode.OpAdd, R0: a, R1: a, R2: c},
		{Op: bytecode.OpReturn, R0: a, HasR0: true},
	}}}
	code[0].ComputeSuccessors(1)

	_, err := Run(code, universe(1), nil)
	require.Error(t, err, "expected a RegallocFailure when three simultaneously live registers compete for one real register")
}
