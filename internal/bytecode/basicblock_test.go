package bytecode

import (
	"reflect"
	"testing"
)

func TestComputeSuccessorsFallsThroughOnStraightLineCode(t *testing.T) {
	b := &BasicBlock{Index: 0, Instructions: []Instruction{
		{Op: OpLoadInt, R0: 0, ImmInt: 1},
	}}
	b.ComputeSuccessors(3)
	if got := b.Successors; !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("successors = %v, want [1]", got)
	}
}

func TestComputeSuccessorsEmptyBlockFallsThrough(t *testing.T) {
	b := &BasicBlock{Index: 1, Instructions: nil}
	b.ComputeSuccessors(3)
	if got := b.Successors; !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("successors = %v, want [2]", got)
	}
}

func TestComputeSuccessorsGotoHasSingleTarget(t *testing.T) {
	b := &BasicBlock{Index: 0, Instructions: []Instruction{
		{Op: OpGoto, Block0: 2},
	}}
	b.ComputeSuccessors(5)
	if got := b.Successors; !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("successors = %v, want [2]", got)
	}
}

func TestComputeSuccessorsConditionalGotoHasBothTargets(t *testing.T) {
	b := &BasicBlock{Index: 0, Instructions: []Instruction{
		{Op: OpConditionalGoto, Block0: 1, Block1: 2},
	}}
	b.ComputeSuccessors(5)
	if got := b.Successors; !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("successors = %v, want [1 2]", got)
	}
}

func TestComputeSuccessorsGotoIfFalseAddsFallthrough(t *testing.T) {
	b := &BasicBlock{Index: 0, Instructions: []Instruction{
		{Op: OpGotoIfFalse, R0: 0, Block0: 2},
	}}
	b.ComputeSuccessors(5)
	if got := b.Successors; !reflect.DeepEqual(got, []int{2, 1}) {
		t.Fatalf("successors = %v, want [2 1] (target then fallthrough)", got)
	}
}

func TestComputeSuccessorsReturnHasNoSuccessors(t *testing.T) {
	b := &BasicBlock{Index: 0, Instructions: []Instruction{
		{Op: OpReturn, HasR0: false},
	}}
	b.ComputeSuccessors(5)
	if len(b.Successors) != 0 {
		t.Fatalf("expected no successors after Return, got %v", b.Successors)
	}
}

func TestComputeSuccessorsLastBlockHasNoFallthrough(t *testing.T) {
	b := &BasicBlock{Index: 2, Instructions: []Instruction{
		{Op: OpLoadInt, R0: 0, ImmInt: 1},
	}}
	b.ComputeSuccessors(3)
	if len(b.Successors) != 0 {
		t.Fatalf("expected no successors past the last block, got %v", b.Successors)
	}
}
