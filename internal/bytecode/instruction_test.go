package bytecode

import (
	"reflect"
	"testing"
)

func TestGetRegUsageArithmeticDefinesDstUsesOperands(t *testing.T) {
	i := Instruction{Op: OpAdd, R0: 2, R1: 0, R2: 1}
	got := i.GetRegUsage()
	if !reflect.DeepEqual(got.Def, []Reg{2}) {
		t.Fatalf("Def = %v, want [2]", got.Def)
	}
	if !reflect.DeepEqual(got.Use, []Reg{0, 1}) {
		t.Fatalf("Use = %v, want [0 1]", got.Use)
	}
}

func TestGetRegUsageReturnWithoutRegisterUsesNothing(t *testing.T) {
	i := Instruction{Op: OpReturn, HasR0: false}
	got := i.GetRegUsage()
	if len(got.Def) != 0 || len(got.Use) != 0 {
		t.Fatalf("expected no def/use for a bare Return, got %+v", got)
	}
}

func TestGetRegUsageReturnWithRegisterUsesIt(t *testing.T) {
	i := Instruction{Op: OpReturn, R0: 4, HasR0: true}
	got := i.GetRegUsage()
	if !reflect.DeepEqual(got.Use, []Reg{4}) {
		t.Fatalf("Use = %v, want [4]", got.Use)
	}
}

func TestGetTargetsStraightLineInstructionHasNoTargets(t *testing.T) {
	i := Instruction{Op: OpAdd, R0: 2, R1: 0, R2: 1}
	if got := i.GetTargets(); got != nil {
		t.Fatalf("expected nil targets, got %v", got)
	}
}

func TestMapRegsDURewritesOnlyMentionedRegisters(t *testing.T) {
	i := Instruction{Op: OpAdd, R0: 2, R1: 0, R2: 1}
	assign := map[Reg]Reg{0: 10, 1: 11, 2: 12}
	out := i.MapRegsDU(func(r Reg) Reg { return assign[r] })

	if out.R0 != 12 || out.R1 != 10 || out.R2 != 11 {
		t.Fatalf("got R0=%d R1=%d R2=%d, want R0=12 R1=10 R2=11", out.R0, out.R1, out.R2)
	}
	// R3 is not part of OpAdd's usage and must be left untouched.
	if out.R3 != i.R3 {
		t.Fatalf("expected R3 to be unchanged, got %d", out.R3)
	}
}

func TestMapRegsDULeavesUnusedOperandAlone(t *testing.T) {
	// OpLoadInt only defines R0; R1 happens to hold an unrelated raw
	// value and must survive MapRegsDU untouched.
	i := Instruction{Op: OpLoadInt, R0: 3, R1: 99, ImmInt: 7}
	out := i.MapRegsDU(func(r Reg) Reg { return r + 100 })
	if out.R0 != 103 {
		t.Fatalf("R0 = %d, want 103", out.R0)
	}
	if out.R1 != 99 {
		t.Fatalf("expected R1 to be untouched since OpLoadInt does not use it, got %d", out.R1)
	}
}
