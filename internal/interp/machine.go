package interp

import (
	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/value"
	"github.com/jazz-lang/jlight/internal/vmerr"
)

// CatchEntry is a single entry of a process's catch-entry stack:
// {register, jump_to}, pushed by CatchBlock.
type CatchEntry struct {
	Register bytecode.Reg
	Block    bytecode.BlockIdx
}

// ProcessHandle is the slice of Process behavior the interpreter
// needs. Keeping it as an interface (rather than importing the
// process package directly) avoids a dependency cycle: process owns a
// Context chain and therefore imports interp, so interp cannot import
// process back.
type ProcessHandle interface {
	ContextPtr() *Context
	PushContext(ctx *Context)
	// PopContext pops to the parent context and reports whether the
	// process has run out of contexts (the top context had no
	// parent), in which case the process should terminate.
	PopContext() bool

	PushCatch(entry CatchEntry)
	PopCatch() (CatchEntry, bool)

	Table() *cell.Table
	NilPrototype() *cell.Cell

	// IsYoung reports whether v resolves to a cell in the young
	// generation, used by the interpreter's Store path to drive the
	// intra-generational write barrier.
	IsYoung(v value.Value) bool

	// Safepoint gives the scheduler/GC a chance to run; called at
	// every explicit Safepoint instruction and implicitly on return.
	Safepoint()
}

// Machine drives the dispatch loop for one process at a time. It
// holds no per-process state itself; all mutable state lives on the
// ProcessHandle and its Context chain, so a single Machine can be
// reused across processes (as the scheduler does, one Machine per
// worker).
type Machine struct{}

// NewMachine constructs a dispatch-loop driver.
func NewMachine() *Machine { return &Machine{} }

// Run executes proc's current context until either it returns all the
// way out (done=true, the process should terminate) or it exhausts
// its reduction budget at a safepoint (done=false, nil error — the
// scheduler should re-enqueue the process and call Run again later).
// reductions is the per-slice budget from config.ReductionsPerSlice;
// every Safepoint instruction and every Return that pops a context
// counts against it, mirroring safepoint_and_reduce! in machine.rs.
// A non-nil error means an uncaught throw reached the bottom of the
// context chain (vmerr.Panic) or a native operation failed outright.
func (m *Machine) Run(proc ProcessHandle, reductions int) (done bool, err error) {
	ctx := proc.ContextPtr()
	remaining := reductions

	for {
		if ctx.InstrIndex >= len(instrsOf(ctx)) {
			ctx.BlockIndex++
			ctx.InstrIndex = 0
		}
		block := instrsOf(ctx)
		inst := block[ctx.InstrIndex]
		ctx.InstrIndex++

		terminated, safepoint, stepErr := m.step(proc, ctx, inst)
		if stepErr != nil {
			thrown, ok := stepErr.(vmerr.Thrown)
			if !ok {
				return false, stepErr
			}
			if !m.throw(proc, thrown) {
				return false, &vmerr.Panic{Value: thrown}
			}
			ctx = proc.ContextPtr()
			continue
		}
		if terminated {
			return true, nil
		}
		if safepoint {
			proc.Safepoint()
			if remaining > 0 {
				remaining--
			} else {
				return false, nil
			}
		}
		ctx = proc.ContextPtr()
	}
}

// throw implements the unwinding half of spec.md §4.5's throw/catch
// state machine, mirroring Machine::throw in machine.rs: pop
// catch-entries off the process; if one is found, jump its owning
// context there and deliver the thrown value into its register. If
// the process runs out of contexts first, the throw is uncaught and
// the caller surfaces it as a Panic.
func (m *Machine) throw(proc ProcessHandle, thrown vmerr.Thrown) bool {
	table := proc.Table()
	v := table.Intern(cell.New(cell.Variant{Kind: cell.KindString, String: thrown.Error()}))

	for {
		if entry, ok := proc.PopCatch(); ok {
			ctx := proc.ContextPtr()
			ctx.BlockIndex = int(entry.Block)
			ctx.InstrIndex = 0
			ctx.SetRegister(entry.Register, v)
			return true
		}
		if proc.PopContext() {
			return false
		}
	}
}

func instrsOf(ctx *Context) []bytecode.Instruction {
	return ctx.CurrentBlock().Instructions
}

// step executes a single instruction. It returns terminated=true if
// the process should stop running entirely, and safepoint=true at
// every point machine.rs calls safepoint_and_reduce! (an explicit
// Safepoint instruction, or a Return that pops to a parent context),
// leaving the GC-or-yield decision to Run's reduction counter.
func (m *Machine) step(proc ProcessHandle, ctx *Context, inst bytecode.Instruction) (terminated, safepoint bool, err error) {
	table := proc.Table()
	nilProto := proc.NilPrototype()
	nilValue := table.Intern(nilProto)

	switch inst.Op {
	case bytecode.OpLoadInt:
		ctx.SetRegister(inst.R0, value.FromInt32(int32(inst.ImmInt)))
	case bytecode.OpLoadNum:
		ctx.SetRegister(inst.R0, value.FromBits(inst.ImmDouble))
	case bytecode.OpLoadBool:
		ctx.SetRegister(inst.R0, value.FromBool(inst.ImmBool))
	case bytecode.OpLoadNull:
		ctx.SetRegister(inst.R0, value.Null)
	case bytecode.OpLoadConst:
		ctx.SetRegister(inst.R0, ctx.Module.Globals[inst.ImmInt])
	case bytecode.OpLoadGlobal:
		ctx.SetRegister(inst.R0, ctx.Module.Globals[inst.R1])
	case bytecode.OpLoadStatic:
		// Static variables are a module-load-time concern external to
		// this core (see spec.md §1's excluded built-in registration
		// tables); treated as an alias for a global slot here.
		ctx.SetRegister(inst.R0, ctx.Module.Globals[inst.R1])
	case bytecode.OpLoadThis:
		ctx.SetRegister(inst.R0, ctx.This)
	case bytecode.OpMove:
		ctx.Move(inst.R0, inst.R1)

	case bytecode.OpPush:
		ctx.PushStack(ctx.GetRegister(inst.R0))
	case bytecode.OpPop:
		ctx.SetRegister(inst.R0, ctx.PopStack(nilValue))
	case bytecode.OpLoadStack:
		ctx.SetRegister(inst.R0, ctx.Stack[inst.ImmInt])
	case bytecode.OpStoreStack:
		ctx.Stack[inst.ImmInt] = ctx.GetRegister(inst.R0)

	case bytecode.OpLoadU:
		ctx.SetRegister(inst.R0, ctx.Upvalues[inst.R1])
	case bytecode.OpStoreU:
		ctx.Upvalues[inst.R1] = ctx.GetRegister(inst.R0)
	case bytecode.OpMakeEnv:
		fnVal := ctx.GetRegister(inst.R0)
		fnCell := table.Resolve(fnVal)
		if fnCell == nil || fnCell.Value.Kind != cell.KindFunction {
			return false, false, &vmerr.TypeMismatch{Operation: "MakeEnv", Got: "non-function", Want: "function"}
		}
		n := int(inst.Argc)
		values := make([]value.Value, n)
		for i := 0; i < n; i++ {
			values[n-1-i] = ctx.PopStack(nilValue)
		}
		fnCell.Value.Function.Upvalues = values

	case bytecode.OpGoto:
		ctx.BlockIndex = int(inst.Block0)
		ctx.InstrIndex = 0
	case bytecode.OpGotoIfFalse:
		if isFalseCellOrValue(table, nilProto, ctx.GetRegister(inst.R0)) {
			ctx.BlockIndex = int(inst.Block0)
			ctx.InstrIndex = 0
		}
	case bytecode.OpGotoIfTrue:
		if !isFalseCellOrValue(table, nilProto, ctx.GetRegister(inst.R0)) {
			ctx.BlockIndex = int(inst.Block0)
			ctx.InstrIndex = 0
		}
	case bytecode.OpConditionalGoto:
		falsy := isFalseCellOrValue(table, nilProto, ctx.GetRegister(inst.R0))
		if falsy {
			ctx.BlockIndex = int(inst.Block1)
			ctx.InstrIndex = 0
		} else {
			ctx.BlockIndex = int(inst.Block0)
			ctx.InstrIndex = 0
		}

	case bytecode.OpSafepoint:
		return false, true, nil

	case bytecode.OpReturn:
		if ctx.TerminateUponReturn {
			return true, false, nil
		}
		result := nilValue
		if inst.HasR0 {
			result = ctx.GetRegister(inst.R0)
		}
		parent := ctx.Parent
		if parent != nil && ctx.HasReturnRegister {
			parent.SetRegister(ctx.ReturnRegister, result)
		}
		if proc.PopContext() {
			return true, false, nil
		}
		return false, true, nil

	case bytecode.OpCatchBlock:
		proc.PushCatch(CatchEntry{Register: inst.R0, Block: inst.Block0})

	case bytecode.OpCall:
		if err := m.doCall(proc, ctx, inst, callModeNormal); err != nil {
			return false, false, err
		}
	case bytecode.OpVirtCall:
		if err := m.doCall(proc, ctx, inst, callModeVirt); err != nil {
			return false, false, err
		}
	case bytecode.OpTailCall:
		if err := m.doCall(proc, ctx, inst, callModeTail); err != nil {
			return false, false, err
		}
	case bytecode.OpConstruct:
		if err := m.doConstruct(proc, ctx, inst); err != nil {
			return false, false, err
		}

	case bytecode.OpLoad:
		if err := m.doLoad(proc, ctx, inst); err != nil {
			return false, false, err
		}
	case bytecode.OpStore:
		if err := m.doStore(proc, ctx, inst); err != nil {
			return false, false, err
		}

	case bytecode.OpNot:
		v := ctx.GetRegister(inst.R1)
		ctx.SetRegister(inst.R0, value.FromBool(isFalseCellOrValue(table, nilProto, v)))

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpShl, bytecode.OpShr, bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor,
		bytecode.OpGreater, bytecode.OpLess, bytecode.OpGreaterEqual, bytecode.OpLessEqual,
		bytecode.OpEqual, bytecode.OpNotEqual, bytecode.OpBoolAnd, bytecode.OpBoolOr:
		m.doArithOrCompare(table, ctx, inst)

	default:
		return false, false, &vmerr.TypeMismatch{Operation: "dispatch", Got: "unknown opcode", Want: "known opcode"}
	}

	return false, false, nil
}

func isFalseValue(v value.Value) bool {
	if v.IsNullOrUndefined() {
		return true
	}
	if v.IsBool() {
		return !v.AsBool()
	}
	if v.IsNumber() {
		return v.ToNumber() == 0
	}
	return false
}

func isFalseCellOrValue(table *cell.Table, nilProto *cell.Cell, v value.Value) bool {
	if v.IsCell() {
		c := table.Resolve(v)
		return c.IsFalse(nilProto)
	}
	return isFalseValue(v)
}
