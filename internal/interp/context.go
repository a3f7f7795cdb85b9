// Package interp implements the call frame (Context) and the
// register-based bytecode dispatch loop, grounded on
// original_source/jlight-vm/src/runtime/interpreter.rs and
// original_source/vm/src/interpreter/context.rs.
package interp

import (
	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/value"
)

// NumRegisters is the fixed register-file size per spec.md §3.
const NumRegisters = 48

// Context is a call frame: a fixed-size register file, a growable
// operand stack, an upvalue vector, a module reference, program
// counters, a return register in the parent, a this-value, a
// terminate-on-return flag, and a parent pointer forming the linked
// call stack a process owns.
type Context struct {
	Registers [NumRegisters]value.Value
	Stack     []value.Value
	Upvalues  []value.Value

	Module *bytecode.Module
	Code   []bytecode.BasicBlock

	BlockIndex int
	InstrIndex int

	// ReturnRegister is the register in Parent that receives this
	// context's return value; HasReturnRegister is false for the
	// top-level (MAIN) context, which has no parent to deliver into,
	// and for a constructor's init context, whose caller already holds
	// the constructed cell.
	ReturnRegister    bytecode.Reg
	HasReturnRegister bool

	This value.Value

	// TerminateUponReturn means a Return instruction ends the whole
	// process rather than popping to a parent context.
	TerminateUponReturn bool

	Parent *Context
}

// NewContext constructs a context ready to execute fn starting at
// block 0, instruction 0.
func NewContext(fn *bytecode.Function) *Context {
	return &Context{
		Module:   fn.Module,
		Code:     fn.Code,
		Upvalues: append([]value.Value(nil), fn.Upvalues...),
		This:     value.Undefined,
	}
}

// SetRegister writes v into register r.
func (c *Context) SetRegister(r bytecode.Reg, v value.Value) {
	c.Registers[r] = v
}

// GetRegister reads register r.
func (c *Context) GetRegister(r bytecode.Reg) value.Value {
	return c.Registers[r]
}

// Move copies the value in register from into register to, mirroring
// Context::move_ in the original.
func (c *Context) Move(to, from bytecode.Reg) {
	c.Registers[to] = c.Registers[from]
}

// PushStack pushes v onto the operand stack.
func (c *Context) PushStack(v value.Value) {
	c.Stack = append(c.Stack, v)
}

// PopStack pops the top of the operand stack, or returns fallback if
// empty (the original substitutes nil_prototype in this case).
func (c *Context) PopStack(fallback value.Value) value.Value {
	if len(c.Stack) == 0 {
		return fallback
	}
	v := c.Stack[len(c.Stack)-1]
	c.Stack = c.Stack[:len(c.Stack)-1]
	return v
}

// CurrentBlock returns the basic block the context is currently
// executing.
func (c *Context) CurrentBlock() bytecode.BasicBlock {
	return c.Code[c.BlockIndex]
}

// Trace calls visit on every Value this context (and its parents)
// directly holds: register file, operand stack, upvalues, This, plus
// the module's globals. Used as the interpreter's contribution to a
// process's RootScanner implementation.
func (c *Context) Trace(visit func(value.Value)) {
	for cur := c; cur != nil; cur = cur.Parent {
		for _, v := range cur.Registers {
			visit(v)
		}
		for _, v := range cur.Stack {
			visit(v)
		}
		for _, v := range cur.Upvalues {
			visit(v)
		}
		visit(cur.This)
		if cur.Module != nil {
			for _, v := range cur.Module.Globals {
				visit(v)
			}
		}
	}
}
