package interp

import (
	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/value"
	"github.com/jazz-lang/jlight/internal/vmerr"
)

type callMode uint8

const (
	callModeNormal callMode = iota
	callModeVirt
	callModeTail
)

// doCall implements Call/VirtCall/TailCall, mirroring
// interpreter.rs's three near-identical match arms: pop argc
// arguments off the caller's stack in reverse, resolve the callee,
// and either invoke its native implementation directly or push a new
// context and resume dispatch there.
func (m *Machine) doCall(proc ProcessHandle, ctx *Context, inst bytecode.Instruction, mode callMode) error {
	table := proc.Table()
	nilValue := table.Intern(proc.NilPrototype())

	newCtx := &Context{This: value.Undefined}
	newCtx.ReturnRegister = inst.R0
	newCtx.HasReturnRegister = true

	n := int(inst.Argc)
	args := make([]value.Value, n)
	for i := 0; i < n; i++ {
		args[n-1-i] = ctx.PopStack(nilValue)
	}

	fnReg := inst.R1
	var thisVal value.Value = value.Undefined
	if mode == callModeVirt {
		thisVal = ctx.GetRegister(inst.R2)
	}

	fnVal := ctx.GetRegister(fnReg)
	if !fnVal.IsCell() {
		return &vmerr.TypeMismatch{Operation: "Call", Got: "non-cell", Want: "function cell"}
	}
	fnCell := table.Resolve(fnVal)
	if fnCell == nil || fnCell.Value.Kind != cell.KindFunction {
		return &vmerr.TypeMismatch{Operation: "Call", Got: "non-function", Want: "function"}
	}
	fn := fnCell.Value.Function

	if fn.IsNative() {
		result, err := fn.Native(thisVal, args)
		if err != nil {
			return err
		}
		ctx.SetRegister(inst.R0, result)
		return nil
	}

	newCtx.Module = fn.Module
	newCtx.Code = fn.Code
	newCtx.Upvalues = append([]value.Value(nil), fn.Upvalues...)
	newCtx.This = thisVal
	for _, a := range args {
		newCtx.PushStack(a)
	}

	if mode == callModeTail {
		proc.PopContext()
	}
	proc.PushContext(newCtx)
	return nil
}

// doConstruct implements Construct(dst, proto, argc): allocate a
// fresh cell with the given prototype; invoke the prototype itself as
// the constructor when it is a function, otherwise its "init"
// attribute when that is a function; unconditionally deliver the new
// cell as the result.
func (m *Machine) doConstruct(proc ProcessHandle, ctx *Context, inst bytecode.Instruction) error {
	table := proc.Table()
	nilValue := table.Intern(proc.NilPrototype())

	protoVal := ctx.GetRegister(inst.R1)
	var proto *cell.Cell
	if protoVal.IsCell() {
		proto = table.Resolve(protoVal)
	}

	this := cell.WithPrototype(cell.Variant{Kind: cell.KindNone}, proto)
	thisVal := table.Intern(this)

	n := int(inst.Argc)
	args := make([]value.Value, n)
	for i := 0; i < n; i++ {
		args[n-1-i] = ctx.PopStack(nilValue)
	}

	if proto == nil {
		ctx.SetRegister(inst.R0, thisVal)
		return nil
	}

	initCell := proto
	if proto.Value.Kind != cell.KindFunction {
		initVal, ok := proto.LookupAttribute("init")
		if !ok || !initVal.IsCell() {
			ctx.SetRegister(inst.R0, thisVal)
			return nil
		}
		initCell = table.Resolve(initVal)
		if initCell == nil || initCell.Value.Kind != cell.KindFunction {
			ctx.SetRegister(inst.R0, thisVal)
			return nil
		}
	}
	fn := initCell.Value.Function

	if fn.IsNative() {
		result, err := fn.Native(thisVal, args)
		if err != nil {
			return err
		}
		_ = result // constructors always yield the constructed cell
		ctx.SetRegister(inst.R0, thisVal)
		return nil
	}

	ctx.SetRegister(inst.R0, thisVal)
	newCtx := &Context{This: thisVal}
	newCtx.HasReturnRegister = false
	newCtx.Module = fn.Module
	newCtx.Code = fn.Code
	newCtx.Upvalues = append([]value.Value(nil), fn.Upvalues...)
	for _, a := range args {
		newCtx.PushStack(a)
	}
	proc.PushContext(newCtx)
	return nil
}

// doLoad implements field access: integer-keyed access on an array
// bounds-grows it with Null fillers, then indexes directly; any
// string-keyed access on a cell walks the prototype chain via
// lookup_attribute.
func (m *Machine) doLoad(proc ProcessHandle, ctx *Context, inst bytecode.Instruction) error {
	table := proc.Table()
	nilValue := table.Intern(proc.NilPrototype())

	objVal := ctx.GetRegister(inst.R1)
	if !objVal.IsCell() {
		return &vmerr.TypeMismatch{Operation: "Load", Got: "non-cell", Want: "cell"}
	}
	obj := table.Resolve(objVal)
	keyVal := ctx.GetRegister(inst.R2)

	if obj.Value.Kind == cell.KindArray && keyVal.IsInt32() {
		idx := int(keyVal.AsInt32())
		if idx < 0 {
			return &vmerr.TypeMismatch{Operation: "Load", Got: "negative index", Want: "non-negative index"}
		}
		for idx >= len(obj.Value.Array) {
			obj.Value.Array = append(obj.Value.Array, value.Null)
		}
		ctx.SetRegister(inst.R0, obj.Value.Array[idx])
		return nil
	}

	keyName, err := asString(table, keyVal)
	if err != nil {
		return err
	}
	v, ok := obj.LookupAttribute(keyName)
	if !ok {
		v = nilValue
	}
	ctx.SetRegister(inst.R0, v)
	return nil
}

// doStore mirrors doLoad for writes.
func (m *Machine) doStore(proc ProcessHandle, ctx *Context, inst bytecode.Instruction) error {
	table := proc.Table()

	objVal := ctx.GetRegister(inst.R0)
	if !objVal.IsCell() {
		return &vmerr.TypeMismatch{Operation: "Store", Got: "non-cell", Want: "cell"}
	}
	obj := table.Resolve(objVal)
	keyVal := ctx.GetRegister(inst.R1)
	v := ctx.GetRegister(inst.R2)

	if obj.Value.Kind == cell.KindArray && keyVal.IsInt32() {
		idx := int(keyVal.AsInt32())
		if idx < 0 {
			return &vmerr.TypeMismatch{Operation: "Store", Got: "negative index", Want: "non-negative index"}
		}
		for idx >= len(obj.Value.Array) {
			obj.Value.Array = append(obj.Value.Array, value.Null)
		}
		obj.Value.Array[idx] = v
		return nil
	}

	keyName, err := asString(table, keyVal)
	if err != nil {
		return err
	}
	obj.AddAttribute(keyName, v, proc.IsYoung)
	return nil
}

func asString(table *cell.Table, v value.Value) (string, error) {
	if !v.IsCell() {
		return "", &vmerr.TypeMismatch{Operation: "asString", Got: "non-cell", Want: "string cell"}
	}
	c := table.Resolve(v)
	if c == nil || c.Value.Kind != cell.KindString {
		return "", &vmerr.TypeMismatch{Operation: "asString", Got: "non-string cell", Want: "string cell"}
	}
	return c.Value.String, nil
}
