package interp

import (
	"math"

	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/cell"
	"github.com/jazz-lang/jlight/internal/value"
)

// doArithOrCompare implements the arithmetic, bitwise, logical, and
// comparison instructions. Per spec.md §7, numeric operations between
// numbers and non-numbers yield NaN rather than throw — a deliberate
// design choice, not an omission.
func (m *Machine) doArithOrCompare(table *cell.Table, ctx *Context, inst bytecode.Instruction) {
	a := ctx.GetRegister(inst.R1)
	b := ctx.GetRegister(inst.R2)

	switch inst.Op {
	case bytecode.OpAdd:
		ctx.SetRegister(inst.R0, value.FromDouble(a.ToNumber()+b.ToNumber()))
	case bytecode.OpSub:
		ctx.SetRegister(inst.R0, value.FromDouble(a.ToNumber()-b.ToNumber()))
	case bytecode.OpMul:
		ctx.SetRegister(inst.R0, value.FromDouble(a.ToNumber()*b.ToNumber()))
	case bytecode.OpDiv:
		ctx.SetRegister(inst.R0, value.FromDouble(a.ToNumber()/b.ToNumber()))
	case bytecode.OpMod:
		ctx.SetRegister(inst.R0, value.FromDouble(math.Mod(a.ToNumber(), b.ToNumber())))
	case bytecode.OpShl:
		ctx.SetRegister(inst.R0, value.FromInt32(toInt32(a)<<uint(toInt32(b)&31)))
	case bytecode.OpShr:
		ctx.SetRegister(inst.R0, value.FromInt32(toInt32(a)>>uint(toInt32(b)&31)))
	case bytecode.OpAnd:
		ctx.SetRegister(inst.R0, value.FromInt32(toInt32(a)&toInt32(b)))
	case bytecode.OpOr:
		ctx.SetRegister(inst.R0, value.FromInt32(toInt32(a)|toInt32(b)))
	case bytecode.OpXor:
		ctx.SetRegister(inst.R0, value.FromInt32(toInt32(a)^toInt32(b)))
	case bytecode.OpBoolAnd:
		ctx.SetRegister(inst.R0, value.FromBool(toBool(a) && toBool(b)))
	case bytecode.OpBoolOr:
		ctx.SetRegister(inst.R0, value.FromBool(toBool(a) || toBool(b)))
	case bytecode.OpGreater:
		ctx.SetRegister(inst.R0, value.FromBool(a.ToNumber() > b.ToNumber()))
	case bytecode.OpLess:
		ctx.SetRegister(inst.R0, value.FromBool(a.ToNumber() < b.ToNumber()))
	case bytecode.OpGreaterEqual:
		ctx.SetRegister(inst.R0, value.FromBool(a.ToNumber() >= b.ToNumber()))
	case bytecode.OpLessEqual:
		ctx.SetRegister(inst.R0, value.FromBool(a.ToNumber() <= b.ToNumber()))
	case bytecode.OpEqual:
		ctx.SetRegister(inst.R0, value.FromBool(valuesEqual(table, a, b)))
	case bytecode.OpNotEqual:
		ctx.SetRegister(inst.R0, value.FromBool(!valuesEqual(table, a, b)))
	}
}

// valuesEqual implements spec.md §4.1's equality rule: raw bit
// equality except for strings, byte arrays, and primitive numbers,
// which compare by value. Numbers need the value comparison because
// an int32 and a double of equal value NaN-box to different words;
// strings and byte arrays need it for two distinct cells holding
// identical content.
func valuesEqual(table *cell.Table, a, b value.Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.ToNumber() == b.ToNumber()
	}
	if value.Equal(a, b) {
		return true
	}
	if !a.IsCell() || !b.IsCell() {
		return false
	}
	ca, cb := table.Resolve(a), table.Resolve(b)
	if ca == nil || cb == nil || ca.Value.Kind != cb.Value.Kind {
		return false
	}
	switch ca.Value.Kind {
	case cell.KindString:
		return ca.Value.String == cb.Value.String
	case cell.KindByteArray:
		if len(ca.Value.ByteArray) != len(cb.Value.ByteArray) {
			return false
		}
		for i := range ca.Value.ByteArray {
			if ca.Value.ByteArray[i] != cb.Value.ByteArray[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func toInt32(v value.Value) int32 {
	if v.IsInt32() {
		return v.AsInt32()
	}
	return int32(v.ToNumber())
}

func toBool(v value.Value) bool {
	if v.IsBool() {
		return v.AsBool()
	}
	return v.ToNumber() != 0
}
