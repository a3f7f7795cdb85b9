// Package cell implements the heap object model: Cell, its tagged
// attribute-map pointer carrying the forwarding/remembered bits, the
// prototype attribute chain, and the forwarding protocol used by both
// garbage collectors.
package cell

import (
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"golang.org/x/exp/maps"

	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/value"
)

// MinOld is the generation count at which a surviving young cell is
// promoted to the old generation.
const MinOld = 5

// Forwarding/remembered bits packed into the low bits of the
// attribute-map pointer, mirroring the Rust original's tagged
// attributes word.
const (
	pendingForwardBit = uintptr(1) << 0
	forwardedBit       = uintptr(1) << 1
	rememberedBit       = uintptr(1) << 2
	forwardingMask      = pendingForwardBit | forwardedBit
	tagMask             = pendingForwardBit | forwardedBit | rememberedBit
)

// Kind discriminates the value variant a Cell carries.
type Kind uint8

const (
	KindNone Kind = iota
	KindNumber
	KindBool
	KindString
	KindArray
	KindByteArray
	KindFunction
	KindModule
	KindProcess
	KindFile
	KindDuration
	KindJoinHandle
)

// Variant is the payload union. Only one field is meaningful,
// selected by Kind; this mirrors the Rust ObjectValue enum using a Go
// struct instead of a real sum type, since Go has none.
type Variant struct {
	Kind      Kind
	Number    float64
	Bool      bool
	String    string
	Array     []value.Value
	ByteArray []byte
	Function  *bytecode.Function
	Module    *bytecode.Module
	Process   uintptr // opaque process identity, avoids an import cycle
	File      interface{ Close() error }
	Duration  int64 // nanoseconds
	JoinHandle <-chan value.Value
}

// Cell is a heap object: an optional prototype, a tagged attribute
// map pointer, a value variant, a generation counter, soft/hard mark
// bits, and a forwarding address.
type Cell struct {
	Prototype *Cell
	Value     Variant

	// attrs holds the lazily-allocated attribute map itself; attrBits
	// holds only the tag bits (pending-forward/forwarded/remembered).
	// Go cannot tag a real pointer portably the way the original packs
	// bits into a raw pointer, so the tag bits live in a separate
	// atomic word alongside the map pointer, and the forwarding
	// destination lives in the plain Forward field, written before
	// ForwardTo sets the forwarding bits.
	attrs    map[string]value.Value
	attrBits atomic.Uintptr

	Generation uint8
	SoftMark   bool
	HardMark   bool
	Forward    *Cell

	// Permanent cells are never moved or freed.
	Permanent bool
}

// New allocates a cell with no prototype.
func New(v Variant) *Cell {
	return &Cell{Value: v}
}

// WithPrototype allocates a cell with the given prototype, mirroring
// Object::with_prototype in the original interpreter's Construct path.
func WithPrototype(v Variant, proto *Cell) *Cell {
	return &Cell{Value: v, Prototype: proto}
}

// IsMature reports whether the cell has been promoted to the old
// generation.
func (c *Cell) IsMature() bool {
	return c.Generation >= MinOld || c.Permanent
}

// ---- attribute map ----

func (c *Cell) ensureAttrs() map[string]value.Value {
	if c.attrs == nil {
		c.attrs = make(map[string]value.Value)
	}
	return c.attrs
}

// AddAttribute lazily allocates the attribute map and inserts name.
// It also fires the intra-generational write barrier: if c is mature
// and child is a cell pointing into the young generation, c is marked
// REMEMBERED.
func (c *Cell) AddAttribute(name string, v value.Value, childIsYoung func(value.Value) bool) {
	c.ensureAttrs()[name] = v
	if c.IsMature() && childIsYoung != nil && childIsYoung(v) {
		c.markRemembered()
	}
}

// LookupAttributeInSelf returns the attribute without walking the
// prototype chain.
func (c *Cell) LookupAttributeInSelf(name string) (value.Value, bool) {
	if c.attrs == nil {
		return value.Empty, false
	}
	v, ok := c.attrs[name]
	return v, ok
}

// LookupAttribute walks the prototype chain until it finds name or
// runs out of prototypes.
func (c *Cell) LookupAttribute(name string) (value.Value, bool) {
	for cur := c; cur != nil; cur = cur.Prototype {
		if v, ok := cur.LookupAttributeInSelf(name); ok {
			return v, true
		}
	}
	return value.Empty, false
}

// AttributeNames enumerates this cell's own attribute names, without
// walking the prototype chain. Order is not semantically meaningful;
// x/exp/maps.Keys is used instead of a hand-rolled loop since
// enumeration order stability only matters for tests, which sort it
// themselves.
func (c *Cell) AttributeNames() []string {
	if c.attrs == nil {
		return nil
	}
	return maps.Keys(c.attrs)
}

// Attributes returns a copy of the attribute map.
func (c *Cell) Attributes() map[string]value.Value {
	if c.attrs == nil {
		return nil
	}
	return maps.Clone(c.attrs)
}

// SetPrototype replaces the cell's prototype.
func (c *Cell) SetPrototype(p *Cell) { c.Prototype = p }

// IsKindOf reports whether other appears in c's prototype chain.
func (c *Cell) IsKindOf(other *Cell) bool {
	for cur := c.Prototype; cur != nil; cur = cur.Prototype {
		if cur == other {
			return true
		}
	}
	return false
}

// ---- forwarding protocol ----

// MarkForForward attempts to atomically set PENDING_FORWARD. It
// returns false if another goroutine already won the race and is
// forwarding this cell, in which case the caller must not copy it.
func (c *Cell) MarkForForward() bool {
	for {
		cur := c.attrBits.Load()
		if cur&pendingForwardBit != 0 {
			return false
		}
		if c.attrBits.CompareAndSwap(cur, cur|pendingForwardBit) {
			return true
		}
	}
}

// ForwardTo records dst in Forward and then atomically sets both
// forwarding bits, once copying has completed.
func (c *Cell) ForwardTo(dst *Cell) {
	c.Forward = dst
	for {
		cur := c.attrBits.Load()
		next := (cur &^ forwardingMask) | forwardingMask
		if c.attrBits.CompareAndSwap(cur, next) {
			return
		}
	}
}

// IsForwarded reports whether the cell has a valid forwarding
// pointer installed. Reading attributes on a forwarded cell is
// forbidden by spec; callers must follow Forward instead.
func (c *Cell) IsForwarded() bool {
	return c.attrBits.Load()&forwardingMask == forwardingMask
}

// IsPendingForward reports whether forwarding has been claimed but
// not yet completed.
func (c *Cell) IsPendingForward() bool {
	return c.attrBits.Load()&pendingForwardBit != 0 && c.attrBits.Load()&forwardedBit == 0
}

func (c *Cell) markRemembered() {
	for {
		cur := c.attrBits.Load()
		if cur&rememberedBit != 0 {
			return
		}
		if c.attrBits.CompareAndSwap(cur, cur|rememberedBit) {
			return
		}
	}
}

// IsRemembered reports whether the REMEMBERED bit is set: c is a
// mature cell that points into the young generation and is on the
// remembered set.
func (c *Cell) IsRemembered() bool {
	return c.attrBits.Load()&rememberedBit != 0
}

// ClearRemembered removes the cell from the remembered set, called
// once a young collection has processed it as a root.
func (c *Cell) ClearRemembered() {
	for {
		cur := c.attrBits.Load()
		if cur&rememberedBit == 0 {
			return
		}
		if c.attrBits.CompareAndSwap(cur, cur&^rememberedBit) {
			return
		}
	}
}

// ---- marks used by the incremental collector ----

// IsMarked reports the hard mark bit (BLACK in the tri-color scheme;
// the copying collector also uses this as its single mark bit).
func (c *Cell) IsMarked() bool { return c.HardMark }

func (c *Cell) Mark()    { c.HardMark = true }
func (c *Cell) Unmark()  { c.HardMark = false }

func (c *Cell) IsSoftMarked() bool { return c.SoftMark }
func (c *Cell) SoftMarkSet()       { c.SoftMark = true }
func (c *Cell) SoftMarkClear()     { c.SoftMark = false }

// IsPermanent reports whether c lives in the permanent space.
func (c *Cell) IsPermanent() bool { return c.Permanent }

// SetPermanent marks c as permanent: never moved, never freed.
func (c *Cell) SetPermanent() { c.Permanent = true }

// ---- value-level operations mirroring spec.md §4.1 ----

// IsFalse reports whether c should be treated as falsy when used as
// a condition: null/false/0/None, or a cell equal to nilPrototype.
func (c *Cell) IsFalse(nilPrototype *Cell) bool {
	if c == nil || c == nilPrototype {
		return true
	}
	switch c.Value.Kind {
	case KindNone:
		return true
	case KindBool:
		return !c.Value.Bool
	case KindNumber:
		return c.Value.Number == 0
	default:
		return false
	}
}

// ToString renders the cell's variant-dispatched string form.
func (c *Cell) ToString() string {
	switch c.Value.Kind {
	case KindNumber:
		return formatNumber(c.Value.Number)
	case KindBool:
		if c.Value.Bool {
			return "true"
		}
		return "false"
	case KindString:
		return c.Value.String
	case KindArray:
		s := "["
		for i, v := range c.Value.Array {
			if i > 0 {
				s += ", "
			}
			s += fmt.Sprintf("%v", v.Bits())
		}
		return s + "]"
	default:
		if c.attrs != nil && len(c.attrs) > 0 {
			names := c.AttributeNames()
			s := "{"
			for i, n := range names {
				if i > 0 {
					s += ", "
				}
				s += n
			}
			return s + "}"
		}
		return "{}"
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
