package cell

import (
	"testing"

	"github.com/jazz-lang/jlight/internal/value"
)

func TestPrototypeLookupWalksChain(t *testing.T) {
	b := New(Variant{Kind: KindNone})
	a := WithPrototype(Variant{Kind: KindNone}, b)

	b.AddAttribute("x", value.FromInt32(7), nil)

	got, ok := a.LookupAttribute("x")
	if !ok || got != value.FromInt32(7) {
		t.Fatalf("lookup through prototype chain failed: got=%v ok=%v", got, ok)
	}

	if _, ok := a.LookupAttributeInSelf("x"); ok {
		t.Fatal("LookupAttributeInSelf should not walk the prototype chain")
	}
}

func TestForwardingProtocol(t *testing.T) {
	src := New(Variant{Kind: KindNone})
	dst := New(Variant{Kind: KindNone})

	if !src.MarkForForward() {
		t.Fatal("first MarkForForward should succeed")
	}
	if src.MarkForForward() {
		t.Fatal("second MarkForForward should fail: already pending")
	}

	src.ForwardTo(dst)
	if !src.IsForwarded() {
		t.Fatal("expected IsForwarded after ForwardTo")
	}
	if src.Forward != dst {
		t.Fatal("Forward pointer mismatch")
	}
}

func TestRememberedSetBit(t *testing.T) {
	parent := New(Variant{Kind: KindNone})
	parent.Generation = MinOld
	child := New(Variant{Kind: KindNone})

	parent.AddAttribute("child", value.FromCell(1), func(value.Value) bool { return true })
	if !parent.IsRemembered() {
		t.Fatal("mature parent referencing young child should be remembered")
	}
	parent.ClearRemembered()
	if parent.IsRemembered() {
		t.Fatal("ClearRemembered should unset the bit")
	}
	_ = child
}

func TestIsKindOf(t *testing.T) {
	grandparent := New(Variant{Kind: KindNone})
	parent := WithPrototype(Variant{Kind: KindNone}, grandparent)
	child := WithPrototype(Variant{Kind: KindNone}, parent)

	if !child.IsKindOf(grandparent) {
		t.Fatal("child should be kind-of its grandparent via the chain")
	}
	if child.IsKindOf(child) {
		t.Fatal("a cell is not kind-of itself")
	}
}

func TestToStringVariants(t *testing.T) {
	cases := []struct {
		c    *Cell
		want string
	}{
		{New(Variant{Kind: KindNumber, Number: 1.5}), "1.5"},
		{New(Variant{Kind: KindNumber, Number: 2147483648}), "2147483648"},
		{New(Variant{Kind: KindBool, Bool: true}), "true"},
		{New(Variant{Kind: KindNone}), "{}"},
	}
	for _, c := range cases {
		if got := c.c.ToString(); got != c.want {
			t.Fatalf("ToString mismatch: want %q got %q", c.want, got)
		}
	}
}
