package value

import "testing"

func TestTagsAreMutuallyExclusive(t *testing.T) {
	cases := []struct {
		name string
		v    Value
	}{
		{"double", FromDouble(1.5)},
		{"int32", FromInt32(1 << 30)}, // arbitrary non-zero int32
		{"bigIntImmediate", FromDouble(2147483648)},
		{"true", True},
		{"null", Null},
		{"undefined", Undefined},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.v.IsCell() && (c.v.IsNumber() || c.v.IsBool() || c.v.IsNull() || c.v.IsUndefined()) {
				t.Fatalf("%s: cell predicate overlaps with another tag", c.name)
			}
		})
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1.5, -1.5, 3.14159, 1e300, -1e-300} {
		v := FromDouble(f)
		if !v.IsDouble() {
			t.Fatalf("FromDouble(%v) did not produce a double-tagged value", f)
		}
		if got := v.AsDouble(); got != f {
			t.Fatalf("round trip mismatch: want %v got %v", f, got)
		}
	}
}

func TestInt32RoundTrip(t *testing.T) {
	for _, i := range []int32{0, 1, -1, 2147483647, -2147483648} {
		v := FromInt32(i)
		if !v.IsInt32() {
			t.Fatalf("FromInt32(%d) did not produce an int32-tagged value", i)
		}
		if got := v.AsInt32(); got != i {
			t.Fatalf("round trip mismatch: want %d got %d", i, got)
		}
	}
}

func TestImmediates(t *testing.T) {
	if !True.IsBool() || !True.AsBool() {
		t.Fatal("True is not a true bool")
	}
	if !False.IsBool() || False.AsBool() {
		t.Fatal("False is not a false bool")
	}
	if !Null.IsNull() || !Null.IsNullOrUndefined() {
		t.Fatal("Null predicates wrong")
	}
	if !Undefined.IsUndefined() || !Undefined.IsNullOrUndefined() {
		t.Fatal("Undefined predicates wrong")
	}
}

func TestToNumber(t *testing.T) {
	if FromDouble(2.5).ToNumber() != 2.5 {
		t.Fatal("double ToNumber mismatch")
	}
	if FromInt32(7).ToNumber() != 7 {
		t.Fatal("int32 ToNumber mismatch")
	}
	if True.ToNumber() != 1 {
		t.Fatal("true ToNumber mismatch")
	}
	if False.ToNumber() != 0 {
		t.Fatal("false ToNumber mismatch")
	}
	if n := Null.ToNumber(); n == n {
		t.Fatal("null ToNumber should be NaN")
	}
}

func TestCellPredicate(t *testing.T) {
	v := FromCell(0x1000)
	if !v.IsCell() {
		t.Fatal("FromCell should be a cell")
	}
	if v.IsNumber() || v.IsBool() || v.IsNullOrUndefined() {
		t.Fatal("cell value aliases another tag")
	}
	if v.AsCell() != 0x1000 {
		t.Fatal("AsCell round trip mismatch")
	}
}

func TestEmptyIsNotCell(t *testing.T) {
	if Empty.IsCell() {
		t.Fatal("Empty must never be classified as a cell")
	}
}
