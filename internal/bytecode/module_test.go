package bytecode

import "testing"

func TestModuleRegistryDefineAndGet(t *testing.T) {
	reg := NewModuleRegistry()
	if reg.Contains("demo") {
		t.Fatal("expected a fresh registry to not contain any module")
	}

	mod := &Module{Name: "demo", Path: "demo"}
	reg.Define(mod)

	if !reg.Contains("demo") {
		t.Fatal("expected Contains to report the module after Define")
	}
	got, ok := reg.Get("demo")
	if !ok || got != mod {
		t.Fatalf("expected Get to return the defined module, got %+v ok=%v", got, ok)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Fatal("expected Get to report false for an unregistered path")
	}
}
