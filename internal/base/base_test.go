package base

import "testing"

func TestSetExitStatusOnlyRaises(t *testing.T) {
	exitMu.Lock()
	exitStatus = 0
	exitMu.Unlock()

	SetExitStatus(1)
	SetExitStatus(0)
	if got := GetExitStatus(); got != 1 {
		t.Fatalf("expected status to stay raised at 1, got %d", got)
	}
	SetExitStatus(2)
	if got := GetExitStatus(); got != 2 {
		t.Fatalf("expected status to raise to 2, got %d", got)
	}
}

func TestAtExitRunsInRegistrationOrder(t *testing.T) {
	exitMu.Lock()
	atExit = nil
	exitMu.Unlock()

	var order []int
	AtExit(func() { order = append(order, 1) })
	AtExit(func() { order = append(order, 2) })

	exitMu.Lock()
	hooks := atExit
	exitMu.Unlock()
	for _, f := range hooks {
		f()
	}

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected hooks to run in registration order, got %v", order)
	}
}
