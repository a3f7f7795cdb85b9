// Package base supplies the runtime driver's shared bookkeeping:
// deferred shutdown hooks, exit-status accumulation, and
// Errorf/Fatalf reporting. Grounded on cmd_local/go/internal/base's
// Command/Errorf/Fatalf/Exit/AtExit/SetExitStatus pattern, trimmed to
// a single-command driver — jlightvm has no subcommand tree, so the
// Command/Flag/Commands/Usage machinery that pattern builds for `go
// build`/`go fix`/etc. has no counterpart here.
package base

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// Log is the driver's structured logger, set by cmd/jlightvm's main
// before any Errorf/Fatalf call. It defaults to a no-op logger so
// packages that import base for its exit bookkeeping in tests don't
// need to wire one up.
var Log = zap.NewNop()

var (
	exitMu     sync.Mutex
	exitStatus int
	atExit     []func()
)

// AtExit registers f to run, in registration order, before Exit calls
// os.Exit — cmd/jlightvm uses it to flush the logger.
func AtExit(f func()) {
	exitMu.Lock()
	defer exitMu.Unlock()
	atExit = append(atExit, f)
}

// SetExitStatus raises the process's eventual exit status to n if n
// is higher than what's already recorded; multiple failing
// subsystems (e.g. a scheduler shutdown error and a later config
// error) never silently downgrade the reported status.
func SetExitStatus(n int) {
	exitMu.Lock()
	defer exitMu.Unlock()
	if exitStatus < n {
		exitStatus = n
	}
}

// GetExitStatus returns the status SetExitStatus would exit with.
func GetExitStatus() int {
	exitMu.Lock()
	defer exitMu.Unlock()
	return exitStatus
}

// Errorf logs a driver-level error and raises the exit status to 1
// without terminating — used for errors the driver can still report
// more context for (e.g. an error during scheduler shutdown that
// shouldn't mask an earlier, more specific failure already reported).
func Errorf(format string, args ...interface{}) {
	Log.Sugar().Errorf(format, args...)
	SetExitStatus(1)
}

// Fatalf logs a driver-level error and exits immediately.
func Fatalf(format string, args ...interface{}) {
	Errorf(format, args...)
	Exit()
}

// Exit runs every AtExit hook in registration order, then terminates
// the process with the accumulated exit status.
func Exit() {
	exitMu.Lock()
	hooks := atExit
	status := exitStatus
	exitMu.Unlock()

	for _, f := range hooks {
		f()
	}
	os.Exit(status)
}
