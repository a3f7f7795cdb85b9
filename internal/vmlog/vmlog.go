// Package vmlog wires the runtime's internal engineering logging
// (main-process scheduling and termination, processes ended by an
// uncaught error). This
// is distinct from the user-facing trace/fusion recorder, which is an
// excluded collaborator.
package vmlog

import (
	"go.uber.org/zap"
)

// New builds the production logger used by the runtime driver. Debug
// builds may swap in zap.NewDevelopment via WithOptions at the call
// site; New stays fixed so log shape is stable across environments.
func New() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails on a broken encoder/sink config,
		// which cannot happen with the default config used here.
		logger = zap.NewNop()
	}
	return logger
}

// Nop returns a logger that discards everything, used by tests that
// don't want to assert on log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
