// Package vmerr defines the runtime's error taxonomy: TypeMismatch,
// ArgumentError, ModuleError, RegallocFailure, and Panic, per the
// error handling design.
package vmerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Thrown is implemented by values that unwind through the
// interpreter's catch-table machinery rather than returning as a Go
// error. The interpreter wraps these into a runtime Value (a string
// cell) and delivers it into a catch entry's register; when no catch
// entry exists, the error is returned wrapped in a *Panic instead.
type Thrown interface {
	error
	thrown()
}

// TypeMismatch is thrown when a non-arithmetic, non-numeric operation
// receives the wrong type, e.g. Store on a non-cell.
type TypeMismatch struct {
	Operation string
	Got       string
	Want      string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch in %s: got %s, want %s", e.Operation, e.Got, e.Want)
}
func (*TypeMismatch) thrown() {}

// ArgumentError is reported by native functions for arity or content
// errors and propagated as a throw.
type ArgumentError struct {
	Function string
	Message  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument error in %s: %s", e.Function, e.Message)
}
func (*ArgumentError) thrown() {}

// ModuleError occurs at load time only: module not found or parse
// failure. It is returned to the loader, never thrown into user code,
// so it carries a pkg/errors stack trace for operator diagnosis.
type ModuleError struct {
	Path string
	Err  error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module error loading %q: %v", e.Path, e.Err)
}
func (e *ModuleError) Unwrap() error { return e.Err }

// NewModuleError wraps err with a stack trace and the offending path.
func NewModuleError(path string, err error) *ModuleError {
	return &ModuleError{Path: path, Err: errors.WithStack(err)}
}

// RegallocFailure means the register allocator ran out of registers
// with no spill slot available. It is fatal and aborts compilation.
type RegallocFailure struct {
	Reason string
	Err    error
}

func (e *RegallocFailure) Error() string {
	return fmt.Sprintf("register allocation failed: %s", e.Reason)
}
func (e *RegallocFailure) Unwrap() error { return e.Err }

// NewRegallocFailure wraps reason with a stack trace.
func NewRegallocFailure(reason string) *RegallocFailure {
	return &RegallocFailure{Reason: reason, Err: errors.New(reason)}
}

// Panic is an uncaught throw that unwound past the top context of a
// process. It terminates the owning process; if the process was MAIN
// it terminates the runtime.
type Panic struct {
	Value      interface{}
	StackTrace []string
}

func (e *Panic) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
