package bytecode

import (
	"sync"

	"github.com/jazz-lang/jlight/internal/value"
)

// NativeFn is a built-in function: it receives the bound `this` and
// the argument slice (already popped off the caller's stack in
// argument order) and returns the result value directly, bypassing
// context allocation entirely.
type NativeFn func(this value.Value, args []value.Value) (value.Value, error)

// Function is a callable unit: name, arity (-1 means variadic),
// upvalues, an optional native implementation, the owning module, and
// its code as a vector of basic blocks.
type Function struct {
	Name     string
	Argc     int32
	Upvalues []value.Value
	Native   NativeFn
	Module   *Module
	Code     []BasicBlock
}

// IsNative reports whether calls to f bypass context allocation.
func (f *Function) IsNative() bool { return f.Native != nil }

// Module is the unit of code and globals the interpreter executes: a
// name, a path, a globals vector, and its functions' code.
type Module struct {
	Name    string
	Path    string
	Globals []value.Value
	Code    []BasicBlock
}

// ModuleRegistry interns modules by path so the runtime driver never
// reloads a module it has already resolved, mirroring the original
// ModuleRegistry's parsed-module cache.
type ModuleRegistry struct {
	mu     sync.RWMutex
	byPath map[string]*Module
}

// NewModuleRegistry constructs an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{byPath: make(map[string]*Module)}
}

// Contains reports whether path has already been registered.
func (r *ModuleRegistry) Contains(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPath[path]
	return ok
}

// Get returns the module registered at path, if any.
func (r *ModuleRegistry) Get(path string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byPath[path]
	return m, ok
}

// Define registers m under its own Path, making it visible to future
// Get/Contains calls. The caller must finish writing m.Globals before
// calling Define: once visible, a module's globals are read-mostly.
func (r *ModuleRegistry) Define(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPath[m.Path] = m
}
