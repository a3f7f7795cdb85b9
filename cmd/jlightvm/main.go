// Command jlightvm is the runtime's thin driver: it loads a config
// file, builds a Driver (shared cell table, permanent space,
// scheduler), and invokes the demo entry point the way an embedding
// host would invoke a compiled module's top-level function per
// spec.md §6. The source-level parser/AST that would normally produce
// that function's bytecode CFG is an excluded collaborator (spec.md
// §1); this command embeds a minimal hand-built module instead of
// reading one off disk, since spec.md §6 names no persisted module
// format ("Persisted state layout: None; all state is in-memory").
package main

import (
	"context"
	"flag"
	"time"

	"github.com/jazz-lang/jlight/internal/base"
	"github.com/jazz-lang/jlight/internal/bytecode"
	"github.com/jazz-lang/jlight/internal/config"
	"github.com/jazz-lang/jlight/internal/runtime"
	"github.com/jazz-lang/jlight/internal/vmlog"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML runtime config file (defaults baked in if omitted)")
	timeout := flag.Duration("timeout", 10*time.Second, "maximum wall-clock time to let the demo module run")
	flag.Parse()

	base.Log = vmlog.New()
	base.AtExit(func() { _ = base.Log.Sync() })

	cfg, err := config.Load(*configPath)
	if err != nil {
		base.Fatalf("loading config %q: %v", *configPath, err)
	}

	d := runtime.New(cfg, base.Log)
	entry := demoModule(d)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := d.Run(ctx, entry); err != nil {
		base.Errorf("runtime exited with error: %v", err)
	}

	base.Exit()
}

// demoModule builds a one-function module computing 1 + 2 and
// returning it, registers it in d.Modules, and returns its entry
// function — standing in for the CFG a real front-end would deliver
// (spec.md §1's (a)/(b)/(c) external-interface contract).
func demoModule(d *runtime.Driver) *bytecode.Function {
	mod := &bytecode.Module{Name: "demo", Path: "demo"}

	fn := &bytecode.Function{
		Name:   "main",
		Argc:   0,
		Module: mod,
		Code: []bytecode.BasicBlock{{
			Instructions: []bytecode.Instruction{
				{Op: bytecode.OpLoadInt, R0: 0, ImmInt: 1},
				{Op: bytecode.OpLoadInt, R0: 1, ImmInt: 2},
				{Op: bytecode.OpAdd, R0: 2, R1: 0, R2: 1},
				{Op: bytecode.OpReturn, R0: 2, HasR0: true},
			},
		}},
	}
	mod.Code = fn.Code
	d.Modules.Define(mod)
	return fn
}
