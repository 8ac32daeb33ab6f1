package main

import (
	"fmt"

	"github.com/darmie/rayzor/internal/codegen"
	"github.com/darmie/rayzor/internal/diag"
	"github.com/darmie/rayzor/internal/hir"
	"github.com/darmie/rayzor/internal/mir"
	"github.com/darmie/rayzor/internal/optimize"
	"github.com/darmie/rayzor/internal/ssa"
	"github.com/darmie/rayzor/internal/tast"
)

// pipelinePasses are run over every function in order, each one followed
// by mir.Validate at the call site (spec.md §4.7 "run after lowering and
// after each transforming pass"): escape-driven free insertion first,
// then loop-invariant code motion over whatever InsertFree left behind.
var pipelinePasses = []optimize.Pass{
	optimize.InsertFree{},
	optimize.LICM{},
}

// compile runs file through the full TAST -> HIR -> MIR(SSA) -> validated
// MIR -> codegen pipeline (spec.md §4.2-§4.8), returning both the
// optimized module (for bundling or tier.Manager wiring) and the codegen
// artifact (for IR text or external assembly).
func compile(file *tast.File) (*mir.Module, *codegen.Artifact, error) {
	hmod, err := hir.Lower(file)
	if err != nil {
		return nil, nil, fmt.Errorf("lower: %w", err)
	}

	mod, err := ssa.Build(hmod)
	if err != nil {
		return nil, nil, fmt.Errorf("ssa build: %w", err)
	}

	if err := validateModule(mod); err != nil {
		return nil, nil, fmt.Errorf("post-lowering validate: %w", err)
	}

	for _, pass := range pipelinePasses {
		if _, err := optimize.RunOnModule(pass, mod); err != nil {
			return nil, nil, fmt.Errorf("pass %s: %w", pass.Name(), err)
		}
		if err := validateModule(mod); err != nil {
			return nil, nil, fmt.Errorf("post-%s validate: %w", pass.Name(), err)
		}
	}

	for _, fn := range mod.Functions {
		if violations := optimize.DoubleFree{}.Check(fn); len(violations) > 0 {
			return nil, nil, fmt.Errorf("function %s: %d double-free violation(s) found", fn.Name, len(violations))
		}
	}

	backend, err := codegen.NewBackend()
	if err != nil {
		return nil, nil, fmt.Errorf("new backend: %w", err)
	}
	artifact, err := backend.CompileModule(mod)
	if err != nil {
		return nil, nil, fmt.Errorf("codegen: %w", err)
	}

	return mod, artifact, nil
}

func validateModule(mod *mir.Module) error {
	for _, fn := range mod.Functions {
		if err := mir.Validate(fn); err != nil {
			return err
		}
	}
	return nil
}

// compileCommand implements "rayzorc compile": run the pipeline for a
// named scenario and print (or save) its LLVM IR text.
func compileCommand(args []string) error {
	name, out := parseCompileFlags(args)

	sc, err := lookupScenario(name)
	if err != nil {
		return err
	}

	_, artifact, err := compile(sc.build())
	if err != nil {
		return diag.Wrap(diag.KindFinalizationFailed, err, fmt.Sprintf("compiling scenario %q", name))
	}

	ir := artifact.IR()
	if out == "" {
		fmt.Print(ir)
		return nil
	}
	return writeFile(out, ir)
}

// scenarioCommand implements "rayzorc scenario list".
func scenarioCommand(args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return fmt.Errorf("usage: rayzorc scenario list")
	}
	for _, name := range scenarioNames() {
		fmt.Printf("%-16s %s\n", name, scenarios[name].description)
	}
	return nil
}
