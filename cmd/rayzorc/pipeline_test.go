package main

import (
	"strings"
	"testing"
)

// TestScenariosCompile runs every registered scenario through the full
// pipeline (hir.Lower -> ssa.Build -> InsertFree/LICM -> mir.Validate ->
// codegen.CompileModule) and checks the resulting IR text mentions the
// scenario's entry function, mirroring internal/ssa/builder_test.go's own
// end-to-end style rather than unit-testing each pass in isolation again.
func TestScenariosCompile(t *testing.T) {
	for _, name := range scenarioNames() {
		name := name
		t.Run(name, func(t *testing.T) {
			sc, err := lookupScenario(name)
			if err != nil {
				t.Fatalf("lookupScenario(%q): %v", name, err)
			}
			mod, artifact, err := compile(sc.build())
			if err != nil {
				t.Fatalf("compile(%q): %v", name, err)
			}
			if _, ok := mod.FindFuncByName(sc.entry); !ok {
				t.Fatalf("module for %q has no function named %q", name, sc.entry)
			}
			ir := artifact.IR()
			if !strings.Contains(ir, sc.entry) {
				t.Fatalf("IR for %q does not mention entry function %q:\n%s", name, sc.entry, ir)
			}
		})
	}
}

func TestLookupScenarioUnknownNameFails(t *testing.T) {
	if _, err := lookupScenario("does_not_exist"); err == nil {
		t.Fatal("expected an error for an unregistered scenario name")
	}
}

func TestScenarioArgsMatchSignatureArity(t *testing.T) {
	for _, name := range scenarioNames() {
		sc, err := lookupScenario(name)
		if err != nil {
			t.Fatalf("lookupScenario(%q): %v", name, err)
		}
		mod, _, err := compile(sc.build())
		if err != nil {
			t.Fatalf("compile(%q): %v", name, err)
		}
		fn, ok := mod.FindFuncByName(sc.entry)
		if !ok {
			t.Fatalf("no function %q in scenario %q", sc.entry, name)
		}
		if got, want := len(scenarioArgs(name)), len(fn.Sig.Params); got != want {
			t.Fatalf("scenario %q: scenarioArgs returned %d args, entry %q wants %d", name, got, sc.entry, want)
		}
	}
}

func TestCallByArityPanicsOnUnsupportedArity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected callByArity to panic on an unsupported arity")
		}
	}()
	callByArity(0, []int64{1, 2, 3})
}

func TestFindSimilarCommandsSuggestsCloseMatch(t *testing.T) {
	got := findSimilarCommands("compil", commands, 2)
	found := false
	for _, c := range got {
		if c == "compile" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %v to include %q", got, "compile")
	}
}
