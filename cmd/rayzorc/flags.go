package main

import (
	"flag"
	"os"
)

// parseCompileFlags parses "rayzorc compile <scenario> [-o path]", hand-
// rolled the way sentra/cmd/sentra's command handlers slice args[1:]
// themselves rather than pulling in a flag-parsing dependency — this repo
// carries no CLI-framework dependency in its teacher's go.mod either.
func parseCompileFlags(args []string) (scenarioName, out string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	o := fs.String("o", "", "write LLVM IR text to this path instead of stdout")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) > 0 {
		scenarioName = rest[0]
		fs.Parse(rest[1:])
	}
	return scenarioName, *o
}

// runFlags is the parsed form of "rayzorc run <scenario> [-entry name] [-tiered] [-calls n]".
type runFlags struct {
	scenarioName string
	entry        string
	tiered       bool
	calls        int
}

func parseRunFlags(args []string) runFlags {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	entry := fs.String("entry", "", "override the scenario's default entry function")
	tiered := fs.Bool("tiered", false, "drive invocation through internal/tier.Manager instead of one direct call")
	calls := fs.Int("calls", 1, "number of times to invoke the entry point (only meaningful with -tiered)")
	fs.Parse(args)
	rest := fs.Args()
	var name string
	if len(rest) > 0 {
		name = rest[0]
		fs.Parse(rest[1:])
	}
	return runFlags{scenarioName: name, entry: *entry, tiered: *tiered, calls: *calls}
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
