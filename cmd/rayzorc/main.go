// Command rayzorc drives the compiler and tiered runtime described in
// spec.md: taking a hand-specified typed program (there is no lexer or
// parser in this repo — spec.md §1 places source-text front ends out of
// scope) through TAST -> HIR -> MIR(SSA) -> codegen, then either dumping
// the result or linking and running it natively, with the tiered manager
// of internal/tier driving recompilation under load.
package main

import (
	"fmt"
	"log"
	"os"
)

const version = "0.1.0"

// commandAliases mirrors sentra/cmd/sentra's short-flag convention.
var commandAliases = map[string]string{
	"c": "compile",
	"r": "run",
	"b": "bundle-info",
	"p": "rpkg-info",
}

var commands = []string{
	"compile", "run", "scenario", "bundle-info", "rpkg-info", "version", "help",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		if len(args) > 1 {
			showCommandHelp(args[1])
		} else {
			showUsage()
		}
		return
	}

	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		showVersion()
		return
	}

	var err error
	switch cmd {
	case "compile":
		err = compileCommand(args[1:])
	case "run":
		err = runCommand(args[1:])
	case "scenario":
		err = scenarioCommand(args[1:])
	case "bundle-info":
		err = bundleInfoCommand(args[1:])
	case "rpkg-info":
		err = rpkgInfoCommand(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "rayzorc: unknown command %q\n", cmd)
		if similar := findSimilarCommands(cmd, commands, 2); len(similar) > 0 {
			fmt.Fprintf(os.Stderr, "did you mean: %v?\n", similar)
		}
		showUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func showUsage() {
	fmt.Println("rayzorc - compiler and tiered JIT driver")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rayzorc compile <scenario> [-o out.ll]   Run the pipeline, print/save LLVM IR   (alias: c)")
	fmt.Println("  rayzorc run <scenario> [-tiered]         Compile, link, and natively invoke it  (alias: r)")
	fmt.Println("  rayzorc scenario list                    List the built-in demo scenarios")
	fmt.Println("  rayzorc bundle-info <path>                Inspect an on-disk IR bundle           (alias: b)")
	fmt.Println("  rayzorc rpkg-info <path>                  Inspect a package archive              (alias: p)")
	fmt.Println()
	fmt.Println("Help:")
	fmt.Println("  rayzorc help <command>       Show detailed help for a command")
	fmt.Println("  rayzorc --version            Show version")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  rayzorc c sum_to_n -o sum_to_n.ll")
	fmt.Println("  rayzorc r tier_promotion -tiered")
	fmt.Println("  rayzorc scenario list")
}

func showVersion() {
	fmt.Printf("rayzorc %s\n", version)
}

func showCommandHelp(cmd string) {
	switch cmd {
	case "compile":
		fmt.Println("rayzorc compile <scenario> [-o out.ll]")
		fmt.Println()
		fmt.Println("Runs a built-in demo scenario's hand-built TAST through")
		fmt.Println("hir.Lower -> ssa.Build -> optimize.InsertFree/LICM -> mir.Validate ->")
		fmt.Println("codegen.CompileModule, and prints the resulting LLVM IR text (or writes")
		fmt.Println("it to -o). See 'rayzorc scenario list' for valid scenario names.")
	case "run":
		fmt.Println("rayzorc run <scenario> [-entry name] [-tiered]")
		fmt.Println()
		fmt.Println("Like compile, but additionally shells out to clang/llc to assemble the")
		fmt.Println("IR into a relocatable object, links it in-process with internal/linker,")
		fmt.Println("and calls the resulting native entry point. With -tiered, the call is")
		fmt.Println("driven through internal/tier.Manager instead of a single direct call,")
		fmt.Println("so repeated invocations exercise tier promotion (spec.md §8 scenario 2).")
	case "bundle-info":
		fmt.Println("rayzorc bundle-info <path>")
		fmt.Println()
		fmt.Println("Loads an on-disk IR bundle (as produced by internal/bundle.Write) and")
		fmt.Println("lists its functions and metadata without fully decoding the module.")
	case "rpkg-info":
		fmt.Println("rayzorc rpkg-info <path>")
		fmt.Println()
		fmt.Println("Loads an .rpkg package archive and lists its sources, native library")
		fmt.Println("(if any for the current platform), and method table.")
	default:
		fmt.Printf("No help available for %q\n", cmd)
	}
}

// findSimilarCommands returns every candidate whose Levenshtein distance
// from input is at most maxDistance, the same "did you mean" aid
// sentra/cmd/sentra's main.go offers on an unrecognized command.
func findSimilarCommands(input string, candidates []string, maxDistance int) []string {
	var out []string
	for _, c := range candidates {
		if levenshteinDistance(input, c) <= maxDistance {
			out = append(out, c)
		}
	}
	return out
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}
	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}
	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			del := matrix[i-1][j] + 1
			ins := matrix[i][j-1] + 1
			sub := matrix[i-1][j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			matrix[i][j] = m
		}
	}
	return matrix[len(s1)][len(s2)]
}
