package optimize

import (
	"fmt"

	"github.com/darmie/rayzor/internal/mir"
)

// DoubleFree is the sanity pass spec.md §9 asks implementers to add:
// "the relationship between inserted frees and user-written frees in
// source code that elude §4.5's detection is a source of potential
// double-free; implementers should add a sanity pass that rejects
// functions with paths along which the same pointer is freed twice."
//
// Unlike the transforming passes, DoubleFree only validates — it never
// mutates the function — so it does not implement Pass; Check mirrors
// mir.Validate's calling convention instead (called after InsertFree,
// reports rather than transforms).
type DoubleFree struct{}

// Violation names one allocation for which some control-flow path frees a
// derived pointer more than once.
type Violation struct {
	Dest mir.ValueID
	Site Site
}

// DoubleFreeDetected is returned by Validate when Check finds any
// violation.
type DoubleFreeDetected struct {
	Function   string
	Violations []Violation
}

func (e *DoubleFreeDetected) Error() string {
	return fmt.Sprintf("optimize: function %q frees the same allocation twice on some path (%d site(s))", e.Function, len(e.Violations))
}

// Validate runs Check and turns any violation into an error, the same
// shape as mir.Validate's CfgMalformed.
func (d DoubleFree) Validate(fn *mir.Function) error {
	if v := d.Check(fn); len(v) > 0 {
		return &DoubleFreeDetected{Function: fn.Name, Violations: v}
	}
	return nil
}

// Check walks every control-flow path of fn, bounded by memoizing
// (block, already-freed-on-this-path) states so loops are each visited at
// most once per state, and reports every allocation with a path that
// frees one of its derived pointers more than once.
func (DoubleFree) Check(fn *mir.Function) []Violation {
	var sites []allocSite
	for id, b := range fn.CFG.Blocks {
		for idx, instr := range b.Instrs {
			switch {
			case instr.Op == mir.OpAlloc:
				sites = append(sites, allocSite{instr.Dest, Site{id, idx}})
			case instr.Op == mir.OpCallDirect && instr.IsExtern && instr.ExternName == "malloc" && instr.Dest != mir.NoValue:
				sites = append(sites, allocSite{instr.Dest, Site{id, idx}})
			}
		}
	}

	var violations []Violation
	for _, s := range sites {
		tracked := derivedSet(fn, nil, s.dest)
		if pathDoubleFrees(fn, s.dest, tracked) {
			violations = append(violations, Violation{Dest: s.dest, Site: s.site})
		}
	}
	return violations
}

type pathState struct {
	block mir.BlockID
	freed bool
}

// pathDoubleFrees reports whether any control-flow path starting at fn's
// entry frees a tracked value more than once. A loop that re-executes the
// same static allocation site every iteration re-establishes a fresh
// pointer each time, so crossing back through root's defining instruction
// resets the freed flag rather than carrying a stale one across the
// back-edge.
func pathDoubleFrees(fn *mir.Function, root mir.ValueID, tracked map[mir.ValueID]struct{}) bool {
	visited := map[pathState]bool{}

	var walk func(id mir.BlockID, freed bool) bool
	walk = func(id mir.BlockID, freed bool) bool {
		st := pathState{id, freed}
		if v, ok := visited[st]; ok {
			return v
		}
		// Conservative cycle breaker: a revisit of the same (block, freed)
		// state contributes no NEW violation beyond what the first visit
		// already explores.
		visited[st] = false

		b := fn.CFG.Blocks[id]
		for _, instr := range b.Instrs {
			if definesRoot(instr, root) {
				freed = false
			}
			if freesTracked(instr, tracked) {
				if freed {
					visited[st] = true
					return true
				}
				freed = true
			}
		}
		if b.HasTerm {
			for _, succ := range b.Term.Successors() {
				if walk(succ, freed) {
					visited[st] = true
					return true
				}
			}
		}
		return visited[st]
	}

	return walk(fn.CFG.Entry, false)
}

// definesRoot reports whether instr is the allocation site that originally
// produced root — either an Alloc or a direct malloc call.
func definesRoot(instr mir.Instr, root mir.ValueID) bool {
	if instr.Dest != root {
		return false
	}
	return instr.Op == mir.OpAlloc || (instr.Op == mir.OpCallDirect && instr.IsExtern && instr.ExternName == "malloc")
}

func freesTracked(instr mir.Instr, tracked map[mir.ValueID]struct{}) bool {
	if instr.Op == mir.OpFree && len(instr.Operands) > 0 {
		_, ok := tracked[instr.Operands[0]]
		return ok
	}
	if instr.Op == mir.OpCallDirect && instr.IsExtern && instr.ExternName == "free" {
		for _, a := range instr.Operands {
			if _, ok := tracked[a]; ok {
				return true
			}
		}
	}
	return false
}
