package optimize

import "github.com/darmie/rayzor/internal/mir"

// LICM is loop-invariant code motion with allocation hoisting (spec.md
// §4.6): hoists pure instructions whose operands are all loop-invariant to
// the loop's preheader, and for each allocation classified non-escaping by
// AnalyzeLoop hoists its Alloc into the preheader and sinks its matching
// Free into every loop exit block, so the same memory is reused across
// iterations instead of reallocated per iteration. Loops without a single
// preheader are skipped entirely — hoisting into more than one entry point
// would not dominate the loop body, violating SSA dominance (spec.md §4.6
// "skips transformations that would violate SSA dominance").
type LICM struct{}

func (LICM) Name() string { return "LICM" }

func (LICM) RunOnFunction(fn *mir.Function) (Result, error) {
	total := Result{Stats: map[string]int{}}
	for _, loop := range mir.NaturalLoops(fn) {
		if !loop.HasPreheader {
			continue
		}
		hoisted := hoistInvariants(fn, loop)
		allocs := hoistAllocs(fn, loop)
		total.Stats["instructions_hoisted"] += hoisted
		total.Stats["allocations_hoisted"] += allocs
		if hoisted > 0 || allocs > 0 {
			total.Modified = true
		}
	}
	return total, nil
}

// hoistInvariants moves pure instructions whose operands are all defined
// outside loop.Body (or already hoisted earlier in this same pass) into
// loop.Preheader. Runs to a fixpoint: hoisting one instruction can make a
// later one that consumes its result invariant too.
func hoistInvariants(fn *mir.Function, loop *mir.Loop) int {
	invariant := map[mir.ValueID]struct{}{}
	total := 0
	changed := true
	for changed {
		changed = false
		for id := range loop.Body {
			if id == loop.Header {
				continue // the header's own ϕ-nodes are never loop-invariant
			}
			b := fn.CFG.Blocks[id]
			kept := b.Instrs[:0:0]
			for _, instr := range b.Instrs {
				if _, already := invariant[instr.Dest]; already {
					kept = append(kept, instr)
					continue
				}
				if instr.Dest != mir.NoValue && instr.IsPure() && allInvariant(fn, loop, invariant, instr.Uses()) {
					fn.CFG.AppendInstr(loop.Preheader, instr)
					invariant[instr.Dest] = struct{}{}
					total++
					changed = true
					continue
				}
				kept = append(kept, instr)
			}
			b.Instrs = kept
		}
	}
	return total
}

func allInvariant(fn *mir.Function, loop *mir.Loop, hoisted map[mir.ValueID]struct{}, uses []mir.ValueID) bool {
	for _, u := range uses {
		if u == mir.NoValue {
			continue
		}
		if _, ok := hoisted[u]; ok {
			continue
		}
		if definedInBlocks(fn, loop.Body, u) {
			return false
		}
	}
	return true
}

// hoistAllocs hoists every non-escaping allocation's Alloc to the
// preheader and sinks its matching Free to every loop exit.
func hoistAllocs(fn *mir.Function, loop *mir.Loop) int {
	infos := AnalyzeLoop(fn, loop)
	count := 0
	for _, info := range infos {
		if info.Escapes || !info.HasFree {
			continue
		}
		allocInstr, ok := extractByDest(fn, loop.Body, info.Dest)
		if !ok {
			continue
		}
		if !extractMatchingFree(fn, loop.Body, info.Dest) {
			// Put the alloc back where it came from rather than lose it.
			fn.CFG.AppendInstr(info.Site.Block, allocInstr)
			continue
		}
		fn.CFG.AppendInstr(loop.Preheader, allocInstr)
		sunk := map[mir.BlockID]bool{}
		for _, exiting := range loop.Exits {
			for _, succ := range fn.CFG.Blocks[exiting].Term.Successors() {
				if _, inLoop := loop.Body[succ]; inLoop || sunk[succ] {
					continue
				}
				sunk[succ] = true
				fn.CFG.AppendInstr(succ, mir.Instr{Op: mir.OpFree, Operands: []mir.ValueID{info.Dest}})
			}
		}
		count++
	}
	return count
}

// extractByDest removes and returns the instruction that defines dest
// within scope.
func extractByDest(fn *mir.Function, scope map[mir.BlockID]struct{}, dest mir.ValueID) (mir.Instr, bool) {
	for id := range scope {
		b := fn.CFG.Blocks[id]
		for i, instr := range b.Instrs {
			if instr.Dest == dest {
				out := instr
				b.Instrs = append(b.Instrs[:i], b.Instrs[i+1:]...)
				return out, true
			}
		}
	}
	return mir.Instr{}, false
}

// extractMatchingFree removes the Free instruction targeting dest (or a
// pointer derived from it) within scope. The derived set is recomputed
// here rather than reusing AnalyzeLoop's, since extractByDest may have
// already moved the Alloc out of scope by the time this runs.
func extractMatchingFree(fn *mir.Function, scope map[mir.BlockID]struct{}, dest mir.ValueID) bool {
	tracked := derivedSet(fn, scope, dest)
	for id := range scope {
		b := fn.CFG.Blocks[id]
		for i, instr := range b.Instrs {
			if instr.Op != mir.OpFree || len(instr.Operands) == 0 {
				continue
			}
			if _, ok := tracked[instr.Operands[0]]; ok {
				b.Instrs = append(b.Instrs[:i], b.Instrs[i+1:]...)
				return true
			}
		}
	}
	return false
}
