package optimize

import "github.com/darmie/rayzor/internal/mir"

// InsertFree is the free-insertion pass of spec.md §4.5: for every
// allocation (an Alloc instruction, or a direct call to the runtime's
// malloc primitive) that is not already paired with a matching free and
// does not escape the function, it inserts a Free at every return block —
// skipping a return whose returned value is itself in the allocation's
// derived set, since ownership transfers to the caller there. Grounded on
// original_source/compiler/src/ir/insert_free.rs.
type InsertFree struct{}

func (InsertFree) Name() string { return "InsertFree" }

// allocSite is one pointer-producing instruction: either Alloc or a direct
// call to the runtime malloc primitive.
type allocSite struct {
	dest mir.ValueID
	site Site
}

func (InsertFree) RunOnFunction(fn *mir.Function) (Result, error) {
	if len(fn.CFG.Blocks) == 0 {
		return Unchanged(), nil
	}

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
	if len(sites) == 0 {
		return Unchanged(), nil
	}

	type candidate struct {
		dest    mir.ValueID
		tracked map[mir.ValueID]struct{}
	}
	var needsFree []candidate
	for _, s := range sites {
		tracked := derivedSet(fn, nil, s.dest)
		if hasExistingFree(fn, tracked) {
			continue
		}
		if escapes(fn, nil, tracked, escapeContext{}) {
			continue
		}
		needsFree = append(needsFree, candidate{s.dest, tracked})
	}
	if len(needsFree) == 0 {
		return Unchanged(), nil
	}

	inserted := 0
	for id, b := range fn.CFG.Blocks {
		if !b.HasTerm || b.Term.Kind != mir.TermReturn {
			continue
		}
		for _, c := range needsFree {
			if b.Term.HasRet {
				if _, returned := c.tracked[b.Term.RetValue]; returned {
					continue // ownership transfers to the caller
				}
			}
			fn.CFG.AppendInstr(id, mir.Instr{Op: mir.OpFree, Operands: []mir.ValueID{c.dest}})
			inserted++
		}
	}

	if inserted == 0 {
		return Unchanged(), nil
	}
	return Result{Modified: true, InstructionsInserted: inserted, Stats: map[string]int{"free_instructions_inserted": inserted}}, nil
}

// hasExistingFree reports whether any value in tracked is already freed,
// either by a Free instruction or a direct call to the runtime free
// primitive.
func hasExistingFree(fn *mir.Function, tracked map[mir.ValueID]struct{}) bool {
	for _, b := range fn.CFG.Blocks {
		for _, instr := range b.Instrs {
			switch {
			case instr.Op == mir.OpFree:
				if len(instr.Operands) > 0 {
					if _, ok := tracked[instr.Operands[0]]; ok {
						return true
					}
				}
			case instr.Op == mir.OpCallDirect && instr.IsExtern && instr.ExternName == "free":
				for _, a := range instr.Operands {
					if _, ok := tracked[a]; ok {
						return true
					}
				}
			}
		}
	}
	return false
}
