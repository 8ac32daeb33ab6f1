package mir

import "fmt"

// CfgMalformed reports a control-flow or SSA-form violation detected by
// Validate (spec.md §4.7).
type CfgMalformed struct {
	Function string
	Block    BlockID
	Reason   string
}

func (e *CfgMalformed) Error() string {
	return fmt.Sprintf("mir: function %q block %d malformed: %s", e.Function, e.Block, e.Reason)
}

// Validate checks a function's control-flow graph and SSA form:
//
//   - every block reachable from the entry is terminated exactly once
//   - every successor named by a terminator is a block that exists
//   - the entry block has no predecessors
//   - every ϕ-node incoming edge names a predecessor that actually precedes
//     its owning block, and every predecessor of a block with ϕ-nodes is
//     covered by each ϕ-node's incoming set
//   - every value used is dominated by its definition
//
// (spec.md §4.7 "MIR Validator").
func Validate(fn *Function) error {
	reachable := reachableBlocks(fn.CFG)

	for id := range reachable {
		b := fn.CFG.Blocks[id]
		if !b.HasTerm {
			return &CfgMalformed{fn.Name, id, "block has no terminator"}
		}
		for _, succ := range b.Term.Successors() {
			if _, ok := fn.CFG.Blocks[succ]; !ok {
				return &CfgMalformed{fn.Name, id, fmt.Sprintf("terminator names nonexistent successor %d", succ)}
			}
		}
	}

	if len(fn.CFG.Blocks[fn.CFG.Entry].Preds) != 0 {
		return &CfgMalformed{fn.Name, fn.CFG.Entry, "entry block has predecessors"}
	}

	for id := range reachable {
		b := fn.CFG.Blocks[id]
		predSet := make(map[BlockID]struct{}, len(b.Preds))
		for _, p := range b.Preds {
			predSet[p] = struct{}{}
		}
		for _, phi := range b.Phis {
			incomingSet := make(map[BlockID]struct{}, len(phi.Incoming))
			for _, in := range phi.Incoming {
				if _, ok := predSet[in.Pred]; !ok {
					return &CfgMalformed{fn.Name, id, fmt.Sprintf("phi %d names non-predecessor block %d as incoming", phi.Dest, in.Pred)}
				}
				incomingSet[in.Pred] = struct{}{}
			}
			for p := range predSet {
				if _, ok := incomingSet[p]; !ok {
					return &CfgMalformed{fn.Name, id, fmt.Sprintf("phi %d missing incoming value for predecessor %d", phi.Dest, p)}
				}
			}
		}
	}

	doms := computeDominators(fn.CFG, reachable)
	if err := checkDominance(fn, reachable, doms); err != nil {
		return err
	}

	return nil
}

func reachableBlocks(cfg *CFG) map[BlockID]struct{} {
	seen := map[BlockID]struct{}{cfg.Entry: {}}
	worklist := []BlockID{cfg.Entry}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		b, ok := cfg.Blocks[id]
		if !ok || !b.HasTerm {
			continue
		}
		for _, succ := range b.Term.Successors() {
			if _, ok := seen[succ]; !ok {
				seen[succ] = struct{}{}
				worklist = append(worklist, succ)
			}
		}
	}
	return seen
}

// computeDominators runs the standard iterative dataflow dominator
// algorithm (Cooper, Harvey & Kennedy) restricted to the reachable set.
func computeDominators(cfg *CFG, reachable map[BlockID]struct{}) map[BlockID]map[BlockID]struct{} {
	order := make([]BlockID, 0, len(reachable))
	for id := range reachable {
		order = append(order, id)
	}

	all := make(map[BlockID]struct{}, len(order))
	for id := range reachable {
		all[id] = struct{}{}
	}

	doms := make(map[BlockID]map[BlockID]struct{}, len(order))
	for id := range reachable {
		doms[id] = cloneSet(all)
	}
	doms[cfg.Entry] = map[BlockID]struct{}{cfg.Entry: {}}

	changed := true
	for changed {
		changed = false
		for _, id := range order {
			if id == cfg.Entry {
				continue
			}
			b := cfg.Blocks[id]
			var preds []BlockID
			for _, p := range b.Preds {
				if _, ok := reachable[p]; ok {
					preds = append(preds, p)
				}
			}
			if len(preds) == 0 {
				continue
			}
			newSet := cloneSet(doms[preds[0]])
			for _, p := range preds[1:] {
				intersectInPlace(newSet, doms[p])
			}
			newSet[id] = struct{}{}
			if !setEqual(newSet, doms[id]) {
				doms[id] = newSet
				changed = true
			}
		}
	}
	return doms
}

func cloneSet(s map[BlockID]struct{}) map[BlockID]struct{} {
	out := make(map[BlockID]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func intersectInPlace(a, b map[BlockID]struct{}) {
	for k := range a {
		if _, ok := b[k]; !ok {
			delete(a, k)
		}
	}
}

func setEqual(a, b map[BlockID]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// checkDominance verifies every value use is dominated by its defining
// instruction or ϕ-node.
func checkDominance(fn *Function, reachable map[BlockID]struct{}, doms map[BlockID]map[BlockID]struct{}) error {
	defBlock := make(map[ValueID]BlockID)
	defIndex := make(map[ValueID]int) // position within the defining block; phis are index -1

	for id := range reachable {
		b := fn.CFG.Blocks[id]
		for _, phi := range b.Phis {
			defBlock[phi.Dest] = id
			defIndex[phi.Dest] = -1
		}
		for i, instr := range b.Instrs {
			for _, d := range instr.Dests() {
				defBlock[d] = id
				defIndex[d] = i
			}
		}
	}

	dominates := func(defB, useB BlockID) bool {
		_, ok := doms[useB][defB]
		return ok
	}

	checkUse := func(blockID BlockID, useIndex int, use ValueID) error {
		db, ok := defBlock[use]
		if !ok {
			return nil // parameter or pre-existing value outside this function's local defs
		}
		if db == blockID {
			di := defIndex[use]
			if di == -1 || di < useIndex {
				return nil
			}
			return &CfgMalformed{fn.Name, blockID, fmt.Sprintf("value %d used before its definition in the same block", use)}
		}
		if dominates(db, blockID) {
			return nil
		}
		return &CfgMalformed{fn.Name, blockID, fmt.Sprintf("value %d used in block %d not dominated by its definition in block %d", use, blockID, db)}
	}

	for id := range reachable {
		b := fn.CFG.Blocks[id]
		for _, phi := range b.Phis {
			for _, in := range phi.Incoming {
				if _, ok := reachable[in.Pred]; !ok {
					continue
				}
				if err := checkUse(in.Pred, len(fn.CFG.Blocks[in.Pred].Instrs), in.Val); err != nil {
					return err
				}
			}
		}
		for i, instr := range b.Instrs {
			for _, use := range instr.Uses() {
				if err := checkUse(id, i, use); err != nil {
					return err
				}
			}
		}
		if b.HasTerm && b.Term.Kind == TermReturn && b.Term.HasRet {
			if err := checkUse(id, len(b.Instrs), b.Term.RetValue); err != nil {
				return err
			}
		}
		if b.HasTerm && b.Term.Kind == TermCondBranch {
			if err := checkUse(id, len(b.Instrs), b.Term.Cond); err != nil {
				return err
			}
		}
		if b.HasTerm && b.Term.Kind == TermSwitch {
			if err := checkUse(id, len(b.Instrs), b.Term.SwitchValue); err != nil {
				return err
			}
		}
		if b.HasTerm && b.Term.Kind == TermNoReturnCall {
			for _, a := range b.Term.Args {
				if err := checkUse(id, len(b.Instrs), a); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
