package optimize

import "github.com/darmie/rayzor/internal/mir"

// Site locates one instruction within a function's CFG.
type Site struct {
	Block mir.BlockID
	Index int // position within Block's Instrs
}

// AllocInfo is the result of escape analysis for one allocation (spec.md
// §4.4 "the analysis reports, per allocation, {escapes: bool,
// matching-free: optional location}").
type AllocInfo struct {
	Dest     mir.ValueID
	Site     Site
	Escapes  bool
	HasFree  bool
	FreeSite Site
}

// derivedSet builds the transitive closure of values derived from root by
// repeated closure under {PtrAdd, GetElementPtr, cast, bitcast, copy},
// restricted to the given blocks (nil means the whole function). Grounded
// on original_source/compiler/src/ir/escape_analysis.rs's
// build_tracked_pointers and insert_free.rs's build_derived_set, which are
// the same fixpoint iteration applied at loop scope and function scope
// respectively.
func derivedSet(fn *mir.Function, blocks map[mir.BlockID]struct{}, root mir.ValueID) map[mir.ValueID]struct{} {
	tracked := map[mir.ValueID]struct{}{root: {}}

	changed := true
	for changed {
		changed = false
		for id, b := range fn.CFG.Blocks {
			if blocks != nil {
				if _, in := blocks[id]; !in {
					continue
				}
			}
			for _, instr := range b.Instrs {
				var derivedFrom mir.ValueID
				var ok bool
				switch instr.Op {
				case mir.OpPtrAdd, mir.OpGetElementPtr, mir.OpIntCast, mir.OpFloatCast, mir.OpBitCast, mir.OpCopy:
					if len(instr.Operands) > 0 {
						if _, tr := tracked[instr.Operands[0]]; tr {
							derivedFrom, ok = instr.Dest, true
						}
					}
				}
				if ok {
					if _, already := tracked[derivedFrom]; !already {
						tracked[derivedFrom] = struct{}{}
						changed = true
					}
				}
			}
		}
	}
	return tracked
}

// escapeContext parameterizes the ϕ-node escape condition (spec.md §4.4
// condition viii): inside a loop only a back-edge-sourced incoming value
// escapes, but insert_free.rs's whole-function variant conservatively
// treats membership in ANY ϕ-node as escaping, since there's no enclosing
// loop to scope the check to.
type escapeContext struct {
	loop *mir.Loop // nil for whole-function analysis
}

// escapes reports whether any value in tracked satisfies one of spec.md
// §4.4's escape conditions, restricted to the blocks in scope (nil = whole
// function).
func escapes(fn *mir.Function, scope map[mir.BlockID]struct{}, tracked map[mir.ValueID]struct{}, ctx escapeContext) bool {
	inTracked := func(v mir.ValueID) bool {
		_, ok := tracked[v]
		return ok
	}
	anyTracked := func(vs []mir.ValueID) bool {
		for _, v := range vs {
			if inTracked(v) {
				return true
			}
		}
		return false
	}

	backEdges := map[mir.BlockID]struct{}{}
	if ctx.loop != nil {
		for _, be := range ctx.loop.BackEdges {
			backEdges[be] = struct{}{}
		}
	}

	for id, b := range fn.CFG.Blocks {
		if scope != nil {
			if _, in := scope[id]; !in {
				continue
			}
		}

		if ctx.loop != nil && id == ctx.loop.Header {
			for _, phi := range b.Phis {
				for _, in := range phi.Incoming {
					if _, isBackEdge := backEdges[in.Pred]; isBackEdge && inTracked(in.Val) {
						return true // (viii): crosses the loop back-edge via a phi
					}
				}
			}
		} else if ctx.loop == nil {
			for _, phi := range b.Phis {
				for _, in := range phi.Incoming {
					if inTracked(in.Val) {
						return true
					}
				}
			}
		}

		for _, instr := range b.Instrs {
			switch instr.Op {
			case mir.OpStore:
				if len(instr.Operands) == 2 && inTracked(instr.Operands[1]) {
					return true // (i): stored as the value operand, not the address
				}
			case mir.OpCallDirect:
				if anyTracked(instr.Operands) {
					return true // (ii): passed as a call argument
				}
			case mir.OpCallIndirect:
				if anyTracked(instr.Operands) {
					return true // (ii): includes the indirect function pointer operand
				}
			case mir.OpCreateStruct:
				if anyTracked(instr.Operands) {
					return true // (iii): placed into a struct
				}
			case mir.OpStoreGlobal:
				if len(instr.Operands) > 0 && inTracked(instr.Operands[0]) {
					return true // (iv): stored to a global
				}
			case mir.OpMemCopy:
				if len(instr.Operands) > 1 && inTracked(instr.Operands[1]) {
					return true // (v): source of a memory copy
				}
			case mir.OpMakeClosure:
				if anyTracked(instr.Operands) {
					return true // (vi): captured into a closure
				}
			case mir.OpThrow:
				if anyTracked(instr.Operands) {
					return true // (ix): thrown
				}
			}
		}

		if b.HasTerm {
			switch b.Term.Kind {
			case mir.TermReturn:
				if b.Term.HasRet && inTracked(b.Term.RetValue) {
					return true // (vii): returned
				}
			case mir.TermNoReturnCall:
				if anyTracked(b.Term.Args) {
					return true // (ix): thrown via a no-return call terminator
				}
			}
		}
	}
	return false
}

// findFree returns the unique Free instruction site targeting any value in
// tracked, restricted to scope. Zero or more than one match is reported by
// HasFree=false, per spec.md §4.4 "zero or more than one matching free
// causes the allocation to be treated as escaping".
func findFree(fn *mir.Function, scope map[mir.BlockID]struct{}, tracked map[mir.ValueID]struct{}) (Site, bool) {
	var found Site
	count := 0
	for id, b := range fn.CFG.Blocks {
		if scope != nil {
			if _, in := scope[id]; !in {
				continue
			}
		}
		for i, instr := range b.Instrs {
			if instr.Op != mir.OpFree {
				continue
			}
			if len(instr.Operands) == 0 {
				continue
			}
			if _, ok := tracked[instr.Operands[0]]; ok {
				found = Site{Block: id, Index: i}
				count++
			}
		}
	}
	return found, count == 1
}

// AnalyzeLoop runs escape analysis on every Alloc inside loop's body
// (spec.md §4.4). An allocation with a dynamically-sized element count
// whose count value is itself defined inside the loop is conservatively
// marked escaping without further analysis (spec.md §4.4 last sentence).
func AnalyzeLoop(fn *mir.Function, loop *mir.Loop) []AllocInfo {
	var results []AllocInfo
	for id := range loop.Body {
		b := fn.CFG.Blocks[id]
		for idx, instr := range b.Instrs {
			if instr.Op != mir.OpAlloc {
				continue
			}
			site := Site{Block: id, Index: idx}
			if instr.HasCount && definedInBlocks(fn, loop.Body, instr.ElemCount) {
				results = append(results, AllocInfo{Dest: instr.Dest, Site: site, Escapes: true})
				continue
			}
			results = append(results, analyzeOne(fn, loop.Body, instr.Dest, site, escapeContext{loop: loop}))
		}
	}
	return results
}

func analyzeOne(fn *mir.Function, scope map[mir.BlockID]struct{}, dest mir.ValueID, site Site, ctx escapeContext) AllocInfo {
	tracked := derivedSet(fn, scope, dest)
	if escapes(fn, scope, tracked, ctx) {
		return AllocInfo{Dest: dest, Site: site, Escapes: true}
	}
	freeSite, ok := findFree(fn, scope, tracked)
	if !ok {
		return AllocInfo{Dest: dest, Site: site, Escapes: true}
	}
	return AllocInfo{Dest: dest, Site: site, Escapes: false, HasFree: true, FreeSite: freeSite}
}

func definedInBlocks(fn *mir.Function, blocks map[mir.BlockID]struct{}, v mir.ValueID) bool {
	for id := range blocks {
		b := fn.CFG.Blocks[id]
		for _, phi := range b.Phis {
			if phi.Dest == v {
				return true
			}
		}
		for _, instr := range b.Instrs {
			for _, d := range instr.Dests() {
				if d == v {
					return true
				}
			}
		}
	}
	return false
}
