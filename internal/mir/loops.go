package mir

// Dominators returns, for every block reachable from fn's entry, the set of
// blocks (including itself) that dominate it. Exposed so optimizer passes
// outside this package (escape analysis, LICM) can reuse the same
// dominance computation Validate performs internally.
func Dominators(fn *Function) map[BlockID]map[BlockID]struct{} {
	reachable := reachableBlocks(fn.CFG)
	return computeDominators(fn.CFG, reachable)
}

// Loop is a natural loop found by back-edge detection (spec.md §4.6
// "identifies natural loops from the CFG (back-edge detection)").
type Loop struct {
	Header BlockID
	Body   map[BlockID]struct{}

	// BackEdges are the predecessors of Header reached from inside Body.
	BackEdges []BlockID

	// Preheader is Header's unique predecessor outside Body, if exactly
	// one exists; hoisting targets this block.
	Preheader    BlockID
	HasPreheader bool

	// Exits are the Body blocks with at least one successor outside Body;
	// sunk frees are placed in those successors outside Body.
	Exits []BlockID
}

// NaturalLoops finds every natural loop in fn: an edge (n -> h) where h
// dominates n is a back-edge, and the loop body is every block that can
// reach n by walking predecessors without passing back through h.
func NaturalLoops(fn *Function) []*Loop {
	reachable := reachableBlocks(fn.CFG)
	doms := computeDominators(fn.CFG, reachable)

	byHeader := make(map[BlockID]*Loop)
	var order []BlockID

	for id := range reachable {
		b := fn.CFG.Blocks[id]
		if !b.HasTerm {
			continue
		}
		for _, succ := range b.Term.Successors() {
			if _, dominates := doms[id][succ]; !dominates {
				continue
			}
			loop, ok := byHeader[succ]
			if !ok {
				loop = &Loop{Header: succ, Body: map[BlockID]struct{}{succ: {}}}
				byHeader[succ] = loop
				order = append(order, succ)
			}
			loop.BackEdges = append(loop.BackEdges, id)
			growLoopBody(fn.CFG, loop, id)
		}
	}

	loops := make([]*Loop, 0, len(order))
	for _, h := range order {
		loop := byHeader[h]
		loop.Preheader, loop.HasPreheader = findPreheader(fn.CFG, loop)
		loop.Exits = findExits(fn.CFG, loop)
		loops = append(loops, loop)
	}
	return loops
}

// growLoopBody walks predecessors backward from a back-edge source,
// stopping whenever it reaches a block already in the body (the header is
// pre-seeded, so the walk naturally halts there).
func growLoopBody(cfg *CFG, loop *Loop, from BlockID) {
	if _, ok := loop.Body[from]; ok {
		return
	}
	loop.Body[from] = struct{}{}
	stack := []BlockID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range cfg.Blocks[id].Preds {
			if _, ok := loop.Body[p]; !ok {
				loop.Body[p] = struct{}{}
				stack = append(stack, p)
			}
		}
	}
}

func findPreheader(cfg *CFG, loop *Loop) (BlockID, bool) {
	var outside []BlockID
	for _, p := range cfg.Blocks[loop.Header].Preds {
		if _, inBody := loop.Body[p]; !inBody {
			outside = append(outside, p)
		}
	}
	if len(outside) == 1 {
		return outside[0], true
	}
	return 0, false
}

func findExits(cfg *CFG, loop *Loop) []BlockID {
	var exits []BlockID
	for id := range loop.Body {
		b := cfg.Blocks[id]
		if !b.HasTerm {
			continue
		}
		for _, succ := range b.Term.Successors() {
			if _, inBody := loop.Body[succ]; !inBody {
				exits = append(exits, id)
				break
			}
		}
	}
	return exits
}
