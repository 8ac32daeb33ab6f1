package optimize

import (
	"testing"

	"github.com/darmie/rayzor/internal/mir"
)

// buildLoopWithFreedAlloc builds:
//
//	int loop_alloc_free(int n) {
//	  int i = 0;
//	  while (i < n) {
//	    p = alloc(32);
//	    store(p, i);
//	    free(p);
//	    i += 1;
//	  }
//	  return i;
//	}
//
// matching spec.md §8 scenario 4: a loop-local allocation, written and
// freed within the same iteration, with no escape — AnalyzeLoop must
// report escapes=false with a unique matching free, and LICM must hoist
// the Alloc to the preheader and sink the Free to the loop exit.
func buildLoopWithFreedAlloc() (*mir.Function, *mir.Loop) {
	sig := mir.Signature{Params: []mir.Param{{Type: 1}}, Return: 1}
	fn := mir.NewFunction(0, "loop_alloc_free", sig)
	cfg := fn.CFG

	entry := cfg.Entry
	header := cfg.NewBlock()
	body := cfg.NewBlock()
	exit := cfg.NewBlock()

	n := cfg.NewValue()
	zero := cfg.NewValue()
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpConstInt, Dest: zero, IntConst: 0})
	cfg.SetTerminator(entry, mir.Terminator{Kind: mir.TermBranch, Target: header})

	iPhi := cfg.NewValue()
	cfg.Blocks[header].Phis = []mir.Phi{
		{Dest: iPhi, Incoming: []mir.PhiIncoming{{Pred: entry, Val: zero}}},
	}
	cond := cfg.NewValue()
	cfg.AppendInstr(header, mir.Instr{Op: mir.OpICmpSLT, Dest: cond, Operands: []mir.ValueID{iPhi, n}})
	cfg.SetTerminator(header, mir.Terminator{Kind: mir.TermCondBranch, Cond: cond, TrueBlock: body, FalseBlock: exit})

	p := cfg.NewValue()
	cfg.AppendInstr(body, mir.Instr{Op: mir.OpAlloc, Dest: p, ElemCount: 0, HasCount: false})
	cfg.AppendInstr(body, mir.Instr{Op: mir.OpStore, Operands: []mir.ValueID{p, iPhi}})
	cfg.AppendInstr(body, mir.Instr{Op: mir.OpFree, Operands: []mir.ValueID{p}})
	one := cfg.NewValue()
	cfg.AppendInstr(body, mir.Instr{Op: mir.OpConstInt, Dest: one, IntConst: 1})
	iNext := cfg.NewValue()
	cfg.AppendInstr(body, mir.Instr{Op: mir.OpAdd, Dest: iNext, Operands: []mir.ValueID{iPhi, one}})
	cfg.SetTerminator(body, mir.Terminator{Kind: mir.TermBranch, Target: header})

	cfg.Blocks[header].Phis[0].Incoming = append(cfg.Blocks[header].Phis[0].Incoming, mir.PhiIncoming{Pred: body, Val: iNext})

	cfg.SetTerminator(exit, mir.Terminator{Kind: mir.TermReturn, RetValue: iPhi, HasRet: true})

	loops := mir.NaturalLoops(fn)
	if len(loops) != 1 {
		panic("expected exactly one natural loop")
	}
	return fn, loops[0]
}

func TestAnalyzeLoopNonEscapingFreedAlloc(t *testing.T) {
	fn, loop := buildLoopWithFreedAlloc()
	infos := AnalyzeLoop(fn, loop)
	if len(infos) != 1 {
		t.Fatalf("expected 1 AllocInfo, got %d", len(infos))
	}
	if infos[0].Escapes {
		t.Fatal("expected escapes=false for loop-local alloc freed in the same iteration")
	}
	if !infos[0].HasFree {
		t.Fatal("expected a unique matching free to be found")
	}
}

func TestLICMHoistsAllocAndSinksFree(t *testing.T) {
	fn, loop := buildLoopWithFreedAlloc()
	res, err := LICM{}.RunOnFunction(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Modified {
		t.Fatal("expected LICM to report Modified=true")
	}
	if res.Stats["allocations_hoisted"] != 1 {
		t.Fatalf("expected 1 allocation hoisted, got %d", res.Stats["allocations_hoisted"])
	}

	foundAllocInPreheader := false
	for _, instr := range fn.CFG.Blocks[loop.Preheader].Instrs {
		if instr.Op == mir.OpAlloc {
			foundAllocInPreheader = true
		}
	}
	if !foundAllocInPreheader {
		t.Fatal("expected the Alloc to be hoisted into the loop preheader")
	}

	for _, exitingID := range loop.Exits {
		for _, exitID := range fn.CFG.Blocks[exitingID].Term.Successors() {
			if _, inLoop := loop.Body[exitID]; inLoop {
				continue
			}
			foundFree := false
			for _, instr := range fn.CFG.Blocks[exitID].Instrs {
				if instr.Op == mir.OpFree {
					foundFree = true
				}
			}
			if !foundFree {
				t.Fatalf("expected a Free sunk into exit block %d", exitID)
			}
		}
	}

	if err := mir.Validate(fn); err != nil {
		t.Fatalf("function should remain well-formed after LICM: %v", err)
	}
}

// buildEscapingStructFieldAlloc builds a function where an allocation is
// stored into a struct field, so it must be classified as escaping and
// left untouched by both AnalyzeLoop and InsertFree.
func buildEscapingStructFieldAlloc() *mir.Function {
	sig := mir.Signature{Return: 1}
	fn := mir.NewFunction(0, "make_box", sig)
	cfg := fn.CFG
	entry := cfg.Entry

	p := cfg.NewValue()
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpAlloc, Dest: p})
	box := cfg.NewValue()
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpCreateStruct, Dest: box, Operands: []mir.ValueID{p}})
	cfg.SetTerminator(entry, mir.Terminator{Kind: mir.TermReturn, RetValue: box, HasRet: true})
	return fn
}

func TestInsertFreeSkipsEscapingAlloc(t *testing.T) {
	fn := buildEscapingStructFieldAlloc()
	res, err := InsertFree{}.RunOnFunction(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Modified {
		t.Fatal("expected no Free to be inserted for an alloc that escapes into a struct field")
	}
}

// buildReturnedAlloc builds a function that allocates and returns the
// pointer directly: ownership transfers to the caller, so no Free should
// be inserted.
func buildReturnedAlloc() *mir.Function {
	sig := mir.Signature{Return: 1}
	fn := mir.NewFunction(0, "make_ptr", sig)
	cfg := fn.CFG
	entry := cfg.Entry

	p := cfg.NewValue()
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpAlloc, Dest: p})
	cfg.SetTerminator(entry, mir.Terminator{Kind: mir.TermReturn, RetValue: p, HasRet: true})
	return fn
}

func TestInsertFreeSkipsReturnedAlloc(t *testing.T) {
	fn := buildReturnedAlloc()
	res, err := InsertFree{}.RunOnFunction(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Modified {
		t.Fatal("expected no Free for a pointer returned to the caller")
	}
}

// buildLeakingAlloc builds a function that allocates, uses the pointer
// locally, and returns something else entirely — the classic leak
// InsertFree exists to patch.
func buildLeakingAlloc() *mir.Function {
	sig := mir.Signature{Return: 1}
	fn := mir.NewFunction(0, "leaky", sig)
	cfg := fn.CFG
	entry := cfg.Entry

	p := cfg.NewValue()
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpAlloc, Dest: p})
	zero := cfg.NewValue()
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpConstInt, Dest: zero, IntConst: 0})
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpStore, Operands: []mir.ValueID{p, zero}})
	cfg.SetTerminator(entry, mir.Terminator{Kind: mir.TermReturn, RetValue: zero, HasRet: true})
	return fn
}

func TestInsertFreeInsertsAndIsIdempotent(t *testing.T) {
	fn := buildLeakingAlloc()

	first, err := InsertFree{}.RunOnFunction(fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.Modified || first.InstructionsInserted != 1 {
		t.Fatalf("expected exactly 1 inserted free, got Modified=%v Inserted=%d", first.Modified, first.InstructionsInserted)
	}
	if err := mir.Validate(fn); err != nil {
		t.Fatalf("function should remain well-formed after InsertFree: %v", err)
	}

	second, err := InsertFree{}.RunOnFunction(fn)
	if err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if second.Modified {
		t.Fatal("expected InsertFree to be idempotent: a second run should insert nothing")
	}
}

func TestDoubleFreeDetectsRepeatedFreeOnSamePath(t *testing.T) {
	sig := mir.Signature{Return: 1}
	fn := mir.NewFunction(0, "double_free", sig)
	cfg := fn.CFG
	entry := cfg.Entry

	p := cfg.NewValue()
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpAlloc, Dest: p})
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpFree, Operands: []mir.ValueID{p}})
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpFree, Operands: []mir.ValueID{p}})
	zero := cfg.NewValue()
	cfg.AppendInstr(entry, mir.Instr{Op: mir.OpConstInt, Dest: zero, IntConst: 0})
	cfg.SetTerminator(entry, mir.Terminator{Kind: mir.TermReturn, RetValue: zero, HasRet: true})

	violations := DoubleFree{}.Check(fn)
	if len(violations) != 1 {
		t.Fatalf("expected 1 double-free violation, got %d", len(violations))
	}
	if err := (DoubleFree{}).Validate(fn); err == nil {
		t.Fatal("expected Validate to reject a function that frees the same pointer twice")
	}
}

func TestDoubleFreeAcceptsSingleFreePerPath(t *testing.T) {
	fn, _ := buildLoopWithFreedAlloc()
	if violations := (DoubleFree{}).Check(fn); len(violations) != 0 {
		t.Fatalf("expected no violations, got %d", len(violations))
	}
}
