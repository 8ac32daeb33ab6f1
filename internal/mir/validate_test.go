package mir

import "testing"

func buildSumToN() *Function {
	// int sum_to_n(int n) {
	//   int acc = 0; int i = 0;
	//   while (i < n) { acc += i; i += 1; }
	//   return acc;
	// }
	sig := Signature{Params: []Param{{Type: 1}}, Return: 1}
	fn := NewFunction(0, "sum_to_n", sig)
	cfg := fn.CFG

	entry := cfg.Entry
	header := cfg.NewBlock()
	body := cfg.NewBlock()
	exit := cfg.NewBlock()

	n := cfg.NewValue() // param
	zero := cfg.NewValue()
	cfg.AppendInstr(entry, Instr{Op: OpConstInt, Dest: zero, IntConst: 0})
	zero2 := cfg.NewValue()
	cfg.AppendInstr(entry, Instr{Op: OpConstInt, Dest: zero2, IntConst: 0})
	cfg.SetTerminator(entry, Terminator{Kind: TermBranch, Target: header})

	accPhi := cfg.NewValue()
	iPhi := cfg.NewValue()
	cfg.Blocks[header].Phis = []Phi{
		{Dest: accPhi, Incoming: []PhiIncoming{{Pred: entry, Val: zero}}},
		{Dest: iPhi, Incoming: []PhiIncoming{{Pred: entry, Val: zero2}}},
	}
	cond := cfg.NewValue()
	cfg.AppendInstr(header, Instr{Op: OpICmpSLT, Dest: cond, Operands: []ValueID{iPhi, n}})
	cfg.SetTerminator(header, Terminator{Kind: TermCondBranch, Cond: cond, TrueBlock: body, FalseBlock: exit})

	accNext := cfg.NewValue()
	cfg.AppendInstr(body, Instr{Op: OpAdd, Dest: accNext, Operands: []ValueID{accPhi, iPhi}})
	one := cfg.NewValue()
	cfg.AppendInstr(body, Instr{Op: OpConstInt, Dest: one, IntConst: 1})
	iNext := cfg.NewValue()
	cfg.AppendInstr(body, Instr{Op: OpAdd, Dest: iNext, Operands: []ValueID{iPhi, one}})
	cfg.SetTerminator(body, Terminator{Kind: TermBranch, Target: header})

	cfg.Blocks[header].Phis[0].Incoming = append(cfg.Blocks[header].Phis[0].Incoming, PhiIncoming{Pred: body, Val: accNext})
	cfg.Blocks[header].Phis[1].Incoming = append(cfg.Blocks[header].Phis[1].Incoming, PhiIncoming{Pred: body, Val: iNext})

	cfg.SetTerminator(exit, Terminator{Kind: TermReturn, RetValue: accPhi, HasRet: true})

	return fn
}

func TestValidateSumToNWellFormed(t *testing.T) {
	fn := buildSumToN()
	if err := Validate(fn); err != nil {
		t.Fatalf("expected well-formed sum_to_n, got: %v", err)
	}
}

func TestValidateCatchesMissingTerminator(t *testing.T) {
	fn := buildSumToN()
	victim := anyNonEntryBlock(fn)
	fn.CFG.Blocks[victim].HasTerm = false
	err := Validate(fn)
	if err == nil {
		t.Fatal("expected CfgMalformed for unterminated block")
	}
	if _, ok := err.(*CfgMalformed); !ok {
		t.Fatalf("expected *CfgMalformed, got %T", err)
	}
}

func anyNonEntryBlock(fn *Function) BlockID {
	for id := range fn.CFG.Blocks {
		if id != fn.CFG.Entry {
			return id
		}
	}
	panic("function has only an entry block")
}

func TestValidateCatchesPhiMissingPredecessor(t *testing.T) {
	fn := buildSumToN()
	for id, b := range fn.CFG.Blocks {
		if len(b.Phis) > 0 {
			fn.CFG.Blocks[id].Phis[0].Incoming = b.Phis[0].Incoming[:1]
			break
		}
	}
	if err := Validate(fn); err == nil {
		t.Fatal("expected CfgMalformed for phi missing a predecessor's incoming value")
	}
}

func TestValidateCatchesUseNotDominated(t *testing.T) {
	fn := buildSumToN()
	// A value defined only in the exit block does not dominate the loop
	// header, since exit does not dominate header in this CFG.
	var headerID BlockID
	for id, b := range fn.CFG.Blocks {
		if len(b.Phis) > 0 {
			headerID = id
			break
		}
	}
	var exitID BlockID
	for id, b := range fn.CFG.Blocks {
		if b.HasTerm && b.Term.Kind == TermReturn {
			exitID = id
			break
		}
	}
	definedInExit := fn.CFG.NewValue()
	fn.CFG.Blocks[exitID].Instrs = append([]Instr{{Op: OpConstInt, Dest: definedInExit, IntConst: 7}}, fn.CFG.Blocks[exitID].Instrs...)
	fn.CFG.Blocks[headerID].Instrs = append(fn.CFG.Blocks[headerID].Instrs,
		Instr{Op: OpAdd, Dest: fn.CFG.NewValue(), Operands: []ValueID{definedInExit, definedInExit}})

	if err := Validate(fn); err == nil {
		t.Fatal("expected CfgMalformed: header use of a value defined only in exit is not dominated")
	}
}

