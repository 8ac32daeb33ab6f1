package ssa

import (
	"testing"

	"github.com/darmie/rayzor/internal/hir"
	"github.com/darmie/rayzor/internal/mir"
	"github.com/darmie/rayzor/internal/symtab"
	"github.com/darmie/rayzor/internal/tast"
)

// buildSumToNFile constructs the typed AST for:
//
//	function sum_to_n(n: int): int {
//	  var acc = 0;
//	  var i = 0;
//	  while (i < n) {
//	    acc = acc + i;
//	    i = i + 1;
//	  }
//	  return acc;
//	}
//
// matching spec.md §8's end-to-end scenario: a loop with two live-out
// variables, each needing its own ϕ-node at the header.
func buildSumToNFile() *tast.File {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	types := symtab.NewTypes()
	intTy := types.Primitive(symtab.PrimInt)

	fnSym := st.Declare(in.Intern("sum_to_n"), symtab.KindFunction, 0)
	nSym := st.Declare(in.Intern("n"), symtab.KindParameter, 0)
	accSym := st.Declare(in.Intern("acc"), symtab.KindLocal, 0)
	iSym := st.Declare(in.Intern("i"), symtab.KindLocal, 0)
	loopSym := st.Declare(in.Intern("$loop0"), symtab.KindLocal, 0)

	ident := func(sym symtab.SymbolID) *tast.Expr { return &tast.Expr{Kind: tast.ExprIdent, Sym: sym} }
	intLit := func(v int64) *tast.Expr { return &tast.Expr{Kind: tast.ExprIntLit, IntConst: v} }

	fd := &tast.FuncDecl{
		Sym: fnSym, Name: "sum_to_n", Return: intTy,
		Params: []tast.Param{{Sym: nSym, Type: intTy}},
		Body: []*tast.Stmt{
			{Kind: tast.StmtVarDecl, VarSym: accSym, VarType: intTy, HasInit: true, Init: intLit(0)},
			{Kind: tast.StmtVarDecl, VarSym: iSym, VarType: intTy, HasInit: true, Init: intLit(0)},
			{
				Kind: tast.StmtWhile, LoopLabel: loopSym,
				Cond: &tast.Expr{Kind: tast.ExprBinOp, Op: tast.BinLt, LHS: ident(iSym), RHS: ident(nSym)},
				Body: []*tast.Stmt{
					{Kind: tast.StmtExpr, Expr: &tast.Expr{
						Kind: tast.ExprAssign, Target: ident(accSym),
						Value: &tast.Expr{Kind: tast.ExprBinOp, Op: tast.BinAdd, LHS: ident(accSym), RHS: ident(iSym)},
					}},
					{Kind: tast.StmtExpr, Expr: &tast.Expr{
						Kind: tast.ExprAssign, Target: ident(iSym),
						Value: &tast.Expr{Kind: tast.ExprBinOp, Op: tast.BinAdd, LHS: ident(iSym), RHS: intLit(1)},
					}},
				},
			},
			{Kind: tast.StmtReturn, HasRet: true, RetValue: ident(accSym)},
		},
	}

	return &tast.File{Symtab: st, Types: types, Functions: []*tast.FuncDecl{fd}}
}

func TestBuildSumToNProducesValidSSA(t *testing.T) {
	hmod, err := hir.Lower(buildSumToNFile())
	if err != nil {
		t.Fatalf("hir.Lower failed: %v", err)
	}

	mmod, err := Build(hmod)
	if err != nil {
		t.Fatalf("ssa.Build failed: %v", err)
	}
	if len(mmod.Functions) != 1 {
		t.Fatalf("expected one function, got %d", len(mmod.Functions))
	}
	fn := mmod.Functions[0]

	if err := mir.Validate(fn); err != nil {
		t.Fatalf("expected valid MIR, got: %v", err)
	}

	var header *mir.Block
	for _, b := range fn.CFG.Blocks {
		if len(b.Phis) > 0 {
			header = b
		}
	}
	if header == nil {
		t.Fatal("expected a header block with phi nodes")
	}
	if len(header.Phis) != 2 {
		t.Fatalf("expected two phis (acc and i), got %d", len(header.Phis))
	}
	for _, phi := range header.Phis {
		if len(phi.Incoming) != 2 {
			t.Fatalf("expected each phi to have exactly two incoming edges (preloop + backedge), got %d", len(phi.Incoming))
		}
	}
}

func TestBuildLowersCallToUndeclaredCalleeAsExtern(t *testing.T) {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	types := symtab.NewTypes()
	intTy := types.Primitive(symtab.PrimInt)

	fnSym := st.Declare(in.Intern("callsOut"), symtab.KindFunction, 0)
	externSym := st.Declare(in.Intern("platform_now"), symtab.KindFunction, 0)

	fd := &tast.FuncDecl{
		Sym: fnSym, Name: "callsOut", Return: intTy,
		Body: []*tast.Stmt{
			{Kind: tast.StmtReturn, HasRet: true, RetValue: &tast.Expr{
				Kind: tast.ExprCall, Callee: externSym,
			}},
		},
	}
	file := &tast.File{Symtab: st, Types: types, Functions: []*tast.FuncDecl{fd}}

	hmod, err := hir.Lower(file)
	if err != nil {
		t.Fatalf("hir.Lower failed: %v", err)
	}
	mmod, err := Build(hmod)
	if err != nil {
		t.Fatalf("ssa.Build failed: %v", err)
	}

	fn := mmod.Functions[0]
	found := false
	for _, b := range fn.CFG.Blocks {
		for _, instr := range b.Instrs {
			if instr.Op == mir.OpCallDirect && instr.IsExtern {
				if instr.ExternName != "platform_now" {
					t.Fatalf("expected extern name %q, got %q", "platform_now", instr.ExternName)
				}
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected the undeclared callee to be lowered as an extern call")
	}
}
