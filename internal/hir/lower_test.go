package hir

import (
	"testing"

	"github.com/darmie/rayzor/internal/symtab"
	"github.com/darmie/rayzor/internal/tast"
)

// buildMaxFile constructs the typed AST for:
//
//	function max(a: int, b: int): int {
//	  if (a > b) { return a; } else { return b; }
//	}
func buildMaxFile() (*tast.File, symtab.SymbolID, symtab.SymbolID) {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	types := symtab.NewTypes()
	intTy := types.Primitive(symtab.PrimInt)

	fnSym := st.Declare(in.Intern("max"), symtab.KindFunction, 0)
	aSym := st.Declare(in.Intern("a"), symtab.KindParameter, 0)
	bSym := st.Declare(in.Intern("b"), symtab.KindParameter, 0)

	fd := &tast.FuncDecl{
		Sym:    fnSym,
		Name:   "max",
		Return: intTy,
		Params: []tast.Param{
			{Sym: aSym, Type: intTy},
			{Sym: bSym, Type: intTy},
		},
		Body: []*tast.Stmt{
			{
				Kind: tast.StmtIf,
				Cond: &tast.Expr{
					Kind: tast.ExprBinOp, Op: tast.BinGt,
					LHS: &tast.Expr{Kind: tast.ExprIdent, Sym: aSym},
					RHS: &tast.Expr{Kind: tast.ExprIdent, Sym: bSym},
				},
				Body: []*tast.Stmt{
					{Kind: tast.StmtReturn, HasRet: true, RetValue: &tast.Expr{Kind: tast.ExprIdent, Sym: aSym}},
				},
				HasElse: true,
				Else: []*tast.Stmt{
					{Kind: tast.StmtReturn, HasRet: true, RetValue: &tast.Expr{Kind: tast.ExprIdent, Sym: bSym}},
				},
			},
		},
	}

	file := &tast.File{Symtab: st, Types: types, Functions: []*tast.FuncDecl{fd}}
	return file, aSym, bSym
}

func TestLowerMaxProducesIfElseBlocks(t *testing.T) {
	file, _, _ := buildMaxFile()
	mod, err := Lower(file)
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("expected one function, got %d", len(mod.Functions))
	}
	fn := mod.Functions[0]

	// Count only blocks reachable from the entry: statements after a return
	// land in dead blocks, and the unreachable join gets the implicit
	// fall-through return.
	reachable := map[BlockID]bool{fn.Entry: true}
	work := []BlockID{fn.Entry}
	for len(work) > 0 {
		b := fn.Blocks[work[len(work)-1]]
		work = work[:len(work)-1]
		if !b.HasTerm {
			continue
		}
		for _, s := range b.Term.Successors() {
			if !reachable[s] {
				reachable[s] = true
				work = append(work, s)
			}
		}
	}

	returnCount := 0
	for id, b := range fn.Blocks {
		if reachable[id] && b.HasTerm && b.Term.Kind == TermReturn {
			returnCount++
		}
	}
	if returnCount != 2 {
		t.Fatalf("expected two return blocks (then/else), got %d", returnCount)
	}

	for id, b := range fn.Blocks {
		if !b.HasTerm {
			t.Fatalf("block %d has no terminator", id)
		}
	}
}

// buildLoopFile constructs:
//
//	function countUp(n: int): int {
//	  var i = 0;
//	  while (i < n) {
//	    i = i + 1;
//	  }
//	  return i;
//	}
func buildLoopFile() *tast.File {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	types := symtab.NewTypes()
	intTy := types.Primitive(symtab.PrimInt)

	fnSym := st.Declare(in.Intern("countUp"), symtab.KindFunction, 0)
	nSym := st.Declare(in.Intern("n"), symtab.KindParameter, 0)
	iSym := st.Declare(in.Intern("i"), symtab.KindLocal, 0)
	loopSym := st.Declare(in.Intern("$loop0"), symtab.KindLocal, 0)

	fd := &tast.FuncDecl{
		Sym:    fnSym,
		Name:   "countUp",
		Return: intTy,
		Params: []tast.Param{{Sym: nSym, Type: intTy}},
		Body: []*tast.Stmt{
			{Kind: tast.StmtVarDecl, VarSym: iSym, VarType: intTy, HasInit: true, Init: &tast.Expr{Kind: tast.ExprIntLit, IntConst: 0}},
			{
				Kind:      tast.StmtWhile,
				LoopLabel: loopSym,
				Cond: &tast.Expr{
					Kind: tast.ExprBinOp, Op: tast.BinLt,
					LHS: &tast.Expr{Kind: tast.ExprIdent, Sym: iSym},
					RHS: &tast.Expr{Kind: tast.ExprIdent, Sym: nSym},
				},
				Body: []*tast.Stmt{
					{
						Kind: tast.StmtExpr,
						Expr: &tast.Expr{
							Kind:   tast.ExprAssign,
							Target: &tast.Expr{Kind: tast.ExprIdent, Sym: iSym},
							Value: &tast.Expr{
								Kind: tast.ExprBinOp, Op: tast.BinAdd,
								LHS: &tast.Expr{Kind: tast.ExprIdent, Sym: iSym},
								RHS: &tast.Expr{Kind: tast.ExprIntLit, IntConst: 1},
							},
						},
					},
				},
			},
			{Kind: tast.StmtReturn, HasRet: true, RetValue: &tast.Expr{Kind: tast.ExprIdent, Sym: iSym}},
		},
	}

	return &tast.File{Symtab: st, Types: types, Functions: []*tast.FuncDecl{fd}}
}

func TestLowerWhileLoopHasHeaderAndBackEdge(t *testing.T) {
	mod, err := Lower(buildLoopFile())
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	fn := mod.Functions[0]

	var header *Block
	for _, b := range fn.Blocks {
		if b.Meta.IsLoopHeader {
			header = b
		}
	}
	if header == nil {
		t.Fatal("expected a block marked as loop header")
	}
	if header.Term.Kind != TermCondBranch {
		t.Fatalf("expected loop header to end in a conditional branch, got %v", header.Term.Kind)
	}

	backEdgeFound := false
	for _, b := range fn.Blocks {
		if b.HasTerm && b.Term.Kind == TermBranch && b.Term.Target == header.ID {
			backEdgeFound = true
		}
	}
	if !backEdgeFound {
		t.Fatal("expected some block to branch back to the loop header")
	}
}
