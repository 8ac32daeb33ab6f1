package main

import (
	"fmt"
	"sort"

	"github.com/darmie/rayzor/internal/symtab"
	"github.com/darmie/rayzor/internal/tast"
)

// scenario is one hand-built typed-AST program plus the name of the
// function an invoker should enter. Since internal/tast has no
// construction helpers of its own (spec.md §1 puts the parser that would
// normally build these trees out of scope), every scenario is built the
// same way internal/hir's own tests build their fixtures
// (internal/hir/lower_test.go's buildMaxFile/buildLoopFile): by hand,
// symbol by symbol.
type scenario struct {
	name        string
	description string
	entry       string
	build       func() *tast.File
}

var scenarios = map[string]scenario{
	"sum_to_n": {
		name:        "sum_to_n",
		description: "accumulate 1..n in a loop (spec.md §8 scenario 1: phi nodes at the loop header)",
		entry:       "sum_to_n",
		build:       buildSumToN,
	},
	"ten_binops": {
		name:        "ten_binops",
		description: "a chain of ten arithmetic/comparison binary operators (spec.md §8 scenario 3)",
		entry:       "ten_binops",
		build:       buildTenBinOps,
	},
	"tier_promotion": {
		name:        "tier_promotion",
		description: "sum_to_n's body, reused as the target of repeated calls driving tier promotion (spec.md §8 scenario 2)",
		entry:       "sum_to_n",
		build:       buildSumToN,
	},
}

// scenarioNames lists every registered scenario, sorted for stable output.
func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookupScenario(name string) (scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return scenario{}, fmt.Errorf("no such scenario %q (have: %v)", name, scenarioNames())
	}
	return s, nil
}

// buildSumToN constructs:
//
//	function sum_to_n(n: int): int {
//	  var sum = 0;
//	  var i = 1;
//	  while (i <= n) {
//	    sum = sum + i;
//	    i = i + 1;
//	  }
//	  return sum;
//	}
func buildSumToN() *tast.File {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	types := symtab.NewTypes()
	intTy := types.Primitive(symtab.PrimInt)

	fnSym := st.Declare(in.Intern("sum_to_n"), symtab.KindFunction, 0)
	nSym := st.Declare(in.Intern("n"), symtab.KindParameter, 0)
	sumSym := st.Declare(in.Intern("sum"), symtab.KindLocal, 0)
	iSym := st.Declare(in.Intern("i"), symtab.KindLocal, 0)
	loopSym := st.Declare(in.Intern("$loop0"), symtab.KindLocal, 0)

	ident := func(sym symtab.SymbolID) *tast.Expr { return &tast.Expr{Kind: tast.ExprIdent, Sym: sym} }
	intLit := func(v int64) *tast.Expr { return &tast.Expr{Kind: tast.ExprIntLit, IntConst: v} }

	fd := &tast.FuncDecl{
		Sym:    fnSym,
		Name:   "sum_to_n",
		Return: intTy,
		Params: []tast.Param{{Sym: nSym, Type: intTy}},
		Body: []*tast.Stmt{
			{Kind: tast.StmtVarDecl, VarSym: sumSym, VarType: intTy, HasInit: true, Init: intLit(0)},
			{Kind: tast.StmtVarDecl, VarSym: iSym, VarType: intTy, HasInit: true, Init: intLit(1)},
			{
				Kind:      tast.StmtWhile,
				LoopLabel: loopSym,
				Cond: &tast.Expr{
					Kind: tast.ExprBinOp, Op: tast.BinLe,
					LHS: ident(iSym), RHS: ident(nSym),
				},
				Body: []*tast.Stmt{
					{
						Kind: tast.StmtExpr,
						Expr: &tast.Expr{
							Kind:   tast.ExprAssign,
							Target: ident(sumSym),
							Value: &tast.Expr{
								Kind: tast.ExprBinOp, Op: tast.BinAdd,
								LHS: ident(sumSym), RHS: ident(iSym),
							},
						},
					},
					{
						Kind: tast.StmtExpr,
						Expr: &tast.Expr{
							Kind:   tast.ExprAssign,
							Target: ident(iSym),
							Value: &tast.Expr{
								Kind: tast.ExprBinOp, Op: tast.BinAdd,
								LHS: ident(iSym), RHS: intLit(1),
							},
						},
					},
				},
			},
			{Kind: tast.StmtReturn, HasRet: true, RetValue: ident(sumSym)},
		},
	}

	return &tast.File{Symtab: st, Types: types, Functions: []*tast.FuncDecl{fd}}
}

// buildTenBinOps constructs a straight-line function chaining all ten
// arithmetic/bitwise/comparison operators spec.md §8 scenario 3 names,
// each reading the previous step's result:
//
//	function ten_binops(a: int, b: int): int {
//	  var t = a + b; t = t - a; t = t * b; t = t / 2; t = t % 3;
//	  t = t & b; t = t | a; t = t ^ b; t = t << 1; t = t >> 1;
//	  return t;
//	}
func buildTenBinOps() *tast.File {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	types := symtab.NewTypes()
	intTy := types.Primitive(symtab.PrimInt)

	fnSym := st.Declare(in.Intern("ten_binops"), symtab.KindFunction, 0)
	aSym := st.Declare(in.Intern("a"), symtab.KindParameter, 0)
	bSym := st.Declare(in.Intern("b"), symtab.KindParameter, 0)
	tSym := st.Declare(in.Intern("t"), symtab.KindLocal, 0)

	ident := func(sym symtab.SymbolID) *tast.Expr { return &tast.Expr{Kind: tast.ExprIdent, Sym: sym} }
	intLit := func(v int64) *tast.Expr { return &tast.Expr{Kind: tast.ExprIntLit, IntConst: v} }

	step := func(op tast.BinOp, rhs *tast.Expr) *tast.Stmt {
		return &tast.Stmt{
			Kind: tast.StmtExpr,
			Expr: &tast.Expr{
				Kind:   tast.ExprAssign,
				Target: ident(tSym),
				Value:  &tast.Expr{Kind: tast.ExprBinOp, Op: op, LHS: ident(tSym), RHS: rhs},
			},
		}
	}

	fd := &tast.FuncDecl{
		Sym:    fnSym,
		Name:   "ten_binops",
		Return: intTy,
		Params: []tast.Param{{Sym: aSym, Type: intTy}, {Sym: bSym, Type: intTy}},
		Body: []*tast.Stmt{
			{Kind: tast.StmtVarDecl, VarSym: tSym, VarType: intTy, HasInit: true, Init: &tast.Expr{
				Kind: tast.ExprBinOp, Op: tast.BinAdd, LHS: ident(aSym), RHS: ident(bSym),
			}},
			step(tast.BinSub, ident(aSym)),
			step(tast.BinMul, ident(bSym)),
			step(tast.BinDiv, intLit(2)),
			step(tast.BinRem, intLit(3)),
			step(tast.BinAnd, ident(bSym)),
			step(tast.BinOr, ident(aSym)),
			step(tast.BinXor, ident(bSym)),
			step(tast.BinShl, intLit(1)),
			step(tast.BinShr, intLit(1)),
			{Kind: tast.StmtReturn, HasRet: true, RetValue: ident(tSym)},
		},
	}

	return &tast.File{Symtab: st, Types: types, Functions: []*tast.FuncDecl{fd}}
}
