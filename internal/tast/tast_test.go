package tast

import (
	"testing"

	"github.com/darmie/rayzor/internal/symtab"
)

func TestFileHoldsFunctionAndClassDecls(t *testing.T) {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	types := symtab.NewTypes()

	classSym := st.Declare(in.Intern("Animal"), symtab.KindClass, 0)
	fnSym := st.Declare(in.Intern("speak"), symtab.KindFunction, 0)

	file := &File{
		Symtab: st,
		Types:  types,
		Classes: []*ClassDecl{
			{Sym: classSym, Name: "Animal"},
		},
		Functions: []*FuncDecl{
			{
				Sym:    fnSym,
				Name:   "speak",
				Return: types.Primitive(symtab.PrimVoid),
				Body: []*Stmt{
					{Kind: StmtReturn, HasRet: false},
				},
			},
		},
	}

	if len(file.Classes) != 1 || file.Classes[0].Name != "Animal" {
		t.Fatalf("expected one class decl named Animal, got %+v", file.Classes)
	}
	if len(file.Functions) != 1 || file.Functions[0].Body[0].Kind != StmtReturn {
		t.Fatalf("expected one function with a return statement, got %+v", file.Functions)
	}
}

func TestLoopLabelCarriesSymbolIdentity(t *testing.T) {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	loopSym := st.Declare(in.Intern("$loop0"), symtab.KindLocal, 0)

	stmt := &Stmt{
		Kind:      StmtWhile,
		LoopLabel: loopSym,
		Body: []*Stmt{
			{Kind: StmtBreak, TargetLoop: loopSym},
		},
	}

	if stmt.Body[0].TargetLoop != stmt.LoopLabel {
		t.Fatal("break's target loop symbol should match the enclosing while's label")
	}
}
