package mir

import (
	"testing"

	"github.com/darmie/rayzor/internal/symtab"
)

func newTestModule() *Module {
	in := symtab.NewInterner()
	st := symtab.NewTable(in)
	types := symtab.NewTypes()
	return NewModule(st, types)
}

func TestModuleDeclareFunctionLinksSymbol(t *testing.T) {
	m := newTestModule()
	in := m.Symtab.Interner
	sym := m.Symtab.Declare(in.Intern("doStuff"), symtab.KindFunction, 0)

	fn := m.DeclareFunction("doStuff", Signature{Return: 1}, sym, true)

	got, ok := m.Function(fn.ID)
	if !ok || got != fn {
		t.Fatalf("Function(%d) did not return the declared function", fn.ID)
	}
	if m.SymbolToFunc[sym] != fn.ID {
		t.Fatalf("SymbolToFunc[%d] = %d, want %d", sym, m.SymbolToFunc[sym], fn.ID)
	}
	if m.FuncToSymbol[fn.ID] != sym {
		t.Fatalf("FuncToSymbol[%d] = %d, want %d", fn.ID, m.FuncToSymbol[fn.ID], sym)
	}
}

func TestModuleDeclareExternAndFindByName(t *testing.T) {
	m := newTestModule()
	m.DeclareExtern("haxe_gc_alloc", Signature{Conv: ConvC})
	m.DeclareExtern("haxe_gc_free", Signature{Conv: ConvC})

	extern, id, ok := m.FindExternByName("haxe_gc_free")
	if !ok {
		t.Fatal("expected to find haxe_gc_free")
	}
	if id != 1 {
		t.Fatalf("got extern id %d, want 1", id)
	}
	if extern.Name != "haxe_gc_free" {
		t.Fatalf("got extern name %q", extern.Name)
	}

	if _, _, ok := m.FindExternByName("nonexistent"); ok {
		t.Fatal("expected FindExternByName to fail for an undeclared name")
	}
}

func TestFunctionReturnBlocks(t *testing.T) {
	fn := buildSumToN()
	rets := fn.ReturnBlocks()
	if len(rets) != 1 {
		t.Fatalf("expected exactly one return block in sum_to_n, got %d", len(rets))
	}
}
