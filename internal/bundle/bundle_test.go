package bundle

import (
	"bytes"
	"testing"

	"github.com/darmie/rayzor/internal/mir"
	"github.com/darmie/rayzor/internal/symtab"
	"github.com/google/uuid"
)

func TestWriteLoadFunctionRoundTrip(t *testing.T) {
	interner := symtab.NewInterner()
	table := symtab.NewTable(interner)
	types := symtab.NewTypes()
	intType := types.Primitive(symtab.PrimInt)

	mod := mir.NewModule(table, types)
	mod.Meta = mir.Metadata{TargetTriple: "x86_64-unknown-linux-gnu", OptLevel: "O2", DebugLevel: "line-only"}

	sig := mir.Signature{Params: []mir.Param{{Type: intType}}, Return: intType}
	fn := mod.DeclareFunction("double", sig, 0, false)
	cfg := fn.CFG

	param := cfg.NewValue()
	two := cfg.NewValue()
	cfg.AppendInstr(cfg.Entry, mir.Instr{Op: mir.OpConstInt, Dest: two, IntConst: 2})
	result := cfg.NewValue()
	cfg.AppendInstr(cfg.Entry, mir.Instr{Op: mir.OpMul, Dest: result, Operands: []mir.ValueID{param, two}})
	cfg.SetTerminator(cfg.Entry, mir.Terminator{Kind: mir.TermReturn, RetValue: result, HasRet: true})

	mod.DeclareExtern("malloc", mir.Signature{Params: []mir.Param{{Type: intType}}, Return: intType})
	mod.DeclareGlobal(mir.Global{Name: interner.Intern("counter"), Type: intType, Mutable: true})

	var buf bytes.Buffer
	buildID, err := Write(&buf, mod, "main", "double")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buildID == uuid.Nil {
		t.Fatal("Write returned a zero build id")
	}

	data := buf.Bytes()
	loaded, err := Load(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.BuildID != buildID {
		t.Fatalf("loaded build id %v, want %v", loaded.BuildID, buildID)
	}
	if loaded.EntryModule != "main" || loaded.EntryFunction != "double" {
		t.Fatalf("entry point = (%q,%q), want (main,double)", loaded.EntryModule, loaded.EntryFunction)
	}
	if loaded.Meta.TargetTriple != "x86_64-unknown-linux-gnu" {
		t.Fatalf("meta.TargetTriple = %q", loaded.Meta.TargetTriple)
	}

	names := loaded.FunctionNames()
	if len(names) != 1 || names[0] != "double" {
		t.Fatalf("FunctionNames = %v, want [double]", names)
	}

	restored, err := loaded.Function("double")
	if err != nil {
		t.Fatalf("Function: %v", err)
	}
	if restored.Name != "double" || restored.Sig.Return != intType {
		t.Fatalf("restored function mismatched: %+v", restored)
	}
	if err := mir.Validate(restored); err != nil {
		t.Fatalf("restored function failed validation: %v", err)
	}
	entryBlock := restored.CFG.Blocks[restored.CFG.Entry]
	if len(entryBlock.Instrs) != 2 {
		t.Fatalf("restored entry block has %d instrs, want 2", len(entryBlock.Instrs))
	}

	if _, err := loaded.Function("nonexistent"); err == nil {
		t.Fatal("Function on an unknown name did not error")
	}
}

func TestLoadRejectsBadMagicAndTruncatedHeader(t *testing.T) {
	interner := symtab.NewInterner()
	table := symtab.NewTable(interner)
	types := symtab.NewTypes()
	mod := mir.NewModule(table, types)

	var buf bytes.Buffer
	if _, err := Write(&buf, mod, "main", ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data := buf.Bytes()

	corrupted := append([]byte(nil), data...)
	corrupted[0] = 'X'
	if _, err := Load(bytes.NewReader(corrupted), int64(len(corrupted))); err == nil {
		t.Fatal("Load accepted a bad magic")
	}

	tooSmall := data[:2]
	if _, err := Load(bytes.NewReader(tooSmall), int64(len(tooSmall))); err == nil {
		t.Fatal("Load accepted a truncated header")
	}
}

func TestModuleFullyReconstructsExternsAndGlobals(t *testing.T) {
	interner := symtab.NewInterner()
	table := symtab.NewTable(interner)
	types := symtab.NewTypes()
	intType := types.Primitive(symtab.PrimInt)
	mod := mir.NewModule(table, types)
	mod.DeclareExtern("malloc", mir.Signature{Return: intType})
	mod.DeclareGlobal(mir.Global{Name: interner.Intern("g"), Type: intType})
	fn := mod.DeclareFunction("f", mir.Signature{Return: intType}, 0, false)
	zero := fn.CFG.NewValue()
	fn.CFG.AppendInstr(fn.CFG.Entry, mir.Instr{Op: mir.OpConstInt, Dest: zero, IntConst: 0})
	fn.CFG.SetTerminator(fn.CFG.Entry, mir.Terminator{Kind: mir.TermReturn, RetValue: zero, HasRet: true})

	var buf bytes.Buffer
	if _, err := Write(&buf, mod, "main", "f"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data := buf.Bytes()
	loaded, err := Load(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reconstructed, err := loaded.Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if len(reconstructed.Externs) != 1 || reconstructed.Externs[0].Name != "malloc" {
		t.Fatalf("reconstructed externs = %+v", reconstructed.Externs)
	}
	if len(reconstructed.Globals) != 1 {
		t.Fatalf("reconstructed globals = %+v", reconstructed.Globals)
	}
	if got, ok := reconstructed.FindFuncByName("f"); !ok || got.Name != "f" {
		t.Fatalf("reconstructed module is missing function f: %v, %v", got, ok)
	}
}
