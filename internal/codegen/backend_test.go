package codegen

import (
	"strings"
	"testing"

	"github.com/darmie/rayzor/internal/mir"
	"github.com/darmie/rayzor/internal/symtab"
)

// buildBinOpModule mirrors the ten-function binary-op scenario of spec.md
// §8 scenario 3: one (i64, i64) -> i64 function per binary opcode,
// grounded directly on
// original_source/compiler/examples/test_cranelift_binops.rs's
// create_binop_function/operations table.
func buildBinOpModule() *mir.Module {
	types := symtab.NewTypes()
	i64 := types.Primitive(symtab.PrimInt)
	tbl := symtab.NewTable(symtab.NewInterner())
	mod := mir.NewModule(tbl, types)

	ops := []struct {
		name string
		op   mir.Op
	}{
		{"add", mir.OpAdd}, {"sub", mir.OpSub}, {"mul", mir.OpMul}, {"div", mir.OpDiv},
		{"rem", mir.OpRem}, {"and", mir.OpAnd}, {"or", mir.OpOr}, {"xor", mir.OpXor},
		{"shl", mir.OpShl}, {"shr", mir.OpShr},
	}
	for _, o := range ops {
		sig := mir.Signature{Params: []mir.Param{{Type: i64}, {Type: i64}}, Return: i64}
		fn := mod.DeclareFunction(o.name, sig, 0, false)
		a := fn.CFG.NewValue()
		bArg := fn.CFG.NewValue()
		result := fn.CFG.NewValue()
		fn.CFG.AppendInstr(fn.CFG.Entry, mir.Instr{Op: o.op, Dest: result, Operands: []mir.ValueID{a, bArg}})
		fn.CFG.SetTerminator(fn.CFG.Entry, mir.Terminator{Kind: mir.TermReturn, RetValue: result, HasRet: true})
	}
	return mod
}

func TestCompileModuleEmitsOneFunctionPerBinOp(t *testing.T) {
	mod := buildBinOpModule()
	b, err := NewBackend()
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	artifact, err := b.CompileModule(mod)
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}
	if len(artifact.FuncNames) != 10 {
		t.Fatalf("expected 10 compiled functions, got %d", len(artifact.FuncNames))
	}

	text := artifact.IR()
	for _, want := range []string{"@add", "@sub", "@mul", "@sdiv", "@srem", "@shl", "@ashr"} {
		want = strings.TrimPrefix(want, "@")
		if !strings.Contains(text, want) {
			t.Errorf("expected emitted IR to mention %q, got:\n%s", want, text)
		}
	}
}

func TestCompileModuleReportsBackendErrorOnUndeclaredExtern(t *testing.T) {
	types := symtab.NewTypes()
	i64 := types.Primitive(symtab.PrimInt)
	tbl := symtab.NewTable(symtab.NewInterner())
	mod := mir.NewModule(tbl, types)

	sig := mir.Signature{Return: i64}
	fn := mod.DeclareFunction("calls_missing_extern", sig, 0, false)
	result := fn.CFG.NewValue()
	fn.CFG.AppendInstr(fn.CFG.Entry, mir.Instr{
		Op: mir.OpCallDirect, Dest: result, IsExtern: true, ExternName: "platform_now",
	})
	fn.CFG.SetTerminator(fn.CFG.Entry, mir.Terminator{Kind: mir.TermReturn, RetValue: result, HasRet: true})

	b, err := NewBackend()
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	_, err = b.CompileModule(mod)
	if err == nil {
		t.Fatal("expected an error compiling a call to an undeclared extern")
	}
	be, ok := err.(*BackendError)
	if !ok {
		t.Fatalf("expected *BackendError, got %T", err)
	}
	if be.Phase != PhaseCompile {
		t.Fatalf("expected PhaseCompile, got %v", be.Phase)
	}
}
