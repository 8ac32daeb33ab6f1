package linker

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"
	"unsafe"
)

func writeObject(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.o")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing test object: %v", err)
	}
	return path
}

// machine code for `mov eax, 42; ret` — System V and Go's amd64
// ABIInternal both return a scalar in AX, so this is callable from either
// calling convention, which is what makes the function-pointer cast below
// safe despite this object never having gone through cgo.
var movEax42Ret = []byte{0xB8, 0x2A, 0x00, 0x00, 0x00, 0xC3}

func TestContextLinksAndRunsAFunctionWithNoRelocations(t *testing.T) {
	obj := buildELFObject(movEax42Ret, []builtSymbol{
		{name: "answer_the_question", value: 0, size: uint64(len(movEax42Ret)), defined: true},
	}, nil)
	path := writeObject(t, obj)

	ctx := NewContext(nil, nil)
	if err := ctx.AddObjectFile(path); err != nil {
		t.Fatalf("AddObjectFile: %v", err)
	}
	if err := ctx.Relocate(); err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	defer ctx.Close()

	addr, err := ctx.GetSymbol("answer_the_question")
	if err != nil {
		t.Fatalf("GetSymbol: %v", err)
	}
	if addr == 0 {
		t.Fatal("expected a non-zero resolved address")
	}

	fn := *(*func() int32)(unsafe.Pointer(&addr))
	if got := fn(); got != 42 {
		t.Fatalf("expected the linked function to return 42, got %d", got)
	}
}

func TestGetSymbolBeforeRelocateFails(t *testing.T) {
	ctx := NewContext(nil, nil)
	if _, err := ctx.GetSymbol("anything"); err == nil {
		t.Fatal("expected an error calling GetSymbol before Relocate")
	}
}

func TestAddObjectFileAfterRelocateFails(t *testing.T) {
	obj := buildELFObject(movEax42Ret, []builtSymbol{
		{name: "answer_the_question", value: 0, size: uint64(len(movEax42Ret)), defined: true},
	}, nil)
	path := writeObject(t, obj)

	ctx := NewContext(nil, nil)
	if err := ctx.AddObjectFile(path); err != nil {
		t.Fatalf("AddObjectFile: %v", err)
	}
	if err := ctx.Relocate(); err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	defer ctx.Close()

	if err := ctx.AddObjectFile(path); err == nil {
		t.Fatal("expected AddObjectFile to fail after Relocate has already run")
	}
}

func TestRelocateFailsOnUnresolvedExternSymbolThenSucceedsOnceRegistered(t *testing.T) {
	// .text: `call rel32` (placeholder displacement) then `ret`.
	code := []byte{0xE8, 0x00, 0x00, 0x00, 0x00, 0xC3}
	syms := []builtSymbol{
		{name: "calls_extern", value: 0, size: uint64(len(code)), defined: true},
		{name: "malloc", defined: false}, // SHN_UNDEF, resolved only via host symbols
	}
	// Symbol table indices: 0=null, 1=calls_extern, 2=malloc.
	reloc := elf.Rela64{Off: 1, Info: elf.R_INFO(2, uint32(elf.R_X86_64_PC32)), Addend: -4}
	obj := buildELFObject(code, syms, []elf.Rela64{reloc})

	path := writeObject(t, obj)
	ctx := NewContext(nil, nil)
	if err := ctx.AddObjectFile(path); err != nil {
		t.Fatalf("AddObjectFile: %v", err)
	}
	if err := ctx.Relocate(); err == nil {
		t.Fatal("expected Relocate to fail: malloc is not registered as a host symbol")
	}

	ctx2 := NewContext(map[string]uintptr{"malloc": 0x41414141}, nil)
	if err := ctx2.AddObjectFile(path); err != nil {
		t.Fatalf("AddObjectFile: %v", err)
	}
	if err := ctx2.Relocate(); err != nil {
		t.Fatalf("Relocate: expected success once the host symbol is registered, got %v", err)
	}
	defer ctx2.Close()

	if _, err := ctx2.GetSymbol("calls_extern"); err != nil {
		t.Fatalf("GetSymbol(calls_extern): %v", err)
	}
}

func TestErrorCallbackReceivesEveryFailure(t *testing.T) {
	var messages []string
	ctx := NewContext(nil, func(msg string) { messages = append(messages, msg) })

	if _, err := ctx.GetSymbol("missing"); err == nil {
		t.Fatal("expected an error")
	}
	if len(messages) == 0 {
		t.Fatal("expected the error callback to have been invoked")
	}
}
