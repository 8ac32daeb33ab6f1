package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"

	"github.com/darmie/rayzor/internal/diag"
	rzruntime "github.com/darmie/rayzor/internal/runtime"
)

// assembleObject shells out to an external LLVM toolchain to turn ir (the
// text internal/codegen.Artifact.IR produces) into a relocatable ELF
// object file internal/linker can load — internal/codegen's Artifact.IR
// doc comment names this exact handoff ("the form handed to an external compiler
// (e.g. llc) to produce the object file internal/linker maps in"). Unlike
// every other package in this module, this step cannot be pure Go: the
// backend emits textual IR, not machine code, by design (it stands in for
// a Cranelift-style builder, not a full static compiler), so something
// outside the process has to do the final lowering.
//
// clang is tried first since it accepts .ll input directly and handles
// both the IR-to-object and relocatable-object-format steps in one
// invocation; llc (emitting the object directly with -filetype=obj) is the
// fallback for hosts that carry the LLVM tools but not the clang driver.
func assembleObject(ir string) (objPath string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "rayzorc-jit-*")
	if err != nil {
		return "", nil, fmt.Errorf("toolchain: %w", err)
	}
	cleanup = func() { os.RemoveAll(dir) }

	irPath := filepath.Join(dir, "module.ll")
	if err := os.WriteFile(irPath, []byte(ir), 0o644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("toolchain: write IR: %w", err)
	}
	objPath = filepath.Join(dir, "module.o")

	if path, lookErr := exec.LookPath("clang"); lookErr == nil {
		cmd := exec.Command(path, "-c", "-fPIC", "-o", objPath, irPath)
		if out, runErr := cmd.CombinedOutput(); runErr != nil {
			cleanup()
			return "", nil, fmt.Errorf("toolchain: clang: %v: %s", runErr, out)
		}
		diag.Logf(1, "[rayzorc] assembled %s via clang", objPath)
		return objPath, cleanup, nil
	}

	if path, lookErr := exec.LookPath("llc"); lookErr == nil {
		asmPath := filepath.Join(dir, "module.s")
		llc := exec.Command(path, "-filetype=obj", "-relocation-model=pic", "-o", objPath, irPath)
		if out, runErr := llc.CombinedOutput(); runErr != nil {
			cleanup()
			return "", nil, fmt.Errorf("toolchain: llc: %v: %s", runErr, out)
		}
		_ = asmPath // llc -filetype=obj skips the textual assembly step entirely
		diag.Logf(1, "[rayzorc] assembled %s via llc", objPath)
		return objPath, cleanup, nil
	}

	cleanup()
	return "", nil, fmt.Errorf("toolchain: neither clang nor llc found on PATH; install LLVM to run compiled code")
}

// hostSymbols registers every runtime ABI entry point internal/codegen
// declares as an extern (internal/codegen/instr.go) as a host symbol
// internal/linker.Context can resolve relocations against. The heap and
// array/string entries are keyed by the literal names spec.md §6
// "Runtime ABI" calls stable (malloc/realloc/free, haxe_array_*,
// haxe_string_concat_ptr); memcopy/memset are rayzor-internal helpers
// spec.md never names and keep their own prefix.
// reflect.ValueOf(fn).Pointer() recovers a Go function value's code entry
// address without cgo, exactly the approach internal/runtime/abi.go's own
// doc comment defers to this package: a correct general C-ABI trampoline
// would need per-architecture assembly this module does not carry, so
// this registers the Go entry point directly and accepts that only the
// simple, few-argument integer signatures these demo scenarios exercise
// are guaranteed to pass arguments in registers compatibly.
func hostSymbols() map[string]uintptr {
	return map[string]uintptr{
		"malloc":                 reflect.ValueOf(rzruntime.RayzorHeapAlloc).Pointer(),
		"realloc":                reflect.ValueOf(rzruntime.RayzorHeapRealloc).Pointer(),
		"free":                   reflect.ValueOf(rzruntime.RayzorHeapFree).Pointer(),
		"rayzor_memcopy":         reflect.ValueOf(rzruntime.RayzorMemcopy).Pointer(),
		"rayzor_memset":          reflect.ValueOf(rzruntime.RayzorMemset).Pointer(),
		"haxe_array_push_i64":    reflect.ValueOf(rzruntime.RayzorArrayPushI64).Pointer(),
		"haxe_array_pop_ptr":     reflect.ValueOf(rzruntime.RayzorArrayPopPtr).Pointer(),
		"haxe_array_length":      reflect.ValueOf(rzruntime.RayzorArrayLength).Pointer(),
		"haxe_array_slice":       reflect.ValueOf(rzruntime.RayzorArraySlice).Pointer(),
		"haxe_array_copy":        reflect.ValueOf(rzruntime.RayzorArrayCopy).Pointer(),
		"haxe_array_join":        reflect.ValueOf(rzruntime.RayzorArrayJoin).Pointer(),
		"haxe_string_concat_ptr": reflect.ValueOf(rzruntime.RayzorStringConcat).Pointer(),
	}
}
