package runtime

// Default is the process-wide heap backing every ABI entry point below.
// Compiled code has no notion of multiple heaps — one Heap per running
// program, matching malloc/free's own global-arena model — so the
// package-level functions close over a single shared instance rather
// than threading a *Heap through every call site.
var Default = NewHeap()

// The functions below give Go identifiers to the runtime symbols
// internal/codegen declares as externs (internal/codegen/instr.go) and
// the host-symbol table internal/linker registers
// (internal/linker.Context's hostSymbols). spec.md §6 "Runtime ABI"
// fixes the wire names of the heap and array/string entry points
// (malloc, realloc, free, haxe_array_*, haxe_string_concat_ptr) as
// stable; the Go function names here are free to differ from those
// wire names; only the string literals used at the call/extern-decl
// sites need to match. Wiring a *Go* function value into a JIT-compiled
// call site still requires a C-ABI-compatible entry trampoline
// (conventionally produced by cgo's //export); this package stops at
// providing the correctly-shaped Go implementation, and cmd/rayzorc is
// where that trampoline would be generated — documented as an open item
// in DESIGN.md rather than modeled with an unused cgo dependency the
// rest of this pure-Go stack never needs.

// RayzorHeapAlloc implements the spec-mandated "malloc" entry point.
func RayzorHeapAlloc(n uint64) uintptr { return Default.Allocate(n) }

// RayzorHeapRealloc implements the spec-mandated "realloc" entry point.
func RayzorHeapRealloc(addr uintptr, n uint64) uintptr { return Default.Reallocate(addr, n) }

// RayzorHeapFree implements the spec-mandated "free" entry point.
func RayzorHeapFree(addr uintptr) { Default.Deallocate(addr) }

// RayzorMemcopy implements "rayzor_memcopy": copy n bytes from src to
// dst, both addresses into live heap blocks.
func RayzorMemcopy(dst, src uintptr, n uint64) {
	d, s := Default.bytesAt(dst), Default.bytesAt(src)
	if d == nil || s == nil {
		return
	}
	copy(d[:n], s[:n])
}

// RayzorMemset implements "rayzor_memset": fill n bytes at dst with the
// low byte of val.
func RayzorMemset(dst uintptr, val byte, n uint64) {
	d := Default.bytesAt(dst)
	if d == nil {
		return
	}
	for i := uint64(0); i < n; i++ {
		d[i] = val
	}
}

// RayzorArrayPushI64 implements the spec-mandated "haxe_array_push_i64".
func RayzorArrayPushI64(hdr *ArrayHeader, val int64) error { return PushInt64(Default, hdr, val) }

// RayzorArrayPopPtr implements the spec-mandated "haxe_array_pop_ptr":
// returns the popped element's address within Default's heap, or 0 if
// the array was empty — the out-of-line pointer result the "_ptr"-
// suffixed symbol name promises, rather than PopInt64's by-value
// (int64, bool) pair.
func RayzorArrayPopPtr(hdr *ArrayHeader) uintptr {
	val, ok := Pop(Default, hdr)
	if !ok {
		return 0
	}
	addr := Default.Allocate(uint64(len(val)))
	copy(Default.bytesAt(addr), val)
	return addr
}

// RayzorArrayLength implements the spec-mandated "haxe_array_length".
func RayzorArrayLength(hdr *ArrayHeader) int64 { return Length(hdr) }

// RayzorArraySlice implements the spec-mandated "haxe_array_slice".
func RayzorArraySlice(out, in *ArrayHeader, start, end int64) error {
	return Slice(Default, out, in, start, end)
}

// RayzorArrayCopy implements the spec-mandated "haxe_array_copy".
func RayzorArrayCopy(out, in *ArrayHeader) error { return Copy(Default, out, in) }

// RayzorArrayJoin implements the spec-mandated "haxe_array_join".
func RayzorArrayJoin(arr *ArrayHeader, sep *StringHeader) *StringHeader { return Join(Default, arr, sep) }

// RayzorStringConcat implements the spec-mandated "haxe_string_concat_ptr".
func RayzorStringConcat(a, b *StringHeader) *StringHeader { return Concat(Default, a, b) }
