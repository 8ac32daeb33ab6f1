// Package runtime implements the minimum ABI compiled code depends on
// (spec.md §4.12): a heap primitive trio, a dynamic array container, and
// a UTF-8 string container, both sharing a stable 32-byte-on-64-bit header
// layout. Grounded on
// original_source/compiler/src/stdlib/{memory,array}.rs, which wire the
// same three concerns (malloc/realloc/free, HaxeArray push/pop/length/
// slice/copy/join) as MIR-level extern declarations the backend resolves
// against host functions; this package is the Go side of that host
// binding — the concrete functions internal/linker registers by name and
// internal/codegen declares as externs under the literal names spec.md
// §6 "Runtime ABI" fixes as stable (e.g. "malloc", "haxe_array_push_i64").
package runtime

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/darmie/rayzor/internal/diag"
)

// allocation pairs a backing Go byte slice with the runtime.Pinner that
// keeps the garbage collector from moving or collecting it while native
// (non-Go) code holds its raw address. runtime.Pinner.Unpin releases
// every pointer pinned by that Pinner at once, so each allocation gets
// its own Pinner — the only way to free allocations independently.
type allocation struct {
	buf    []byte
	pinner *runtime.Pinner
}

// Heap is the runtime's allocator: the host-side implementation behind
// spec.md §4.12's "allocate(bytes) -> pointer, reallocate(pointer,
// bytes) -> pointer, deallocate(pointer)" trio. Compiled code emits
// direct calls to these three operations; internal/stdlib-level "safe"
// wrappers that return an optional pointer are layered in front of them
// by the source language itself (original_source's build_safe_allocate
// and friends), not by this package.
type Heap struct {
	mu     sync.Mutex
	blocks map[uintptr]*allocation
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{blocks: make(map[uintptr]*allocation)}
}

// Allocate reserves n bytes and returns their stable address, or 0 if
// n is 0 (mirroring malloc(0)'s implementation-defined-but-conventionally-
// null behavior).
func (h *Heap) Allocate(n uint64) uintptr {
	if n == 0 {
		return 0
	}
	buf := make([]byte, n)
	p := &runtime.Pinner{}
	p.Pin(&buf[0])
	addr := uintptr(unsafe.Pointer(&buf[0]))

	h.mu.Lock()
	h.blocks[addr] = &allocation{buf: buf, pinner: p}
	h.mu.Unlock()
	diag.Logf(2, "[runtime] allocated %s at %#x", diag.Bytes(n), addr)
	return addr
}

// Reallocate resizes the block at addr to newSize, preserving the
// min(old, new) leading bytes, and returns the (possibly new) address.
// addr == 0 behaves like Allocate(newSize), matching realloc(NULL, n).
func (h *Heap) Reallocate(addr uintptr, newSize uint64) uintptr {
	if addr == 0 {
		return h.Allocate(newSize)
	}

	h.mu.Lock()
	old, ok := h.blocks[addr]
	h.mu.Unlock()
	if !ok {
		return h.Allocate(newSize)
	}

	newAddr := h.Allocate(newSize)
	if newAddr == 0 {
		h.Deallocate(addr)
		return 0
	}
	h.mu.Lock()
	newBlock := h.blocks[newAddr]
	h.mu.Unlock()
	copy(newBlock.buf, old.buf)
	h.Deallocate(addr)
	return newAddr
}

// Deallocate releases the block at addr. Deallocating an unknown or
// already-freed address is a no-op, matching free(NULL)'s defined
// behavior (and tolerating a double free rather than crashing the host
// process, since internal/optimize's DoubleFree pass is what is
// responsible for rejecting that case at compile time).
func (h *Heap) Deallocate(addr uintptr) {
	if addr == 0 {
		return
	}
	h.mu.Lock()
	a, ok := h.blocks[addr]
	delete(h.blocks, addr)
	h.mu.Unlock()
	if ok {
		diag.Logf(2, "[runtime] freed %s at %#x", diag.Bytes(uint64(len(a.buf))), addr)
		a.pinner.Unpin()
	}
}

// bytesAt returns the live backing slice for addr, or nil if addr is not
// a currently-allocated block. Used internally by the array/string
// helpers to read or write through a raw address.
func (h *Heap) bytesAt(addr uintptr) []byte {
	if addr == 0 {
		return nil
	}
	h.mu.Lock()
	a, ok := h.blocks[addr]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	return a.buf
}
