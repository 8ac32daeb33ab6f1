package linker

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ptrOf returns buf's backing array address. Relocation and symbol
// resolution need the real runtime address of mmap'd memory, which Go
// only exposes through unsafe.Pointer arithmetic on the slice itself.
func ptrOf(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

// placedSection records where one object's section landed inside the
// freshly mmap'd buffer that backs it, so relocation application can
// compute both "the address this section now lives at" and "the address
// a relocation's target symbol now lives at".
type placedSection struct {
	obj    *object
	local  int // index into obj.sections
	buf    []byte
	offset int // offset within buf where this section's bytes start
}

// link lays out every staged object's allocatable sections into freshly
// allocated executable memory, resolves every symbol (locally defined,
// defined in a sibling object, or supplied by the host), applies every
// recorded relocation, and returns the resulting name -> address table
// plus the backing memory blocks so the caller can free them later.
//
// This plays the role of TccLinker's tcc_relocate: TCC does section
// layout and relocation application internally via libtcc; here it is
// explicit Go code operating on the parsed object.Sections/relocs.
func link(objects []*object, hostSymbols map[string]uintptr) (map[string]uintptr, [][]byte, error) {
	if len(objects) == 0 {
		return map[string]uintptr{}, nil, nil
	}

	placements, mem, err := placeSections(objects)
	if err != nil {
		return nil, nil, err
	}

	symAddr, err := resolveSymbols(objects, placements, hostSymbols)
	if err != nil {
		return nil, mem, err
	}

	for _, obj := range objects {
		for _, r := range obj.relocs {
			if err := applyRelocation(obj, r, placements, symAddr); err != nil {
				return nil, mem, err
			}
		}
	}

	for _, m := range mem {
		if err := unix.Mprotect(m, unix.PROT_READ|unix.PROT_EXEC); err != nil {
			return nil, mem, fmt.Errorf("mprotect(PROT_READ|PROT_EXEC): %w", err)
		}
	}

	return symAddr, mem, nil
}

// placeSections allocates one executable mmap region per object (keeping
// every section of one object contiguous simplifies PC-relative
// relocation arithmetic) and copies each section's bytes into it at its
// required alignment.
func placeSections(objects []*object) (map[*object][]placedSection, [][]byte, error) {
	placements := make(map[*object][]placedSection, len(objects))
	var mem [][]byte

	for _, obj := range objects {
		total := 0
		offsets := make([]int, len(obj.sections))
		for i, sec := range obj.sections {
			total = alignUp(total, max64(sec.align, 1))
			offsets[i] = total
			total += len(sec.data)
		}
		if total == 0 {
			continue
		}
		total = alignUp(total, 16)

		buf, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			return nil, mem, fmt.Errorf("mmap(%d bytes) for %q: %w", total, obj.path, err)
		}
		mem = append(mem, buf)

		var placed []placedSection
		for i, sec := range obj.sections {
			copy(buf[offsets[i]:], sec.data)
			placed = append(placed, placedSection{obj: obj, local: i, buf: buf, offset: offsets[i]})
		}
		placements[obj] = placed
	}
	return placements, mem, nil
}

func alignUp(v int, align uint64) int {
	a := int(align)
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// resolveSymbols computes the final runtime address of every symbol
// defined in any staged object, falling back to hostSymbols for symbols
// an object only declares (elf.SHN_UNDEF). Host symbols take precedence
// only when a name is not locally defined, matching TCC's own
// add_symbol-then-relocate order.
func resolveSymbols(objects []*object, placements map[*object][]placedSection, hostSymbols map[string]uintptr) (map[string]uintptr, error) {
	addr := make(map[string]uintptr)
	for name, a := range hostSymbols {
		addr[name] = a
	}

	for _, obj := range objects {
		placed := placements[obj]
		for _, sym := range obj.symbols {
			if sym.Section == elf.SHN_UNDEF || sym.Name == "" {
				continue // reference, not a definition; resolved via hostSymbols or a sibling object
			}
			local, ok := obj.localSection[sym.Section]
			if !ok {
				continue // symbol defined in a non-allocatable section (e.g. debug info)
			}
			base := sectionBase(placed, local)
			addr[sym.Name] = base + uintptr(sym.Value)
		}
	}
	return addr, nil
}

func sectionBase(placed []placedSection, local int) uintptr {
	for _, p := range placed {
		if p.local == local {
			return uintptr(ptrOf(p.buf)) + uintptr(p.offset)
		}
	}
	return 0
}

// applyRelocation patches one relocation site in place, using the x86-64
// relocation types an LLVM AOT backend actually emits for position-
// dependent, -nostdlib-style code generation.
func applyRelocation(obj *object, r objReloc, placements map[*object][]placedSection, symAddr map[string]uintptr) error {
	placed := placements[obj]
	site := sectionBase(placed, r.sectionIndex) + uintptr(r.offset)
	siteBuf := sectionBytes(placed, r.sectionIndex, r.offset)

	if r.symbolIndex < 0 || r.symbolIndex >= len(obj.symbols) {
		return fmt.Errorf("relocation in %q references out-of-range symbol index %d", obj.path, r.symbolIndex)
	}
	sym := obj.symbols[r.symbolIndex]
	symbolAddr, ok := symAddr[sym.Name]
	if !ok {
		return fmt.Errorf("relocation in %q: symbol %q is not defined by any loaded object or host symbol", obj.path, sym.Name)
	}

	switch r.kind {
	case elf.R_X86_64_64:
		binary.LittleEndian.PutUint64(siteBuf, uint64(int64(symbolAddr)+r.addend))
	case elf.R_X86_64_32:
		binary.LittleEndian.PutUint32(siteBuf, uint32(uint64(int64(symbolAddr)+r.addend)))
	case elf.R_X86_64_32S:
		binary.LittleEndian.PutUint32(siteBuf, uint32(int32(int64(symbolAddr)+r.addend)))
	case elf.R_X86_64_PC32, elf.R_X86_64_PLT32:
		rel := int64(symbolAddr) + r.addend - int64(site)
		binary.LittleEndian.PutUint32(siteBuf, uint32(int32(rel)))
	default:
		return fmt.Errorf("relocation in %q: unsupported relocation type %s", obj.path, r.kind)
	}
	return nil
}

func sectionBytes(placed []placedSection, local int, offset uint64) []byte {
	for _, p := range placed {
		if p.local == local {
			return p.buf[p.offset+int(offset):]
		}
	}
	return nil
}

// freeExecutable unmaps memory obtained from placeSections.
func freeExecutable(mem []byte) error {
	return unix.Munmap(mem)
}
