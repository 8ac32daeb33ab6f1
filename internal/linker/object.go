package linker

import (
	"debug/elf"
	"fmt"
)

// object is one parsed relocatable ELF64 object file: the progbits
// sections that carry code/data, the symbols it defines or references,
// and the relocations that must be applied once every section has a
// final address.
type object struct {
	path     string
	sections []objSection
	symbols  []elf.Symbol
	relocs   []objReloc

	// localSection maps an original ELF section header index to this
	// object's own objSection index, since elf.Symbol.Section is
	// expressed in the original (pre-filter) numbering.
	localSection map[elf.SectionIndex]int
}

// objSection is one loaded, allocatable section (.text, .rodata, .data,
// .bss and similar) copied out of the ELF file. bss-like sections (no
// file bytes, SHT_NOBITS) are represented with a zero-filled Data of
// length Size.
type objSection struct {
	name  string
	data  []byte
	flags elf.SectionFlag
	align uint64
}

// objReloc is one relocation entry against a section, resolved relative
// to the section's own future base address once layout has happened.
type objReloc struct {
	sectionIndex int // index into object.sections this relocation applies to
	offset       uint64
	symbolIndex  int // index into object.symbols (1-based ELF convention removed)
	kind         elf.R_X86_64
	addend       int64
}

// parseObject reads path as an ELF64 relocatable object file (ET_REL),
// the format spec.md §4.11 names explicitly ("e.g. emitted by an LLVM
// ahead-of-time back-end"). Only the x86-64 relocation types this linker
// understands are recorded; an unrecognized type surfaces as a
// RelocationFailed error at Relocate time rather than here, matching
// TccLinker's two-phase add-then-relocate contract.
func parseObject(path string) (*object, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("not a valid ELF object: %w", err)
	}
	defer f.Close()

	if f.Type != elf.ET_REL {
		return nil, fmt.Errorf("expected a relocatable object (ET_REL), got %s", f.Type)
	}
	if f.Machine != elf.EM_X86_64 {
		return nil, fmt.Errorf("unsupported machine %s, only EM_X86_64 objects are linked", f.Machine)
	}

	obj := &object{path: path, localSection: make(map[elf.SectionIndex]int)}

	for i, sec := range f.Sections {
		if sec.Flags&elf.SHF_ALLOC == 0 {
			continue // debug info, symbol/string tables, relocation sections themselves
		}
		var data []byte
		if sec.Type == elf.SHT_NOBITS {
			data = make([]byte, sec.Size)
		} else {
			data, err = sec.Data()
			if err != nil {
				return nil, fmt.Errorf("reading section %s: %w", sec.Name, err)
			}
		}
		obj.localSection[elf.SectionIndex(i)] = len(obj.sections)
		obj.sections = append(obj.sections, objSection{
			name:  sec.Name,
			data:  data,
			flags: sec.Flags,
			align: sec.Addralign,
		})
	}

	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("reading symbol table: %w", err)
	}
	obj.symbols = symbols

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_RELA {
			continue
		}
		targetIdx, ok := obj.localSection[elf.SectionIndex(sec.Info)]
		if !ok {
			continue // relocation against a non-allocatable section: irrelevant at runtime
		}
		relocs, err := decodeRelaX86_64(sec)
		if err != nil {
			return nil, fmt.Errorf("decoding relocations for %s: %w", sec.Name, err)
		}
		for _, r := range relocs {
			obj.relocs = append(obj.relocs, objReloc{
				sectionIndex: targetIdx,
				offset:       r.Off,
				symbolIndex:  int(elf.R_SYM64(r.Info)) - 1, // ELF symbol indices are 1-based; elf.File.Symbols() drops the null entry at 0
				kind:         elf.R_X86_64(elf.R_TYPE64(r.Info)),
				addend:       r.Addend,
			})
		}
	}

	return obj, nil
}

// decodeRelaX86_64 reads a SHT_RELA section's raw bytes as a sequence of
// Elf64_Rela entries. debug/elf exposes the Rela64 struct layout but, for
// object files (as opposed to the dynamic relocations of a final linked
// binary), leaves decoding to the caller — this is exactly that decode
// step.
func decodeRelaX86_64(sec *elf.Section) ([]elf.Rela64, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	const entSize = 24 // sizeof(Elf64_Rela): 3 * uint64
	if len(data)%entSize != 0 {
		return nil, fmt.Errorf("malformed .rela section: size %d not a multiple of %d", len(data), entSize)
	}
	out := make([]elf.Rela64, 0, len(data)/entSize)
	for off := 0; off < len(data); off += entSize {
		out = append(out, elf.Rela64{
			Off:    le64(data[off:]),
			Info:   le64(data[off+8:]),
			Addend: int64(le64(data[off+16:])),
		})
	}
	return out, nil
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
