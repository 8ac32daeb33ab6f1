package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// builtSymbol describes one function symbol baked into a hand-assembled
// ELF64 relocatable object file, used to exercise the real parseObject +
// link path without depending on an external assembler or compiler
// toolchain (none is invoked by these tests).
type builtSymbol struct {
	name  string
	value uint64 // offset into .text; ignored (0) for an undefined symbol
	size  uint64
	defined bool
}

// buildELFObject assembles a minimal, valid ET_REL/EM_X86_64 object file
// containing one .text section (code), an optional .rela.text section
// (relocs, symbol indices are positions in syms including the leading
// undefined entries), and a symbol table. It exists purely so this
// package's tests can drive Context.AddObjectFile/Relocate/GetSymbol
// against byte-for-byte real ELF structures rather than fakes.
func buildELFObject(code []byte, syms []builtSymbol, relocs []elf.Rela64) []byte {
	var strtab bytes.Buffer
	strtab.WriteByte(0)
	nameOffsets := make([]uint32, len(syms))
	for i, s := range syms {
		nameOffsets[i] = uint32(strtab.Len())
		strtab.WriteString(s.name)
		strtab.WriteByte(0)
	}

	var symtab bytes.Buffer
	binary.Write(&symtab, binary.LittleEndian, elf.Sym64{}) // index 0: null symbol
	firstGlobal := uint32(1)
	for i, s := range syms {
		shndx := uint16(elf.SHN_UNDEF)
		if s.defined {
			shndx = 1 // .text is always section index 1 in this layout
		}
		binary.Write(&symtab, binary.LittleEndian, elf.Sym64{
			Name:  nameOffsets[i],
			Info:  uint8(elf.STB_GLOBAL)<<4 | uint8(elf.STT_FUNC),
			Shndx: shndx,
			Value: s.value,
			Size:  s.size,
		})
	}

	var relatab bytes.Buffer
	for _, r := range relocs {
		binary.Write(&relatab, binary.LittleEndian, r)
	}

	shstrtab := []byte{0}
	sectionName := func(name string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, append([]byte(name), 0)...)
		return off
	}
	nameText := sectionName(".text")
	nameSymtab := sectionName(".symtab")
	nameStrtab := sectionName(".strtab")
	nameRela := sectionName(".rela.text")
	nameShstrtab := sectionName(".shstrtab")

	var body bytes.Buffer
	body.Write(make([]byte, 64)) // placeholder for the ELF header

	textOff := body.Len()
	body.Write(code)

	symtabOff := body.Len()
	body.Write(symtab.Bytes())

	strtabOff := body.Len()
	body.Write(strtab.Bytes())

	var relaOff, relaSize int
	if relatab.Len() > 0 {
		relaOff = body.Len()
		body.Write(relatab.Bytes())
		relaSize = relatab.Len()
	}

	shstrtabOff := body.Len()
	body.Write(shstrtab)

	shoff := body.Len()

	sections := []elf.Section64{
		{}, // SHN_UNDEF
		{Name: nameText, Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR),
			Off: uint64(textOff), Size: uint64(len(code)), Addralign: 16},
		{Name: nameSymtab, Type: uint32(elf.SHT_SYMTAB), Off: uint64(symtabOff), Size: uint64(symtab.Len()),
			Link: 3 /* .strtab section index */, Info: firstGlobal, Entsize: elf.Sym64Size, Addralign: 8},
		{Name: nameStrtab, Type: uint32(elf.SHT_STRTAB), Off: uint64(strtabOff), Size: uint64(strtab.Len()), Addralign: 1},
	}
	if relaSize > 0 {
		sections = append(sections, elf.Section64{
			Name: nameRela, Type: uint32(elf.SHT_RELA), Off: uint64(relaOff), Size: uint64(relaSize),
			Link: 2 /* .symtab section index */, Info: 1 /* .text section index */, Entsize: 24, Addralign: 8,
		})
	}
	shstrtabIdx := uint16(len(sections))
	sections = append(sections, elf.Section64{Name: nameShstrtab, Type: uint32(elf.SHT_STRTAB), Off: uint64(shstrtabOff), Size: uint64(len(shstrtab)), Addralign: 1})

	var shdrs bytes.Buffer
	for _, s := range sections {
		binary.Write(&shdrs, binary.LittleEndian, s)
	}

	out := body.Bytes()
	out = append(out, shdrs.Bytes()...)

	hdr := elf.Header64{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint64(shoff),
		Ehsize:    64,
		Shentsize: 64,
		Shnum:     uint16(len(sections)),
		Shstrndx:  shstrtabIdx,
	}
	copy(hdr.Ident[:], []byte{0x7f, 'E', 'L', 'F'})
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var hdrBuf bytes.Buffer
	binary.Write(&hdrBuf, binary.LittleEndian, hdr)
	copy(out[:64], hdrBuf.Bytes())

	return out
}
