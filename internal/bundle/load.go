package bundle

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/darmie/rayzor/internal/mir"
	"github.com/darmie/rayzor/internal/symtab"
	"github.com/google/uuid"
)

// Bundle is a loaded, parsed bundle: the header and TOC have been decoded,
// but per-function CFGs are decoded lazily from r on demand (Function),
// keeping a Load call itself proportional to header+TOC size rather than
// the whole module.
type Bundle struct {
	BuildID       uuid.UUID
	EntryModule   string
	EntryFunction string
	Meta          mir.Metadata

	r            io.ReaderAt
	payloadStart int64
	toc          toc
}

// Load parses a bundle's header and table of contents from r. size is the
// total byte length of the underlying data (as from os.File.Stat or
// len(data) for an in-memory buffer).
func Load(r io.ReaderAt, size int64) (*Bundle, error) {
	if size < headerSize {
		return nil, fmt.Errorf("bundle: file too small to contain a header (%d bytes)", size)
	}

	header := make([]byte, headerSize)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("bundle: read header: %w", err)
	}
	var magic [4]byte
	copy(magic[:], header[0:4])
	if magic != Magic {
		return nil, fmt.Errorf("bundle: bad magic %q, not a rayzor bundle", magic)
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != Version {
		return nil, fmt.Errorf("bundle: unsupported version %d (want %d)", version, Version)
	}
	buildID, err := uuid.FromBytes(header[8:24])
	if err != nil {
		return nil, fmt.Errorf("bundle: malformed build id: %w", err)
	}
	tocLen := binary.LittleEndian.Uint32(header[24:28])

	tocBytes := make([]byte, tocLen)
	if _, err := r.ReadAt(tocBytes, headerSize); err != nil {
		return nil, fmt.Errorf("bundle: read TOC: %w", err)
	}
	var t toc
	if err := json.Unmarshal(tocBytes, &t); err != nil {
		return nil, fmt.Errorf("bundle: decode TOC: %w", err)
	}

	return &Bundle{
		BuildID: buildID, EntryModule: t.EntryModule, EntryFunction: t.EntryFunction,
		Meta: t.Meta, r: r, payloadStart: int64(headerSize) + int64(tocLen), toc: t,
	}, nil
}

// section reads and decodes the bytes addressed by ref into v.
func (b *Bundle) section(ref sectionRef, v any) error {
	data := make([]byte, ref.Size)
	if _, err := b.r.ReadAt(data, b.payloadStart+int64(ref.Offset)); err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// FunctionNames lists every function recorded in the TOC, without decoding
// any of them.
func (b *Bundle) FunctionNames() []string {
	names := make([]string, len(b.toc.Functions))
	for i, fr := range b.toc.Functions {
		names[i] = fr.Name
	}
	return names
}

// Function decodes exactly one function by name, reading only the bytes
// its TOC entry addresses — the "constant-per-byte" load spec.md §6
// requires for a single function, as opposed to Module's whole-bundle
// decode.
func (b *Bundle) Function(name string) (*mir.Function, error) {
	for _, fr := range b.toc.Functions {
		if fr.Name != name {
			continue
		}
		var dto functionDTO
		if err := b.section(sectionRef{Offset: fr.Offset, Size: fr.Size}, &dto); err != nil {
			return nil, fmt.Errorf("bundle: decode function %q: %w", name, err)
		}
		return dto.toFunction(), nil
	}
	return nil, fmt.Errorf("bundle: no function named %q", name)
}

func (dto *functionDTO) toFunction() *mir.Function {
	fn := &mir.Function{
		ID: dto.ID, Name: dto.Name, OwnerSym: dto.OwnerSym, HasOwner: dto.HasOwner,
		Sig: dto.Sig, Locals: dto.Locals,
	}
	if fn.Locals == nil {
		fn.Locals = make(map[mir.ValueID]*mir.Local)
	}
	blocks := dto.CFG.Blocks
	if blocks == nil {
		blocks = make(map[mir.BlockID]*mir.Block)
	}
	fn.CFG = mir.RestoreCFG(blocks, dto.CFG.Entry)
	return fn
}

// Module fully decodes every section and reconstructs a complete
// *mir.Module. Unlike Function, this is proportional to the whole bundle's
// size — intended for ahead-of-time tooling (inspection, re-bundling), not
// the hot load path, which should prefer Function for the entry point and
// let the tiered manager pull in callees as they are first reached.
func (b *Bundle) Module() (*mir.Module, error) {
	var pool []string
	if err := b.section(b.toc.StringPool, &pool); err != nil {
		return nil, fmt.Errorf("bundle: decode string pool: %w", err)
	}
	interner := symtab.NewInternerFromStrings(pool)

	var symbols []symtab.Symbol
	if err := b.section(b.toc.Symbols, &symbols); err != nil {
		return nil, fmt.Errorf("bundle: decode symbol table: %w", err)
	}
	table := symtab.NewTableFromSymbols(interner, symbols)

	var terms []symtab.Term
	if err := b.section(b.toc.Types, &terms); err != nil {
		return nil, fmt.Errorf("bundle: decode type table: %w", err)
	}
	types := symtab.NewTypesFromTerms(terms)

	mod := mir.NewModule(table, types)
	mod.Meta = b.Meta

	if err := b.section(b.toc.Externs, &mod.Externs); err != nil {
		return nil, fmt.Errorf("bundle: decode externs: %w", err)
	}
	if err := b.section(b.toc.Globals, &mod.Globals); err != nil {
		return nil, fmt.Errorf("bundle: decode globals: %w", err)
	}

	for _, fr := range b.toc.Functions {
		fn, err := b.Function(fr.Name)
		if err != nil {
			return nil, err
		}
		mod.RestoreFunction(fn)
	}
	return mod, nil
}
