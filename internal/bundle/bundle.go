// Package bundle implements the on-disk IR bundle form of spec.md §6: "a
// self-describing serialized image of an IrModule ready for fast load ...
// a magic header, a format version, a table of contents, the string pool,
// the function table, and per-function CFGs. The entry module and entry
// function name are explicit fields. Loading must be constant-per-byte and
// must not re-run optimization."
//
// Grounded on sentra/internal/build.Builder's Bundle/CompiledModule
// (encoding/json manifest plus a byte payload, written and read with
// os.File) — generalized here from a single linked-bytecode blob to a
// table-of-contents addressing one independently-readable section per MIR
// component (string pool, symbol table, type table, externs, globals, and
// one entry per function), so a single function can be pulled off disk by
// seeking straight to its TOC-recorded byte range instead of decoding the
// whole module.
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

// Magic identifies a rayzor bundle file.
var Magic = [4]byte{'R', 'Z', 'B', 'N'}

// Version is the current bundle format version. A loader rejects any other
// value rather than guess at a layout it does not understand.
const Version uint32 = 1

const headerSize = 4 /*magic*/ + 4 /*version*/ + 16 /*build id*/ + 4 /*toc length*/

// sectionRef locates a byte range within the payload that follows the TOC.
type sectionRef struct {
	Offset uint32 `json:"offset"`
	Size   uint32 `json:"size"`
}

// functionRef locates one function's encoded CFG within the payload.
type functionRef struct {
	ID     int32  `json:"id"`
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Size   uint32 `json:"size"`
}

// toc is the table of contents: every section's location plus the explicit
// entry point fields spec.md §6 requires.
type toc struct {
	EntryModule   string      `json:"entry_module"`
	EntryFunction string      `json:"entry_function"`
	Meta          mir.Metadata `json:"meta"`
	StringPool    sectionRef  `json:"string_pool"`
	Symbols       sectionRef  `json:"symbols"`
	Types         sectionRef  `json:"types"`
	Externs       sectionRef  `json:"externs"`
	Globals       sectionRef  `json:"globals"`
	Functions     []functionRef `json:"functions"`
}

// functionDTO is the on-disk shape of one mir.Function — a flat projection
// of its exported fields, json-encoded independently of every other
// function so it can be decoded without touching its siblings.
type functionDTO struct {
	ID       mir.FuncID               `json:"id"`
	Name     string                   `json:"name"`
	OwnerSym symtab.SymbolID          `json:"owner_sym"`
	HasOwner bool                     `json:"has_owner"`
	Sig      mir.Signature            `json:"sig"`
	Locals   map[mir.ValueID]*mir.Local `json:"locals"`
	CFG      cfgDTO                   `json:"cfg"`
}

type cfgDTO struct {
	Blocks map[mir.BlockID]*mir.Block `json:"blocks"`
	Entry  mir.BlockID                `json:"entry"`
}

// Write serializes mod into w as a bundle, with the given entry module name
// and entry function (by MIR name, resolved to a FuncID on load). Returns
// the build id stamped into the header, usable as a cache key.
func Write(w io.Writer, mod *mir.Module, entryModule, entryFunction string) (uuid.UUID, error) {
	var payload []byte
	appendSection := func(v any) (sectionRef, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return sectionRef{}, err
		}
		ref := sectionRef{Offset: uint32(len(payload)), Size: uint32(len(data))}
		payload = append(payload, data...)
		return ref, nil
	}

	t := toc{EntryModule: entryModule, EntryFunction: entryFunction, Meta: mod.Meta}

	var err error
	if t.StringPool, err = appendSection(mod.Symtab.Interner.Strings()); err != nil {
		return uuid.Nil, fmt.Errorf("bundle: encode string pool: %w", err)
	}
	if t.Symbols, err = appendSection(mod.Symtab.Symbols()); err != nil {
		return uuid.Nil, fmt.Errorf("bundle: encode symbol table: %w", err)
	}
	if t.Types, err = appendSection(mod.Types.Terms()); err != nil {
		return uuid.Nil, fmt.Errorf("bundle: encode type table: %w", err)
	}
	if t.Externs, err = appendSection(mod.Externs); err != nil {
		return uuid.Nil, fmt.Errorf("bundle: encode externs: %w", err)
	}
	if t.Globals, err = appendSection(mod.Globals); err != nil {
		return uuid.Nil, fmt.Errorf("bundle: encode globals: %w", err)
	}

	t.Functions = make([]functionRef, 0, len(mod.Functions))
	for _, fn := range mod.Functions {
		dto := functionDTO{
			ID: fn.ID, Name: fn.Name, OwnerSym: fn.OwnerSym, HasOwner: fn.HasOwner,
			Sig: fn.Sig, Locals: fn.Locals,
			CFG: cfgDTO{Blocks: fn.CFG.Blocks, Entry: fn.CFG.Entry},
		}
		ref, err := appendSection(dto)
		if err != nil {
			return uuid.Nil, fmt.Errorf("bundle: encode function %q: %w", fn.Name, err)
		}
		t.Functions = append(t.Functions, functionRef{ID: int32(fn.ID), Name: fn.Name, Offset: ref.Offset, Size: ref.Size})
	}

	tocBytes, err := json.Marshal(t)
	if err != nil {
		return uuid.Nil, fmt.Errorf("bundle: encode TOC: %w", err)
	}

	buildID := uuid.New()
	header := make([]byte, headerSize)
	copy(header[0:4], Magic[:])
	binary.LittleEndian.PutUint32(header[4:8], Version)
	idBytes, _ := buildID.MarshalBinary()
	copy(header[8:24], idBytes)
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(tocBytes)))

	if _, err := w.Write(header); err != nil {
		return uuid.Nil, err
	}
	if _, err := w.Write(tocBytes); err != nil {
		return uuid.Nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return uuid.Nil, err
	}
	return buildID, nil
}
