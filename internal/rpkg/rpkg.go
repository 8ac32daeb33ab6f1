// Package rpkg implements the package archive format of spec.md §6: a
// distribution unit for source-language libraries, native dylibs, or both.
//
// Binary layout: `[entry-1 data][entry-2 data]...[TOC][toc_size: u32
// LE][version: u32 LE][magic: "RPKG"]`. The 12-byte footer is read first;
// it locates a TOC blob immediately preceding it, which in turn locates
// every entry's byte range earlier in the file.
//
// Grounded on original_source/compiler/src/rpkg/mod.rs one-for-one: the
// footer layout, TOC fields, entry kinds (native-lib/source-file/
// method-table), and platform-matching rule (an rpkg's NativeLib entries
// are filtered to the loading process's own (os, arch)) all follow that
// file exactly. Where the Rust source serializes the TOC with the
// `postcard` crate — a compact binary serde format with no Go analogue
// anywhere in the retrieved corpus — this package uses encoding/json, the
// corpus's own established substitute (sentra/internal/build.Builder
// writes its manifest the same way); the footer's toc_size field stays
// meaningful regardless of which encoding fills it.
package rpkg

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Magic identifies an rpkg archive.
var Magic = [4]byte{'R', 'P', 'K', 'G'}

// Version is the only TOC layout this package understands.
const Version uint32 = 1

const footerSize = 12 // toc_size(4) + version(4) + magic(4)

// EntryKind discriminates an archive entry's payload.
type EntryKind int

const (
	EntryNativeLib EntryKind = iota
	EntrySourceFile
	EntryMethodTable
)

// EntryMeta carries kind-specific metadata — only the fields relevant to
// Kind are meaningful, the same flat-tagged-union shape used elsewhere in
// this codebase for on-disk/IR value types (symtab.Term, mir.Instr).
type EntryMeta struct {
	// EntryNativeLib
	OS   string
	Arch string

	// EntrySourceFile
	ModulePath string

	// EntryMethodTable
	PluginName string
}

// Entry is one TOC record: where its data lives in the file and what kind
// of payload it is.
type Entry struct {
	Kind   EntryKind
	Offset uint64
	Size   uint64
	Meta   EntryMeta
}

// toc is the deserialized table of contents.
type toc struct {
	PackageName string  `json:"package_name"`
	Entries     []Entry `json:"entries"`
}

// MethodDesc mirrors one native method binding's descriptor (spec.md §6
// "method-table" entries), serialized inside a MethodTable entry's payload.
type MethodDesc struct {
	SymbolName string
	ClassName  string
	MethodName string
	IsStatic   bool
	ParamCount uint8
	ReturnType uint8
	ParamTypes []uint8
}

// Loaded is a parsed .rpkg archive, narrowed to the current platform.
type Loaded struct {
	PackageName   string
	Methods       []MethodDesc
	Sources       map[string]string // module path -> source text
	NativeLib     []byte
	HasNativeLib  bool
	PluginName    string
	HasPluginName bool
}

func currentOS() string   { return runtime.GOOS }
func currentArch() string { return runtime.GOARCH }

// Load reads and parses an .rpkg file, extracting its method table, source
// files, and the native library entry matching the current platform (if
// any).
func Load(path string) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rpkg: %w", err)
	}
	if len(data) < footerSize {
		return nil, fmt.Errorf("rpkg: not a valid .rpkg file (too small for a footer)")
	}

	footerStart := len(data) - footerSize
	tocSize := binary.LittleEndian.Uint32(data[footerStart : footerStart+4])
	version := binary.LittleEndian.Uint32(data[footerStart+4 : footerStart+8])
	var magic [4]byte
	copy(magic[:], data[footerStart+8:footerStart+12])

	if magic != Magic {
		return nil, fmt.Errorf("rpkg: not a valid .rpkg file (bad magic)")
	}
	if version != Version {
		return nil, fmt.Errorf("rpkg: unsupported rpkg version %d (expected %d)", version, Version)
	}
	if int(tocSize) > footerStart {
		return nil, fmt.Errorf("rpkg: TOC size %d exceeds file size", tocSize)
	}

	tocStart := footerStart - int(tocSize)
	var t toc
	if err := json.Unmarshal(data[tocStart:footerStart], &t); err != nil {
		return nil, fmt.Errorf("rpkg: failed to deserialize TOC: %w", err)
	}

	out := &Loaded{PackageName: t.PackageName, Sources: make(map[string]string)}
	os_, arch := currentOS(), currentArch()

	for _, e := range t.Entries {
		start, end := int(e.Offset), int(e.Offset+e.Size)
		if end > len(data) {
			return nil, fmt.Errorf("rpkg: entry data out of bounds: %d..%d in %d byte file", start, end, len(data))
		}
		payload := data[start:end]

		switch e.Kind {
		case EntryNativeLib:
			if e.Meta.OS == os_ && e.Meta.Arch == arch {
				out.NativeLib = append([]byte(nil), payload...)
				out.HasNativeLib = true
			}
		case EntrySourceFile:
			out.Sources[e.Meta.ModulePath] = string(payload)
		case EntryMethodTable:
			out.PluginName = e.Meta.PluginName
			out.HasPluginName = true
			if err := json.Unmarshal(payload, &out.Methods); err != nil {
				return nil, fmt.Errorf("rpkg: failed to deserialize method table: %w", err)
			}
		}
	}

	return out, nil
}
