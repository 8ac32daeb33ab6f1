package rpkg

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
)

// pendingEntry is one entry queued by Builder before its final file offset
// is known.
type pendingEntry struct {
	kind EntryKind
	meta EntryMeta
	data []byte
}

// Builder assembles an .rpkg archive (original_source/compiler/src/rpkg/
// pack.rs's RpkgBuilder, reconstructed from mod.rs's round_trip_rpkg test:
// AddNativeLib/AddHaxeSource/AddMethodTable/Write, generalized here to
// AddSourceFile since this project's source language is not fixed to one
// name).
type Builder struct {
	packageName string
	entries     []pendingEntry
}

// NewBuilder starts an archive for the named package.
func NewBuilder(packageName string) *Builder {
	return &Builder{packageName: packageName}
}

// AddNativeLib queues a platform-specific native library blob, tagged with
// the (os, arch) pair Load matches against runtime.GOOS/runtime.GOARCH.
func (b *Builder) AddNativeLib(data []byte, os, arch string) {
	b.entries = append(b.entries, pendingEntry{
		kind: EntryNativeLib,
		meta: EntryMeta{OS: os, Arch: arch},
		data: append([]byte(nil), data...),
	})
}

// AddSourceFile queues one source file, addressed within the package by
// modulePath.
func (b *Builder) AddSourceFile(modulePath, source string) {
	b.entries = append(b.entries, pendingEntry{
		kind: EntrySourceFile,
		meta: EntryMeta{ModulePath: modulePath},
		data: []byte(source),
	})
}

// AddMethodTable queues a native method table under the given plugin name.
func (b *Builder) AddMethodTable(pluginName string, methods []MethodDesc) error {
	data, err := json.Marshal(methods)
	if err != nil {
		return fmt.Errorf("rpkg: encode method table: %w", err)
	}
	b.entries = append(b.entries, pendingEntry{
		kind: EntryMethodTable,
		meta: EntryMeta{PluginName: pluginName},
		data: data,
	})
	return nil
}

// Write serializes every queued entry, the TOC, and the footer to path, in
// the exact layout Load expects.
func (b *Builder) Write(path string) error {
	var payload []byte
	t := toc{PackageName: b.packageName, Entries: make([]Entry, 0, len(b.entries))}

	for _, pe := range b.entries {
		entry := Entry{Kind: pe.kind, Offset: uint64(len(payload)), Size: uint64(len(pe.data)), Meta: pe.meta}
		payload = append(payload, pe.data...)
		t.Entries = append(t.Entries, entry)
	}

	tocBytes, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("rpkg: encode TOC: %w", err)
	}

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer[0:4], uint32(len(tocBytes)))
	binary.LittleEndian.PutUint32(footer[4:8], Version)
	copy(footer[8:12], Magic[:])

	out := make([]byte, 0, len(payload)+len(tocBytes)+footerSize)
	out = append(out, payload...)
	out = append(out, tocBytes...)
	out = append(out, footer...)

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("rpkg: %w", err)
	}
	return nil
}
