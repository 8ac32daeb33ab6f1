// Package symtab implements the interned string table, symbol table, type
// table and class-hierarchy cache described in spec.md §3 and §4.1.
package symtab

// StringID is an interned string handle. Equality of two StringIDs drawn
// from the same Interner implies byte-equality of the underlying text.
type StringID int32

// Interner deduplicates byte sequences into stable, copyable handles.
type Interner struct {
	byText map[string]StringID
	byID   []string
}

// NewInterner creates an empty string interner.
func NewInterner() *Interner {
	return &Interner{byText: make(map[string]StringID, 256)}
}

// Intern inserts s if not already present and returns its handle.
func (in *Interner) Intern(s string) StringID {
	if id, ok := in.byText[s]; ok {
		return id
	}
	id := StringID(len(in.byID))
	in.byID = append(in.byID, s)
	in.byText[s] = id
	return id
}

// Lookup returns the text for id. Panics if id was not produced by this
// Interner — identifiers are meaningless outside their owning table.
func (in *Interner) Lookup(id StringID) string {
	return in.byID[id]
}

// Len returns the number of distinct interned strings.
func (in *Interner) Len() int { return len(in.byID) }

// Strings returns every interned string in id order, suitable for writing
// out a bundle's string pool (spec.md §6) byte-for-byte.
func (in *Interner) Strings() []string {
	out := make([]string, len(in.byID))
	copy(out, in.byID)
	return out
}

// NewInternerFromStrings rebuilds an Interner from a string pool previously
// produced by Strings, preserving id order exactly.
func NewInternerFromStrings(pool []string) *Interner {
	in := &Interner{byText: make(map[string]StringID, len(pool)), byID: make([]string, len(pool))}
	copy(in.byID, pool)
	for id, s := range in.byID {
		in.byText[s] = StringID(id)
	}
	return in
}
