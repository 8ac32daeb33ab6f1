package symtab

// SymbolID is an opaque index into a Table's symbol slice.
type SymbolID int32

// TypeID is an opaque index into a Types table's term slice.
type TypeID int32

// ScopeID identifies a lexical or class scope a symbol is owned by.
type ScopeID int32

// SymbolKind enumerates the kinds a symbol table entry may have.
type SymbolKind int

const (
	KindClass SymbolKind = iota
	KindInterface
	KindEnum
	KindAbstract
	KindFunction
	KindField
	KindLocal
	KindParameter
	KindTypeParameter
)

func (k SymbolKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	case KindAbstract:
		return "abstract"
	case KindFunction:
		return "function"
	case KindField:
		return "field"
	case KindLocal:
		return "local"
	case KindParameter:
		return "parameter"
	case KindTypeParameter:
		return "type-parameter"
	default:
		return "unknown"
	}
}

// Hierarchy holds the inheritance record for a class symbol: its direct
// superclass, directly implemented interfaces, and the memoized transitive
// closure of all supertypes plus inheritance depth (spec.md §3).
type Hierarchy struct {
	Superclass      TypeID
	HasSuperclass   bool
	Interfaces      []TypeID
	AllSupertypes   map[TypeID]struct{}
	Depth           int
	IsInterfaceDecl bool
}

// Symbol is one entry of the symbol table.
type Symbol struct {
	ID         SymbolID
	ShortName  StringID
	QualName   StringID
	HasQual    bool
	Kind       SymbolKind
	Scope      ScopeID
	Hierarchy  *Hierarchy // only populated for class and interface symbols
}

// Table is the symbol table: it maps symbol identifiers to their records
// and owns the class hierarchy cache (spec.md §3, §4.1).
type Table struct {
	Interner *Interner
	symbols  []Symbol
}

// NewTable creates an empty symbol table backed by the given interner.
func NewTable(in *Interner) *Table {
	return &Table{Interner: in}
}

// Declare registers a new symbol and returns its identifier.
func (t *Table) Declare(shortName StringID, kind SymbolKind, scope ScopeID) SymbolID {
	id := SymbolID(len(t.symbols))
	sym := Symbol{ID: id, ShortName: shortName, Kind: kind, Scope: scope}
	if kind == KindClass || kind == KindInterface {
		sym.Hierarchy = &Hierarchy{IsInterfaceDecl: kind == KindInterface}
	}
	t.symbols = append(t.symbols, sym)
	return id
}

// SetQualifiedName attaches an optional fully-qualified name to a symbol.
func (t *Table) SetQualifiedName(id SymbolID, qual StringID) {
	s := &t.symbols[id]
	s.QualName = qual
	s.HasQual = true
}

// Get returns the symbol record for id.
func (t *Table) Get(id SymbolID) *Symbol {
	return &t.symbols[id]
}

// Len returns the number of declared symbols.
func (t *Table) Len() int { return len(t.symbols) }

// All iterates declared symbol identifiers in declaration order.
func (t *Table) All() []SymbolID {
	ids := make([]SymbolID, len(t.symbols))
	for i := range t.symbols {
		ids[i] = SymbolID(i)
	}
	return ids
}

// Symbols returns every declared symbol record in declaration order, for
// writing a bundle's symbol table (spec.md §6).
func (t *Table) Symbols() []Symbol {
	out := make([]Symbol, len(t.symbols))
	copy(out, t.symbols)
	return out
}

// NewTableFromSymbols rebuilds a Table from a symbol list previously
// produced by Symbols, preserving SymbolID assignment exactly.
func NewTableFromSymbols(in *Interner, symbols []Symbol) *Table {
	out := make([]Symbol, len(symbols))
	copy(out, symbols)
	return &Table{Interner: in, symbols: out}
}
