package mir

import "github.com/darmie/rayzor/internal/symtab"

// Global is a module-level global variable declaration (spec.md §3).
type Global struct {
	Name     symtab.StringID
	Type     symtab.TypeID
	Mutable  bool
}

// GlobalID identifies a Global within a Module.
type GlobalID int32

// ExternFunc is a function declared but not defined in this module — e.g.
// a runtime ABI entry point or a malloc/free primitive (spec.md §4.5
// "extern_functions").
type ExternFunc struct {
	Name string
	Sig  Signature
}

// ExternID identifies an ExternFunc within a Module.
type ExternID int32

// Metadata carries module-wide target and build information (spec.md §3).
type Metadata struct {
	TargetTriple string
	OptLevel     string
	DebugLevel   string
}

// Module is the top-level MIR unit: a set of functions, globals, extern
// declarations, a constant pool, and the symbol table the functions were
// lowered against (spec.md §3 "Module").
//
// SymbolToFunc and FuncToSymbol keep the bidirectional link between a
// source-level function symbol and its lowered MIR function, so later
// passes (tiering, linking) can walk in either direction without a scan.
type Module struct {
	Symtab *symtab.Table
	Types  *symtab.Types

	Functions []*Function
	byFuncID  map[FuncID]*Function
	nextFunc  FuncID

	Globals []Global
	Externs []ExternFunc

	SymbolToFunc map[symtab.SymbolID]FuncID
	FuncToSymbol map[FuncID]symtab.SymbolID

	Meta Metadata
}

// NewModule creates an empty module backed by the given symbol and type
// tables.
func NewModule(symtabl *symtab.Table, types *symtab.Types) *Module {
	return &Module{
		Symtab:       symtabl,
		Types:        types,
		byFuncID:     make(map[FuncID]*Function),
		SymbolToFunc: make(map[symtab.SymbolID]FuncID),
		FuncToSymbol: make(map[FuncID]symtab.SymbolID),
	}
}

// DeclareFunction creates a new function, registers it in the module, and
// returns it. If sym is a valid owning symbol, the bidirectional
// symbol↔function link is recorded.
func (m *Module) DeclareFunction(name string, sig Signature, sym symtab.SymbolID, hasSym bool) *Function {
	id := m.nextFunc
	m.nextFunc++
	fn := NewFunction(id, name, sig)
	if hasSym {
		fn.OwnerSym = sym
		fn.HasOwner = true
		m.SymbolToFunc[sym] = id
		m.FuncToSymbol[id] = sym
	}
	m.Functions = append(m.Functions, fn)
	m.byFuncID[id] = fn
	return fn
}

// Function looks up a function by id.
func (m *Module) Function(id FuncID) (*Function, bool) {
	fn, ok := m.byFuncID[id]
	return fn, ok
}

// RestoreFunction registers a fully-formed function (internal/bundle's
// load path, which decodes a Function independently of DeclareFunction's
// incremental-construction API) and keeps the module's id allocator past
// whatever id it carries, so later DeclareFunction calls on the restored
// module cannot collide with it.
func (m *Module) RestoreFunction(fn *Function) {
	m.Functions = append(m.Functions, fn)
	m.byFuncID[fn.ID] = fn
	if fn.ID >= m.nextFunc {
		m.nextFunc = fn.ID + 1
	}
	if fn.HasOwner {
		m.SymbolToFunc[fn.OwnerSym] = fn.ID
		m.FuncToSymbol[fn.ID] = fn.OwnerSym
	}
}

// DeclareExtern registers an external function declaration and returns its
// id.
func (m *Module) DeclareExtern(name string, sig Signature) ExternID {
	id := ExternID(len(m.Externs))
	m.Externs = append(m.Externs, ExternFunc{Name: name, Sig: sig})
	return id
}

// DeclareGlobal registers a module-level global and returns its id.
func (m *Module) DeclareGlobal(g Global) GlobalID {
	id := GlobalID(len(m.Globals))
	m.Globals = append(m.Globals, g)
	return id
}

// FindExternByName returns the extern declaration with the given name, the
// convention used by escape analysis and free insertion to recognize the
// runtime's malloc/free primitives.
func (m *Module) FindExternByName(name string) (ExternFunc, ExternID, bool) {
	for i, e := range m.Externs {
		if e.Name == name {
			return e, ExternID(i), true
		}
	}
	return ExternFunc{}, 0, false
}

// FindFuncByName returns the defined function with the given name.
func (m *Module) FindFuncByName(name string) (*Function, bool) {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}
