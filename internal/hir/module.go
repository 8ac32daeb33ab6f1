package hir

import "github.com/darmie/rayzor/internal/symtab"

// ClassDecl, EnumDecl mirror their tast counterparts; HIR carries them
// unchanged as first-class typed entries (spec.md §4.2 "the output is an
// HIR module that still contains class/interface/enum/abstract
// declarations as first-class typed entries consumable by the MIR layer").
type ClassDecl struct {
	Sym           symtab.SymbolID
	Name          string
	IsInterface   bool
	IsAbstract    bool
	Superclass    symtab.TypeID
	HasSuperclass bool
	Interfaces    []symtab.TypeID
}

type EnumVariant struct {
	Sym        symtab.SymbolID
	Name       string
	FieldTypes []symtab.TypeID
}

type EnumDecl struct {
	Sym      symtab.SymbolID
	Name     string
	Variants []EnumVariant
}

// Module is the output of TAST→HIR lowering: one compilation unit's
// functions plus its preserved class/enum declarations (spec.md §4.2).
type Module struct {
	Symtab  *symtab.Table
	Types   *symtab.Types
	Classes []*ClassDecl
	Enums   []*EnumDecl

	Functions []*Function
	byID      map[FuncID]*Function
	nextFunc  FuncID
}

// NewModule creates an empty HIR module.
func NewModule(st *symtab.Table, types *symtab.Types) *Module {
	return &Module{Symtab: st, Types: types, byID: make(map[FuncID]*Function)}
}

// DeclareFunction creates a function, registers it, and returns it.
func (m *Module) DeclareFunction(name string, sym symtab.SymbolID) *Function {
	id := m.nextFunc
	m.nextFunc++
	fn := NewFunction(id, name, sym)
	m.Functions = append(m.Functions, fn)
	m.byID[id] = fn
	return fn
}

// Function looks up a function by id.
func (m *Module) Function(id FuncID) (*Function, bool) {
	fn, ok := m.byID[id]
	return fn, ok
}
