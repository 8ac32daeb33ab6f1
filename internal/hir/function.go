package hir

import "github.com/darmie/rayzor/internal/symtab"

// Param is one parameter of a function.
type Param struct {
	Sym   symtab.SymbolID
	Type  symtab.TypeID
	ByRef bool
}

// LocalInfo is the typed-local-table entry carried through from TAST
// (spec.md §3 "typed local table").
type LocalInfo struct {
	Type    symtab.TypeID
	Mutable bool
}

// Function is one HIR function: a mutable-variable control-flow graph ready
// for SSA renaming.
type Function struct {
	ID     FuncID
	Name   string
	Sym    symtab.SymbolID
	Params []Param
	Return symtab.TypeID
	Locals map[symtab.SymbolID]LocalInfo

	Blocks    map[BlockID]*Block
	Entry     BlockID
	nextBlock BlockID
	nextValue ValueID
}

// NewFunction creates a function with a fresh entry block.
func NewFunction(id FuncID, name string, sym symtab.SymbolID) *Function {
	fn := &Function{
		ID:     id,
		Name:   name,
		Sym:    sym,
		Locals: make(map[symtab.SymbolID]LocalInfo),
		Blocks: make(map[BlockID]*Block),
	}
	fn.Entry = fn.NewBlock()
	return fn
}

// NewBlock allocates a fresh, unterminated block.
func (f *Function) NewBlock() BlockID {
	id := f.nextBlock
	f.nextBlock++
	f.Blocks[id] = &Block{ID: id}
	return id
}

// NewValue allocates a fresh value handle.
func (f *Function) NewValue() ValueID {
	id := f.nextValue
	f.nextValue++
	return id
}

// AddPred records pred as a predecessor of block.
func (f *Function) AddPred(block, pred BlockID) {
	b := f.Blocks[block]
	for _, p := range b.Preds {
		if p == pred {
			return
		}
	}
	b.Preds = append(b.Preds, pred)
}

// SetTerminator attaches term to block and updates successors' predecessor
// lists.
func (f *Function) SetTerminator(block BlockID, term Terminator) {
	b := f.Blocks[block]
	b.Term = term
	b.HasTerm = true
	for _, succ := range term.Successors() {
		f.AddPred(succ, block)
	}
}

// Emit appends instr to block and returns instr.Dest.
func (f *Function) Emit(block BlockID, instr Instr) ValueID {
	f.Blocks[block].Instrs = append(f.Blocks[block].Instrs, instr)
	return instr.Dest
}

// DeclareLocal registers a source variable's type and mutability.
func (f *Function) DeclareLocal(sym symtab.SymbolID, ty symtab.TypeID, mutable bool) {
	f.Locals[sym] = LocalInfo{Type: ty, Mutable: mutable}
}
