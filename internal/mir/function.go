package mir

import "github.com/darmie/rayzor/internal/symtab"

// CallConv is the calling convention of a function (spec.md §3).
type CallConv int

const (
	ConvSourceLanguage CallConv = iota
	ConvC
)

// Param is one parameter of a function signature.
type Param struct {
	Type      symtab.TypeID
	ByRef     bool
}

// Signature is a function's calling contract (spec.md §3 "Function").
type Signature struct {
	Params           []Param
	Return           symtab.TypeID
	Conv             CallConv
	CanThrow         bool
	UsesStructReturn bool
}

// AllocHint is the allocation strategy chosen for a local (spec.md §3).
type AllocHint int

const (
	AllocRegister AllocHint = iota
	AllocStack
	AllocHeap
)

// Local is one entry of a function's typed local table.
type Local struct {
	Name      symtab.StringID
	Type      symtab.TypeID
	Mutable   bool
	Hint      AllocHint
}

// CFG is the control-flow graph of a function: a map from block id to
// block, a designated entry block, and a next-available block counter
// (spec.md §3 "Control-flow graph").
type CFG struct {
	Blocks       map[BlockID]*Block
	Entry        BlockID
	nextBlock    BlockID
	nextValue    ValueID
}

// NewCFG creates an empty CFG with a fresh entry block.
func NewCFG() *CFG {
	cfg := &CFG{Blocks: make(map[BlockID]*Block)}
	cfg.Entry = cfg.NewBlock()
	return cfg
}

// RestoreCFG rebuilds a CFG from a previously-serialized block map and
// entry block id (internal/bundle's load path), setting the block/value
// counters past the highest id present so further construction on the
// restored CFG cannot collide with ids it already contains.
func RestoreCFG(blocks map[BlockID]*Block, entry BlockID) *CFG {
	cfg := &CFG{Blocks: blocks, Entry: entry}
	for _, b := range blocks {
		if b.ID >= cfg.nextBlock {
			cfg.nextBlock = b.ID + 1
		}
		for _, phi := range b.Phis {
			if phi.Dest >= cfg.nextValue {
				cfg.nextValue = phi.Dest + 1
			}
		}
		for _, instr := range b.Instrs {
			if v, ok := instr.dest(); ok && v >= cfg.nextValue {
				cfg.nextValue = v + 1
			}
			if instr.Dest2 != NoValue && instr.Dest2 >= cfg.nextValue {
				cfg.nextValue = instr.Dest2 + 1
			}
		}
	}
	return cfg
}

// NewBlock allocates a fresh, unterminated block and returns its id.
func (c *CFG) NewBlock() BlockID {
	id := c.nextBlock
	c.nextBlock++
	c.Blocks[id] = &Block{ID: id}
	return id
}

// NewValue allocates a fresh SSA value identifier, unique within the CFG's
// owning function.
func (c *CFG) NewValue() ValueID {
	id := c.nextValue
	c.nextValue++
	return id
}

// AddPred records pred as a predecessor of block, keeping the predecessor
// list in sync with terminators (spec.md §3 invariant).
func (c *CFG) AddPred(block, pred BlockID) {
	b := c.Blocks[block]
	for _, p := range b.Preds {
		if p == pred {
			return
		}
	}
	b.Preds = append(b.Preds, pred)
}

// SetTerminator attaches term to block and updates successor blocks'
// predecessor lists to match.
func (c *CFG) SetTerminator(block BlockID, term Terminator) {
	b := c.Blocks[block]
	b.Term = term
	b.HasTerm = true
	for _, succ := range term.Successors() {
		c.AddPred(succ, block)
	}
}

// AppendInstr appends an instruction to block's straight-line instruction
// list.
func (c *CFG) AppendInstr(block BlockID, instr Instr) {
	b := c.Blocks[block]
	b.Instrs = append(b.Instrs, instr)
}

// Function is one compiled function: identifier, name, owning symbol,
// signature, typed local table, and a control-flow graph (spec.md §3).
type Function struct {
	ID        FuncID
	Name      string
	OwnerSym  symtab.SymbolID
	HasOwner  bool
	Sig       Signature
	Locals    map[ValueID]*Local
	CFG       *CFG
}

// NewFunction creates an empty function with a fresh CFG.
func NewFunction(id FuncID, name string, sig Signature) *Function {
	return &Function{
		ID:     id,
		Name:   name,
		Sig:    sig,
		Locals: make(map[ValueID]*Local),
		CFG:    NewCFG(),
	}
}

// ReturnBlocks returns the ids of every block terminated with TermReturn.
func (f *Function) ReturnBlocks() []BlockID {
	var out []BlockID
	for id, b := range f.CFG.Blocks {
		if b.HasTerm && b.Term.Kind == TermReturn {
			out = append(out, id)
		}
	}
	return out
}
