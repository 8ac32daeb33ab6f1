// Package hir implements the basic-block-form intermediate representation
// produced by TAST→HIR lowering (spec.md §4.2): nested expressions are
// flattened into three-address instructions arranged into basic blocks
// linked by terminators, but — unlike mir — source variables remain
// mutable named slots rather than single-assignment values. The
// HIR→MIR / SSA builder (internal/ssa) is what renames variable reads and
// writes into ϕ-bearing SSA values.
package hir

import "github.com/darmie/rayzor/internal/symtab"

// FuncID identifies a function within a Module.
type FuncID int32

// BlockID identifies a basic block within a Function.
type BlockID int32

// ValueID names the result of one instruction, unique per Function. Unlike
// mir.ValueID, a ValueID here is NOT a single-assignment SSA name: it is
// simply a handle for wiring one instruction's result into another's
// operand within the same straight-line sequence.
type ValueID int32

// NoValue is the sentinel for an absent optional ValueID.
const NoValue ValueID = -1

// Op enumerates HIR instruction opcodes. ReadVar/WriteVar are the two
// opcodes the SSA builder interprets specially: every other opcode passes
// through lowering unchanged (spec.md §4.3 steps 2-3).
type Op int

const (
	OpConstInt Op = iota
	OpConstFloat
	OpConstBool
	OpConstString
	OpParam

	OpReadVar
	OpWriteVar

	OpBinOp
	OpUnOp

	OpCallDirect
	OpCallStatic

	OpNew
	OpFieldLoad
	OpFieldStore
	OpIndexLoad
	OpIndexStore

	OpCast
	OpMakeClosure
)

// BinOp mirrors tast.BinOp (kept distinct to avoid tast leaking into later
// passes; HIR is the seam where the typed-AST's vocabulary is translated
// into the IR's).
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

// UnOp mirrors tast.UnOp.
type UnOp int

const (
	UnNeg UnOp = iota
	UnNot
)

// SourceLocation is preserved on every instruction (spec.md §4.2).
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// Instr is one HIR instruction.
type Instr struct {
	Op   Op
	Dest ValueID
	Type symtab.TypeID // populated for OpBinOp/OpUnOp so the SSA builder can pick an integer or floating-point opcode

	Var symtab.SymbolID // OpReadVar / OpWriteVar target variable

	ParamIndex int // OpParam

	Operands []ValueID

	IntConst    int64
	FloatConst  float64
	BoolConst   bool
	StringConst string

	BOp BinOp
	UOp UnOp

	Callee   symtab.SymbolID
	ClassSym symtab.SymbolID
	Args     []ValueID

	ClassType  symtab.TypeID
	TargetType symtab.TypeID

	Field symtab.SymbolID

	Captures []symtab.SymbolID
	Closure  FuncID

	Loc SourceLocation
}

// TermKind discriminates terminator variants (spec.md §4.2 step 6 adds
// TermInvoke for try/throw lowering).
type TermKind int

const (
	TermBranch TermKind = iota
	TermCondBranch
	TermSwitch
	TermReturn
	TermUnreachable
	TermThrow
	TermInvoke
)

// SwitchCase is one (constant, target) arm of a switch terminator.
type SwitchCase struct {
	Value  int64
	Target BlockID
}

// Terminator ends a basic block.
type Terminator struct {
	Kind TermKind

	Target BlockID // TermBranch

	Cond       ValueID // TermCondBranch
	TrueBlock  BlockID
	FalseBlock BlockID

	SwitchValue ValueID // TermSwitch
	Cases       []SwitchCase
	Default     BlockID

	RetValue ValueID // TermReturn
	HasRet   bool

	ThrowValue ValueID // TermThrow

	// TermInvoke: a call whose body ends the block, normal control
	// continuing at Normal and an unwind edge to a landing-pad block at
	// Unwind (spec.md §4.2 step 6 "the body of a try ends its block with a
	// call whose unwind-edge targets a landing-pad block").
	Callee   symtab.SymbolID
	Args     []ValueID
	Dest     ValueID
	HasDest  bool
	Normal   BlockID
	Unwind   BlockID
}

// Successors returns the blocks this terminator may transfer control to.
func (t *Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermBranch:
		return []BlockID{t.Target}
	case TermCondBranch:
		return []BlockID{t.TrueBlock, t.FalseBlock}
	case TermSwitch:
		succs := make([]BlockID, 0, len(t.Cases)+1)
		for _, c := range t.Cases {
			succs = append(succs, c.Target)
		}
		return append(succs, t.Default)
	case TermInvoke:
		return []BlockID{t.Normal, t.Unwind}
	default:
		return nil
	}
}

// BlockMeta carries the landing-pad flag alongside the frequency/loop
// metadata mir.BlockMeta also carries (spec.md §4.2 step 6).
type BlockMeta struct {
	IsLoopHeader   bool
	IsLandingPad   bool
	CaughtVar      symtab.SymbolID
	HasCaughtVar   bool
}

// Block is a basic block: straight-line instructions ending in one
// terminator.
type Block struct {
	ID      BlockID
	Label   string
	Preds   []BlockID
	Instrs  []Instr
	Term    Terminator
	HasTerm bool
	Meta    BlockMeta
}
