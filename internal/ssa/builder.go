// Package ssa implements the HIR→MIR lowering pass (spec.md §4.3): the SSA
// builder that renames every source-variable read and write into ϕ-bearing
// single-assignment values. Instructions that already produce a uniquely
// named temporary in hir pass through unchanged; only OpReadVar/OpWriteVar
// traffic is rewritten.
package ssa

import (
	"fmt"

	"github.com/darmie/rayzor/internal/hir"
	"github.com/darmie/rayzor/internal/mir"
	"github.com/darmie/rayzor/internal/symtab"
)

// UnsupportedHirForm is returned when the builder encounters an HIR
// instruction or terminator shape it does not recognize (spec.md §4.3).
type UnsupportedHirForm struct {
	Function string
	Detail   string
}

func (e *UnsupportedHirForm) Error() string {
	return "ssa: function " + e.Function + ": unsupported hir form: " + e.Detail
}

// SsaInvariantViolation wraps a *mir.CfgMalformed surfaced by the
// post-construction validator (spec.md §4.3 "fails with
// SsaInvariantViolation if a verifier pass after construction finds a value
// used without dominating definition").
type SsaInvariantViolation struct {
	Function string
	Cause    error
}

func (e *SsaInvariantViolation) Error() string {
	return fmt.Sprintf("ssa: function %q violates SSA invariants: %v", e.Function, e.Cause)
}

func (e *SsaInvariantViolation) Unwrap() error { return e.Cause }

// Build lowers every function of an HIR module into SSA-form MIR, then
// validates each (spec.md §4.7 "is run after lowering").
func Build(hmod *hir.Module) (*mir.Module, error) {
	mmod := mir.NewModule(hmod.Symtab, hmod.Types)

	byHirID := make(map[hir.FuncID]*mir.Function, len(hmod.Functions))
	for _, hfn := range hmod.Functions {
		mfn := mmod.DeclareFunction(hfn.Name, translateSig(hfn), hfn.Sym, true)
		byHirID[hfn.ID] = mfn
	}

	for _, hfn := range hmod.Functions {
		b := &builder{
			hfn:        hfn,
			mfn:        byHirID[hfn.ID],
			mmod:       mmod,
			byHirID:    byHirID,
			blockMap:   make(map[hir.BlockID]mir.BlockID),
			valMap:     make(map[hir.ValueID]mir.ValueID),
			currentDef: make(map[symtab.SymbolID]map[mir.BlockID]mir.ValueID),
		}
		if err := b.run(); err != nil {
			return nil, err
		}
		if err := mir.Validate(b.mfn); err != nil {
			return nil, &SsaInvariantViolation{Function: hfn.Name, Cause: err}
		}
	}

	return mmod, nil
}

func translateSig(hfn *hir.Function) mir.Signature {
	params := make([]mir.Param, len(hfn.Params))
	for i, p := range hfn.Params {
		params[i] = mir.Param{Type: p.Type, ByRef: p.ByRef}
	}
	return mir.Signature{Params: params, Return: hfn.Return, Conv: mir.ConvSourceLanguage}
}

type builder struct {
	hfn     *hir.Function
	mfn     *mir.Function
	mmod    *mir.Module
	byHirID map[hir.FuncID]*mir.Function

	blockMap map[hir.BlockID]mir.BlockID
	valMap   map[hir.ValueID]mir.ValueID

	// currentDef[variable][block] is the SSA value representing variable's
	// latest write reaching the end of block (spec.md §4.3 step 2).
	currentDef map[symtab.SymbolID]map[mir.BlockID]mir.ValueID

	// inProgressPhi guards against infinite recursion when a block is its
	// own (possibly transitive) predecessor: the placeholder phi value is
	// recorded as the block's current definition before its operands are
	// resolved (spec.md §4.3 step 4 "seal the header").
	inProgressPhi map[mir.BlockID]map[symtab.SymbolID]mir.ValueID
}

func (b *builder) run() error {
	b.inProgressPhi = make(map[mir.BlockID]map[symtab.SymbolID]mir.ValueID)

	// Pass A: allocate one mir block per hir block (entry reuses the CFG's
	// auto-created entry), reserve parameter values, and replicate the
	// predecessor graph so phi construction can proceed in any order.
	first := true
	for _, hid := range orderedBlockIDs(b.hfn) {
		var mid mir.BlockID
		if first {
			mid = b.mfn.CFG.Entry
			first = false
		} else {
			mid = b.mfn.CFG.NewBlock()
		}
		b.blockMap[hid] = mid
	}
	for range b.hfn.Params {
		b.mfn.CFG.NewValue() // reserve value ids 0..n-1 for parameters, by convention
	}

	// Pass B: translate instructions and terminators block by block.
	for _, hid := range orderedBlockIDs(b.hfn) {
		if err := b.translateBlock(hid); err != nil {
			return err
		}
	}
	return nil
}

func orderedBlockIDs(hfn *hir.Function) []hir.BlockID {
	ids := make([]hir.BlockID, 0, len(hfn.Blocks))
	ids = append(ids, hfn.Entry)
	for id := range hfn.Blocks {
		if id != hfn.Entry {
			ids = append(ids, id)
		}
	}
	return ids
}

func (b *builder) translateBlock(hid hir.BlockID) error {
	hb := b.hfn.Blocks[hid]
	mid := b.blockMap[hid]

	for _, hi := range hb.Instrs {
		if err := b.translateInstr(mid, hi); err != nil {
			return err
		}
	}

	return b.translateTerm(hid, mid, hb.Term, hb.HasTerm)
}

func (b *builder) mirVal(hv hir.ValueID) mir.ValueID {
	if hv == hir.NoValue {
		return mir.NoValue
	}
	return b.valMap[hv]
}

func (b *builder) mirVals(hvs []hir.ValueID) []mir.ValueID {
	out := make([]mir.ValueID, len(hvs))
	for i, hv := range hvs {
		out[i] = b.mirVal(hv)
	}
	return out
}

func (b *builder) translateInstr(mid mir.BlockID, hi hir.Instr) error {
	switch hi.Op {
	case hir.OpParam:
		b.valMap[hi.Dest] = mir.ValueID(hi.ParamIndex)
		return nil

	case hir.OpReadVar:
		b.valMap[hi.Dest] = b.readVariable(hi.Var, mid)
		return nil

	case hir.OpWriteVar:
		b.writeVariable(hi.Var, mid, b.mirVal(hi.Operands[0]))
		return nil

	case hir.OpConstInt:
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpConstInt, IntConst: hi.IntConst})
	case hir.OpConstFloat:
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpConstFloat, FloatConst: hi.FloatConst})
	case hir.OpConstBool:
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpConstBool, BoolConst: hi.BoolConst})
	case hir.OpConstString:
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpConstString, StringConst: hi.StringConst})

	case hir.OpBinOp:
		op := b.binOpcode(hi.BOp, hi.Type)
		b.emit(mid, hi.Dest, mir.Instr{Op: op, Operands: b.mirVals(hi.Operands)})

	case hir.OpUnOp:
		op := mir.OpNeg
		if hi.UOp == hir.UnNot {
			op = mir.OpNot
		}
		b.emit(mid, hi.Dest, mir.Instr{Op: op, Operands: b.mirVals(hi.Operands)})

	case hir.OpCallDirect, hir.OpCallStatic:
		fid, isExtern, externName := b.resolveCallee(hi.Callee)
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpCallDirect, Callee: fid, IsExtern: isExtern, ExternName: externName, Operands: b.mirVals(hi.Args)})

	case hir.OpNew:
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpAlloc, ElemType: hi.ClassType})

	case hir.OpFieldLoad:
		gep := b.mfn.CFG.NewValue()
		b.mfn.CFG.AppendInstr(mid, mir.Instr{Op: mir.OpGetElementPtr, Dest: gep, Operands: b.mirVals(hi.Operands), Indices: []int{int(hi.Field)}})
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpLoad, Operands: []mir.ValueID{gep}})

	case hir.OpFieldStore:
		operands := b.mirVals(hi.Operands)
		gep := b.mfn.CFG.NewValue()
		b.mfn.CFG.AppendInstr(mid, mir.Instr{Op: mir.OpGetElementPtr, Dest: gep, Operands: []mir.ValueID{operands[0]}, Indices: []int{int(hi.Field)}})
		b.mfn.CFG.AppendInstr(mid, mir.Instr{Op: mir.OpStore, Operands: []mir.ValueID{gep, operands[1]}})

	case hir.OpIndexLoad:
		operands := b.mirVals(hi.Operands)
		gep := b.mfn.CFG.NewValue()
		b.mfn.CFG.AppendInstr(mid, mir.Instr{Op: mir.OpPtrAdd, Dest: gep, Operands: operands})
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpLoad, Operands: []mir.ValueID{gep}})

	case hir.OpIndexStore:
		operands := b.mirVals(hi.Operands)
		gep := b.mfn.CFG.NewValue()
		b.mfn.CFG.AppendInstr(mid, mir.Instr{Op: mir.OpPtrAdd, Dest: gep, Operands: operands[:2]})
		b.mfn.CFG.AppendInstr(mid, mir.Instr{Op: mir.OpStore, Operands: []mir.ValueID{gep, operands[2]}})

	case hir.OpCast:
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpIntCast, Operands: b.mirVals(hi.Operands), TargetType: hi.TargetType})

	case hir.OpMakeClosure:
		closureFn := b.byHirID[hi.Closure]
		captured := make([]mir.ValueID, len(hi.Captures))
		for i, sym := range hi.Captures {
			captured[i] = b.readVariable(sym, mid)
		}
		b.emit(mid, hi.Dest, mir.Instr{Op: mir.OpMakeClosure, Callee: closureFn.ID, Operands: captured})

	default:
		return &UnsupportedHirForm{b.hfn.Name, fmt.Sprintf("instruction opcode %d", hi.Op)}
	}
	return nil
}

// emit allocates the mir destination (if hd is a real value) and appends
// instr to block.
func (b *builder) emit(block mir.BlockID, hd hir.ValueID, instr mir.Instr) {
	if hd != hir.NoValue {
		instr.Dest = b.mfn.CFG.NewValue()
		b.valMap[hd] = instr.Dest
	} else {
		instr.Dest = mir.NoValue
	}
	b.mfn.CFG.AppendInstr(block, instr)
}

// resolveCallee maps a callee symbol to its lowered mir function, or
// reports it as an external (runtime/host-provided) call — keyed by the
// symbol's own short name — when no such function was declared in this
// module.
func (b *builder) resolveCallee(sym symtab.SymbolID) (fid mir.FuncID, isExtern bool, externName string) {
	if fid, ok := b.mmod.SymbolToFunc[sym]; ok {
		return fid, false, ""
	}
	s := b.mmod.Symtab.Get(sym)
	return 0, true, b.mmod.Symtab.Interner.Lookup(s.ShortName)
}

func (b *builder) binOpcode(op hir.BinOp, ty symtab.TypeID) mir.Op {
	isFloat := b.isFloatType(ty)
	switch op {
	case hir.BinAdd:
		if isFloat {
			return mir.OpFAdd
		}
		return mir.OpAdd
	case hir.BinSub:
		if isFloat {
			return mir.OpFSub
		}
		return mir.OpSub
	case hir.BinMul:
		if isFloat {
			return mir.OpFMul
		}
		return mir.OpMul
	case hir.BinDiv:
		if isFloat {
			return mir.OpFDiv
		}
		return mir.OpDiv
	case hir.BinRem:
		return mir.OpRem
	case hir.BinAnd:
		return mir.OpAnd
	case hir.BinOr:
		return mir.OpOr
	case hir.BinXor:
		return mir.OpXor
	case hir.BinShl:
		return mir.OpShl
	case hir.BinShr:
		return mir.OpShr
	case hir.BinEq:
		if isFloat {
			return mir.OpFCmpOEQ
		}
		return mir.OpICmpEQ
	case hir.BinNe:
		if isFloat {
			return mir.OpFCmpONE
		}
		return mir.OpICmpNE
	case hir.BinLt:
		if isFloat {
			return mir.OpFCmpOLT
		}
		return mir.OpICmpSLT
	case hir.BinLe:
		if isFloat {
			return mir.OpFCmpOLE
		}
		return mir.OpICmpSLE
	case hir.BinGt:
		if isFloat {
			return mir.OpFCmpOGT
		}
		return mir.OpICmpSGT
	default: // hir.BinGe
		if isFloat {
			return mir.OpFCmpOGE
		}
		return mir.OpICmpSGE
	}
}

func (b *builder) isFloatType(ty symtab.TypeID) bool {
	resolved, err := b.mmod.Types.ResolveAlias(ty)
	if err != nil {
		return false
	}
	term := b.mmod.Types.Get(resolved)
	return term.Kind == symtab.TermPrimitive && term.Primitive == symtab.PrimFloat
}
