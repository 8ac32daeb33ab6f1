package ssa

import (
	"github.com/darmie/rayzor/internal/mir"
	"github.com/darmie/rayzor/internal/symtab"
)

// writeVariable records value as variable's current SSA name at the end of
// block (spec.md §4.3 step 2 "the current value for the block").
func (b *builder) writeVariable(variable symtab.SymbolID, block mir.BlockID, value mir.ValueID) {
	m, ok := b.currentDef[variable]
	if !ok {
		m = make(map[mir.BlockID]mir.ValueID)
		b.currentDef[variable] = m
	}
	m[block] = value
}

// readVariable resolves variable's current SSA name visible at block,
// recursing through predecessors and inserting ϕ-nodes at merge points on
// demand (spec.md §4.3 steps 3-4).
func (b *builder) readVariable(variable symtab.SymbolID, block mir.BlockID) mir.ValueID {
	if v, ok := b.currentDef[variable][block]; ok {
		return v
	}
	return b.readVariableRecursive(variable, block)
}

func (b *builder) readVariableRecursive(variable symtab.SymbolID, block mir.BlockID) mir.ValueID {
	preds := b.mfn.CFG.Blocks[block].Preds

	switch len(preds) {
	case 0:
		// No predecessor and no prior write: the source language's own
		// definite-assignment check is responsible for ruling this out
		// before lowering reaches here. Substitute a zero constant rather
		// than crash, so a single unreachable read cannot abort the whole
		// compilation.
		v := b.mfn.CFG.NewValue()
		b.mfn.CFG.AppendInstr(block, mir.Instr{Op: mir.OpConstInt, Dest: v, IntConst: 0})
		b.writeVariable(variable, block, v)
		return v

	case 1:
		v := b.readVariable(variable, preds[0])
		b.writeVariable(variable, block, v)
		return v

	default:
		// Reserve the ϕ's destination and record it as the block's current
		// definition *before* walking predecessors, so a cyclic read (a
		// loop header reading a variable the loop body itself redefines)
		// resolves to this same placeholder instead of recursing forever.
		dest := b.mfn.CFG.NewValue()
		phi := mir.Phi{Dest: dest}
		idx := len(b.mfn.CFG.Blocks[block].Phis)
		b.mfn.CFG.Blocks[block].Phis = append(b.mfn.CFG.Blocks[block].Phis, phi)
		b.writeVariable(variable, block, dest)

		for _, p := range preds {
			incoming := b.readVariable(variable, p)
			b.mfn.CFG.Blocks[block].Phis[idx].Incoming = append(
				b.mfn.CFG.Blocks[block].Phis[idx].Incoming,
				mir.PhiIncoming{Pred: p, Val: incoming},
			)
		}
		return dest
	}
}
