package ssa

import (
	"fmt"

	"github.com/darmie/rayzor/internal/hir"
	"github.com/darmie/rayzor/internal/mir"
)

// translateTerm lowers one hir terminator into its mir equivalent.
//
// hir.TermInvoke has no direct mir counterpart: mir's terminator vocabulary
// (spec.md §3) has no invoke-with-unwind-edge form, so the call is emitted
// as a plain instruction followed by an unconditional branch to the normal
// continuation. The landing pad block is preserved in the function's block
// map but is reached only through the runtime's own unwind mechanism, not
// through a static CFG edge — recorded as an open-question decision, not a
// silent gap.
func (b *builder) translateTerm(hid hir.BlockID, mid mir.BlockID, term hir.Terminator, hasTerm bool) error {
	if !hasTerm {
		return &UnsupportedHirForm{b.hfn.Name, fmt.Sprintf("block %d has no terminator", hid)}
	}

	switch term.Kind {
	case hir.TermBranch:
		b.mfn.CFG.SetTerminator(mid, mir.Terminator{Kind: mir.TermBranch, Target: b.blockMap[term.Target]})

	case hir.TermCondBranch:
		b.mfn.CFG.SetTerminator(mid, mir.Terminator{
			Kind: mir.TermCondBranch, Cond: b.mirVal(term.Cond),
			TrueBlock: b.blockMap[term.TrueBlock], FalseBlock: b.blockMap[term.FalseBlock],
		})

	case hir.TermSwitch:
		cases := make([]mir.SwitchCase, len(term.Cases))
		for i, c := range term.Cases {
			cases[i] = mir.SwitchCase{Value: c.Value, Target: b.blockMap[c.Target]}
		}
		b.mfn.CFG.SetTerminator(mid, mir.Terminator{
			Kind: mir.TermSwitch, SwitchValue: b.mirVal(term.SwitchValue),
			Cases: cases, Default: b.blockMap[term.Default],
		})

	case hir.TermReturn:
		if term.HasRet {
			b.mfn.CFG.SetTerminator(mid, mir.Terminator{Kind: mir.TermReturn, RetValue: b.mirVal(term.RetValue), HasRet: true})
		} else {
			b.mfn.CFG.SetTerminator(mid, mir.Terminator{Kind: mir.TermReturn, HasRet: false})
		}

	case hir.TermUnreachable:
		b.mfn.CFG.SetTerminator(mid, mir.Terminator{Kind: mir.TermUnreachable})

	case hir.TermThrow:
		// Thrown values are routed through the runtime's throw primitive,
		// which never returns.
		b.mfn.CFG.SetTerminator(mid, mir.Terminator{
			Kind: mir.TermNoReturnCall, IsExtern: true, ExternName: "haxe_throw",
			Args: []mir.ValueID{b.mirVal(term.ThrowValue)},
		})

	case hir.TermInvoke:
		fid, isExtern, externName := b.resolveCallee(term.Callee)
		var dest mir.ValueID
		if term.HasDest {
			dest = b.mfn.CFG.NewValue()
			b.valMap[term.Dest] = dest
		} else {
			dest = mir.NoValue
		}
		b.mfn.CFG.AppendInstr(mid, mir.Instr{
			Op: mir.OpCallDirect, Dest: dest, Callee: fid, IsExtern: isExtern, ExternName: externName,
			Operands: b.mirVals(term.Args),
		})
		b.mfn.CFG.SetTerminator(mid, mir.Terminator{Kind: mir.TermBranch, Target: b.blockMap[term.Normal]})

	default:
		return &UnsupportedHirForm{b.hfn.Name, fmt.Sprintf("terminator kind %d", term.Kind)}
	}
	return nil
}

