package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/darmie/rayzor/internal/mir"
)

// lowerTerm translates one MIR terminator. Basic-block structure is
// preserved one-to-one (spec.md §4.8), so every TermKind maps to exactly
// one backend terminator instruction.
func (fb *funcBuilder) lowerTerm(lb *ir.Block, term mir.Terminator) {
	switch term.Kind {
	case mir.TermBranch:
		lb.NewBr(fb.blocks[term.Target])
	case mir.TermCondBranch:
		lb.NewCondBr(fb.operand(term.Cond), fb.blocks[term.TrueBlock], fb.blocks[term.FalseBlock])
	case mir.TermSwitch:
		cases := make([]*ir.Case, len(term.Cases))
		for i, c := range term.Cases {
			cases[i] = ir.NewCase(constant.NewInt(types.I64, c.Value), fb.blocks[c.Target])
		}
		lb.NewSwitch(fb.operand(term.SwitchValue), fb.blocks[term.Default], cases...)
	case mir.TermReturn:
		if term.HasRet {
			lb.NewRet(fb.operand(term.RetValue))
		} else {
			lb.NewRet(nil)
		}
	case mir.TermUnreachable:
		lb.NewUnreachable()
	case mir.TermNoReturnCall:
		var callee value.Value
		if term.IsExtern {
			callee = fb.backend.externs[term.ExternName]
		} else {
			callee = fb.funcPointer(term.Callee)
		}
		args := make([]value.Value, len(term.Args))
		for i, a := range term.Args {
			args[i] = fb.operand(a)
		}
		lb.NewCall(callee, args...)
		lb.NewUnreachable()
	}
}
