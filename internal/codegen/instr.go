package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/darmie/rayzor/internal/mir"
)

// lowerInstr translates one straight-line MIR instruction to its backend
// equivalent (spec.md §4.8 "all instruction kinds from §3 are lowered to
// their direct backend equivalents").
func (fb *funcBuilder) lowerInstr(lb *ir.Block, in mir.Instr) error {
	switch in.Op {
	case mir.OpConstInt:
		fb.bind(in.Dest, constant.NewInt(types.I64, in.IntConst))
	case mir.OpConstFloat:
		fb.bind(in.Dest, constant.NewFloat(types.Double, in.FloatConst))
	case mir.OpConstBool:
		fb.bind(in.Dest, constant.NewBool(in.BoolConst))
	case mir.OpConstString:
		fb.bind(in.Dest, fb.internString(in.StringConst))
	case mir.OpCopy:
		fb.bind(in.Dest, fb.operand(in.Operands[0]))

	case mir.OpLoad:
		fb.bind(in.Dest, lb.NewLoad(types.I64, fb.operand(in.Operands[0])))
	case mir.OpStore:
		lb.NewStore(fb.operand(in.Operands[1]), fb.operand(in.Operands[0]))

	case mir.OpAdd:
		fb.bind(in.Dest, lb.NewAdd(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpSub:
		fb.bind(in.Dest, lb.NewSub(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpMul:
		fb.bind(in.Dest, lb.NewMul(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpDiv:
		fb.bind(in.Dest, lb.NewSDiv(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpRem:
		fb.bind(in.Dest, lb.NewSRem(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpAnd:
		fb.bind(in.Dest, lb.NewAnd(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpOr:
		fb.bind(in.Dest, lb.NewOr(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpXor:
		fb.bind(in.Dest, lb.NewXor(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpShl:
		fb.bind(in.Dest, lb.NewShl(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpShr:
		fb.bind(in.Dest, lb.NewAShr(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))

	case mir.OpFAdd:
		fb.bind(in.Dest, lb.NewFAdd(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFSub:
		fb.bind(in.Dest, lb.NewFSub(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFMul:
		fb.bind(in.Dest, lb.NewFMul(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFDiv:
		fb.bind(in.Dest, lb.NewFDiv(fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))

	case mir.OpNeg:
		fb.bind(in.Dest, lb.NewSub(constant.NewInt(types.I64, 0), fb.operand(in.Operands[0])))
	case mir.OpNot:
		fb.bind(in.Dest, lb.NewXor(fb.operand(in.Operands[0]), constant.NewBool(true)))

	case mir.OpICmpEQ:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredEQ, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpNE:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredNE, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpSLT:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredSLT, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpSLE:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredSLE, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpSGT:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredSGT, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpSGE:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredSGE, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpULT:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredULT, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpULE:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredULE, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpUGT:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredUGT, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpICmpUGE:
		fb.bind(in.Dest, lb.NewICmp(enum.IPredUGE, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFCmpOEQ:
		fb.bind(in.Dest, lb.NewFCmp(enum.FPredOEQ, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFCmpONE:
		fb.bind(in.Dest, lb.NewFCmp(enum.FPredONE, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFCmpOLT:
		fb.bind(in.Dest, lb.NewFCmp(enum.FPredOLT, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFCmpOLE:
		fb.bind(in.Dest, lb.NewFCmp(enum.FPredOLE, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFCmpOGT:
		fb.bind(in.Dest, lb.NewFCmp(enum.FPredOGT, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFCmpOGE:
		fb.bind(in.Dest, lb.NewFCmp(enum.FPredOGE, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpFCmpUnord:
		fb.bind(in.Dest, lb.NewFCmp(enum.FPredUno, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))

	case mir.OpCallDirect:
		return fb.lowerCall(lb, in)
	case mir.OpCallIndirect:
		callee := fb.operand(in.Operands[0])
		args := make([]value.Value, 0, len(in.Operands)-1)
		for _, a := range in.Operands[1:] {
			args = append(args, fb.operand(a))
		}
		fb.bind(in.Dest, lb.NewCall(callee, args...))

	case mir.OpAlloc:
		fb.bind(in.Dest, fb.call(lb, "malloc", fb.allocSize(in)))
	case mir.OpFree:
		fb.call(lb, "free", fb.operand(in.Operands[0]))

	case mir.OpPtrAdd:
		fb.bind(in.Dest, lb.NewGetElementPtr(types.I8, fb.operand(in.Operands[0]), fb.operand(in.Operands[1])))
	case mir.OpGetElementPtr:
		indices := make([]value.Value, len(in.Indices))
		for i, idx := range in.Indices {
			indices[i] = constant.NewInt(types.I32, int64(idx))
		}
		fb.bind(in.Dest, lb.NewGetElementPtr(types.I8, fb.operand(in.Operands[0]), indices...))
	case mir.OpMemCopy:
		fb.call(lb, "rayzor_memcopy", fb.operand(in.Operands[0]), fb.operand(in.Operands[1]), fb.operand(in.Operands[2]))
	case mir.OpMemSet:
		fb.call(lb, "rayzor_memset", fb.operand(in.Operands[0]), fb.operand(in.Operands[1]), fb.operand(in.Operands[2]))

	case mir.OpIntCast:
		fb.bind(in.Dest, lb.NewTrunc(fb.operand(in.Operands[0]), typeOf(fb.src.Types, in.TargetType)))
	case mir.OpFloatCast:
		fb.bind(in.Dest, lb.NewFPExt(fb.operand(in.Operands[0]), typeOf(fb.src.Types, in.TargetType)))
	case mir.OpBitCast:
		fb.bind(in.Dest, lb.NewBitCast(fb.operand(in.Operands[0]), typeOf(fb.src.Types, in.TargetType)))

	case mir.OpThrow:
		fb.call(lb, "rayzor_throw", fb.operand(in.Operands[0]))
	case mir.OpLandingPad:
		fb.bind(in.Dest, fb.call(lb, "rayzor_catch"))
	case mir.OpResume:
		fb.call(lb, "rayzor_resume", fb.operand(in.Operands[0]))

	case mir.OpSelect:
		fb.bind(in.Dest, lb.NewSelect(fb.operand(in.Operands[0]), fb.operand(in.Operands[1]), fb.operand(in.Operands[2])))
	case mir.OpExtract:
		indices := make([]value.Value, len(in.Indices))
		for i, idx := range in.Indices {
			indices[i] = constant.NewInt(types.I32, int64(idx))
		}
		fb.bind(in.Dest, lb.NewGetElementPtr(types.I8, fb.operand(in.Operands[0]), indices...))
	case mir.OpInsert:
		lb.NewStore(fb.operand(in.Operands[1]), fb.operand(in.Operands[0]))

	case mir.OpDebugLocation:
		// Carries source-location metadata only (spec.md §6 "debug_info");
		// has no native equivalent to emit.

	case mir.OpInlineAsm:
		return fmt.Errorf("inline asm is not supported by the LLVM-IR backend")

	case mir.OpMakeClosure:
		args := make([]value.Value, 0, len(in.Operands)+1)
		args = append(args, fb.funcPointer(in.Callee))
		for _, c := range in.Operands {
			args = append(args, fb.operand(c))
		}
		fb.bind(in.Dest, fb.call(lb, "rayzor_make_closure", args...))
	case mir.OpStoreGlobal:
		lb.NewStore(fb.operand(in.Operands[0]), fb.globalPtr(in))
	case mir.OpCreateStruct:
		args := make([]value.Value, len(in.Operands))
		for i, o := range in.Operands {
			args[i] = fb.operand(o)
		}
		fb.bind(in.Dest, fb.call(lb, "rayzor_alloc_struct", args...))

	default:
		return fmt.Errorf("unhandled MIR opcode %v", in.Op)
	}
	return nil
}

func (fb *funcBuilder) lowerCall(lb *ir.Block, in mir.Instr) error {
	var callee value.Value
	if in.IsExtern {
		fn, ok := fb.backend.externs[in.ExternName]
		if !ok {
			return fmt.Errorf("call to undeclared extern %q", in.ExternName)
		}
		callee = fn
	} else {
		callee = fb.funcPointer(in.Callee)
	}
	args := make([]value.Value, len(in.Operands))
	for i, a := range in.Operands {
		args[i] = fb.operand(a)
	}
	fb.bind(in.Dest, lb.NewCall(callee, args...))
	return nil
}

func (fb *funcBuilder) funcPointer(id mir.FuncID) value.Value {
	if fn, ok := fb.backend.funcs[id]; ok {
		return fn
	}
	return constant.NewNull(types.NewPointer(types.I8))
}

func (fb *funcBuilder) allocSize(in mir.Instr) value.Value {
	if in.HasCount {
		return fb.operand(in.ElemCount)
	}
	return constant.NewInt(types.I64, 8)
}

func (fb *funcBuilder) globalPtr(in mir.Instr) value.Value {
	return fb.operand(in.Operands[0])
}

// call emits a call to a runtime ABI symbol, declaring it as an extern on
// first use (the backend's externs map doubles as a declare-on-demand
// cache for ABI entry points not already present in the module's extern
// list).
func (fb *funcBuilder) call(lb *ir.Block, name string, args ...value.Value) *ir.InstCall {
	fn, ok := fb.backend.externs[name]
	if !ok {
		irParams := make([]*ir.Param, len(args))
		for i, a := range args {
			irParams[i] = ir.NewParam("", a.Type())
		}
		fn = fb.backend.mod.NewFunc(name, boxedPtr, irParams...)
		fb.backend.externs[name] = fn
	}
	return lb.NewCall(fn, args...)
}

func (fb *funcBuilder) internString(s string) value.Value {
	if g, ok := fb.backend.strings[s]; ok {
		return g
	}
	data := constant.NewCharArrayFromString(s + "\x00")
	glob := fb.backend.mod.NewGlobalDef(fmt.Sprintf("str.%d", len(fb.backend.strings)), data)
	fb.backend.strings[s] = glob
	return glob
}
