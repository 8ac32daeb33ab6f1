package hir

import (
	"fmt"

	"github.com/darmie/rayzor/internal/symtab"
	"github.com/darmie/rayzor/internal/tast"
)

// Lower converts a typed-AST file into an HIR module (spec.md §4.2):
// nested expressions are flattened into three-address instructions
// arranged into basic blocks, class/interface/enum declarations are
// carried through unchanged, and loop labels are represented by the
// loop-statement's own symbol identifier so break/continue lower to
// unconditional branches to known target blocks.
func Lower(file *tast.File) (*Module, error) {
	mod := NewModule(file.Symtab, file.Types)

	for _, c := range file.Classes {
		mod.Classes = append(mod.Classes, &ClassDecl{
			Sym:           c.Sym,
			Name:          c.Name,
			IsInterface:   c.IsInterface,
			IsAbstract:    c.IsAbstract,
			Superclass:    c.Superclass,
			HasSuperclass: c.HasSuperclass,
			Interfaces:    c.Interfaces,
		})
	}
	for _, e := range file.Enums {
		variants := make([]EnumVariant, len(e.Variants))
		for i, v := range e.Variants {
			variants[i] = EnumVariant{Sym: v.Sym, Name: v.Name, FieldTypes: v.FieldTypes}
		}
		mod.Enums = append(mod.Enums, &EnumDecl{Sym: e.Sym, Name: e.Name, Variants: variants})
	}

	for _, fd := range file.Functions {
		if _, err := lowerFunction(mod, fd); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

// loopCtx records the header and exit blocks break/continue target for one
// enclosing loop, keyed by the loop's own symbol identifier.
type loopCtx struct {
	label  symtab.SymbolID
	header BlockID
	exit   BlockID
}

type lowerer struct {
	mod   *Module
	fn    *Function
	loops []loopCtx
}

func lowerFunction(mod *Module, fd *tast.FuncDecl) (*Function, error) {
	fn := mod.DeclareFunction(fd.Name, fd.Sym)
	lw := &lowerer{mod: mod, fn: fn}

	cur := fn.Entry
	for i, p := range fd.Params {
		fn.DeclareLocal(p.Sym, p.Type, true)
		v := fn.NewValue()
		fn.Emit(cur, Instr{Op: OpParam, Dest: v, ParamIndex: i})
		fn.Emit(cur, Instr{Op: OpWriteVar, Var: p.Sym, Operands: []ValueID{v}})
		fn.Params = append(fn.Params, Param{Sym: p.Sym, Type: p.Type, ByRef: p.ByRef})
	}
	fn.Return = fd.Return

	for _, s := range fd.Body {
		if err := lw.lowerStmt(s, &cur); err != nil {
			return nil, err
		}
	}
	if !fn.Blocks[cur].HasTerm {
		fn.SetTerminator(cur, Terminator{Kind: TermReturn, HasRet: false})
	}
	return fn, nil
}

func (lw *lowerer) newDeadBlock() BlockID {
	// A fresh block for statements lexically following an unconditional
	// exit (return/break/continue/throw); unreachable from entry and
	// dropped by later passes rather than ever validated.
	return lw.fn.NewBlock()
}

func (lw *lowerer) lowerStmt(s *tast.Stmt, cur *BlockID) error {
	switch s.Kind {
	case tast.StmtExpr:
		_, err := lw.lowerExpr(s.Expr, cur)
		return err

	case tast.StmtVarDecl:
		lw.fn.DeclareLocal(s.VarSym, s.VarType, true)
		if s.HasInit {
			v, err := lw.lowerExpr(s.Init, cur)
			if err != nil {
				return err
			}
			lw.fn.Emit(*cur, Instr{Op: OpWriteVar, Var: s.VarSym, Operands: []ValueID{v}})
		}
		return nil

	case tast.StmtBlock:
		for _, sub := range s.Body {
			if err := lw.lowerStmt(sub, cur); err != nil {
				return err
			}
		}
		return nil

	case tast.StmtIf:
		return lw.lowerIf(s, cur)

	case tast.StmtWhile:
		return lw.lowerWhile(s, cur)

	case tast.StmtFor:
		return lw.lowerFor(s, cur)

	case tast.StmtReturn:
		if s.HasRet {
			v, err := lw.lowerExpr(s.RetValue, cur)
			if err != nil {
				return err
			}
			lw.fn.SetTerminator(*cur, Terminator{Kind: TermReturn, RetValue: v, HasRet: true})
		} else {
			lw.fn.SetTerminator(*cur, Terminator{Kind: TermReturn, HasRet: false})
		}
		*cur = lw.newDeadBlock()
		return nil

	case tast.StmtBreak:
		loop, ok := lw.findLoop(s.TargetLoop)
		if !ok {
			return &UnsupportedTastForm{lw.fn.Name, "break outside any enclosing loop"}
		}
		lw.fn.SetTerminator(*cur, Terminator{Kind: TermBranch, Target: loop.exit})
		*cur = lw.newDeadBlock()
		return nil

	case tast.StmtContinue:
		loop, ok := lw.findLoop(s.TargetLoop)
		if !ok {
			return &UnsupportedTastForm{lw.fn.Name, "continue outside any enclosing loop"}
		}
		lw.fn.SetTerminator(*cur, Terminator{Kind: TermBranch, Target: loop.header})
		*cur = lw.newDeadBlock()
		return nil

	case tast.StmtThrow:
		v, err := lw.lowerExpr(s.ThrowValue, cur)
		if err != nil {
			return err
		}
		lw.fn.SetTerminator(*cur, Terminator{Kind: TermThrow, ThrowValue: v})
		*cur = lw.newDeadBlock()
		return nil

	case tast.StmtTry:
		return lw.lowerTry(s, cur)

	default:
		return &UnsupportedTastForm{lw.fn.Name, fmt.Sprintf("statement kind %d", s.Kind)}
	}
}

func (lw *lowerer) lowerIf(s *tast.Stmt, cur *BlockID) error {
	cond, err := lw.lowerExpr(s.Cond, cur)
	if err != nil {
		return err
	}
	thenBlock := lw.fn.NewBlock()
	join := lw.fn.NewBlock()
	elseBlock := join
	if s.HasElse {
		elseBlock = lw.fn.NewBlock()
	}
	lw.fn.SetTerminator(*cur, Terminator{Kind: TermCondBranch, Cond: cond, TrueBlock: thenBlock, FalseBlock: elseBlock})

	thenCur := thenBlock
	for _, sub := range s.Body {
		if err := lw.lowerStmt(sub, &thenCur); err != nil {
			return err
		}
	}
	if !lw.fn.Blocks[thenCur].HasTerm {
		lw.fn.SetTerminator(thenCur, Terminator{Kind: TermBranch, Target: join})
	}

	if s.HasElse {
		elseCur := elseBlock
		for _, sub := range s.Else {
			if err := lw.lowerStmt(sub, &elseCur); err != nil {
				return err
			}
		}
		if !lw.fn.Blocks[elseCur].HasTerm {
			lw.fn.SetTerminator(elseCur, Terminator{Kind: TermBranch, Target: join})
		}
	}

	*cur = join
	return nil
}

func (lw *lowerer) lowerWhile(s *tast.Stmt, cur *BlockID) error {
	header := lw.fn.NewBlock()
	body := lw.fn.NewBlock()
	exit := lw.fn.NewBlock()
	lw.fn.Blocks[header].Meta.IsLoopHeader = true

	lw.fn.SetTerminator(*cur, Terminator{Kind: TermBranch, Target: header})

	cond, err := lw.lowerExpr(s.Cond, &header)
	if err != nil {
		return err
	}
	lw.fn.SetTerminator(header, Terminator{Kind: TermCondBranch, Cond: cond, TrueBlock: body, FalseBlock: exit})

	lw.loops = append(lw.loops, loopCtx{label: s.LoopLabel, header: header, exit: exit})
	bodyCur := body
	for _, sub := range s.Body {
		if err := lw.lowerStmt(sub, &bodyCur); err != nil {
			return err
		}
	}
	lw.loops = lw.loops[:len(lw.loops)-1]
	if !lw.fn.Blocks[bodyCur].HasTerm {
		lw.fn.SetTerminator(bodyCur, Terminator{Kind: TermBranch, Target: header})
	}

	*cur = exit
	return nil
}

func (lw *lowerer) lowerFor(s *tast.Stmt, cur *BlockID) error {
	if s.HasInit2 {
		if err := lw.lowerStmt(s.Init2, cur); err != nil {
			return err
		}
	}
	header := lw.fn.NewBlock()
	body := lw.fn.NewBlock()
	exit := lw.fn.NewBlock()
	lw.fn.Blocks[header].Meta.IsLoopHeader = true

	lw.fn.SetTerminator(*cur, Terminator{Kind: TermBranch, Target: header})

	cond, err := lw.lowerExpr(s.Cond, &header)
	if err != nil {
		return err
	}
	lw.fn.SetTerminator(header, Terminator{Kind: TermCondBranch, Cond: cond, TrueBlock: body, FalseBlock: exit})

	lw.loops = append(lw.loops, loopCtx{label: s.LoopLabel, header: header, exit: exit})
	bodyCur := body
	for _, sub := range s.Body {
		if err := lw.lowerStmt(sub, &bodyCur); err != nil {
			return err
		}
	}
	if s.HasPost && !lw.fn.Blocks[bodyCur].HasTerm {
		if err := lw.lowerStmt(s.Post, &bodyCur); err != nil {
			return err
		}
	}
	lw.loops = lw.loops[:len(lw.loops)-1]
	if !lw.fn.Blocks[bodyCur].HasTerm {
		lw.fn.SetTerminator(bodyCur, Terminator{Kind: TermBranch, Target: header})
	}

	*cur = exit
	return nil
}

func (lw *lowerer) findLoop(label symtab.SymbolID) (loopCtx, bool) {
	for i := len(lw.loops) - 1; i >= 0; i-- {
		if lw.loops[i].label == label {
			return lw.loops[i], true
		}
	}
	return loopCtx{}, false
}

// lowerTry lowers a try/catch statement. The try body is lowered in place;
// if its final instruction is a call, the containing block's terminator
// becomes a TermInvoke whose unwind edge targets the landing pad, matching
// spec.md §4.2 step 6. Bodies that do not end in a call branch straight to
// the join block — the runtime's unwinder, not the CFG, is responsible for
// transferring control to the landing pad in that case.
func (lw *lowerer) lowerTry(s *tast.Stmt, cur *BlockID) error {
	landingPad := lw.fn.NewBlock()
	join := lw.fn.NewBlock()

	tryCur := *cur
	var lastCall *Instr
	for _, sub := range s.TryBody {
		prevBlock, before := tryCur, len(lw.fn.Blocks[tryCur].Instrs)
		if err := lw.lowerStmt(sub, &tryCur); err != nil {
			return err
		}
		if tryCur != prevBlock {
			lastCall = nil
			continue
		}
		if instrs := lw.fn.Blocks[tryCur].Instrs; len(instrs) > before {
			last := &instrs[len(instrs)-1]
			if last.Op == OpCallDirect || last.Op == OpCallStatic {
				lastCall = last
			} else {
				lastCall = nil
			}
		}
	}

	if !lw.fn.Blocks[tryCur].HasTerm {
		if lastCall != nil {
			normal := lw.fn.NewBlock()
			lw.fn.SetTerminator(tryCur, Terminator{
				Kind: TermInvoke, Callee: lastCall.Callee, Args: lastCall.Args,
				Dest: lastCall.Dest, HasDest: true, Normal: normal, Unwind: landingPad,
			})
			lw.fn.SetTerminator(normal, Terminator{Kind: TermBranch, Target: join})
		} else {
			lw.fn.SetTerminator(tryCur, Terminator{Kind: TermBranch, Target: join})
		}
	}

	lw.fn.Blocks[landingPad].Meta.IsLandingPad = true
	padCur := landingPad
	if len(s.Catches) > 0 {
		c := s.Catches[0]
		lw.fn.Blocks[landingPad].Meta.CaughtVar = c.ExceptionSym
		lw.fn.Blocks[landingPad].Meta.HasCaughtVar = true
		lw.fn.DeclareLocal(c.ExceptionSym, c.ExceptionTy, true)
		for _, sub := range c.Body {
			if err := lw.lowerStmt(sub, &padCur); err != nil {
				return err
			}
		}
	}
	if !lw.fn.Blocks[padCur].HasTerm {
		lw.fn.SetTerminator(padCur, Terminator{Kind: TermBranch, Target: join})
	}

	if len(s.Finally) > 0 {
		for _, sub := range s.Finally {
			if err := lw.lowerStmt(sub, &join); err != nil {
				return err
			}
		}
	}

	*cur = join
	return nil
}

func (lw *lowerer) lowerExpr(e *tast.Expr, cur *BlockID) (ValueID, error) {
	switch e.Kind {
	case tast.ExprIntLit:
		return lw.emit1(*cur, Instr{Op: OpConstInt, IntConst: e.IntConst}), nil
	case tast.ExprFloatLit:
		return lw.emit1(*cur, Instr{Op: OpConstFloat, FloatConst: e.FloatConst}), nil
	case tast.ExprBoolLit:
		return lw.emit1(*cur, Instr{Op: OpConstBool, BoolConst: e.BoolConst}), nil
	case tast.ExprStringLit:
		return lw.emit1(*cur, Instr{Op: OpConstString, StringConst: e.StringConst}), nil

	case tast.ExprIdent:
		return lw.emit1(*cur, Instr{Op: OpReadVar, Var: e.Sym}), nil

	case tast.ExprBinOp:
		l, err := lw.lowerExpr(e.LHS, cur)
		if err != nil {
			return NoValue, err
		}
		r, err := lw.lowerExpr(e.RHS, cur)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpBinOp, BOp: convBinOp(e.Op), Operands: []ValueID{l, r}, Type: e.Type}), nil

	case tast.ExprUnOp:
		v, err := lw.lowerExpr(e.Inner, cur)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpUnOp, UOp: convUnOp(e.UOp), Operands: []ValueID{v}, Type: e.Type}), nil

	case tast.ExprCall:
		args, err := lw.lowerExprList(e.Args, cur)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpCallDirect, Callee: e.Callee, Args: args}), nil

	case tast.ExprStaticCall:
		args, err := lw.lowerExprList(e.Args, cur)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpCallStatic, Callee: e.Callee, ClassSym: e.ClassSym, Args: args}), nil

	case tast.ExprNew:
		args, err := lw.lowerExprList(e.Args, cur)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpNew, ClassType: e.ClassType, Args: args}), nil

	case tast.ExprFieldAccess:
		obj, err := lw.lowerExpr(e.Object, cur)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpFieldLoad, Operands: []ValueID{obj}, Field: e.Field}), nil

	case tast.ExprIndex:
		obj, err := lw.lowerExpr(e.Object, cur)
		if err != nil {
			return NoValue, err
		}
		idx, err := lw.lowerExpr(e.Index, cur)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpIndexLoad, Operands: []ValueID{obj, idx}}), nil

	case tast.ExprAssign:
		return lw.lowerAssign(e, cur)

	case tast.ExprCast:
		v, err := lw.lowerExpr(e.Inner, cur)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpCast, Operands: []ValueID{v}, TargetType: e.TargetType}), nil

	case tast.ExprClosure:
		closureFn, err := lowerFunction(lw.mod, e.Body)
		if err != nil {
			return NoValue, err
		}
		return lw.emit1(*cur, Instr{Op: OpMakeClosure, Captures: e.Captures, Closure: closureFn.ID}), nil

	case tast.ExprMatch:
		return lw.lowerMatch(e, cur)

	default:
		return NoValue, &UnsupportedTastForm{lw.fn.Name, fmt.Sprintf("expression kind %d", e.Kind)}
	}
}

func (lw *lowerer) lowerAssign(e *tast.Expr, cur *BlockID) (ValueID, error) {
	v, err := lw.lowerExpr(e.Value, cur)
	if err != nil {
		return NoValue, err
	}
	switch e.Target.Kind {
	case tast.ExprIdent:
		lw.fn.Emit(*cur, Instr{Op: OpWriteVar, Var: e.Target.Sym, Operands: []ValueID{v}})
		return v, nil
	case tast.ExprFieldAccess:
		obj, err := lw.lowerExpr(e.Target.Object, cur)
		if err != nil {
			return NoValue, err
		}
		lw.fn.Emit(*cur, Instr{Op: OpFieldStore, Operands: []ValueID{obj, v}, Field: e.Target.Field})
		return v, nil
	case tast.ExprIndex:
		obj, err := lw.lowerExpr(e.Target.Object, cur)
		if err != nil {
			return NoValue, err
		}
		idx, err := lw.lowerExpr(e.Target.Index, cur)
		if err != nil {
			return NoValue, err
		}
		lw.fn.Emit(*cur, Instr{Op: OpIndexStore, Operands: []ValueID{obj, idx, v}})
		return v, nil
	default:
		return NoValue, &UnsupportedTastForm{lw.fn.Name, "assignment to non-lvalue expression"}
	}
}

// lowerMatch desugars a pattern-match expression into a switch terminator
// over the scrutinee's value, one block per arm, each writing its result
// into a synthetic join variable read back at the merge point. At least one
// arm must be marked IsDefault, used as the switch's default target.
func (lw *lowerer) lowerMatch(e *tast.Expr, cur *BlockID) (ValueID, error) {
	scrut, err := lw.lowerExpr(e.Scrutinee, cur)
	if err != nil {
		return NoValue, err
	}

	joinSym := lw.mod.Symtab.Declare(lw.mod.Symtab.Interner.Intern("$match"), symtab.KindLocal, 0)
	lw.fn.DeclareLocal(joinSym, e.Type, true)
	join := lw.fn.NewBlock()

	var cases []SwitchCase
	defaultBlock := BlockID(-1)
	for _, arm := range e.Arms {
		armBlock := lw.fn.NewBlock()
		armCur := armBlock
		armVal, err := lw.lowerExpr(arm.Body, &armCur)
		if err != nil {
			return NoValue, err
		}
		lw.fn.Emit(armCur, Instr{Op: OpWriteVar, Var: joinSym, Operands: []ValueID{armVal}})
		if !lw.fn.Blocks[armCur].HasTerm {
			lw.fn.SetTerminator(armCur, Terminator{Kind: TermBranch, Target: join})
		}
		if arm.IsDefault {
			defaultBlock = armBlock
		} else {
			cases = append(cases, SwitchCase{Value: arm.Const, Target: armBlock})
		}
	}
	if defaultBlock == -1 {
		return NoValue, &UnsupportedTastForm{lw.fn.Name, "match expression has no default arm"}
	}

	lw.fn.SetTerminator(*cur, Terminator{Kind: TermSwitch, SwitchValue: scrut, Cases: cases, Default: defaultBlock})
	*cur = join
	return lw.emit1(join, Instr{Op: OpReadVar, Var: joinSym}), nil
}

func (lw *lowerer) lowerExprList(exprs []*tast.Expr, cur *BlockID) ([]ValueID, error) {
	out := make([]ValueID, 0, len(exprs))
	for _, e := range exprs {
		v, err := lw.lowerExpr(e, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// emit1 allocates a fresh destination, appends instr with that destination
// to block, and returns it.
func (lw *lowerer) emit1(block BlockID, instr Instr) ValueID {
	instr.Dest = lw.fn.NewValue()
	lw.fn.Emit(block, instr)
	return instr.Dest
}

func convBinOp(op tast.BinOp) BinOp {
	switch op {
	case tast.BinAdd:
		return BinAdd
	case tast.BinSub:
		return BinSub
	case tast.BinMul:
		return BinMul
	case tast.BinDiv:
		return BinDiv
	case tast.BinRem:
		return BinRem
	case tast.BinAnd:
		return BinAnd
	case tast.BinOr:
		return BinOr
	case tast.BinXor:
		return BinXor
	case tast.BinShl:
		return BinShl
	case tast.BinShr:
		return BinShr
	case tast.BinEq:
		return BinEq
	case tast.BinNe:
		return BinNe
	case tast.BinLt:
		return BinLt
	case tast.BinLe:
		return BinLe
	case tast.BinGt:
		return BinGt
	default:
		return BinGe
	}
}

func convUnOp(op tast.UnOp) UnOp {
	if op == tast.UnNot {
		return UnNot
	}
	return UnNeg
}
