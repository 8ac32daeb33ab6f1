// Package tast defines the typed-AST contract HIR lowering consumes
// (spec.md §4.2): a fully resolved tree of declarations, statements and
// expressions referencing symbols and types by identifier rather than by
// name. The lexer, parser and semantic checker that produce a tast.File are
// out of scope (spec.md §1); this package only fixes the shape they hand
// off.
package tast

import "github.com/darmie/rayzor/internal/symtab"

// Loc is a source location carried on every node, preserved through HIR and
// MIR lowering (spec.md §4.2 "Metadata and source locations are preserved
// on every instruction").
type Loc struct {
	File   string
	Line   int
	Column int
}

// ExprKind discriminates expression node variants.
type ExprKind int

const (
	ExprIntLit ExprKind = iota
	ExprFloatLit
	ExprBoolLit
	ExprStringLit
	ExprIdent
	ExprBinOp
	ExprUnOp
	ExprCall
	ExprStaticCall
	ExprNew
	ExprFieldAccess
	ExprIndex
	ExprAssign
	ExprCast
	ExprClosure
	ExprMatch
)

// BinOp enumerates binary operators.
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

// UnOp enumerates unary operators.
type UnOp int

const (
	UnNeg UnOp = iota
	UnNot
)

// MatchArm is one arm of a pattern-match expression: a constant discriminant
// to compare against and the body to evaluate when it matches.
type MatchArm struct {
	IsDefault bool
	Const     int64
	Body      *Expr
}

// Expr is one typed expression node. Like mir.Instr, a single tagged struct
// keeps lowering's walk mechanical: only the fields relevant to Kind are
// populated.
type Expr struct {
	Kind ExprKind
	Type symtab.TypeID
	Loc  Loc

	IntConst    int64
	FloatConst  float64
	BoolConst   bool
	StringConst string

	Sym symtab.SymbolID // ExprIdent

	Op    BinOp
	UOp   UnOp
	LHS   *Expr
	RHS   *Expr
	Inner *Expr

	// ExprCall / ExprStaticCall
	Callee    symtab.SymbolID
	ClassSym  symtab.SymbolID
	Args      []*Expr

	// ExprNew
	ClassType symtab.TypeID

	// ExprFieldAccess
	Object    *Expr
	Field     symtab.SymbolID

	// ExprIndex
	Index *Expr

	// ExprAssign
	Target *Expr
	Value  *Expr

	// ExprCast
	TargetType symtab.TypeID

	// ExprClosure: captured locals by symbol, and the lowered body function
	// is resolved separately once HIR assigns it a FuncID.
	Captures []symtab.SymbolID
	Body     *FuncDecl

	// ExprMatch
	Scrutinee *Expr
	Arms      []MatchArm
}

// StmtKind discriminates statement node variants.
type StmtKind int

const (
	StmtExpr StmtKind = iota
	StmtVarDecl
	StmtBlock
	StmtIf
	StmtWhile
	StmtFor
	StmtReturn
	StmtBreak
	StmtContinue
	StmtTry
	StmtThrow
)

// CatchClause is one catch arm of a try statement.
type CatchClause struct {
	ExceptionSym symtab.SymbolID
	ExceptionTy  symtab.TypeID
	Body         []*Stmt
}

// Stmt is one typed statement node.
type Stmt struct {
	Kind StmtKind
	Loc  Loc

	// StmtExpr
	Expr *Expr

	// StmtVarDecl
	VarSym  symtab.SymbolID
	VarType symtab.TypeID
	Init    *Expr
	HasInit bool

	// StmtBlock / loop bodies / branch arms
	Body []*Stmt
	Else []*Stmt
	HasElse bool

	// StmtIf / StmtWhile
	Cond *Expr

	// StmtFor: desugared to init; cond; post, all optional.
	Init2   *Stmt
	HasInit2 bool
	Post    *Stmt
	HasPost bool

	// StmtWhile / StmtFor: the loop's symbol identity, used so break/continue
	// can reference the correct enclosing loop when nested (spec.md §4.2
	// "Loop labels are represented by symbol identifiers").
	LoopLabel symtab.SymbolID

	// StmtBreak / StmtContinue
	TargetLoop symtab.SymbolID

	// StmtReturn
	RetValue *Expr
	HasRet   bool

	// StmtTry
	TryBody []*Stmt
	Catches []CatchClause
	Finally []*Stmt
	HasFinally bool

	// StmtThrow
	ThrowValue *Expr
}

// Param is one parameter of a function declaration.
type Param struct {
	Sym   symtab.SymbolID
	Type  symtab.TypeID
	ByRef bool
}

// FuncDecl is a typed function declaration: the unit HIR lowering walks to
// produce one mir.Function (spec.md §4.2).
type FuncDecl struct {
	Sym    symtab.SymbolID
	Name   string
	Params []Param
	Return symtab.TypeID
	Body   []*Stmt
	Loc    Loc
}

// MemberKind discriminates class member variants.
type MemberKind int

const (
	MemberField MemberKind = iota
	MemberMethod
)

// Member is one member of a class/interface/enum/abstract declaration.
type Member struct {
	Kind   MemberKind
	Field  symtab.SymbolID // MemberField
	Type   symtab.TypeID   // MemberField
	Method *FuncDecl       // MemberMethod
	Static bool
}

// ClassDecl is a typed class/interface/abstract declaration — preserved
// as a first-class HIR entry, not lowered to instructions (spec.md §4.2
// "still contains class/interface/enum/abstract declarations as
// first-class typed entries").
type ClassDecl struct {
	Sym           symtab.SymbolID
	Name          string
	IsInterface   bool
	IsAbstract    bool
	Superclass    symtab.TypeID
	HasSuperclass bool
	Interfaces    []symtab.TypeID
	TypeParams    []symtab.SymbolID
	Members       []Member
}

// EnumVariant is one constructor of an enum declaration.
type EnumVariant struct {
	Sym        symtab.SymbolID
	Name       string
	FieldTypes []symtab.TypeID
}

// EnumDecl is a typed enum declaration.
type EnumDecl struct {
	Sym      symtab.SymbolID
	Name     string
	Variants []EnumVariant
}

// File is the root of one typed compilation unit: every class/interface/
// enum/abstract declaration and every free function, plus the symbol and
// type tables they were resolved against.
type File struct {
	Symtab    *symtab.Table
	Types     *symtab.Types
	Classes   []*ClassDecl
	Enums     []*EnumDecl
	Functions []*FuncDecl
}
