package codegen

import (
	"github.com/llir/llvm/ir/types"

	"github.com/darmie/rayzor/internal/symtab"
)

// boxedPtr is the representation every reference-shaped MIR type (class,
// interface, enum, abstract instance, generic instance, array, dynamic,
// anonymous struct, union, optional) lowers to: an opaque heap pointer
// managed by the runtime ABI in internal/runtime. The backend never needs
// the target's real field layout — GEP indices already come pre-resolved
// from MIR's Indices — so one opaque pointer type serves every reference
// kind.
var boxedPtr = types.NewPointer(types.I8)

// typeOf maps a MIR/TAST type id to the backend ABI type it is passed and
// returned as (spec.md §4.8 "function signatures are mapped from MIR
// types to backend ABI types").
func typeOf(tbl *symtab.Types, id symtab.TypeID) types.Type {
	term := tbl.Get(id)
	switch term.Kind {
	case symtab.TermPrimitive:
		switch term.Primitive {
		case symtab.PrimInt:
			return types.I64
		case symtab.PrimFloat:
			return types.Double
		case symtab.PrimBool:
			return types.I1
		case symtab.PrimVoid:
			return types.Void
		case symtab.PrimString:
			return boxedPtr
		}
	case symtab.TermAlias:
		resolved, err := tbl.ResolveAlias(id)
		if err != nil {
			return boxedPtr
		}
		return typeOf(tbl, resolved)
	case symtab.TermFunction:
		return types.NewPointer(types.I8)
	}
	// ClassRef, GenericInstance, Array, Ref, Dynamic, Anonymous, Union,
	// Optional: all reference-shaped, all boxed.
	return boxedPtr
}
