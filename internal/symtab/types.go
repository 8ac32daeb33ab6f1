package symtab

// TermKind discriminates the variants of a type term (spec.md §3 "Type table").
type TermKind int

const (
	TermPrimitive TermKind = iota
	TermClassRef
	TermGenericInstance
	TermFunction
	TermArray
	TermRef
	TermAlias
	TermDynamic
	TermAnonymous
	TermUnion
	TermOptional
)

// Primitive enumerates the built-in scalar kinds.
type Primitive int

const (
	PrimInt Primitive = iota
	PrimFloat
	PrimBool
	PrimVoid
	PrimString
)

// AnonField is one field of an anonymous (structural) type.
type AnonField struct {
	Name StringID
	Type TypeID
}

// Term is one entry of the type table. Only the fields relevant to Kind are
// meaningful; this mirrors the tagged-union "type term" of spec.md §3.
type Term struct {
	Kind TermKind

	Primitive Primitive // TermPrimitive

	ClassSym SymbolID // TermClassRef

	GenericBase TypeID   // TermGenericInstance
	GenericArgs []TypeID // TermGenericInstance

	FuncParams []TypeID // TermFunction
	FuncReturn TypeID   // TermFunction

	ArrayElem TypeID // TermArray

	RefTarget    TypeID // TermRef
	RefMutable   bool   // TermRef

	AliasTarget TypeID // TermAlias, resolved lazily

	AnonFields []AnonField // TermAnonymous

	UnionMembers []TypeID // TermUnion

	OptionalInner TypeID // TermOptional
}

// Types is the type table: maps TypeID to Term.
type Types struct {
	terms []Term
}

// NewTypes creates an empty type table.
func NewTypes() *Types { return &Types{} }

func (t *Types) insert(term Term) TypeID {
	id := TypeID(len(t.terms))
	t.terms = append(t.terms, term)
	return id
}

// Primitive interns (or re-uses) a primitive type term.
func (t *Types) Primitive(p Primitive) TypeID {
	for i, term := range t.terms {
		if term.Kind == TermPrimitive && term.Primitive == p {
			return TypeID(i)
		}
	}
	return t.insert(Term{Kind: TermPrimitive, Primitive: p})
}

// ClassRef creates a reference-to-class/interface/enum/abstract type term.
func (t *Types) ClassRef(sym SymbolID) TypeID {
	return t.insert(Term{Kind: TermClassRef, ClassSym: sym})
}

// GenericInstance creates a generic-instance type term (base + ordered args).
func (t *Types) GenericInstance(base TypeID, args []TypeID) TypeID {
	return t.insert(Term{Kind: TermGenericInstance, GenericBase: base, GenericArgs: args})
}

// Function creates a function type term.
func (t *Types) Function(params []TypeID, ret TypeID) TypeID {
	return t.insert(Term{Kind: TermFunction, FuncParams: params, FuncReturn: ret})
}

// Array creates an array-of-element type term.
func (t *Types) Array(elem TypeID) TypeID {
	return t.insert(Term{Kind: TermArray, ArrayElem: elem})
}

// Ref creates a reference-with-mutability type term.
func (t *Types) Ref(target TypeID, mutable bool) TypeID {
	return t.insert(Term{Kind: TermRef, RefTarget: target, RefMutable: mutable})
}

// Alias creates a type-alias term. The target may be fixed up later through
// the *Term that Get returns (supports forward-declared aliases);
// ResolveAlias walks the chain lazily, so cycles are detected on
// resolution, not on creation, since the definition may not exist yet.
func (t *Types) Alias(target TypeID) TypeID {
	return t.insert(Term{Kind: TermAlias, AliasTarget: target})
}

// Dynamic creates the dynamic (untyped-escape-hatch) type term.
func (t *Types) Dynamic() TypeID {
	return t.insert(Term{Kind: TermDynamic})
}

// Anonymous creates an anonymous structural type term with ordered fields.
func (t *Types) Anonymous(fields []AnonField) TypeID {
	return t.insert(Term{Kind: TermAnonymous, AnonFields: fields})
}

// Union creates a union type term.
func (t *Types) Union(members []TypeID) TypeID {
	return t.insert(Term{Kind: TermUnion, UnionMembers: members})
}

// Optional creates an optional-of type term.
func (t *Types) Optional(inner TypeID) TypeID {
	return t.insert(Term{Kind: TermOptional, OptionalInner: inner})
}

// Get returns the type term for id.
func (t *Types) Get(id TypeID) *Term { return &t.terms[id] }

// Len returns the number of type terms in the table.
func (t *Types) Len() int { return len(t.terms) }

// Terms returns every type term in id order, for writing a bundle's type
// table (spec.md §6).
func (t *Types) Terms() []Term {
	out := make([]Term, len(t.terms))
	copy(out, t.terms)
	return out
}

// NewTypesFromTerms rebuilds a Types table from a term list previously
// produced by Terms, preserving TypeID assignment exactly.
func NewTypesFromTerms(terms []Term) *Types {
	out := make([]Term, len(terms))
	copy(out, terms)
	return &Types{terms: out}
}

// ErrAliasCycle is returned by ResolveAlias when an alias chain revisits
// itself before reaching a non-alias term.
type ErrAliasCycle struct{ Root TypeID }

func (e *ErrAliasCycle) Error() string { return "alias cycle detected" }

// ResolveAlias walks a chain of TermAlias terms to the first non-alias
// term, lazily, detecting cycles (spec.md §3 "type alias (resolved lazily
// with cycle detection)").
func (t *Types) ResolveAlias(id TypeID) (TypeID, error) {
	seen := map[TypeID]struct{}{}
	cur := id
	for {
		term := t.Get(cur)
		if term.Kind != TermAlias {
			return cur, nil
		}
		if _, ok := seen[cur]; ok {
			return 0, &ErrAliasCycle{Root: id}
		}
		seen[cur] = struct{}{}
		cur = term.AliasTarget
	}
}
