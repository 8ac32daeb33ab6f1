package symtab

import "fmt"

// ErrCircularInheritance is returned when a class's chain of superclass
// links revisits a symbol (spec.md §4.1 "CircularInheritance").
type ErrCircularInheritance struct {
	// Entry is the symbol at which the cycle was first detected while
	// walking superclass links.
	Entry SymbolID
	Cycle []SymbolID
}

func (e *ErrCircularInheritance) Error() string {
	return fmt.Sprintf("circular inheritance detected at symbol %d", e.Entry)
}

// ErrInterfaceExtendsClass is returned when an interface names a class
// among its extended types (spec.md §4.1 "InterfaceExtendsClass").
type ErrInterfaceExtendsClass struct {
	Interface SymbolID
	Extended  SymbolID
}

func (e *ErrInterfaceExtendsClass) Error() string {
	return fmt.Sprintf("interface %d extends class %d", e.Interface, e.Extended)
}

// RegisterClass records a class or interface symbol's direct superclass and
// directly implemented interfaces. The transitive closure is not computed
// until ComputeClosures runs.
func (t *Table) RegisterClass(class SymbolID, superclass TypeID, hasSuper bool, interfaces []TypeID) {
	h := t.Get(class).Hierarchy
	h.Superclass = superclass
	h.HasSuperclass = hasSuper
	h.Interfaces = interfaces
}

// symbolOfType resolves a class-ref or generic-instance type term to the
// class symbol it names, if any.
func symbolOfType(types *Types, id TypeID) (SymbolID, bool) {
	term := types.Get(id)
	switch term.Kind {
	case TermClassRef:
		return term.ClassSym, true
	case TermGenericInstance:
		return symbolOfType(types, term.GenericBase)
	default:
		return 0, false
	}
}

// ComputeClosures computes, for every registered class symbol, the
// memoized transitive-closure set of all supertypes plus inheritance depth,
// by breadth-first walk over direct-super links, visiting each type at
// most once (spec.md §4.1).
func (t *Table) ComputeClosures(types *Types) {
	directSupers := make(map[SymbolID][]TypeID)
	for _, id := range t.All() {
		sym := t.Get(id)
		if sym.Hierarchy == nil {
			continue
		}
		var supers []TypeID
		if sym.Hierarchy.HasSuperclass {
			supers = append(supers, sym.Hierarchy.Superclass)
		}
		supers = append(supers, sym.Hierarchy.Interfaces...)
		directSupers[id] = supers
	}

	for _, id := range t.All() {
		sym := t.Get(id)
		if sym.Hierarchy == nil {
			continue
		}
		visited := make(map[TypeID]struct{})
		queue := []struct {
			ty    TypeID
			depth int
		}{}
		maxDepth := 0

		for _, s := range directSupers[id] {
			queue = append(queue, struct {
				ty    TypeID
				depth int
			}{s, 1})
			visited[s] = struct{}{}
		}

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur.depth > maxDepth {
				maxDepth = cur.depth
			}
			symID, ok := symbolOfType(types, cur.ty)
			if !ok {
				continue
			}
			for _, s := range directSupers[symID] {
				if _, seen := visited[s]; !seen {
					visited[s] = struct{}{}
					queue = append(queue, struct {
						ty    TypeID
						depth int
					}{s, cur.depth + 1})
				}
			}
		}

		sym.Hierarchy.AllSupertypes = visited
		sym.Hierarchy.Depth = maxDepth
	}
}

// ValidateNoCycles rejects any class whose chain of superclass links
// revisits a symbol. On failure it also returns a best-effort topological
// order of the acyclic remainder (spec.md §8 scenario 5).
func (t *Table) ValidateNoCycles(types *Types) ([]SymbolID, error) {
	for _, id := range t.All() {
		if t.Get(id).Hierarchy == nil {
			continue
		}
		if cycle := hasCycleFrom(t, types, id); cycle != nil {
			return bestEffortTopoOrder(t, types), &ErrCircularInheritance{Entry: id, Cycle: cycle}
		}
	}
	return bestEffortTopoOrder(t, types), nil
}

func hasCycleFrom(t *Table, types *Types, start SymbolID) []SymbolID {
	visited := make(map[SymbolID]struct{})
	var path []SymbolID
	current := start
	for {
		if _, seen := visited[current]; seen {
			return append(path, current)
		}
		visited[current] = struct{}{}
		path = append(path, current)

		h := t.Get(current).Hierarchy
		if h == nil || !h.HasSuperclass {
			return nil
		}
		superSym, ok := symbolOfType(types, h.Superclass)
		if !ok {
			return nil
		}
		current = superSym
	}
}

// bestEffortTopoOrder returns classes ordered so that each class appears
// after its direct superclass, skipping symbols that participate in a
// cycle. Grounded on the dependency-graph topological sort used for
// module resolution (adapted to class hierarchies).
func bestEffortTopoOrder(t *Table, types *Types) []SymbolID {
	var order []SymbolID
	visited := make(map[SymbolID]bool)
	inStack := make(map[SymbolID]bool)
	cyclic := make(map[SymbolID]bool)
	var stack []SymbolID

	var visit func(id SymbolID)
	visit = func(id SymbolID) {
		if inStack[id] {
			// id closes a cycle: it and every entry above it on the stack
			// are members.
			for i := len(stack) - 1; i >= 0; i-- {
				cyclic[stack[i]] = true
				if stack[i] == id {
					break
				}
			}
			return
		}
		if visited[id] {
			return
		}
		inStack[id] = true
		stack = append(stack, id)
		h := t.Get(id).Hierarchy
		if h != nil && h.HasSuperclass {
			if superSym, ok := symbolOfType(types, h.Superclass); ok {
				visit(superSym)
			}
		}
		stack = stack[:len(stack)-1]
		inStack[id] = false
		if !visited[id] {
			visited[id] = true
			if !cyclic[id] {
				order = append(order, id)
			}
		}
	}

	for _, id := range t.All() {
		if t.Get(id).Hierarchy != nil {
			visit(id)
		}
	}
	return order
}

// ValidateInterfaceRules rejects an interface that names a class among its
// extended types (spec.md §4.1 "InterfaceExtendsClass").
func (t *Table) ValidateInterfaceRules(types *Types) error {
	for _, id := range t.All() {
		sym := t.Get(id)
		h := sym.Hierarchy
		if h == nil || !h.IsInterfaceDecl {
			continue
		}
		for _, ext := range h.Interfaces {
			extSym, ok := symbolOfType(types, ext)
			if !ok {
				continue
			}
			if t.Get(extSym).Kind == KindClass {
				return &ErrInterfaceExtendsClass{Interface: id, Extended: extSym}
			}
		}
	}
	return nil
}
