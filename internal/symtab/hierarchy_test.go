package symtab

import "testing"

// TestCircularInheritance mirrors spec.md §8 scenario 5: A extends B,
// B extends C, C extends A must report ErrCircularInheritance and still
// produce a best-effort order for the non-cyclic remainder.
func TestCircularInheritance(t *testing.T) {
	in := NewInterner()
	syms := NewTable(in)
	types := NewTypes()

	a := syms.Declare(in.Intern("A"), KindClass, 0)
	b := syms.Declare(in.Intern("B"), KindClass, 0)
	c := syms.Declare(in.Intern("C"), KindClass, 0)
	d := syms.Declare(in.Intern("D"), KindClass, 0) // acyclic, extends A

	aType := types.ClassRef(a)
	bType := types.ClassRef(b)
	cType := types.ClassRef(c)

	syms.RegisterClass(a, bType, true, nil)
	syms.RegisterClass(b, cType, true, nil)
	syms.RegisterClass(c, aType, true, nil)
	syms.RegisterClass(d, aType, true, nil)

	_, err := syms.ValidateNoCycles(types)
	if err == nil {
		t.Fatalf("expected circular inheritance error")
	}
	cyclicErr, ok := err.(*ErrCircularInheritance)
	if !ok {
		t.Fatalf("expected *ErrCircularInheritance, got %T", err)
	}
	switch cyclicErr.Entry {
	case a, b, c:
	default:
		t.Fatalf("cycle entry %d is not part of {A,B,C}", cyclicErr.Entry)
	}
}

func TestComputeClosuresDepthAndSet(t *testing.T) {
	in := NewInterner()
	syms := NewTable(in)
	types := NewTypes()

	object := syms.Declare(in.Intern("Object"), KindClass, 0)
	animal := syms.Declare(in.Intern("Animal"), KindClass, 0)
	dog := syms.Declare(in.Intern("Dog"), KindClass, 0)

	objectType := types.ClassRef(object)
	animalType := types.ClassRef(animal)

	syms.RegisterClass(animal, objectType, true, nil)
	syms.RegisterClass(dog, animalType, true, nil)

	if _, err := syms.ValidateNoCycles(types); err != nil {
		t.Fatalf("unexpected cycle: %v", err)
	}
	syms.ComputeClosures(types)

	dogHierarchy := syms.Get(dog).Hierarchy
	if dogHierarchy.Depth != 2 {
		t.Fatalf("expected Dog depth 2 (Animal, Object), got %d", dogHierarchy.Depth)
	}
	if _, ok := dogHierarchy.AllSupertypes[animalType]; !ok {
		t.Fatalf("expected Dog supertypes to contain Animal")
	}
	if _, ok := dogHierarchy.AllSupertypes[objectType]; !ok {
		t.Fatalf("expected Dog supertypes to contain Object")
	}
}

func TestInterfaceExtendsClassRejected(t *testing.T) {
	in := NewInterner()
	syms := NewTable(in)
	types := NewTypes()

	class := syms.Declare(in.Intern("Widget"), KindClass, 0)
	iface := syms.Declare(in.Intern("Comparable"), KindInterface, 0)

	classType := types.ClassRef(class)
	syms.RegisterClass(iface, 0, false, []TypeID{classType})

	err := syms.ValidateInterfaceRules(types)
	if err == nil {
		t.Fatalf("expected InterfaceExtendsClass error")
	}
	if _, ok := err.(*ErrInterfaceExtendsClass); !ok {
		t.Fatalf("expected *ErrInterfaceExtendsClass, got %T", err)
	}
}
