package typesystem

// Defs resolves a DefRef's absolute index to its declared DefType.
// typeanalysis.Analysis implements it per document from the type defs;
// the checker and the subtyping relation both read through it
// rather than embedding a copy of the type table.
type Defs interface {
	DefAt(index uint32) (DefType, bool)
}

// Matches reports whether sub is a subtype of super under the wat 3.0
// type hierarchy: the abstract heap-type lattice plus declared
// `(sub $parent ...)` chains. Field subtyping is nominal, not
// structural: wat's GC proposal orders composite types by their
// declared supertype, not by comparing field lists.
func Matches(defs Defs, sub, super ValType) bool {
	if sub.Kind == ValAny || super.Kind == ValAny {
		return true
	}
	if sub.Kind != super.Kind {
		return false
	}
	if sub.Kind != ValRef {
		return true
	}
	return RefMatches(defs, sub.Ref, super.Ref)
}

func RefMatches(defs Defs, sub, super RefType) bool {
	if sub.Nullable && !super.Nullable {
		return false
	}
	return HeapMatches(defs, sub.Heap, super.Heap)
}

type typeCategory uint8

const (
	catNone typeCategory = iota
	catEq
	catFunc
	catExtern
	catExn
)

func categoryOf(defs Defs, h HeapType) typeCategory {
	switch h.Kind {
	case HeapEq, HeapI31, HeapStruct, HeapArray, HeapNone:
		return catEq
	case HeapFunc, HeapNoFunc:
		return catFunc
	case HeapExtern, HeapNoExtern:
		return catExtern
	case HeapExn, HeapNoExn:
		return catExn
	case HeapConcrete:
		d, ok := defs.DefAt(h.Def.Index)
		if !ok {
			return catNone
		}
		switch d.Comp.Kind {
		case CompStruct, CompArray:
			return catEq
		case CompFunc:
			return catFunc
		}
	}
	return catNone
}

// HeapMatches implements the reflexive-transitive closure of the heap
// type lattice:
//
//	any >= eq >= {i31, struct, array} >= none
//	func >= nofunc
//	extern >= noextern
//	exn >= noexn
//
// plus concrete type defs, which sit between their category's top
// abstract type and the category's bottom type, ordered further by
// their declared supertype chain.
func HeapMatches(defs Defs, sub, super HeapType) bool {
	if sub.Equal(super) {
		return true
	}
	switch super.Kind {
	case HeapAny:
		return categoryOf(defs, sub) == catEq
	case HeapEq:
		return categoryOf(defs, sub) == catEq
	case HeapI31, HeapStruct, HeapArray:
		return sub.Kind == HeapNone
	case HeapFunc:
		return categoryOf(defs, sub) == catFunc
	case HeapExtern:
		return categoryOf(defs, sub) == catExtern
	case HeapExn:
		return categoryOf(defs, sub) == catExn
	case HeapNone:
		return sub.Kind == HeapNone
	case HeapNoFunc:
		return sub.Kind == HeapNoFunc
	case HeapNoExtern:
		return sub.Kind == HeapNoExtern
	case HeapNoExn:
		return sub.Kind == HeapNoExn
	case HeapConcrete:
		return concreteAncestor(defs, sub, super.Def)
	default:
		return false
	}
}

// concreteAncestor reports whether sub is super, the bottom type of
// super's category (none or nofunc), or one of super's declared
// subtypes, walking sub's own supertype chain upward looking for super,
// since the declared `(sub $parent ...)` relation only records
// "parent", not "children".
func concreteAncestor(defs Defs, sub HeapType, super DefRef) bool {
	if sub.Kind == HeapNone || sub.Kind == HeapNoFunc {
		return categoryOf(defs, sub) == categoryOf(defs, HeapType{Kind: HeapConcrete, Def: super})
	}
	if sub.Kind != HeapConcrete {
		return false
	}
	cur := sub.Def
	for {
		if cur.Index == super.Index {
			return true
		}
		d, ok := defs.DefAt(cur.Index)
		if !ok || len(d.Supers) == 0 {
			return false
		}
		cur = d.Supers[0]
	}
}
