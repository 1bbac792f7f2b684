package typesystem

import "testing"

func structGroup(groupOrdinal uint32) []DefType {
	return []DefType{
		{
			Def:  DefRef{Index: 10, RecGroup: groupOrdinal, RecIndex: 0},
			Comp: CompositeType{Kind: CompStruct, Fields: []StructField{
				{Field: FieldType{Storage: StorageType{Val: ValType{
					Kind: ValRef,
					Ref:  RefType{Nullable: true, Heap: HeapType{Kind: HeapConcrete, Def: DefRef{Index: 11, RecGroup: groupOrdinal, RecIndex: 1}}},
				}}}},
			}},
		},
		{
			Def:  DefRef{Index: 11, RecGroup: groupOrdinal, RecIndex: 1},
			Comp: CompositeType{Kind: CompArray, Elem: FieldType{Storage: StorageType{Val: ValType{Kind: ValI32}}}},
		},
	}
}

func TestRecGroupEquivalentAcceptsRenumberedSelfReference(t *testing.T) {
	a := structGroup(0)
	b := structGroup(7) // different absolute group ordinal, same shape
	b[0].Def.Index, b[1].Def.Index = 50, 51
	b[0].Comp.Fields[0].Field.Storage.Val.Ref.Heap.Def.Index = 51

	if !RecGroupEquivalent(a, b) {
		t.Fatal("expected groups with identical shapes under group-relative substitution to be equivalent")
	}
}

func TestRecGroupEquivalentRejectsDifferentFieldKind(t *testing.T) {
	a := structGroup(0)
	b := structGroup(0)
	b[1].Comp.Elem.Storage.Val = ValType{Kind: ValI64}

	if RecGroupEquivalent(a, b) {
		t.Fatal("expected a differing array element type to break equivalence")
	}
}

func TestRecGroupEquivalentRejectsDifferentLength(t *testing.T) {
	a := structGroup(0)
	b := a[:1]

	if RecGroupEquivalent(a, b) {
		t.Fatal("expected groups of different length to never be equivalent")
	}
}

func TestRecGroupEquivalentRejectsOutOfGroupReferenceMismatch(t *testing.T) {
	a := []DefType{{
		Def:  DefRef{Index: 0, RecGroup: 0, RecIndex: 0},
		Comp: CompositeType{Kind: CompArray, Elem: FieldType{Storage: StorageType{Val: ValType{
			Kind: ValRef,
			Ref:  RefType{Nullable: true, Heap: HeapType{Kind: HeapConcrete, Def: DefRef{Index: 3}}},
		}}}},
	}}
	b := []DefType{{
		Def:  DefRef{Index: 0, RecGroup: 0, RecIndex: 0},
		Comp: CompositeType{Kind: CompArray, Elem: FieldType{Storage: StorageType{Val: ValType{
			Kind: ValRef,
			Ref:  RefType{Nullable: true, Heap: HeapType{Kind: HeapConcrete, Def: DefRef{Index: 4}}},
		}}}},
	}}

	if RecGroupEquivalent(a, b) {
		t.Fatal("expected references to distinct out-of-group types to differ")
	}
}

func TestRecGroupEquivalentRejectsFinalMismatch(t *testing.T) {
	a := structGroup(0)
	b := structGroup(0)
	b[0].Final = true

	if RecGroupEquivalent(a, b) {
		t.Fatal("expected a final/non-final mismatch to break equivalence")
	}
}
