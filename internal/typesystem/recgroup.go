package typesystem

// RecGroupEquivalent decides whether two recursive type groups declare
// the same types, up to renumbering of intra-group references. wat lets
// a type def in a `(rec ...)` group reference a sibling def declared
// later in the same group; two groups from different modules (or two
// versions of the same document) are the "same" type only if every
// member's composite shape is equal after substituting each group's own
// members' absolute indices with a position relative to the group's
// start, per the original implementation's recursive-group handling in
// its type equivalence check.
func RecGroupEquivalent(a, b []DefType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Final != b[i].Final {
			return false
		}
		if !compSubstEqual(a, b, a[i].Comp, b[i].Comp) {
			return false
		}
		if len(a[i].Supers) != len(b[i].Supers) {
			return false
		}
		for j := range a[i].Supers {
			if !defRefSubstEqual(a, b, a[i].Supers[j], b[i].Supers[j]) {
				return false
			}
		}
	}
	return true
}

func compSubstEqual(groupA, groupB []DefType, a, b CompositeType) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case CompFunc:
		return sigSubstEqual(groupA, groupB, a.Func, b.Func)
	case CompStruct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !fieldSubstEqual(groupA, groupB, a.Fields[i].Field, b.Fields[i].Field) {
				return false
			}
		}
		return true
	case CompArray:
		return fieldSubstEqual(groupA, groupB, a.Elem, b.Elem)
	}
	return false
}

func sigSubstEqual(groupA, groupB []DefType, a, b Signature) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if !valSubstEqual(groupA, groupB, a.Params[i], b.Params[i]) {
			return false
		}
	}
	for i := range a.Results {
		if !valSubstEqual(groupA, groupB, a.Results[i], b.Results[i]) {
			return false
		}
	}
	return true
}

func fieldSubstEqual(groupA, groupB []DefType, a, b FieldType) bool {
	if a.Mutable != b.Mutable || a.Storage.Packed != b.Storage.Packed {
		return false
	}
	if a.Storage.Packed != PackedNone {
		return true
	}
	return valSubstEqual(groupA, groupB, a.Storage.Val, b.Storage.Val)
}

func valSubstEqual(groupA, groupB []DefType, a, b ValType) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != ValRef {
		return true
	}
	if a.Ref.Nullable != b.Ref.Nullable {
		return false
	}
	return heapSubstEqual(groupA, groupB, a.Ref.Heap, b.Ref.Heap)
}

func heapSubstEqual(groupA, groupB []DefType, a, b HeapType) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind != HeapConcrete {
		return true
	}
	return defRefSubstEqual(groupA, groupB, a.Def, b.Def)
}

// defRefSubstEqual compares two DefRefs under group-relative
// substitution: a reference into the group currently being compared is
// equivalent to the other side's reference only if both point at the
// same relative offset within their respective group. A reference to a
// def outside the group must name the identical absolute index on both
// sides.
func defRefSubstEqual(groupA, groupB []DefType, a, b DefRef) bool {
	aInGroup := inGroup(groupA, a)
	bInGroup := inGroup(groupB, b)
	if aInGroup != bInGroup {
		return false
	}
	if aInGroup {
		return a.RecIndex == b.RecIndex
	}
	return a.Index == b.Index
}

func inGroup(group []DefType, ref DefRef) bool {
	for _, d := range group {
		if d.Def.Index == ref.Index {
			return true
		}
	}
	return false
}
