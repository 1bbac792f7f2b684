// Package typesystem models wat's value and reference type lattice:
// numeric/vector value types, the heap/reference type hierarchy, and the
// composite (func/struct/array) definition types that type defs
// introduce, along with the subtyping relation over all of them.
//
// Grounded in the recursive-group-aware type model of the original
// implementation's types_analyzer/types.rs and def_type.rs, adapted to
// Go value types plus explicit DefRef handles instead of reference
// counting.
package typesystem

import "fmt"

// ValKind enumerates the broad categories a ValType can take.
type ValKind uint8

const (
	ValI32 ValKind = iota
	ValI64
	ValF32
	ValF64
	ValV128
	ValRef
	ValAny // stack-polymorphic placeholder used by the checker, not a real wat type
)

// ValType is a full value type: for ValRef, Ref holds the reference
// type's shape; otherwise Ref is zero.
type ValType struct {
	Kind ValKind
	Ref  RefType
}

func (t ValType) String() string {
	switch t.Kind {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValRef:
		return t.Ref.String()
	case ValAny:
		return "<any>"
	default:
		return "<invalid>"
	}
}

func (t ValType) Equal(o ValType) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == ValRef {
		return t.Ref.Equal(o.Ref)
	}
	return true
}

// HeapKind enumerates wat's abstract heap types plus the "concrete"
// case, which names a user-declared type def.
type HeapKind uint8

const (
	HeapAny HeapKind = iota
	HeapEq
	HeapI31
	HeapStruct
	HeapArray
	HeapNone
	HeapFunc
	HeapNoFunc
	HeapExtern
	HeapNoExtern
	HeapExn
	HeapNoExn
	HeapConcrete // Def identifies which type def
)

func (k HeapKind) String() string {
	switch k {
	case HeapAny:
		return "any"
	case HeapEq:
		return "eq"
	case HeapI31:
		return "i31"
	case HeapStruct:
		return "struct"
	case HeapArray:
		return "array"
	case HeapNone:
		return "none"
	case HeapFunc:
		return "func"
	case HeapNoFunc:
		return "nofunc"
	case HeapExtern:
		return "extern"
	case HeapNoExtern:
		return "noextern"
	case HeapExn:
		return "exn"
	case HeapNoExn:
		return "noexn"
	default:
		return "<concrete>"
	}
}

// DefRef names a type def, either by its absolute index in the module
// (resolved form) or, inside a still-being-analyzed recursive group, by
// an index relative to the start of that group. RecIndex makes
// equivalence of two recursive groups checkable by structural
// substitution instead of by comparing absolute indices, which differ
// whenever the groups are declared at different offsets in the module.
type DefRef struct {
	Index    uint32
	RecGroup uint32 // group ordinal this def belongs to
	RecIndex uint32 // index within that group; used for substitution
}

type HeapType struct {
	Kind HeapKind
	Def  DefRef // meaningful only when Kind == HeapConcrete
}

func (h HeapType) String() string {
	if h.Kind == HeapConcrete {
		return fmt.Sprintf("(type %d)", h.Def.Index)
	}
	return h.Kind.String()
}

func (h HeapType) Equal(o HeapType) bool {
	if h.Kind != o.Kind {
		return false
	}
	if h.Kind == HeapConcrete {
		return h.Def.Index == o.Def.Index
	}
	return true
}

type RefType struct {
	Heap     HeapType
	Nullable bool
}

func (r RefType) String() string {
	if !r.Nullable {
		return fmt.Sprintf("(ref %s)", r.Heap)
	}
	switch r.Heap.Kind {
	case HeapFunc, HeapExtern, HeapAny, HeapEq, HeapI31, HeapStruct, HeapArray, HeapNone, HeapNoFunc, HeapNoExtern, HeapExn, HeapNoExn:
		return r.Heap.Kind.String() + "ref"
	default:
		return fmt.Sprintf("(ref null %s)", r.Heap)
	}
}

func (r RefType) Equal(o RefType) bool {
	return r.Nullable == o.Nullable && r.Heap.Equal(o.Heap)
}

// PackedKind is the element type a struct/array field may use instead of
// a full value type.
type PackedKind uint8

const (
	PackedNone PackedKind = iota
	PackedI8
	PackedI16
)

// StorageType is either a full value type or a packed field type; wat
// struct and array fields can use either.
type StorageType struct {
	Val    ValType
	Packed PackedKind
}

func (s StorageType) String() string {
	switch s.Packed {
	case PackedI8:
		return "i8"
	case PackedI16:
		return "i16"
	default:
		return s.Val.String()
	}
}

func (s StorageType) Equal(o StorageType) bool {
	if s.Packed != o.Packed {
		return false
	}
	if s.Packed != PackedNone {
		return true
	}
	return s.Val.Equal(o.Val)
}

type FieldType struct {
	Storage StorageType
	Mutable bool
}

func (f FieldType) Equal(o FieldType) bool {
	return f.Mutable == o.Mutable && f.Storage.Equal(o.Storage)
}

// Signature is a function type's parameter and result value types.
type Signature struct {
	Params  []ValType
	Results []ValType
}

func (s Signature) Equal(o Signature) bool {
	if len(s.Params) != len(o.Params) || len(s.Results) != len(o.Results) {
		return false
	}
	for i := range s.Params {
		if !s.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	for i := range s.Results {
		if !s.Results[i].Equal(o.Results[i]) {
			return false
		}
	}
	return true
}

// CompKind distinguishes the three composite type shapes a type def can
// declare.
type CompKind uint8

const (
	CompFunc CompKind = iota
	CompStruct
	CompArray
)

// CompositeType is the body of a type def: a func signature, a struct's
// fields, or an array's single element field.
type CompositeType struct {
	Kind   CompKind
	Func   Signature
	Fields []StructField // CompStruct only
	Elem   FieldType      // CompArray only
}

type StructField struct {
	Name  string
	Field FieldType
}

// DefType is one declared type definition: its composite shape, whether
// it is final (cannot be a supertype), and its declared supertype chain
// within the enclosing recursive group.
type DefType struct {
	Comp      CompositeType
	Final     bool
	Supers    []DefRef
	Def       DefRef
}
