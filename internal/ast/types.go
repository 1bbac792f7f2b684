package ast

import (
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/syntaxkind"
)

// hasKeyword reports whether n has a direct KEYWORD-token child whose
// text is literal.
func hasKeyword(n *red.Node, literal string) bool {
	for _, tok := range n.TokensByKind(syntaxkind.Is(syntaxkind.KEYWORD)) {
		if tok.Text() == literal {
			return true
		}
	}
	return false
}

type SubType struct{ node }

func newSubType(n *red.Node) SubType { return SubType{node{n}} }

// IsFinal reports whether this sub type is final: implicitly, when it
// omits "sub" entirely, or explicitly, when "sub" carries the "final"
// keyword.
func (s SubType) IsFinal() bool {
	if !hasKeyword(s.n, "sub") {
		return true
	}
	return hasKeyword(s.n, "final")
}

func (s SubType) Supers() []Index { return childrenOfKind(s.n, syntaxkind.INDEX, newIndex) }

func (s SubType) FuncType() (FuncType, bool) {
	return childOfKind(s.n, syntaxkind.FUNC_TYPE, newFuncType)
}
func (s SubType) StructType() (StructType, bool) {
	return childOfKind(s.n, syntaxkind.STRUCT_TYPE, newStructType)
}
func (s SubType) ArrayType() (ArrayType, bool) {
	return childOfKind(s.n, syntaxkind.ARRAY_TYPE, newArrayType)
}

type FuncType struct{ node }

func newFuncType(n *red.Node) FuncType { return FuncType{node{n}} }
func (f FuncType) Params() []Param     { return childrenOfKind(f.n, syntaxkind.PARAM, newParam) }
func (f FuncType) Results() []Result   { return childrenOfKind(f.n, syntaxkind.RESULT, newResult) }

type StructType struct{ node }

func newStructType(n *red.Node) StructType { return StructType{node{n}} }
func (s StructType) Fields() []FieldType {
	return childrenOfKind(s.n, syntaxkind.FIELD_TYPE, newFieldType)
}

type ArrayType struct{ node }

func newArrayType(n *red.Node) ArrayType { return ArrayType{node{n}} }
func (a ArrayType) Elem() (FieldType, bool) {
	return childOfKind(a.n, syntaxkind.FIELD_TYPE, newFieldType)
}

type FieldType struct{ node }

func newFieldType(n *red.Node) FieldType { return FieldType{node{n}} }
func (f FieldType) Name() (string, bool) { return identChild(f.n) }
func (f FieldType) Mutable() bool { return hasKeyword(f.n, "mut") }

// Storage returns the wrapped value or packed type node: NUM_TYPE,
// VEC_TYPE, REF_TYPE, or PACKED_TYPE.
func (f FieldType) Storage() *red.Node {
	return f.n.ChildByKind(syntaxkind.Is(
		syntaxkind.NUM_TYPE, syntaxkind.VEC_TYPE, syntaxkind.REF_TYPE, syntaxkind.PACKED_TYPE,
	))
}

type Param struct{ node }

func newParam(n *red.Node) Param            { return Param{node{n}} }
func CastParam(n *red.Node) (Param, bool)   { return cast(n, syntaxkind.PARAM, newParam) }
func (p Param) Name() (string, bool)        { return identChild(p.n) }
func (p Param) ValTypes() []*red.Node       { return valTypeChildren(p.n) }

type Result struct{ node }

func newResult(n *red.Node) Result          { return Result{node{n}} }
func CastResult(n *red.Node) (Result, bool) { return cast(n, syntaxkind.RESULT, newResult) }
func (r Result) ValTypes() []*red.Node      { return valTypeChildren(r.n) }

type Local struct{ node }

func newLocal(n *red.Node) Local       { return Local{node{n}} }
func (l Local) Name() (string, bool)   { return identChild(l.n) }
func (l Local) ValTypes() []*red.Node  { return valTypeChildren(l.n) }

func valTypeChildren(n *red.Node) []*red.Node {
	return n.ChildrenByKind(syntaxkind.Is(syntaxkind.NUM_TYPE, syntaxkind.VEC_TYPE, syntaxkind.REF_TYPE))
}

type RefType struct{ node }

func newRefType(n *red.Node) RefType     { return RefType{node{n}} }
func CastRefType(n *red.Node) (RefType, bool) { return cast(n, syntaxkind.REF_TYPE, newRefType) }

func (r RefType) Shorthand() (string, bool) {
	tok := r.n.TokenByKind(syntaxkind.Is(syntaxkind.TYPE_KEYWORD))
	if tok == nil {
		return "", false
	}
	return tok.Text(), true
}

func (r RefType) Nullable() bool {
	if _, ok := r.Shorthand(); ok {
		return true
	}
	return hasKeyword(r.n, "null")
}

func (r RefType) HeapType() (HeapType, bool) {
	return childOfKind(r.n, syntaxkind.HEAP_TYPE, newHeapType)
}

type HeapType struct{ node }

func newHeapType(n *red.Node) HeapType     { return HeapType{node{n}} }
func CastHeapType(n *red.Node) (HeapType, bool) { return cast(n, syntaxkind.HEAP_TYPE, newHeapType) }

func (h HeapType) Keyword() (string, bool) {
	tok := h.n.TokenByKind(syntaxkind.Is(syntaxkind.TYPE_KEYWORD))
	if tok == nil {
		return "", false
	}
	return tok.Text(), true
}

func (h HeapType) Index() (Index, bool) { return childOfKind(h.n, syntaxkind.INDEX, newIndex) }

type TypeUse struct{ node }

func newTypeUse(n *red.Node) TypeUse          { return TypeUse{node{n}} }
func CastTypeUse(n *red.Node) (TypeUse, bool) { return cast(n, syntaxkind.TYPE_USE, newTypeUse) }
func (t TypeUse) Index() (Index, bool) {
	return childOfKind(t.n, syntaxkind.INDEX, newIndex)
}

type GlobalType struct{ node }

func newGlobalType(n *red.Node) GlobalType          { return GlobalType{node{n}} }
func CastGlobalType(n *red.Node) (GlobalType, bool) { return cast(n, syntaxkind.GLOBAL_TYPE, newGlobalType) }
func (g GlobalType) Mutable() bool { return hasKeyword(g.n, "mut") }
func (g GlobalType) ValType() *red.Node { return g.n.ChildByKind(syntaxkind.Is(syntaxkind.NUM_TYPE, syntaxkind.VEC_TYPE, syntaxkind.REF_TYPE)) }

type TableType struct{ node }

func newTableType(n *red.Node) TableType          { return TableType{node{n}} }
func CastTableType(n *red.Node) (TableType, bool) { return cast(n, syntaxkind.TABLE_TYPE, newTableType) }
func (t TableType) Limits() (Limits, bool) {
	return childOfKind(t.n, syntaxkind.LIMITS, newLimits)
}
func (t TableType) RefType() (RefType, bool) {
	return childOfKind(t.n, syntaxkind.REF_TYPE, newRefType)
}

type MemType struct{ node }

func newMemType(n *red.Node) MemType { return MemType{node{n}} }
func (m MemType) Limits() (Limits, bool) {
	return childOfKind(m.n, syntaxkind.LIMITS, newLimits)
}

type Limits struct{ node }

func newLimits(n *red.Node) Limits { return Limits{node{n}} }

func (l Limits) Min() (string, bool) {
	toks := l.n.TokensByKind(syntaxkind.Is(syntaxkind.UNSIGNED_INT))
	if len(toks) == 0 {
		return "", false
	}
	return toks[0].Text(), true
}

func (l Limits) Max() (string, bool) {
	toks := l.n.TokensByKind(syntaxkind.Is(syntaxkind.UNSIGNED_INT))
	if len(toks) < 2 {
		return "", false
	}
	return toks[1].Text(), true
}

func (l Limits) Shared() bool { return hasKeyword(l.n, "shared") }
