// Package typeanalysis derives the type-related tables described for
// the type analyzer: the def-type table, recursive group membership,
// and function/type-use signature resolution. It reads the AST layer
// directly and keeps its own type-namespace index, independent of the
// binder, since a `(sub $parent ...)` reference is a type-only use that
// the binder never sees.
package typeanalysis

import (
	"github.com/watlang/watls/internal/ast"
	"github.com/watlang/watls/internal/intern"
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/syntaxkind"
	"github.com/watlang/watls/internal/typesystem"
)

// Analysis holds every derived table §4.9 describes for one document.
type Analysis struct {
	defTypes  map[red.Pointer]typesystem.DefType
	defOrder  []red.Pointer // index by numeric position
	groups    [][]red.Pointer
	byName    map[intern.ID]uint32
	byIndex   map[uint32]red.Pointer

	// funcSigs caches per-func-field resolved signatures, including the
	// reconciliation between a type_use and inline param/result clauses.
	funcSigs map[red.Pointer]typesystem.Signature
}

// Analyze builds the type tables for every module in root. Modules are
// independent; indices restart at zero per module, matching the wat
// module-scoped numeric index spaces.
func Analyze(root *red.Node) *Analysis {
	a := &Analysis{
		defTypes: make(map[red.Pointer]typesystem.DefType),
		byName:   make(map[intern.ID]uint32),
		byIndex:  make(map[uint32]red.Pointer),
		funcSigs: make(map[red.Pointer]typesystem.Signature),
	}
	r, ok := ast.CastRoot(root)
	if !ok {
		return a
	}
	for _, m := range r.Modules() {
		a.analyzeModule(m)
	}
	return a
}

// DefAt implements typesystem.Defs, letting the subtyping relation read
// straight through this table.
func (a *Analysis) DefAt(index uint32) (typesystem.DefType, bool) {
	if int(index) >= len(a.defOrder) {
		return typesystem.DefType{}, false
	}
	d, ok := a.defTypes[a.defOrder[index]]
	return d, ok
}

// DefTypeOf returns the derived DefType for a TYPE_DEF node's pointer.
func (a *Analysis) DefTypeOf(key red.Pointer) (typesystem.DefType, bool) {
	d, ok := a.defTypes[key]
	return d, ok
}

// RecGroups returns the recursive groups as lists of member indices, in
// declaration order.
func (a *Analysis) RecGroups() [][]red.Pointer { return a.groups }

func (a *Analysis) analyzeModule(m ast.Module) {
	var order []ast.TypeDef
	var groupOfDef []int
	for _, td := range m.Types() {
		if rec, ok := td.RecType(); ok {
			members := rec.Members()
			g := len(a.groups)
			group := make([]red.Pointer, len(members))
			for i, mem := range members {
				group[i] = red.NewPointer(mem.Syntax())
				order = append(order, mem)
				groupOfDef = append(groupOfDef, g)
			}
			a.groups = append(a.groups, group)
			continue
		}
		if d, ok := td.TypeDef(); ok {
			g := len(a.groups)
			a.groups = append(a.groups, []red.Pointer{red.NewPointer(d.Syntax())})
			order = append(order, d)
			groupOfDef = append(groupOfDef, g)
		}
	}

	base := uint32(len(a.defOrder))
	for i, def := range order {
		key := red.NewPointer(def.Syntax())
		idx := base + uint32(i)
		a.defOrder = append(a.defOrder, key)
		a.byIndex[idx] = key
		if name, ok := def.Name(); ok {
			a.byName[intern.Idents.Intern(name)] = idx
		}
	}
	for i, def := range order {
		key := red.NewPointer(def.Syntax())
		idx := base + uint32(i)
		g := groupOfDef[i]
		a.defTypes[key] = a.buildDefType(def, idx, uint32(g))
	}

	for _, f := range m.Funcs() {
		a.funcSigs[red.NewPointer(f.Syntax())] = a.funcSignature(f)
	}
}

func (a *Analysis) buildDefType(def ast.TypeDef, idx, group uint32) typesystem.DefType {
	sub, ok := def.SubType()
	if !ok {
		return typesystem.DefType{Final: true, Def: typesystem.DefRef{Index: idx, RecGroup: group, RecIndex: a.recIndexOf(idx)}}
	}
	dt := typesystem.DefType{
		Final: sub.IsFinal(),
		Def:   typesystem.DefRef{Index: idx, RecGroup: group, RecIndex: a.recIndexOf(idx)},
	}
	for _, s := range sub.Supers() {
		if ref, ok := a.resolveTypeIndex(s.Syntax()); ok {
			dt.Supers = append(dt.Supers, ref)
		}
	}
	dt.Comp = a.compositeOf(sub)
	return dt
}

func (a *Analysis) recIndexOf(idx uint32) uint32 {
	for _, g := range a.groups {
		for i, m := range g {
			if m == a.defOrder[idx] {
				return uint32(i)
			}
		}
	}
	return 0
}

func (a *Analysis) compositeOf(sub ast.SubType) typesystem.CompositeType {
	if ft, ok := sub.FuncType(); ok {
		return typesystem.CompositeType{Kind: typesystem.CompFunc, Func: a.signatureOf(ft.Params(), ft.Results())}
	}
	if st, ok := sub.StructType(); ok {
		fields := make([]typesystem.StructField, 0, len(st.Fields()))
		for _, f := range st.Fields() {
			name, _ := f.Name()
			fields = append(fields, typesystem.StructField{Name: name, Field: a.fieldTypeOf(f)})
		}
		return typesystem.CompositeType{Kind: typesystem.CompStruct, Fields: fields}
	}
	if at, ok := sub.ArrayType(); ok {
		if elem, ok := at.Elem(); ok {
			return typesystem.CompositeType{Kind: typesystem.CompArray, Elem: a.fieldTypeOf(elem)}
		}
		return typesystem.CompositeType{Kind: typesystem.CompArray}
	}
	return typesystem.CompositeType{}
}

func (a *Analysis) fieldTypeOf(f ast.FieldType) typesystem.FieldType {
	return typesystem.FieldType{Storage: a.storageTypeOf(f.Storage()), Mutable: f.Mutable()}
}

func (a *Analysis) storageTypeOf(n *red.Node) typesystem.StorageType {
	if n == nil {
		return typesystem.StorageType{}
	}
	switch n.Kind() {
	case syntaxkind.PACKED_TYPE:
		tok := n.TokenByKind(syntaxkind.Is(syntaxkind.TYPE_KEYWORD))
		if tok != nil && tok.Text() == "i16" {
			return typesystem.StorageType{Packed: typesystem.PackedI16}
		}
		return typesystem.StorageType{Packed: typesystem.PackedI8}
	default:
		return typesystem.StorageType{Val: a.ValTypeOfNode(n)}
	}
}

func (a *Analysis) signatureOf(params []ast.Param, results []ast.Result) typesystem.Signature {
	var sig typesystem.Signature
	for _, p := range params {
		for _, vn := range p.ValTypes() {
			sig.Params = append(sig.Params, a.ValTypeOfNode(vn))
		}
	}
	for _, r := range results {
		for _, vn := range r.ValTypes() {
			sig.Results = append(sig.Results, a.ValTypeOfNode(vn))
		}
	}
	return sig
}

// funcSignature resolves a func field's effective signature: the
// type_use-referenced signature when present, otherwise the inline
// param/result clauses. wat requires the two to agree when both are
// given; a resolved type_use wins, and neither this function nor the
// type checker compares it with the inline clauses.
func (a *Analysis) funcSignature(f ast.Func) typesystem.Signature {
	if tu, ok := f.TypeUse(); ok {
		if idx, ok := tu.Index(); ok {
			if ref, ok := a.resolveTypeIndex(idx.Syntax()); ok {
				if dt, ok := a.DefAt(ref.Index); ok && dt.Comp.Kind == typesystem.CompFunc {
					return dt.Comp.Func
				}
			}
		}
	}
	return a.signatureOf(f.Params(), f.Results())
}

// GetTypeUseSig resolves any TYPE_USE occurrence to its signature.
func (a *Analysis) GetTypeUseSig(tu ast.TypeUse) (typesystem.Signature, bool) {
	idx, ok := tu.Index()
	if !ok {
		return typesystem.Signature{}, false
	}
	ref, ok := a.resolveTypeIndex(idx.Syntax())
	if !ok {
		return typesystem.Signature{}, false
	}
	dt, ok := a.DefAt(ref.Index)
	if !ok || dt.Comp.Kind != typesystem.CompFunc {
		return typesystem.Signature{}, false
	}
	return dt.Comp.Func, true
}

// GetFuncSig returns the cached effective signature built for a func
// field during Analyze.
func (a *Analysis) GetFuncSig(f ast.Func) typesystem.Signature {
	return a.funcSigs[red.NewPointer(f.Syntax())]
}

// DefCount returns how many type defs Analyze found across every module
// in the document, the upper bound for DefAt/DefKeyAt's index argument.
func (a *Analysis) DefCount() int { return len(a.defOrder) }

// DefKeyAt returns the red.Pointer of the type def at the given absolute
// index: the node a diagnostic about that def should point at.
func (a *Analysis) DefKeyAt(index uint32) (red.Pointer, bool) {
	if int(index) >= len(a.defOrder) {
		return red.Pointer{}, false
	}
	return a.defOrder[index], true
}

// SignatureOfNode reads an effective signature off any node carrying an
// optional TYPE_USE plus direct PARAM/RESULT children: func/tag extern
// types and block headers all share this shape.
func (a *Analysis) SignatureOfNode(n *red.Node) typesystem.Signature {
	var sig typesystem.Signature
	if tu := n.ChildByKind(syntaxkind.Is(syntaxkind.TYPE_USE)); tu != nil {
		if tuw, ok := ast.CastTypeUse(tu); ok {
			if s, ok := a.GetTypeUseSig(tuw); ok {
				sig = s
			}
		}
	}
	for _, p := range n.ChildrenByKind(syntaxkind.Is(syntaxkind.PARAM)) {
		if pp, ok := ast.CastParam(p); ok {
			for _, vn := range pp.ValTypes() {
				sig.Params = append(sig.Params, a.ValTypeOfNode(vn))
			}
		}
	}
	for _, r := range n.ChildrenByKind(syntaxkind.Is(syntaxkind.RESULT)) {
		if rr, ok := ast.CastResult(r); ok {
			for _, vn := range rr.ValTypes() {
				sig.Results = append(sig.Results, a.ValTypeOfNode(vn))
			}
		}
	}
	return sig
}

// ResolveBrTypes resolves a branch target's already-bound block node (the
// binder's Blocks/Resolved map gives this from the branch's label
// immediate) to the operand types a jump to that label must carry: the
// block's declared result types.
func (a *Analysis) ResolveBrTypes(blockNode *red.Node) ([]typesystem.ValType, bool) {
	if blockNode == nil {
		return nil, false
	}
	return a.SignatureOfNode(blockNode).Results, true
}

// DefTypeAtIndex resolves a type-index immediate node (IDENT or
// UNSIGNED_INT) straight to its declared DefType, the way struct.*,
// array.*, call_indirect and call_ref instructions reference a type def.
func (a *Analysis) DefTypeAtIndex(idxNode *red.Node) (typesystem.DefType, bool) {
	ref, ok := a.resolveTypeIndex(idxNode)
	if !ok {
		return typesystem.DefType{}, false
	}
	return a.DefAt(ref.Index)
}

// ResolveFieldType resolves struct.get/struct.set's two index
// immediates: the struct type def and the field it addresses by name or
// position. The caller inspects the returned DefType's composite kind
// itself, since "not a struct type" and "field out of range" are
// reported as distinct findings.
func (a *Analysis) ResolveFieldType(structIdx, fieldIdx *red.Node) (typesystem.FieldType, typesystem.DefType, bool) {
	dt, ok := a.DefTypeAtIndex(structIdx)
	if !ok || dt.Comp.Kind != typesystem.CompStruct || fieldIdx == nil {
		return typesystem.FieldType{}, dt, false
	}
	if tok := fieldIdx.TokenByKind(syntaxkind.Is(syntaxkind.IDENT)); tok != nil {
		name := tok.Text()
		for _, f := range dt.Comp.Fields {
			if f.Name == name {
				return f.Field, dt, true
			}
		}
		return typesystem.FieldType{}, dt, false
	}
	if tok := fieldIdx.TokenByKind(syntaxkind.Is(syntaxkind.UNSIGNED_INT)); tok != nil {
		i := parseUint(tok.Text())
		if int(i) >= len(dt.Comp.Fields) {
			return typesystem.FieldType{}, dt, false
		}
		return dt.Comp.Fields[i].Field, dt, true
	}
	return typesystem.FieldType{}, dt, false
}

// ResolveArrayElemType resolves array.*'s type-index immediate to the
// array's declared element field type with the same kind-check contract
// as ResolveFieldType.
func (a *Analysis) ResolveArrayElemType(arrayIdx *red.Node) (typesystem.FieldType, typesystem.DefType, bool) {
	dt, ok := a.DefTypeAtIndex(arrayIdx)
	if !ok || dt.Comp.Kind != typesystem.CompArray {
		return typesystem.FieldType{}, dt, false
	}
	return dt.Comp.Elem, dt, true
}

func (a *Analysis) resolveTypeIndex(idxNode *red.Node) (typesystem.DefRef, bool) {
	if tok := idxNode.TokenByKind(syntaxkind.Is(syntaxkind.IDENT)); tok != nil {
		id := intern.Idents.Intern(tok.Text())
		idx, ok := a.byName[id]
		if !ok {
			return typesystem.DefRef{}, false
		}
		return a.defTypes[a.byIndex[idx]].Def, true
	}
	if tok := idxNode.TokenByKind(syntaxkind.Is(syntaxkind.UNSIGNED_INT)); tok != nil {
		idx := parseUint(tok.Text())
		key, ok := a.byIndex[idx]
		if !ok {
			return typesystem.DefRef{}, false
		}
		return a.defTypes[key].Def, true
	}
	return typesystem.DefRef{}, false
}

func parseUint(s string) uint32 {
	var n uint32
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			continue
		}
		n = n*10 + uint32(s[i]-'0')
	}
	return n
}

// ValTypeOfNode resolves a NUM_TYPE/VEC_TYPE/REF_TYPE syntax node (as
// returned by the ast layer's ValTypes()/ValType() accessors) to its
// typesystem.ValType.
func (a *Analysis) ValTypeOfNode(n *red.Node) typesystem.ValType {
	if n == nil {
		return typesystem.ValType{Kind: typesystem.ValAny}
	}
	switch n.Kind() {
	case syntaxkind.NUM_TYPE:
		tok := n.TokenByKind(syntaxkind.Is(syntaxkind.TYPE_KEYWORD))
		if tok == nil {
			return typesystem.ValType{Kind: typesystem.ValAny}
		}
		switch tok.Text() {
		case "i32":
			return typesystem.ValType{Kind: typesystem.ValI32}
		case "i64":
			return typesystem.ValType{Kind: typesystem.ValI64}
		case "f32":
			return typesystem.ValType{Kind: typesystem.ValF32}
		case "f64":
			return typesystem.ValType{Kind: typesystem.ValF64}
		}
		return typesystem.ValType{Kind: typesystem.ValAny}
	case syntaxkind.VEC_TYPE:
		return typesystem.ValType{Kind: typesystem.ValV128}
	case syntaxkind.REF_TYPE:
		rt, ok := ast.CastRefType(n)
		if !ok {
			return typesystem.ValType{Kind: typesystem.ValAny}
		}
		return typesystem.ValType{Kind: typesystem.ValRef, Ref: a.refTypeOf(rt)}
	default:
		return typesystem.ValType{Kind: typesystem.ValAny}
	}
}

func (a *Analysis) refTypeOf(rt ast.RefType) typesystem.RefType {
	out := typesystem.RefType{Nullable: rt.Nullable()}
	if sh, ok := rt.Shorthand(); ok {
		out.Heap = heapShorthand(sh)
		return out
	}
	if ht, ok := rt.HeapType(); ok {
		out.Heap = a.heapTypeOf(ht)
	}
	return out
}

func (a *Analysis) heapTypeOf(ht ast.HeapType) typesystem.HeapType {
	if kw, ok := ht.Keyword(); ok {
		return heapShorthand(kw)
	}
	if idx, ok := ht.Index(); ok {
		if ref, ok := a.resolveTypeIndex(idx.Syntax()); ok {
			return typesystem.HeapType{Kind: typesystem.HeapConcrete, Def: ref}
		}
	}
	return typesystem.HeapType{Kind: typesystem.HeapAny}
}

func heapShorthand(name string) typesystem.HeapType {
	switch name {
	case "any", "anyref":
		return typesystem.HeapType{Kind: typesystem.HeapAny}
	case "eq", "eqref":
		return typesystem.HeapType{Kind: typesystem.HeapEq}
	case "i31", "i31ref":
		return typesystem.HeapType{Kind: typesystem.HeapI31}
	case "struct", "structref":
		return typesystem.HeapType{Kind: typesystem.HeapStruct}
	case "array", "arrayref":
		return typesystem.HeapType{Kind: typesystem.HeapArray}
	case "none", "nullref":
		return typesystem.HeapType{Kind: typesystem.HeapNone}
	case "func", "funcref":
		return typesystem.HeapType{Kind: typesystem.HeapFunc}
	case "nofunc", "nullfuncref":
		return typesystem.HeapType{Kind: typesystem.HeapNoFunc}
	case "extern", "externref":
		return typesystem.HeapType{Kind: typesystem.HeapExtern}
	case "noextern", "nullexternref":
		return typesystem.HeapType{Kind: typesystem.HeapNoExtern}
	case "exn", "exnref":
		return typesystem.HeapType{Kind: typesystem.HeapExn}
	case "noexn", "nullexnref":
		return typesystem.HeapType{Kind: typesystem.HeapNoExn}
	}
	return typesystem.HeapType{Kind: typesystem.HeapAny}
}
