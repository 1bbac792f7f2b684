package ast

import (
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/syntaxkind"
)

// Func wraps a "(func ...)" module field.
type Func struct{ node }

func newFunc(n *red.Node) Func { return Func{node{n}} }

// CastFunc views n as a Func if it is a "(func ...)" module field.
func CastFunc(n *red.Node) (Func, bool) { return cast(n, syntaxkind.MODULE_FIELD_FUNC, newFunc) }

func (f Func) Name() (string, bool) { return identChild(f.n) }

func (f Func) Exports() []Export { return childrenOfKind(f.n, syntaxkind.EXPORT, newExport) }

func (f Func) TypeUse() (TypeUse, bool) { return childOfKind(f.n, syntaxkind.TYPE_USE, newTypeUse) }

func (f Func) Params() []Param { return childrenOfKind(f.n, syntaxkind.PARAM, newParam) }
func (f Func) Results() []Result {
	return childrenOfKind(f.n, syntaxkind.RESULT, newResult)
}
func (f Func) Locals() []Local { return childrenOfKind(f.n, syntaxkind.LOCAL, newLocal) }

func (f Func) Body() []*red.Node { return InstrChildren(f.n) }

// InstrChildren returns the direct PLAIN_INSTR/BLOCK_* children of a
// node that holds an instruction sequence (func body, block body,
// offset expr, element expr).
func InstrChildren(n *red.Node) []*red.Node {
	return n.ChildrenByKind(InstrKinds)
}

var InstrKinds = syntaxkind.Is(
	syntaxkind.PLAIN_INSTR, syntaxkind.BLOCK_BLOCK, syntaxkind.BLOCK_LOOP,
	syntaxkind.BLOCK_IF, syntaxkind.BLOCK_TRY_TABLE,
)

func identChild(n *red.Node) (string, bool) {
	tok := n.TokenByKind(syntaxkind.Is(syntaxkind.IDENT))
	if tok == nil {
		return "", false
	}
	return tok.Text(), true
}

// IdentChild returns n's direct IDENT token text, if any. Exported for
// callers outside this package that need a node's optional name without
// a dedicated wrapper type, such as an extern type's import name.
func IdentChild(n *red.Node) (string, bool) { return identChild(n) }

// ModuleFieldType wraps the module's "(type ...)"/"(rec ...)" field,
// which holds either a standalone TypeDef or a RecType group.
type ModuleFieldType struct{ node }

func newModuleFieldType(n *red.Node) ModuleFieldType { return ModuleFieldType{node{n}} }

func (t ModuleFieldType) RecType() (RecType, bool) {
	return childOfKind(t.n, syntaxkind.REC_TYPE, newRecType)
}

func (t ModuleFieldType) TypeDef() (TypeDef, bool) {
	return childOfKind(t.n, syntaxkind.TYPE_DEF, newTypeDef)
}

// Defs returns every TYPE_DEF this field introduces: one, unless it
// wraps an explicit recursive group.
func (t ModuleFieldType) Defs() []TypeDef {
	if rec, ok := t.RecType(); ok {
		return rec.Members()
	}
	if d, ok := t.TypeDef(); ok {
		return []TypeDef{d}
	}
	return nil
}

type RecType struct{ node }

func newRecType(n *red.Node) RecType { return RecType{node{n}} }

func (r RecType) Members() []TypeDef { return childrenOfKind(r.n, syntaxkind.TYPE_DEF, newTypeDef) }

type TypeDef struct{ node }

func newTypeDef(n *red.Node) TypeDef { return TypeDef{node{n}} }

func (t TypeDef) Name() (string, bool) { return identChild(t.n) }

func (t TypeDef) SubType() (SubType, bool) {
	return childOfKind(t.n, syntaxkind.SUB_TYPE, newSubType)
}

// Import wraps a "(import mod name externtype)" module field.
type Import struct{ node }

func newImport(n *red.Node) Import { return Import{node{n}} }

func (i Import) Names() []string {
	names := childrenOfKind(i.n, syntaxkind.NAME, newName)
	out := make([]string, len(names))
	for idx, nm := range names {
		out[idx] = nm.Text()
	}
	return out
}

func (i Import) ModuleName() string {
	ns := i.Names()
	if len(ns) > 0 {
		return ns[0]
	}
	return ""
}

func (i Import) ItemName() string {
	ns := i.Names()
	if len(ns) > 1 {
		return ns[1]
	}
	return ""
}

func (i Import) ExternType() *red.Node {
	return i.n.ChildByKind(ExternTypeKinds)
}

var ExternTypeKinds = syntaxkind.Is(
	syntaxkind.EXTERN_TYPE_FUNC, syntaxkind.EXTERN_TYPE_TABLE, syntaxkind.EXTERN_TYPE_MEMORY,
	syntaxkind.EXTERN_TYPE_GLOBAL, syntaxkind.EXTERN_TYPE_TAG,
)

type Name struct{ node }

func newName(n *red.Node) Name { return Name{node{n}} }

func (nm Name) Text() string {
	tok := nm.n.TokenByKind(syntaxkind.Is(syntaxkind.STRING))
	if tok == nil {
		return ""
	}
	return unquote(tok.Text())
}

// unquote strips the surrounding quotes and resolves wat's single-char
// backslash escapes. Malformed escapes are left verbatim rather than
// rejected — the lexer already accepted the token, so any further
// strictness belongs in a dedicated string-literal diagnostic, not here.
func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' {
		return s
	}
	s = s[1 : len(s)-1]
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case 'r':
				out = append(out, '\r')
			case '"', '\'', '\\':
				out = append(out, s[i])
			default:
				out = append(out, '\\', s[i])
			}
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Export wraps the inline "(export "name")" abbreviation on a func,
// global, memory, or table field.
type Export struct{ node }

func newExport(n *red.Node) Export { return Export{node{n}} }

func (e Export) Name() string {
	nm, ok := childOfKind(e.n, syntaxkind.NAME, newName)
	if !ok {
		return ""
	}
	return nm.Text()
}

// ModuleExport wraps a standalone top-level "(export "name" externidx)"
// module field.
type ModuleExport struct{ node }

func newModuleExport(n *red.Node) ModuleExport { return ModuleExport{node{n}} }

func (e ModuleExport) Name() string {
	nm, ok := childOfKind(e.n, syntaxkind.NAME, newName)
	if !ok {
		return ""
	}
	return nm.Text()
}

func (e ModuleExport) Target() *red.Node { return e.n.ChildByKind(ExternIdxKinds) }

var ExternIdxKinds = syntaxkind.Is(
	syntaxkind.EXTERN_IDX_FUNC, syntaxkind.EXTERN_IDX_TABLE, syntaxkind.EXTERN_IDX_MEMORY,
	syntaxkind.EXTERN_IDX_GLOBAL, syntaxkind.EXTERN_IDX_TAG,
)

type Global struct{ node }

func newGlobal(n *red.Node) Global { return Global{node{n}} }

func (g Global) Name() (string, bool) { return identChild(g.n) }
func (g Global) Exports() []Export    { return childrenOfKind(g.n, syntaxkind.EXPORT, newExport) }
func (g Global) GlobalType() (GlobalType, bool) {
	return childOfKind(g.n, syntaxkind.GLOBAL_TYPE, newGlobalType)
}
func (g Global) Init() []*red.Node { return InstrChildren(g.n) }

type Memory struct{ node }

func newMemory(n *red.Node) Memory   { return Memory{node{n}} }
func (m Memory) Name() (string, bool) { return identChild(m.n) }
func (m Memory) MemType() (MemType, bool) {
	return childOfKind(m.n, syntaxkind.MEM_TYPE, newMemType)
}

type Table struct{ node }

func newTable(n *red.Node) Table     { return Table{node{n}} }
func (t Table) Name() (string, bool) { return identChild(t.n) }
func (t Table) TableType() (TableType, bool) {
	return childOfKind(t.n, syntaxkind.TABLE_TYPE, newTableType)
}

type Tag struct{ node }

func newTag(n *red.Node) Tag        { return Tag{node{n}} }
func (t Tag) Name() (string, bool)  { return identChild(t.n) }
func (t Tag) Params() []Param       { return childrenOfKind(t.n, syntaxkind.PARAM, newParam) }
func (t Tag) TypeUse() (TypeUse, bool) {
	return childOfKind(t.n, syntaxkind.TYPE_USE, newTypeUse)
}

type Elem struct{ node }

func newElem(n *red.Node) Elem       { return Elem{node{n}} }
func (e Elem) Name() (string, bool)  { return identChild(e.n) }
func (e Elem) Offset() (Offset, bool) { return childOfKind(e.n, syntaxkind.OFFSET, newOffset) }

type Data struct{ node }

func newData(n *red.Node) Data        { return Data{node{n}} }
func (d Data) Name() (string, bool)   { return identChild(d.n) }
func (d Data) Offset() (Offset, bool) { return childOfKind(d.n, syntaxkind.OFFSET, newOffset) }

type Offset struct{ node }

func newOffset(n *red.Node) Offset   { return Offset{node{n}} }
func (o Offset) Instrs() []*red.Node { return InstrChildren(o.n) }
