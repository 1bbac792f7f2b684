// Package ast wraps red syntax nodes in typed accessors, the layer
// consumers (binder, type checker, editor queries) actually program
// against instead of walking raw (kind, children) pairs. Every typed
// wrapper is a thin, zero-allocation view over a *red.Node: casting
// never copies or re-parses, it just checks the node's kind and narrows
// the static type.
package ast

import (
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/syntaxkind"
	"github.com/watlang/watls/internal/text"
)

type Kind = syntaxkind.Kind

// node is embedded by every typed wrapper so they all share Syntax(),
// Range(), and the zero-value IsNil() check.
type node struct {
	n *red.Node
}

func (w node) Syntax() *red.Node    { return w.n }
func (w node) Range() text.Span     { return w.n.TextRange() }
func (w node) IsNil() bool          { return w.n == nil }

// cast narrows n to T if its kind matches want, reporting ok=false
// (with the zero T) otherwise. Every typed accessor in this package is
// built from this one primitive.
func cast[T any](n *red.Node, want Kind, wrap func(*red.Node) T) (T, bool) {
	var zero T
	if n == nil || n.Kind() != want {
		return zero, false
	}
	return wrap(n), true
}

func childOfKind[T any](n *red.Node, want Kind, wrap func(*red.Node) T) (T, bool) {
	if n == nil {
		var zero T
		return zero, false
	}
	c := n.ChildByKind(syntaxkind.Is(want))
	return cast(c, want, wrap)
}

func childrenOfKind[T any](n *red.Node, want Kind, wrap func(*red.Node) T) []T {
	if n == nil {
		return nil
	}
	kids := n.ChildrenByKind(syntaxkind.Is(want))
	out := make([]T, len(kids))
	for i, k := range kids {
		out[i] = wrap(k)
	}
	return out
}

// Root wraps the document's ROOT node and exposes its top-level modules.
type Root struct{ node }

func CastRoot(n *red.Node) (Root, bool) { return cast(n, syntaxkind.ROOT, newRoot) }
func newRoot(n *red.Node) Root          { return Root{node{n}} }

func (r Root) Modules() []Module { return childrenOfKind(r.n, syntaxkind.MODULE, newModule) }

// Module wraps a "(module $id? field*)" node.
type Module struct{ node }

func newModule(n *red.Node) Module { return Module{node{n}} }

func (m Module) Name() (string, bool) {
	nm := m.n.ChildByKind(syntaxkind.Is(syntaxkind.MODULE_NAME))
	if nm == nil {
		return "", false
	}
	tok := nm.TokenByKind(syntaxkind.Is(syntaxkind.IDENT))
	if tok == nil {
		return "", false
	}
	return tok.Text(), true
}

var moduleFieldKinds = syntaxkind.Is(
	syntaxkind.MODULE_FIELD_FUNC, syntaxkind.MODULE_FIELD_TYPE, syntaxkind.MODULE_FIELD_IMPORT,
	syntaxkind.MODULE_FIELD_EXPORT, syntaxkind.MODULE_FIELD_GLOBAL, syntaxkind.MODULE_FIELD_MEMORY,
	syntaxkind.MODULE_FIELD_TABLE, syntaxkind.MODULE_FIELD_START, syntaxkind.MODULE_FIELD_ELEM,
	syntaxkind.MODULE_FIELD_DATA, syntaxkind.MODULE_FIELD_TAG,
)

func (m Module) Fields() []*red.Node { return m.n.ChildrenByKind(moduleFieldKinds) }

func (m Module) Funcs() []Func { return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_FUNC, newFunc) }

func (m Module) Types() []ModuleFieldType {
	return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_TYPE, newModuleFieldType)
}

func (m Module) Imports() []Import {
	return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_IMPORT, newImport)
}

func (m Module) Exports() []ModuleExport {
	return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_EXPORT, newModuleExport)
}

func (m Module) Globals() []Global {
	return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_GLOBAL, newGlobal)
}

func (m Module) Memories() []Memory {
	return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_MEMORY, newMemory)
}

func (m Module) Tables() []Table {
	return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_TABLE, newTable)
}

func (m Module) Elems() []Elem { return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_ELEM, newElem) }
func (m Module) Datas() []Data { return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_DATA, newData) }
func (m Module) Tags() []Tag   { return childrenOfKind(m.n, syntaxkind.MODULE_FIELD_TAG, newTag) }

func (m Module) Start() (Index, bool) {
	f := m.n.ChildByKind(syntaxkind.Is(syntaxkind.MODULE_FIELD_START))
	if f == nil {
		return Index{}, false
	}
	return childOfKind(f, syntaxkind.INDEX, newIndex)
}

// Index wraps a single numeric or symbolic index reference.
type Index struct{ node }

func newIndex(n *red.Node) Index { return Index{node{n}} }

func (i Index) Ident() (string, bool) {
	tok := i.n.TokenByKind(syntaxkind.Is(syntaxkind.IDENT))
	if tok == nil {
		return "", false
	}
	return tok.Text(), true
}

func (i Index) Numeric() (string, bool) {
	tok := i.n.TokenByKind(syntaxkind.Is(syntaxkind.UNSIGNED_INT))
	if tok == nil {
		return "", false
	}
	return tok.Text(), true
}
