// Package binder scans a parsed module and builds the symbol table:
// module-level declarations first, then function bodies and the other
// index uses. It records per-namespace declaration indices, identifier resolution, and
// block label scoping. It never inspects types; that is the type
// analyzer's job, layered on top of the records built here.
package binder

import (
	"fmt"

	"github.com/watlang/watls/internal/ast"
	"github.com/watlang/watls/internal/diag"
	"github.com/watlang/watls/internal/intern"
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/syntaxkind"
)

// SymbolKind classifies a symbol record the way §3.5 of the design
// enumerates them.
type SymbolKind int

const (
	Func SymbolKind = iota
	Param
	Local
	Type
	GlobalDef
	MemoryDef
	TableDef
	TagDef
	BlockDef
	Call
	TypeUse
	GlobalRef
	MemoryRef
	TableRef
	TagRef
	LocalRef
	BlockRef
	FieldDef
	FieldRef
	ModuleSym
)

// Idx carries a symbol's position in its namespace plus its optional
// declared name.
type Idx struct {
	Num   uint32
	Name  intern.ID // zero if unnamed
	Named bool
}

// Symbol is one record in the table: a definition or a reference.
type Symbol struct {
	Key    red.Pointer
	Kind   SymbolKind
	Idx    Idx
	Region red.Pointer // enclosing module (module-level) or function (params/locals/blocks)
	Green  *red.Node
}

// Table is the per-document symbol table the binder produces.
type Table struct {
	Symbols  map[red.Pointer]Symbol
	Resolved map[red.Pointer]red.Pointer
	Blocks   map[red.Pointer]red.Pointer

	// Diagnostics accumulates binding failures found while building the
	// table: duplicate declarations within one namespace and index/ident
	// references that don't resolve to any declaration.
	Diagnostics []diag.Diagnostic
}

func newTable() *Table {
	return &Table{
		Symbols:  make(map[red.Pointer]Symbol),
		Resolved: make(map[red.Pointer]red.Pointer),
		Blocks:   make(map[red.Pointer]red.Pointer),
	}
}

func (t *Table) reportDuplicate(name string, dup, prev *red.Node) {
	t.Diagnostics = append(t.Diagnostics, diag.Diagnostic{
		Code:     diag.CodeDuplicateIdent,
		Message:  fmt.Sprintf("identifier %q is already bound in this scope", name),
		Severity: diag.SeverityError,
		Span:     dup.TextRange(),
		Related:  []diag.Related{{Message: "first defined here", Span: prev.TextRange()}},
		Source:   "binder",
	})
}

func (t *Table) reportUnresolved(idxNode *red.Node) {
	if tok := idxNode.TokenByKind(syntaxkind.Is(syntaxkind.IDENT)); tok != nil {
		t.Diagnostics = append(t.Diagnostics, diag.Diagnostic{
			Code:     diag.CodeUnresolvedIdent,
			Message:  fmt.Sprintf("unresolved identifier %s", tok.Text()),
			Severity: diag.SeverityError,
			Span:     idxNode.TextRange(),
			Source:   "binder",
		})
		return
	}
	t.Diagnostics = append(t.Diagnostics, diag.Diagnostic{
		Code:     diag.CodeIndexOutOfRange,
		Message:  "index out of range",
		Severity: diag.SeverityError,
		Span:     idxNode.TextRange(),
		Source:   "binder",
	})
}

// namespace tracks declaration order and identifier lookup for one
// numeric index space within one region.
type namespace struct {
	next    uint32
	byName  map[intern.ID]red.Pointer
	byIndex map[uint32]red.Pointer
}

func newNamespace() *namespace {
	return &namespace{byName: make(map[intern.ID]red.Pointer), byIndex: make(map[uint32]red.Pointer)}
}

func (ns *namespace) declare(t *Table, key red.Pointer, kind SymbolKind, name intern.ID, named bool, region red.Pointer, green *red.Node) Idx {
	idx := Idx{Num: ns.next, Name: name, Named: named}
	ns.next++
	ns.byIndex[idx.Num] = key
	if named {
		if prevKey, dup := ns.byName[name]; dup {
			if prev, ok := t.Symbols[prevKey]; ok {
				t.reportDuplicate(intern.Idents.MustLookup(name), green, prev.Green)
			}
		} else {
			ns.byName[name] = key
		}
	}
	t.Symbols[key] = Symbol{Key: key, Kind: kind, Idx: idx, Region: region, Green: green}
	return idx
}

// moduleScope collects the eight namespaces a module maintains, per
// §4.8(1).
type moduleScope struct {
	types, funcs, tables, mems, globals, tags, datas, elems *namespace
}

func newModuleScope() *moduleScope {
	return &moduleScope{
		types: newNamespace(), funcs: newNamespace(), tables: newNamespace(),
		mems: newNamespace(), globals: newNamespace(), tags: newNamespace(),
		datas: newNamespace(), elems: newNamespace(),
	}
}

// label is one entry in the block-label stack: its defining node and,
// if present, its declared identifier.
type label struct {
	key   red.Pointer
	ident intern.ID
	named bool
}

// funcScope tracks a function body's params/locals namespace plus the
// live label stack while the binder descends through its instructions.
type funcScope struct {
	locals *namespace // params and locals share one index space in wat
	labels []label
}

// Bind runs the binder over every module in root, returning the
// combined symbol table.
func Bind(root *red.Node) *Table {
	t := newTable()
	r, ok := ast.CastRoot(root)
	if !ok {
		return t
	}
	for _, m := range r.Modules() {
		bindModule(t, m)
	}
	return t
}

func bindModule(t *Table, m ast.Module) {
	modKey := red.NewPointer(m.Syntax())
	sc := newModuleScope()

	for _, td := range m.Types() {
		for _, def := range td.Defs() {
			declareNamed(t, sc.types, def.Syntax(), Type, def.Name, modKey)
		}
	}
	for _, imp := range m.Imports() {
		bindImportDecl(t, sc, imp, modKey)
	}
	funcKeys := make([]red.Pointer, len(m.Funcs()))
	for i, f := range m.Funcs() {
		funcKeys[i] = declareNamed(t, sc.funcs, f.Syntax(), Func, f.Name, modKey)
	}
	for _, g := range m.Globals() {
		declareNamed(t, sc.globals, g.Syntax(), GlobalDef, g.Name, modKey)
	}
	for _, mem := range m.Memories() {
		declareNamed(t, sc.mems, mem.Syntax(), MemoryDef, mem.Name, modKey)
	}
	for _, tb := range m.Tables() {
		declareNamed(t, sc.tables, tb.Syntax(), TableDef, tb.Name, modKey)
	}
	for _, tag := range m.Tags() {
		declareNamed(t, sc.tags, tag.Syntax(), TagDef, tag.Name, modKey)
	}
	for _, e := range m.Elems() {
		declareNamed(t, sc.elems, e.Syntax(), BlockDef, e.Name, modKey)
	}
	for _, d := range m.Datas() {
		declareNamed(t, sc.datas, d.Syntax(), BlockDef, d.Name, modKey)
	}

	// Every module-level namespace is fully declared above; func bodies
	// bind in a second pass so a call, ref.func, or return_call can
	// resolve a function declared later in the module.
	for i, f := range m.Funcs() {
		bindFuncBody(t, sc, f, funcKeys[i])
	}

	bindIndexUses(t, sc, m, modKey)
}

func declareNamed(t *Table, ns *namespace, n *red.Node, kind SymbolKind, name func() (string, bool), region red.Pointer) red.Pointer {
	key := red.NewPointer(n)
	ident, ok := name()
	var id intern.ID
	if ok {
		id = intern.Idents.Intern(ident)
	}
	ns.declare(t, key, kind, id, ok, region, n)
	return key
}

func bindImportDecl(t *Table, sc *moduleScope, imp ast.Import, modKey red.Pointer) {
	ext := imp.ExternType()
	if ext == nil {
		return
	}
	var ns *namespace
	var kind SymbolKind
	switch ext.Kind() {
	case syntaxkind.EXTERN_TYPE_FUNC:
		ns, kind = sc.funcs, Func
	case syntaxkind.EXTERN_TYPE_TABLE:
		ns, kind = sc.tables, TableDef
	case syntaxkind.EXTERN_TYPE_MEMORY:
		ns, kind = sc.mems, MemoryDef
	case syntaxkind.EXTERN_TYPE_GLOBAL:
		ns, kind = sc.globals, GlobalDef
	case syntaxkind.EXTERN_TYPE_TAG:
		ns, kind = sc.tags, TagDef
	default:
		return
	}
	ident := identOf(ext)
	key := red.NewPointer(ext)
	var id intern.ID
	named := ident != ""
	if named {
		id = intern.Idents.Intern(ident)
	}
	ns.declare(t, key, kind, id, named, modKey, ext)
}

func identOf(n *red.Node) string {
	tok := n.TokenByKind(syntaxkind.Is(syntaxkind.IDENT))
	if tok == nil {
		return ""
	}
	return tok.Text()
}

func bindFuncBody(t *Table, sc *moduleScope, f ast.Func, funcKey red.Pointer) {
	fs := &funcScope{locals: newNamespace()}
	for _, p := range f.Params() {
		declareNamed(t, fs.locals, p.Syntax(), Param, p.Name, funcKey)
	}
	for _, l := range f.Locals() {
		declareNamed(t, fs.locals, l.Syntax(), Local, l.Name, funcKey)
	}
	for _, instr := range f.Body() {
		bindInstr(t, sc, fs, funcKey, instr)
	}
}

// bindInstr walks one instruction subtree, pushing/popping the label
// stack around block bodies and resolving every index-bearing reference
// it encounters (locals, globals, calls, branches, ...).
func bindInstr(t *Table, sc *moduleScope, fs *funcScope, funcKey red.Pointer, n *red.Node) {
	switch n.Kind() {
	case syntaxkind.BLOCK_BLOCK, syntaxkind.BLOCK_LOOP, syntaxkind.BLOCK_IF, syntaxkind.BLOCK_TRY_TABLE:
		bindBlock(t, sc, fs, funcKey, n)
		return
	case syntaxkind.PLAIN_INSTR:
		bindPlainInstr(t, sc, fs, n)
	}
	for _, child := range n.Children() {
		bindInstr(t, sc, fs, funcKey, child)
	}
}

func bindBlock(t *Table, sc *moduleScope, fs *funcScope, funcKey red.Pointer, n *red.Node) {
	key := red.NewPointer(n)
	ident := identOf(n)
	var id intern.ID
	named := ident != ""
	if named {
		id = intern.Idents.Intern(ident)
	}
	t.Symbols[key] = Symbol{Key: key, Kind: BlockDef, Idx: Idx{Name: id, Named: named}, Region: funcKey, Green: n}

	fs.labels = append(fs.labels, label{key: key, ident: id, named: named})
	for _, child := range n.Children() {
		bindInstr(t, sc, fs, funcKey, child)
	}
	fs.labels = fs.labels[:len(fs.labels)-1]
}

func bindPlainInstr(t *Table, sc *moduleScope, fs *funcScope, n *red.Node) {
	nameTok := n.TokenByKind(syntaxkind.Is(syntaxkind.INSTR_NAME))
	if nameTok == nil {
		return
	}
	mnemonic := nameTok.Text()

	indices := n.ChildrenByKind(syntaxkind.Is(syntaxkind.INDEX))
	switch {
	case isLocalMnemonic(mnemonic):
		resolveIndex(t, fs.locals, indices, LocalRef)
	case isGlobalMnemonic(mnemonic):
		resolveIndex(t, sc.globals, indices, GlobalRef)
	case isCallMnemonic(mnemonic):
		resolveIndex(t, sc.funcs, indices, Call)
	case isTableMnemonic(mnemonic):
		resolveIndex(t, sc.tables, indices, TableRef)
	case isBranchMnemonic(mnemonic):
		resolveLabels(t, fs, indices)
	}

	for _, tu := range n.ChildrenByKind(syntaxkind.Is(syntaxkind.TYPE_USE)) {
		resolveIndex(t, sc.types, tu.ChildrenByKind(syntaxkind.Is(syntaxkind.INDEX)), TypeUse)
	}
}

func resolveIndex(t *Table, ns *namespace, indices []*red.Node, kind SymbolKind) {
	for _, idxNode := range indices {
		refKey := red.NewPointer(idxNode)
		t.Symbols[refKey] = Symbol{Key: refKey, Kind: kind, Green: idxNode}
		if defKey, ok := resolveInNamespace(ns, idxNode); ok {
			t.Resolved[refKey] = defKey
		} else {
			t.reportUnresolved(idxNode)
		}
	}
}

func resolveInNamespace(ns *namespace, idxNode *red.Node) (red.Pointer, bool) {
	if tok := idxNode.TokenByKind(syntaxkind.Is(syntaxkind.IDENT)); tok != nil {
		id := intern.Idents.Intern(tok.Text())
		key, ok := ns.byName[id]
		return key, ok
	}
	if tok := idxNode.TokenByKind(syntaxkind.Is(syntaxkind.UNSIGNED_INT)); tok != nil {
		num := parseIndexLiteral(tok.Text())
		key, ok := ns.byIndex[num]
		return key, ok
	}
	return red.Pointer{}, false
}

func parseIndexLiteral(s string) uint32 {
	var n uint32
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			continue
		}
		n = n*10 + uint32(s[i]-'0')
	}
	return n
}

// resolveLabels resolves a branch instruction's label immediates by
// walking the live block stack: an identifier matches the nearest
// enclosing block sharing that name, an integer matches by depth
// (0 = innermost).
func resolveLabels(t *Table, fs *funcScope, indices []*red.Node) {
	for _, idxNode := range indices {
		refKey := red.NewPointer(idxNode)
		t.Symbols[refKey] = Symbol{Key: refKey, Kind: BlockRef, Green: idxNode}

		if tok := idxNode.TokenByKind(syntaxkind.Is(syntaxkind.IDENT)); tok != nil {
			id := intern.Idents.Intern(tok.Text())
			found := false
			for i := len(fs.labels) - 1; i >= 0; i-- {
				if fs.labels[i].named && fs.labels[i].ident == id {
					t.Resolved[refKey] = fs.labels[i].key
					t.Blocks[refKey] = fs.labels[i].key
					found = true
					break
				}
			}
			if !found {
				t.reportUnresolved(idxNode)
			}
			continue
		}
		if tok := idxNode.TokenByKind(syntaxkind.Is(syntaxkind.UNSIGNED_INT)); tok != nil {
			depth := int(parseIndexLiteral(tok.Text()))
			i := len(fs.labels) - 1 - depth
			if i >= 0 && i < len(fs.labels) {
				t.Resolved[refKey] = fs.labels[i].key
				t.Blocks[refKey] = fs.labels[i].key
			} else {
				t.reportUnresolved(idxNode)
			}
		}
	}
}

// bindIndexUses resolves the module-level index occurrences that live
// outside function bodies: start, elem table uses, data memory uses, and
// export targets.
func bindIndexUses(t *Table, sc *moduleScope, m ast.Module, modKey red.Pointer) {
	if start, ok := m.Start(); ok {
		resolveIndex(t, sc.funcs, []*red.Node{start.Syntax()}, Call)
	}
	for _, e := range m.Elems() {
		if tu := e.Syntax().ChildByKind(syntaxkind.Is(syntaxkind.TABLE_USE)); tu != nil {
			resolveIndex(t, sc.tables, tu.ChildrenByKind(syntaxkind.Is(syntaxkind.INDEX)), TableRef)
		}
	}
	for _, d := range m.Datas() {
		if mu := d.Syntax().ChildByKind(syntaxkind.Is(syntaxkind.MEM_USE)); mu != nil {
			resolveIndex(t, sc.mems, mu.ChildrenByKind(syntaxkind.Is(syntaxkind.INDEX)), MemoryRef)
		}
	}
	for _, exp := range m.Exports() {
		target := exp.Target()
		if target == nil {
			continue
		}
		idx := target.ChildByKind(syntaxkind.Is(syntaxkind.INDEX))
		if idx == nil {
			continue
		}
		switch target.Kind() {
		case syntaxkind.EXTERN_IDX_FUNC:
			resolveIndex(t, sc.funcs, []*red.Node{idx}, Call)
		case syntaxkind.EXTERN_IDX_TABLE:
			resolveIndex(t, sc.tables, []*red.Node{idx}, TableRef)
		case syntaxkind.EXTERN_IDX_MEMORY:
			resolveIndex(t, sc.mems, []*red.Node{idx}, MemoryRef)
		case syntaxkind.EXTERN_IDX_GLOBAL:
			resolveIndex(t, sc.globals, []*red.Node{idx}, GlobalRef)
		case syntaxkind.EXTERN_IDX_TAG:
			resolveIndex(t, sc.tags, []*red.Node{idx}, TagRef)
		}
	}
}

func isLocalMnemonic(m string) bool {
	return m == "local.get" || m == "local.set" || m == "local.tee"
}
func isGlobalMnemonic(m string) bool { return m == "global.get" || m == "global.set" }
func isCallMnemonic(m string) bool {
	return m == "call" || m == "return_call" || m == "ref.func"
}
func isTableMnemonic(m string) bool {
	switch m {
	case "table.get", "table.set", "table.size", "table.grow", "table.fill":
		return true
	}
	return false
}
func isBranchMnemonic(m string) bool {
	switch m {
	case "br", "br_if", "br_table", "br_on_null", "br_on_non_null", "br_on_cast", "br_on_cast_fail":
		return true
	}
	return false
}
