// Package service exposes the collaborator contract described for the
// editor protocol surface — commit/calm/pull_diagnostics plus the
// position-keyed query methods — over a JSON-RPC/Content-Length framed
// transport, the same wire shape the document store's owning editor
// process speaks to any other language tool in this family.
package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/watlang/watls/internal/ast"
	"github.com/watlang/watls/internal/binder"
	"github.com/watlang/watls/internal/diag"
	"github.com/watlang/watls/internal/docstore"
	"github.com/watlang/watls/internal/intern"
	"github.com/watlang/watls/internal/pipeline"
	"github.com/watlang/watls/internal/query"
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/text"
	"github.com/watlang/watls/internal/typeanalysis"
	"github.com/watlang/watls/internal/typesystem"
)

// Server holds the open-document store and the query cache backing
// every method below; both are safe for concurrent use on their own; the
// Server's own mutex guards only its shutdown flag.
type Server struct {
	store *docstore.Store
	cache *query.Cache

	mu       sync.Mutex
	shutdown bool
}

// NewServer creates a Server with a fresh document store and query cache.
func NewServer() *Server {
	return &Server{store: docstore.New(), cache: query.New()}
}

// Run serves JSON-RPC messages over in using Content-Length framing,
// writing responses to out, until ctx is done, the stream ends, or an
// "exit" notification arrives.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	br := bufio.NewReader(in)
	bw := bufio.NewWriter(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := readFramedMessage(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if len(body) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			_ = s.writeError(bw, nil, rpcParseError, err.Error())
			_ = bw.Flush()
			continue
		}
		if req.Method == "" {
			continue
		}

		if err := s.dispatch(ctx, bw, req); err != nil {
			if errors.Is(err, ErrShutdownRequested) {
				return nil
			}
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
}

func (s *Server) dispatch(ctx context.Context, w *bufio.Writer, req Request) error {
	isRequest := len(req.ID) != 0
	writeResp := func(result any) error {
		if !isRequest {
			return nil
		}
		return s.writeResponse(w, Response{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result})
	}
	writeErr := func(code int, msg string) error {
		if !isRequest {
			return nil
		}
		return s.writeError(w, req.ID, code, msg)
	}
	decode := func(v any) bool {
		if len(req.Params) == 0 {
			return true
		}
		if err := json.Unmarshal(req.Params, v); err != nil {
			_ = writeErr(rpcInvalidParams, err.Error())
			return false
		}
		return true
	}

	switch req.Method {
	case "initialize":
		return writeResp(struct{}{})
	case "shutdown":
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return writeResp(struct{}{})
	case "exit":
		return ErrShutdownRequested
	case "commit":
		var p CommitParams
		if !decode(&p) {
			return nil
		}
		doc := s.store.Commit(p.URI, []byte(p.Text))
		s.cache.Invalidate(doc.URI)
		return writeResp(struct{}{})
	case "calm":
		// Single-threaded request processing already drains every prior
		// commit before this call runs; calm has nothing further to wait
		// on and exists only so collaborators that batch edits have an
		// explicit synchronization point.
		return writeResp(struct{}{})
	case "close":
		var p CloseParams
		if !decode(&p) {
			return nil
		}
		s.store.Close(p.URI)
		return writeResp(struct{}{})
	case "pull_diagnostics":
		var p DiagnosticsParams
		if !decode(&p) {
			return nil
		}
		res, err := s.pullDiagnostics(p.URI)
		if err != nil {
			return writeErr(rpcInternalError, err.Error())
		}
		return writeResp(res)
	case "hover":
		var p PositionParams
		if !decode(&p) {
			return nil
		}
		res, err := s.hover(p)
		if err != nil {
			return writeErr(rpcInternalError, err.Error())
		}
		return writeResp(res)
	case "document_highlight":
		var p PositionParams
		if !decode(&p) {
			return nil
		}
		res, err := s.documentHighlight(p)
		if err != nil {
			return writeErr(rpcInternalError, err.Error())
		}
		return writeResp(res)
	case "completion":
		var p PositionParams
		if !decode(&p) {
			return nil
		}
		return writeResp(s.completion(p))
	case "rename":
		var p RenameParams
		if !decode(&p) {
			return nil
		}
		res, err := s.rename(p)
		if err != nil {
			return writeErr(rpcInternalError, err.Error())
		}
		return writeResp(res)
	case "prepare_call_hierarchy", "call_hierarchy_incoming_calls", "call_hierarchy_outgoing_calls":
		// Call hierarchy needs a cross-reference index of every call site
		// against every func def; the binder only resolves call sites
		// within the document being checked, which is enough for
		// document_highlight's "occurrences of this symbol" but not for a
		// full hierarchy. Answering with an empty, valid result keeps the
		// method from erroring for a collaborator that calls it eagerly.
		return writeResp([]any{})
	default:
		return writeErr(rpcMethodNotFound, "method not found")
	}
}

func (s *Server) writeResponse(w *bufio.Writer, resp Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return writeFramedMessage(w, body)
}

func (s *Server) writeError(w *bufio.Writer, id json.RawMessage, code int, msg string) error {
	return s.writeResponse(w, Response{JSONRPC: JSONRPCVersion, ID: id, Error: &ResponseError{Code: code, Message: msg}})
}

func (s *Server) pullDiagnostics(uri string) (DiagnosticsResult, error) {
	doc := s.store.Get(uri)
	if doc == nil {
		return DiagnosticsResult{}, errors.New("document not open: " + uri)
	}
	res, err := pipeline.Run(doc, s.cache)
	if err != nil {
		return DiagnosticsResult{}, err
	}
	items := make([]Diagnostic, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		items = append(items, toWireDiagnostic(doc.LineIndex, d))
	}
	return DiagnosticsResult{Items: items}, nil
}

func toWireDiagnostic(li *text.LineIndex, d diag.Diagnostic) Diagnostic {
	out := Diagnostic{
		Range:    spanToRange(li, d.Span),
		Code:     diagnosticCategory(d.Code),
		Message:  d.Message,
		Severity: severityOf(d.Severity),
		Data:     d.Data,
	}
	for _, r := range d.Related {
		out.RelatedInformation = append(out.RelatedInformation, RelatedDiagnostic{
			Range:   spanToRange(li, r.Span),
			Message: r.Message,
		})
	}
	return out
}

// diagnosticCategory maps an internal diag.Code to the small published
// vocabulary §6.1 promises collaborators: "syntax", "immediates",
// "type-check", "type-misuse", "unused", plus a catch-all for lints
// this checker doesn't distinguish further yet.
func diagnosticCategory(c diag.Code) string {
	switch c {
	case diag.CodeParseErrorNode, diag.CodeParseMissingNode,
		diag.CodeUnterminatedString, diag.CodeUnterminatedBlockComment:
		return "syntax"
	case diag.CodeUnresolvedIdent, diag.CodeDuplicateIdent, diag.CodeIndexOutOfRange:
		return "immediates"
	case diag.CodeTypeMismatch, diag.CodeOperandStackEmpty, diag.CodeResultCountMismatch:
		return "type-check"
	case diag.CodeUnknownType, diag.CodeInvalidRecGroup:
		return "type-misuse"
	case diag.CodeUnusedDefinition:
		return "unused"
	default:
		return "lint"
	}
}

func spanToRange(li *text.LineIndex, sp text.Span) Range {
	if li == nil {
		return Range{}
	}
	start, err := li.OffsetToUTF16Position(sp.Start)
	if err != nil {
		return Range{}
	}
	end, err := li.OffsetToUTF16Position(sp.End)
	if err != nil {
		return Range{}
	}
	return Range{
		Start: Position{Line: start.Line, Character: start.Character},
		End:   Position{Line: end.Line, Character: end.Character},
	}
}

func offsetOf(li *text.LineIndex, p Position) (text.ByteOffset, error) {
	return li.UTF16PositionToOffset(text.UTF16Position{Line: p.Line, Character: p.Character})
}

// symbolAt walks from the token covering off up through its ancestors
// to the nearest node the binder recorded a symbol for: an identifier
// or numeric index use, or the declaration itself when the cursor sits
// directly on a name.
func symbolAt(root *red.Node, off text.ByteOffset, t *binder.Table) (red.Pointer, bool) {
	res := root.TokenAtOffset(off)
	var tok *red.Token
	switch res.Kind {
	case red.SingleHit:
		tok = res.Single
	case red.BetweenHit:
		tok = res.Right
	default:
		return red.Pointer{}, false
	}
	if tok == nil {
		return red.Pointer{}, false
	}
	for n := tok.Parent(); n != nil; n = n.Parent() {
		key := red.NewPointer(n)
		if _, ok := t.Symbols[key]; ok {
			return key, true
		}
	}
	return red.Pointer{}, false
}

func definitionOf(t *binder.Table, key red.Pointer) red.Pointer {
	if def, ok := t.Resolved[key]; ok {
		return def
	}
	return key
}

func (s *Server) hover(p PositionParams) (HoverResult, error) {
	doc := s.store.Get(p.URI)
	if doc == nil {
		return HoverResult{}, errors.New("document not open: " + p.URI)
	}
	off, err := offsetOf(doc.LineIndex, p.Position)
	if err != nil {
		return HoverResult{}, err
	}
	result, err := pipeline.Run(doc, s.cache)
	if err != nil {
		return HoverResult{}, err
	}
	key, ok := symbolAt(doc.Root, off, result.Symbols)
	if !ok {
		return HoverResult{}, nil
	}
	defKey := definitionOf(result.Symbols, key)
	defNode := defKey.Resolve(doc.Root)
	if defNode == nil {
		return HoverResult{}, nil
	}
	contents := renderHover(result.Types, defNode)
	return HoverResult{Contents: contents, Range: spanToRange(doc.LineIndex, defNode.TextRange())}, nil
}

func renderHover(a *typeanalysis.Analysis, n *red.Node) string {
	if f, ok := ast.CastFunc(n); ok {
		return "func " + formatSignature(a.GetFuncSig(f))
	}
	if dt, ok := a.DefTypeOf(red.NewPointer(n)); ok {
		return "type " + compKindName(dt.Comp.Kind)
	}
	return n.Kind().String()
}

func compKindName(k typesystem.CompKind) string {
	switch k {
	case typesystem.CompFunc:
		return "func"
	case typesystem.CompStruct:
		return "struct"
	case typesystem.CompArray:
		return "array"
	default:
		return "unknown"
	}
}

func formatSignature(sig typesystem.Signature) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range sig.Params {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> (")
	for i, r := range sig.Results {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(r.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (s *Server) documentHighlight(p PositionParams) ([]HighlightResult, error) {
	doc := s.store.Get(p.URI)
	if doc == nil {
		return nil, errors.New("document not open: " + p.URI)
	}
	off, err := offsetOf(doc.LineIndex, p.Position)
	if err != nil {
		return nil, err
	}
	result, err := pipeline.Run(doc, s.cache)
	if err != nil {
		return nil, err
	}
	key, ok := symbolAt(doc.Root, off, result.Symbols)
	if !ok {
		return nil, nil
	}
	defKey := definitionOf(result.Symbols, key)

	var out []HighlightResult
	if n := defKey.Resolve(doc.Root); n != nil {
		out = append(out, HighlightResult{Range: spanToRange(doc.LineIndex, n.TextRange())})
	}
	for ref, def := range result.Symbols.Resolved {
		if def != defKey {
			continue
		}
		if n := ref.Resolve(doc.Root); n != nil {
			out = append(out, HighlightResult{Range: spanToRange(doc.LineIndex, n.TextRange())})
		}
	}
	return out, nil
}

// completion returns no candidates yet: a useful completion list needs
// a curated instruction/keyword table cross-referenced with the
// module's own declared names, which is future work beyond what the
// binder and type analyzer currently expose.
func (s *Server) completion(p PositionParams) []CompletionItem {
	return []CompletionItem{}
}

// rename renames every occurrence of the symbol under the cursor within
// its document. wat has no cross-module references, so a single-file
// WorkspaceEdit is always complete.
func (s *Server) rename(p RenameParams) (WorkspaceEdit, error) {
	if !isValidIdentName(p.NewName) {
		return WorkspaceEdit{}, fmt.Errorf("Invalid name `%s`: not a valid identifier.", p.NewName)
	}

	doc := s.store.Get(p.URI)
	if doc == nil {
		return WorkspaceEdit{}, errors.New("document not open: " + p.URI)
	}
	off, err := offsetOf(doc.LineIndex, p.Position)
	if err != nil {
		return WorkspaceEdit{}, err
	}
	result, err := pipeline.Run(doc, s.cache)
	if err != nil {
		return WorkspaceEdit{}, err
	}
	key, ok := symbolAt(doc.Root, off, result.Symbols)
	if !ok {
		return WorkspaceEdit{}, errors.New("This can't be renamed.")
	}
	defKey := definitionOf(result.Symbols, key)

	if renameConflicts(result.Symbols, defKey, p.NewName) {
		return WorkspaceEdit{}, fmt.Errorf("Invalid name `%s`: conflicting name.", p.NewName)
	}

	highlights, err := s.documentHighlight(PositionParams{URI: p.URI, Position: p.Position})
	if err != nil {
		return WorkspaceEdit{}, err
	}
	edits := make([]TextEdit, 0, len(highlights))
	for _, h := range highlights {
		edits = append(edits, TextEdit{Range: h.Range, NewText: p.NewName})
	}
	return WorkspaceEdit{Changes: map[string][]TextEdit{p.URI: edits}}, nil
}

// isValidIdentName reports whether name is a well-formed wat identifier:
// a '$' followed by one or more idchars, matching the lexer's own ident
// production exactly so a rename can never produce a name the parser
// would reject.
func isValidIdentName(name string) bool {
	if len(name) < 2 || name[0] != '$' {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isRenameIDChar(name[i]) {
			return false
		}
	}
	return true
}

func isRenameIDChar(b byte) bool {
	switch {
	case b >= '0' && b <= '9', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '/',
		':', '<', '=', '>', '?', '@', '\\', '^', '_', '`', '|', '~':
		return true
	default:
		return false
	}
}

// renameConflicts reports whether newName is already bound, in the same
// namespace and region as defKey, by a different symbol: e.g. renaming
// a second function to a name another function in the same module
// already uses. Params and locals share wat's single local index space,
// so they're treated as one namespace family here the way the binder
// treats them.
func renameConflicts(t *binder.Table, defKey red.Pointer, newName string) bool {
	target, ok := t.Symbols[defKey]
	if !ok {
		return false
	}
	newID := intern.Idents.Intern(newName)
	family := renameNamespaceFamily(target.Kind)
	for key, sym := range t.Symbols {
		if key == defKey || !sym.Idx.Named || sym.Idx.Name != newID {
			continue
		}
		if sym.Region != target.Region || renameNamespaceFamily(sym.Kind) != family {
			continue
		}
		return true
	}
	return false
}

// renameNamespaceFamily groups the symbol kinds that share one binder
// namespace: params and locals both live in a function's local index
// space, so a rename must treat them as one family even though the
// binder records them under distinct SymbolKinds.
func renameNamespaceFamily(k binder.SymbolKind) binder.SymbolKind {
	switch k {
	case binder.Param, binder.Local:
		return binder.Local
	default:
		return k
	}
}
