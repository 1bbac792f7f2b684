// Package pipeline drives the per-document analysis chain — binder,
// type analyzer, type checker — over a committed document, memoizing
// each stage through the query cache so repeated requests against an
// unchanged document version reuse prior work.
package pipeline

import (
	"errors"

	"go.uber.org/multierr"

	"github.com/watlang/watls/internal/binder"
	"github.com/watlang/watls/internal/diag"
	"github.com/watlang/watls/internal/docstore"
	"github.com/watlang/watls/internal/lint"
	"github.com/watlang/watls/internal/query"
	"github.com/watlang/watls/internal/typeanalysis"
	"github.com/watlang/watls/internal/typecheck"
)

// Result bundles every analysis product derived from one document
// version, plus the union of diagnostics the parser and every later
// stage produced.
type Result struct {
	Symbols     *binder.Table
	Types       *typeanalysis.Analysis
	Diagnostics []diag.Diagnostic
}

// Run executes the full analysis chain for doc, consulting cache so a
// repeated call against the same (URI, version) reuses the binder and
// type-analyzer tables rather than rebuilding them. The type check
// stage is never cached on its own: it depends on both prior tables and
// is cheap enough, relative to them, not to warrant a separate key.
func Run(doc *docstore.Document, cache *query.Cache) (*Result, error) {
	if doc == nil || doc.Root == nil {
		return nil, errors.New("pipeline: document has no parse tree")
	}

	var errs error
	if len(doc.Diagnostics) == 0 {
		errs = multierr.Append(errs, errors.New("pipeline: document committed without a parse result"))
	}

	symbols, _ := cache.Get(query.Key{URI: doc.URI, Version: doc.Version, Name: "symbols"}, func() any {
		return binder.Bind(doc.Root)
	}).(*binder.Table)

	types, _ := cache.Get(query.Key{URI: doc.URI, Version: doc.Version, Name: "types"}, func() any {
		return typeanalysis.Analyze(doc.Root)
	}).(*typeanalysis.Analysis)

	var diags []diag.Diagnostic
	for _, r := range doc.Diagnostics {
		diags = append(diags, r.Diagnostics...)
	}
	diags = append(diags, typecheck.Check(doc.Root, types, symbols)...)
	if symbols != nil {
		diags = append(diags, symbols.Diagnostics...)
		diags = append(diags, lint.UnusedDefinitions(symbols)...)
	}

	return &Result{Symbols: symbols, Types: types, Diagnostics: diags}, errs
}
