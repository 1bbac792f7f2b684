// Package lint holds the non-fatal diagnostics named in the error
// handling design's "Lints" kind: definitions that are never
// referenced and whose name was not deliberately underscore-prefixed
// to mark them as intentionally unused.
package lint

import (
	"strings"

	"github.com/watlang/watls/internal/binder"
	"github.com/watlang/watls/internal/diag"
	"github.com/watlang/watls/internal/intern"
	"github.com/watlang/watls/internal/red"
)

var lintableKinds = map[binder.SymbolKind]string{
	binder.Func:      "function",
	binder.GlobalDef: "global",
	binder.MemoryDef: "memory",
	binder.TableDef:  "table",
	binder.TagDef:    "tag",
	binder.Type:      "type",
}

// UnusedDefinitions reports every module-level definition in t that no
// resolved reference anywhere in the document points at, skipping
// names whose text after the "$" starts with "_" (the convention for a deliberately unused
// definition, e.g. a placeholder import target).
func UnusedDefinitions(t *binder.Table) []diag.Diagnostic {
	used := make(map[red.Pointer]bool, len(t.Resolved))
	for _, def := range t.Resolved {
		used[def] = true
	}

	var out []diag.Diagnostic
	for key, sym := range t.Symbols {
		label, lintable := lintableKinds[sym.Kind]
		if !lintable || !sym.Idx.Named {
			continue
		}
		name, ok := intern.Idents.Lookup(sym.Idx.Name)
		if !ok || strings.HasPrefix(strings.TrimPrefix(name, "$"), "_") {
			continue
		}
		if used[key] {
			continue
		}
		out = append(out, diag.Diagnostic{
			Code:     diag.CodeUnusedDefinition,
			Message:  "unused " + label + " \"" + name + "\"",
			Severity: diag.SeverityWarning,
			Span:     sym.Green.TextRange(),
			Source:   "lint",
		})
	}
	return out
}
