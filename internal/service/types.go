package service

import "github.com/watlang/watls/internal/diag"

// Position is a zero-based line/UTF-16-column location, matching §6.1's
// LSP-style range encoding.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open [Start, End) span in Position coordinates.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// CommitParams names a document text commit, the sole mutation entry
// point: there is no incremental-edit variant, callers resolve any
// range-based edit into full text before calling commit.
type CommitParams struct {
	URI  string `json:"uri"`
	Text string `json:"text"`
}

// CloseParams drops a document from the store.
type CloseParams struct {
	URI string `json:"uri"`
}

// DiagnosticsParams requests the current diagnostics for one document.
type DiagnosticsParams struct {
	URI string `json:"uri"`
}

// Diagnostic is the wire shape for one reported issue.
type Diagnostic struct {
	Range              Range              `json:"range"`
	Code               string             `json:"code"`
	Message            string             `json:"message"`
	Severity           int                `json:"severity,omitempty"`
	RelatedInformation []RelatedDiagnostic `json:"related_information,omitempty"`
	Data               any                `json:"data,omitempty"`
}

// RelatedDiagnostic is supplementary context attached to a Diagnostic.
type RelatedDiagnostic struct {
	Range   Range  `json:"range"`
	Message string `json:"message"`
}

// DiagnosticsResult is pull_diagnostics's return shape.
type DiagnosticsResult struct {
	Items []Diagnostic `json:"items"`
}

// PositionParams locates one document offset, the shape shared by
// hover, document_highlight, and both directions of call hierarchy.
type PositionParams struct {
	URI      string   `json:"uri"`
	Position Position `json:"position"`
}

// RenameParams additionally carries the replacement text.
type RenameParams struct {
	URI      string   `json:"uri"`
	Position Position `json:"position"`
	NewName  string   `json:"new_name"`
}

// TextEdit is one replacement span produced by rename.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"new_text"`
}

// WorkspaceEdit groups the edits rename applies across one document;
// wat has no cross-file linking, so every edit targets the same URI.
type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes"`
}

// HoverResult carries rendered type information for the symbol under
// the cursor, or an empty Contents when there is nothing to show.
type HoverResult struct {
	Contents string `json:"contents"`
	Range    Range  `json:"range,omitempty"`
}

// HighlightResult is one occurrence of the symbol under the cursor.
type HighlightResult struct {
	Range Range `json:"range"`
}

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label string `json:"label"`
	Kind  string `json:"kind,omitempty"`
}

func severityOf(s diag.Severity) int {
	switch s {
	case diag.SeverityError:
		return 1
	case diag.SeverityWarning:
		return 2
	case diag.SeverityInfo:
		return 3
	case diag.SeverityHint:
		return 4
	default:
		return 1
	}
}
