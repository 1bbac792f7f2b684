// Package diag is the shared diagnostic shape produced by every analysis
// stage (lexer recovery, parser error recovery, binder resolution,
// the type checker) and consumed by the document store's
// pull_diagnostics surface.
package diag

import (
	"fmt"

	"github.com/watlang/watls/internal/text"
)

// Severity is a diagnostic severity level.
type Severity uint8

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// Code identifies a diagnostic kind, stable across releases so editors
// can filter or suppress by code.
type Code string

const (
	CodeParseErrorNode   Code = "PARSE_ERROR_NODE"
	CodeParseMissingNode Code = "PARSE_MISSING_NODE"
	CodeUnterminatedString Code = "UNTERMINATED_STRING"
	CodeUnterminatedBlockComment Code = "UNTERMINATED_BLOCK_COMMENT"

	CodeUnresolvedIdent Code = "UNRESOLVED_IDENTIFIER"
	CodeDuplicateIdent  Code = "DUPLICATE_IDENTIFIER"
	CodeIndexOutOfRange Code = "INDEX_OUT_OF_RANGE"

	CodeTypeMismatch      Code = "TYPE_MISMATCH"
	CodeOperandStackEmpty Code = "OPERAND_STACK_UNDERFLOW"
	CodeResultCountMismatch Code = "RESULT_COUNT_MISMATCH"
	CodeUnknownType       Code = "UNKNOWN_TYPE"
	CodeInvalidRecGroup   Code = "INVALID_REC_GROUP"

	CodeUnusedDefinition Code = "UNUSED_DEFINITION"

	CodeInternal Code = "INTERNAL"
)

// Related attaches supplementary context (e.g. "previous declaration
// here") to a diagnostic without promoting it to its own diagnostic.
type Related struct {
	Message string
	Span    text.Span
}

// Diagnostic is the unified shape every analysis stage emits.
type Diagnostic struct {
	Code     Code
	Message  string
	Severity Severity
	Span     text.Span
	Related  []Related
	Source   string // lexer | parser | binder | typecheck | lint

	// Data carries a stage-specific machine-readable payload: the
	// type-check stage's rendered found types ([]string) for extra values
	// left at the end of a body that expects no results. Nil otherwise.
	Data any
}

// Bag accumulates diagnostics produced while analyzing one document
// stage; stages pass a *Bag down instead of returning a slice from every
// internal helper.
type Bag struct {
	items []Diagnostic
}

func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

func (b *Bag) Errorf(source string, code Code, span text.Span, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Code: code, Severity: SeverityError, Span: span, Source: source,
		Message: fmt.Sprintf(format, args...),
	})
}

func (b *Bag) Items() []Diagnostic { return b.items }

func (b *Bag) Len() int { return len(b.items) }
