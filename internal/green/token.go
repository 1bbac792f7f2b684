// Package green implements the immutable, offset-less concrete syntax tree
// (the "green tree" of a red/green tree pair). Green values are shared by
// value: two subtrees with identical shape and text compare equal, and a
// single child replacement only has to rebuild the spine of ancestors.
package green

import (
	"github.com/watlang/watls/internal/syntaxkind"
	"github.com/watlang/watls/internal/text"
)

// Token is a leaf of the green tree: a kind and its exact source text. Every
// byte consumed by the lexer ends up in the text of exactly one token,
// including trivia and error tokens, which keeps the tree lossless.
type Token struct {
	kind Kind
	text string
}

// Kind is an alias kept local to the package so call sites read
// green.Kind instead of reaching into syntaxkind directly everywhere.
type Kind = syntaxkind.Kind

// NewToken builds a token value. Tokens are immutable once built.
func NewToken(kind Kind, text string) *Token {
	return &Token{kind: kind, text: text}
}

// Kind returns the token's syntax kind.
func (t *Token) Kind() Kind { return t.kind }

// Text returns the verbatim source text of the token.
func (t *Token) Text() string { return t.text }

// TextLen returns the number of bytes the token spans.
func (t *Token) TextLen() text.ByteOffset { return text.ByteOffset(len(t.text)) }

// Equal reports structural equality: same kind and same text.
func (t *Token) Equal(other *Token) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	return t.kind == other.kind && t.text == other.text
}
