// Package lexer implements a byte-driven, checkpoint-based tokenizer for
// the WebAssembly text format. Trivia (whitespace and comments) is lexed
// as its own token kind rather than attached to the following token as
// leading trivia, so the parser can interleave it with meaningful tokens
// as ordinary siblings in the green tree.
package lexer

import (
	"fmt"

	"github.com/watlang/watls/internal/syntaxkind"
	"github.com/watlang/watls/internal/text"
)

// Kind is a local alias so call sites read lexer.Kind.
type Kind = syntaxkind.Kind

// Token is one lexed token: a kind and the byte span it covers. The
// backing source slice is owned by the Lexer; callers recover text via
// Lexer.Text(Token) or their own slice of the source.
type Token struct {
	Kind Kind
	Span text.Span
}

// Checkpoint is an opaque cursor position captured by Lexer.Checkpoint and
// restored by Lexer.Reset, used for the parser's speculative lookahead.
type Checkpoint int

// Lexer tokenizes a byte slice by advancing a cursor. Besides the cursor
// its only state is the TopLevel flag; re-reading the same span twice is
// always safe.
type Lexer struct {
	src []byte
	pos int
	// TopLevel controls whether a bare ')' at the cursor is treated as an
	// error-worthy character by Expect's recovery chunk; at top level
	// (outside any open paren) there is nothing sensible to close, so a
	// stray ')' there is swallowed one character at a time like any other
	// unexpected byte instead of being treated as the boundary of an
	// enclosing form.
	TopLevel bool
}

// New returns a lexer positioned at the start of src.
func New(src []byte) *Lexer {
	return &Lexer{src: src, TopLevel: true}
}

// Checkpoint captures the current cursor position.
func (l *Lexer) Checkpoint() Checkpoint { return Checkpoint(l.pos) }

// Reset restores a previously captured cursor position.
func (l *Lexer) Reset(cp Checkpoint) { l.pos = int(cp) }

// AtEOF reports whether the cursor has consumed the whole input.
func (l *Lexer) AtEOF() bool { return l.pos >= len(l.src) }

// Text returns the source bytes spanned by tok.
func (l *Lexer) Text(tok Token) string {
	return string(l.src[tok.Span.Start:tok.Span.End])
}

// Trivia consumes one trivia token — a run of whitespace, a line comment
// (";; ... \n"), or a block comment ("(; ... ;)", which nests). It returns
// ok=false without advancing if the cursor isn't at trivia.
func (l *Lexer) Trivia() (Token, bool) {
	if l.AtEOF() {
		return Token{}, false
	}
	start := l.pos
	switch b := l.src[l.pos]; {
	case isSpace(b):
		for !l.AtEOF() && isSpace(l.src[l.pos]) {
			l.pos++
		}
		return Token{Kind: syntaxkind.WHITESPACE, Span: l.span(start)}, true
	case b == ';' && l.peek(1) == ';':
		for !l.AtEOF() && l.src[l.pos] != '\n' {
			l.pos++
		}
		return Token{Kind: syntaxkind.LINE_COMMENT, Span: l.span(start)}, true
	case b == '(' && l.peek(1) == ';':
		l.scanBlockComment()
		return Token{Kind: syntaxkind.BLOCK_COMMENT, Span: l.span(start)}, true
	default:
		return Token{}, false
	}
}

// scanBlockComment consumes a nested "(; ... ;)" comment starting at the
// cursor. An unterminated comment consumes to EOF, per B2.
func (l *Lexer) scanBlockComment() {
	l.pos += 2 // "(;"
	depth := 1
	for !l.AtEOF() && depth > 0 {
		switch {
		case l.src[l.pos] == '(' && l.peek(1) == ';':
			depth++
			l.pos += 2
		case l.src[l.pos] == ';' && l.peek(1) == ')':
			depth--
			l.pos += 2
		default:
			l.pos++
		}
	}
}

// Peek previews the next non-trivia token of the given kind without
// advancing the cursor.
func (l *Lexer) Peek(kind Kind) (Token, bool) {
	cp := l.Checkpoint()
	defer l.Reset(cp)
	for {
		if _, ok := l.Trivia(); !ok {
			break
		}
	}
	return l.Next(kind)
}

// Eat consumes a token of the given kind if the cursor (after any
// intervening trivia has already been consumed by the caller) matches;
// otherwise it leaves the cursor untouched.
func (l *Lexer) Eat(kind Kind) (Token, bool) {
	cp := l.Checkpoint()
	tok, ok := l.Next(kind)
	if !ok {
		l.Reset(cp)
	}
	return tok, ok
}

// Expect consumes a token of the given kind, or — on mismatch — consumes
// one error-worthy chunk of input and returns it as an ERROR token along
// with a human-readable expectation message. Where errorChunk declines
// the input (EOF, whitespace, '(', a line comment, or a ')' outside top
// level), the ERROR token is zero-width and the cursor does not move.
func (l *Lexer) Expect(kind Kind) (Token, string, bool) {
	if tok, ok := l.Eat(kind); ok {
		return tok, "", true
	}
	tok, ok := l.errorChunk()
	if !ok {
		return Token{Kind: syntaxkind.ERROR, Span: text.Span{Start: text.ByteOffset(l.pos), End: text.ByteOffset(l.pos)}}, expectationFor(kind), false
	}
	return tok, expectationFor(kind), false
}

func expectationFor(kind Kind) string {
	switch kind {
	case syntaxkind.L_PAREN:
		return "'('"
	case syntaxkind.R_PAREN:
		return "')'"
	case syntaxkind.KEYWORD:
		return "keyword"
	case syntaxkind.INSTR_NAME:
		return "instruction name"
	case syntaxkind.TYPE_KEYWORD:
		return "type keyword"
	case syntaxkind.MODIFIER_KEYWORD:
		return "modifier keyword"
	case syntaxkind.IDENT:
		return "identifier"
	case syntaxkind.STRING:
		return "string"
	case syntaxkind.INT:
		return "integer"
	case syntaxkind.UNSIGNED_INT:
		return "unsigned integer"
	case syntaxkind.FLOAT:
		return "float"
	case syntaxkind.EQ:
		return "'='"
	case syntaxkind.MEM_ARG_KEYWORD:
		return "memory argument keyword"
	default:
		return fmt.Sprintf("%s", kind)
	}
}

// Next tries to lex a token of exactly the given kind at the cursor,
// without any recovery fallback. It advances the cursor on success and
// leaves it alone on failure.
func (l *Lexer) Next(kind Kind) (Token, bool) {
	switch kind {
	case syntaxkind.L_PAREN:
		return l.asciiChar('(', syntaxkind.L_PAREN)
	case syntaxkind.R_PAREN:
		return l.asciiChar(')', syntaxkind.R_PAREN)
	case syntaxkind.KEYWORD, syntaxkind.INSTR_NAME, syntaxkind.TYPE_KEYWORD, syntaxkind.MODIFIER_KEYWORD:
		return l.word(kind)
	case syntaxkind.IDENT:
		return l.ident()
	case syntaxkind.STRING:
		return l.string()
	case syntaxkind.INT:
		return l.int()
	case syntaxkind.UNSIGNED_INT:
		return l.unsignedInt()
	case syntaxkind.FLOAT:
		return l.float()
	case syntaxkind.EQ:
		return l.asciiChar('=', syntaxkind.EQ)
	case syntaxkind.MEM_ARG_KEYWORD:
		return l.memArgKeyword()
	default:
		return Token{}, false
	}
}

// Keyword matches an exact lowercase-ASCII literal keyword, requiring
// that the following byte (if any) isn't an identifier character — so
// "offset" doesn't match a prefix of "offsetx".
func (l *Lexer) Keyword(literal string) (Token, bool) {
	if l.pos+len(literal) > len(l.src) {
		return Token{}, false
	}
	if string(l.src[l.pos:l.pos+len(literal)]) != literal {
		return Token{}, false
	}
	if next := l.pos + len(literal); next < len(l.src) && isIDChar(l.src[next]) {
		return Token{}, false
	}
	start := l.pos
	l.pos += len(literal)
	return Token{Kind: syntaxkind.KEYWORD, Span: l.span(start)}, true
}

func (l *Lexer) asciiChar(c byte, kind Kind) (Token, bool) {
	if l.AtEOF() || l.src[l.pos] != c {
		return Token{}, false
	}
	start := l.pos
	l.pos++
	return Token{Kind: kind, Span: l.span(start)}, true
}

func (l *Lexer) word(kind Kind) (Token, bool) {
	if l.AtEOF() || !isLowerAlpha(l.src[l.pos]) {
		return Token{}, false
	}
	start := l.pos
	l.pos++
	for !l.AtEOF() && isIDChar(l.src[l.pos]) {
		l.pos++
	}
	return Token{Kind: kind, Span: l.span(start)}, true
}

func (l *Lexer) ident() (Token, bool) {
	if l.AtEOF() || l.src[l.pos] != '$' {
		return Token{}, false
	}
	start := l.pos
	end := l.pos + 1
	for end < len(l.src) && isIDChar(l.src[end]) {
		end++
	}
	if end == start+1 {
		// Lone '$' is not a valid identifier (B1): don't consume it here,
		// let the caller's recovery path turn it into an ERROR token.
		return Token{}, false
	}
	l.pos = end
	return Token{Kind: syntaxkind.IDENT, Span: l.span(start)}, true
}

func (l *Lexer) string() (Token, bool) {
	if l.AtEOF() || l.src[l.pos] != '"' {
		return Token{}, false
	}
	start := l.pos
	i := l.pos + 1
	for i < len(l.src) {
		switch l.src[i] {
		case '"':
			l.pos = i + 1
			return Token{Kind: syntaxkind.STRING, Span: l.span(start)}, true
		case '\\':
			i++
			if i < len(l.src) {
				i++
			}
		case '\n', '\r':
			return Token{}, false
		default:
			i++
		}
	}
	return Token{}, false
}

func (l *Lexer) int() (Token, bool) {
	start := l.pos
	if !l.AtEOF() && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
		l.pos++
	}
	if _, ok := l.unsignedIntRaw(); !ok {
		l.pos = start
		return Token{}, false
	}
	return Token{Kind: syntaxkind.INT, Span: l.span(start)}, true
}

func (l *Lexer) unsignedInt() (Token, bool) {
	start := l.pos
	if _, ok := l.unsignedIntRaw(); !ok {
		l.pos = start
		return Token{}, false
	}
	return Token{Kind: syntaxkind.UNSIGNED_INT, Span: l.span(start)}, true
}

// unsignedIntRaw scans "0x" hex digits (with '_' separators) or plain
// decimal digits (with '_' separators), requiring the digit run not be
// immediately followed by another identifier character (so "0x1g" isn't
// silently truncated to "0x1").
func (l *Lexer) unsignedIntRaw() (string, bool) {
	start := l.pos
	var ok bool
	if l.hasPrefix("0x") {
		l.pos += 2
		ok = l.scanDigits(isHexDigit)
	} else {
		ok = l.scanDigits(isDigit)
	}
	if !ok {
		l.pos = start
		return "", false
	}
	if !l.AtEOF() && isIDChar(l.src[l.pos]) {
		l.pos = start
		return "", false
	}
	return string(l.src[start:l.pos]), true
}

// scanDigits consumes digits and single '_' separators between them.
// Returns false (without restoring the cursor) if no digit was seen or a
// separator isn't between two digits.
func (l *Lexer) scanDigits(isDigit func(byte) bool) bool {
	start := l.pos
	sawDigit := false
	for !l.AtEOF() {
		b := l.src[l.pos]
		if isDigit(b) {
			sawDigit = true
			l.pos++
			continue
		}
		if b == '_' {
			if !sawDigit || l.pos+1 >= len(l.src) || !isDigit(l.src[l.pos+1]) {
				return false
			}
			l.pos++
			continue
		}
		break
	}
	return sawDigit && l.pos > start
}

func (l *Lexer) float() (Token, bool) {
	start := l.pos
	valid := true
	if !l.AtEOF() && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
		l.pos++
	}

	switch {
	case l.hasPrefix("0x"):
		l.pos += 2
		valid = l.scanDigits(isHexDigit)
		if !l.AtEOF() && l.src[l.pos] == '.' {
			l.pos++
			if !l.AtEOF() && isHexDigit(l.src[l.pos]) {
				valid = l.scanDigits(isHexDigit) && valid
			}
		}
		if !l.AtEOF() && (l.src[l.pos] == 'p' || l.src[l.pos] == 'P') {
			l.pos++
			if !l.AtEOF() && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
				l.pos++
			}
			valid = l.scanDigits(isDigit) && valid
		}
	case !l.AtEOF() && isDigit(l.src[l.pos]):
		valid = l.scanDigits(isDigit)
		if !l.AtEOF() && l.src[l.pos] == '.' {
			l.pos++
			if !l.AtEOF() && isDigit(l.src[l.pos]) {
				valid = l.scanDigits(isDigit) && valid
			}
		}
		if !l.AtEOF() && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
			l.pos++
			if !l.AtEOF() && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
				l.pos++
			}
			valid = l.scanDigits(isDigit) && valid
		}
	case l.hasPrefixNotIdentContinued("inf"):
		l.pos += 3
	case l.hasPrefixNotIdentContinued("nan") || l.hasPrefix("nan:0x"):
		l.pos += 3
		if l.hasPrefix(":0x") {
			l.pos += 3
			valid = l.scanDigits(isHexDigit)
		}
	default:
		l.pos = start
		return Token{}, false
	}

	if !l.AtEOF() && isIDChar(l.src[l.pos]) {
		l.pos = start
		return Token{}, false
	}
	kind := syntaxkind.FLOAT
	if !valid {
		kind = syntaxkind.ERROR
	}
	return Token{Kind: kind, Span: l.span(start)}, true
}

func (l *Lexer) memArgKeyword() (Token, bool) {
	start := l.pos
	var matched string
	for _, kw := range [...]string{"offset", "align"} {
		if l.hasPrefix(kw) {
			matched = kw
			break
		}
	}
	if matched == "" {
		return Token{}, false
	}
	l.pos += len(matched)
	if !l.AtEOF() && isAlpha(l.src[l.pos]) {
		l.pos = start
		return Token{}, false
	}
	return Token{Kind: syntaxkind.MEM_ARG_KEYWORD, Span: l.span(start)}, true
}

// errorChunk consumes one error-worthy run of input for use as the text
// of a synthesized ERROR token: a full identifier-like run, a (possibly
// unterminated) string, or else a single UTF-8 rune. It declines to
// consume whitespace, an opening paren, the start of a line comment, or
// (outside top level) a closing paren — those are left for the caller to
// handle as structurally meaningful.
func (l *Lexer) errorChunk() (Token, bool) {
	if l.AtEOF() {
		return Token{}, false
	}
	start := l.pos
	b := l.src[l.pos]
	switch {
	case isSpace(b) || b == '(':
		return Token{}, false
	case b == ';' && l.peek(1) == ';':
		return Token{}, false
	case b == ')' && !l.TopLevel:
		return Token{}, false
	case isIDChar(b):
		for !l.AtEOF() && isIDChar(l.src[l.pos]) {
			l.pos++
		}
	case b == '"':
		l.string()
		if l.pos == start {
			// Unterminated: consume to EOF as one error token.
			l.pos = len(l.src)
		}
	default:
		l.pos += runeLen(l.src[l.pos:])
	}
	return Token{Kind: syntaxkind.ERROR, Span: l.span(start)}, true
}

func (l *Lexer) span(start int) text.Span {
	return text.Span{Start: text.ByteOffset(start), End: text.ByteOffset(l.pos)}
}

func (l *Lexer) peek(delta int) byte {
	i := l.pos + delta
	if i < 0 || i >= len(l.src) {
		return 0
	}
	return l.src[i]
}

func (l *Lexer) hasPrefix(s string) bool {
	if l.pos+len(s) > len(l.src) {
		return false
	}
	return string(l.src[l.pos:l.pos+len(s)]) == s
}

func (l *Lexer) hasPrefixNotIdentContinued(s string) bool {
	if !l.hasPrefix(s) {
		return false
	}
	next := l.pos + len(s)
	return next >= len(l.src) || !isIDChar(l.src[next])
}
