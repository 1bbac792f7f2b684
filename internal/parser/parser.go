// Package parser builds the lossless green tree for a wat source file
// using hand-written recursive descent over package lexer's token
// stream. Every production consumes trivia explicitly (via bumpTrivia)
// so whitespace and comments land as ordinary tree siblings rather than
// attached leading-trivia, and every production recovers from malformed
// input by consuming an ERROR chunk and continuing, so one mistake never
// aborts the parse of the surrounding module.
package parser

import (
	"github.com/watlang/watls/internal/diag"
	"github.com/watlang/watls/internal/green"
	"github.com/watlang/watls/internal/lexer"
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/syntaxkind"
)

type Kind = syntaxkind.Kind

// Result is the outcome of parsing one document: the root red node and
// any diagnostics the parser itself raised during recovery. Semantic
// diagnostics (binder, type checker) are layered on separately.
type Result struct {
	Root        *red.Node
	Diagnostics []diag.Diagnostic
}

type parser struct {
	lex   *lexer.Lexer
	b     *green.Builder
	depth int
	bag   diag.Bag
}

// Parse builds a syntax tree for a complete wat source document.
func Parse(src []byte) Result {
	p := &parser{lex: lexer.New(src), b: green.NewBuilder()}
	p.b.StartNode(syntaxkind.ROOT)
	for {
		p.bumpTrivia()
		if p.lex.AtEOF() {
			break
		}
		if p.peekParen() {
			p.parseModule()
			continue
		}
		if !p.bump() {
			break
		}
	}
	p.b.FinishNode()
	g := p.b.Finish()
	return Result{Root: red.NewRoot(g), Diagnostics: p.bag.Items()}
}

// bumpTrivia consumes and emits every pending trivia token as a sibling
// in the current node.
func (p *parser) bumpTrivia() {
	for {
		tok, ok := p.lex.Trivia()
		if !ok {
			return
		}
		p.emit(tok)
	}
}

func (p *parser) emit(tok lexer.Token) {
	p.b.Token(tok.Kind, p.lex.Text(tok))
}

// bump consumes trivia then one error-worthy chunk of input, emitting it
// as an ERROR token. Used by recovery paths; reports false if no forward
// progress is possible (EOF, or a structurally meaningful boundary like
// the paren the caller is itself looking for).
func (p *parser) bump() bool {
	p.bumpTrivia()
	if p.lex.AtEOF() {
		return false
	}
	tok, _, ok := p.lex.Expect(Kind(syntaxkind.BAD_KIND))
	if !ok && tok.Span.Start == tok.Span.End {
		return false
	}
	p.emit(tok)
	return true
}

func (p *parser) peekParen() bool {
	_, ok := p.lex.Peek(syntaxkind.L_PAREN)
	return ok
}

// peekFieldKeyword previews the keyword that follows an as-yet-unconsumed
// '(', without consuming anything, for dispatch decisions like "is this
// module field a func or a type".
func (p *parser) peekFieldKeyword(literal string) bool {
	cp := p.lex.Checkpoint()
	defer p.lex.Reset(cp)
	p.consumeTriviaSpeculative()
	if _, ok := p.lex.Eat(syntaxkind.L_PAREN); !ok {
		return false
	}
	p.consumeTriviaSpeculative()
	_, ok := p.lex.Keyword(literal)
	return ok
}

func (p *parser) consumeTriviaSpeculative() {
	for {
		if _, ok := p.lex.Trivia(); !ok {
			return
		}
	}
}

// expect consumes trivia, then requires the given token kind; on
// mismatch it records a diagnostic and emits an ERROR token via the
// lexer's recovery chunk.
func (p *parser) expect(kind Kind, what string) (lexer.Token, string, bool) {
	p.bumpTrivia()
	tok, msg, ok := p.lex.Expect(kind)
	if !ok {
		p.bag.Errorf("parser", diag.CodeParseErrorNode, tok.Span, "expected %s, found %s", what, msg)
	}
	p.emit(tok)
	return tok, p.lex.Text(tok), ok
}

// eat consumes trivia, then the token if present, without recording a
// diagnostic on mismatch (the caller decides whether absence is an
// error).
func (p *parser) eat(kind Kind) (lexer.Token, bool) {
	p.bumpTrivia()
	tok, ok := p.lex.Eat(kind)
	if ok {
		p.emit(tok)
	}
	return tok, ok
}

func (p *parser) eatKeyword(literal string) bool {
	p.bumpTrivia()
	if tok, ok := p.lex.Keyword(literal); ok {
		p.emit(lexer.Token{Kind: syntaxkind.KEYWORD, Span: tok.Span})
		return true
	}
	return false
}

// openParen consumes trivia plus '(' and reports a diagnostic if it
// isn't there. It tracks paren depth so the lexer knows when a ')' is a
// structurally meaningful boundary versus ordinary recovery fodder.
func (p *parser) openParen() bool {
	_, _, ok := p.expect(syntaxkind.L_PAREN, "'('")
	p.depth++
	p.lex.TopLevel = false
	return ok
}

func (p *parser) closeParen() {
	p.expect(syntaxkind.R_PAREN, "')'")
	p.depth--
	p.lex.TopLevel = p.depth == 0
}

// recoverUntilCloseParen consumes tokens (as ERROR chunks for anything
// unrecognized) until it reaches this production's closing ')' or EOF,
// so one malformed clause doesn't desynchronize the rest of the form.
func (p *parser) recoverUntilCloseParen() {
	for {
		p.bumpTrivia()
		if p.lex.AtEOF() {
			return
		}
		if _, ok := p.lex.Peek(syntaxkind.R_PAREN); ok {
			return
		}
		if !p.bump() {
			return
		}
	}
}
