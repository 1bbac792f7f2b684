package lexer

import (
	"testing"

	"github.com/watlang/watls/internal/syntaxkind"
)

func TestLexIdentRequiresMoreThanDollar(t *testing.T) {
	t.Parallel()

	l := New([]byte("$"))
	if _, ok := l.Eat(syntaxkind.IDENT); ok {
		t.Fatalf("lone '$' should not lex as IDENT")
	}

	l = New([]byte("$f"))
	tok, ok := l.Eat(syntaxkind.IDENT)
	if !ok {
		t.Fatalf("expected $f to lex as IDENT")
	}
	if got := l.Text(tok); got != "$f" {
		t.Fatalf("Text() = %q, want %q", got, "$f")
	}
}

func TestLexBlockCommentNesting(t *testing.T) {
	t.Parallel()

	l := New([]byte("(; outer (; inner ;) still outer ;) rest"))
	tok, ok := l.Trivia()
	if !ok {
		t.Fatalf("expected block comment trivia")
	}
	if tok.Kind != syntaxkind.BLOCK_COMMENT {
		t.Fatalf("kind = %v, want BLOCK_COMMENT", tok.Kind)
	}
	if got := l.Text(tok); got != "(; outer (; inner ;) still outer ;)" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestLexUnterminatedBlockCommentConsumesToEOF(t *testing.T) {
	t.Parallel()

	src := "(; never closed"
	l := New([]byte(src))
	tok, ok := l.Trivia()
	if !ok || tok.Kind != syntaxkind.BLOCK_COMMENT {
		t.Fatalf("expected a single BLOCK_COMMENT token, got %+v ok=%v", tok, ok)
	}
	if !l.AtEOF() {
		t.Fatalf("lexer should be at EOF after unterminated block comment")
	}
	if got := l.Text(tok); got != src {
		t.Fatalf("Text() = %q, want %q", got, src)
	}
}

func TestLexLineCommentStopsAtNewline(t *testing.T) {
	t.Parallel()

	l := New([]byte(";; a comment\nnext"))
	tok, ok := l.Trivia()
	if !ok || tok.Kind != syntaxkind.LINE_COMMENT {
		t.Fatalf("expected LINE_COMMENT, got %+v ok=%v", tok, ok)
	}
	if got := l.Text(tok); got != ";; a comment" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestLexIntegers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		src  string
		want string
	}{
		{"42", "42"},
		{"-42", "-42"},
		{"+0", "+0"},
		{"0x2A", "0x2A"},
		{"1_000_000", "1_000_000"},
		{"0xDE_AD", "0xDE_AD"},
	}
	for _, c := range cases {
		l := New([]byte(c.src))
		tok, ok := l.Eat(syntaxkind.INT)
		if !ok {
			t.Fatalf("%q: expected INT", c.src)
		}
		if got := l.Text(tok); got != c.want {
			t.Fatalf("%q: Text() = %q, want %q", c.src, got, c.want)
		}
		if !l.AtEOF() {
			t.Fatalf("%q: lexer did not consume whole input", c.src)
		}
	}
}

func TestLexIntegerRejectsDanglingUnderscore(t *testing.T) {
	t.Parallel()

	l := New([]byte("1_"))
	if _, ok := l.Eat(syntaxkind.INT); ok {
		t.Fatalf("1_ should not lex as a complete INT")
	}
}

func TestLexFloats(t *testing.T) {
	t.Parallel()

	cases := []struct {
		src  string
		kind syntaxkind.Kind
	}{
		{"1.5", syntaxkind.FLOAT},
		{"1.5e10", syntaxkind.FLOAT},
		{"0x1.8p3", syntaxkind.FLOAT},
		{"inf", syntaxkind.FLOAT},
		{"-inf", syntaxkind.FLOAT},
		{"nan", syntaxkind.FLOAT},
		{"nan:0x1", syntaxkind.FLOAT},
		{"1.5e", syntaxkind.ERROR},
	}
	for _, c := range cases {
		l := New([]byte(c.src))
		tok, ok := l.Eat(syntaxkind.FLOAT)
		if !ok {
			t.Fatalf("%q: expected a FLOAT attempt to succeed lexing", c.src)
		}
		if tok.Kind != c.kind {
			t.Fatalf("%q: kind = %v, want %v", c.src, tok.Kind, c.kind)
		}
	}
}

func TestLexMemArgKeyword(t *testing.T) {
	t.Parallel()

	l := New([]byte("offset=4"))
	tok, ok := l.Eat(syntaxkind.MEM_ARG_KEYWORD)
	if !ok || l.Text(tok) != "offset" {
		t.Fatalf("expected MEM_ARG_KEYWORD 'offset', got %+v ok=%v", tok, ok)
	}

	l = New([]byte("offsetx=4"))
	if _, ok := l.Eat(syntaxkind.MEM_ARG_KEYWORD); ok {
		t.Fatalf("offsetx should not lex as a mem arg keyword")
	}
}

func TestExpectRecoversWithErrorToken(t *testing.T) {
	t.Parallel()

	l := New([]byte("garbage)"))
	tok, msg, ok := l.Expect(syntaxkind.L_PAREN)
	if ok {
		t.Fatalf("expected mismatch")
	}
	if tok.Kind != syntaxkind.ERROR {
		t.Fatalf("kind = %v, want ERROR", tok.Kind)
	}
	if l.Text(tok) != "garbage" {
		t.Fatalf("Text() = %q, want %q", l.Text(tok), "garbage")
	}
	if msg == "" {
		t.Fatalf("expected a non-empty expectation message")
	}
}

func TestPeekDoesNotAdvanceCursor(t *testing.T) {
	t.Parallel()

	l := New([]byte("  (module)"))
	cp := l.Checkpoint()
	if _, ok := l.Peek(syntaxkind.L_PAREN); !ok {
		t.Fatalf("expected to find '(' past leading whitespace")
	}
	if l.Checkpoint() != cp {
		t.Fatalf("Peek must not move the cursor")
	}
}

func TestCheckpointResetRoundTrip(t *testing.T) {
	t.Parallel()

	l := New([]byte("$a $b"))
	cp := l.Checkpoint()
	if _, ok := l.Eat(syntaxkind.IDENT); !ok {
		t.Fatalf("expected first ident to lex")
	}
	l.Reset(cp)
	tok, ok := l.Eat(syntaxkind.IDENT)
	if !ok || l.Text(tok) != "$a" {
		t.Fatalf("reset did not restore cursor, got %+v ok=%v", tok, ok)
	}
}
