package parser

import (
	"github.com/watlang/watls/internal/instrset"
	"github.com/watlang/watls/internal/syntaxkind"
)

var blockKeywords = map[string]bool{"block": true, "loop": true, "if": true, "try_table": true}

// parseInstrSeq parses a flat sequence of instructions (folded and
// unfolded, interleaved freely as wat allows) until stop reports true or
// the input runs out. Every instruction, folded or not, is appended
// directly to the current builder frame as a PLAIN_INSTR or BLOCK_*
// sibling — folding only changes how an instruction's own operands are
// nested inside it, never where the instruction itself sits relative to
// its neighbors.
func (p *parser) parseInstrSeq(stop func() bool) {
	for {
		p.bumpTrivia()
		if p.lex.AtEOF() || stop() {
			return
		}
		if p.peekParen() {
			p.parseFoldedOperand()
			continue
		}
		if kw, ok := p.peekBareKeyword(); ok {
			if blockKeywords[kw] {
				p.parseUnfoldedBlock(kw)
				continue
			}
		}
		if _, ok := p.lex.Peek(syntaxkind.INSTR_NAME); ok {
			p.parsePlainInstrUnfolded()
			continue
		}
		return
	}
}

func (p *parser) peekBareKeyword() (string, bool) {
	cp := p.lex.Checkpoint()
	defer p.lex.Reset(cp)
	p.consumeTriviaSpeculative()
	tok, ok := p.lex.Next(syntaxkind.KEYWORD)
	if !ok {
		return "", false
	}
	return p.lex.Text(tok), true
}

// parseFoldedOperand expects '(' at the cursor (not yet consumed) and
// parses either a folded block construct or a folded plain instruction.
func (p *parser) parseFoldedOperand() {
	if kw, ok := p.peekParenKeyword(); ok && blockKeywords[kw] {
		p.parseFoldedBlock(kw)
		return
	}
	p.parsePlainInstrFolded()
}

// peekParenKeyword previews the keyword immediately after an
// as-yet-unconsumed '(', without consuming anything.
func (p *parser) peekParenKeyword() (string, bool) {
	cp := p.lex.Checkpoint()
	defer p.lex.Reset(cp)
	p.consumeTriviaSpeculative()
	if _, ok := p.lex.Eat(syntaxkind.L_PAREN); !ok {
		return "", false
	}
	p.consumeTriviaSpeculative()
	tok, ok := p.lex.Next(syntaxkind.KEYWORD)
	if !ok {
		return "", false
	}
	return p.lex.Text(tok), true
}

func (p *parser) parsePlainInstrUnfolded() {
	p.b.StartNode(syntaxkind.PLAIN_INSTR)
	tok, name, _ := p.expect(syntaxkind.INSTR_NAME, "instruction")
	_ = tok
	meta, _ := instrset.Lookup(name)
	p.parseImmediates(meta.Shape)
	p.b.FinishNode()
}

func (p *parser) parsePlainInstrFolded() {
	p.b.StartNode(syntaxkind.PLAIN_INSTR)
	p.openParen()
	_, name, _ := p.expect(syntaxkind.INSTR_NAME, "instruction")
	meta, _ := instrset.Lookup(name)
	p.parseImmediates(meta.Shape)
	for p.peekParen() {
		p.parseFoldedOperand()
	}
	p.closeParen()
	p.b.FinishNode()
}

// parseImmediates consumes the fixed-shape immediates that follow an
// instruction mnemonic, whether the instruction appears folded or not —
// immediates are never themselves folded operand expressions except
// TYPE_USE and the ref-type immediates, both of which are unambiguous
// because their parenthesized form starts with a keyword ("type" or
// "ref") that is never itself an instruction mnemonic.
func (p *parser) parseImmediates(shape instrset.Shape) {
	switch shape {
	case instrset.ShapeNone:
	case instrset.ShapeLocalIdx, instrset.ShapeGlobalIdx, instrset.ShapeFuncIdx,
		instrset.ShapeFuncRefIdx, instrset.ShapeLabelIdx, instrset.ShapeDataIdx,
		instrset.ShapeElemIdx:
		p.parseIndex()
	case instrset.ShapeTypeUse:
		p.parseTypeUse()
		if p.peekFieldKeyword("table") {
			p.parseTableUse()
		}
	case instrset.ShapeBrTable:
		p.parseIndex()
		for p.peekIndexStart() {
			p.parseIndex()
		}
	case instrset.ShapeMemArg:
		p.parseMemArg()
	case instrset.ShapeIntConst:
		p.expect(syntaxkind.INT, "integer literal")
	case instrset.ShapeFloatConst:
		p.expect(syntaxkind.FLOAT, "float literal")
	case instrset.ShapeHeapType:
		p.parseHeapType()
	case instrset.ShapeRefType:
		p.parseRefType()
	case instrset.ShapeStructField:
		p.parseIndex()
		p.parseIndex()
	case instrset.ShapeArrayType:
		p.parseIndex()
	case instrset.ShapeArrayCopy:
		p.parseIndex()
		p.parseIndex()
	case instrset.ShapeMemoryIdx, instrset.ShapeTableIdx:
		if p.peekIndexStart() {
			p.parseIndex()
		}
	case instrset.ShapeMemoryCopy, instrset.ShapeTableCopy:
		if p.peekIndexStart() {
			p.parseIndex()
		}
		if p.peekIndexStart() {
			p.parseIndex()
		}
	case instrset.ShapeSelect:
		for p.peekFieldKeyword("result") {
			p.parseResult()
		}
	case instrset.ShapeCastLabel:
		p.parseIndex()
		p.parseRefType()
		p.parseRefType()
	case instrset.ShapeBrOnNonNull:
		p.parseIndex()
	}
}

func (p *parser) parseMemArg() {
	p.b.StartNode(syntaxkind.MEM_ARG)
	for {
		cp := p.lex.Checkpoint()
		p.bumpTrivia()
		tok, ok := p.lex.Eat(syntaxkind.MEM_ARG_KEYWORD)
		if !ok {
			p.lex.Reset(cp)
			break
		}
		p.emit(tok)
		p.expect(syntaxkind.EQ, "'='")
		p.expect(syntaxkind.UNSIGNED_INT, "memory argument value")
	}
	p.b.FinishNode()
}

func (p *parser) parseTableUse() {
	p.b.StartNode(syntaxkind.TABLE_USE)
	p.openParen()
	p.eatKeyword("table")
	p.parseIndex()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseMemUse() {
	p.b.StartNode(syntaxkind.MEM_USE)
	p.openParen()
	p.eatKeyword("memory")
	p.parseIndex()
	p.closeParen()
	p.b.FinishNode()
}

// parseBlockType parses the optional "(type $idx)" clause plus inline
// param/result declarations shared by block, loop, if, and try_table.
func (p *parser) parseBlockType() {
	if p.peekTypeUseStart() {
		p.parseTypeUse()
	}
	for p.peekFieldKeyword("param") {
		p.parseParam()
	}
	for p.peekFieldKeyword("result") {
		p.parseResult()
	}
}

func (p *parser) parseOptionalLabel() {
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
}

// parseUnfoldedBlock parses "kw label? blocktype instr* end id?" for
// block/loop, and the "if"/"try_table" variants below.
func (p *parser) parseUnfoldedBlock(kw string) {
	switch kw {
	case "block":
		p.b.StartNode(syntaxkind.BLOCK_BLOCK)
		p.eatKeyword("block")
		p.parseOptionalLabel()
		p.parseBlockType()
		p.parseInstrSeq(p.atEndKeyword)
		p.expectKeyword("end")
		p.parseOptionalLabel()
		p.b.FinishNode()
	case "loop":
		p.b.StartNode(syntaxkind.BLOCK_LOOP)
		p.eatKeyword("loop")
		p.parseOptionalLabel()
		p.parseBlockType()
		p.parseInstrSeq(p.atEndKeyword)
		p.expectKeyword("end")
		p.parseOptionalLabel()
		p.b.FinishNode()
	case "if":
		p.parseUnfoldedIf()
	case "try_table":
		p.b.StartNode(syntaxkind.BLOCK_TRY_TABLE)
		p.eatKeyword("try_table")
		p.parseOptionalLabel()
		p.parseBlockType()
		p.parseCatchClauses()
		p.parseInstrSeq(p.atEndKeyword)
		p.expectKeyword("end")
		p.parseOptionalLabel()
		p.b.FinishNode()
	}
}

func (p *parser) atEndKeyword() bool {
	kw, ok := p.peekBareKeyword()
	return ok && (kw == "end" || kw == "else")
}

func (p *parser) atEnd() bool {
	kw, ok := p.peekBareKeyword()
	return ok && kw == "end"
}

func (p *parser) expectKeyword(literal string) {
	p.bumpTrivia()
	if !p.eatKeyword(literal) {
		p.expect(syntaxkind.KEYWORD, "'"+literal+"'")
	}
}

// parseUnfoldedIf produces the same BLOCK_IF_THEN/BLOCK_IF_ELSE shape
// the folded form uses, synthesizing zero-token wrapper nodes around the
// then-branch (no explicit "then" keyword in the unfolded grammar) so
// both forms expose identical children to the AST layer.
func (p *parser) parseUnfoldedIf() {
	p.b.StartNode(syntaxkind.BLOCK_IF)
	p.eatKeyword("if")
	p.parseOptionalLabel()
	p.parseBlockType()

	p.b.StartNode(syntaxkind.BLOCK_IF_THEN)
	p.parseInstrSeq(p.atEndKeyword)
	p.b.FinishNode()

	if kw, ok := p.peekBareKeyword(); ok && kw == "else" {
		p.b.StartNode(syntaxkind.BLOCK_IF_ELSE)
		p.eatKeyword("else")
		p.parseInstrSeq(p.atEnd)
		p.b.FinishNode()
	}
	p.expectKeyword("end")
	p.parseOptionalLabel()
	p.b.FinishNode()
}

// parseFoldedBlock parses "(kw label? blocktype ...)" folded forms. For
// "if" this additionally parses condition operand expressions before the
// required explicit "(then ...)" clause.
func (p *parser) parseFoldedBlock(kw string) {
	switch kw {
	case "block":
		p.b.StartNode(syntaxkind.BLOCK_BLOCK)
		p.openParen()
		p.eatKeyword("block")
		p.parseOptionalLabel()
		p.parseBlockType()
		p.parseFoldedBody()
		p.closeParen()
		p.b.FinishNode()
	case "loop":
		p.b.StartNode(syntaxkind.BLOCK_LOOP)
		p.openParen()
		p.eatKeyword("loop")
		p.parseOptionalLabel()
		p.parseBlockType()
		p.parseFoldedBody()
		p.closeParen()
		p.b.FinishNode()
	case "if":
		p.b.StartNode(syntaxkind.BLOCK_IF)
		p.openParen()
		p.eatKeyword("if")
		p.parseOptionalLabel()
		p.parseBlockType()
		for p.peekParen() && !p.peekParenKeywordIsThenOrElse() {
			p.parseFoldedOperand()
		}
		p.b.StartNode(syntaxkind.BLOCK_IF_THEN)
		p.openParen()
		p.eatKeyword("then")
		p.parseInstrSeq(p.atCloseParen)
		p.closeParen()
		p.b.FinishNode()
		if kw, ok := p.peekParenKeyword(); ok && kw == "else" {
			p.b.StartNode(syntaxkind.BLOCK_IF_ELSE)
			p.openParen()
			p.eatKeyword("else")
			p.parseInstrSeq(p.atCloseParen)
			p.closeParen()
			p.b.FinishNode()
		}
		p.closeParen()
		p.b.FinishNode()
	case "try_table":
		p.b.StartNode(syntaxkind.BLOCK_TRY_TABLE)
		p.openParen()
		p.eatKeyword("try_table")
		p.parseOptionalLabel()
		p.parseBlockType()
		p.parseCatchClauses()
		p.parseFoldedBody()
		p.closeParen()
		p.b.FinishNode()
	}
}

func (p *parser) peekParenKeywordIsThenOrElse() bool {
	kw, ok := p.peekParenKeyword()
	return ok && (kw == "then" || kw == "else")
}

// parseFoldedBody parses the instruction sequence inside a folded
// block/loop/try_table, stopping at the form's own closing ')'.
func (p *parser) parseFoldedBody() {
	p.parseInstrSeq(p.atCloseParen)
}

func (p *parser) atCloseParen() bool {
	_, ok := p.lex.Peek(syntaxkind.R_PAREN)
	return ok
}

func (p *parser) parseCatchClauses() {
	for {
		kw, ok := p.peekParenKeyword()
		if !ok {
			return
		}
		switch kw {
		case "catch", "catch_ref":
			p.b.StartNode(syntaxkind.ON_CLAUSE)
			p.b.StartNode(syntaxkind.CATCH)
			p.openParen()
			p.eatKeyword(kw)
			p.parseIndex()
			p.parseIndex()
			p.closeParen()
			p.b.FinishNode()
			p.b.FinishNode()
		case "catch_all", "catch_all_ref":
			p.b.StartNode(syntaxkind.ON_CLAUSE)
			p.b.StartNode(syntaxkind.CATCH_ALL)
			p.openParen()
			p.eatKeyword(kw)
			p.parseIndex()
			p.closeParen()
			p.b.FinishNode()
			p.b.FinishNode()
		default:
			return
		}
	}
}
