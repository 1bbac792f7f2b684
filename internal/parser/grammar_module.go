package parser

import "github.com/watlang/watls/internal/syntaxkind"

func (p *parser) parseModule() {
	p.b.StartNode(syntaxkind.MODULE)
	p.openParen()
	p.eatKeyword("module")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.b.StartNode(syntaxkind.MODULE_NAME)
		p.eat(syntaxkind.IDENT)
		p.b.FinishNode()
	}
	for {
		p.bumpTrivia()
		if p.lex.AtEOF() {
			break
		}
		if _, ok := p.lex.Peek(syntaxkind.R_PAREN); ok {
			break
		}
		if !p.peekParen() {
			if !p.bump() {
				break
			}
			continue
		}
		p.parseModuleField()
	}
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseModuleField() {
	kw, ok := p.peekParenKeyword()
	if !ok {
		p.recoverUntilCloseParen()
		return
	}
	switch kw {
	case "type", "rec":
		p.parseModuleFieldType()
	case "func":
		p.parseModuleFieldFunc()
	case "import":
		p.parseModuleFieldImport()
	case "export":
		p.parseModuleFieldExport()
	case "global":
		p.parseModuleFieldGlobal()
	case "memory":
		p.parseModuleFieldMemory()
	case "table":
		p.parseModuleFieldTable()
	case "start":
		p.parseModuleFieldStart()
	case "elem":
		p.parseModuleFieldElem()
	case "data":
		p.parseModuleFieldData()
	case "tag":
		p.parseModuleFieldTag()
	default:
		p.recoverUntilCloseParen()
		p.bump()
	}
}

func (p *parser) parseModuleFieldFunc() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_FUNC)
	p.openParen()
	p.eatKeyword("func")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
	for p.peekFieldKeyword("export") {
		p.parseExport()
	}
	if p.peekTypeUseStart() {
		p.parseTypeUse()
	}
	for p.peekFieldKeyword("param") {
		p.parseParam()
	}
	for p.peekFieldKeyword("result") {
		p.parseResult()
	}
	for p.peekFieldKeyword("local") {
		p.parseLocal()
	}
	p.parseInstrSeq(p.atCloseParen)
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseExport() {
	p.b.StartNode(syntaxkind.EXPORT)
	p.openParen()
	p.eatKeyword("export")
	p.parseName()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseName() {
	p.b.StartNode(syntaxkind.NAME)
	p.expect(syntaxkind.STRING, "name string")
	p.b.FinishNode()
}

func (p *parser) parseModuleFieldGlobal() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_GLOBAL)
	p.openParen()
	p.eatKeyword("global")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
	for p.peekFieldKeyword("export") {
		p.parseExport()
	}
	p.parseGlobalType()
	p.parseInstrSeq(p.atCloseParen)
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseModuleFieldMemory() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_MEMORY)
	p.openParen()
	p.eatKeyword("memory")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
	for p.peekFieldKeyword("export") {
		p.parseExport()
	}
	p.parseMemType()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseModuleFieldTable() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_TABLE)
	p.openParen()
	p.eatKeyword("table")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
	for p.peekFieldKeyword("export") {
		p.parseExport()
	}
	p.parseTableType()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseModuleFieldStart() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_START)
	p.openParen()
	p.eatKeyword("start")
	p.parseIndex()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseModuleFieldTag() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_TAG)
	p.openParen()
	p.eatKeyword("tag")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
	for p.peekFieldKeyword("export") {
		p.parseExport()
	}
	if p.peekTypeUseStart() {
		p.parseTypeUse()
	}
	for p.peekFieldKeyword("param") {
		p.parseParam()
	}
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseModuleFieldImport() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_IMPORT)
	p.openParen()
	p.eatKeyword("import")
	p.parseName()
	p.parseName()
	p.parseExternType()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseExternType() {
	kw, ok := p.peekParenKeyword()
	if !ok {
		p.recoverUntilCloseParen()
		return
	}
	switch kw {
	case "func":
		p.b.StartNode(syntaxkind.EXTERN_TYPE_FUNC)
		p.openParen()
		p.eatKeyword("func")
		p.bumpTrivia()
		if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
			p.eat(syntaxkind.IDENT)
		}
		if p.peekTypeUseStart() {
			p.parseTypeUse()
		}
		for p.peekFieldKeyword("param") {
			p.parseParam()
		}
		for p.peekFieldKeyword("result") {
			p.parseResult()
		}
		p.closeParen()
		p.b.FinishNode()
	case "table":
		p.b.StartNode(syntaxkind.EXTERN_TYPE_TABLE)
		p.openParen()
		p.eatKeyword("table")
		p.bumpTrivia()
		if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
			p.eat(syntaxkind.IDENT)
		}
		p.parseTableType()
		p.closeParen()
		p.b.FinishNode()
	case "memory":
		p.b.StartNode(syntaxkind.EXTERN_TYPE_MEMORY)
		p.openParen()
		p.eatKeyword("memory")
		p.bumpTrivia()
		if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
			p.eat(syntaxkind.IDENT)
		}
		p.parseMemType()
		p.closeParen()
		p.b.FinishNode()
	case "global":
		p.b.StartNode(syntaxkind.EXTERN_TYPE_GLOBAL)
		p.openParen()
		p.eatKeyword("global")
		p.bumpTrivia()
		if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
			p.eat(syntaxkind.IDENT)
		}
		p.parseGlobalType()
		p.closeParen()
		p.b.FinishNode()
	case "tag":
		p.b.StartNode(syntaxkind.EXTERN_TYPE_TAG)
		p.openParen()
		p.eatKeyword("tag")
		p.bumpTrivia()
		if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
			p.eat(syntaxkind.IDENT)
		}
		if p.peekTypeUseStart() {
			p.parseTypeUse()
		}
		for p.peekFieldKeyword("param") {
			p.parseParam()
		}
		p.closeParen()
		p.b.FinishNode()
	default:
		p.recoverUntilCloseParen()
	}
}

func (p *parser) parseModuleFieldExport() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_EXPORT)
	p.openParen()
	p.eatKeyword("export")
	p.parseName()
	p.parseExternIdx()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseExternIdx() {
	kw, ok := p.peekParenKeyword()
	if !ok {
		p.recoverUntilCloseParen()
		return
	}
	var kind = map[string]syntaxkind.Kind{
		"func": syntaxkind.EXTERN_IDX_FUNC, "table": syntaxkind.EXTERN_IDX_TABLE,
		"memory": syntaxkind.EXTERN_IDX_MEMORY, "global": syntaxkind.EXTERN_IDX_GLOBAL,
		"tag": syntaxkind.EXTERN_IDX_TAG,
	}[kw]
	if kind == syntaxkind.BAD_KIND {
		p.recoverUntilCloseParen()
		return
	}
	p.b.StartNode(kind)
	p.openParen()
	p.eatKeyword(kw)
	p.parseIndex()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseModuleFieldElem() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_ELEM)
	p.openParen()
	p.eatKeyword("elem")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
	if p.peekFieldKeyword("table") {
		p.parseTableUse()
	}
	if p.peekFieldKeyword("offset") || p.peekParenInstrStart() {
		p.parseOffset()
	}
	if p.peekBareKeywordIs("declare") {
		p.eatKeyword("declare")
	}
	if p.peekBareKeywordIs("func") {
		p.eatKeyword("func")
	}
	p.b.StartNode(syntaxkind.ELEM_LIST)
	if p.peekValTypeStart() {
		p.parseRefType()
	}
	for p.peekIndexStart() || p.peekParenKeywordIs("item") || p.peekParen() {
		if p.peekParen() {
			p.parseElemExpr()
		} else {
			p.parseIndex()
		}
	}
	p.b.FinishNode()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) peekBareKeywordIs(kw string) bool {
	got, ok := p.peekBareKeyword()
	return ok && got == kw
}

func (p *parser) peekParenKeywordIs(kw string) bool {
	got, ok := p.peekParenKeyword()
	return ok && got == kw
}

func (p *parser) peekParenInstrStart() bool {
	_, ok := p.peekParenKeyword()
	return ok && !p.peekParenKeywordIs("table") && !p.peekParenKeywordIs("item")
}

func (p *parser) parseElemExpr() {
	p.b.StartNode(syntaxkind.ELEM_EXPR)
	p.openParen()
	if p.peekBareKeywordIs("item") {
		p.eatKeyword("item")
	}
	p.parseInstrSeq(p.atCloseParen)
	p.closeParen()
	p.b.FinishNode()
}

// parseOffset wraps "(offset instr*)" or, in its implicit shorthand
// form, a single folded instruction with no "offset" wrapper at all —
// represented the same zero-token-wrapper way as an implicit SUB_TYPE.
func (p *parser) parseOffset() {
	p.b.StartNode(syntaxkind.OFFSET)
	if p.peekFieldKeyword("offset") {
		p.openParen()
		p.eatKeyword("offset")
		p.parseInstrSeq(p.atCloseParen)
		p.closeParen()
	} else {
		p.parseFoldedOperand()
	}
	p.b.FinishNode()
}

func (p *parser) parseModuleFieldData() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_DATA)
	p.openParen()
	p.eatKeyword("data")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
	if p.peekFieldKeyword("memory") {
		p.parseMemUse()
	}
	if p.peekFieldKeyword("offset") || p.peekParenInstrStart() {
		p.parseOffset()
	}
	for {
		p.bumpTrivia()
		if _, ok := p.lex.Peek(syntaxkind.STRING); !ok {
			break
		}
		p.eat(syntaxkind.STRING)
	}
	p.closeParen()
	p.b.FinishNode()
}
