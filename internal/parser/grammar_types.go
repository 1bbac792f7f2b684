package parser

import "github.com/watlang/watls/internal/syntaxkind"

// parseIndex wraps a single numeric or symbolic index reference.
func (p *parser) parseIndex() {
	p.b.StartNode(syntaxkind.INDEX)
	p.bumpTrivia()
	if _, ok := p.eat(syntaxkind.IDENT); !ok {
		p.expect(syntaxkind.UNSIGNED_INT, "index")
	}
	p.b.FinishNode()
}

func (p *parser) peekIndexStart() bool {
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		return true
	}
	_, ok := p.lex.Peek(syntaxkind.UNSIGNED_INT)
	return ok
}

var numTypeNames = map[string]bool{"i32": true, "i64": true, "f32": true, "f64": true}
var vecTypeNames = map[string]bool{"v128": true}
var packedTypeNames = map[string]bool{"i8": true, "i16": true}
var refShorthandNames = map[string]bool{
	"funcref": true, "externref": true, "anyref": true, "eqref": true,
	"i31ref": true, "structref": true, "arrayref": true, "nullref": true,
	"nullfuncref": true, "nullexternref": true, "exnref": true, "nullexnref": true,
}
var heapTypeNames = map[string]bool{
	"any": true, "eq": true, "i31": true, "struct": true, "array": true, "none": true,
	"func": true, "nofunc": true, "extern": true, "noextern": true, "exn": true, "noexn": true,
}

func (p *parser) peekTypeKeyword(names map[string]bool) bool {
	cp := p.lex.Checkpoint()
	defer p.lex.Reset(cp)
	p.consumeTriviaSpeculative()
	tok, ok := p.lex.Next(syntaxkind.TYPE_KEYWORD)
	if !ok {
		return false
	}
	return names[p.lex.Text(tok)]
}

// parseValType parses one value type: a numeric, vector, or reference
// type keyword/clause.
func (p *parser) parseValType() {
	switch {
	case p.peekTypeKeyword(numTypeNames):
		p.b.StartNode(syntaxkind.NUM_TYPE)
		p.expect(syntaxkind.TYPE_KEYWORD, "value type")
		p.b.FinishNode()
	case p.peekTypeKeyword(vecTypeNames):
		p.b.StartNode(syntaxkind.VEC_TYPE)
		p.expect(syntaxkind.TYPE_KEYWORD, "value type")
		p.b.FinishNode()
	default:
		p.parseRefType()
	}
}

// parseStorageType is parseValType plus the packed i8/i16 field types,
// usable only inside struct/array field declarations.
func (p *parser) parseStorageType() {
	if p.peekTypeKeyword(packedTypeNames) {
		p.b.StartNode(syntaxkind.PACKED_TYPE)
		p.expect(syntaxkind.TYPE_KEYWORD, "packed type")
		p.b.FinishNode()
		return
	}
	p.parseValType()
}

func (p *parser) parseRefType() {
	p.b.StartNode(syntaxkind.REF_TYPE)
	if p.peekTypeKeyword(refShorthandNames) {
		p.expect(syntaxkind.TYPE_KEYWORD, "reference type")
		p.b.FinishNode()
		return
	}
	if p.openParen() {
		p.eatKeyword("ref")
		p.eatKeyword("null")
		p.parseHeapType()
	}
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseHeapType() {
	p.b.StartNode(syntaxkind.HEAP_TYPE)
	switch {
	case p.peekTypeKeyword(heapTypeNames):
		p.expect(syntaxkind.TYPE_KEYWORD, "heap type")
	case p.peekIndexStart():
		p.parseIndex()
	default:
		p.expect(syntaxkind.TYPE_KEYWORD, "heap type")
	}
	p.b.FinishNode()
}

// parseLimits parses "min max? shared?" as used by table and memory
// types.
func (p *parser) parseLimits() {
	p.b.StartNode(syntaxkind.LIMITS)
	p.expect(syntaxkind.UNSIGNED_INT, "limits minimum")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.UNSIGNED_INT); ok {
		p.eat(syntaxkind.UNSIGNED_INT)
	}
	if p.eatKeyword("shared") {
		// consumed as KEYWORD above via eatKeyword's own emission
	}
	p.b.FinishNode()
}

// parseTableType wraps "limits reftype" with no parens of its own; the
// caller (table module field or externtype) supplies the surrounding
// "(table ...)" parens.
func (p *parser) parseTableType() {
	p.b.StartNode(syntaxkind.TABLE_TYPE)
	p.parseLimits()
	p.parseRefType()
	p.b.FinishNode()
}

// parseMemType wraps an optional pagesize clause plus limits.
func (p *parser) parseMemType() {
	p.b.StartNode(syntaxkind.MEM_TYPE)
	if p.peekFieldKeyword("pagesize") {
		p.openParen()
		p.eatKeyword("pagesize")
		p.expect(syntaxkind.UNSIGNED_INT, "page size")
		p.closeParen()
	}
	p.parseLimits()
	p.b.FinishNode()
}

// parseGlobalType wraps either a bare value type (immutable) or
// "(mut valtype)".
func (p *parser) parseGlobalType() {
	p.b.StartNode(syntaxkind.GLOBAL_TYPE)
	if p.peekFieldKeyword("mut") {
		p.openParen()
		p.eatKeyword("mut")
		p.parseValType()
		p.closeParen()
	} else {
		p.parseValType()
	}
	p.b.FinishNode()
}

// parseFieldType parses a struct/array field's storage type, optionally
// wrapped in "(mut ...)". withKeyword additionally consumes a leading
// "(field $id? ...)" wrapper, used by struct types; array types call
// this with withKeyword=false since array element fields have no name
// or "field" keyword of their own.
func (p *parser) parseFieldType(withKeyword bool) {
	p.b.StartNode(syntaxkind.FIELD_TYPE)
	if withKeyword {
		p.openParen()
		p.eatKeyword("field")
		p.bumpTrivia()
		if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
			p.eat(syntaxkind.IDENT)
		}
	}
	if p.peekFieldKeyword("mut") {
		p.openParen()
		p.eatKeyword("mut")
		p.parseStorageType()
		p.closeParen()
	} else {
		p.parseStorageType()
	}
	if withKeyword {
		p.closeParen()
	}
	p.b.FinishNode()
}

func (p *parser) parseParam() {
	p.b.StartNode(syntaxkind.PARAM)
	p.openParen()
	p.eatKeyword("param")
	p.bumpTrivia()
	hasIdent := false
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
		hasIdent = true
	}
	p.parseValType()
	if !hasIdent {
		for p.peekValTypeStart() {
			p.parseValType()
		}
	}
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseResult() {
	p.b.StartNode(syntaxkind.RESULT)
	p.openParen()
	p.eatKeyword("result")
	for p.peekValTypeStart() {
		p.parseValType()
	}
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseLocal() {
	p.b.StartNode(syntaxkind.LOCAL)
	p.openParen()
	p.eatKeyword("local")
	p.bumpTrivia()
	hasIdent := false
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
		hasIdent = true
	}
	p.parseValType()
	if !hasIdent {
		for p.peekValTypeStart() {
			p.parseValType()
		}
	}
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) peekValTypeStart() bool {
	return p.peekTypeKeyword(numTypeNames) || p.peekTypeKeyword(vecTypeNames) ||
		p.peekTypeKeyword(refShorthandNames) || p.peekFieldKeyword("ref")
}

// parseTypeUse parses the optional "(type $idx)" clause used by call
// sites (call_indirect, func headers) to reference a declared func type.
func (p *parser) parseTypeUse() {
	p.b.StartNode(syntaxkind.TYPE_USE)
	p.openParen()
	p.eatKeyword("type")
	p.parseIndex()
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) peekTypeUseStart() bool { return p.peekFieldKeyword("type") }

// parseFuncType parses "(func param* result*)"; the caller has already
// opened the enclosing parens when this is reached via a type def's
// implicit sub type.
func (p *parser) parseFuncType() {
	p.b.StartNode(syntaxkind.FUNC_TYPE)
	p.openParen()
	p.eatKeyword("func")
	for p.peekFieldKeyword("param") {
		p.parseParam()
	}
	for p.peekFieldKeyword("result") {
		p.parseResult()
	}
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseStructType() {
	p.b.StartNode(syntaxkind.STRUCT_TYPE)
	p.openParen()
	p.eatKeyword("struct")
	for p.peekFieldKeyword("field") {
		p.parseFieldType(true)
	}
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseArrayType() {
	p.b.StartNode(syntaxkind.ARRAY_TYPE)
	p.openParen()
	p.eatKeyword("array")
	p.parseFieldType(false)
	p.closeParen()
	p.b.FinishNode()
}

func (p *parser) parseCompType() {
	switch {
	case p.peekFieldKeyword("struct"):
		p.parseStructType()
	case p.peekFieldKeyword("array"):
		p.parseArrayType()
	default:
		p.parseFuncType()
	}
}

// parseSubType always produces a SUB_TYPE node: with explicit "(sub
// final? idx* comptype)" syntax when present in the source, or wrapping
// a bare comptype (no tokens of its own) when the type def omits "sub"
// entirely, per the spec's uniform accessor over both forms.
func (p *parser) parseSubType() {
	p.b.StartNode(syntaxkind.SUB_TYPE)
	if p.peekFieldKeyword("sub") {
		p.openParen()
		p.eatKeyword("sub")
		if p.peekKeywordFinal() {
			p.eatKeyword("final")
		}
		for p.peekIndexStart() {
			p.parseIndex()
		}
		p.parseCompType()
		p.closeParen()
	} else {
		p.parseCompType()
	}
	p.b.FinishNode()
}

func (p *parser) peekKeywordFinal() bool {
	cp := p.lex.Checkpoint()
	defer p.lex.Reset(cp)
	p.consumeTriviaSpeculative()
	_, ok := p.lex.Keyword("final")
	return ok
}

// parseTypeDef parses "(type $id? subtype)" including the implicit
// single-member recursive group case; an explicit "(rec ...)" group is
// handled one level up by parseModuleField, which emits REC_TYPE
// wrapping multiple TYPE_DEFs instead of calling this directly.
func (p *parser) parseTypeDef() {
	p.b.StartNode(syntaxkind.TYPE_DEF)
	p.openParen()
	p.eatKeyword("type")
	p.bumpTrivia()
	if _, ok := p.lex.Peek(syntaxkind.IDENT); ok {
		p.eat(syntaxkind.IDENT)
	}
	p.parseSubType()
	p.closeParen()
	p.b.FinishNode()
}

// parseRecType parses an explicit "(rec (type ...)*)" group.
func (p *parser) parseRecType() {
	p.b.StartNode(syntaxkind.REC_TYPE)
	p.openParen()
	p.eatKeyword("rec")
	for p.peekFieldKeyword("type") {
		p.parseTypeDef()
	}
	p.closeParen()
	p.b.FinishNode()
}

// parseModuleFieldType wraps either a standalone TYPE_DEF (an implicit
// singleton recursive group) or an explicit REC_TYPE group as the
// module's "(type ...)"/"(rec ...)" field. The wrapper node has no
// tokens of its own, the same zero-overhead trick SUB_TYPE uses for its
// implicit form.
func (p *parser) parseModuleFieldType() {
	p.b.StartNode(syntaxkind.MODULE_FIELD_TYPE)
	if p.peekFieldKeyword("rec") {
		p.parseRecType()
	} else {
		p.parseTypeDef()
	}
	p.b.FinishNode()
}
