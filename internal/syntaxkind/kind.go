// Package syntaxkind defines the closed enumeration of node and token kinds
// shared by the green tree, red tree, lexer, and parser.
package syntaxkind

// Kind identifies the syntactic category of a green node or token. It is a
// small value type so it can be packed tightly into green tree children and
// compared cheaply during subtyping and pointer resolution.
type Kind uint8

const (
	// BAD_KIND is the zero value and never produced by the lexer or parser;
	// its presence in a tree indicates a construction bug.
	BAD_KIND Kind = iota

	// ROOT is the single top-level node wrapping zero or more modules and
	// interleaved trivia.
	ROOT

	// Module-level structure.
	MODULE
	MODULE_FIELD_FUNC
	MODULE_FIELD_TYPE
	MODULE_FIELD_IMPORT
	MODULE_FIELD_EXPORT
	MODULE_FIELD_GLOBAL
	MODULE_FIELD_MEMORY
	MODULE_FIELD_TABLE
	MODULE_FIELD_START
	MODULE_FIELD_ELEM
	MODULE_FIELD_DATA
	MODULE_FIELD_TAG

	// Types.
	TYPE_DEF
	REC_TYPE
	FUNC_TYPE
	STRUCT_TYPE
	ARRAY_TYPE
	FIELD_TYPE
	SUB_TYPE
	PARAM
	RESULT
	LOCAL
	GLOBAL_TYPE
	TABLE_TYPE
	MEM_TYPE
	REF_TYPE
	HEAP_TYPE
	NUM_TYPE
	VEC_TYPE
	PACKED_TYPE
	LIMITS
	ADDR_TYPE

	// Instructions and blocks.
	PLAIN_INSTR
	BLOCK_BLOCK
	BLOCK_LOOP
	BLOCK_IF
	BLOCK_IF_THEN
	BLOCK_IF_ELSE
	BLOCK_TRY_TABLE
	CATCH
	CATCH_ALL

	// Immediates.
	IMMEDIATE
	MEM_ARG
	TYPE_USE
	INDEX

	// Elements, data and uses.
	ELEM
	ELEM_LIST
	ELEM_EXPR
	DATA
	OFFSET
	TABLE_USE
	MEM_USE
	MEM_PAGE_SIZE

	// Import/export extern descriptions.
	EXTERN_TYPE_FUNC
	EXTERN_TYPE_TABLE
	EXTERN_TYPE_MEMORY
	EXTERN_TYPE_GLOBAL
	EXTERN_TYPE_TAG
	EXTERN_IDX_FUNC
	EXTERN_IDX_TABLE
	EXTERN_IDX_MEMORY
	EXTERN_IDX_GLOBAL
	EXTERN_IDX_TAG
	IMPORT
	EXPORT

	NAME
	MODULE_NAME
	ON_CLAUSE

	firstToken
	// Tokens.
	L_PAREN
	R_PAREN
	KEYWORD
	INSTR_NAME
	TYPE_KEYWORD
	MODIFIER_KEYWORD
	MEM_ARG_KEYWORD
	IDENT
	STRING
	INT
	UNSIGNED_INT
	FLOAT
	SHAPE_DESCRIPTOR
	EQ
	WHITESPACE
	LINE_COMMENT
	BLOCK_COMMENT
	ANNOT_START
	ANNOT_END
	ERROR
	lastToken
)

// IsToken reports whether k identifies a leaf token rather than a structural
// node.
func (k Kind) IsToken() bool {
	return k > firstToken && k < lastToken
}

// IsTrivia reports whether a token of this kind is syntactically inert:
// whitespace, comments, or annotation brackets.
func (k Kind) IsTrivia() bool {
	switch k {
	case WHITESPACE, LINE_COMMENT, BLOCK_COMMENT, ANNOT_START, ANNOT_END:
		return true
	default:
		return false
	}
}

var names = map[Kind]string{
	BAD_KIND:            "BAD_KIND",
	ROOT:                "ROOT",
	MODULE:              "MODULE",
	MODULE_FIELD_FUNC:   "MODULE_FIELD_FUNC",
	MODULE_FIELD_TYPE:   "MODULE_FIELD_TYPE",
	MODULE_FIELD_IMPORT: "MODULE_FIELD_IMPORT",
	MODULE_FIELD_EXPORT: "MODULE_FIELD_EXPORT",
	MODULE_FIELD_GLOBAL: "MODULE_FIELD_GLOBAL",
	MODULE_FIELD_MEMORY: "MODULE_FIELD_MEMORY",
	MODULE_FIELD_TABLE:  "MODULE_FIELD_TABLE",
	MODULE_FIELD_START:  "MODULE_FIELD_START",
	MODULE_FIELD_ELEM:   "MODULE_FIELD_ELEM",
	MODULE_FIELD_DATA:   "MODULE_FIELD_DATA",
	MODULE_FIELD_TAG:    "MODULE_FIELD_TAG",
	TYPE_DEF:            "TYPE_DEF",
	REC_TYPE:            "REC_TYPE",
	FUNC_TYPE:           "FUNC_TYPE",
	STRUCT_TYPE:         "STRUCT_TYPE",
	ARRAY_TYPE:          "ARRAY_TYPE",
	FIELD_TYPE:          "FIELD_TYPE",
	SUB_TYPE:            "SUB_TYPE",
	PARAM:               "PARAM",
	RESULT:              "RESULT",
	LOCAL:               "LOCAL",
	GLOBAL_TYPE:         "GLOBAL_TYPE",
	TABLE_TYPE:          "TABLE_TYPE",
	MEM_TYPE:            "MEM_TYPE",
	REF_TYPE:            "REF_TYPE",
	HEAP_TYPE:           "HEAP_TYPE",
	NUM_TYPE:            "NUM_TYPE",
	VEC_TYPE:            "VEC_TYPE",
	PACKED_TYPE:         "PACKED_TYPE",
	LIMITS:              "LIMITS",
	ADDR_TYPE:           "ADDR_TYPE",
	PLAIN_INSTR:         "PLAIN_INSTR",
	BLOCK_BLOCK:         "BLOCK_BLOCK",
	BLOCK_LOOP:          "BLOCK_LOOP",
	BLOCK_IF:            "BLOCK_IF",
	BLOCK_IF_THEN:       "BLOCK_IF_THEN",
	BLOCK_IF_ELSE:       "BLOCK_IF_ELSE",
	BLOCK_TRY_TABLE:     "BLOCK_TRY_TABLE",
	CATCH:               "CATCH",
	CATCH_ALL:           "CATCH_ALL",
	IMMEDIATE:           "IMMEDIATE",
	MEM_ARG:             "MEM_ARG",
	TYPE_USE:            "TYPE_USE",
	INDEX:               "INDEX",
	ELEM:                "ELEM",
	ELEM_LIST:           "ELEM_LIST",
	ELEM_EXPR:           "ELEM_EXPR",
	DATA:                "DATA",
	OFFSET:              "OFFSET",
	TABLE_USE:           "TABLE_USE",
	MEM_USE:             "MEM_USE",
	MEM_PAGE_SIZE:       "MEM_PAGE_SIZE",
	EXTERN_TYPE_FUNC:    "EXTERN_TYPE_FUNC",
	EXTERN_TYPE_TABLE:   "EXTERN_TYPE_TABLE",
	EXTERN_TYPE_MEMORY:  "EXTERN_TYPE_MEMORY",
	EXTERN_TYPE_GLOBAL:  "EXTERN_TYPE_GLOBAL",
	EXTERN_TYPE_TAG:     "EXTERN_TYPE_TAG",
	EXTERN_IDX_FUNC:     "EXTERN_IDX_FUNC",
	EXTERN_IDX_TABLE:    "EXTERN_IDX_TABLE",
	EXTERN_IDX_MEMORY:   "EXTERN_IDX_MEMORY",
	EXTERN_IDX_GLOBAL:   "EXTERN_IDX_GLOBAL",
	EXTERN_IDX_TAG:      "EXTERN_IDX_TAG",
	IMPORT:              "IMPORT",
	EXPORT:              "EXPORT",
	NAME:                "NAME",
	MODULE_NAME:         "MODULE_NAME",
	ON_CLAUSE:           "ON_CLAUSE",
	L_PAREN:             "L_PAREN",
	R_PAREN:             "R_PAREN",
	KEYWORD:             "KEYWORD",
	INSTR_NAME:          "INSTR_NAME",
	TYPE_KEYWORD:        "TYPE_KEYWORD",
	MODIFIER_KEYWORD:    "MODIFIER_KEYWORD",
	MEM_ARG_KEYWORD:     "MEM_ARG_KEYWORD",
	IDENT:               "IDENT",
	STRING:              "STRING",
	INT:                 "INT",
	UNSIGNED_INT:        "UNSIGNED_INT",
	FLOAT:               "FLOAT",
	SHAPE_DESCRIPTOR:    "SHAPE_DESCRIPTOR",
	EQ:                  "EQ",
	WHITESPACE:          "WHITESPACE",
	LINE_COMMENT:        "LINE_COMMENT",
	BLOCK_COMMENT:       "BLOCK_COMMENT",
	ANNOT_START:         "ANNOT_START",
	ANNOT_END:           "ANNOT_END",
	ERROR:               "ERROR",
}

func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return "UNKNOWN_KIND"
}

// Matcher reports whether a kind satisfies some predicate. Red-tree
// navigation accepts a Matcher so that filtering by kind never has to
// materialize every child just to discard most of them.
type Matcher interface {
	Matches(k Kind) bool
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(Kind) bool

// Matches implements Matcher.
func (f MatcherFunc) Matches(k Kind) bool { return f(k) }

// Is builds a Matcher that accepts exactly the given kinds.
func Is(kinds ...Kind) Matcher {
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return MatcherFunc(func(k Kind) bool {
		_, ok := set[k]
		return ok
	})
}
