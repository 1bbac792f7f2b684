package red

import (
	"github.com/watlang/watls/internal/green"
	"github.com/watlang/watls/internal/text"
)

// Token is a red-tree handle over a green token.
type Token struct {
	green  *green.Token
	parent *Node
	offset text.ByteOffset
	index  uint32
}

// Kind returns the token's syntax kind.
func (t *Token) Kind() Kind { return t.green.Kind() }

// Text returns the token's verbatim source text.
func (t *Token) Text() string { return t.green.Text() }

// TextRange returns the token's absolute byte span.
func (t *Token) TextRange() text.Span {
	return text.Span{Start: t.offset, End: t.offset + t.green.TextLen()}
}

// Green returns the underlying green token.
func (t *Token) Green() *green.Token { return t.green }

// Parent returns the node this token is a direct child of. Tokens always
// have a parent; the root of a tree is always a node.
func (t *Token) Parent() *Node { return t.parent }

// Index returns the token's position among its parent's green children.
func (t *Token) Index() uint32 { return t.index }

// NextSiblingOrToken returns the sibling after this token, if any.
func (t *Token) NextSiblingOrToken() Element {
	return t.parent.childOrTokenAt(int(t.index) + 1)
}

// PrevSiblingOrToken returns the sibling before this token, if any.
func (t *Token) PrevSiblingOrToken() Element {
	return t.parent.childOrTokenAt(int(t.index) - 1)
}

func (t *Token) String() string {
	return t.Kind().String() + "@" + t.TextRange().String() + " " + t.Text()
}
