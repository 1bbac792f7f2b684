package red

import "github.com/watlang/watls/internal/text"

// Element is a node-or-token handle, used wherever a child position might
// hold either (ChildrenWithTokens, sibling navigation, TokenAtOffset).
// A zero Element (both fields nil) represents "no element".
type Element struct {
	Node  *Node
	Token *Token
}

// NodeElement wraps a node as an Element.
func NodeElement(n *Node) Element { return Element{Node: n} }

// TokenElement wraps a token as an Element.
func TokenElement(t *Token) Element { return Element{Token: t} }

// IsNone reports whether this is the zero Element.
func (e Element) IsNone() bool { return e.Node == nil && e.Token == nil }

// IsToken reports whether this element holds a token.
func (e Element) IsToken() bool { return e.Token != nil }

// Kind returns the kind of whichever value this element holds.
func (e Element) Kind() Kind {
	if e.Token != nil {
		return e.Token.Kind()
	}
	if e.Node != nil {
		return e.Node.Kind()
	}
	return 0
}

// TextRange returns the span of whichever value this element holds.
func (e Element) TextRange() text.Span {
	if e.Token != nil {
		return e.Token.TextRange()
	}
	if e.Node != nil {
		return e.Node.TextRange()
	}
	return text.Span{}
}
