package green

import "github.com/watlang/watls/internal/text"

// Child is one slot of a node's children slice. It is either a token owned
// directly, or a node reached through a relative offset. Offsets are
// relative to the *parent's* start so that a subtree can be lifted into a
// new position without reallocating anything beneath it.
type Child struct {
	Offset text.ByteOffset
	Node   *Node
	Token  *Token
}

// IsToken reports whether this child slot holds a token rather than a node.
func (c Child) IsToken() bool { return c.Token != nil }

// TextLen returns how many bytes this child covers.
func (c Child) TextLen() text.ByteOffset {
	if c.IsToken() {
		return c.Token.TextLen()
	}
	return c.Node.TextLen()
}

// Kind returns the kind of whichever value (node or token) occupies this
// slot.
func (c Child) Kind() Kind {
	if c.IsToken() {
		return c.Token.Kind()
	}
	return c.Node.Kind()
}

// NodeChild builds a Child wrapping a node at the given relative offset.
func NodeChild(offset text.ByteOffset, node *Node) Child {
	return Child{Offset: offset, Node: node}
}

// TokenChild builds a Child wrapping a token at the given relative offset.
func TokenChild(offset text.ByteOffset, token *Token) Child {
	return Child{Offset: offset, Token: token}
}

// Node is an interior value of the green tree. It caches its own text
// length so that length is never recomputed on read, only on construction.
type Node struct {
	kind     Kind
	textLen  text.ByteOffset
	children []Child
}

// NewNode builds a node from a kind and an ordered slice of children.
// Children must already carry correctly computed relative offsets; use
// NewNodeFromValues when offsets should be derived automatically from
// sequential layout.
func NewNode(kind Kind, children []Child) *Node {
	var length text.ByteOffset
	for _, c := range children {
		end := c.Offset + c.TextLen()
		if end > length {
			length = end
		}
	}
	return &Node{kind: kind, textLen: length, children: children}
}

// Value is either a *Node or a *Token, used by callers that build children
// without yet knowing their offsets.
type Value struct {
	Node  *Node
	Token *Token
}

// NodeValue wraps a node as a Value.
func NodeValue(n *Node) Value { return Value{Node: n} }

// TokenValue wraps a token as a Value.
func TokenValue(t *Token) Value { return Value{Token: t} }

// TextLen returns the byte length of the wrapped value.
func (v Value) TextLen() text.ByteOffset {
	if v.Token != nil {
		return v.Token.TextLen()
	}
	return v.Node.TextLen()
}

// Kind returns the kind of the wrapped value.
func (v Value) Kind() Kind {
	if v.Token != nil {
		return v.Token.Kind()
	}
	return v.Node.Kind()
}

// NewNodeFromValues lays out children sequentially, computing each relative
// offset from the running length of its predecessors. This is the common
// path used by the parser's builder.
func NewNodeFromValues(kind Kind, values []Value) *Node {
	children := make([]Child, len(values))
	var offset text.ByteOffset
	for i, v := range values {
		if v.Token != nil {
			children[i] = TokenChild(offset, v.Token)
		} else {
			children[i] = NodeChild(offset, v.Node)
		}
		offset += v.TextLen()
	}
	return &Node{kind: kind, textLen: offset, children: children}
}

// Kind returns the node's syntax kind.
func (n *Node) Kind() Kind { return n.kind }

// TextLen returns the cached byte length of the node's full text.
func (n *Node) TextLen() text.ByteOffset { return n.textLen }

// Children returns the node's children slice. Callers must not mutate it;
// green nodes are immutable and may be shared across many red trees.
func (n *Node) Children() []Child { return n.children }

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return len(n.children) }

// Text reconstructs the node's full verbatim source text by recursively
// concatenating every token beneath it. It is O(n) in the subtree size;
// callers on a hot path should prefer navigating the red tree instead.
func (n *Node) Text() string {
	var b []byte
	n.appendText(&b)
	return string(b)
}

func (n *Node) appendText(b *[]byte) {
	for _, c := range n.children {
		if c.IsToken() {
			*b = append(*b, c.Token.Text()...)
		} else {
			c.Node.appendText(b)
		}
	}
}

// Equal reports structural equality: same kind and recursively identical
// children (which, transitively, means identical text).
func (n *Node) Equal(other *Node) bool {
	if n == other {
		return true
	}
	if n == nil || other == nil {
		return false
	}
	if n.kind != other.kind || n.textLen != other.textLen || len(n.children) != len(other.children) {
		return false
	}
	for i, c := range n.children {
		o := other.children[i]
		if c.Offset != o.Offset || c.IsToken() != o.IsToken() {
			return false
		}
		if c.IsToken() {
			if !c.Token.Equal(o.Token) {
				return false
			}
		} else if !c.Node.Equal(o.Node) {
			return false
		}
	}
	return true
}

// ReplaceChild returns a new node with the child at index replaced by
// replacement, sharing every other child by reference. This is the only
// mutation primitive on the green tree: editing a node always produces a
// new node rather than touching the old one.
func (n *Node) ReplaceChild(index int, replacement Value) *Node {
	children := make([]Child, len(n.children))
	copy(children, n.children)

	old := children[index]
	if replacement.Token != nil {
		children[index] = TokenChild(old.Offset, replacement.Token)
	} else {
		children[index] = NodeChild(old.Offset, replacement.Node)
	}

	delta := replacement.TextLen() - old.TextLen()
	if delta != 0 {
		for i := index + 1; i < len(children); i++ {
			children[i].Offset += delta
		}
	}
	return &Node{kind: n.kind, textLen: n.textLen + delta, children: children}
}
