// Package red implements the red ("syntax") tree: a lazy, ephemeral view
// over a green tree that adds absolute offsets, parent links, and a child
// index. Red values are cheap to construct and are never cached across a
// reparse; Go's garbage collector keeps the green subtree and the parent
// chain alive for as long as any red handle into them is reachable, so
// there is no need for the explicit refcounting an unmanaged-memory
// implementation would use for the same purpose.
package red

import (
	"fmt"
	"strings"

	"github.com/watlang/watls/internal/green"
	"github.com/watlang/watls/internal/syntaxkind"
	"github.com/watlang/watls/internal/text"
)

// Kind is a local alias so call sites read red.Kind instead of reaching
// into syntaxkind directly.
type Kind = syntaxkind.Kind

// Node is a handle into a green node at a specific absolute offset and
// position in its parent's children.
type Node struct {
	green  *green.Node
	parent *Node
	offset text.ByteOffset
	index  uint32
}

// NewRoot builds the root red node of a tree rooted at the given green
// node, at absolute offset zero.
func NewRoot(g *green.Node) *Node {
	return &Node{green: g}
}

func (n *Node) newChildNode(index uint32, g *green.Node, relOffset text.ByteOffset) *Node {
	return &Node{green: g, parent: n, offset: n.offset + relOffset, index: index}
}

func (n *Node) newChildToken(index uint32, g *green.Token, relOffset text.ByteOffset) *Token {
	return &Token{green: g, parent: n, offset: n.offset + relOffset, index: index}
}

// Kind returns the node's syntax kind.
func (n *Node) Kind() Kind { return n.green.Kind() }

// TextRange returns the node's absolute byte span in the source text.
func (n *Node) TextRange() text.Span {
	return text.Span{Start: n.offset, End: n.offset + n.green.TextLen()}
}

// Green returns the underlying green node.
func (n *Node) Green() *green.Node { return n.green }

// Parent returns the node's parent, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Index returns the node's position among its parent's green children.
// It is meaningless (zero) at the root.
func (n *Node) Index() uint32 { return n.index }

// Ancestors returns the node and every strict ancestor, innermost first.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for cur := n; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	return out
}

// Children returns the node's direct children that are themselves nodes,
// in source order, skipping token children.
func (n *Node) Children() []*Node {
	var out []*Node
	for i, c := range n.green.Children() {
		if !c.IsToken() {
			out = append(out, n.newChildNode(uint32(i), c.Node, c.Offset))
		}
	}
	return out
}

// ChildrenByKind returns direct node children whose kind satisfies matcher.
// Prefer this over filtering Children() manually: it still has to build
// every matching child, but it never does for the rest.
func (n *Node) ChildrenByKind(matcher syntaxkind.Matcher) []*Node {
	var out []*Node
	for i, c := range n.green.Children() {
		if !c.IsToken() && matcher.Matches(c.Node.Kind()) {
			out = append(out, n.newChildNode(uint32(i), c.Node, c.Offset))
		}
	}
	return out
}

// ChildByKind returns the first direct node child matching matcher, or nil.
func (n *Node) ChildByKind(matcher syntaxkind.Matcher) *Node {
	for i, c := range n.green.Children() {
		if !c.IsToken() && matcher.Matches(c.Node.Kind()) {
			return n.newChildNode(uint32(i), c.Node, c.Offset)
		}
	}
	return nil
}

// TokensByKind returns direct token children whose kind satisfies matcher.
func (n *Node) TokensByKind(matcher syntaxkind.Matcher) []*Token {
	var out []*Token
	for i, c := range n.green.Children() {
		if c.IsToken() && matcher.Matches(c.Token.Kind()) {
			out = append(out, n.newChildToken(uint32(i), c.Token, c.Offset))
		}
	}
	return out
}

// TokenByKind returns the first direct token child matching matcher, or nil.
func (n *Node) TokenByKind(matcher syntaxkind.Matcher) *Token {
	for i, c := range n.green.Children() {
		if c.IsToken() && matcher.Matches(c.Token.Kind()) {
			return n.newChildToken(uint32(i), c.Token, c.Offset)
		}
	}
	return nil
}

// ChildrenWithTokens returns every direct child, node or token, in source
// order.
func (n *Node) ChildrenWithTokens() []Element {
	children := n.green.Children()
	out := make([]Element, len(children))
	for i, c := range children {
		if c.IsToken() {
			out[i] = TokenElement(n.newChildToken(uint32(i), c.Token, c.Offset))
		} else {
			out[i] = NodeElement(n.newChildNode(uint32(i), c.Node, c.Offset))
		}
	}
	return out
}

// HasChildOrTokenByKind reports whether any direct child or token matches,
// without constructing any red value for the check.
func (n *Node) HasChildOrTokenByKind(matcher syntaxkind.Matcher) bool {
	for _, c := range n.green.Children() {
		if matcher.Matches(c.Kind()) {
			return true
		}
	}
	return false
}

// NextSiblingOrToken returns the sibling (node or token) immediately after
// this node, or a zero Element if there is none.
func (n *Node) NextSiblingOrToken() Element {
	if n.parent == nil {
		return Element{}
	}
	return n.parent.childOrTokenAt(int(n.index) + 1)
}

// PrevSiblingOrToken returns the sibling (node or token) immediately before
// this node, or a zero Element if there is none.
func (n *Node) PrevSiblingOrToken() Element {
	if n.parent == nil {
		return Element{}
	}
	return n.parent.childOrTokenAt(int(n.index) - 1)
}

// NextSiblings returns node siblings (not tokens) after this node.
func (n *Node) NextSiblings() []*Node {
	if n.parent == nil {
		return nil
	}
	return n.parent.nodeChildrenFrom(int(n.index) + 1)
}

// PrevSiblings returns node siblings (not tokens) before this node, nearest
// first.
func (n *Node) PrevSiblings() []*Node {
	if n.parent == nil {
		return nil
	}
	out := n.parent.nodeChildrenUpTo(int(n.index))
	reverse(out)
	return out
}

// NextConsecutiveTokens returns the run of token siblings immediately
// after this node, stopping at the first node sibling.
func (n *Node) NextConsecutiveTokens() []*Token {
	if n.parent == nil {
		return nil
	}
	return n.parent.consecutiveTokensFrom(int(n.index)+1, 1)
}

// PrevConsecutiveTokens returns the run of token siblings immediately
// before this node, nearest first, stopping at the first node sibling.
func (n *Node) PrevConsecutiveTokens() []*Token {
	if n.parent == nil {
		return nil
	}
	return n.parent.consecutiveTokensFrom(int(n.index)-1, -1)
}

// Descendants returns this node and every node in its subtree, in preorder.
func (n *Node) Descendants() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		out = append(out, cur)
		for _, child := range cur.Children() {
			walk(child)
		}
	}
	walk(n)
	return out
}

func (n *Node) childOrTokenAt(i int) Element {
	children := n.green.Children()
	if i < 0 || i >= len(children) {
		return Element{}
	}
	c := children[i]
	if c.IsToken() {
		return TokenElement(n.newChildToken(uint32(i), c.Token, c.Offset))
	}
	return NodeElement(n.newChildNode(uint32(i), c.Node, c.Offset))
}

func (n *Node) nodeChildrenFrom(start int) []*Node {
	var out []*Node
	children := n.green.Children()
	for i := start; i < len(children); i++ {
		if c := children[i]; !c.IsToken() {
			out = append(out, n.newChildNode(uint32(i), c.Node, c.Offset))
		}
	}
	return out
}

func (n *Node) nodeChildrenUpTo(end int) []*Node {
	var out []*Node
	children := n.green.Children()
	for i := 0; i < end && i < len(children); i++ {
		if c := children[i]; !c.IsToken() {
			out = append(out, n.newChildNode(uint32(i), c.Node, c.Offset))
		}
	}
	return out
}

func (n *Node) consecutiveTokensFrom(start, step int) []*Token {
	var out []*Token
	children := n.green.Children()
	for i := start; i >= 0 && i < len(children); i += step {
		c := children[i]
		if !c.IsToken() {
			break
		}
		out = append(out, n.newChildToken(uint32(i), c.Token, c.Offset))
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// ChildAtRange finds the smallest direct child node wholly containing
// rng, via binary search over relative offsets. It returns nil if no
// child contains the range (rng straddles a boundary, or lies over a
// token) or if rng is not contained in this node at all.
func (n *Node) ChildAtRange(rng text.Span) *Node {
	if !n.TextRange().ContainsSpan(rng) {
		return nil
	}
	rel := text.Span{Start: rng.Start - n.offset, End: rng.End - n.offset}
	children := n.green.Children()

	lo, hi := 0, len(children)
	for lo < hi {
		mid := (lo + hi) / 2
		c := children[mid]
		start := c.Offset
		end := c.Offset + c.TextLen()
		switch {
		case rel.End <= start:
			hi = mid
		case rel.Start >= end:
			lo = mid + 1
		default:
			lo, hi = mid, mid
		}
	}
	i := lo
	if i >= len(children) {
		i = len(children) - 1
	}
	if i < 0 {
		return nil
	}
	c := children[i]
	if c.IsToken() {
		return nil
	}
	span := text.Span{Start: c.Offset, End: c.Offset + c.TextLen()}
	if !span.ContainsSpan(rel) {
		return nil
	}
	return n.newChildNode(uint32(i), c.Node, c.Offset)
}

// TokenAtOffset finds the token covering offset, per the package-level
// TokenAtOffset semantics.
func (n *Node) TokenAtOffset(offset text.ByteOffset) Result {
	rng := n.TextRange()
	if offset < rng.Start || offset > rng.End {
		return Result{}
	}
	rel := offset - n.offset

	children := n.green.Children()
	type hit struct {
		idx       int
		start, end text.ByteOffset
	}
	var hits []hit
	for i, c := range children {
		start := c.Offset
		end := c.Offset + c.TextLen()
		if start <= rel && rel <= end {
			hits = append(hits, hit{i, start, end})
		}
	}
	if len(hits) == 0 {
		return Result{}
	}
	left := n.resultFor(hits[0].idx, children[hits[0].idx], offset)
	if len(hits) == 1 {
		return left
	}
	right := n.resultFor(hits[1].idx, children[hits[1].idx], offset)
	if left.Kind == SingleHit && right.Kind == SingleHit {
		return Between(left.Single, right.Single)
	}
	return Result{}
}

func (n *Node) resultFor(index int, c green.Child, offset text.ByteOffset) Result {
	if c.IsToken() {
		return SingleToken(n.newChildToken(uint32(index), c.Token, c.Offset))
	}
	return n.newChildNode(uint32(index), c.Node, c.Offset).TokenAtOffset(offset)
}

// ReplaceWith replaces this node's green subtree with replacement and
// bubbles the change up to the root, returning the new root green node.
// It does not mutate the tree this handle was built from; that green tree
// remains valid and unchanged.
func (n *Node) ReplaceWith(replacement *green.Node) *green.Node {
	if n.parent == nil {
		return replacement
	}
	newParentGreen := n.parent.green.ReplaceChild(int(n.index), green.NodeValue(replacement))
	return n.parent.ReplaceWith(newParentGreen)
}

// Pointer returns a stable (range, kind) identity for this node. See
// package pointer.go for resolution semantics.
func (n *Node) Pointer() Pointer {
	return Pointer{Range: n.TextRange(), Kind: n.Kind()}
}

func (n *Node) String() string {
	var b strings.Builder
	debugPrint(&b, n, 0)
	return b.String()
}

func debugPrint(b *strings.Builder, n *Node, level int) {
	fmt.Fprintf(b, "%s%s@%s\n", strings.Repeat("  ", level), n.Kind(), n.TextRange())
	for _, el := range n.ChildrenWithTokens() {
		if el.IsToken() {
			fmt.Fprintf(b, "%s%s@%s %q\n", strings.Repeat("  ", level+1), el.Token.Kind(), el.Token.TextRange(), el.Token.Text())
		} else {
			debugPrint(b, el.Node, level+1)
		}
	}
}
