package red

import "github.com/watlang/watls/internal/text"

// Pointer is a stable (text range, kind) identity for a node. It survives
// reparses as long as the construct it names keeps the same range and
// kind, which is exactly the condition under which memoized queries (see
// package query) should treat it as "the same node". Pointer is a plain
// comparable value, safe to use as a map key.
type Pointer struct {
	Range text.Span
	Kind  Kind
}

// NewPointer builds a Pointer from a red node.
func NewPointer(n *Node) Pointer {
	return n.Pointer()
}

// Resolve finds the node in root's subtree whose range equals p.Range and
// whose kind matches p.Kind, or nil if no such node exists (for example
// because the tree changed shape at that range since p was captured).
func (p Pointer) Resolve(root *Node) *Node {
	n := root.ChildAtRange(p.Range)
	if root.TextRange() == p.Range && root.Kind() == p.Kind {
		return root
	}
	for n != nil {
		if n.TextRange() == p.Range {
			if n.Kind() == p.Kind {
				return n
			}
			return nil
		}
		n = n.ChildAtRange(p.Range)
	}
	return nil
}
