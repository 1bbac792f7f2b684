// Package cfg builds a per-function control-flow graph of basic
// blocks, used by dead-code diagnostics and by highlight/semantic
// queries that need "is this reachable" framing rather than a full
// type-checked operand trace.
package cfg

import (
	"github.com/watlang/watls/internal/ast"
	"github.com/watlang/watls/internal/instrset"
	"github.com/watlang/watls/internal/red"
	"github.com/watlang/watls/internal/syntaxkind"
)

// NodeKind discriminates one CFG node's role.
type NodeKind uint8

const (
	Entry NodeKind = iota
	Exit
	BasicBlock
	BlockEntry
	BlockExit
)

// Node is one vertex in a function's control-flow graph. First/Last
// are the instruction nodes spanned by a BasicBlock; Block is the
// structured-block node (BLOCK_BLOCK/BLOCK_LOOP/BLOCK_IF/
// BLOCK_TRY_TABLE) a BlockEntry/BlockExit node wraps.
type Node struct {
	Kind  NodeKind
	First *red.Node
	Last  *red.Node
	Block red.Pointer

	Unreachable bool

	succ []int
	pred []int
}

// Graph is one function's control-flow graph. Nodes[0] is always
// Entry, Nodes[1] is always Exit.
type Graph struct {
	Nodes []*Node
}

func (g *Graph) addNode(n *Node) int {
	g.Nodes = append(g.Nodes, n)
	return len(g.Nodes) - 1
}

func (g *Graph) addEdge(from, to int) {
	g.Nodes[from].succ = append(g.Nodes[from].succ, to)
	g.Nodes[to].pred = append(g.Nodes[to].pred, from)
}

// Successors and Predecessors expose a node's edges by index into the
// owning Graph's Nodes slice.
func (g *Graph) Successors(i int) []int   { return g.Nodes[i].succ }
func (g *Graph) Predecessors(i int) []int { return g.Nodes[i].pred }

// Build constructs the control-flow graph for one func's body.
func Build(f ast.Func) *Graph {
	g := &Graph{}
	entry := g.addNode(&Node{Kind: Entry})
	exit := g.addNode(&Node{Kind: Exit})

	b := &builder{g: g, exit: exit}
	last := b.walkSeq(entry, f.Body())
	if last >= 0 {
		g.addEdge(last, exit)
	}
	propagateUnreachable(g)
	return g
}

type builder struct {
	g    *Graph
	exit int // function exit, the implicit target of `return`/falling off the end
}

// walkSeq threads a straight-line instruction sequence into basic
// blocks, opening a new block at every structured-block boundary and
// linking it to the block's own sub-graph. A return-family instruction
// gets an edge to the function exit; instructions after any
// unconditional branch/return/throw/unreachable go into a basic block
// with no predecessor. Returns the index of the node control falls
// through to after seq, or -1 if control never falls through (such an
// instruction is the last one in seq).
func (b *builder) walkSeq(pred int, seq []*red.Node) int {
	cur := pred
	var bbFirst, bbLast *red.Node

	flushBB := func() {
		if bbFirst == nil {
			return
		}
		idx := b.g.addNode(&Node{Kind: BasicBlock, First: bbFirst, Last: bbLast})
		if cur >= 0 {
			b.g.addEdge(cur, idx)
		}
		cur = idx
		bbFirst, bbLast = nil, nil
	}

	for _, n := range seq {
		switch n.Kind() {
		case syntaxkind.BLOCK_BLOCK, syntaxkind.BLOCK_LOOP, syntaxkind.BLOCK_IF, syntaxkind.BLOCK_TRY_TABLE:
			flushBB()
			cur = b.walkBlock(cur, n)
		default:
			if bbFirst == nil {
				bbFirst = n
			}
			bbLast = n
			if endsBlock(n) {
				flushBB()
				if tok := n.TokenByKind(syntaxkind.Is(syntaxkind.INSTR_NAME)); tok != nil {
					switch info, _ := instrset.Lookup(tok.Text()); info.Category {
					case instrset.CategoryReturn, instrset.CategoryReturnCall,
						instrset.CategoryReturnCallIndirect, instrset.CategoryReturnCallRef:
						b.g.addEdge(cur, b.exit)
					}
				}
				cur = -1
			}
		}
	}
	flushBB()
	return cur
}

// walkBlock threads one structured block (block/loop/if/try_table)
// into the graph rooted at pred (-1 when the block itself is dead
// code), returning the block's BlockExit node. When no branch of the
// block reaches its end, that node has no predecessor and is marked
// unreachable.
func (b *builder) walkBlock(pred int, n *red.Node) int {
	ptr := red.NewPointer(n)
	entry := b.g.addNode(&Node{Kind: BlockEntry, Block: ptr})
	if pred >= 0 {
		b.g.addEdge(pred, entry)
	}
	bexit := b.g.addNode(&Node{Kind: BlockExit, Block: ptr})

	switch n.Kind() {
	case syntaxkind.BLOCK_IF:
		if t := childOfKind(n, syntaxkind.BLOCK_IF_THEN); t != nil {
			if last := b.walkSeq(entry, ast.InstrChildren(t)); last >= 0 {
				b.g.addEdge(last, bexit)
			}
		} else {
			b.g.addEdge(entry, bexit)
		}
		if e := childOfKind(n, syntaxkind.BLOCK_IF_ELSE); e != nil {
			if last := b.walkSeq(entry, ast.InstrChildren(e)); last >= 0 {
				b.g.addEdge(last, bexit)
			}
		} else {
			// missing else: the implicit empty else falls straight through
			b.g.addEdge(entry, bexit)
		}
	default:
		// block/loop/try_table: a single instruction sequence. A loop's
		// back-edge (branches to the loop label re-enter at its start) is
		// recorded by branch-target resolution elsewhere; the CFG here only
		// models structural fall-through, matching the basic-block shape
		// named in the component's contract.
		if last := b.walkSeq(entry, ast.InstrChildren(n)); last >= 0 {
			b.g.addEdge(last, bexit)
		}
	}

	return bexit
}

func childOfKind(n *red.Node, k syntaxkind.Kind) *red.Node {
	return n.ChildByKind(syntaxkind.Is(k))
}

// endsBlock reports whether the plain instruction n makes the
// remainder of its enclosing sequence unreachable: unconditional
// branches, returns, throws, and `unreachable` itself.
func endsBlock(n *red.Node) bool {
	if n.Kind() != syntaxkind.PLAIN_INSTR {
		return false
	}
	tok := n.TokenByKind(syntaxkind.Is(syntaxkind.INSTR_NAME))
	if tok == nil {
		return false
	}
	info, ok := instrset.Lookup(tok.Text())
	if !ok {
		return false
	}
	switch info.Category {
	case instrset.CategoryUnreachable, instrset.CategoryBranch,
		instrset.CategoryReturn, instrset.CategoryReturnCall,
		instrset.CategoryReturnCallIndirect, instrset.CategoryReturnCallRef,
		instrset.CategoryThrow, instrset.CategoryThrowRef:
		return true
	default:
		return false
	}
}

// propagateUnreachable runs the fixed-point pass named in the
// component's contract: Entry is always reachable; every other node is
// unreachable iff every predecessor is unreachable (a node with no
// predecessors, other than Entry, is unreachable — it is dead code no
// edge leads into).
func propagateUnreachable(g *Graph) {
	for i, n := range g.Nodes {
		n.Unreachable = i != 0
	}
	changed := true
	for changed {
		changed = false
		for i, n := range g.Nodes {
			if i == 0 {
				continue
			}
			if len(n.pred) == 0 {
				continue // stays unreachable, no predecessor to inherit from
			}
			allDead := true
			for _, p := range n.pred {
				if !g.Nodes[p].Unreachable {
					allDead = false
					break
				}
			}
			if n.Unreachable != allDead {
				n.Unreachable = allDead
				changed = true
			}
		}
	}
}
