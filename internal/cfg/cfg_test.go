package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watlang/watls/internal/ast"
	"github.com/watlang/watls/internal/parser"
)

func firstFunc(t *testing.T, src string) ast.Func {
	t.Helper()
	res := parser.Parse([]byte(src))
	root, ok := ast.CastRoot(res.Root)
	require.True(t, ok)
	mods := root.Modules()
	require.NotEmpty(t, mods)
	funcs := mods[0].Funcs()
	require.NotEmpty(t, funcs)
	return funcs[0]
}

func TestBuildStraightLine(t *testing.T) {
	f := firstFunc(t, `(module (func (result i32) (i32.const 0)))`)
	g := Build(f)

	require.Equal(t, Entry, g.Nodes[0].Kind)
	require.Equal(t, Exit, g.Nodes[1].Kind)
	for i, n := range g.Nodes {
		if i == 0 {
			continue
		}
		require.False(t, n.Unreachable, "node %d should be reachable", i)
	}
}

func TestBuildUnreachableAfterReturn(t *testing.T) {
	f := firstFunc(t, `(module (func (result i32)
		(return (i32.const 0))
		(i32.const 1)
	))`)
	g := Build(f)

	var sawDead bool
	for i, n := range g.Nodes {
		if i < 2 {
			continue
		}
		if n.Unreachable {
			sawDead = true
		}
	}
	require.True(t, sawDead, "code after an unconditional return must be marked unreachable")
}

func TestBuildIfWithoutElseFallsThrough(t *testing.T) {
	f := firstFunc(t, `(module (func (param i32)
		(if (local.get 0) (then (nop)))
		(nop)
	))`)
	g := Build(f)
	require.False(t, g.Nodes[1].Unreachable, "exit must stay reachable when if has no else")
}
