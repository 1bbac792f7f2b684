package binder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watlang/watls/internal/ast"
	"github.com/watlang/watls/internal/parser"
)

func parseRoot(t *testing.T, src string) *Table {
	t.Helper()
	res := parser.Parse([]byte(src))
	root, ok := ast.CastRoot(res.Root)
	require.True(t, ok)
	return Bind(root.Syntax())
}

func TestBindResolvesCallByName(t *testing.T) {
	table := parseRoot(t, `(module (func $f (call $f)))`)
	require.NotEmpty(t, table.Resolved, "call $f should resolve to the func definition")
}

func TestBindLeavesUnresolvedReferenceUnmapped(t *testing.T) {
	table := parseRoot(t, `(module (func $f (call $missing)))`)

	var calls int
	for _, sym := range table.Symbols {
		if sym.Kind == Call {
			calls++
			_, resolved := table.Resolved[sym.Key]
			require.False(t, resolved, "call to an undeclared function must stay unresolved")
		}
	}
	require.Equal(t, 1, calls)
}

func TestBindAssignsDeclarationOrderIndices(t *testing.T) {
	table := parseRoot(t, `(module (func $a) (func $b) (func $c))`)

	seen := map[uint32]bool{}
	for _, sym := range table.Symbols {
		if sym.Kind == Func {
			seen[sym.Idx.Num] = true
		}
	}
	require.Len(t, seen, 3)
	require.True(t, seen[0] && seen[1] && seen[2])
}
