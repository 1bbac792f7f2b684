package lint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watlang/watls/internal/ast"
	"github.com/watlang/watls/internal/binder"
	"github.com/watlang/watls/internal/parser"
)

func bindSrc(t *testing.T, src string) *binder.Table {
	t.Helper()
	res := parser.Parse([]byte(src))
	root, ok := ast.CastRoot(res.Root)
	require.True(t, ok)
	return binder.Bind(root.Syntax())
}

func TestUnusedDefinitionsReportsUncalledFunc(t *testing.T) {
	table := bindSrc(t, `(module (func $unused))`)
	diags := UnusedDefinitions(table)
	require.Len(t, diags, 1)
	require.Contains(t, diags[0].Message, "unused")
}

func TestUnusedDefinitionsSkipsUnderscorePrefixed(t *testing.T) {
	table := bindSrc(t, `(module (func $_ignored))`)
	require.Empty(t, UnusedDefinitions(table))
}

func TestUnusedDefinitionsSkipsCalledFunc(t *testing.T) {
	table := bindSrc(t, `(module (func $a (call $b)) (func $b))`)
	diags := UnusedDefinitions(table)
	// $b is called and is skipped; $a itself is never referenced.
	require.Len(t, diags, 1)
	require.Contains(t, diags[0].Message, `"$a"`)
}
