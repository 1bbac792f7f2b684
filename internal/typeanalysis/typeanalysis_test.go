package typeanalysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/watlang/watls/internal/ast"
	"github.com/watlang/watls/internal/parser"
	"github.com/watlang/watls/internal/typesystem"
)

func analyzeSrc(t *testing.T, src string) (*Analysis, ast.Root) {
	t.Helper()
	res := parser.Parse([]byte(src))
	root, ok := ast.CastRoot(res.Root)
	require.True(t, ok)
	return Analyze(res.Root), root
}

func TestGetFuncSigReadsInlineParamsAndResults(t *testing.T) {
	a, root := analyzeSrc(t, `(module (func $f (param i32) (result i32) (local.get 0)))`)
	f := root.Modules()[0].Funcs()[0]

	sig := a.GetFuncSig(f)
	want := typesystem.Signature{
		Params:  []typesystem.ValType{{Kind: typesystem.ValI32}},
		Results: []typesystem.ValType{{Kind: typesystem.ValI32}},
	}
	if diff := cmp.Diff(want, sig); diff != "" {
		t.Fatalf("GetFuncSig mismatch (-want +got):\n%s", diff)
	}
}

func TestValTypeOfNodeHandlesNumericKeywords(t *testing.T) {
	a, root := analyzeSrc(t, `(module (func (param f64) (drop)))`)
	f := root.Modules()[0].Funcs()[0]
	params := f.Params()
	require.Len(t, params, 1)
	vts := params[0].ValTypes()
	require.Len(t, vts, 1)
	require.Equal(t, typesystem.ValF64, a.ValTypeOfNode(vts[0]).Kind)
}
