package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watlang/watls/internal/diag"
	"github.com/watlang/watls/internal/docstore"
	"github.com/watlang/watls/internal/query"
)

func TestRunAggregatesTypeCheckAndLintDiagnostics(t *testing.T) {
	store := docstore.New()
	cache := query.New()

	doc := store.Commit("file:///a.wat", []byte(`(module (func $unused (result i32) (i32.const 0)))`))

	res, err := Run(doc, cache)
	require.NoError(t, err)
	require.NotNil(t, res.Symbols)
	require.NotNil(t, res.Types)

	var sawUnused bool
	for _, d := range res.Diagnostics {
		if d.Code == diag.CodeUnusedDefinition {
			sawUnused = true
		}
	}
	require.True(t, sawUnused, "uncalled func should be flagged unused")
}

func TestRunReusesCacheAcrossCalls(t *testing.T) {
	store := docstore.New()
	cache := query.New()
	doc := store.Commit("file:///b.wat", []byte(`(module (func $f (call $f)))`))

	first, err := Run(doc, cache)
	require.NoError(t, err)
	second, err := Run(doc, cache)
	require.NoError(t, err)

	require.Same(t, first.Symbols, second.Symbols, "binder output must be memoized for an unchanged document version")
}
