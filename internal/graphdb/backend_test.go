package graphdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lcid/internal/graph"
)

func openTestBackend(t *testing.T) *DatabaseBackend {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), "symbols.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestStoreSymbolsAndCount(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	symbols := []graph.SymbolState{
		{SymbolUID: "main.go:Foo:0000000000000001:3", FilePath: "main.go", Language: "go", Name: "Foo", Kind: "function", IsDefinition: true},
		{SymbolUID: "main.go:Bar:0000000000000001:7", FilePath: "main.go", Language: "go", Name: "Bar", Kind: "function", IsDefinition: true},
	}
	require.NoError(t, b.StoreSymbols(ctx, symbols))

	n, err := b.SymbolCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestStoreSymbolsUpsertIsIdempotent(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	sym := graph.SymbolState{SymbolUID: "main.go:Foo:0000000000000001:3", FilePath: "main.go", Name: "Foo", Kind: "function"}
	require.NoError(t, b.StoreSymbols(ctx, []graph.SymbolState{sym}))
	require.NoError(t, b.StoreSymbols(ctx, []graph.SymbolState{sym}))

	n, err := b.SymbolCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStoreEdgesUpsertIsIdempotent(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	edge := graph.Edge{Relation: graph.RelationCalls, SourceSymbolUID: "a", TargetSymbolUID: "b", FilePath: "main.go", Confidence: 1.0}
	require.NoError(t, b.StoreEdges(ctx, []graph.Edge{edge}))
	require.NoError(t, b.StoreEdges(ctx, []graph.Edge{edge}))

	n, err := b.EdgeCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "repeated edges on the same (relation,source,target) must be a no-op")
}

func TestStoreEdgesSentinelsCoexistWithConcreteEdges(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	edges := []graph.Edge{
		{Relation: graph.RelationCalls, SourceSymbolUID: "a", TargetSymbolUID: "b", Confidence: 1.0},
		{Relation: graph.RelationCalls, SourceSymbolUID: graph.NoneUID, TargetSymbolUID: "a", Confidence: 1.0, Metadata: "lsp_call_hierarchy_empty_incoming"},
	}
	require.NoError(t, b.StoreEdges(ctx, edges))

	n, err := b.EdgeCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestClearSymbolByFileAndName(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.StoreSymbols(ctx, []graph.SymbolState{
		{SymbolUID: "uid-foo", FilePath: "main.go", Name: "Foo", DefStartLine: 3},
	}))
	require.NoError(t, b.StoreEdges(ctx, []graph.Edge{
		{Relation: graph.RelationCalls, SourceSymbolUID: "uid-foo", TargetSymbolUID: graph.NoneUID},
		{Relation: graph.RelationCalls, SourceSymbolUID: "other", TargetSymbolUID: "uid-foo"},
	}))

	result, err := b.ClearSymbol(ctx, "main.go", "Foo", nil, nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, []int{3}, result.Positions)

	n, err := b.SymbolCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	edgeN, err := b.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, edgeN, "edges referencing the cleared symbol must be removed too")
}

func TestClearSymbolAtSpecificPositionOnly(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.StoreSymbols(ctx, []graph.SymbolState{
		{SymbolUID: "uid-foo-1", FilePath: "main.go", Name: "Foo", DefStartLine: 3},
		{SymbolUID: "uid-foo-2", FilePath: "main.go", Name: "Foo", DefStartLine: 30},
	}))

	line := 3
	result, err := b.ClearSymbol(ctx, "main.go", "Foo", &line, nil, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)

	n, err := b.SymbolCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "only the symbol at the named position is removed")
}

func TestClearSymbolNoMatchReturnsZeroCount(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	result, err := b.ClearSymbol(ctx, "missing.go", "Nope", nil, nil, nil, true)
	require.NoError(t, err)
	assert.Zero(t, result.Count)
}

func TestStoreSymbolsEmptyBatchIsNoop(t *testing.T) {
	b := openTestBackend(t)
	require.NoError(t, b.StoreSymbols(context.Background(), nil))
}
