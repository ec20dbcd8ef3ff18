package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConvertCallHierarchyOneInOneOut(t *testing.T) {
	root := t.TempDir()
	mainFile := writeTempFile(t, root, "main.rs", "fn foo(){}\n")
	utilFile := writeTempFile(t, root, "util.rs", "fn bar(){ foo(); }\n")

	a := NewLspDatabaseAdapter(nil, nil)

	result := CallHierarchyResult{
		Item: CallHierarchyItem{Name: "foo", Kind: "function", URI: "file://" + mainFile, StartLine: 0, StartChar: 3},
		Incoming: []CallHierarchyItem{
			{Name: "bar", Kind: "function", URI: "file://" + utilFile, StartLine: 0, StartChar: 3},
		},
		Outgoing: []CallHierarchyItem{
			{Name: "bar", Kind: "function", URI: "file://" + utilFile, StartLine: 0, StartChar: 3},
		},
	}

	symbols, edges := a.ConvertCallHierarchy(result, mainFile, "rust", root)

	assert.Len(t, symbols, 3, "main + incoming + outgoing, even when incoming/outgoing name the same symbol twice")
	require.Len(t, edges, 2)

	var sawIncoming, sawOutgoing bool
	for _, e := range edges {
		switch e.Metadata {
		case "lsp_call_hierarchy_incoming":
			sawIncoming = true
			assert.GreaterOrEqual(t, e.StartLine, 1)
		case "lsp_call_hierarchy_outgoing":
			sawOutgoing = true
			assert.Equal(t, "main.rs", e.FilePath)
		}
	}
	assert.True(t, sawIncoming)
	assert.True(t, sawOutgoing)
}

func TestConvertCallHierarchyEmptyIncomingEmitsSentinel(t *testing.T) {
	root := t.TempDir()
	mainFile := writeTempFile(t, root, "main.go", "func Foo() {}\n")

	a := NewLspDatabaseAdapter(nil, nil)
	result := CallHierarchyResult{
		Item: CallHierarchyItem{Name: "Foo", Kind: "function", URI: "file://" + mainFile, StartLine: 0, StartChar: 5},
	}

	symbols, edges := a.ConvertCallHierarchy(result, mainFile, "go", root)
	require.Len(t, symbols, 1)
	require.Len(t, edges, 2)

	var incomingSentinel, outgoingSentinel bool
	for _, e := range edges {
		if e.Metadata == "lsp_call_hierarchy_empty_incoming" {
			incomingSentinel = true
			assert.Equal(t, NoneUID, e.SourceSymbolUID)
			assert.Equal(t, symbols[0].SymbolUID, e.TargetSymbolUID)
		}
		if e.Metadata == "lsp_call_hierarchy_empty_outgoing" {
			outgoingSentinel = true
			assert.Equal(t, NoneUID, e.TargetSymbolUID)
			assert.Equal(t, symbols[0].SymbolUID, e.SourceSymbolUID)
		}
	}
	assert.True(t, incomingSentinel)
	assert.True(t, outgoingSentinel)
}

func TestConvertCallHierarchySkipsUnknownName(t *testing.T) {
	a := NewLspDatabaseAdapter(nil, nil)
	result := CallHierarchyResult{
		Item: CallHierarchyItem{Name: "unknown", URI: "file:///dev/null"},
	}
	symbols, edges := a.ConvertCallHierarchy(result, "/dev/null", "go", "/ws")
	assert.Empty(t, symbols)
	assert.Empty(t, edges)
}

func TestConvertReferencesDeduplicates(t *testing.T) {
	root := t.TempDir()
	targetFile := writeTempFile(t, root, "lib.go", "func Target() {}\n")
	callerFile := writeTempFile(t, root, "caller.go", "func Caller() { Target(); Target() }\n")

	a := NewLspDatabaseAdapter(nil, nil)
	locations := []Location{
		{URI: "file://" + callerFile, StartLine: 0, StartChar: 16},
		{URI: "file://" + callerFile, StartLine: 0, StartChar: 16},
	}

	symbols, edges := a.ConvertReferences(locations, targetFile, 0, 5, "go", root)
	assert.NotEmpty(t, symbols)
	assert.Len(t, edges, 1, "identical (source,target) pairs must be deduplicated")
}

func TestConvertReferencesEmptyEmitsSentinel(t *testing.T) {
	root := t.TempDir()
	targetFile := writeTempFile(t, root, "lib.go", "func Target() {}\n")

	a := NewLspDatabaseAdapter(nil, nil)
	symbols, edges := a.ConvertReferences(nil, targetFile, 0, 5, "go", root)
	require.Len(t, symbols, 1)
	require.Len(t, edges, 1)
	assert.Equal(t, NoneUID, edges[0].TargetSymbolUID)
	assert.Equal(t, symbols[0].SymbolUID, edges[0].SourceSymbolUID)
	assert.Equal(t, "lsp_references_empty", edges[0].Metadata)
}

type fakeResolver struct {
	ctx ReferenceContext
}

func (f fakeResolver) ResolveDetails(filePath string, line, column int, language string) (SymbolDetails, error) {
	return SymbolDetails{}, ErrSymbolUnresolved
}

func (f fakeResolver) ClassifyRustReferenceContext(filePath string, line, column int) (ReferenceContext, error) {
	return f.ctx, nil
}

func TestConvertReferencesFiltersRustTraitBound(t *testing.T) {
	root := t.TempDir()
	targetFile := writeTempFile(t, root, "lib.rs", "trait Default {}\n")
	refFile := writeTempFile(t, root, "use.rs", "impl<T: Default> Foo<T> {}\n")

	resolver := fakeResolver{ctx: ContextTraitBound}
	a := NewLspDatabaseAdapter(resolver, nil)

	_, edges := a.ConvertReferences([]Location{{URI: "file://" + refFile, StartLine: 0, StartChar: 8}}, targetFile, 0, 6, "rust", root)
	require.Len(t, edges, 1)
	assert.Equal(t, "lsp_references_empty", edges[0].Metadata, "the only location was filtered as a trait bound, so the result is empty")
}

func TestConvertDefinitionsBasic(t *testing.T) {
	root := t.TempDir()
	targetFile := writeTempFile(t, root, "target.go", "func Target() {}\n")
	callerFile := writeTempFile(t, root, "caller.go", "func Caller() { Target() }\n")

	a := NewLspDatabaseAdapter(nil, nil)
	edges := a.ConvertDefinitions([]Location{{URI: "file://" + targetFile, StartLine: 0, StartChar: 5}}, callerFile, 0, 16, "go", root)
	require.Len(t, edges, 1)
	assert.Equal(t, RelationReferences, edges[0].Relation)
	assert.Equal(t, "lsp_definitions", edges[0].Metadata)
}

func TestConvertImplementationsEmptyEmitsSentinel(t *testing.T) {
	root := t.TempDir()
	interfaceFile := writeTempFile(t, root, "iface.go", "type Shape interface{}\n")

	a := NewLspDatabaseAdapter(nil, nil)
	edges := a.ConvertImplementations(nil, interfaceFile, 0, 5, "go", root)
	require.Len(t, edges, 1)
	assert.Equal(t, NoneUID, edges[0].TargetSymbolUID)
}

func TestStoreExtractedSymbolsMarksDefinitions(t *testing.T) {
	root := t.TempDir()
	file := writeTempFile(t, root, "main.go", "func Foo() {}\n")

	a := NewLspDatabaseAdapter(nil, nil)
	symbols := a.StoreExtractedSymbols([]ExtractedSymbol{
		{FilePath: file, Language: "go", Name: "Foo", Kind: "function", StartLine: 0, StartChar: 5},
	}, root)

	require.Len(t, symbols, 1)
	assert.True(t, symbols[0].IsDefinition)
	assert.Equal(t, "main.go", symbols[0].FilePath)
}
