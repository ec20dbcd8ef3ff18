package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveDetailsGoFunction(t *testing.T) {
	r := NewTreeSitterResolver()
	path := writeTemp(t, "package main\n\nfunc Foo() {}\n", ".go")

	details, err := r.ResolveDetails(path, 2, 6, "go")
	require.NoError(t, err)
	assert.Equal(t, "Foo", details.Name)
	assert.Equal(t, "function", details.Kind)
	assert.True(t, details.IsDefinition)
}

func TestResolveDetailsRustImplWithTrait(t *testing.T) {
	r := NewTreeSitterResolver()
	path := writeTemp(t, "struct Thing;\n\nimpl Default for Thing {\n    fn default() -> Self { Thing }\n}\n", ".rs")

	details, err := r.ResolveDetails(path, 2, 20, "rust")
	require.NoError(t, err)
	assert.Equal(t, "impl Default for Thing", details.Name)
	assert.Contains(t, details.Metadata, "Default")
}

func TestResolveDetailsUnknownLanguageFallsBackToRegex(t *testing.T) {
	r := NewTreeSitterResolver()
	path := writeTemp(t, "some_symbol = 1\n", ".zig")

	details, err := r.ResolveDetails(path, 0, 2, "zig")
	require.NoError(t, err)
	assert.NotEmpty(t, details.Name)
}

func TestResolveDetailsMissingFileErrors(t *testing.T) {
	r := NewTreeSitterResolver()
	_, err := r.ResolveDetails("/does/not/exist.go", 0, 0, "go")
	assert.Error(t, err)
}

func TestClassifyRustReferenceContextTraitBound(t *testing.T) {
	r := NewTreeSitterResolver()
	path := writeTemp(t, "trait Default {}\n\nfn use_it<T: Default>(x: T) {}\n", ".rs")

	ctx, err := r.ClassifyRustReferenceContext(path, 2, 14)
	require.NoError(t, err)
	assert.Equal(t, "trait_bound", string(ctx))
}

func TestClassifyRustReferenceContextOther(t *testing.T) {
	r := NewTreeSitterResolver()
	path := writeTemp(t, "fn foo() {}\n\nfn bar() { foo(); }\n", ".rs")

	ctx, err := r.ClassifyRustReferenceContext(path, 2, 12)
	require.NoError(t, err)
	assert.Equal(t, "other", string(ctx))
}
