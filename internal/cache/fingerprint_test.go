package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/standardbeagle/lcid/internal/lsp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestBuildStorageKeyDeterministic(t *testing.T) {
	dir := t.TempDir()
	file := writeTempFile(t, dir, "main.go", "package main\n")

	b := NewFingerprintBuilder()
	fp1, err := b.BuildStorageKey(lsp.MethodHover, dir, file, `{"position":{"line":1,"character":2}}`, "rev1", FingerprintOptions{})
	require.NoError(t, err)
	fp2, err := b.BuildStorageKey(lsp.MethodHover, dir, file, `{"position":{"character":2,"line":1}}`, "rev1", FingerprintOptions{})
	require.NoError(t, err)

	assert.Equal(t, fp1.StorageKey(), fp2.StorageKey(), "key order in params must not affect the fingerprint")
}

func TestBuildStorageKeyChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	file := writeTempFile(t, dir, "main.go", "package main\n")

	b := NewFingerprintBuilder()
	fp1, err := b.BuildStorageKey(lsp.MethodHover, dir, file, "{}", "rev1", FingerprintOptions{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file, []byte("package main\n\nfunc main() {}\n"), 0644))
	fp2, err := b.BuildStorageKey(lsp.MethodHover, dir, file, "{}", "rev1", FingerprintOptions{})
	require.NoError(t, err)

	assert.NotEqual(t, fp1.StorageKey(), fp2.StorageKey())
}

func TestBuildStorageKeyUnreadableFileFallsBackToPlaceholder(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.go")

	b := NewFingerprintBuilder()
	fp, err := b.BuildStorageKey(lsp.MethodHover, dir, missing, "{}", "rev1", FingerprintOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, fp.StorageKey())
}

func TestBuildStorageKeyUnreadableFileRequireContentErrors(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.go")

	b := NewFingerprintBuilder()
	_, err := b.BuildStorageKey(lsp.MethodHover, dir, missing, "{}", "rev1", FingerprintOptions{RequireContent: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadableFile)
}

func TestBuildSingleflightKeyExcludesContentHash(t *testing.T) {
	dir := t.TempDir()
	file := writeTempFile(t, dir, "main.go", "package main\n")

	b := NewFingerprintBuilder()
	key1 := b.BuildSingleflightKey(lsp.MethodHover, dir, file, "{}", "rev1")

	require.NoError(t, os.WriteFile(file, []byte("package main\nfunc main(){}\n"), 0644))
	key2 := b.BuildSingleflightKey(lsp.MethodHover, dir, file, "{}", "rev1")

	assert.Equal(t, key1, key2, "singleflight key must not depend on file content")
}

func TestCanonicalizeParamsSortsKeys(t *testing.T) {
	out1, err := CanonicalizeParams(`{"b":1,"a":2}`)
	require.NoError(t, err)
	out2, err := CanonicalizeParams(`{"a":2,"b":1}`)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestCanonicalizeParamsEmptyString(t *testing.T) {
	out, err := CanonicalizeParams("")
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestCanonicalizeParamsInvalidJSON(t *testing.T) {
	_, err := CanonicalizeParams("not json")
	require.Error(t, err)
}
